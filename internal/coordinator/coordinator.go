package coordinator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"clipvault/pkg/ledger"
	"clipvault/pkg/logger"
	"clipvault/pkg/probe"

	"golang.org/x/sync/errgroup"
)

// State is a step of the batch loop
type State int

const (
	Generating State = iota
	Dispatching
	Awaiting
	Reconciling
	Done
)

func (s State) String() string {
	switch s {
	case Generating:
		return "GENERATING"
	case Dispatching:
		return "DISPATCHING"
	case Awaiting:
		return "AWAITING"
	case Reconciling:
		return "RECONCILING"
	case Done:
		return "DONE"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Defaults for a batch run
const (
	DefaultBatchSize = 100
	DefaultDelay     = 100 * time.Millisecond
)

// Prober sends one code
type Prober interface {
	Probe(ctx context.Context, code string) probe.Outcome
}

// Generator draws a batch of untried codes
type Generator interface {
	FillBatch(existing map[string]struct{}, n int) ([]string, error)
}

// SuccessRecorder stores accepted codes
type SuccessRecorder interface {
	Append(code string) (bool, error)
}

// BatchReport describes one reconciled batch
type BatchReport struct {
	Batch      int
	Probed     int
	Accepted   []string
	Rejected   int
	Retried    int
	TriedTotal int
	Elapsed    time.Duration
}

// Reporter receives a report after every batch
type Reporter interface {
	OnBatch(BatchReport)
}

// ReporterFunc adapts a function to Reporter
type ReporterFunc func(BatchReport)

// OnBatch calls f
func (f ReporterFunc) OnBatch(r BatchReport) { f(r) }

// Result summarizes a run
type Result struct {
	Accepted []string
	Batches  int
	Probed   int
}

// Config controls batch size, fan-out and pacing
type Config struct {
	BatchSize int
	// Workers caps concurrent probes; 0 means BatchSize
	Workers int
	// Delay is slept by each task after its probe
	Delay time.Duration
	// MaxBatches stops the run after that many batches; 0 means no limit
	MaxBatches int
}

// Coordinator drives batches of probes until a code is accepted
type Coordinator struct {
	cfg        Config
	generator  Generator
	prober     Prober
	classifier *probe.Classifier
	store      ledger.Store
	successes  SuccessRecorder
	reporter   Reporter
	logger     logger.Logger
}

// New creates a Coordinator
func New(cfg Config, gen Generator, prober Prober, classifier *probe.Classifier,
	store ledger.Store, successes SuccessRecorder, log logger.Logger) *Coordinator {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = cfg.BatchSize
	}
	if cfg.Delay < 0 {
		cfg.Delay = 0
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Coordinator{
		cfg:        cfg,
		generator:  gen,
		prober:     prober,
		classifier: classifier,
		store:      store,
		successes:  successes,
		logger:     log.WithField("component", "coordinator"),
	}
}

// SetReporter installs a batch reporter
func (c *Coordinator) SetReporter(r Reporter) {
	c.reporter = r
}

func (c *Coordinator) transition(s State, batch int) {
	c.logger.DebugWithFields("State transition", map[string]interface{}{
		"state": s.String(),
		"batch": batch,
	})
}

// Run loops over batches until one has an accepted code. The tried set is
// persisted after every batch; a persistence failure ends the run with that
// error. Cancelling ctx ends the run with ctx.Err() once the in-flight batch
// has been reconciled and saved.
func (c *Coordinator) Run(ctx context.Context) (*Result, error) {
	tried, err := c.store.Load()
	if err != nil {
		return nil, err
	}
	c.logger.InfoWithFields("Probe run starting", map[string]interface{}{
		"tried":      len(tried),
		"batch_size": c.cfg.BatchSize,
		"workers":    c.cfg.Workers,
	})

	result := &Result{}
	for {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if c.cfg.MaxBatches > 0 && result.Batches >= c.cfg.MaxBatches {
			c.logger.InfoWithFields("Batch limit reached", map[string]interface{}{
				"batches": result.Batches,
			})
			return result, nil
		}

		batch := result.Batches + 1
		report, err := c.runBatch(ctx, batch, tried)
		if report != nil {
			result.Batches = batch
			result.Probed += report.Probed
			result.Accepted = append(result.Accepted, report.Accepted...)
			if c.reporter != nil {
				c.reporter.OnBatch(*report)
			}
		}
		if err != nil {
			return result, err
		}

		if len(report.Accepted) > 0 {
			c.transition(Done, batch)
			return result, nil
		}
	}
}

func (c *Coordinator) runBatch(ctx context.Context, batch int, tried map[string]struct{}) (*BatchReport, error) {
	start := time.Now()

	c.transition(Generating, batch)
	codes, err := c.generator.FillBatch(tried, c.cfg.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("generate batch %d: %w", batch, err)
	}

	c.transition(Dispatching, batch)
	outcomes := make([]probe.Outcome, len(codes))
	var g errgroup.Group
	g.SetLimit(c.cfg.Workers)
	for i, code := range codes {
		g.Go(func() error {
			outcomes[i] = c.prober.Probe(ctx, code)
			pause(ctx, c.cfg.Delay)
			return nil
		})
	}

	c.transition(Awaiting, batch)
	_ = g.Wait()

	c.transition(Reconciling, batch)
	report := &BatchReport{Batch: batch, Probed: len(codes)}
	for _, outcome := range outcomes {
		// probes cut short by cancellation were never answered
		if outcome.Status == probe.StatusNoResponse && ctx.Err() != nil && errors.Is(outcome.Err, ctx.Err()) {
			report.Retried++
			continue
		}

		switch c.classifier.Classify(outcome) {
		case probe.Accepted:
			if _, err := c.successes.Append(outcome.Code); err != nil {
				return report, err
			}
			report.Accepted = append(report.Accepted, outcome.Code)
			c.logger.InfoWithFields("Code accepted", map[string]interface{}{
				"code":   outcome.Code,
				"status": outcome.Status,
			})
		case probe.Rejected:
			tried[outcome.Code] = struct{}{}
			report.Rejected++
		case probe.Retry:
			report.Retried++
		}
	}

	if err := c.store.Save(tried); err != nil {
		return report, err
	}
	report.TriedTotal = len(tried)
	report.Elapsed = time.Since(start)

	logger.LogBatch(c.logger, batch, report.Probed, len(report.Accepted), report.Rejected, report.Retried, report.Elapsed)
	return report, nil
}

func pause(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
