package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"clipvault/internal/coordinator"
	"clipvault/pkg/api"
	"clipvault/pkg/codegen"
	"clipvault/pkg/ledger"
	"clipvault/pkg/logger"
	"clipvault/pkg/probe"
	"clipvault/pkg/ratelimit"
	"clipvault/pkg/ui"

	"github.com/spf13/cobra"
)

var (
	probeURL          string
	stateDir          string
	ledgerBackend     string
	batchSize         int
	workers           int
	probeDelay        time.Duration
	rejectPreset      string
	rejectStatuses    []int
	unreachablePolicy string
	maxBatches        int
	probeRPM          int
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Probe random invite codes until one is accepted",
	Long: `Generate random 6-character codes over 0-9A-Z in batches and submit each
one to the probe endpoint as {"invite_code": "<code>"}.

Codes answered with a rejection status are written to the tried ledger after
every batch, so a restarted run never repeats them. The first code answered
with any other status is appended to the day's success file and the run stops.

Rejection presets:
  strict   401, 403 and 429 are rejections (default)
  minimal  only 403 is a rejection

A probe that gets no response is a rejection under --unreachable=exhaust
(default) and is left for a later batch under --unreachable=retry. It is
never treated as accepted.`,
	Example: `  # Probe with the configured endpoint and defaults
  clipvault probe --probe-url https://example.test/invite/accept

  # Gentler run: 20 codes per batch, 4 in flight, 500ms pause per probe
  clipvault probe --batch-size 20 --workers 4 --delay 500ms

  # Keep the ledger in SQLite and stop after 10 batches
  clipvault probe --ledger sqlite --max-batches 10`,
	Args: cobra.NoArgs,
	RunE: runProbe,
}

func init() {
	rootCmd.AddCommand(probeCmd)

	probeCmd.Flags().StringVar(&probeURL, "probe-url", "", "endpoint that receives probe POSTs")
	probeCmd.Flags().StringVar(&stateDir, "state-dir", "", "directory holding the tried ledger and success files")
	probeCmd.Flags().StringVar(&ledgerBackend, "ledger", "", "tried ledger backend (file, sqlite)")
	probeCmd.Flags().IntVar(&batchSize, "batch-size", 0, "codes per batch (default 100)")
	probeCmd.Flags().IntVar(&workers, "workers", 0, "concurrent probes per batch (default 100)")
	probeCmd.Flags().DurationVar(&probeDelay, "delay", 0, "pause after each probe (default 100ms)")
	probeCmd.Flags().StringVar(&rejectPreset, "reject", "", "rejection preset (strict, minimal)")
	probeCmd.Flags().IntSliceVar(&rejectStatuses, "reject-status", nil, "explicit rejection statuses, overrides --reject")
	probeCmd.Flags().StringVar(&unreachablePolicy, "unreachable", "", "what a probe without response means (exhaust, retry)")
	probeCmd.Flags().IntVar(&maxBatches, "max-batches", 0, "stop after this many batches (0 = until accepted)")
	probeCmd.Flags().IntVar(&probeRPM, "requests-per-minute", 0, "client-side request limit (0 = none)")
	addIdentityFlags(probeCmd)
}

func probeFlags(cmd *cobra.Command) (map[string]interface{}, error) {
	flags := make(map[string]interface{})
	if err := identityFlags(cmd, flags); err != nil {
		return nil, err
	}

	set := cmd.Flags().Changed
	if set("probe-url") {
		flags["probe-url"] = probeURL
	}
	if set("state-dir") {
		flags["state-dir"] = stateDir
	}
	if set("ledger") {
		flags["ledger-backend"] = ledgerBackend
	}
	if set("batch-size") {
		flags["batch-size"] = batchSize
	}
	if set("workers") {
		flags["workers"] = workers
	}
	if set("delay") {
		flags["delay"] = probeDelay
	}
	if set("reject") {
		statuses, err := probe.Preset(rejectPreset)
		if err != nil {
			return nil, err
		}
		flags["reject-statuses"] = statuses
	}
	if set("reject-status") {
		flags["reject-statuses"] = rejectStatuses
	}
	if set("unreachable") {
		flags["unreachable-policy"] = unreachablePolicy
	}
	if set("max-batches") {
		flags["max-batches"] = maxBatches
	}
	if set("requests-per-minute") {
		flags["requests-per-minute"] = probeRPM
	}
	return flags, nil
}

func runProbe(cmd *cobra.Command, args []string) error {
	flags, err := probeFlags(cmd)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}
	if cfg.Probe.URL == "" {
		return errors.New("no probe endpoint configured: set --probe-url, CLIPVAULT_PROBE_URL or probe.url")
	}

	log := logger.GetLogger()
	applyStoredIdentity(cfg, log)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := ledger.Open(cfg.Probe, log)
	if err != nil {
		return fmt.Errorf("open tried ledger: %w", err)
	}
	defer func() {
		if err := closeStore(); err != nil {
			log.WithError(err).Warn("Failed to close tried ledger")
		}
	}()

	successes := ledger.NewSuccessLog(cfg.Probe.StateDir, time.Now, log)
	if err := successes.Ensure(); err != nil {
		return fmt.Errorf("prepare success file: %w", err)
	}

	executor := probe.NewExecutor(cfg.Probe.URL, api.Headers(cfg.API),
		probe.WithHTTPClient(api.NewHTTPClient(0, cfg.API.SkipCertCheck)),
		probe.WithTimeout(cfg.Probe.Timeout),
		probe.WithLimiter(ratelimit.FromSettings(cfg.RateLimit)),
		probe.WithLogger(log),
	)
	classifier := probe.NewClassifier(cfg.Probe.RejectStatuses, probe.UnreachablePolicy(cfg.Probe.UnreachablePolicy))

	coord := coordinator.New(coordinator.Config{
		BatchSize:  cfg.Probe.BatchSize,
		Workers:    cfg.Probe.Workers,
		Delay:      cfg.Probe.Delay,
		MaxBatches: cfg.Probe.MaxBatches,
	}, codegen.New(), executor, classifier, store, successes, log)

	var statusOut io.Writer = os.Stdout
	if quiet {
		statusOut = nil
	}
	status := ui.NewProbeStatus(statusOut, cfg.Probe.BatchSize)
	coord.SetReporter(coordinator.ReporterFunc(func(r coordinator.BatchReport) {
		status.Record(ui.BatchStats{
			Batch:      r.Batch,
			Probed:     r.Probed,
			Accepted:   r.Accepted,
			Rejected:   r.Rejected,
			Retried:    r.Retried,
			TriedTotal: r.TriedTotal,
		})
	}))
	notifier := ui.NewNotifier(cfg.Notifications)

	logger.LogComponentStart(log, "probe", map[string]interface{}{
		"url":         cfg.Probe.URL,
		"state_dir":   cfg.Probe.StateDir,
		"ledger":      cfg.Probe.LedgerBackend,
		"batch_size":  cfg.Probe.BatchSize,
		"workers":     cfg.Probe.Workers,
		"delay":       cfg.Probe.Delay.String(),
		"reject":      cfg.Probe.RejectStatuses,
		"unreachable": cfg.Probe.UnreachablePolicy,
	})

	result, err := coord.Run(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) && cmd.Context().Err() == nil {
			ui.PrintWarning("Interrupted; tried codes up to the last finished batch are saved")
			return nil
		}
		notifier.Error("Probe run failed", err)
		return err
	}

	for _, code := range result.Accepted {
		notifier.Accepted(code)
		ui.PrintSuccess(fmt.Sprintf("[ACCEPTED] %s", code))
	}
	if len(result.Accepted) > 0 {
		ui.PrintInfo("Saved to", successes.Path())
	} else {
		ui.PrintInfo("No code accepted", fmt.Sprintf("%d batches, %d probes", result.Batches, result.Probed))
	}
	notifier.Complete("Probe run finished", fmt.Sprintf("%d accepted in %d batches", len(result.Accepted), result.Batches))
	return nil
}
