package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
)

const (
	ProgressBar   = "█"
	ProgressEmpty = "░"
)

// BatchStats is what the status line needs from one reconciled batch
type BatchStats struct {
	Batch      int
	Probed     int
	Accepted   []string
	Rejected   int
	Retried    int
	TriedTotal int
}

// ProbeStatus prints one status line per reconciled batch and keeps
// running totals
type ProbeStatus struct {
	mu        sync.Mutex
	w         io.Writer
	batchSize int
	startTime time.Time
	now       func() time.Time

	Batches  int
	Probed   int
	Rejected int
	Retried  int
	Accepted []string
}

// NewProbeStatus creates a status printer writing to w
func NewProbeStatus(w io.Writer, batchSize int) *ProbeStatus {
	return &ProbeStatus{w: w, batchSize: batchSize, startTime: time.Now(), now: time.Now}
}

// Record adds one batch to the totals and prints its status line
func (ps *ProbeStatus) Record(r BatchStats) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	ps.Batches++
	ps.Probed += r.Probed
	ps.Rejected += r.Rejected
	ps.Retried += r.Retried
	ps.Accepted = append(ps.Accepted, r.Accepted...)

	if ps.w == nil {
		return
	}
	fmt.Fprintf(ps.w, "%s %s %s tried=%s rate=%.1f/s\n",
		Magenta(fmt.Sprintf("[BATCH %d]", r.Batch)),
		Bar(r.Rejected+len(r.Accepted), ps.batchSize, 20),
		Dim(fmt.Sprintf("rejected=%d retry=%d", r.Rejected, r.Retried)),
		humanize.Comma(int64(r.TriedTotal)),
		ps.rateLocked(),
	)
	for _, code := range r.Accepted {
		fmt.Fprintf(ps.w, "%s %s\n", Green("[ACCEPTED]"), Yellow(code))
	}
}

// Rate returns probes per second since creation
func (ps *ProbeStatus) Rate() float64 {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return ps.rateLocked()
}

func (ps *ProbeStatus) rateLocked() float64 {
	elapsed := ps.now().Sub(ps.startTime).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(ps.Probed) / elapsed
}

// Bar renders done/total as a fixed-width bar
func Bar(done, total, width int) string {
	if total <= 0 {
		total = 1
	}
	if done > total {
		done = total
	}
	if done < 0 {
		done = 0
	}
	filled := done * width / total
	return fmt.Sprintf("[%s] %d/%d",
		strings.Repeat(ProgressBar, filled)+strings.Repeat(ProgressEmpty, width-filled),
		done, total)
}
