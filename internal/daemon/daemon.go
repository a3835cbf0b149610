// Package daemon implements C15, the Continuous Learner: an unattended
// loop that repeatedly ingests newly captured records, extracts and refines
// workflows, and periodically regenerates the reproducibility report,
// throttling itself against CPU/RSS ceilings and sweeping stale capture
// artifacts (§5).
//
// The run loop's shape — a goroutine ticking once a second, sampling a
// running flag and a stop channel — is adapted from the teacher's
// scheduler.Start/Stop/run (internal/daemon/scheduler/scheduler.go): the
// cron-expression evaluation that package builds on top of that shape has
// no equivalent here, so only the ticker/select/stopCh/doneCh skeleton is
// kept.
package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/procfs"

	"github.com/kazuyaegusa/deskautomata/internal/capture"
	"github.com/kazuyaegusa/deskautomata/internal/catalog"
	"github.com/kazuyaegusa/deskautomata/internal/extractor"
	"github.com/kazuyaegusa/deskautomata/internal/refine"
)

var (
	cycleCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "deskautomata_daemon_cycles_total",
		Help: "Total ingest/extract cycles completed by the continuous learner daemon",
	})
	throttleSeconds = promauto.NewCounter(prometheus.CounterOpts{
		Name: "deskautomata_daemon_throttle_seconds_total",
		Help: "Total seconds spent sleeping due to CPU/RSS throttling",
	})
	workflowsSavedCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "deskautomata_daemon_workflows_saved_total",
		Help: "Total workflows saved across all cycles",
	})
)

// Ingest is the subset of *capture.Ingest the daemon depends on.
type Ingest interface {
	ScanNewFiles() ([]*capture.Record, error)
	MarkProcessed(path string) error
	WatchDir() string
}

// Extractor is the subset of *extractor.Extractor the daemon depends on.
type Extractor interface {
	ExtractAll(ctx context.Context, records []*capture.Record) (extractor.Result, error)
}

// Refiner is the subset of *refine.Refiner the daemon depends on.
type Refiner interface {
	Run() (refine.Summary, error)
}

// Reporter is the subset of *catalog.Generator the daemon depends on.
type Reporter interface {
	Report(format, categoryFilter, storeDir string) (string, error)
}

// ResourceSampler reports this process's current CPU utilization (as a
// fraction of one core, 0.0-1.0+) and resident memory in megabytes. Default
// implementation samples /proc via procSampler; overridable in tests.
type ResourceSampler interface {
	Sample() (cpuFraction, rssMB float64, err error)
}

// procSampler reads self CPU/RSS from /proc via procfs, the same library
// family client_golang's own process collector builds on.
type procSampler struct {
	mu       sync.Mutex
	lastCPU  float64
	lastWall time.Time
}

func newProcSampler() *procSampler {
	return &procSampler{lastWall: time.Time{}}
}

func (p *procSampler) Sample() (float64, float64, error) {
	proc, err := procfs.Self()
	if err != nil {
		return 0, 0, fmt.Errorf("daemon: read self proc: %w", err)
	}
	stat, err := proc.Stat()
	if err != nil {
		return 0, 0, fmt.Errorf("daemon: read proc stat: %w", err)
	}

	cpuSeconds := stat.CPUTime()
	rssMB := float64(stat.ResidentMemory()) / (1024 * 1024)

	p.mu.Lock()
	defer p.mu.Unlock()
	now := time.Now()
	var fraction float64
	if !p.lastWall.IsZero() {
		wallDelta := now.Sub(p.lastWall).Seconds()
		if wallDelta > 0 {
			fraction = (cpuSeconds - p.lastCPU) / wallDelta
		}
	}
	p.lastCPU = cpuSeconds
	p.lastWall = now

	return fraction, rssMB, nil
}

// Config holds the daemon's resource and interval policy (§5). Zero-value
// fields are filled with the stated defaults by New.
type Config struct {
	PollInterval   time.Duration
	CPULimit       float64 // fraction of one core, e.g. 0.30
	MemLimitMB     float64
	CleanupEvery   time.Duration
	CleanupMaxAge  time.Duration
	RefineEvery    int // cycles
	ReportEvery    time.Duration
	StoreDir       string
	ReportDir      string
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = 30 * time.Second
	}
	if c.CPULimit <= 0 {
		c.CPULimit = 0.30
	}
	if c.MemLimitMB <= 0 {
		c.MemLimitMB = 500.0
	}
	if c.CleanupEvery <= 0 {
		c.CleanupEvery = 600 * time.Second
	}
	if c.CleanupMaxAge <= 0 {
		c.CleanupMaxAge = 3600 * time.Second
	}
	if c.RefineEvery <= 0 {
		c.RefineEvery = 10
	}
	if c.ReportEvery <= 0 {
		c.ReportEvery = 86400 * time.Second
	}
	if c.ReportDir == "" {
		c.ReportDir = "reports"
	}
	return c
}

// Daemon runs C1->C2->C4->C5 on a poll interval, triggering C7 refinement
// every RefineEvery cycles and a C8 report every ReportEvery, all while
// staying under the configured CPU/RSS ceilings.
type Daemon struct {
	cfg       Config
	ingest    Ingest
	extractor Extractor
	refiner   Refiner
	reporter  Reporter
	sampler   ResourceSampler
	logger    *slog.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}

	sleep func(time.Duration)
	now   func() time.Time
}

// New constructs a Daemon. sampler may be nil to use the real /proc-backed
// implementation.
func New(cfg Config, ingest Ingest, ex Extractor, refiner Refiner, reporter Reporter, sampler ResourceSampler, logger *slog.Logger) *Daemon {
	if logger == nil {
		logger = slog.Default()
	}
	if sampler == nil {
		sampler = newProcSampler()
	}
	return &Daemon{
		cfg:       cfg.withDefaults(),
		ingest:    ingest,
		extractor: ex,
		refiner:   refiner,
		reporter:  reporter,
		sampler:   sampler,
		logger:    logger,
		sleep:     time.Sleep,
		now:       time.Now,
	}
}

// Start begins the poll loop in a background goroutine. A second call while
// already running is a no-op, matching the teacher's double-start guard.
func (d *Daemon) Start(ctx context.Context) {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return
	}
	d.running = true
	d.stopCh = make(chan struct{})
	d.doneCh = make(chan struct{})
	d.mu.Unlock()

	go d.run(ctx)
}

// Stop signals the poll loop to exit and blocks until it has.
func (d *Daemon) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	stopCh, doneCh := d.stopCh, d.doneCh
	d.mu.Unlock()

	close(stopCh)
	<-doneCh

	d.mu.Lock()
	d.running = false
	d.mu.Unlock()
}

// run samples a 1-second ticker, dispatching a poll cycle whenever
// PollInterval has elapsed and a cleanup sweep whenever CleanupEvery has,
// exactly as §5 describes the loop sampling cadence.
func (d *Daemon) run(ctx context.Context) {
	defer close(d.doneCh)

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	var cycles int
	lastPoll := time.Time{}
	lastCleanup := time.Time{}
	lastReport := time.Time{}

	for {
		select {
		case <-ctx.Done():
			return
		case <-d.stopCh:
			return
		case now := <-ticker.C:
			if lastPoll.IsZero() || now.Sub(lastPoll) >= d.cfg.PollInterval {
				d.throttleIfNeeded(ctx)
				d.cycle(ctx)
				cycles++
				lastPoll = now

				if cycles%d.cfg.RefineEvery == 0 {
					d.runRefine()
				}
			}
			if lastCleanup.IsZero() || now.Sub(lastCleanup) >= d.cfg.CleanupEvery {
				d.cleanupSweep(now)
				lastCleanup = now
			}
			if lastReport.IsZero() || now.Sub(lastReport) >= d.cfg.ReportEvery {
				d.runReport(now)
				lastReport = now
			}
		}
	}
}

// throttleIfNeeded sleeps proportionally to how far CPU/RSS exceed their
// ceilings (§5): min(5.0, 2*overshoot_ratio) seconds, where overshoot_ratio
// is the larger of the two ratios-over-limit. A sampler error is logged and
// treated as "no overshoot" rather than blocking the cycle.
func (d *Daemon) throttleIfNeeded(ctx context.Context) {
	cpuFraction, rssMB, err := d.sampler.Sample()
	if err != nil {
		d.logger.Warn("resource sample failed, skipping throttle check", "error", err)
		return
	}

	var overshoot float64
	if cpuFraction > d.cfg.CPULimit {
		if r := cpuFraction / d.cfg.CPULimit; r > overshoot {
			overshoot = r
		}
	}
	if rssMB > d.cfg.MemLimitMB {
		if r := rssMB / d.cfg.MemLimitMB; r > overshoot {
			overshoot = r
		}
	}
	if overshoot <= 1.0 {
		return
	}

	sleepSeconds := 2 * overshoot
	if sleepSeconds > 5.0 {
		sleepSeconds = 5.0
	}
	d.logger.Info("throttling cycle", "cpu_fraction", cpuFraction, "rss_mb", rssMB, "sleep_seconds", sleepSeconds)
	throttleSeconds.Add(sleepSeconds)
	d.sleep(time.Duration(sleepSeconds * float64(time.Second)))
}

// cycle runs one C1->C2->C4 pass: scan new capture records, extract
// workflows, mark every scanned file processed regardless of extraction
// outcome (§4.1's ingest contract is scan-then-mark, not retry-on-failure).
func (d *Daemon) cycle(ctx context.Context) {
	records, err := d.ingest.ScanNewFiles()
	if err != nil {
		d.logger.Error("scan new capture files failed", "error", err)
		return
	}
	cycleCounter.Inc()
	if len(records) == 0 {
		return
	}

	result, err := d.extractor.ExtractAll(ctx, records)
	if err != nil {
		d.logger.Error("extract cycle failed", "error", err)
	} else {
		workflowsSavedCounter.Add(float64(result.WorkflowsSaved))
		d.logger.Info("extract cycle complete", "segments", result.SegmentsBuilt, "saved", result.WorkflowsSaved, "skipped", result.WorkflowsSkipped)
	}

	for _, r := range records {
		if err := d.ingest.MarkProcessed(r.SourcePath); err != nil {
			d.logger.Warn("mark processed failed", "path", r.SourcePath, "error", err)
		}
	}
}

// runRefine triggers C7 every RefineEvery cycles. A refinement failure is
// logged, never fatal to the daemon loop.
func (d *Daemon) runRefine() {
	summary, err := d.refiner.Run()
	if err != nil {
		d.logger.Error("refine cycle failed", "error", err)
		return
	}
	d.logger.Info("refine cycle complete", "pruned", summary.StepsPruned, "variants", summary.VariantsCreated, "merged", summary.WorkflowsMerged)
}

// runReport triggers C8's markdown report on ReportEvery, writing to
// reports/report_YYYYMMDD.md under ReportDir.
func (d *Daemon) runReport(now time.Time) {
	out, err := d.reporter.Report("markdown", "", d.cfg.StoreDir)
	if err != nil {
		d.logger.Error("report generation failed", "error", err)
		return
	}

	name := fmt.Sprintf("report_%s.md", now.Format("20060102"))
	path := filepath.Join(d.cfg.ReportDir, name)
	if err := os.MkdirAll(d.cfg.ReportDir, 0o755); err != nil {
		d.logger.Error("create report dir failed", "error", err, "dir", d.cfg.ReportDir)
		return
	}
	if err := os.WriteFile(path, []byte(out), 0o644); err != nil {
		d.logger.Error("write report failed", "error", err, "path", path)
	}
}

// cleanupSweepPrefixes are the capture-artifact filename prefixes §5 names
// for the staleness sweep.
var cleanupSweepPrefixes = []string{"cap_", "full_", "crop_"}
var cleanupSweepExts = []string{".json", ".png"}

// cleanupSweep deletes stale capture artifacts under the watch directory
// older than CleanupMaxAge by mtime, matching §5's periodic sweep. Errors
// walking or removing individual files are logged and skipped, never
// fatal — the sweep is best-effort housekeeping, not correctness-bearing.
func (d *Daemon) cleanupSweep(now time.Time) {
	watchDir := d.ingest.WatchDir()
	entries, err := os.ReadDir(watchDir)
	if err != nil {
		d.logger.Warn("cleanup sweep: read watch dir failed", "error", err)
		return
	}

	var removed int
	for _, entry := range entries {
		if entry.IsDir() || !matchesCleanupPattern(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if now.Sub(info.ModTime()) < d.cfg.CleanupMaxAge {
			continue
		}
		path := filepath.Join(watchDir, entry.Name())
		if err := os.Remove(path); err != nil {
			d.logger.Warn("cleanup sweep: remove failed", "path", path, "error", err)
			continue
		}
		removed++
	}
	if removed > 0 {
		d.logger.Info("cleanup sweep removed stale artifacts", "count", removed)
	}
}

func matchesCleanupPattern(name string) bool {
	hasPrefix := false
	for _, p := range cleanupSweepPrefixes {
		if len(name) >= len(p) && name[:len(p)] == p {
			hasPrefix = true
			break
		}
	}
	if !hasPrefix {
		return false
	}
	hasExt := false
	for _, ext := range cleanupSweepExts {
		if len(name) >= len(ext) && name[len(name)-len(ext):] == ext {
			hasExt = true
			break
		}
	}
	return hasExt
}
