package daemon

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kazuyaegusa/deskautomata/internal/capture"
	"github.com/kazuyaegusa/deskautomata/internal/extractor"
	"github.com/kazuyaegusa/deskautomata/internal/refine"
)

type fakeIngest struct {
	records   []*capture.Record
	marked    []string
	watchDir  string
	scanCalls int
}

func (f *fakeIngest) ScanNewFiles() ([]*capture.Record, error) {
	f.scanCalls++
	return f.records, nil
}

func (f *fakeIngest) MarkProcessed(path string) error {
	f.marked = append(f.marked, path)
	return nil
}

func (f *fakeIngest) WatchDir() string { return f.watchDir }

type fakeExtractor struct {
	result extractor.Result
	calls  int
}

func (f *fakeExtractor) ExtractAll(ctx context.Context, records []*capture.Record) (extractor.Result, error) {
	f.calls++
	return f.result, nil
}

type fakeRefiner struct {
	calls int
}

func (f *fakeRefiner) Run() (refine.Summary, error) {
	f.calls++
	return refine.Summary{}, nil
}

type fakeReporter struct {
	calls int
}

func (f *fakeReporter) Report(format, categoryFilter, storeDir string) (string, error) {
	f.calls++
	return "# report\n", nil
}

type fakeSampler struct {
	cpuFraction, rssMB float64
}

func (f *fakeSampler) Sample() (float64, float64, error) {
	return f.cpuFraction, f.rssMB, nil
}

func TestThrottleIfNeeded_NoSleepUnderLimits(t *testing.T) {
	d := New(Config{}, &fakeIngest{}, &fakeExtractor{}, &fakeRefiner{}, &fakeReporter{}, &fakeSampler{cpuFraction: 0.1, rssMB: 100}, nil)
	slept := false
	d.sleep = func(time.Duration) { slept = true }

	d.throttleIfNeeded(context.Background())

	assert.False(t, slept)
}

func TestThrottleIfNeeded_SleepsProportionallyWhenOverLimit(t *testing.T) {
	d := New(Config{CPULimit: 0.30}, &fakeIngest{}, &fakeExtractor{}, &fakeRefiner{}, &fakeReporter{}, &fakeSampler{cpuFraction: 0.9, rssMB: 100}, nil)
	var slept time.Duration
	d.sleep = func(dur time.Duration) { slept = dur }

	d.throttleIfNeeded(context.Background())

	assert.Greater(t, slept, time.Duration(0))
	assert.LessOrEqual(t, slept, 5*time.Second)
}

func TestCycle_ExtractsAndMarksEveryScannedRecord(t *testing.T) {
	records := []*capture.Record{
		{CaptureID: "a", SourcePath: "/tmp/cap_a.json"},
		{CaptureID: "b", SourcePath: "/tmp/cap_b.json"},
	}
	ing := &fakeIngest{records: records}
	ex := &fakeExtractor{result: extractor.Result{SegmentsBuilt: 1, WorkflowsSaved: 1}}
	d := New(Config{}, ing, ex, &fakeRefiner{}, &fakeReporter{}, &fakeSampler{}, nil)

	d.cycle(context.Background())

	assert.Equal(t, 1, ex.calls)
	assert.ElementsMatch(t, []string{"/tmp/cap_a.json", "/tmp/cap_b.json"}, ing.marked)
}

func TestCycle_NoRecordsSkipsExtraction(t *testing.T) {
	ing := &fakeIngest{}
	ex := &fakeExtractor{}
	d := New(Config{}, ing, ex, &fakeRefiner{}, &fakeReporter{}, &fakeSampler{}, nil)

	d.cycle(context.Background())

	assert.Equal(t, 0, ex.calls)
}

func TestCleanupSweep_RemovesOnlyStaleMatchingFiles(t *testing.T) {
	dir := t.TempDir()
	stale := filepath.Join(dir, "cap_old.json")
	fresh := filepath.Join(dir, "cap_new.json")
	unrelated := filepath.Join(dir, "notes.txt")

	require.NoError(t, os.WriteFile(stale, []byte("{}"), 0o644))
	require.NoError(t, os.WriteFile(fresh, []byte("{}"), 0o644))
	require.NoError(t, os.WriteFile(unrelated, []byte("x"), 0o644))

	oldTime := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(stale, oldTime, oldTime))

	ing := &fakeIngest{watchDir: dir}
	d := New(Config{CleanupMaxAge: 3600 * time.Second}, ing, &fakeExtractor{}, &fakeRefiner{}, &fakeReporter{}, &fakeSampler{}, nil)

	d.cleanupSweep(time.Now())

	_, err := os.Stat(stale)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(fresh)
	assert.NoError(t, err)
	_, err = os.Stat(unrelated)
	assert.NoError(t, err)
}

func TestRunReport_WritesDatedMarkdownFile(t *testing.T) {
	reportDir := t.TempDir()
	rep := &fakeReporter{}
	d := New(Config{ReportDir: reportDir}, &fakeIngest{}, &fakeExtractor{}, &fakeRefiner{}, rep, &fakeSampler{}, nil)

	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	d.runReport(now)

	assert.Equal(t, 1, rep.calls)
	_, err := os.Stat(filepath.Join(reportDir, "report_20260731.md"))
	assert.NoError(t, err)
}

func TestStartStop_RunsAtLeastOneCycle(t *testing.T) {
	ing := &fakeIngest{records: []*capture.Record{{CaptureID: "a", SourcePath: "/tmp/cap_a.json"}}}
	ex := &fakeExtractor{}
	d := New(Config{PollInterval: 1 * time.Second, CleanupEvery: time.Hour, ReportEvery: time.Hour}, ing, ex, &fakeRefiner{}, &fakeReporter{}, &fakeSampler{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d.Start(ctx)
	time.Sleep(1200 * time.Millisecond)
	d.Stop()

	assert.GreaterOrEqual(t, ing.scanCalls, 1)
}
