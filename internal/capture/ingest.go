package capture

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
)

// capturePattern matches the four capture-file name shapes §4.1 names:
// cap_*.json, click_cap_*.json, text_cap_*.json, shortcut_cap_*.json.
const capturePattern = "{cap,click_cap,text_cap,shortcut_cap}_*.json"

// DefaultProcessedLogName is the processed-filenames log filename used when
// none is configured. The original source also used "_agent_processed.txt"
// for its agent-side variant; Ingest accepts either via New's
// processedLogName argument.
const DefaultProcessedLogName = "_processed.txt"

// Ingest implements C1: scanning a watch directory for new capture records
// and tracking which filenames have already been handed to a consumer.
type Ingest struct {
	watchDir        string
	processedLogPath string
	logger          *slog.Logger

	mu        sync.Mutex
	processed map[string]bool
}

// New creates an Ingest over watchDir. processedLogName defaults to
// DefaultProcessedLogName when empty.
func New(watchDir, processedLogName string, logger *slog.Logger) (*Ingest, error) {
	if processedLogName == "" {
		processedLogName = DefaultProcessedLogName
	}
	if logger == nil {
		logger = slog.Default()
	}
	in := &Ingest{
		watchDir:         watchDir,
		processedLogPath: filepath.Join(watchDir, processedLogName),
		logger:           logger,
		processed:        make(map[string]bool),
	}
	if err := in.loadProcessed(); err != nil {
		return nil, err
	}
	return in, nil
}

func (in *Ingest) loadProcessed() error {
	f, err := os.Open(in.processedLogPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		name := strings.TrimSpace(scanner.Text())
		if name != "" {
			in.processed[name] = true
		}
	}
	return scanner.Err()
}

// ScanNewFiles returns capture records for files not yet in the processed
// log, sorted by Timestamp ascending (§4.1). Malformed JSON is logged and
// skipped, never fatal.
func (in *Ingest) ScanNewFiles() ([]*Record, error) {
	matches, err := doublestar.Glob(os.DirFS(in.watchDir), capturePattern)
	if err != nil {
		return nil, fmt.Errorf("capture: glob watch dir: %w", err)
	}
	sort.Strings(matches)

	in.mu.Lock()
	defer in.mu.Unlock()

	var records []*Record
	for _, name := range matches {
		if in.processed[name] {
			continue
		}
		path := filepath.Join(in.watchDir, name)
		rec, err := loadRecord(path)
		if err != nil {
			in.logger.Warn("skipping malformed capture record", "path", path, "error", err)
			continue
		}
		records = append(records, rec)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].Timestamp.Before(records[j].Timestamp)
	})
	return records, nil
}

func loadRecord(path string) (*Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	rec.SourcePath = abs
	return &rec, nil
}

// MarkProcessed appends path's basename to the processed log. Idempotent:
// a filename already marked is not appended or recorded twice.
func (in *Ingest) MarkProcessed(path string) error {
	name := filepath.Base(path)

	in.mu.Lock()
	defer in.mu.Unlock()

	if in.processed[name] {
		return nil
	}

	f, err := os.OpenFile(in.processedLogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := fmt.Fprintln(f, name); err != nil {
		return err
	}
	in.processed[name] = true
	return nil
}

// WatchDir returns the directory this Ingest scans, for use by the cleanup
// sweep (§5) and resource stats.
func (in *Ingest) WatchDir() string {
	return in.watchDir
}
