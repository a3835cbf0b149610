package feedback

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	pkgerrors "github.com/kazuyaegusa/deskautomata/pkg/errors"
)

// Store is the append-only, file-per-feedback persistence layer (§4.6).
type Store struct {
	dir    string
	logger *slog.Logger
}

// NewStore creates a Store rooted at dir, creating the directory if absent.
func NewStore(dir string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &pkgerrors.StoreError{Operation: "init", Path: dir, Cause: err}
	}
	return &Store{dir: dir, logger: logger}, nil
}

func (s *Store) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

// Record persists f and returns the path written to. Callers MUST NOT call
// this for dry-run executions (§4.6, §4.14).
func (s *Store) Record(f *Feedback) (string, error) {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return "", &pkgerrors.StoreError{Operation: "record", Path: s.path(f.FeedbackID), Cause: err}
	}
	path := s.path(f.FeedbackID)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", &pkgerrors.StoreError{Operation: "record", Path: path, Cause: err}
	}
	return path, nil
}

// ListAll returns every feedback record, sorted by Timestamp descending.
func (s *Store) ListAll() ([]*Feedback, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, &pkgerrors.StoreError{Operation: "list", Path: s.dir, Cause: err}
	}

	var out []*Feedback
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		path := filepath.Join(s.dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			s.logger.Warn("skipping unreadable feedback file", "path", path, "error", err)
			continue
		}
		var f Feedback
		if err := json.Unmarshal(data, &f); err != nil {
			s.logger.Warn("skipping malformed feedback file", "path", path, "error", err)
			continue
		}
		out = append(out, &f)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out, nil
}

// Count returns the number of persisted feedback records.
func (s *Store) Count() (int, error) {
	all, err := s.ListAll()
	if err != nil {
		return 0, err
	}
	return len(all), nil
}

// GetByWorkflow returns all feedback for the given workflow ID, sorted by
// Timestamp descending.
func (s *Store) GetByWorkflow(workflowID string) ([]*Feedback, error) {
	all, err := s.ListAll()
	if err != nil {
		return nil, err
	}
	var out []*Feedback
	for _, f := range all {
		if f.WorkflowID == workflowID {
			out = append(out, f)
		}
	}
	return out, nil
}

// GetSuccessRate returns the fraction of feedback for workflowID with
// Success=true, or 0.0 if there is no data (§4.6, §8 "Empty feedback").
// Implements workflow.SuccessRateLookup.
func (s *Store) GetSuccessRate(workflowID string) float64 {
	matches, err := s.GetByWorkflow(workflowID)
	if err != nil || len(matches) == 0 {
		return 0.0
	}
	successes := 0
	for _, f := range matches {
		if f.Success {
			successes++
		}
	}
	return float64(successes) / float64(len(matches))
}

// HasFeedback reports whether any feedback has been recorded for workflowID.
// Implements catalog.FeedbackLookup.
func (s *Store) HasFeedback(workflowID string) bool {
	matches, err := s.GetByWorkflow(workflowID)
	return err == nil && len(matches) > 0
}

// GetStepFailureRates returns, for each step index that appears in any
// failed_step_indices for workflowID, the fraction of that workflow's
// feedback records in which the step failed (§4.6).
func (s *Store) GetStepFailureRates(workflowID string) (map[int]float64, error) {
	matches, err := s.GetByWorkflow(workflowID)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return map[int]float64{}, nil
	}

	counts := make(map[int]int)
	for _, f := range matches {
		for _, idx := range f.FailedStepIndices {
			counts[idx]++
		}
	}

	rates := make(map[int]float64, len(counts))
	for idx, count := range counts {
		rates[idx] = float64(count) / float64(len(matches))
	}
	return rates, nil
}
