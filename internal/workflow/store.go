package workflow

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	pkgerrors "github.com/kazuyaegusa/deskautomata/pkg/errors"
)

// SuccessRateLookup is the subset of the Feedback Store (C6) the Store's
// search ranking needs. Declared here, satisfied by feedback.Store, to keep
// the two packages from importing each other.
type SuccessRateLookup interface {
	GetSuccessRate(workflowID string) float64
}

// Store is the file-per-workflow persistence layer (§4.5). Concurrency
// discipline: callers must serialize writes to a given workflow ID; Store
// itself does not lock, matching §4.5's "no file locks are required but
// writes are whole-file".
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

// Save writes w as deterministic, pretty-printed UTF-8 JSON, replacing any
// existing file for the same ID (§4.5 "overwrite-write").
func (s *Store) Save(w *Workflow) error {
	if w.WorkflowID == "" {
		return &pkgerrors.ValidationError{Field: "workflow_id", Message: "workflow ID cannot be empty"}
	}

	data, err := json.MarshalIndent(w, "", "  ")
	if err != nil {
		return &pkgerrors.StoreError{Operation: "save", Path: s.path(w.WorkflowID), Cause: err}
	}

	tmp := s.path(w.WorkflowID) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return &pkgerrors.StoreError{Operation: "save", Path: tmp, Cause: err}
	}
	if err := os.Rename(tmp, s.path(w.WorkflowID)); err != nil {
		return &pkgerrors.StoreError{Operation: "save", Path: s.path(w.WorkflowID), Cause: err}
	}
	return nil
}

// Get retrieves a workflow by ID, or a NotFoundError if it doesn't exist.
func (s *Store) Get(id string) (*Workflow, error) {
	data, err := os.ReadFile(s.path(id))
	if os.IsNotExist(err) {
		return nil, &pkgerrors.NotFoundError{Resource: "workflow", ID: id}
	}
	if err != nil {
		return nil, &pkgerrors.StoreError{Operation: "get", Path: s.path(id), Cause: err}
	}
	var w Workflow
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, &pkgerrors.StoreError{Operation: "get", Path: s.path(id), Cause: err}
	}
	return &w, nil
}

// Delete removes a workflow file. Returns false if it didn't exist.
func (s *Store) Delete(id string) (bool, error) {
	err := os.Remove(s.path(id))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, &pkgerrors.StoreError{Operation: "delete", Path: s.path(id), Cause: err}
	}
	return true, nil
}

// Count returns the number of persisted workflows.
func (s *Store) Count() (int, error) {
	entries, err := s.listFiles()
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}

func (s *Store) listFiles() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, &pkgerrors.StoreError{Operation: "list", Path: s.dir, Cause: err}
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		files = append(files, filepath.Join(s.dir, e.Name()))
	}
	return files, nil
}

// ListAll returns every workflow, sorted by confidence descending (§4.5,
// §8). Unreadable files are logged and skipped, never fatal.
func (s *Store) ListAll() ([]*Workflow, error) {
	files, err := s.listFiles()
	if err != nil {
		return nil, err
	}

	var out []*Workflow
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			s.logger.Warn("skipping unreadable workflow file", "path", path, "error", err)
			continue
		}
		var w Workflow
		if err := json.Unmarshal(data, &w); err != nil {
			s.logger.Warn("skipping malformed workflow file", "path", path, "error", err)
			continue
		}
		out = append(out, &w)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Confidence > out[j].Confidence
	})
	return out, nil
}

// FindDuplicate returns the workflow with a case-insensitive exact name
// match, or nil if none exists.
func (s *Store) FindDuplicate(name string) (*Workflow, error) {
	all, err := s.ListAll()
	if err != nil {
		return nil, err
	}
	lower := strings.ToLower(name)
	for _, w := range all {
		if strings.ToLower(w.Name) == lower {
			return w, nil
		}
	}
	return nil, nil
}

// Search tokenizes query into whitespace-separated keywords and returns
// non-deprecated workflows whose concatenated name/description/app_name/tags
// contain every keyword (case-insensitive substring), ranked by
// 3.0*keyword_match + 2.0*success_rate + 0.3*ln(1+execution_count) (§4.5).
// feedback may be nil, in which case success_rate defaults to 0.
func (s *Store) Search(query string, feedback SuccessRateLookup) ([]*Workflow, error) {
	all, err := s.ListAll()
	if err != nil {
		return nil, err
	}

	keywords := strings.Fields(strings.ToLower(query))

	type scored struct {
		w     *Workflow
		score float64
	}
	var survivors []scored

	for _, w := range all {
		if w.Status == StatusDeprecated {
			continue
		}

		haystack := strings.ToLower(strings.Join(
			append([]string{w.Name, w.Description, w.AppName}, w.Tags...), " "))

		matchesAll := true
		for _, kw := range keywords {
			if !strings.Contains(haystack, kw) {
				matchesAll = false
				break
			}
		}
		if !matchesAll {
			continue
		}

		successRate := 0.0
		if feedback != nil {
			successRate = feedback.GetSuccessRate(w.WorkflowID)
		}

		score := 3.0*1.0 + 2.0*successRate + 0.3*math.Log(1+float64(w.ExecutionCount))
		survivors = append(survivors, scored{w: w, score: score})
	}

	sort.SliceStable(survivors, func(i, j int) bool {
		return survivors[i].score > survivors[j].score
	})

	out := make([]*Workflow, len(survivors))
	for i, sc := range survivors {
		out[i] = sc.w
	}
	return out, nil
}

// SaveWithDedup implements C4's duplicate-resolution-on-save rule: if a
// workflow with the same name (case-insensitive) already exists, keep
// whichever has the higher confidence and discard the other (§4.4).
func (s *Store) SaveWithDedup(w *Workflow) error {
	existing, err := s.FindDuplicate(w.Name)
	if err != nil {
		return err
	}
	if existing == nil {
		return s.Save(w)
	}
	if w.Confidence > existing.Confidence {
		if existing.WorkflowID != w.WorkflowID {
			if _, err := s.Delete(existing.WorkflowID); err != nil {
				return err
			}
		}
		return s.Save(w)
	}
	return fmt.Errorf("workflow %q already exists with confidence %.2f >= %.2f; kept existing", w.Name, existing.Confidence, w.Confidence)
}
