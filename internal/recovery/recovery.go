// Package recovery implements C10, the Recovery Learner: a single
// JSON-backed list of RecoveryPatterns, upserted by (error_code, app_name,
// failed_action, recovery_action) and queried with graded fallback (§4.10).
package recovery

import (
	"encoding/json"
	"os"
	"sort"
	"sync"

	pkgerrors "github.com/kazuyaegusa/deskautomata/pkg/errors"
)

// Pattern is one RecoveryPattern (§3, §4.10).
type Pattern struct {
	ErrorCode      string  `json:"error_code"`
	AppName        string  `json:"app_name"`
	FailedAction   string  `json:"failed_action"`
	RecoveryAction string  `json:"recovery_action"`
	SampleCount    int     `json:"sample_count"`
	SuccessCount   int     `json:"success_count"`
	SuccessRate    float64 `json:"success_rate"`
}

// minSamples and minSuccessRate gate both GetLearnedRecovery and
// GetReliablePatterns (§4.10).
const (
	minSamples     = 3
	minSuccessRate = 0.6
)

// Learner is C10, a single JSON file holding every recorded pattern.
type Learner struct {
	path string
	mu   sync.Mutex
}

// New opens (or prepares to create) the pattern file at path.
func New(path string) *Learner {
	return &Learner{path: path}
}

func (l *Learner) load() ([]Pattern, error) {
	data, err := os.ReadFile(l.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, &pkgerrors.StoreError{Operation: "load", Path: l.path, Cause: err}
	}
	var patterns []Pattern
	if err := json.Unmarshal(data, &patterns); err != nil {
		return nil, &pkgerrors.StoreError{Operation: "load", Path: l.path, Cause: err}
	}
	return patterns, nil
}

func (l *Learner) save(patterns []Pattern) error {
	data, err := json.MarshalIndent(patterns, "", "  ")
	if err != nil {
		return &pkgerrors.StoreError{Operation: "save", Path: l.path, Cause: err}
	}
	if err := os.WriteFile(l.path, data, 0o644); err != nil {
		return &pkgerrors.StoreError{Operation: "save", Path: l.path, Cause: err}
	}
	return nil
}

// RecordRecovery upserts on the (error_code, app_name, failed_action,
// recovery_action) 4-tuple key, updating its counters and success rate
// (§4.10).
func (l *Learner) RecordRecovery(errorCode, appName, failedAction, recoveryAction string, success bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	patterns, err := l.load()
	if err != nil {
		return err
	}

	found := false
	for i := range patterns {
		p := &patterns[i]
		if p.ErrorCode == errorCode && p.AppName == appName && p.FailedAction == failedAction && p.RecoveryAction == recoveryAction {
			p.SampleCount++
			if success {
				p.SuccessCount++
			}
			p.SuccessRate = float64(p.SuccessCount) / float64(p.SampleCount)
			found = true
			break
		}
	}

	if !found {
		p := Pattern{
			ErrorCode: errorCode, AppName: appName, FailedAction: failedAction,
			RecoveryAction: recoveryAction, SampleCount: 1,
		}
		if success {
			p.SuccessCount = 1
		}
		p.SuccessRate = float64(p.SuccessCount) / float64(p.SampleCount)
		patterns = append(patterns, p)
	}

	return l.save(patterns)
}

// GetLearnedRecovery searches with graded fallback — the exact 3-tuple, then
// dropping app_name, then dropping both app_name and failed_action —
// returning the highest-success-rate candidate that clears both thresholds,
// or nil if none qualifies (§4.10).
func (l *Learner) GetLearnedRecovery(errorCode, appName, failedAction string) (*Pattern, error) {
	patterns, err := l.load()
	if err != nil {
		return nil, err
	}

	tiers := [][2]string{
		{appName, failedAction},
		{"", failedAction},
		{"", ""},
	}

	for _, tier := range tiers {
		wantApp, wantAction := tier[0], tier[1]
		var best *Pattern
		for i := range patterns {
			p := &patterns[i]
			if p.ErrorCode != errorCode {
				continue
			}
			if p.AppName != wantApp {
				continue
			}
			if p.FailedAction != wantAction {
				continue
			}
			if p.SampleCount < minSamples || p.SuccessRate < minSuccessRate {
				continue
			}
			if best == nil || p.SuccessRate > best.SuccessRate {
				best = p
			}
		}
		if best != nil {
			result := *best
			return &result, nil
		}
	}

	return nil, nil
}

// GetReliablePatterns returns every pattern meeting the sample/rate
// threshold, sorted by success rate descending (§4.10).
func (l *Learner) GetReliablePatterns() ([]Pattern, error) {
	patterns, err := l.load()
	if err != nil {
		return nil, err
	}

	var out []Pattern
	for _, p := range patterns {
		if p.SampleCount >= minSamples && p.SuccessRate >= minSuccessRate {
			out = append(out, p)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].SuccessRate > out[j].SuccessRate })
	return out, nil
}
