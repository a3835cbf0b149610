// Package meta implements C9, the Meta Analyzer: trailing-window statistics,
// per-app breakdowns, top-N tables, regression detection, and improvement
// suggestions over the feedback history (§4.9).
package meta

import (
	"sort"
	"time"

	"github.com/kazuyaegusa/deskautomata/internal/feedback"
	"github.com/kazuyaegusa/deskautomata/internal/workflow"
)

// FeedbackLister is the subset of *feedback.Store the analyzer depends on.
type FeedbackLister interface {
	ListAll() ([]*feedback.Feedback, error)
}

// WorkflowLister is the subset of *workflow.Store the analyzer depends on.
type WorkflowLister interface {
	ListAll() ([]*workflow.Workflow, error)
}

// DefaultWindow is the trailing analysis window (§4.9).
const DefaultWindow = 7 * 24 * time.Hour

// AppStats summarizes one app's feedback in the window.
type AppStats struct {
	AppName     string
	Count       int
	SuccessRate float64
	AvgDuration float64
}

// WorkflowCount names a workflow alongside a count used for a top-N ranking.
type WorkflowCount struct {
	WorkflowID string
	Count      int
}

// Suggestion is one improvement suggestion (§4.9).
type Suggestion struct {
	Message        string
	Priority       string // high | medium | low
	AutoApplicable bool
	WorkflowID     string
}

// Report is the full output of one analysis pass (§4.9).
type Report struct {
	WindowStart        time.Time
	WindowEnd          time.Time
	OverallSuccessRate float64
	PerApp             []AppStats
	TopFailures        []WorkflowCount
	TopExecutions      []WorkflowCount
	StatusDistribution map[workflow.Status]int
	Suggestions        []Suggestion
	RegressionDetected bool
}

// Analyzer is C9.
type Analyzer struct {
	feedbacks FeedbackLister
	workflows WorkflowLister
	window    time.Duration
	now       func() time.Time
}

// New creates an Analyzer with the default 7-day window. now defaults to
// time.Now if nil (tests can override it for determinism).
func New(feedbacks FeedbackLister, workflows WorkflowLister, window time.Duration, now func() time.Time) *Analyzer {
	if window <= 0 {
		window = DefaultWindow
	}
	if now == nil {
		now = time.Now
	}
	return &Analyzer{feedbacks: feedbacks, workflows: workflows, window: window, now: now}
}

// Analyze runs one full pass (§4.9).
func (a *Analyzer) Analyze() (Report, error) {
	end := a.now()
	start := end.Add(-a.window)

	allFeedback, err := a.feedbacks.ListAll()
	if err != nil {
		return Report{}, err
	}
	windowed := make([]*feedback.Feedback, 0, len(allFeedback))
	for _, f := range allFeedback {
		if !f.Timestamp.Before(start) && !f.Timestamp.After(end) {
			windowed = append(windowed, f)
		}
	}

	allWorkflows, err := a.workflows.ListAll()
	if err != nil {
		return Report{}, err
	}
	workflowsByID := make(map[string]*workflow.Workflow, len(allWorkflows))
	for _, w := range allWorkflows {
		workflowsByID[w.WorkflowID] = w
	}

	report := Report{
		WindowStart:         start,
		WindowEnd:           end,
		OverallSuccessRate:  successRate(windowed),
		PerApp:              perAppStats(windowed),
		TopFailures:         topN(windowed, 5, failureCount),
		TopExecutions:       topN(windowed, 5, executionCount),
		StatusDistribution:  statusDistribution(allWorkflows),
		RegressionDetected:  detectRegression(windowed),
	}
	report.Suggestions = a.suggestions(windowed, workflowsByID, report.RegressionDetected)

	return report, nil
}

func successRate(fs []*feedback.Feedback) float64 {
	if len(fs) == 0 {
		return 0
	}
	successes := 0
	for _, f := range fs {
		if f.Success {
			successes++
		}
	}
	return float64(successes) / float64(len(fs))
}

func perAppStats(fs []*feedback.Feedback) []AppStats {
	type agg struct {
		count       int
		successes   int
		durationSum float64
	}
	byApp := make(map[string]*agg)
	var order []string
	for _, f := range fs {
		if f.AppName == "" {
			continue
		}
		a, ok := byApp[f.AppName]
		if !ok {
			a = &agg{}
			byApp[f.AppName] = a
			order = append(order, f.AppName)
		}
		a.count++
		if f.Success {
			a.successes++
		}
		a.durationSum += f.DurationSeconds
	}

	sort.Strings(order)
	out := make([]AppStats, 0, len(order))
	for _, app := range order {
		a := byApp[app]
		out = append(out, AppStats{
			AppName:     app,
			Count:       a.count,
			SuccessRate: float64(a.successes) / float64(a.count),
			AvgDuration: a.durationSum / float64(a.count),
		})
	}
	return out
}

func failureCount(fs []*feedback.Feedback) map[string]int {
	counts := make(map[string]int)
	for _, f := range fs {
		if !f.Success && f.WorkflowID != "" {
			counts[f.WorkflowID]++
		}
	}
	return counts
}

func executionCount(fs []*feedback.Feedback) map[string]int {
	counts := make(map[string]int)
	for _, f := range fs {
		if f.WorkflowID != "" {
			counts[f.WorkflowID]++
		}
	}
	return counts
}

func topN(fs []*feedback.Feedback, n int, counter func([]*feedback.Feedback) map[string]int) []WorkflowCount {
	counts := counter(fs)
	out := make([]WorkflowCount, 0, len(counts))
	for id, c := range counts {
		out = append(out, WorkflowCount{WorkflowID: id, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].WorkflowID < out[j].WorkflowID
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

func statusDistribution(workflows []*workflow.Workflow) map[workflow.Status]int {
	dist := make(map[workflow.Status]int)
	for _, w := range workflows {
		dist[w.Status]++
	}
	return dist
}

// detectRegression implements §4.9's regression rule: ≥20 feedbacks sorted
// ascending by timestamp, comparing the last 10 against the previous 10.
func detectRegression(fs []*feedback.Feedback) bool {
	if len(fs) < 20 {
		return false
	}
	sorted := append([]*feedback.Feedback(nil), fs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Timestamp.Before(sorted[j].Timestamp) })

	n := len(sorted)
	recent := sorted[n-10:]
	previous := sorted[n-20 : n-10]

	recentRate := successRate(recent)
	prevRate := successRate(previous)
	return prevRate-recentRate >= 0.2
}

// suggestions implements §4.9's four improvement-suggestion rules.
func (a *Analyzer) suggestions(fs []*feedback.Feedback, workflowsByID map[string]*workflow.Workflow, regression bool) []Suggestion {
	var out []Suggestion

	failCounts := failureCount(fs)
	totalCounts := executionCount(fs)
	workflowIDs := make([]string, 0, len(totalCounts))
	for id := range totalCounts {
		workflowIDs = append(workflowIDs, id)
	}
	sort.Strings(workflowIDs)
	for _, id := range workflowIDs {
		total := totalCounts[id]
		if total < 3 {
			continue
		}
		failureRate := float64(failCounts[id]) / float64(total)
		if failureRate >= 0.5 {
			out = append(out, Suggestion{
				Message: "failure rate is high; generate a repair variant for this workflow",
				Priority: "high", AutoApplicable: true, WorkflowID: id,
			})
		}
	}

	if regression {
		out = append(out, Suggestion{
			Message: "recent success rate dropped compared to the previous window",
			Priority: "high", AutoApplicable: false,
		})
	}

	for _, app := range perAppStats(fs) {
		if app.Count >= 5 && app.SuccessRate < 0.3 {
			out = append(out, Suggestion{
				Message: app.AppName + " has a persistently low success rate",
				Priority: "high", AutoApplicable: false,
			})
		}
	}

	ids := make([]string, 0, len(workflowsByID))
	for id := range workflowsByID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		w := workflowsByID[id]
		if w.Status == workflow.StatusDeprecated {
			out = append(out, Suggestion{
				Message: "deprecated workflow " + w.Name + " should be replaced",
				Priority: "medium", AutoApplicable: false, WorkflowID: id,
			})
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].WorkflowID < out[j].WorkflowID })
	return out
}
