// Package refine implements C7, the Refiner: confidence blending, status
// lifecycle transitions, failing-step pruning, variant generation, and
// similar-workflow merging over the stored workflow set (§4.7).
package refine

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/kazuyaegusa/deskautomata/internal/feedback"
	"github.com/kazuyaegusa/deskautomata/internal/workflow"
)

// WorkflowStore is the subset of *workflow.Store the refiner depends on.
type WorkflowStore interface {
	ListAll() ([]*workflow.Workflow, error)
	Save(w *workflow.Workflow) error
	Delete(id string) (bool, error)
}

// FeedbackStore is the subset of *feedback.Store the refiner depends on.
type FeedbackStore interface {
	GetByWorkflow(workflowID string) ([]*feedback.Feedback, error)
	GetSuccessRate(workflowID string) float64
	GetStepFailureRates(workflowID string) (map[int]float64, error)
}

// Refiner runs one refinement pass over every non-deprecated workflow
// (§4.7).
type Refiner struct {
	workflows WorkflowStore
	feedbacks FeedbackStore
	logger    *slog.Logger
}

func New(workflows WorkflowStore, feedbacks FeedbackStore, logger *slog.Logger) *Refiner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Refiner{workflows: workflows, feedbacks: feedbacks, logger: logger}
}

// Summary totals what one Run changed (§8).
type Summary struct {
	ConfidenceUpdated int
	StatusChanged     int
	StepsPruned       int
	VariantsCreated   int
	WorkflowsMerged   int
}

// Run executes one full refinement pass: confidence blend, status lifecycle,
// failing-step prune, and variant generation per workflow, followed by one
// merge-similar sweep over the resulting set (§4.7).
func (r *Refiner) Run() (Summary, error) {
	var summary Summary

	all, err := r.workflows.ListAll()
	if err != nil {
		return summary, err
	}

	for _, w := range all {
		if w.Status == workflow.StatusDeprecated {
			continue
		}

		feedbacks, err := r.feedbacks.GetByWorkflow(w.WorkflowID)
		if err != nil {
			r.logger.Warn("failed to load feedback for workflow", "workflow_id", w.WorkflowID, "error", err)
			continue
		}

		changed := false
		if r.blendConfidence(w, feedbacks) {
			changed = true
			summary.ConfidenceUpdated++
		}
		if r.applyStatusLifecycle(w, feedbacks) {
			changed = true
			summary.StatusChanged++
		}
		if n := r.pruneFailingSteps(w, feedbacks); n > 0 {
			changed = true
			summary.StepsPruned += n
		}

		if changed {
			if err := r.workflows.Save(w); err != nil {
				r.logger.Warn("failed to save refined workflow", "workflow_id", w.WorkflowID, "error", err)
			}
		}

		created, err := r.generateVariants(w, feedbacks, all)
		if err != nil {
			r.logger.Warn("variant generation failed", "workflow_id", w.WorkflowID, "error", err)
		}
		summary.VariantsCreated += created
	}

	merged, err := r.mergeSimilar(all)
	if err != nil {
		r.logger.Warn("merge-similar pass failed", "error", err)
	}
	summary.WorkflowsMerged += merged

	return summary, nil
}

// SelectBestVariant implements §4.7's select_best_variant: among original
// plus any of its variants with execution_count ≥3, returns whichever has
// the highest success rate.
func (r *Refiner) SelectBestVariant(originalID string) (*workflow.Workflow, error) {
	all, err := r.workflows.ListAll()
	if err != nil {
		return nil, err
	}

	var candidates []*workflow.Workflow
	for _, w := range all {
		if w.WorkflowID == originalID || w.ParentID == originalID {
			if w.ExecutionCount >= 3 {
				candidates = append(candidates, w)
			}
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	best := candidates[0]
	bestRate := r.feedbacks.GetSuccessRate(best.WorkflowID)
	for _, c := range candidates[1:] {
		rate := r.feedbacks.GetSuccessRate(c.WorkflowID)
		if rate > bestRate {
			best, bestRate = c, rate
		}
	}
	return best, nil
}

// blendConfidence applies §4.7's confidence blend, persisting only if the
// change exceeds 0.01.
func (r *Refiner) blendConfidence(w *workflow.Workflow, feedbacks []*feedback.Feedback) bool {
	if len(feedbacks) == 0 {
		return false
	}
	successRate := r.feedbacks.GetSuccessRate(w.WorkflowID)
	newConfidence := 0.7*w.Confidence + 0.3*successRate
	if absFloat(newConfidence-w.Confidence) <= 0.01 {
		return false
	}
	w.Confidence = newConfidence
	return true
}

// applyStatusLifecycle applies §4.7's count/rate thresholds, in precedence
// order: deprecation beats activation beats the draft→tested transition.
// Deprecation is terminal and is never reversed by a later pass.
func (r *Refiner) applyStatusLifecycle(w *workflow.Workflow, feedbacks []*feedback.Feedback) bool {
	count := len(feedbacks)
	rate := r.feedbacks.GetSuccessRate(w.WorkflowID)

	newStatus := w.Status
	switch {
	case count >= 3 && rate < 0.2:
		newStatus = workflow.StatusDeprecated
	case count >= 5 && rate >= 0.7:
		newStatus = workflow.StatusActive
	case count >= 1 && rate > 0 && w.Status == workflow.StatusDraft:
		newStatus = workflow.StatusTested
	}

	changed := newStatus != w.Status
	w.Status = newStatus
	if count != w.ExecutionCount {
		w.ExecutionCount = count
		changed = true
	}
	return changed
}

// pruneFailingSteps drops any step whose per-workflow failure rate is ≥0.8,
// once at least 3 feedbacks exist, removing in descending index order so
// earlier indices stay valid as later ones are removed.
func (r *Refiner) pruneFailingSteps(w *workflow.Workflow, feedbacks []*feedback.Feedback) int {
	if len(feedbacks) < 3 {
		return 0
	}
	rates, err := r.feedbacks.GetStepFailureRates(w.WorkflowID)
	if err != nil {
		return 0
	}

	var toDrop []int
	for idx, rate := range rates {
		if rate >= 0.8 && idx >= 0 && idx < len(w.Steps) {
			toDrop = append(toDrop, idx)
		}
	}
	if len(toDrop) == 0 {
		return 0
	}
	sort.Sort(sort.Reverse(sort.IntSlice(toDrop)))

	for _, idx := range toDrop {
		w.Steps = append(w.Steps[:idx], w.Steps[idx+1:]...)
	}
	return len(toDrop)
}

// generateVariants implements §4.7's per-step error-histogram variant rule.
func (r *Refiner) generateVariants(w *workflow.Workflow, feedbacks []*feedback.Feedback, all []*workflow.Workflow) (int, error) {
	failing := 0
	for _, f := range feedbacks {
		if !f.Success {
			failing++
		}
	}
	if failing < 3 {
		return 0, nil
	}

	existingVariants := 0
	for _, other := range all {
		if other.ParentID == w.WorkflowID {
			existingVariants++
		}
	}
	if existingVariants >= 3 {
		return 0, nil
	}

	stepErrorCounts := make(map[int]map[string]int)
	for _, f := range feedbacks {
		for _, ed := range f.ErrorDetails {
			if stepErrorCounts[ed.StepIndex] == nil {
				stepErrorCounts[ed.StepIndex] = make(map[string]int)
			}
			stepErrorCounts[ed.StepIndex][ed.ErrorCode]++
		}
	}

	created := 0
	for stepIndex, codeCounts := range stepErrorCounts {
		if stepIndex < 0 || stepIndex >= len(w.Steps) {
			continue
		}
		total := 0
		for _, c := range codeCounts {
			total += c
		}
		if total < 3 {
			continue
		}

		var dominantCode string
		var dominantCount int
		for code, c := range codeCounts {
			if c > dominantCount {
				dominantCode, dominantCount = code, c
			}
		}
		if float64(dominantCount)/float64(total) < 0.5 {
			continue
		}

		variant := cloneWorkflow(w)
		applyVariantRule(&variant.Steps[stepIndex], dominantCode, dominantCount)

		existingVariants++
		variant.WorkflowID = newVariantID()
		variant.Name = fmt.Sprintf("%s_v%d", w.Name, existingVariants)
		variant.Status = workflow.StatusDraft
		variant.ExecutionCount = 0
		variant.ParentID = w.WorkflowID
		variant.Confidence = 0.8 * w.Confidence

		if err := r.workflows.Save(variant); err != nil {
			return created, err
		}
		created++
	}

	return created, nil
}

// applyVariantRule mutates step in place per §4.7's per-error-code repair
// heuristic.
func applyVariantRule(step *workflow.ActionStep, errorCode string, count int) {
	switch errorCode {
	case "HINT_NOT_FOUND":
		if count >= 5 {
			step.Target = workflow.Target{}
		} else {
			step.WaitBeforeSeconds = 0.5
		}
	case "TIMEOUT":
		if step.TimeoutSeconds == 0 {
			step.TimeoutSeconds = 1
		}
		step.TimeoutSeconds *= 1.5
	case "INPUT_FAILED":
		step.RequireFocusCheck = true
	}
}

func cloneWorkflow(w *workflow.Workflow) *workflow.Workflow {
	clone := *w
	clone.Steps = append([]workflow.ActionStep(nil), w.Steps...)
	clone.Tags = append([]string(nil), w.Tags...)
	clone.Parameters = append([]workflow.Parameter(nil), w.Parameters...)
	clone.SourceSessionIDs = append([]string(nil), w.SourceSessionIDs...)
	return &clone
}

// mergeSimilar implements §4.7's merge rule over non-variant workflows.
func (r *Refiner) mergeSimilar(all []*workflow.Workflow) (int, error) {
	candidates := make([]*workflow.Workflow, 0, len(all))
	for _, w := range all {
		if !w.IsVariant() && w.Status != workflow.StatusDeprecated {
			candidates = append(candidates, w)
		}
	}

	absorbed := make(map[string]bool)
	merged := 0

	for i := 0; i < len(candidates); i++ {
		a := candidates[i]
		if absorbed[a.WorkflowID] {
			continue
		}
		for j := i + 1; j < len(candidates); j++ {
			b := candidates[j]
			if absorbed[b.WorkflowID] || absorbed[a.WorkflowID] {
				continue
			}
			if !similar(a, b) {
				continue
			}

			base, other := a, b
			if len(other.Steps) > len(base.Steps) {
				base, other = other, base
			}

			base.Confidence = (base.Confidence + other.Confidence) / 2
			base.Tags = unionStrings(base.Tags, other.Tags)
			base.ExecutionCount += other.ExecutionCount

			if err := r.workflows.Save(base); err != nil {
				return merged, err
			}
			if _, err := r.workflows.Delete(other.WorkflowID); err != nil {
				return merged, err
			}
			absorbed[other.WorkflowID] = true
			merged++
		}
	}

	return merged, nil
}

func similar(a, b *workflow.Workflow) bool {
	if a.AppName != b.AppName {
		return false
	}
	if levenshtein(a.Name, b.Name) > 3 {
		return false
	}
	return jaccard(a.Tags, b.Tags) >= 0.5
}

func unionStrings(a, b []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, s := range append(append([]string(nil), a...), b...) {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

func jaccard(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	setA := make(map[string]bool, len(a))
	for _, s := range a {
		setA[strings.ToLower(s)] = true
	}
	setB := make(map[string]bool, len(b))
	for _, s := range b {
		setB[strings.ToLower(s)] = true
	}

	intersection := 0
	for s := range setA {
		if setB[s] {
			intersection++
		}
	}
	union := len(setA)
	for s := range setB {
		if !setA[s] {
			union++
		}
	}
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// levenshtein computes classic edit distance; no pack library offers a
// small, dependency-free string-distance helper, so this is hand-rolled
// (justified stdlib use, see DESIGN.md).
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	la, lb := len(ra), len(rb)

	prev := make([]int, lb+1)
	curr := make([]int, lb+1)
	for j := 0; j <= lb; j++ {
		prev[j] = j
	}

	for i := 1; i <= la; i++ {
		curr[0] = i
		for j := 1; j <= lb; j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = minInt(prev[j]+1, minInt(curr[j-1]+1, prev[j-1]+cost))
		}
		prev, curr = curr, prev
	}
	return prev[lb]
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// newVariantID mints a fresh 8-hex-char workflow id (§4.7 "fresh id").
func newVariantID() string {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return "v00000000"
	}
	return hex.EncodeToString(buf)
}

func absFloat(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
