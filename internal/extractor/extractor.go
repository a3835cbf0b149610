// Package extractor implements C4, the Workflow Extractor: it turns
// segmented action sequences into stored Workflow records via the oracle
// (§4.4).
package extractor

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/kazuyaegusa/deskautomata/internal/capture"
	"github.com/kazuyaegusa/deskautomata/internal/oracle"
	"github.com/kazuyaegusa/deskautomata/internal/segment"
	"github.com/kazuyaegusa/deskautomata/internal/workflow"
)

// Oracle is the subset of *oracle.Adapter the extractor depends on.
type Oracle interface {
	AnalyzeWorkflowSegment(ctx context.Context, actionsText, appName string) *oracle.WorkflowAnalysis
}

// WorkflowStore is the subset of *workflow.Store the extractor depends on.
type WorkflowStore interface {
	SaveWithDedup(w *workflow.Workflow) error
}

// Extractor builds segments from capture records and turns each into a
// stored Workflow, matching the original extract_all/extract_incremental
// split (§4.4).
type Extractor struct {
	oracle Oracle
	store  WorkflowStore
	cfg    segment.Config
	logger *slog.Logger
}

func New(oracleAdapter Oracle, store WorkflowStore, cfg segment.Config, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{oracle: oracleAdapter, store: store, cfg: cfg, logger: logger}
}

// Result summarizes one extraction run (§4.4).
type Result struct {
	SegmentsBuilt   int
	WorkflowsSaved  int
	WorkflowsSkipped int
}

// ExtractAll segments the full ordered record list and saves every segment
// the oracle confirms as a workflow.
func (e *Extractor) ExtractAll(ctx context.Context, records []*capture.Record) (Result, error) {
	builder := segment.NewBuilder(e.cfg)
	var segments []*segment.Segment

	for _, r := range records {
		if seg := builder.Add(r); seg != nil {
			segments = append(segments, seg)
		}
	}
	if seg := builder.Flush(); seg != nil {
		segments = append(segments, seg)
	}

	return e.extractSegments(ctx, segments)
}

// ExtractIncremental processes only records not already named in processed,
// returning the updated processed set alongside the Result so the caller can
// persist it (§9: the processed log is appended to even when a capture
// yields no workflow).
func (e *Extractor) ExtractIncremental(ctx context.Context, records []*capture.Record, processed map[string]bool) (Result, map[string]bool, error) {
	builder := segment.NewBuilder(e.cfg)
	var segments []*segment.Segment
	updated := make(map[string]bool, len(processed))
	for k, v := range processed {
		updated[k] = v
	}

	for _, r := range records {
		if processed[r.SourcePath] {
			continue
		}
		if seg := builder.Add(r); seg != nil {
			segments = append(segments, seg)
		}
		updated[r.SourcePath] = true
	}
	if seg := builder.Flush(); seg != nil {
		segments = append(segments, seg)
	}

	result, err := e.extractSegments(ctx, segments)
	return result, updated, err
}

func (e *Extractor) extractSegments(ctx context.Context, segments []*segment.Segment) (Result, error) {
	var result Result
	result.SegmentsBuilt = len(segments)

	for _, seg := range segments {
		actionsText := segment.FormatActionsText(seg)
		analysis := e.oracle.AnalyzeWorkflowSegment(ctx, actionsText, seg.AppName)
		if analysis == nil {
			result.WorkflowsSkipped++
			continue
		}

		w := &workflow.Workflow{
			WorkflowID:       newWorkflowID(),
			Name:             analysis.Name,
			Description:      analysis.Description,
			Steps:            seg.Steps,
			AppName:          seg.AppName,
			Tags:             analysis.Tags,
			Parameters:       toWorkflowParameters(analysis.Parameters),
			Confidence:       analysis.Confidence,
			SourceSessionIDs: []string{seg.SessionID},
			CreatedAt:        seg.StartTime,
			Status:           workflow.StatusDraft,
		}
		applyParameterFlags(w)

		if err := e.store.SaveWithDedup(w); err != nil {
			e.logger.Warn("failed to save extracted workflow", "name", w.Name, "error", err)
			continue
		}
		result.WorkflowsSaved++
	}

	return result, nil
}

func toWorkflowParameters(hints []oracle.ParameterHint) []workflow.Parameter {
	params := make([]workflow.Parameter, 0, len(hints))
	for _, h := range hints {
		params = append(params, workflow.Parameter{
			Name:        h.Name,
			Description: h.Description,
			StepIndex:   h.StepIndex,
		})
	}
	return params
}

// applyParameterFlags marks the steps the oracle identified as
// parameterizable so playback can later substitute values into them.
func applyParameterFlags(w *workflow.Workflow) {
	for _, p := range w.Parameters {
		if p.StepIndex < 0 || p.StepIndex >= len(w.Steps) {
			continue
		}
		w.Steps[p.StepIndex].IsParameterized = true
		w.Steps[p.StepIndex].ParamName = p.Name
	}
}

func newWorkflowID() string {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("wf%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(buf)
}
