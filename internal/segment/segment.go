// Package segment implements C2: clustering an ordered CaptureRecord stream
// into time/app/size-bounded segments, and mapping each record to an
// ActionStep (§4.2).
package segment

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kazuyaegusa/deskautomata/internal/capture"
	"github.com/kazuyaegusa/deskautomata/internal/workflow"
)

// Segment is a time/app/size-bounded slice of an ordered record sequence
// (§4.2, GLOSSARY).
type Segment struct {
	SessionID string
	AppName   string
	Steps     []workflow.ActionStep
	Captures  []*capture.Record
	StartTime time.Time
	EndTime   time.Time
}

// Config holds the split thresholds (§4.2). The spec names two default
// pairs: 30s/100 records for workflow extraction, 300s/50 records for the
// pipeline session variant (§4.2, §9 supplemented pipeline knobs).
type Config struct {
	GapSeconds time.Duration
	MaxRecords int
}

// DefaultWorkflowConfig is the 30s/100-record extraction default.
func DefaultWorkflowConfig() Config {
	return Config{GapSeconds: 30 * time.Second, MaxRecords: 100}
}

// DefaultPipelineConfig is the 300s/50-record pipeline session variant.
func DefaultPipelineConfig() Config {
	return Config{GapSeconds: 300 * time.Second, MaxRecords: 50}
}

// Builder incrementally splits a stream of capture records into segments
// under the three split conditions of §4.2: temporal gap, app change, size
// cap — evaluated in that order, after at least one record is buffered.
type Builder struct {
	cfg     Config
	buffer  []*capture.Record
	lastApp string
}

// NewBuilder creates a Builder with cfg's thresholds.
func NewBuilder(cfg Config) *Builder {
	return &Builder{cfg: cfg}
}

// Add appends record to the buffer, returning a completed Segment if adding
// it triggered a split (the split boundary is evaluated against the
// buffered state before this record is appended, per §4.2).
func (b *Builder) Add(record *capture.Record) *Segment {
	var result *Segment

	if len(b.buffer) > 0 {
		shouldSplit := false

		prev := b.buffer[len(b.buffer)-1]
		if record.Timestamp.Sub(prev.Timestamp) >= b.cfg.GapSeconds {
			shouldSplit = true
		}
		if record.App.Name != b.lastApp {
			shouldSplit = true
		}
		if len(b.buffer) >= b.cfg.MaxRecords {
			shouldSplit = true
		}

		if shouldSplit {
			result = b.build(b.buffer)
			b.buffer = nil
		}
	}

	b.buffer = append(b.buffer, record)
	b.lastApp = record.App.Name
	return result
}

// Flush returns the remaining buffered records as a final Segment, or nil if
// the buffer is empty.
func (b *Builder) Flush() *Segment {
	if len(b.buffer) == 0 {
		return nil
	}
	seg := b.build(b.buffer)
	b.buffer = nil
	b.lastApp = ""
	return seg
}

func (b *Builder) build(records []*capture.Record) *Segment {
	steps := make([]workflow.ActionStep, 0, len(records))
	for _, r := range records {
		steps = append(steps, recordToStep(r))
	}

	sessionID := records[0].SessionHint.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	return &Segment{
		SessionID: sessionID,
		AppName:   records[0].App.Name,
		Steps:     steps,
		Captures:  append([]*capture.Record(nil), records...),
		StartTime: records[0].Timestamp,
		EndTime:   records[len(records)-1].Timestamp,
	}
}

// recordToStep maps one CaptureRecord to an ActionStep (§4.2): the
// "shortcut" producer type renames to "key_shortcut"; coordinates are taken
// from user_action, falling back to target.frame's origin; text and
// keystrokes/modifiers are copied verbatim; the screenshot path is
// preserved.
func recordToStep(r *capture.Record) workflow.ActionStep {
	actionType := r.UserAction.Type
	if actionType == "shortcut" {
		actionType = "key_shortcut"
	}

	x, y := int(r.UserAction.X), int(r.UserAction.Y)
	if x == 0 && y == 0 {
		x, y = int(r.Target.Frame.X), int(r.Target.Frame.Y)
	}

	modifiers := r.UserAction.Modifiers
	if len(modifiers) == 0 {
		modifiers = r.UserAction.Flags
	}

	return workflow.ActionStep{
		ActionType: workflow.ActionType(actionType),
		Target: workflow.Target{
			Role:        r.Target.Role,
			Title:       r.Target.Name,
			Value:       r.Target.Value,
			Description: r.Target.Description,
			Identifier:  r.Target.Identifier,
		},
		X:              x,
		Y:              y,
		Text:           r.UserAction.Text,
		Keycode:        r.UserAction.Keycode,
		Modifiers:      modifiers,
		ScreenshotPath: r.Screenshots.Full,
	}
}

// FormatActionsText renders a segment's captures into the compact text
// representation C4 hands to the oracle (§4.4): one line per capture,
// "[i] ts type target=… role=… value=… window=… text=… shortcut=…".
func FormatActionsText(seg *Segment) string {
	var b strings.Builder
	for i, c := range seg.Captures {
		fmt.Fprintf(&b, "[%d] %s %s target=%s role=%s value=%s window=%s text=%s shortcut=%s\n",
			i,
			c.Timestamp.Format(time.RFC3339),
			c.UserAction.Type,
			c.Target.Name,
			c.Target.Role,
			c.Target.Value,
			c.Window.Name,
			c.UserAction.Text,
			strings.Join(c.UserAction.Modifiers, "+"),
		)
	}
	return b.String()
}
