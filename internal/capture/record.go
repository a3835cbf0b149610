// Package capture implements C1 Capture Ingest: discovering, parsing, and
// marking-processed the CaptureRecord JSON files an external event-tap
// collaborator drops into the watch directory (§4.1).
package capture

import (
	"encoding/json"
	"time"

	"github.com/kazuyaegusa/deskautomata/pkg/rawjson"
)

// UserAction is the discriminated variant describing what the user did
// (§3). Only the fields relevant to Type are populated by the producer; the
// rest are zero values.
type UserAction struct {
	Type       string   `json:"type"`
	Button     string   `json:"button,omitempty"`
	X          float64  `json:"x,omitempty"`
	Y          float64  `json:"y,omitempty"`
	Text       string   `json:"text,omitempty"`
	Keystrokes []string `json:"keystrokes,omitempty"`
	Keycode    int      `json:"keycode,omitempty"`
	Flags      []string `json:"flags,omitempty"`
	Modifiers  []string `json:"modifiers,omitempty"`
	Key        string   `json:"key,omitempty"`
}

// Frame is a screen rectangle, used both for element frames and window bounds.
type Frame struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Target describes the UI element the action was performed on.
type Target struct {
	Role        string `json:"role,omitempty"`
	Name        string `json:"name,omitempty"`
	Value       string `json:"value,omitempty"`
	Description string `json:"description,omitempty"`
	Identifier  string `json:"identifier,omitempty"`
	Frame       Frame  `json:"frame,omitempty"`
	IsSecure    bool   `json:"is_secure,omitempty"`
}

// App identifies the frontmost application at capture time.
type App struct {
	Name     string `json:"name"`
	BundleID string `json:"bundle_id,omitempty"`
	PID      int    `json:"pid,omitempty"`
}

// Browser carries browser-specific context when the app is a browser.
type Browser struct {
	IsBrowser bool   `json:"is_browser"`
	URL       string `json:"url,omitempty"`
	PageTitle string `json:"page_title,omitempty"`
}

// Window describes the frontmost window.
type Window struct {
	Name   string `json:"name,omitempty"`
	Bounds Frame  `json:"bounds,omitempty"`
}

// Screenshots holds the paths captured alongside the action.
type Screenshots struct {
	Full    string `json:"full,omitempty"`
	Cropped string `json:"cropped,omitempty"`
}

// SessionHint is whatever session/sequence info the producer already knows;
// the Segmenter (C2) computes its own segments independently of this.
type SessionHint struct {
	SessionID string `json:"session_id,omitempty"`
	Sequence  int    `json:"sequence,omitempty"`
}

var recordKnownKeys = map[string]bool{
	"capture_id": true, "timestamp": true, "session_hint": true,
	"user_action": true, "target": true, "app": true, "browser": true,
	"window": true, "screenshots": true,
}

// Record is one CaptureRecord (§3), produced by the external event-tap
// collaborator and consumed-but-never-mutated by C1.
type Record struct {
	CaptureID   string      `json:"capture_id"`
	Timestamp   time.Time   `json:"timestamp"`
	SessionHint SessionHint `json:"session_hint,omitempty"`
	UserAction  UserAction  `json:"user_action"`
	Target      Target      `json:"target,omitempty"`
	App         App         `json:"app"`
	Browser     Browser     `json:"browser,omitempty"`
	Window      Window      `json:"window,omitempty"`
	Screenshots Screenshots `json:"screenshots,omitempty"`

	// SourcePath is the absolute path of the JSON file this record was read
	// from. Not part of the wire format; used for dedup and cleanup (§3).
	SourcePath string `json:"-"`

	// Extra preserves any JSON keys the producer writes that this struct
	// doesn't model, so a read-then-write round-trip doesn't drop data.
	Extra map[string]json.RawMessage `json:"-"`
}

type recordAlias Record

// UnmarshalJSON keeps unknown top-level keys in Extra.
func (r *Record) UnmarshalJSON(data []byte) error {
	var aux recordAlias
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	extra, err := rawjson.ExtractUnknown(data, recordKnownKeys)
	if err != nil {
		return err
	}
	*r = Record(aux)
	r.Extra = extra
	return nil
}

// MarshalJSON re-merges Extra back into the output.
func (r Record) MarshalJSON() ([]byte, error) {
	known, err := json.Marshal(recordAlias(r))
	if err != nil {
		return nil, err
	}
	return rawjson.Merge(known, r.Extra)
}
