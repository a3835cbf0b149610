// Package probe defines the UI-Probe contract (§6): the external capability
// that locates and actuates UI elements. This package holds only the
// interface; a concrete implementation is a platform-specific collaborator
// outside this module's scope.
package probe

import "context"

// MatchMethod names how find_element resolved its result (§6).
type MatchMethod string

const (
	MatchIdentifier        MatchMethod = "identifier"
	MatchValue              MatchMethod = "value"
	MatchDescription        MatchMethod = "description"
	MatchTitleRole          MatchMethod = "title_role"
	MatchRole               MatchMethod = "role"
	MatchAppWideIdentifier  MatchMethod = "app_wide_identifier"
	MatchAppWideDescription MatchMethod = "app_wide_description"
	MatchCoordinateFallback MatchMethod = "coordinate_fallback"
)

// TargetDescriptor is what find_element searches for.
type TargetDescriptor struct {
	Role        string
	Title       string
	Value       string
	Description string
	Identifier  string
}

// ElementMatch is find_element's result.
type ElementMatch struct {
	X      int
	Y      int
	Method MatchMethod
}

// Probe is the UI-Probe contract (§6).
type Probe interface {
	ActivateApp(ctx context.Context, bundleID string) error
	Click(ctx context.Context, x, y int, button string) error
	TypeKeys(ctx context.Context, keycode int, flags []string, text string) error
	FindElement(ctx context.Context, target TargetDescriptor) (ElementMatch, error)
}
