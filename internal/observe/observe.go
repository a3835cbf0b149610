// Package observe implements C11, the State Observer: a thin, all-silent
// wrapper over platform screen/accessibility queries. Every method may fail
// silently; callers receive zero-valued/null fields rather than an error
// (§4.11).
package observe

import (
	"context"
	"log/slog"
	"time"
)

// Snapshot is the result of observe_current_state (§4.11).
type Snapshot struct {
	AppName        string
	ScreenshotPath string
	Timestamp      time.Time
}

// PositionObservation is the result of observe_at_position (§4.11).
type PositionObservation struct {
	AppName     string
	ElementRole string
	X           int
	Y           int
}

// Element is one entry from get_visible_elements (§4.11).
type Element struct {
	Role        string
	Title       string
	Description string
	Frame       [4]float64 // x, y, w, h
	Depth       int
}

// Platform is the OS-specific collaborator this package wraps (screenshot
// capture, frontmost-app lookup, accessibility tree walk). A concrete
// implementation is platform-specific and injected at construction;
// this package only owns the all-silent-failure contract around it.
type Platform interface {
	FrontmostApp(ctx context.Context) (string, error)
	Screenshot(ctx context.Context, prefix string) (string, error)
	ElementAt(ctx context.Context, x, y int) (PositionObservation, error)
	VisibleElements(ctx context.Context, pid int, maxDepth int) ([]Element, error)
}

// Observer is C11.
type Observer struct {
	platform Platform
	logger   *slog.Logger
	now      func() time.Time
}

func New(platform Platform, logger *slog.Logger) *Observer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Observer{platform: platform, logger: logger, now: time.Now}
}

// ObserveCurrentState returns {app, screenshot_path, timestamp}; a platform
// failure yields a Snapshot with empty fields rather than an error (§4.11).
func (o *Observer) ObserveCurrentState(ctx context.Context) Snapshot {
	snap := Snapshot{Timestamp: o.now()}

	app, err := o.platform.FrontmostApp(ctx)
	if err != nil {
		o.logger.Warn("observe_current_state: frontmost app lookup failed", "error", err)
	} else {
		snap.AppName = app
	}

	path, err := o.platform.Screenshot(ctx, "state")
	if err != nil {
		o.logger.Warn("observe_current_state: screenshot failed", "error", err)
	} else {
		snap.ScreenshotPath = path
	}

	return snap
}

// ObserveAtPosition returns {app, element, coordinates}, failing silently
// (§4.11).
func (o *Observer) ObserveAtPosition(ctx context.Context, x, y int) PositionObservation {
	obs, err := o.platform.ElementAt(ctx, x, y)
	if err != nil {
		o.logger.Warn("observe_at_position failed", "x", x, "y", y, "error", err)
		return PositionObservation{}
	}
	return obs
}

// TakeScreenshot returns a path, or "" on failure (§4.11).
func (o *Observer) TakeScreenshot(ctx context.Context, prefix string) string {
	path, err := o.platform.Screenshot(ctx, prefix)
	if err != nil {
		o.logger.Warn("take_screenshot failed", "prefix", prefix, "error", err)
		return ""
	}
	return path
}

// GetVisibleElements returns the accessibility tree up to maxDepth (default
// 5), or an empty slice on failure (§4.11).
func (o *Observer) GetVisibleElements(ctx context.Context, pid int, maxDepth int) []Element {
	if maxDepth <= 0 {
		maxDepth = 5
	}
	elements, err := o.platform.VisibleElements(ctx, pid, maxDepth)
	if err != nil {
		o.logger.Warn("get_visible_elements failed", "pid", pid, "error", err)
		return nil
	}
	return elements
}
