package frame

import (
	"github.com/lucvincent/photoloop/pkg/media"
	"github.com/lucvincent/photoloop/pkg/schedule"
)

// Renderer is the display collaborator. It owns the screen, the dwell
// timer and the transition state; the orchestrator only ever talks to it
// from the display goroutine because it is not thread safe — with the one
// exception of NotifyEntryUpdated, which implementations must make safe to
// call from annotation workers.
type Renderer interface {
	// Show hands the next entry and its display parameters to the screen.
	// transition requests an animated change from the previous item. The
	// renderer restarts its dwell timer.
	Show(entry media.Entry, params media.DisplayParams, transition bool)
	// SetMode switches between slideshow, clock and black.
	SetMode(mode schedule.Mode)
	// Update runs one frame of event handling and drawing, pacing the tick
	// loop. It returns false when the renderer wants the process to exit.
	Update() bool
	// IsTransitionComplete reports whether the current transition is idle.
	IsTransitionComplete() bool
	// IsDwellElapsed reports whether the current item has been on screen
	// for its full duration.
	IsDwellElapsed() bool
	// SkipNextRequested consumes a pending skip-forward request.
	SkipNextRequested() bool
	// SkipPreviousRequested consumes a pending skip-back request.
	SkipPreviousRequested() bool
	// Resolution returns the current screen resolution.
	Resolution() (width, height int)
	// NotifyEntryUpdated marks an entry for redraw after a background
	// annotation changed it.
	NotifyEntryUpdated(mediaID string)
}
