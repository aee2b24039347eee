package main

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/lucvincent/photoloop/config"
	"github.com/lucvincent/photoloop/pkg/media"
	"github.com/lucvincent/photoloop/pkg/schedule"
	"github.com/lucvincent/photoloop/util/log"
)

// headlessRenderer satisfies the renderer contract without a display. It
// keeps the dwell timer honest and logs what would be shown, which is all
// the core needs to run end to end on a box with no screen.
type headlessRenderer struct {
	width    int
	height   int
	duration time.Duration

	mu       sync.Mutex
	shownAt  time.Time
	hasItem  bool
	lastMode schedule.Mode
}

func newHeadlessRenderer(cfg *config.Config) *headlessRenderer {
	return &headlessRenderer{
		width:    3840,
		height:   2160,
		duration: time.Duration(cfg.Display.PhotoDurationSeconds * float64(time.Second)),
	}
}

func (r *headlessRenderer) Show(entry media.Entry, params media.DisplayParams, transition bool) {
	r.mu.Lock()
	r.shownAt = time.Now()
	r.hasItem = true
	r.mu.Unlock()
	log.Printf("Showing %s (crop %.2f,%.2f %.2fx%.2f)", filepath.Base(entry.LocalPath),
		params.CropRegion.X, params.CropRegion.Y, params.CropRegion.Width, params.CropRegion.Height)
}

func (r *headlessRenderer) SetMode(mode schedule.Mode) {
	r.mu.Lock()
	r.lastMode = mode
	r.mu.Unlock()
}

func (r *headlessRenderer) Update() bool {
	time.Sleep(250 * time.Millisecond)
	return true
}

func (r *headlessRenderer) IsTransitionComplete() bool { return true }

func (r *headlessRenderer) IsDwellElapsed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hasItem && time.Since(r.shownAt) >= r.duration
}

func (r *headlessRenderer) SkipNextRequested() bool     { return false }
func (r *headlessRenderer) SkipPreviousRequested() bool { return false }

func (r *headlessRenderer) Resolution() (int, int) { return r.width, r.height }

func (r *headlessRenderer) NotifyEntryUpdated(mediaID string) {
	log.Debugf("Entry updated: %s", mediaID)
}
