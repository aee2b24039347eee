// Package frame is the lifecycle orchestrator: the display tick loop that
// turns schedule state and the catalog into the next item on screen, and
// the background goroutine that drives periodic syncs.
package frame

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lucvincent/photoloop/pkg/library"
	"github.com/lucvincent/photoloop/pkg/media"
	"github.com/lucvincent/photoloop/pkg/schedule"
	"github.com/lucvincent/photoloop/util/log"
)

// syncStartDelay is how long after startup the optional initial sync runs.
const syncStartDelay = 30 * time.Second

// Frame wires the library, the schedule engine and the renderer together.
type Frame struct {
	lib      *library.Library
	sched    *schedule.Engine
	renderer Renderer

	shutdown   chan struct{}
	stopOnce   sync.Once
	syncCtx    context.Context
	syncCancel context.CancelFunc
	syncSoon   chan library.SyncFlags
	paused     atomic.Bool
	skipNext   atomic.Bool
	skipPrev   atomic.Bool
	syncWG     sync.WaitGroup

	// Display-goroutine state; never touched elsewhere.
	current  *media.Entry
	lastMode schedule.Mode
}

// New creates the orchestrator.
func New(lib *library.Library, sched *schedule.Engine, renderer Renderer) *Frame {
	ctx, cancel := context.WithCancel(context.Background())
	f := &Frame{
		lib:        lib,
		sched:      sched,
		renderer:   renderer,
		shutdown:   make(chan struct{}),
		syncCtx:    ctx,
		syncCancel: cancel,
		syncSoon:   make(chan library.SyncFlags, 1),
	}
	lib.SetOnEntryUpdated(renderer.NotifyEntryUpdated)
	return f
}

// Stop requests a cooperative shutdown: the sync goroutine's sleeps return
// early and the tick loop exits on its next pass.
func (f *Frame) Stop() {
	f.stopOnce.Do(func() {
		close(f.shutdown)
		f.syncCancel()
	})
}

// RequestSync queues a sync to run as soon as possible. One request is held
// and runs after any cycle in progress; further requests made while one is
// already pending are dropped.
func (f *Frame) RequestSync(flags library.SyncFlags) {
	select {
	case f.syncSoon <- flags:
	default:
	}
}

// RequestNext asks the tick loop to advance at its next pass, matching a
// skip request raised by the renderer's own input handling.
func (f *Frame) RequestNext() { f.skipNext.Store(true) }

// RequestPrevious asks the tick loop to step back at its next pass.
func (f *Frame) RequestPrevious() { f.skipPrev.Store(true) }

// Pause suspends automatic advancing; skip requests still work.
func (f *Frame) Pause() { f.paused.Store(true) }

// Resume re-enables automatic advancing.
func (f *Frame) Resume() { f.paused.Store(false) }

// Paused reports whether auto-advance is suspended.
func (f *Frame) Paused() bool { return f.paused.Load() }

// Run starts the sync goroutine and blocks in the display tick loop until
// the renderer quits or Stop is called.
func (f *Frame) Run() {
	f.syncWG.Add(1)
	go f.syncLoop()

	log.Print("PhotoLoop started")
	for {
		select {
		case <-f.shutdown:
			f.syncWG.Wait()
			return
		default:
		}
		if !f.safeTick() {
			f.Stop()
		}
	}
}

// safeTick runs one tick, swallowing anything unexpected so a bad image or
// a flaky collaborator cannot kill the display loop.
func (f *Frame) safeTick() (keepRunning bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Error in display loop: %v", r)
			time.Sleep(time.Second)
			keepRunning = true
		}
	}()
	return f.Tick(time.Now())
}

// Tick runs one pass of the display loop at the given time. Returns false
// when the renderer requested exit.
func (f *Frame) Tick(now time.Time) bool {
	mode := f.sched.Mode(now)
	if !f.lib.HasEnabledSources() {
		mode = schedule.ModeBlack
	}

	if mode != f.lastMode {
		log.Printf("Display mode: %s", mode)
		f.renderer.SetMode(mode)
		f.lastMode = mode
		if mode != schedule.ModeSlideshow {
			// Reset so resuming loads a fresh item.
			f.current = nil
		}
	}

	if mode == schedule.ModeSlideshow {
		goNext := f.renderer.SkipNextRequested() || f.skipNext.Swap(false)
		goPrev := f.renderer.SkipPreviousRequested() || f.skipPrev.Swap(false)
		advance := f.current == nil || goNext || goPrev ||
			(!f.paused.Load() && f.renderer.IsDwellElapsed() && f.renderer.IsTransitionComplete())

		if advance {
			var e media.Entry
			var ok bool
			if goPrev {
				e, ok = f.lib.Previous()
			} else {
				e, ok = f.lib.Next()
			}
			if ok {
				w, h := f.renderer.Resolution()
				params := f.lib.DisplayParams(e, w, h)
				f.renderer.Show(e, params, f.current != nil)
				f.current = &e
				log.Debugf("Displaying %s", e.LocalPath)
			} else if f.current == nil {
				log.Print("No media available to display")
			}
		}
	}

	return f.renderer.Update()
}

// syncLoop drives scheduled syncs: an optional initial sync shortly after
// startup, an optional wall-clock anchor for the first interval sync, then
// a steady cadence. Manual requests and local-source changes arrive on
// syncSoon and run immediately.
func (f *Frame) syncLoop() {
	defer f.syncWG.Done()
	cfg := f.lib.Config()
	interval := time.Duration(cfg.Sync.IntervalMinutes) * time.Minute

	runSync := func(flags library.SyncFlags) {
		if _, err := f.lib.Sync(f.syncCtx, flags); err != nil {
			log.Printf("Sync skipped: %v", err)
		}
	}

	if cfg.Sync.SyncOnStart {
		log.Printf("Sync on start enabled, will sync in %s...", syncStartDelay)
		if f.wait(syncStartDelay, runSync) {
			return
		}
		runSync(library.SyncFlags{})
	}

	if cfg.Sync.IntervalMinutes <= 0 {
		log.Print("Automatic sync disabled (interval=0)")
		// Still serve manual requests until shutdown.
		for {
			select {
			case <-f.shutdown:
				return
			case flags := <-f.syncSoon:
				runSync(flags)
			}
		}
	}

	// Anchor the first scheduled cycle to a wall-clock time when one is
	// configured; otherwise space it one interval from now.
	if cfg.Sync.SyncTime != "" {
		wait := untilWallClock(time.Now(), cfg.Sync.SyncTime)
		log.Printf("Waiting until %s for first scheduled sync", cfg.Sync.SyncTime)
		if f.wait(wait, runSync) {
			return
		}
	} else if !cfg.Sync.SyncOnStart {
		if f.wait(interval, runSync) {
			return
		}
	}

	for {
		runSync(library.SyncFlags{})
		if f.wait(interval, runSync) {
			return
		}
	}
}

// wait sleeps for d, returning true on shutdown. Manual sync requests
// arriving during the sleep run immediately without ending the wait.
func (f *Frame) wait(d time.Duration, runSync func(library.SyncFlags)) (stopped bool) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	for {
		select {
		case <-f.shutdown:
			return true
		case flags := <-f.syncSoon:
			runSync(flags)
		case <-timer.C:
			return false
		}
	}
}

// untilWallClock computes the wait until the next occurrence of the
// "HH:MM" wall-clock time.
func untilWallClock(now time.Time, hhmm string) time.Duration {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		return 0
	}
	next := time.Date(now.Year(), now.Month(), now.Day(), t.Hour(), t.Minute(), 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next.Sub(now)
}
