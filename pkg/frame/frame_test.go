package frame

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lucvincent/photoloop/config"
	"github.com/lucvincent/photoloop/pkg/library"
	"github.com/lucvincent/photoloop/pkg/media"
	"github.com/lucvincent/photoloop/pkg/schedule"
)

// mockRenderer records calls and lets tests script dwell and skip state.
type mockRenderer struct {
	shown        []string
	modes        []schedule.Mode
	dwellElapsed bool
	transitionOK bool
	skipNext     bool
	skipPrev     bool
	updated      int
	notified     []string
}

func (m *mockRenderer) Show(e media.Entry, p media.DisplayParams, transition bool) {
	m.shown = append(m.shown, e.MediaID)
	m.dwellElapsed = false
}

func (m *mockRenderer) SetMode(mode schedule.Mode) { m.modes = append(m.modes, mode) }

func (m *mockRenderer) Update() bool { m.updated++; return true }

func (m *mockRenderer) IsTransitionComplete() bool { return m.transitionOK }

func (m *mockRenderer) IsDwellElapsed() bool { return m.dwellElapsed }

func (m *mockRenderer) SkipNextRequested() bool {
	v := m.skipNext
	m.skipNext = false
	return v
}

func (m *mockRenderer) SkipPreviousRequested() bool {
	v := m.skipPrev
	m.skipPrev = false
	return v
}

func (m *mockRenderer) Resolution() (int, int) { return 1920, 1080 }

func (m *mockRenderer) NotifyEntryUpdated(id string) { m.notified = append(m.notified, id) }

func alwaysSlideshow() config.ScheduleConfig {
	return config.ScheduleConfig{Enabled: false}
}

func testFrame(t *testing.T, entries int) (*Frame, *mockRenderer, *library.Library) {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Cache.Directory = dir
	cfg.Display.Order = "alphabetical"
	cfg.KenBurns.Enabled = false
	cfg.Scaling.FaceDetection = false
	cfg.Schedule = alwaysSlideshow()
	cfg.Sources = []config.SourceConfig{{Name: "Test", Type: "local", Path: dir, Enabled: true}}

	store := library.NewStore(dir, cfg.Fingerprint())
	require.NoError(t, store.Load())
	lib := library.New(cfg, store)

	for i := 0; i < entries; i++ {
		name := string(rune('a'+i)) + ".jpg"
		path := filepath.Join(dir, name)
		require.NoError(t, writeTestFile(path))
		uri := "file://" + path
		mt := time.Now()
		store.Put(media.Entry{
			MediaID:     media.ID(uri),
			SourceType:  media.SourceLocal,
			URI:         uri,
			LocalPath:   path,
			Kind:        media.KindPhoto,
			AlbumSource: "Test",
			LastSeen:    time.Now(),
			FileMtime:   &mt,
		})
	}
	lib.RebuildPlaylist()

	r := &mockRenderer{transitionOK: true}
	f := New(lib, schedule.New(cfg.Schedule), r)
	return f, r, lib
}

func TestTickShowsFirstItemImmediately(t *testing.T) {
	f, r, _ := testFrame(t, 2)

	assert.True(t, f.Tick(time.Now()))
	require.Len(t, r.shown, 1)
	assert.Equal(t, []schedule.Mode{schedule.ModeSlideshow}, r.modes)
	assert.Equal(t, 1, r.updated)
}

func TestTickHoldsUntilDwellElapsed(t *testing.T) {
	f, r, _ := testFrame(t, 2)

	f.Tick(time.Now())
	require.Len(t, r.shown, 1)

	// Dwell not elapsed: nothing advances.
	f.Tick(time.Now())
	assert.Len(t, r.shown, 1)

	// Dwell elapsed but transition still running: hold.
	r.dwellElapsed = true
	r.transitionOK = false
	f.Tick(time.Now())
	assert.Len(t, r.shown, 1)

	// Both conditions met: advance.
	r.transitionOK = true
	f.Tick(time.Now())
	assert.Len(t, r.shown, 2)
	assert.NotEqual(t, r.shown[0], r.shown[1])
}

func TestTickSkipRequestsBypassDwell(t *testing.T) {
	f, r, _ := testFrame(t, 3)

	f.Tick(time.Now())
	require.Len(t, r.shown, 1)

	r.skipNext = true
	f.Tick(time.Now())
	require.Len(t, r.shown, 2)

	r.skipPrev = true
	f.Tick(time.Now())
	require.Len(t, r.shown, 3)
	// next, next, previous revisits the first item.
	assert.Equal(t, r.shown[0], r.shown[2])
}

func TestTickControlSurfaceSkip(t *testing.T) {
	f, r, _ := testFrame(t, 2)

	f.Tick(time.Now())
	f.RequestNext()
	f.Tick(time.Now())
	assert.Len(t, r.shown, 2)
}

func TestTickPauseSuspendsAutoAdvance(t *testing.T) {
	f, r, _ := testFrame(t, 2)

	f.Tick(time.Now())
	f.Pause()
	r.dwellElapsed = true
	f.Tick(time.Now())
	assert.Len(t, r.shown, 1, "paused frame must not auto-advance")

	// Manual skip still works while paused.
	r.skipNext = true
	f.Tick(time.Now())
	assert.Len(t, r.shown, 2)

	f.Resume()
	r.dwellElapsed = true
	f.Tick(time.Now())
	assert.Len(t, r.shown, 3)
}

func TestTickNoEnabledSourcesForcesBlack(t *testing.T) {
	f, r, lib := testFrame(t, 2)

	cfg := *lib.Config()
	cfg.Sources = nil
	lib.SetConfig(&cfg)

	f.Tick(time.Now())
	require.NotEmpty(t, r.modes)
	assert.Equal(t, schedule.ModeBlack, r.modes[len(r.modes)-1])
	assert.Empty(t, r.shown)
}

func TestTickScheduleBlackShowsNothing(t *testing.T) {
	f, r, lib := testFrame(t, 2)

	sched := schedule.New(config.ScheduleConfig{
		Enabled: true,
		Weekday: []config.EventConfig{{StartTime: "00:00", EndTime: "24:00", Mode: "black"}},
		Weekend: []config.EventConfig{{StartTime: "00:00", EndTime: "24:00", Mode: "black"}},
	})
	f2 := New(lib, sched, r)

	f2.Tick(time.Now())
	assert.Equal(t, schedule.ModeBlack, r.modes[len(r.modes)-1])
	assert.Empty(t, r.shown)
	_ = f
}

func TestUntilWallClock(t *testing.T) {
	now := time.Date(2026, 3, 9, 10, 0, 0, 0, time.Local)

	d := untilWallClock(now, "11:30")
	assert.Equal(t, 90*time.Minute, d)

	// Already past today: anchor to tomorrow.
	d = untilWallClock(now, "09:00")
	assert.Equal(t, 23*time.Hour, d)

	assert.Equal(t, time.Duration(0), untilWallClock(now, "bogus"))
}

func writeTestFile(path string) error {
	return writeBytes(path, []byte("test bytes"))
}

func writeBytes(path string, data []byte) error {
	return os.WriteFile(path, data, 0644)
}
