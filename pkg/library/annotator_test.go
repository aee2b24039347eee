package library

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lucvincent/photoloop/config"
	"github.com/lucvincent/photoloop/pkg/media"
)

type fakeExtractor struct {
	meta Metadata
	err  error
}

func (f *fakeExtractor) Extract(path string) (Metadata, error) {
	return f.meta, f.err
}

func maintenanceLibrary(t *testing.T) *Library {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Cache.Directory = dir
	store := NewStore(dir, cfg.Fingerprint())
	require.NoError(t, store.Load())
	return New(cfg, store)
}

func putPhoto(t *testing.T, lib *Library, name string, mutate func(*media.Entry)) string {
	t.Helper()
	uri := "https://photos.example.com/" + name
	id := media.ID(uri)
	path := filepath.Join(lib.Store().CacheDir(), id+".jpg")
	writeFile(t, path, "bytes")
	e := media.Entry{
		MediaID:     id,
		SourceType:  media.SourceRemoteAlbum,
		URI:         uri,
		LocalPath:   path,
		Kind:        media.KindPhoto,
		AlbumSource: "S1",
		LastSeen:    time.Now(),
	}
	if mutate != nil {
		mutate(&e)
	}
	lib.Store().Put(e)
	return id
}

func TestExtractLocationsOnlyUncaptionedWithGPS(t *testing.T) {
	lib := maintenanceLibrary(t)
	geo := &fakeGeocoder{result: "Boulder, CO"}
	lib.SetGeocoder(geo)

	lat, lon := 40.015, -105.271
	wantID := putPhoto(t, lib, "bare", func(e *media.Entry) {
		e.GPSLatitude = &lat
		e.GPSLongitude = &lon
	})
	// Already captioned: skipped even with coordinates.
	putPhoto(t, lib, "captioned", func(e *media.Entry) {
		e.GPSLatitude = &lat
		e.GPSLongitude = &lon
		e.RemoteCaption = "the mountains"
	})
	// No coordinates: nothing to resolve.
	putPhoto(t, lib, "nogps", nil)

	var progress [][2]int
	updated := lib.ExtractLocations(func(current, total int) {
		progress = append(progress, [2]int{current, total})
	})

	assert.Equal(t, 1, updated)
	assert.Equal(t, int32(1), geo.calls.Load())
	require.NotEmpty(t, progress)
	assert.Equal(t, [2]int{1, 1}, progress[len(progress)-1])

	got, _ := lib.Store().Get(wantID)
	assert.Equal(t, "Boulder, CO", got.ExifLocation)
}

func TestExtractEmbeddedCaptionsBackfills(t *testing.T) {
	lib := maintenanceLibrary(t)
	lib.SetMetadataExtractor(&fakeExtractor{meta: Metadata{Caption: "scanned slide, 1972"}})

	wantID := putPhoto(t, lib, "old", nil)
	putPhoto(t, lib, "done", func(e *media.Entry) {
		e.EmbeddedCaption = "already present"
	})

	updated := lib.ExtractEmbeddedCaptions(nil)
	assert.Equal(t, 1, updated)

	got, _ := lib.Store().Get(wantID)
	assert.Equal(t, "scanned slide, 1972", got.EmbeddedCaption)

	kept, _ := lib.Store().Get(media.ID("https://photos.example.com/done"))
	assert.Equal(t, "already present", kept.EmbeddedCaption)
}

func TestExtractorsWithoutCollaborators(t *testing.T) {
	lib := maintenanceLibrary(t)
	putPhoto(t, lib, "one", nil)

	assert.Equal(t, 0, lib.ExtractLocations(nil))
	assert.Equal(t, 0, lib.ExtractEmbeddedCaptions(nil))
}
