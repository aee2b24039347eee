// Package library is the media library engine: the persistent catalog, the
// source reconciliation cycle, the playlist, cache-size enforcement and the
// lazy annotators.
package library

import (
	"math/rand"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/lucvincent/photoloop/config"
	"github.com/lucvincent/photoloop/pkg/processor"
	"github.com/lucvincent/photoloop/pkg/source"
)

// Metadata carries the semantic outputs of embedded-metadata extraction.
// The byte-level parsing lives behind the MetadataExtractor contract.
type Metadata struct {
	DateTaken    *time.Time
	Caption      string
	GPSLatitude  *float64
	GPSLongitude *float64
	Width        int
	Height       int
}

// MetadataExtractor extracts embedded EXIF/IPTC/XMP metadata from a file.
type MetadataExtractor interface {
	Extract(path string) (Metadata, error)
}

// Geocoder resolves coordinates to a display location. Implementations must
// rate-limit themselves; empty result with ok=false means unresolvable.
type Geocoder interface {
	Reverse(lat, lon float64) (string, bool)
}

// Library owns the catalog store and coordinates syncing, playback order
// and lazy annotation.
type Library struct {
	cfgMu sync.RWMutex
	cfg   *config.Config

	store      *Store
	httpClient *http.Client

	inspector source.Inspector
	metadata  MetadataExtractor
	faces     processor.FaceDetector
	geocoder  Geocoder
	engine    *processor.Engine

	// Guards whole sync cycles; a failed TryLock means a sync is already
	// running and the request is dropped.
	syncMu sync.Mutex

	// Playlist cursor state.
	plMu     sync.Mutex
	playlist []string
	plIndex  int
	rng      *rand.Rand

	// One annotation task per entry at a time.
	faceFlight    singleflight.Group
	geoMu         sync.Mutex
	geoInProgress map[string]bool

	onEntryUpdated func(mediaID string)
}

// New creates a library over the given store. Collaborators are attached
// with the Set* methods; all of them are optional at runtime.
func New(cfg *config.Config, store *Store) *Library {
	return &Library{
		cfg:   cfg,
		store: store,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Sync.TimeoutSeconds) * time.Second,
		},
		rng:           rand.New(rand.NewSource(time.Now().UnixNano())),
		geoInProgress: make(map[string]bool),
	}
}

// Store exposes the catalog store.
func (l *Library) Store() *Store { return l.store }

// SetInspector attaches the remote album inspector collaborator.
func (l *Library) SetInspector(i source.Inspector) { l.inspector = i }

// SetMetadataExtractor attaches the embedded-metadata collaborator.
func (l *Library) SetMetadataExtractor(m MetadataExtractor) { l.metadata = m }

// SetFaceDetector attaches the face detection collaborator.
func (l *Library) SetFaceDetector(f processor.FaceDetector) { l.faces = f }

// SetGeocoder attaches the reverse-geocoding collaborator.
func (l *Library) SetGeocoder(g Geocoder) { l.geocoder = g }

// SetOnEntryUpdated registers the callback invoked when a background
// annotation changes an entry that may currently be on screen.
func (l *Library) SetOnEntryUpdated(fn func(mediaID string)) { l.onEntryUpdated = fn }

// Config returns the current configuration snapshot.
func (l *Library) Config() *config.Config {
	l.cfgMu.RLock()
	defer l.cfgMu.RUnlock()
	return l.cfg
}

// SetConfig swaps in a reloaded configuration, propagates the new settings
// fingerprint to the store and rebuilds the playlist.
func (l *Library) SetConfig(cfg *config.Config) {
	l.cfgMu.Lock()
	l.cfg = cfg
	l.httpClient.Timeout = time.Duration(cfg.Sync.TimeoutSeconds) * time.Second
	l.cfgMu.Unlock()

	l.store.SetFingerprint(cfg.Fingerprint())
	l.RebuildPlaylist()
}

// HasEnabledSources reports whether any source is enabled for display.
func (l *Library) HasEnabledSources() bool {
	return l.Config().HasEnabledSources()
}

// adapters builds one adapter per enabled source from the current config.
func (l *Library) adapters() []source.Adapter {
	cfg := l.Config()
	var out []source.Adapter
	for _, sc := range cfg.Sources {
		if !sc.Enabled {
			continue
		}
		switch sc.Type {
		case "local":
			if sc.Path != "" {
				out = append(out, source.NewLocal(sc.Label(), sc.Path))
			}
		case "remote_album":
			if sc.URL != "" {
				out = append(out, source.NewRemoteAlbum(sc.Label(), sc.URL, l.inspector))
			}
		}
	}
	return out
}

func (l *Library) notifyEntryUpdated(id string) {
	if l.onEntryUpdated != nil {
		l.onEntryUpdated(id)
	}
}
