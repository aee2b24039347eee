package library

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/lucvincent/photoloop/config"
	"github.com/lucvincent/photoloop/pkg/media"
	"github.com/lucvincent/photoloop/util/log"
)

// CatalogFile is the name of the persisted catalog inside the cache
// directory.
const CatalogFile = "catalog.json"

// Store is the durable catalog of every known media entry plus the settings
// fingerprint, per-source sync times and the sync progress struct. All
// access goes through one lock; every mutation is persisted atomically
// before the lock is released.
type Store struct {
	mu sync.RWMutex

	cacheDir string
	path     string

	media       map[string]*media.Entry
	syncTimes   map[string]time.Time
	fingerprint config.SettingsFingerprint
	lastUpdated time.Time

	progress SyncProgress
}

// catalogFile is the on-disk document shape.
type catalogFile struct {
	Media          map[string]*media.Entry    `json:"media"`
	AlbumSyncTimes map[string]time.Time       `json:"album_sync_times"`
	LastUpdated    time.Time                  `json:"last_updated"`
	Settings       config.SettingsFingerprint `json:"settings"`
}

// NewStore creates a store rooted at cacheDir with the current settings
// fingerprint. Call Load before use.
func NewStore(cacheDir string, fp config.SettingsFingerprint) *Store {
	return &Store{
		cacheDir:    cacheDir,
		path:        filepath.Join(cacheDir, CatalogFile),
		media:       make(map[string]*media.Entry),
		syncTimes:   make(map[string]time.Time),
		fingerprint: fp,
		progress:    SyncProgress{Stage: StageIdle},
	}
}

// CacheDir returns the directory holding the catalog and downloaded bytes.
func (s *Store) CacheDir() string { return s.cacheDir }

// Load reads the catalog from disk and applies fingerprint invalidation.
// An absent file starts empty. An unreadable file resets the catalog to
// empty and continues; the operator will see zero photos and must
// investigate.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.cacheDir, 0755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading catalog: %w", err)
	}

	var doc catalogFile
	if err := json.Unmarshal(data, &doc); err != nil {
		log.Printf("Catalog file corrupt, starting empty: %v", err)
		s.media = make(map[string]*media.Entry)
		s.syncTimes = make(map[string]time.Time)
		return nil
	}

	stored := doc.Settings

	// Acquisition settings changed: every downloaded file is at the wrong
	// resolution. Drop the remote files and start over.
	if stored.AcquisitionChanged(s.fingerprint) && len(doc.Media) > 0 {
		log.Printf("Resolution settings changed (was %dpx/full=%v, now %dpx/full=%v), clearing cache",
			stored.MaxDimension, stored.FullResolution,
			s.fingerprint.MaxDimension, s.fingerprint.FullResolution)
		for _, e := range doc.Media {
			if e.SourceType == media.SourceRemoteAlbum && e.LocalPath != "" {
				if err := os.Remove(e.LocalPath); err != nil && !os.IsNotExist(err) {
					log.Debugf("Failed to remove %s: %v", e.LocalPath, err)
				}
			}
		}
		s.media = make(map[string]*media.Entry)
		if doc.AlbumSyncTimes != nil {
			s.syncTimes = doc.AlbumSyncTimes
		}
		s.saveLocked()
		return nil
	}

	s.media = doc.Media
	if s.media == nil {
		s.media = make(map[string]*media.Entry)
	}
	s.syncTimes = doc.AlbumSyncTimes
	if s.syncTimes == nil {
		s.syncTimes = make(map[string]time.Time)
	}

	switch {
	case stored.FaceChanged(s.fingerprint):
		// Face policy changed: detected faces and anything derived from
		// them are stale.
		log.Printf("Face detection settings changed, invalidating cached faces for %d items", len(s.media))
		for _, e := range s.media {
			e.CachedFaces = nil
			e.DisplayParams = nil
		}
		s.saveLocked()
	case stored.ScalingChanged(s.fingerprint):
		log.Printf("Scaling settings changed, invalidating display parameters for %d items (keeping cached faces)", len(s.media))
		for _, e := range s.media {
			e.DisplayParams = nil
		}
		s.saveLocked()
	}

	log.Printf("Loaded %d cached items from catalog", len(s.media))
	return nil
}

// saveLocked serializes the full state to a sibling temp file, fsyncs and
// renames into place. A crashed write leaves the previous file untouched.
// Caller must hold the lock.
func (s *Store) saveLocked() {
	s.lastUpdated = time.Now()
	doc := catalogFile{
		Media:          s.media,
		AlbumSyncTimes: s.syncTimes,
		LastUpdated:    s.lastUpdated,
		Settings:       s.fingerprint,
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		log.Printf("Store: failed to encode catalog: %v", err)
		return
	}

	tmp := s.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		log.Printf("Store: failed to create temp catalog: %v", err)
		return
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		log.Printf("Store: failed to write catalog: %v", err)
		return
	}
	if err := f.Sync(); err != nil {
		log.Printf("Store: fsync failed: %v", err)
	}
	f.Close()

	if err := os.Rename(tmp, s.path); err != nil {
		log.Printf("Store: failed to save catalog: %v", err)
	}
}

// Save forces a save of the catalog to disk.
func (s *Store) Save() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveLocked()
}

// Get returns a copy of the entry with the given id.
func (s *Store) Get(id string) (media.Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.media[id]
	if !ok {
		return media.Entry{}, false
	}
	return *e, true
}

// Put inserts or replaces an entry and persists. Idempotent.
func (s *Store) Put(e media.Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := e
	s.media[e.MediaID] = &cp
	s.saveLocked()
}

// Update mutates the entry with the given id under the lock and persists.
// Returns false when the id is unknown.
func (s *Store) Update(id string, fn func(*media.Entry)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.media[id]
	if !ok {
		return false
	}
	fn(e)
	s.saveLocked()
	return true
}

// AllActive returns copies of every non-deleted entry.
func (s *Store) AllActive() []media.Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]media.Entry, 0, len(s.media))
	for _, e := range s.media {
		if !e.Deleted {
			out = append(out, *e)
		}
	}
	return out
}

// CountByKind returns the number of active photos and videos.
func (s *Store) CountByKind() (photos, videos int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.media {
		if e.Deleted {
			continue
		}
		switch e.Kind {
		case media.KindPhoto:
			photos++
		case media.KindVideo:
			videos++
		}
	}
	return photos, videos
}

// TotalBytesOnDisk sums the file sizes of all entries whose bytes exist.
func (s *Store) TotalBytesOnDisk() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.totalBytesLocked()
}

func (s *Store) totalBytesLocked() int64 {
	var total int64
	for _, e := range s.media {
		if info, err := os.Stat(e.LocalPath); err == nil {
			total += info.Size()
		}
	}
	return total
}

// RecordSourceSync stamps the last successful sync time for a source.
func (s *Store) RecordSourceSync(name string, t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.syncTimes[name] = t
	s.saveLocked()
}

// SourceSyncTimes returns a copy of the per-source sync timestamps.
func (s *Store) SourceSyncTimes() map[string]time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]time.Time, len(s.syncTimes))
	for k, v := range s.syncTimes {
		out[k] = v
	}
	return out
}

// SetLocation records a reverse-geocoded location on an entry.
func (s *Store) SetLocation(id, location string) {
	s.Update(id, func(e *media.Entry) {
		e.ExifLocation = location
	})
}

// ClearAll removes the on-disk bytes of every entry it destroys and empties
// the catalog.
func (s *Store) ClearAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.media {
		if e.SourceType == media.SourceRemoteAlbum && e.LocalPath != "" {
			if err := os.Remove(e.LocalPath); err != nil && !os.IsNotExist(err) {
				log.Debugf("ClearAll: failed to remove %s: %v", e.LocalPath, err)
			}
		}
	}
	s.media = make(map[string]*media.Entry)
	s.saveLocked()
	log.Print("Catalog cleared")
}

// Progress returns a snapshot of the sync progress.
func (s *Store) Progress() SyncProgress {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.progress
}

// UpdateProgress mutates the sync progress under the catalog lock.
func (s *Store) UpdateProgress(fn func(*SyncProgress)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.progress)
}

// Fingerprint returns the settings fingerprint the catalog was opened with.
func (s *Store) Fingerprint() config.SettingsFingerprint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fingerprint
}

// SetFingerprint replaces the fingerprint after a config reload, clearing
// whatever artifacts the change invalidates, mirroring Load.
func (s *Store) SetFingerprint(fp config.SettingsFingerprint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	old := s.fingerprint
	s.fingerprint = fp

	switch {
	case old.AcquisitionChanged(fp):
		for _, e := range s.media {
			if e.SourceType == media.SourceRemoteAlbum && e.LocalPath != "" {
				if err := os.Remove(e.LocalPath); err != nil && !os.IsNotExist(err) {
					log.Debugf("Failed to remove %s: %v", e.LocalPath, err)
				}
			}
		}
		s.media = make(map[string]*media.Entry)
	case old.FaceChanged(fp):
		for _, e := range s.media {
			e.CachedFaces = nil
			e.DisplayParams = nil
		}
	case old.ScalingChanged(fp):
		for _, e := range s.media {
			e.DisplayParams = nil
		}
	default:
		return
	}
	s.saveLocked()
}
