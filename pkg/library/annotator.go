package library

import (
	"os"

	"github.com/lucvincent/photoloop/pkg/media"
	"github.com/lucvincent/photoloop/util/log"
)

// EnsureFaces returns the entry's cached face rectangles, detecting and
// persisting them first when the scaling policy wants face-aware crops and
// nothing is cached yet. Concurrent requests for the same entry share one
// detection. A missing or failing detector yields no faces, never an error.
func (l *Library) EnsureFaces(e media.Entry) []media.FaceRegion {
	if e.Kind != media.KindPhoto {
		return nil
	}
	if e.CachedFaces != nil {
		log.Debugf("Using %d cached faces for %s", len(e.CachedFaces), e.MediaID)
		return e.CachedFaces
	}
	cfg := l.Config()
	if !cfg.Scaling.FaceDetection || l.faces == nil {
		return nil
	}

	v, err, _ := l.faceFlight.Do(e.MediaID, func() (interface{}, error) {
		faces, err := l.faces.Detect(e.LocalPath)
		if err != nil {
			return nil, err
		}
		if faces == nil {
			faces = []media.FaceRegion{}
		}
		l.store.Update(e.MediaID, func(en *media.Entry) {
			en.CachedFaces = faces
		})
		log.Debugf("Detected and cached %d faces for %s", len(faces), e.MediaID)
		return faces, nil
	})
	if err != nil {
		log.Debugf("Face detection failed for %s: %v", e.MediaID, err)
		return nil
	}
	return v.([]media.FaceRegion)
}

// MaybeGeocode spawns a background reverse-geocode lookup when the entry
// has GPS coordinates, no resolved location yet, and the overlay policy
// would display one. At most one lookup per entry is in flight; duplicates
// are dropped. The worker persists the result and notifies the renderer.
func (l *Library) MaybeGeocode(e media.Entry) {
	if l.geocoder == nil || !l.Config().Display.ShowLocation {
		return
	}
	if e.ExifLocation != "" || e.GPSLatitude == nil || e.GPSLongitude == nil {
		return
	}

	l.geoMu.Lock()
	if l.geoInProgress[e.MediaID] {
		l.geoMu.Unlock()
		return
	}
	l.geoInProgress[e.MediaID] = true
	l.geoMu.Unlock()

	lat, lon := *e.GPSLatitude, *e.GPSLongitude
	id := e.MediaID
	go func() {
		defer func() {
			l.geoMu.Lock()
			delete(l.geoInProgress, id)
			l.geoMu.Unlock()
		}()

		location, ok := l.geocoder.Reverse(lat, lon)
		if !ok || location == "" {
			return
		}
		l.store.SetLocation(id, location)
		l.notifyEntryUpdated(id)
		log.Debugf("Geocoded %s: %s", id, location)
	}()
}

// ExtractLocations resolves locations for cataloged photos that carry GPS
// coordinates but no caption or location yet. Maintenance pass; each
// location update is persisted to the catalog as it is made.
func (l *Library) ExtractLocations(progress func(current, total int)) int {
	if l.geocoder == nil {
		return 0
	}

	var todo []media.Entry
	for _, e := range l.store.AllActive() {
		if e.Kind != media.KindPhoto {
			continue
		}
		if e.BestCaption() != "" || e.BestLocation() != "" {
			continue
		}
		if e.GPSLatitude == nil || e.GPSLongitude == nil {
			continue
		}
		if _, err := os.Stat(e.LocalPath); err != nil {
			continue
		}
		todo = append(todo, e)
	}

	log.Printf("Extracting locations for %d photos without caption...", len(todo))
	updated := 0
	for i, e := range todo {
		if progress != nil {
			progress(i+1, len(todo))
		}
		location, ok := l.geocoder.Reverse(*e.GPSLatitude, *e.GPSLongitude)
		if !ok || location == "" {
			continue
		}
		l.store.SetLocation(e.MediaID, location)
		updated++
	}
	log.Printf("Extracted locations for %d photos", updated)
	return updated
}

// ExtractEmbeddedCaptions re-runs embedded metadata extraction for photos
// that have no embedded caption yet. Used to backfill catalogs written
// before captions were split by origin.
func (l *Library) ExtractEmbeddedCaptions(progress func(current, total int)) int {
	if l.metadata == nil {
		return 0
	}

	var todo []media.Entry
	for _, e := range l.store.AllActive() {
		if e.Kind != media.KindPhoto || e.EmbeddedCaption != "" {
			continue
		}
		if _, err := os.Stat(e.LocalPath); err != nil {
			continue
		}
		todo = append(todo, e)
	}

	log.Printf("Extracting embedded captions for %d photos...", len(todo))
	updated := 0
	for i, e := range todo {
		if progress != nil {
			progress(i+1, len(todo))
		}
		meta, err := l.metadata.Extract(e.LocalPath)
		if err != nil || meta.Caption == "" {
			continue
		}
		l.store.Update(e.MediaID, func(en *media.Entry) {
			en.EmbeddedCaption = meta.Caption
		})
		updated++
	}
	log.Printf("Extracted embedded captions for %d photos", updated)
	return updated
}
