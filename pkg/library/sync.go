package library

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/lucvincent/photoloop/pkg/media"
	"github.com/lucvincent/photoloop/pkg/source"
	"github.com/lucvincent/photoloop/util/log"
)

// ErrSyncInProgress is returned when a sync request arrives while a cycle
// is already running. Requests are dropped, not queued.
var ErrSyncInProgress = errors.New("sync already in progress")

// SyncFlags select the optional behaviors of a sync cycle.
type SyncFlags struct {
	// ForceFull re-acquires every item even when already cataloged.
	ForceFull bool
	// UpdateAllMissingMetadata fetches remote metadata for every remote
	// photo that has never had a fetch attempt.
	UpdateAllMissingMetadata bool
	// ForceRefetchAllMetadata clears the fetched flag on every remote
	// photo and re-fetches all of them.
	ForceRefetchAllMetadata bool
}

// Sync runs one full reconciliation cycle across all enabled sources.
// Concurrent calls are rejected with ErrSyncInProgress.
func (l *Library) Sync(ctx context.Context, flags SyncFlags) (SyncStats, error) {
	if !l.syncMu.TryLock() {
		log.Print("Sync already in progress, skipping")
		return SyncStats{}, ErrSyncInProgress
	}
	defer l.syncMu.Unlock()
	return l.doSync(ctx, flags), nil
}

// entryUpdate is one pre-computed mutation of an existing entry, applied
// under a single catalog lock so its fields are observed atomically.
type entryUpdate struct {
	id      string
	refresh bool   // bump last_seen, clear tombstone
	album   string // new album source when non-empty
	caption string // inventory-time remote caption when non-empty

	tombstone bool // local file vanished from disk

	reindex bool // local file changed, entry re-extracted
	entry   media.Entry
}

func (l *Library) doSync(ctx context.Context, flags SyncFlags) SyncStats {
	var stats SyncStats
	cfg := l.Config()
	now := time.Now()
	cycleID := uuid.NewString()

	log.Print("Starting source sync...")

	adapters := l.adapters()
	enabledNames := cfg.EnabledSourceLabels()

	// Snapshot for the deletion safety gate before anything changes.
	priorActive := 0
	for _, e := range l.store.AllActive() {
		if enabledNames[e.AlbumSource] {
			priorActive++
		}
	}

	l.store.UpdateProgress(func(p *SyncProgress) {
		*p = SyncProgress{
			IsSyncing:    true,
			CycleID:      cycleID,
			Stage:        StageScraping,
			SourcesTotal: len(adapters),
			StartedAt:    &now,
		}
	})

	// Phase 1: enumerate every enabled source. A failing adapter is a
	// per-source error; the other sources continue.
	type sourcedItem struct {
		item    source.Item
		adapter source.Adapter
	}
	var all []sourcedItem
	successfulNames := make(map[string]bool)
	successfulSources := 0

	for _, a := range adapters {
		if ctx.Err() != nil {
			break
		}
		label := a.Label()
		l.store.UpdateProgress(func(p *SyncProgress) {
			p.SourceName = label
		})

		items, err := a.Inventory(ctx, func(stage string, current, total int) {
			l.store.UpdateProgress(func(p *SyncProgress) {
				p.ItemsFound = len(all) + current
			})
		})
		if err != nil {
			log.Printf("Failed to process source %s: %v", label, err)
			stats.Errors++
			l.store.UpdateProgress(func(p *SyncProgress) {
				p.ErrorMessage = err.Error()
			})
			continue
		}
		for _, it := range items {
			all = append(all, sourcedItem{item: it, adapter: a})
		}
		successfulNames[label] = true
		successfulSources++
		l.store.RecordSourceSync(label, now)
		l.store.UpdateProgress(func(p *SyncProgress) {
			p.SourcesDone = successfulSources
			p.ItemsFound = len(all)
		})
	}

	log.Printf("Found %d items (%d/%d sources processed)", len(all), successfulSources, len(adapters))

	// Phase 2: acquire new items and refresh existing ones. Downloads and
	// metadata extraction happen outside the catalog lock; the resulting
	// per-entry mutations are applied in one batch below.
	observed := make(map[string]bool, len(all))
	var newEntries []media.Entry
	var updates []entryUpdate
	var newRemotePhotoURIs []string

	toAcquire := 0
	for _, si := range all {
		if _, ok := l.store.Get(media.ID(si.item.URI)); !ok || flags.ForceFull {
			toAcquire++
		}
	}
	l.store.UpdateProgress(func(p *SyncProgress) {
		p.Stage = StageDownloading
		p.AcquiredTotal = toAcquire
		p.AcquiredDone = 0
	})

	acquiredDone := 0
	for _, si := range all {
		if ctx.Err() != nil {
			break
		}
		item := si.item
		id := media.ID(item.URI)
		observed[item.URI] = true

		existing, ok := l.store.Get(id)
		if ok && !flags.ForceFull {
			up := entryUpdate{id: id, refresh: true, album: item.AlbumLabel, caption: item.Caption}

			if existing.SourceType == media.SourceLocal {
				path, _ := source.LocalPathFromURI(item.URI)
				if _, err := os.Stat(path); err != nil {
					up.refresh = false
					up.tombstone = true
					stats.Deleted++
				} else if mt := fileMtime(path); mt != nil && (existing.FileMtime == nil || !mt.Equal(*existing.FileMtime)) {
					reindexed := existing
					l.reindexLocal(&reindexed, mt)
					up.reindex = true
					up.entry = reindexed
					stats.Updated++
				} else {
					stats.Unchanged++
				}
			} else if item.Caption != "" && item.Caption != existing.RemoteCaption {
				stats.Updated++
			} else {
				stats.Unchanged++
			}
			updates = append(updates, up)
			continue
		}

		// New item (or force-full re-acquire).
		e, err := l.acquire(ctx, si.adapter, item, now)
		acquiredDone++
		l.store.UpdateProgress(func(p *SyncProgress) {
			p.AcquiredDone = acquiredDone
		})
		if err != nil {
			log.Printf("Failed to acquire %s: %v", item.URI, err)
			stats.Errors++
			continue
		}
		newEntries = append(newEntries, e)
		stats.New++
		if e.Kind == media.KindPhoto && e.SourceType == media.SourceRemoteAlbum {
			newRemotePhotoURIs = append(newRemotePhotoURIs, e.URI)
		}
		if acquiredDone%10 == 0 {
			log.Printf("Progress: %d/%d items acquired", acquiredDone, toAcquire)
		}
	}

	// Apply the batch under one lock so each entry's refresh is atomic.
	l.store.mu.Lock()
	for i := range newEntries {
		e := newEntries[i]
		l.store.media[e.MediaID] = &e
	}
	for _, up := range updates {
		e, ok := l.store.media[up.id]
		if !ok {
			continue
		}
		switch {
		case up.tombstone:
			e.Deleted = true
		case up.reindex:
			re := up.entry
			re.LastSeen = now
			re.Deleted = false
			if up.album != "" {
				re.AlbumSource = up.album
			}
			*e = re
		case up.refresh:
			e.LastSeen = now
			e.Deleted = false
			if up.album != "" {
				e.AlbumSource = up.album
			}
			if up.caption != "" && up.caption != e.RemoteCaption {
				e.RemoteCaption = up.caption
			}
		}
	}
	l.store.saveLocked()
	l.store.mu.Unlock()

	// Phase 3: remote metadata follow-up.
	stats.MetadataUpdated = l.fetchRemoteMetadata(ctx, flags, successfulNames, newRemotePhotoURIs)

	// Phase 4: tombstoning, behind the safety gate. A browser crash that
	// returned three photos must never silently wipe a thousand-photo
	// catalog.
	safetyFloor := max(1, priorActive/2)
	switch {
	case ctx.Err() != nil:
		log.Print("Skipping deletion check: sync canceled mid-cycle")
	case successfulSources == 0 && len(adapters) > 0:
		log.Printf("Skipping deletion check: all %d source(s) failed. Existing items preserved.", len(adapters))
	case len(all) < safetyFloor && priorActive > 0:
		log.Printf("Skipping deletion check: found %d items but expected at least %d (50%% of %d cached). Sync may have failed - preserving cache.",
			len(all), safetyFloor, priorActive)
	default:
		l.store.mu.Lock()
		for _, e := range l.store.media {
			if !e.Deleted && successfulNames[e.AlbumSource] && !observed[e.URI] {
				e.Deleted = true
				stats.Deleted++
			}
		}
		l.store.saveLocked()
		l.store.mu.Unlock()
	}

	// Phases 5-6: rebuild the playable order, then trim the cache.
	l.RebuildPlaylist()
	l.EnforceCacheLimit()

	done := time.Now()
	l.store.UpdateProgress(func(p *SyncProgress) {
		p.IsSyncing = false
		p.Stage = StageComplete
		p.CompletedAt = &done
	})

	log.Printf("Sync complete: %d new, %d updated, %d deleted, %d unchanged, %d errors, %d metadata",
		stats.New, stats.Updated, stats.Deleted, stats.Unchanged, stats.Errors, stats.MetadataUpdated)
	return stats
}

// fetchRemoteMetadata runs the follow-up phase: resolving caption, location
// and date for remote photos via each source's detail views. Every result,
// including empty ones, marks the item fetched so it is never retried.
func (l *Library) fetchRemoteMetadata(ctx context.Context, flags SyncFlags, successfulNames map[string]bool, newURIs []string) int {
	if len(successfulNames) == 0 {
		return 0
	}

	need := make(map[string]bool)
	switch {
	case flags.ForceRefetchAllMetadata:
		l.store.mu.Lock()
		for _, e := range l.store.media {
			if e.Kind == media.KindPhoto && !e.Deleted && e.SourceType == media.SourceRemoteAlbum {
				e.RemoteMetadataFetched = false
				need[e.URI] = true
			}
		}
		l.store.saveLocked()
		l.store.mu.Unlock()
		log.Printf("Force re-fetching remote metadata for ALL %d photos...", len(need))
	case flags.UpdateAllMissingMetadata:
		for _, e := range l.store.AllActive() {
			if e.Kind == media.KindPhoto && e.SourceType == media.SourceRemoteAlbum && !e.RemoteMetadataFetched {
				need[e.URI] = true
			}
		}
		log.Printf("Fetching remote metadata for %d unfetched photos...", len(need))
	default:
		for _, uri := range newURIs {
			need[uri] = true
		}
	}
	if len(need) == 0 {
		return 0
	}

	l.store.UpdateProgress(func(p *SyncProgress) {
		p.Stage = StageMetadata
		p.AcquiredDone = 0
		p.AcquiredTotal = len(need)
	})

	// Group by source so each adapter only opens its own items.
	bySource := make(map[string]map[string]bool)
	for uri := range need {
		if e, ok := l.store.Get(media.ID(uri)); ok {
			m := bySource[e.AlbumSource]
			if m == nil {
				m = make(map[string]bool)
				bySource[e.AlbumSource] = m
			}
			m[uri] = true
		}
	}

	updated := 0
	sinceSave := 0
	for _, a := range l.adapters() {
		fetcher, ok := a.(source.MetadataFetcher)
		if !ok {
			continue
		}
		uris := bySource[a.Label()]
		if len(uris) == 0 {
			continue
		}
		log.Printf("Fetching metadata for %d photos from %s", len(uris), a.Label())

		err := fetcher.FetchMetadata(ctx, uris, func(res source.MetadataResult) {
			id := media.ID(res.URI)
			l.store.mu.Lock()
			e, ok := l.store.media[id]
			if !ok {
				l.store.mu.Unlock()
				return
			}
			if res.Caption != "" && res.Caption != e.RemoteCaption {
				e.RemoteCaption = res.Caption
				updated++
			}
			if res.Location != "" && res.Location != e.RemoteLocation {
				e.RemoteLocation = res.Location
			}
			if res.Date != nil {
				e.RemoteDate = res.Date
			}
			e.RemoteMetadataFetched = true

			sinceSave++
			if sinceSave >= 10 {
				l.store.saveLocked()
				sinceSave = 0
			}
			l.store.mu.Unlock()
		}, func(stage string, current, total int) {
			l.store.UpdateProgress(func(p *SyncProgress) {
				p.AcquiredDone = current
				p.AcquiredTotal = total
			})
		})

		// Persist whatever arrived, then record the failure if any.
		l.store.Save()
		sinceSave = 0
		if err != nil {
			log.Printf("Failed to fetch metadata from %s: %v", a.Label(), err)
			l.store.UpdateProgress(func(p *SyncProgress) {
				p.ErrorMessage = err.Error()
			})
		}
	}
	return updated
}
