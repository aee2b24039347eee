package library

import (
	"os"
	"sort"

	"github.com/dustin/go-humanize"

	"github.com/lucvincent/photoloop/pkg/media"
	"github.com/lucvincent/photoloop/util/log"
)

// EnforceCacheLimit evicts the oldest-seen entries until the cache fits the
// configured size. This is the only path that destroys an entry outright:
// the on-disk bytes and the catalog record go together.
func (l *Library) EnforceCacheLimit() {
	maxBytes := l.Config().Cache.MaxSizeMB * 1024 * 1024

	l.store.mu.Lock()

	total := l.store.totalBytesLocked()
	if total <= maxBytes {
		l.store.mu.Unlock()
		return
	}

	log.Printf("Cache size (%s) exceeds limit (%s), cleaning up...",
		humanize.Bytes(uint64(total)), humanize.Bytes(uint64(maxBytes)))

	entries := make([]*media.Entry, 0, len(l.store.media))
	for _, e := range l.store.media {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].LastSeen.Before(entries[j].LastSeen)
	})

	evicted := 0
	for _, e := range entries {
		if total <= maxBytes {
			break
		}
		// Local entries reference the user's original files; eviction only
		// ever deletes downloaded bytes.
		if e.SourceType == media.SourceLocal {
			continue
		}
		info, err := os.Stat(e.LocalPath)
		if err != nil {
			continue
		}
		if err := os.Remove(e.LocalPath); err != nil {
			log.Printf("Failed to remove %s: %v", e.LocalPath, err)
			continue
		}
		total -= info.Size()
		delete(l.store.media, e.MediaID)
		evicted++
		log.Debugf("Evicted %s", e.LocalPath)
	}

	l.store.saveLocked()
	l.store.mu.Unlock()

	if evicted > 0 {
		log.Printf("Evicted %d entries, cache now %s", evicted, humanize.Bytes(uint64(total)))
		l.RebuildPlaylist()
	}
}
