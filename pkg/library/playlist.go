package library

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/lucvincent/photoloop/pkg/media"
	"github.com/lucvincent/photoloop/util/log"
)

// RebuildPlaylist recomputes the ordered sequence of displayable items from
// a consistent snapshot of the catalog and resets the cursor.
func (l *Library) RebuildPlaylist() {
	cfg := l.Config()
	enabled := cfg.EnabledSourceLabels()

	var available []media.Entry
	for _, e := range l.store.AllActive() {
		if !enabled[e.AlbumSource] {
			continue
		}
		if e.Kind == media.KindVideo && !cfg.Display.VideoEnabled {
			continue
		}
		if _, err := os.Stat(e.LocalPath); err != nil {
			continue
		}
		available = append(available, e)
	}

	ids := l.order(available, cfg.Display.Order)

	l.plMu.Lock()
	l.playlist = ids
	l.plIndex = 0
	l.plMu.Unlock()

	log.Debugf("Playlist rebuilt: %d items (%s)", len(ids), cfg.Display.Order)
}

func (l *Library) order(entries []media.Entry, policy string) []string {
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.MediaID
	}

	switch policy {
	case "alphabetical":
		sort.SliceStable(entries, func(i, j int) bool {
			a := strings.ToLower(filepath.Base(entries[i].LocalPath))
			b := strings.ToLower(filepath.Base(entries[j].LocalPath))
			return a < b
		})
		for i, e := range entries {
			ids[i] = e.MediaID
		}
	case "chronological":
		sort.SliceStable(entries, func(i, j int) bool {
			return sortKey(entries[i]) < sortKey(entries[j])
		})
		for i, e := range entries {
			ids[i] = e.MediaID
		}
	case "recency_weighted":
		cfg := l.Config()
		ids = l.weightedShuffle(entries, cfg.Display.RecencyCutoffYears, cfg.Display.RecencyMinWeight)
	default: // random
		l.plMu.Lock()
		l.rng.Shuffle(len(ids), func(i, j int) {
			ids[i], ids[j] = ids[j], ids[i]
		})
		l.plMu.Unlock()
	}
	return ids
}

// sortKey renders the chronological ordering key: the date fallback chain
// as a sortable string, empty when no date is known.
func sortKey(e media.Entry) string {
	if t, ok := e.SortDate(); ok {
		return t.Format(time.RFC3339)
	}
	return ""
}

// weightedShuffle draws a permutation without replacement where each item's
// probability decays linearly with age, from 1.0 today down to minWeight at
// the cutoff. Future-dated photos count as age zero.
func (l *Library) weightedShuffle(entries []media.Entry, cutoffYears, minWeight float64) []string {
	now := time.Now()
	cutoffDays := cutoffYears * 365

	weights := make([]float64, len(entries))
	for i, e := range entries {
		d, ok := e.SortDate()
		if !ok {
			d = now
		}
		ageDays := now.Sub(d).Hours() / 24
		if ageDays < 0 {
			ageDays = 0
		}
		if ageDays >= cutoffDays {
			weights[i] = minWeight
		} else {
			weights[i] = 1.0 - (1.0-minWeight)*(ageDays/cutoffDays)
		}
	}

	remaining := make([]int, len(entries))
	for i := range remaining {
		remaining[i] = i
	}

	l.plMu.Lock()
	defer l.plMu.Unlock()

	out := make([]string, 0, len(entries))
	for len(remaining) > 0 {
		var total float64
		for _, idx := range remaining {
			total += weights[idx]
		}
		r := l.rng.Float64() * total
		pick := len(remaining) - 1
		for i, idx := range remaining {
			r -= weights[idx]
			if r <= 0 {
				pick = i
				break
			}
		}
		out = append(out, entries[remaining[pick]].MediaID)
		remaining = append(remaining[:pick], remaining[pick+1:]...)
	}
	return out
}

// Next returns the entry at the cursor and advances it. On wraparound the
// random order reshuffles. Returns ok=false on an empty playlist.
func (l *Library) Next() (media.Entry, bool) {
	l.plMu.Lock()
	if len(l.playlist) == 0 {
		l.plMu.Unlock()
		l.RebuildPlaylist()
		l.plMu.Lock()
	}
	if len(l.playlist) == 0 {
		l.plMu.Unlock()
		return media.Entry{}, false
	}

	id := l.playlist[l.plIndex]
	l.plIndex = (l.plIndex + 1) % len(l.playlist)
	if l.plIndex == 0 && l.Config().Display.Order == "random" {
		l.rng.Shuffle(len(l.playlist), func(i, j int) {
			l.playlist[i], l.playlist[j] = l.playlist[j], l.playlist[i]
		})
	}
	l.plMu.Unlock()

	return l.store.Get(id)
}

// Previous steps the cursor back one shown item: next, next, previous
// visits items 0, 1, 0. Returns ok=false on an empty playlist.
func (l *Library) Previous() (media.Entry, bool) {
	l.plMu.Lock()
	if len(l.playlist) == 0 {
		l.plMu.Unlock()
		l.RebuildPlaylist()
		l.plMu.Lock()
	}
	if len(l.playlist) == 0 {
		l.plMu.Unlock()
		return media.Entry{}, false
	}

	n := len(l.playlist)
	// Back up two positions (Next already advanced past the current item),
	// then hand out and advance as usual.
	l.plIndex = ((l.plIndex-2)%n + n) % n
	id := l.playlist[l.plIndex]
	l.plIndex = (l.plIndex + 1) % n
	l.plMu.Unlock()

	return l.store.Get(id)
}

// PlaylistSize returns the current number of playable items.
func (l *Library) PlaylistSize() int {
	l.plMu.Lock()
	defer l.plMu.Unlock()
	return len(l.playlist)
}
