package library

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/lucvincent/photoloop/pkg/media"
	"github.com/lucvincent/photoloop/pkg/source"
	"github.com/lucvincent/photoloop/util/log"
)

const downloadUserAgent = "Mozilla/5.0 (X11; Linux aarch64) photoloop/1.0"

// contentHash digests the file bytes. 128 bits is plenty for change
// detection and integrity signaling.
func contentHash(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()
	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return ""
	}
	return hex.EncodeToString(h.Sum(nil))
}

func fileMtime(path string) *time.Time {
	info, err := os.Stat(path)
	if err != nil {
		return nil
	}
	t := info.ModTime()
	return &t
}

func extensionFor(kind media.Kind) string {
	if kind == media.KindVideo {
		return ".mp4"
	}
	return ".jpg"
}

// download fetches the bytes for a remote item into the cache directory.
// The download URL is a variant of the base URI derived from the
// acquisition policy. Partial files are removed on failure.
func (l *Library) download(ctx context.Context, adapter source.Adapter, item source.Item, mediaID string) (string, error) {
	cfg := l.Config()

	downloadURL := item.URI
	if v, ok := adapter.(source.VariantURLer); ok {
		downloadURL = v.VariantURL(item.URI, item.Kind, cfg.Sync.MaxDimension, cfg.Sync.FullResolution)
	}

	localPath := filepath.Join(l.store.CacheDir(), mediaID+extensionFor(item.Kind))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, downloadURL, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", downloadUserAgent)

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("downloading %s: %w", item.URI, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("downloading %s: status %d", item.URI, resp.StatusCode)
	}

	f, err := os.Create(localPath)
	if err != nil {
		return "", fmt.Errorf("creating %s: %w", localPath, err)
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(localPath)
		return "", fmt.Errorf("writing %s: %w", localPath, err)
	}
	f.Close()

	log.Debugf("Downloaded %s", filepath.Base(localPath))
	return localPath, nil
}

// extractMetadata pulls embedded metadata into an entry. Extraction
// failures leave the entry without those fields; they are never fatal.
func (l *Library) extractMetadata(e *media.Entry) {
	if l.metadata == nil || e.Kind != media.KindPhoto {
		return
	}
	meta, err := l.metadata.Extract(e.LocalPath)
	if err != nil {
		log.Debugf("Failed to extract metadata from %s: %v", e.LocalPath, err)
		return
	}
	e.ExifDate = meta.DateTaken
	e.EmbeddedCaption = meta.Caption
	e.GPSLatitude = meta.GPSLatitude
	e.GPSLongitude = meta.GPSLongitude
}

// acquire obtains the bytes for a new inventory item and builds its catalog
// entry. Remote items are downloaded; local items are referenced in place.
func (l *Library) acquire(ctx context.Context, adapter source.Adapter, item source.Item, now time.Time) (media.Entry, error) {
	mediaID := media.ID(item.URI)

	var localPath string
	var mtime *time.Time

	switch adapter.Type() {
	case media.SourceLocal:
		p, ok := source.LocalPathFromURI(item.URI)
		if !ok {
			return media.Entry{}, fmt.Errorf("malformed local URI %s", item.URI)
		}
		if _, err := os.Stat(p); err != nil {
			return media.Entry{}, fmt.Errorf("local file not found: %s", p)
		}
		localPath = p
		mtime = fileMtime(p)
		log.Printf("Indexing local file: %s", filepath.Base(p))
	default:
		p, err := l.download(ctx, adapter, item, mediaID)
		if err != nil {
			return media.Entry{}, err
		}
		localPath = p
	}

	e := media.Entry{
		MediaID:       mediaID,
		SourceType:    adapter.Type(),
		URI:           item.URI,
		LocalPath:     localPath,
		Kind:          item.Kind,
		AlbumSource:   item.AlbumLabel,
		FirstSeen:     now,
		LastSeen:      now,
		ContentHash:   contentHash(localPath),
		FileMtime:     mtime,
		RemoteCaption: item.Caption,
	}
	l.extractMetadata(&e)
	return e, nil
}

// reindexLocal refreshes an existing local entry whose file changed on
// disk. The stale derived artifacts are dropped so they recompute.
func (l *Library) reindexLocal(e *media.Entry, mtime *time.Time) {
	log.Printf("Local file changed, re-extracting metadata: %s", e.LocalPath)
	e.FileMtime = mtime
	e.ContentHash = contentHash(e.LocalPath)
	e.ExifLocation = ""
	e.DisplayParams = nil
	e.CachedFaces = nil
	l.extractMetadata(e)
}
