// Package media defines the core catalog record types shared by the
// library, processor and frame packages.
package media

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// SourceType identifies where a media item originates.
type SourceType string

const (
	SourceRemoteAlbum SourceType = "remote_album"
	SourceLocal       SourceType = "local"
)

// Kind identifies the media kind.
type Kind string

const (
	KindPhoto Kind = "photo"
	KindVideo Kind = "video"
)

// PhotoExtensions and VideoExtensions are the case-insensitive allowlists
// used when classifying files found in local directories.
var (
	PhotoExtensions = map[string]bool{
		".jpg": true, ".jpeg": true, ".png": true, ".gif": true,
		".webp": true, ".heic": true, ".heif": true,
	}
	VideoExtensions = map[string]bool{
		".mp4": true, ".mov": true, ".avi": true, ".mkv": true, ".webm": true,
	}
)

// KindForPath classifies a file path by extension. Returns "" when the
// extension is not in either allowlist.
func KindForPath(path string) Kind {
	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case PhotoExtensions[ext]:
		return KindPhoto
	case VideoExtensions[ext]:
		return KindVideo
	default:
		return ""
	}
}

// ID derives the stable media identifier for a source URI: the first 16 hex
// digits of the SHA-256 digest. Deterministic across processes.
func ID(uri string) string {
	sum := sha256.Sum256([]byte(uri))
	return hex.EncodeToString(sum[:])[:16]
}

// FaceRegion is a detected face in normalized image coordinates.
type FaceRegion struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
	Confidence float64 `json:"confidence"`
}

// FacesBoundingBox returns the bounding box of all faces expanded by margin,
// clamped to [0,1]. ok is false when faces is empty.
func FacesBoundingBox(faces []FaceRegion, margin float64) (x, y, w, h float64, ok bool) {
	if len(faces) == 0 {
		return 0, 0, 0, 0, false
	}
	minX, minY := 1.0, 1.0
	maxX, maxY := 0.0, 0.0
	for _, f := range faces {
		if f.X < minX {
			minX = f.X
		}
		if f.Y < minY {
			minY = f.Y
		}
		if f.X+f.Width > maxX {
			maxX = f.X + f.Width
		}
		if f.Y+f.Height > maxY {
			maxY = f.Y + f.Height
		}
	}
	minX = max(0, minX-margin)
	minY = max(0, minY-margin)
	maxX = min(1, maxX+margin)
	maxY = min(1, maxY+margin)
	return minX, minY, maxX - minX, maxY - minY, true
}

// CropRegion is a normalized sub-rectangle of the source image.
type CropRegion struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// FullFrame is the identity crop.
func FullFrame() CropRegion {
	return CropRegion{X: 0, Y: 0, Width: 1, Height: 1}
}

// KenBurnsAnimation holds slow zoom/pan parameters derived from a crop.
// Zoom 1.0 means no zoom; centers are normalized image coordinates.
type KenBurnsAnimation struct {
	StartZoom   float64    `json:"start_zoom"`
	EndZoom     float64    `json:"end_zoom"`
	StartCenter [2]float64 `json:"start_center"`
	EndCenter   [2]float64 `json:"end_center"`
}

// DisplayParams is the memoized per-entry display computation. It is valid
// only for the screen resolution it was computed at; the catalog's settings
// fingerprint guards the scaling-policy half of its validity.
type DisplayParams struct {
	ScreenWidth  int                `json:"screen_width"`
	ScreenHeight int                `json:"screen_height"`
	CropRegion   CropRegion         `json:"crop_region"`
	KenBurns     *KenBurnsAnimation `json:"ken_burns,omitempty"`
}

// Entry is one catalog record. Pointer fields are absent-able; timestamps
// round-trip as RFC 3339 strings in the persisted catalog.
type Entry struct {
	MediaID     string     `json:"media_id"`
	SourceType  SourceType `json:"source_type"`
	URI         string     `json:"uri"`
	LocalPath   string     `json:"local_path"`
	Kind        Kind       `json:"media_kind"`
	AlbumSource string     `json:"album_source"`

	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`

	ContentHash string     `json:"content_hash"`
	FileMtime   *time.Time `json:"file_mtime,omitempty"`

	Deleted bool `json:"deleted"`

	// Captions from four independent origins, never merged at ingest.
	RemoteCaption   string `json:"remote_caption,omitempty"`
	EmbeddedCaption string `json:"embedded_caption,omitempty"`
	RemoteLocation  string `json:"remote_location,omitempty"`
	ExifLocation    string `json:"exif_location,omitempty"`

	ExifDate   *time.Time `json:"exif_date,omitempty"`
	RemoteDate *time.Time `json:"remote_date,omitempty"`

	GPSLatitude  *float64 `json:"gps_latitude,omitempty"`
	GPSLongitude *float64 `json:"gps_longitude,omitempty"`

	// Set once remote caption/location/date fetching has been attempted,
	// even when nothing was found, so we never retry that item.
	RemoteMetadataFetched bool `json:"remote_metadata_fetched"`

	// CachedFaces distinguishes "never detected" (nil) from "detected,
	// none found" (empty), so a fruitless detection is not repeated.
	CachedFaces   []FaceRegion   `json:"cached_faces"`
	DisplayParams *DisplayParams `json:"display_params,omitempty"`
}

// entryAlias breaks the UnmarshalJSON recursion while exposing the legacy
// single-caption field for migration.
type entryAlias Entry

type entryWithLegacy struct {
	entryAlias
	LegacyCaption string `json:"caption"`
}

// UnmarshalJSON migrates catalogs written before captions were split: a lone
// legacy "caption" becomes the remote caption when remote metadata had been
// fetched, the embedded caption otherwise.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var aux entryWithLegacy
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*e = Entry(aux.entryAlias)
	if aux.LegacyCaption != "" && e.RemoteCaption == "" && e.EmbeddedCaption == "" {
		if e.RemoteMetadataFetched {
			e.RemoteCaption = aux.LegacyCaption
		} else {
			e.EmbeddedCaption = aux.LegacyCaption
		}
	}
	return nil
}

// BestCaption picks the caption to display: the remote album caption wins
// over the one embedded in the file. Selection only, never concatenation.
func (e *Entry) BestCaption() string {
	if e.RemoteCaption != "" {
		return e.RemoteCaption
	}
	return e.EmbeddedCaption
}

// BestLocation mirrors BestCaption for the two location origins.
func (e *Entry) BestLocation() string {
	if e.RemoteLocation != "" {
		return e.RemoteLocation
	}
	return e.ExifLocation
}

// SortDate resolves the date fallback chain used by the chronological and
// recency-weighted orderings: EXIF date, then remote date, then file mtime.
// ok is false when no date is known at all.
func (e *Entry) SortDate() (time.Time, bool) {
	if e.ExifDate != nil {
		return *e.ExifDate, true
	}
	if e.RemoteDate != nil {
		return *e.RemoteDate, true
	}
	if e.FileMtime != nil {
		return *e.FileMtime, true
	}
	return time.Time{}, false
}
