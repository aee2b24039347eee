package detect

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bep/imagemeta"

	"github.com/lucvincent/photoloop/pkg/library"
)

// ImagemetaExtractor reads embedded EXIF, IPTC and XMP metadata with the
// imagemeta decoder and maps it onto the library's semantic Metadata.
type ImagemetaExtractor struct{}

// NewImagemetaExtractor returns the default metadata extractor.
func NewImagemetaExtractor() *ImagemetaExtractor {
	return &ImagemetaExtractor{}
}

func formatFor(path string) (imagemeta.ImageFormat, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return imagemeta.JPEG, true
	case ".png":
		return imagemeta.PNG, true
	case ".webp":
		return imagemeta.WebP, true
	case ".tif", ".tiff":
		return imagemeta.TIFF, true
	default:
		return 0, false
	}
}

// Extract implements library.MetadataExtractor.
func (x *ImagemetaExtractor) Extract(path string) (library.Metadata, error) {
	var meta library.Metadata

	f, err := os.Open(path)
	if err != nil {
		return meta, err
	}
	defer f.Close()

	if cfg, _, err := image.DecodeConfig(f); err == nil {
		meta.Width = cfg.Width
		meta.Height = cfg.Height
	}
	if _, err := f.Seek(0, 0); err != nil {
		return meta, err
	}

	format, ok := formatFor(path)
	if !ok {
		return meta, nil
	}

	tags := make(map[string]interface{})
	_, err = imagemeta.Decode(imagemeta.Options{
		R:           f,
		ImageFormat: format,
		Sources:     imagemeta.EXIF | imagemeta.IPTC | imagemeta.XMP,
		HandleTag: func(ti imagemeta.TagInfo) error {
			if _, seen := tags[ti.Tag]; !seen {
				tags[ti.Tag] = ti.Value
			}
			return nil
		},
	})
	if err != nil {
		return meta, fmt.Errorf("decoding metadata: %w", err)
	}

	meta.DateTaken = tagTime(tags, "DateTimeOriginal", "DateTimeDigitized", "DateTime")
	meta.Caption = tagString(tags, "Caption-Abstract", "Description", "ImageDescription")
	if lat, ok := tagFloat(tags, "GPSLatitude"); ok {
		if lon, ok := tagFloat(tags, "GPSLongitude"); ok {
			meta.GPSLatitude = &lat
			meta.GPSLongitude = &lon
		}
	}
	return meta, nil
}

func tagString(tags map[string]interface{}, names ...string) string {
	for _, n := range names {
		if v, ok := tags[n]; ok {
			if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
				return strings.TrimSpace(s)
			}
		}
	}
	return ""
}

func tagFloat(tags map[string]interface{}, name string) (float64, bool) {
	switch v := tags[name].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	default:
		return 0, false
	}
}

func tagTime(tags map[string]interface{}, names ...string) *time.Time {
	for _, n := range names {
		v, ok := tags[n]
		if !ok {
			continue
		}
		switch t := v.(type) {
		case time.Time:
			if !t.IsZero() {
				tt := t
				return &tt
			}
		case string:
			// EXIF date layout.
			if parsed, err := time.ParseInLocation("2006:01:02 15:04:05", t, time.Local); err == nil {
				return &parsed
			}
		}
	}
	return nil
}
