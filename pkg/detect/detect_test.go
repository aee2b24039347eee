package detect

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bep/imagemeta"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestImage(t *testing.T, w, h int, draw func(*image.RGBA)) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	if draw != nil {
		draw(img)
	}
	path := filepath.Join(t.TempDir(), "img.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
	return path
}

func TestFormatFor(t *testing.T) {
	tests := []struct {
		path string
		want imagemeta.ImageFormat
		ok   bool
	}{
		{"a.jpg", imagemeta.JPEG, true},
		{"a.JPEG", imagemeta.JPEG, true},
		{"a.png", imagemeta.PNG, true},
		{"a.webp", imagemeta.WebP, true},
		{"a.tiff", imagemeta.TIFF, true},
		{"a.mp4", 0, false},
	}
	for _, tt := range tests {
		got, ok := formatFor(tt.path)
		assert.Equal(t, tt.ok, ok, tt.path)
		if ok {
			assert.Equal(t, tt.want, got, tt.path)
		}
	}
}

func TestTagTimeParsesExifLayout(t *testing.T) {
	tags := map[string]interface{}{"DateTimeOriginal": "2023:07:14 18:30:05"}
	got := tagTime(tags, "DateTimeOriginal")
	require.NotNil(t, got)
	assert.Equal(t, 2023, got.Year())
	assert.Equal(t, time.July, got.Month())
	assert.Equal(t, 18, got.Hour())

	// Already-decoded values pass through.
	when := time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)
	tags = map[string]interface{}{"DateTimeOriginal": when}
	got = tagTime(tags, "DateTimeOriginal")
	require.NotNil(t, got)
	assert.True(t, when.Equal(*got))

	assert.Nil(t, tagTime(map[string]interface{}{}, "DateTimeOriginal"))
	assert.Nil(t, tagTime(map[string]interface{}{"DateTimeOriginal": "garbage"}, "DateTimeOriginal"))
}

func TestExtractReadsDimensionsWithoutMetadata(t *testing.T) {
	path := writeTestImage(t, 320, 240, nil)
	x := NewImagemetaExtractor()

	meta, err := x.Extract(path)
	require.NoError(t, err)
	assert.Equal(t, 320, meta.Width)
	assert.Equal(t, 240, meta.Height)
	assert.Nil(t, meta.DateTaken)
	assert.Empty(t, meta.Caption)
}

func TestEnergySaliencyHighlightsEdges(t *testing.T) {
	// A bright square on black: the energy concentrates around the
	// square, not in the flat corners.
	path := writeTestImage(t, 320, 320, func(img *image.RGBA) {
		for y := 120; y < 200; y++ {
			for x := 120; x < 200; x++ {
				img.Set(x, y, color.White)
			}
		}
	})

	s := NewEnergySaliency()
	grid, err := s.SaliencyMap(path)
	require.NoError(t, err)
	require.NotEmpty(t, grid)

	h := len(grid)
	w := len(grid[0])
	var center, corner float64
	for y := h * 3 / 8; y < h*5/8; y++ {
		for x := w * 3 / 8; x < w*5/8; x++ {
			center += grid[y][x]
		}
	}
	for y := 0; y < h/8; y++ {
		for x := 0; x < w/8; x++ {
			corner += grid[y][x]
		}
	}
	assert.Greater(t, center, corner)

	// Values are normalized.
	for y := range grid {
		for x := range grid[y] {
			assert.GreaterOrEqual(t, grid[y][x], 0.0)
			assert.LessOrEqual(t, grid[y][x], 1.0)
		}
	}
}

func TestSmartcropAestheticReturnsNormalizedRegion(t *testing.T) {
	path := writeTestImage(t, 400, 200, func(img *image.RGBA) {
		for y := 40; y < 160; y++ {
			for x := 260; x < 380; x++ {
				img.Set(x, y, color.RGBA{R: 255, G: 128, B: 0, A: 255})
			}
		}
	})

	c := NewSmartcropAesthetic()
	crop, err := c.BestCrop(path, 1.0)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, crop.X, 0.0)
	assert.GreaterOrEqual(t, crop.Y, 0.0)
	assert.LessOrEqual(t, crop.X+crop.Width, 1.0+1e-9)
	assert.LessOrEqual(t, crop.Y+crop.Height, 1.0+1e-9)
	assert.Greater(t, crop.Width, 0.0)
}

func TestPigoDetectorMissingCascade(t *testing.T) {
	_, err := NewPigoFaceDetector(filepath.Join(t.TempDir(), "nope.bin"), 0.6)
	assert.Error(t, err)
}
