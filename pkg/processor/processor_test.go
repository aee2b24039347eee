package processor

import (
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lucvincent/photoloop/config"
	"github.com/lucvincent/photoloop/pkg/media"
)

func writePNG(t *testing.T, w, h int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "img.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, image.NewRGBA(image.Rect(0, 0, w, h))))
	return path
}

func testEngine(mutate func(*config.Config)) *Engine {
	cfg := config.Default()
	cfg.KenBurns.Enabled = false
	if mutate != nil {
		mutate(cfg)
	}
	return New(cfg.Scaling, cfg.KenBurns)
}

func entryFor(path string) media.Entry {
	return media.Entry{MediaID: "test", LocalPath: path, Kind: media.KindPhoto}
}

func TestComputeFitModeNoCrop(t *testing.T) {
	path := writePNG(t, 400, 300)
	p := testEngine(func(c *config.Config) { c.Scaling.Mode = "fit" })

	params := p.Compute(entryFor(path), nil, 1920, 1080, 30)
	assert.Equal(t, media.FullFrame(), params.CropRegion)
	assert.Equal(t, 1920, params.ScreenWidth)
	assert.Nil(t, params.KenBurns)
}

func TestComputeFillCropWiderImage(t *testing.T) {
	// 2:1 image on a 16:9 screen: the sides get cropped.
	path := writePNG(t, 800, 400)
	p := testEngine(func(c *config.Config) {
		c.Scaling.Mode = "fill"
		c.Scaling.FallbackCrop = "center"
	})

	params := p.Compute(entryFor(path), nil, 1920, 1080, 30)
	crop := params.CropRegion
	assert.InDelta(t, (16.0/9.0)/2.0, crop.Width, 1e-9)
	assert.InDelta(t, 1.0, crop.Height, 1e-9)
	// Centered horizontally.
	assert.InDelta(t, (1-crop.Width)/2, crop.X, 1e-9)
	assert.InDelta(t, 0.0, crop.Y, 1e-9)
}

func TestComputeFillCropTallerImage(t *testing.T) {
	// Portrait 3:4 on 16:9: top/bottom crop; fallback "top" pins y=0.
	path := writePNG(t, 300, 400)
	p := testEngine(func(c *config.Config) {
		c.Scaling.Mode = "fill"
		c.Scaling.FallbackCrop = "top"
	})

	params := p.Compute(entryFor(path), nil, 1920, 1080, 30)
	crop := params.CropRegion
	assert.InDelta(t, 1.0, crop.Width, 1e-9)
	assert.InDelta(t, (3.0/4.0)/(16.0/9.0), crop.Height, 1e-9)
	assert.InDelta(t, 0.0, crop.Y, 1e-9)
}

func TestBalancedModeZeroCropLetterboxes(t *testing.T) {
	// max_crop_percent = 0 with mismatched aspects: no cropping at all,
	// the rasterizer letterboxes the remainder.
	path := writePNG(t, 300, 400)
	p := testEngine(func(c *config.Config) {
		c.Scaling.Mode = "balanced"
		c.Scaling.MaxCropPercent = 0
	})

	params := p.Compute(entryFor(path), nil, 1920, 1080, 30)
	assert.Equal(t, media.FullFrame(), params.CropRegion)
}

func TestBalancedModeSmallMismatchActsLikeFill(t *testing.T) {
	// 16:10 on 16:9 crops 10%, within the default 15% budget.
	path := writePNG(t, 1600, 1000)
	p := testEngine(func(c *config.Config) { c.Scaling.Mode = "balanced" })

	params := p.Compute(entryFor(path), nil, 1920, 1080, 30)
	crop := params.CropRegion
	assert.InDelta(t, 1.0, crop.Width, 1e-9)
	assert.InDelta(t, (1600.0/1000.0)/(16.0/9.0), crop.Height, 1e-9)
}

func TestBalancedModeLargeMismatchClampsCrop(t *testing.T) {
	// Square image on 16:9 would need a 44% crop; balanced clamps to 15%.
	path := writePNG(t, 500, 500)
	p := testEngine(func(c *config.Config) { c.Scaling.Mode = "balanced" })

	params := p.Compute(entryFor(path), nil, 1920, 1080, 30)
	crop := params.CropRegion
	assert.InDelta(t, 0.85, crop.Height, 1e-9)
	assert.InDelta(t, 1.0, crop.Width, 1e-9)
}

func TestFaceCropTargetsUpperHeadLine(t *testing.T) {
	path := writePNG(t, 400, 800) // tall portrait, heavy vertical crop
	p := testEngine(func(c *config.Config) {
		c.Scaling.Mode = "fill"
		c.Scaling.SmartCropMethod = "face"
	})

	faces := []media.FaceRegion{{X: 0.4, Y: 0.5, Width: 0.2, Height: 0.1, Confidence: 0.9}}
	params := p.Compute(entryFor(path), faces, 1920, 1080, 30)
	crop := params.CropRegion

	// The whole face must sit inside the crop.
	assert.LessOrEqual(t, crop.Y, 0.5)
	assert.GreaterOrEqual(t, crop.Y+crop.Height, 0.6)
	// And the crop stays in bounds.
	assert.GreaterOrEqual(t, crop.Y, 0.0)
	assert.LessOrEqual(t, crop.Y+crop.Height, 1.0)
}

func TestFaceBeyondEdgeClamps(t *testing.T) {
	// A face hanging off the right edge is still honored; the positioner
	// clamps the crop into the image.
	path := writePNG(t, 800, 400)
	p := testEngine(func(c *config.Config) {
		c.Scaling.Mode = "fill"
		c.Scaling.SmartCropMethod = "face"
	})

	faces := []media.FaceRegion{{X: 0.9, Y: 0.0, Width: 0.2, Height: 0.2, Confidence: 0.9}}
	params := p.Compute(entryFor(path), faces, 1920, 1080, 30)
	crop := params.CropRegion

	assert.GreaterOrEqual(t, crop.X, 0.0)
	assert.LessOrEqual(t, crop.X+crop.Width, 1.0+1e-9)
	// The crop hugs the right edge to keep the face.
	assert.InDelta(t, 1.0-crop.Width, crop.X, 1e-9)
}

func TestTinyFacesFallBack(t *testing.T) {
	path := writePNG(t, 300, 400)
	p := testEngine(func(c *config.Config) {
		c.Scaling.Mode = "fill"
		c.Scaling.SmartCropMethod = "face"
		c.Scaling.FallbackCrop = "bottom"
	})

	// Background faces under 2% of the image are ignored.
	faces := []media.FaceRegion{{X: 0.1, Y: 0.1, Width: 0.01, Height: 0.01, Confidence: 0.9}}
	params := p.Compute(entryFor(path), faces, 1920, 1080, 30)
	crop := params.CropRegion
	assert.InDelta(t, 1.0-crop.Height, crop.Y, 1e-9)
}

type gridSaliency struct {
	grid [][]float64
}

func (s *gridSaliency) SaliencyMap(string) ([][]float64, error) {
	return s.grid, nil
}

func TestSaliencyPositioningFindsHotspot(t *testing.T) {
	path := writePNG(t, 400, 800)
	p := testEngine(func(c *config.Config) {
		c.Scaling.Mode = "fill"
		c.Scaling.SmartCropMethod = "saliency"
	})

	// All the saliency mass sits in the bottom quarter of a 40x80 grid.
	grid := make([][]float64, 80)
	for y := range grid {
		grid[y] = make([]float64, 40)
		if y >= 60 {
			for x := range grid[y] {
				grid[y][x] = 1.0
			}
		}
	}
	p.SetSaliencyDetector(&gridSaliency{grid: grid})

	params := p.Compute(entryFor(path), nil, 1920, 1080, 30)
	crop := params.CropRegion
	// The crop must land on the hot bottom region.
	assert.Greater(t, crop.Y, 0.5)
	assert.LessOrEqual(t, crop.Y+crop.Height, 1.0+1e-9)
}

func TestSaliencyUnavailableFallsBack(t *testing.T) {
	path := writePNG(t, 400, 800)
	p := testEngine(func(c *config.Config) {
		c.Scaling.Mode = "fill"
		c.Scaling.SmartCropMethod = "saliency"
		c.Scaling.FallbackCrop = "center"
	})
	// No detector attached at all.
	params := p.Compute(entryFor(path), nil, 1920, 1080, 30)
	crop := params.CropRegion
	assert.InDelta(t, (1-crop.Height)/2, crop.Y, 1e-9)
}

func TestUnreadableImageYieldsDefaultParams(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.jpg")
	require.NoError(t, os.WriteFile(path, []byte("not an image"), 0644))

	p := testEngine(func(c *config.Config) { c.KenBurns.Enabled = true })
	params := p.Compute(entryFor(path), nil, 1920, 1080, 30)

	assert.Equal(t, media.FullFrame(), params.CropRegion)
	assert.Nil(t, params.KenBurns, "no animation for an unreadable image")
}

func TestKenBurnsStaysInBounds(t *testing.T) {
	path := writePNG(t, 800, 400)
	p := testEngine(func(c *config.Config) {
		c.KenBurns.Enabled = true
		c.KenBurns.Randomize = true
	})

	for i := 0; i < 20; i++ {
		params := p.Compute(entryFor(path), nil, 1920, 1080, 30)
		kb := params.KenBurns
		require.NotNil(t, kb)
		assert.GreaterOrEqual(t, kb.StartZoom, 1.0)
		assert.GreaterOrEqual(t, kb.EndZoom, 1.0)

		crop := params.CropRegion
		for _, pt := range [][3]float64{
			{kb.StartZoom, kb.StartCenter[0], kb.StartCenter[1]},
			{kb.EndZoom, kb.EndCenter[0], kb.EndCenter[1]},
		} {
			zoom, cx, cy := pt[0], pt[1], pt[2]
			halfW := crop.Width / (2 * zoom)
			halfH := crop.Height / (2 * zoom)
			assert.GreaterOrEqual(t, cx-halfW, -1e-9)
			assert.LessOrEqual(t, cx+halfW, 1.0+1e-9)
			assert.GreaterOrEqual(t, cy-halfH, -1e-9)
			assert.LessOrEqual(t, cy+halfH, 1.0+1e-9)
		}
	}
}
