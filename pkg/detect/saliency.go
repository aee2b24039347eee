package detect

import (
	"image"
	"os"

	"github.com/disintegration/imaging"
)

// EnergySaliency approximates a saliency map with gradient magnitude over
// a downscaled grayscale rendition. It is the built-in stand-in for a real
// saliency model and shares its contract: row-major grid, values in [0,1].
type EnergySaliency struct {
	// GridWidth is the width the analysis grid is downscaled to.
	GridWidth int
}

// NewEnergySaliency returns a detector with the default grid size.
func NewEnergySaliency() *EnergySaliency {
	return &EnergySaliency{GridWidth: 256}
}

// SaliencyMap implements processor.SaliencyDetector.
func (s *EnergySaliency) SaliencyMap(imagePath string) ([][]float64, error) {
	f, err := os.Open(imagePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, err
	}

	gridW := s.GridWidth
	if gridW <= 0 {
		gridW = 256
	}
	small := imaging.Resize(imaging.Grayscale(img), gridW, 0, imaging.Box)
	b := small.Bounds()
	w, h := b.Dx(), b.Dy()
	if w < 3 || h < 3 {
		return nil, image.ErrFormat
	}

	lum := make([][]float64, h)
	for y := 0; y < h; y++ {
		lum[y] = make([]float64, w)
		for x := 0; x < w; x++ {
			r, _, _, _ := small.At(b.Min.X+x, b.Min.Y+y).RGBA()
			lum[y][x] = float64(r) / 65535.0
		}
	}

	grid := make([][]float64, h)
	maxE := 0.0
	for y := 0; y < h; y++ {
		grid[y] = make([]float64, w)
		for x := 0; x < w; x++ {
			if x == 0 || y == 0 || x == w-1 || y == h-1 {
				continue
			}
			dx := lum[y][x+1] - lum[y][x-1]
			dy := lum[y+1][x] - lum[y-1][x]
			e := dx*dx + dy*dy
			grid[y][x] = e
			if e > maxE {
				maxE = e
			}
		}
	}
	if maxE > 0 {
		for y := range grid {
			for x := range grid[y] {
				grid[y][x] /= maxE
			}
		}
	}
	return grid, nil
}
