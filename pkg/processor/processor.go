// Package processor computes per-entry display parameters: the crop region
// that maps a source image onto the screen, and the optional slow zoom/pan
// animation. Results are memoized on the catalog entry by the caller.
package processor

import (
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"math/rand"
	"os"
	"sync"
	"time"

	"github.com/lucvincent/photoloop/config"
	"github.com/lucvincent/photoloop/pkg/media"
	"github.com/lucvincent/photoloop/util/log"
)

// FaceDetector finds faces in an image file. Rectangles and confidence are
// normalized to [0,1].
type FaceDetector interface {
	Detect(imagePath string) ([]media.FaceRegion, error)
}

// SaliencyDetector produces a 2-D saliency grid for an image file. Row
// major, values in [0,1].
type SaliencyDetector interface {
	SaliencyMap(imagePath string) ([][]float64, error)
}

// AestheticCropper proposes a best crop at a target aspect ratio.
type AestheticCropper interface {
	BestCrop(imagePath string, targetAspect float64) (media.CropRegion, error)
}

// Engine computes display parameters under one scaling policy. The
// saliency and aesthetic collaborators are optional; their absence is a
// normal runtime condition handled by falling back to the configured
// fallback crop.
type Engine struct {
	scaling  config.ScalingConfig
	kenBurns config.KenBurnsConfig

	saliency  SaliencyDetector
	aesthetic AestheticCropper

	rngMu sync.Mutex
	rng   *rand.Rand
}

// New creates an engine for the given policy.
func New(scaling config.ScalingConfig, kenBurns config.KenBurnsConfig) *Engine {
	return &Engine{
		scaling:  scaling,
		kenBurns: kenBurns,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// SetSaliencyDetector attaches the optional saliency collaborator.
func (p *Engine) SetSaliencyDetector(s SaliencyDetector) { p.saliency = s }

// SetAestheticCropper attaches the optional aesthetic collaborator.
func (p *Engine) SetAestheticCropper(a AestheticCropper) { p.aesthetic = a }

// SetPolicy swaps the scaling policy after a config reload. Callers must
// reset memoized display params themselves; the catalog fingerprint logic
// does that.
func (p *Engine) SetPolicy(scaling config.ScalingConfig, kenBurns config.KenBurnsConfig) {
	p.scaling = scaling
	p.kenBurns = kenBurns
}

// imageDimensions reads just the header of an image file.
func imageDimensions(path string) (int, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, err
	}
	return cfg.Width, cfg.Height, nil
}

// Compute produces the display parameters for one entry at the given
// screen resolution. An unreadable image yields the full frame with no
// animation; it is not an error.
func (p *Engine) Compute(e media.Entry, faces []media.FaceRegion, screenW, screenH int, photoDuration float64) media.DisplayParams {
	params := media.DisplayParams{
		ScreenWidth:  screenW,
		ScreenHeight: screenH,
		CropRegion:   media.FullFrame(),
	}

	imgW, imgH, err := imageDimensions(e.LocalPath)
	if err != nil || imgW == 0 || imgH == 0 {
		log.Printf("Failed to read image %s: %v", e.LocalPath, err)
		return params
	}

	imgAspect := float64(imgW) / float64(imgH)
	screenAspect := float64(screenW) / float64(screenH)

	var crop media.CropRegion
	switch p.scaling.Mode {
	case "fit", "stretch":
		// The rasterizer letterboxes or distorts; no cropping here.
		crop = media.FullFrame()
	case "balanced":
		crop = p.balancedCrop(e.LocalPath, imgW, imgH, imgAspect, screenAspect, faces)
	default: // fill
		cw, ch := fillCropSize(imgAspect, screenAspect)
		x, y := p.positionCrop(e.LocalPath, cw, ch, faces)
		crop = media.CropRegion{X: x, Y: y, Width: cw, Height: ch}
	}
	params.CropRegion = crop

	if p.kenBurns.Enabled {
		kb := p.generateKenBurns(crop, photoDuration)
		params.KenBurns = &kb
	}
	return params
}

// fillCropSize returns the normalized crop size that makes the image fill
// the screen exactly.
func fillCropSize(imgAspect, screenAspect float64) (cw, ch float64) {
	if imgAspect > screenAspect {
		// Image is wider: crop the sides.
		return screenAspect / imgAspect, 1.0
	}
	// Image is taller: crop top/bottom.
	return 1.0, imgAspect / screenAspect
}

// balancedCrop crops up to max_crop_percent of the long axis to shrink the
// bars, accepting some letterboxing when the aspect mismatch is large.
func (p *Engine) balancedCrop(path string, imgW, imgH int, imgAspect, screenAspect float64, faces []media.FaceRegion) media.CropRegion {
	maxCrop := float64(p.scaling.MaxCropPercent) / 100.0

	fillW, fillH := fillCropSize(imgAspect, screenAspect)
	var cropFraction float64
	if imgAspect > screenAspect {
		cropFraction = 1.0 - fillW
	} else {
		cropFraction = 1.0 - fillH
	}

	var cw, ch float64
	if cropFraction <= maxCrop {
		cw, ch = fillW, fillH
	} else if imgAspect > screenAspect {
		cw = 1.0 - maxCrop
		ch = math.Min(1.0, cw*imgAspect/screenAspect)
	} else {
		ch = 1.0 - maxCrop
		cw = math.Min(1.0, ch*screenAspect/imgAspect)
	}

	x, y := p.positionCrop(path, cw, ch, faces)
	return media.CropRegion{X: x, Y: y, Width: cw, Height: ch}
}

// positionCrop places a crop of the given size using the configured smart
// crop method, then applies the crop bias.
func (p *Engine) positionCrop(path string, cw, ch float64, faces []media.FaceRegion) (float64, float64) {
	var x, y float64
	switch p.scaling.SmartCropMethod {
	case "saliency":
		x, y = p.positionForSaliency(path, cw, ch)
	case "aesthetic":
		x, y = p.positionForAesthetics(path, cw, ch)
	default: // face
		if len(faces) > 0 {
			x, y = p.positionForFaces(cw, ch, faces)
		} else {
			x, y = p.fallbackPosition(cw, ch)
		}
	}

	significant := significantFaces(faces, 0.02)
	switch p.scaling.CropBias {
	case "top":
		// Preserve the top edge, but never push a face out of frame.
		if len(significant) > 0 {
			_, fy, _, fh, _ := media.FacesBoundingBox(significant, 0)
			minY := math.Max(0, fy+fh-ch+0.05)
			y = math.Max(0, math.Min(y, minY))
		} else {
			y = 0
		}
	case "bottom":
		if len(significant) > 0 {
			_, fy, _, _, _ := media.FacesBoundingBox(significant, 0)
			maxY := math.Min(1-ch, fy-0.05)
			y = math.Min(1-ch, math.Max(y, maxY))
		} else {
			y = 1 - ch
		}
	}
	return x, y
}

func significantFaces(faces []media.FaceRegion, minSize float64) []media.FaceRegion {
	var out []media.FaceRegion
	for _, f := range faces {
		if f.Width >= minSize || f.Height >= minSize {
			out = append(out, f)
		}
	}
	return out
}

// positionForFaces frames the significant faces with their upper-head line
// near a quarter of the way down the crop, then corrects so no face is
// clipped. Face inclusion wins over the target position.
func (p *Engine) positionForFaces(cw, ch float64, faces []media.FaceRegion) (float64, float64) {
	significant := significantFaces(faces, 0.03)
	if len(significant) == 0 {
		significant = significantFaces(faces, 0.02)
	}
	if len(significant) == 0 {
		return p.fallbackPosition(cw, ch)
	}

	fbX, fbY, fbW, fbH, ok := media.FacesBoundingBox(significant, 0.02)
	if !ok {
		return p.fallbackPosition(cw, ch)
	}

	// The eyes/forehead band sits around 40% into the face box; place it a
	// quarter down the frame.
	faceLine := fbY + fbH*0.4
	const targetYInFrame = 0.25
	y := faceLine - targetYInFrame*ch

	faceCX := fbX + fbW/2
	x := faceCX - 0.5*cw

	// Widen toward the faces if the box would be clipped.
	const safety = 0.02
	if fbY < y+safety {
		y = fbY - safety
	}
	if fbY+fbH > y+ch-safety {
		y = fbY + fbH - ch + safety
	}
	if fbX < x+safety {
		x = fbX - safety
	}
	if fbX+fbW > x+cw-safety {
		x = fbX + fbW - cw + safety
	}

	x = clamp(x, 0, 1-cw)
	y = clamp(y, 0, 1-ch)
	return x, y
}

// positionForSaliency slides the crop over an integral image of the
// saliency map, coarse grid first, then an exhaustive pass one step around
// the best coarse hit.
func (p *Engine) positionForSaliency(path string, cw, ch float64) (float64, float64) {
	if p.saliency == nil {
		return p.fallbackPosition(cw, ch)
	}
	grid, err := p.saliency.SaliencyMap(path)
	if err != nil || len(grid) == 0 || len(grid[0]) == 0 {
		if err != nil {
			log.Printf("Saliency detection failed, using fallback: %v", err)
		}
		return p.fallbackPosition(cw, ch)
	}

	height := len(grid)
	width := len(grid[0])
	cropW := min(int(cw*float64(width)), width)
	cropH := min(int(ch*float64(height)), height)
	if cropW <= 0 || cropH <= 0 || (cropW == width && cropH == height) {
		return p.fallbackPosition(cw, ch)
	}

	integral := integralImage(grid)
	sum := func(x, y int) float64 {
		x2, y2 := x+cropW, y+cropH
		return integral[y2][x2] - integral[y][x2] - integral[y2][x] + integral[y][x]
	}

	step := max(1, min(cropW, cropH)/20)
	bestX, bestY := 0, 0
	bestScore := -1.0
	for y := 0; y <= height-cropH; y += step {
		for x := 0; x <= width-cropW; x += step {
			if s := sum(x, y); s > bestScore {
				bestScore = s
				bestX, bestY = x, y
			}
		}
	}

	// Refine around the coarse best.
	cx, cy := bestX, bestY
	for dy := -step; dy <= step; dy++ {
		for dx := -step; dx <= step; dx++ {
			x := clampInt(cx+dx, 0, width-cropW)
			y := clampInt(cy+dy, 0, height-cropH)
			if s := sum(x, y); s > bestScore {
				bestScore = s
				bestX, bestY = x, y
			}
		}
	}

	x := float64(bestX) / float64(width)
	y := float64(bestY) / float64(height)
	return clamp(x, 0, 1-cw), clamp(y, 0, 1-ch)
}

// positionForAesthetics asks the aesthetic collaborator for a best crop,
// falling back to the saliency centroid at a rule-of-thirds target.
func (p *Engine) positionForAesthetics(path string, cw, ch float64) (float64, float64) {
	if p.aesthetic != nil {
		targetAspect := cw / ch
		crop, err := p.aesthetic.BestCrop(path, targetAspect)
		if err == nil {
			return clamp(crop.X, 0, 1-cw), clamp(crop.Y, 0, 1-ch)
		}
		log.Printf("Aesthetic cropping failed: %v", err)
	}

	if p.saliency != nil {
		if grid, err := p.saliency.SaliencyMap(path); err == nil && len(grid) > 0 && len(grid[0]) > 0 {
			cx, cy, total := saliencyCentroid(grid)
			if total > 0.001 {
				// Saliency center at the upper-third intersection.
				x := clamp(cx-0.5*cw, 0, 1-cw)
				y := clamp(cy-0.33*ch, 0, 1-ch)
				return x, y
			}
		}
	}

	return p.fallbackPosition(cw, ch)
}

// fallbackPosition centers horizontally; vertical placement follows the
// configured fallback.
func (p *Engine) fallbackPosition(cw, ch float64) (float64, float64) {
	x := (1 - cw) / 2
	var y float64
	switch p.scaling.FallbackCrop {
	case "top":
		y = 0
	case "bottom":
		y = 1 - ch
	default:
		y = (1 - ch) / 2
	}
	return x, y
}

// generateKenBurns derives the zoom/pan animation from the chosen crop.
// Both endpoints are constrained so the visible view stays inside the
// image with a safety margin at its zoom level.
func (p *Engine) generateKenBurns(crop media.CropRegion, duration float64) media.KenBurnsAnimation {
	minZoom, maxZoom := p.kenBurns.ZoomRange[0], p.kenBurns.ZoomRange[1]
	mid := (minZoom + maxZoom) / 2

	p.rngMu.Lock()
	var startZoom, endZoom float64
	if p.kenBurns.Randomize {
		if p.rng.Float64() > 0.5 {
			startZoom = minZoom + p.rng.Float64()*(mid-minZoom)
			endZoom = mid + p.rng.Float64()*(maxZoom-mid)
		} else {
			startZoom = mid + p.rng.Float64()*(maxZoom-mid)
			endZoom = minZoom + p.rng.Float64()*(mid-minZoom)
		}
	} else {
		startZoom, endZoom = minZoom, maxZoom
	}

	baseCX := crop.X + crop.Width/2
	baseCY := crop.Y + crop.Height/2
	maxPan := p.kenBurns.PanSpeed * duration

	var panDX, panDY float64
	if p.kenBurns.Randomize {
		angle := p.rng.Float64() * 2 * math.Pi
		panDX = math.Cos(angle) * maxPan / 2
		panDY = math.Sin(angle) * maxPan / 2
	} else {
		panDX = maxPan / 3
		panDY = maxPan / 4
	}
	p.rngMu.Unlock()

	// Each endpoint's visible view must stay inside the image at its zoom
	// level, with a safety margin where one fits. A full-axis crop at zoom
	// 1.0 has no slack on that axis; the center pins to the middle.
	const safeMargin = 0.05
	axisClamp := func(c, half float64) float64 {
		lo, hi := half+safeMargin, 1-half-safeMargin
		if lo > hi {
			lo, hi = half, 1-half
		}
		if lo > hi {
			return 0.5
		}
		return clamp(c, lo, hi)
	}
	constrain := func(zoom, cx, cy float64) (float64, float64) {
		halfW := crop.Width / (2 * zoom)
		halfH := crop.Height / (2 * zoom)
		return axisClamp(cx, halfW), axisClamp(cy, halfH)
	}

	startCX, startCY := constrain(startZoom, baseCX-panDX, baseCY-panDY)
	endCX, endCY := constrain(endZoom, baseCX+panDX, baseCY+panDY)

	return media.KenBurnsAnimation{
		StartZoom:   startZoom,
		EndZoom:     endZoom,
		StartCenter: [2]float64{startCX, startCY},
		EndCenter:   [2]float64{endCX, endCY},
	}
}

func integralImage(grid [][]float64) [][]float64 {
	h, w := len(grid), len(grid[0])
	integral := make([][]float64, h+1)
	for i := range integral {
		integral[i] = make([]float64, w+1)
	}
	for y := 1; y <= h; y++ {
		for x := 1; x <= w; x++ {
			integral[y][x] = grid[y-1][x-1] + integral[y-1][x] + integral[y][x-1] - integral[y-1][x-1]
		}
	}
	return integral
}

func saliencyCentroid(grid [][]float64) (cx, cy, total float64) {
	h, w := len(grid), len(grid[0])
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := grid[y][x]
			total += v
			cx += v * float64(x) / float64(w)
			cy += v * float64(y) / float64(h)
		}
	}
	if total > 0 {
		cx /= total
		cy /= total
	}
	return cx, cy, total
}

func clamp(v, lo, hi float64) float64 {
	if hi < lo {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
