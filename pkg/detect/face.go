// Package detect provides the default implementations of the annotation
// collaborators: pigo face detection, gradient-energy saliency, smartcrop
// aesthetic cropping and imagemeta metadata extraction. Each is optional;
// the callers degrade gracefully when one cannot be constructed.
package detect

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	pigo "github.com/esimov/pigo/core"

	"github.com/lucvincent/photoloop/pkg/media"
)

// PigoFaceDetector detects faces with the pure-Go pigo cascade classifier.
type PigoFaceDetector struct {
	classifier    *pigo.Pigo
	minConfidence float64
}

// NewPigoFaceDetector loads the cascade file at cascadePath.
func NewPigoFaceDetector(cascadePath string, minConfidence float64) (*PigoFaceDetector, error) {
	cascade, err := os.ReadFile(cascadePath)
	if err != nil {
		return nil, fmt.Errorf("reading cascade %s: %w", cascadePath, err)
	}
	classifier, err := pigo.NewPigo().Unpack(cascade)
	if err != nil {
		return nil, fmt.Errorf("unpacking cascade: %w", err)
	}
	return &PigoFaceDetector{classifier: classifier, minConfidence: minConfidence}, nil
}

// Detect implements processor.FaceDetector. Rectangles are normalized to
// the image dimensions; confidence is the cascade quality scaled to [0,1].
func (d *PigoFaceDetector) Detect(imagePath string) ([]media.FaceRegion, error) {
	f, err := os.Open(imagePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", imagePath, err)
	}

	pixels := pigo.RgbToGrayscale(img)
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	minDim := width
	if height < minDim {
		minDim = height
	}

	params := pigo.CascadeParams{
		MinSize:     int(float64(minDim) * 0.05),
		MaxSize:     minDim,
		ShiftFactor: 0.1,
		ScaleFactor: 1.1,
		ImageParams: pigo.ImageParams{
			Pixels: pixels,
			Rows:   height,
			Cols:   width,
			Dim:    width,
		},
	}

	dets := d.classifier.RunCascade(params, 0.0)
	dets = d.classifier.ClusterDetections(dets, 0.2)

	faces := make([]media.FaceRegion, 0, len(dets))
	for _, det := range dets {
		confidence := float64(det.Q) / 100.0
		if confidence > 1 {
			confidence = 1
		}
		if confidence < d.minConfidence {
			continue
		}
		// pigo reports the core of the face (eyes/nose/mouth); expand by
		// half to cover forehead and chin.
		scale := float64(det.Scale) * 1.5
		x := float64(det.Col) - scale/2
		y := float64(det.Row) - scale/2

		faces = append(faces, media.FaceRegion{
			X:          x / float64(width),
			Y:          y / float64(height),
			Width:      scale / float64(width),
			Height:     scale / float64(height),
			Confidence: confidence,
		})
	}
	return faces, nil
}
