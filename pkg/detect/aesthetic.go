package detect

import (
	"image"
	"os"

	"github.com/muesli/smartcrop"
	"github.com/muesli/smartcrop/nfnt"

	"github.com/lucvincent/photoloop/pkg/media"
)

// SmartcropAesthetic proposes crops with the smartcrop content-aware
// analyzer. It is the built-in implementation of the aesthetic-cropper
// contract.
type SmartcropAesthetic struct{}

// NewSmartcropAesthetic returns the analyzer-backed cropper.
func NewSmartcropAesthetic() *SmartcropAesthetic {
	return &SmartcropAesthetic{}
}

// BestCrop implements processor.AestheticCropper. The returned region is
// normalized to the image dimensions.
func (c *SmartcropAesthetic) BestCrop(imagePath string, targetAspect float64) (media.CropRegion, error) {
	f, err := os.Open(imagePath)
	if err != nil {
		return media.CropRegion{}, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return media.CropRegion{}, err
	}

	analyzer := smartcrop.NewAnalyzer(nfnt.NewDefaultResizer())
	w := 1000
	h := 1000
	if targetAspect >= 1 {
		w = int(1000 * targetAspect)
	} else {
		h = int(1000 / targetAspect)
	}
	best, err := analyzer.FindBestCrop(img, w, h)
	if err != nil {
		return media.CropRegion{}, err
	}

	b := img.Bounds()
	return media.CropRegion{
		X:      float64(best.Min.X-b.Min.X) / float64(b.Dx()),
		Y:      float64(best.Min.Y-b.Min.Y) / float64(b.Dy()),
		Width:  float64(best.Dx()) / float64(b.Dx()),
		Height: float64(best.Dy()) / float64(b.Dy()),
	}, nil
}
