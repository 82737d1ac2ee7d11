package imageproc

import (
	"errors"

	"github.com/disintegration/imaging"
	"github.com/rapidphoto/pipeline/internal/model"
)

// Thumbnailer produces a JPEG thumbnail of exactly width x height. The longer
// axis is cropped symmetrically around the center to match the target aspect,
// then the crop is resized with Lanczos resampling.
func Thumbnailer(src *model.CanonicalImage, width, height, quality int) ([]byte, error) {
	if src == nil || src.Raster == nil {
		return nil, errors.New("nil canonical image provided to Thumbnailer")
	}

	imgAspect := float64(src.Width) / float64(src.Height)
	targetAspect := float64(width) / float64(height)

	img := src.Raster
	switch {
	case imgAspect > targetAspect:
		// исходник шире цели - обрезаем ширину
		newWidth := int(float64(src.Height) * targetAspect)
		img = imaging.CropCenter(img, newWidth, src.Height)
	case imgAspect < targetAspect:
		// исходник выше цели - обрезаем высоту
		newHeight := int(float64(src.Width) / targetAspect)
		img = imaging.CropCenter(img, src.Width, newHeight)
	}

	img = imaging.Resize(img, width, height, imaging.Lanczos)

	return EncodeJPEG(img, quality)
}
