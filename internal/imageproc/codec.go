// Package imageproc provides the raster operations of the pipeline: decoding
// to a canonical raster, center-cropped thumbnail generation and multi-width
// WebP rendition encoding.
package imageproc

import (
	"bytes"
	"fmt"
	"image"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"github.com/rapidphoto/pipeline/internal/model"
)

// Decode turns raw bytes into a canonical raster: EXIF orientation applied,
// pixels normalized to NRGBA so every encoder downstream gets a supported
// color space. Top-left origin, no further rotation needed.
func Decode(data []byte) (*model.CanonicalImage, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrDecode, err)
	}

	// определяем имя исходного формата
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrDecode, err)
	}

	canonical := imaging.Clone(img)
	return &model.CanonicalImage{
		Raster:       canonical,
		Width:        canonical.Bounds().Dx(),
		Height:       canonical.Bounds().Dy(),
		SourceFormat: format,
		ByteSize:     int64(len(data)),
	}, nil
}

func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, fmt.Errorf("failed to encode JPEG: %w", err)
	}
	return buf.Bytes(), nil
}

func EncodeWebP(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := webp.Encode(&buf, img, &webp.Options{Quality: float32(quality)}); err != nil {
		return nil, fmt.Errorf("failed to encode WebP: %w", err)
	}
	return buf.Bytes(), nil
}
