package imageproc

import (
	"errors"
	"fmt"
	"math"

	"github.com/disintegration/imaging"
	"github.com/rapidphoto/pipeline/internal/model"
)

// Rendition - одна закодированная рендиция, ключ и загрузку добавляет оркестратор
type Rendition struct {
	Spec   model.RenditionSpec
	Data   []byte
	Width  int
	Height int
}

// ValidateSpecs checks the whole configured set before any decode or I/O is
// spent on a job. Width must be positive, quality 0-100 inclusive.
func ValidateSpecs(specs []model.RenditionSpec) error {
	if len(specs) == 0 {
		return fmt.Errorf("%w: empty rendition spec set", model.ErrInvalidParameter)
	}
	for _, s := range specs {
		if s.TargetWidth <= 0 {
			return fmt.Errorf("%w: width must be positive, got %d", model.ErrInvalidParameter, s.TargetWidth)
		}
		if s.Quality < 0 || s.Quality > 100 {
			return fmt.Errorf("%w: quality must be 0-100, got %d", model.ErrInvalidParameter, s.Quality)
		}
	}
	return nil
}

// RenderOne encodes a single aspect-preserving WebP rendition. A source
// narrower than the target keeps its dimensions - never upscale.
func RenderOne(src *model.CanonicalImage, spec model.RenditionSpec) (*Rendition, error) {
	if src == nil || src.Raster == nil {
		return nil, errors.New("nil canonical image provided to RenderOne")
	}
	if spec.TargetWidth <= 0 {
		return nil, fmt.Errorf("%w: width must be positive, got %d", model.ErrInvalidParameter, spec.TargetWidth)
	}
	if spec.Quality < 0 || spec.Quality > 100 {
		return nil, fmt.Errorf("%w: quality must be 0-100, got %d", model.ErrInvalidParameter, spec.Quality)
	}

	img := src.Raster
	width, height := src.Width, src.Height

	if src.Width > spec.TargetWidth {
		width = spec.TargetWidth
		height = int(math.Round(float64(spec.TargetWidth) * float64(src.Height) / float64(src.Width)))
		img = imaging.Resize(img, width, height, imaging.Lanczos)
	}

	data, err := EncodeWebP(img, spec.Quality)
	if err != nil {
		return nil, err
	}

	return &Rendition{Spec: spec, Data: data, Width: width, Height: height}, nil
}
