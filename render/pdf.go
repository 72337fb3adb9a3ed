package render

import (
	"bytes"
	"errors"
	"fmt"
	"image"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// RenderFirstPage produces a preview for a PDF payload by extracting the
// first decodable image embedded on page 1. pdfcpu does not rasterise page
// content, so text-only PDFs yield an error — the processing core treats
// that as "no thumbnail", not a failure.
func (e *Engine) RenderFirstPage(data []byte) (image.Image, error) {
	conf := model.NewDefaultConfiguration()
	ctx, err := api.ReadValidateAndOptimize(bytes.NewReader(data), conf)
	if err != nil {
		return nil, fmt.Errorf("pdfcpu read: %w", err)
	}
	if ctx.PageCount < 1 {
		return nil, errors.New("pdf has no pages")
	}

	images, err := pdfcpu.ExtractPageImages(ctx, 1, false)
	if err != nil {
		return nil, fmt.Errorf("extract page images: %w", err)
	}
	for _, img := range images {
		decoded, _, err := image.Decode(img)
		if err != nil {
			continue
		}
		return scaleToFit(decoded, e.maxDim), nil
	}
	return nil, errors.New("no renderable image on first page")
}
