package docproc

import (
	"bytes"
	"fmt"
	"image"
	"image/color"

	_ "image/jpeg"
	_ "image/png"
)

// extractImageMetadata decodes only the image header (never pixel data) to
// obtain dimensions and a pixel-format tag.
func extractImageMetadata(data []byte, meta DocumentMetadata) (DocumentMetadata, error) {
	meta.HasImages = true
	meta.PageCount = 1

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		// Truncated or lying header: keep what we have.
		return meta, fmt.Errorf("decode image header: %w", err)
	}

	meta.Resolution = fmt.Sprintf("%dx%d", cfg.Width, cfg.Height)
	meta.ColorSpace = colorSpaceTag(cfg.ColorModel)
	return meta, nil
}

// colorSpaceTag maps a decoded color model onto the small fixed vocabulary
// used by downstream renderers.
func colorSpaceTag(m color.Model) string {
	switch m {
	case color.RGBAModel, color.NRGBAModel, color.RGBA64Model, color.NRGBA64Model, color.YCbCrModel, color.NYCbCrAModel:
		return "ARGB8888"
	case color.GrayModel, color.Gray16Model, color.AlphaModel, color.Alpha16Model:
		return "ALPHA8"
	case color.CMYKModel:
		return "Unknown"
	}
	// Paletted PNGs carry their own model values.
	if _, ok := m.(color.Palette); ok {
		return "RGB565"
	}
	return "Unknown"
}
