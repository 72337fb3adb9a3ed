package docproc

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
)

// Renderer is the external rendering capability. The processing core never
// decodes pixels itself; it only decides whether to ask and where to persist
// the answer. Implementations live outside this package (see package render).
type Renderer interface {
	// RenderFirstPage rasterises the first page of a PDF payload.
	RenderFirstPage(data []byte) (image.Image, error)
	// DecodeAndScale decodes an image payload and scales it to fit maxDim.
	DecodeAndScale(data []byte, maxDim int) (image.Image, error)
	// RenderTextSnippet rasterises the leading portion of a text payload.
	RenderTextSnippet(data []byte, maxChars, maxLines int) (image.Image, error)
}

// Snippet bounds for text thumbnails.
const (
	textSnippetChars = 2048
	textSnippetLines = 20
)

// renderThumbnail asks the renderer for a preview of the trimmed payload and
// persists it as PNG next to the document. Absence of a renderer, a renderer
// error, a nil image and a failed write are all non-fatal: the return is the
// thumbnail path or "".
func (p *Processor) renderThumbnail(data []byte, t DocumentType, docFilename string) string {
	if p.renderer == nil {
		return ""
	}

	var (
		img image.Image
		err error
	)
	switch t {
	case TypePDF:
		img, err = p.renderer.RenderFirstPage(data)
	case TypeJPEG, TypePNG:
		img, err = p.renderer.DecodeAndScale(data, p.cfg.ThumbnailMaxDim)
	case TypeText:
		img, err = p.renderer.RenderTextSnippet(data, textSnippetChars, textSnippetLines)
	default:
		return ""
	}
	if err != nil {
		p.logger.Debug("thumbnail render skipped", "type", t, "error", err)
		return ""
	}
	if img == nil {
		return ""
	}

	path := filepath.Join(p.cfg.JobsDir, "thumb_"+docFilename+".png")
	if err := writePNG(path, img); err != nil {
		p.logger.Warn("thumbnail write failed", "path", path, "error", err)
		return ""
	}
	return path
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("encode png: %w", err)
	}
	return f.Close()
}
