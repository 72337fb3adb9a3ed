// Package render is the default rendering backend for document thumbnails.
// It implements the docproc.Renderer capability: header-safe image decoding
// and scaling, first-page image extraction for PDFs, and a monospace raster
// of text snippets. All methods are pure byte-in/image-out; callers decide
// where output is persisted.
package render

import "github.com/spoolworks/spooldoc/docproc"

// Engine renders preview images from document payloads.
type Engine struct {
	maxDim int
}

var _ docproc.Renderer = (*Engine)(nil)

// New creates an Engine. maxDim bounds the larger output dimension for PDF
// previews (default: 256). Image previews use the per-call maximum instead.
func New(maxDim int) *Engine {
	if maxDim <= 0 {
		maxDim = 256
	}
	return &Engine{maxDim: maxDim}
}
