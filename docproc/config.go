package docproc

import "log/slog"

// Config configures a Processor. The classification thresholds are empirical
// constants observed to work on real spool traffic; they are tunable here
// rather than baked in as invariants.
type Config struct {
	// JobsDir is the directory where processed documents, thumbnails and
	// fallback saves are written (default: "jobs").
	JobsDir string `json:"jobs_dir" yaml:"jobs_dir"`

	// TextSampleSize is how many leading bytes the text heuristic inspects
	// (default: 1024).
	TextSampleSize int `json:"text_sample_size" yaml:"text_sample_size"`

	// TextPrintableRatio is the exclusive lower bound on the printable-byte
	// fraction for a buffer to classify as text (default: 0.8).
	TextPrintableRatio float64 `json:"text_printable_ratio" yaml:"text_printable_ratio"`

	// PDFScanWindow bounds the leading region searched for the %PDF marker
	// (default: 1024). Spool transports prepend framing bytes to PDF payloads,
	// so the marker is rarely at offset 0.
	PDFScanWindow int `json:"pdf_scan_window" yaml:"pdf_scan_window"`

	// LinesPerPage approximates page count for plain-text documents
	// (default: 50).
	LinesPerPage int `json:"lines_per_page" yaml:"lines_per_page"`

	// ThumbnailMaxDim is the bounding dimension passed to the renderer for
	// image thumbnails (default: 256).
	ThumbnailMaxDim int `json:"thumbnail_max_dim" yaml:"thumbnail_max_dim"`

	// Logger for debug/error messages.
	Logger *slog.Logger `json:"-" yaml:"-"`
}

func (c *Config) defaults() {
	if c.JobsDir == "" {
		c.JobsDir = "jobs"
	}
	if c.TextSampleSize <= 0 {
		c.TextSampleSize = 1024
	}
	if c.TextPrintableRatio <= 0 {
		c.TextPrintableRatio = 0.8
	}
	if c.PDFScanWindow <= 0 {
		c.PDFScanWindow = 1024
	}
	if c.LinesPerPage <= 0 {
		c.LinesPerPage = 50
	}
	if c.ThumbnailMaxDim <= 0 {
		c.ThumbnailMaxDim = 256
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}
