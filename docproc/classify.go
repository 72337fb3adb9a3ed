package docproc

import "bytes"

// Format signatures. PDF is searched within a leading window because spool
// transports commonly prepend framing bytes; the binary image formats and
// PostScript are only honoured at offset 0.
var (
	sigPDF  = []byte("%PDF")
	sigJPEG = []byte{0xFF, 0xD8}
	sigPNG  = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}
	sigPS   = []byte("%!")
)

// Classify inspects a raw spooled payload and returns its best-guess type
// using the default thresholds. It is total: any input, including an empty
// buffer, yields exactly one DocumentType.
func Classify(data []byte) DocumentType {
	cfg := Config{}
	cfg.defaults()
	return classify(data, &cfg)
}

func classify(data []byte, cfg *Config) DocumentType {
	if len(data) == 0 {
		return TypeUnknown
	}

	// PDF: marker anywhere in the leading window, not just offset 0.
	window := len(data)
	if window > cfg.PDFScanWindow {
		window = cfg.PDFScanWindow
	}
	if bytes.Contains(data[:window], sigPDF) {
		return TypePDF
	}

	if bytes.HasPrefix(data, sigJPEG) {
		return TypeJPEG
	}
	if bytes.HasPrefix(data, sigPNG) {
		return TypePNG
	}
	if bytes.HasPrefix(data, sigPS) {
		return TypePostScript
	}

	if looksLikeText(data, cfg.TextSampleSize, cfg.TextPrintableRatio) {
		return TypeText
	}
	return TypeUnknown
}

// looksLikeText samples the first sampleSize bytes and reports whether the
// printable fraction strictly exceeds ratio. Printable means ASCII 32..126
// plus tab, LF and CR.
func looksLikeText(data []byte, sampleSize int, ratio float64) bool {
	sample := data
	if len(sample) > sampleSize {
		sample = sample[:sampleSize]
	}
	if len(sample) == 0 {
		return false
	}
	printable := 0
	for _, b := range sample {
		if (b >= 32 && b <= 126) || b == '\t' || b == '\n' || b == '\r' {
			printable++
		}
	}
	return float64(printable)/float64(len(sample)) > ratio
}
