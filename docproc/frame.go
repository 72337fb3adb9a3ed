package docproc

import "bytes"

// ExtractFrame locates the first occurrence of the type's own signature and
// returns the sub-buffer starting there plus the number of leading framing
// bytes stripped. It is total: when the signature is absent, or the type has
// no positional signature to anchor on, the input is returned unchanged with
// offset 0. Non-binary and unrecognised payloads are assumed to need no
// trimming.
func ExtractFrame(data []byte, t DocumentType) ([]byte, int) {
	var sig []byte
	switch t {
	case TypePDF:
		sig = sigPDF
	case TypeJPEG:
		sig = sigJPEG
	case TypePNG:
		sig = sigPNG
	default:
		return data, 0
	}

	off := bytes.Index(data, sig)
	if off <= 0 {
		return data, 0
	}
	return data[off:], off
}
