package docproc

import (
	"bytes"
	"regexp"
)

// PDF dictionary entries captured by the heuristic scan. Values are taken
// verbatim from the parenthesised literal, no escape-sequence decoding.
var (
	pdfTitleRe    = regexp.MustCompile(`/Title\s*\(([^)]*)\)`)
	pdfAuthorRe   = regexp.MustCompile(`/Author\s*\(([^)]*)\)`)
	pdfSubjectRe  = regexp.MustCompile(`/Subject\s*\(([^)]*)\)`)
	pdfCreatorRe  = regexp.MustCompile(`/Creator\s*\(([^)]*)\)`)
	pdfProducerRe = regexp.MustCompile(`/Producer\s*\(([^)]*)\)`)
	pdfKeywordsRe = regexp.MustCompile(`/Keywords\s*\(([^)]*)\)`)
	pdfCreatedRe  = regexp.MustCompile(`/CreationDate\s*\(([^)]*)\)`)
	pdfModifiedRe = regexp.MustCompile(`/ModDate\s*\(([^)]*)\)`)

	// \b keeps /Pages from counting as a page object.
	pdfPageRe = regexp.MustCompile(`/Type\s*/Page\b`)
)

// extractPDFMetadata scans the buffer as single-byte text for well-known
// dictionary entries. This is deliberately not a PDF parser: object streams
// and encrypted documents defeat it, and that is fine — the goal is a
// best-effort summary, not validation.
func extractPDFMetadata(data []byte, meta DocumentMetadata) (DocumentMetadata, error) {
	// Byte-wise conversion keeps Latin-1 values intact.
	text := latin1String(data)

	meta.Title = firstSubmatch(pdfTitleRe, text)
	meta.Author = firstSubmatch(pdfAuthorRe, text)
	meta.Subject = firstSubmatch(pdfSubjectRe, text)
	meta.Creator = firstSubmatch(pdfCreatorRe, text)
	meta.Producer = firstSubmatch(pdfProducerRe, text)
	meta.Keywords = firstSubmatch(pdfKeywordsRe, text)
	meta.CreationDate = firstSubmatch(pdfCreatedRe, text)
	meta.ModificationDate = firstSubmatch(pdfModifiedRe, text)

	if n := len(pdfPageRe.FindAllStringIndex(text, -1)); n > 0 {
		meta.PageCount = n
	} else {
		meta.PageCount = 1
	}

	// "BT " assumes text is drawn starting a text object — common but not
	// universal.
	meta.HasText = bytes.Contains(data, []byte("/Font")) || bytes.Contains(data, []byte("BT "))
	meta.HasImages = bytes.Contains(data, []byte("/Image")) || bytes.Contains(data, []byte("/XObject"))

	if bytes.Contains(data, []byte("/Encrypt")) {
		meta.Encryption = "standard"
	}

	return meta, nil
}

// latin1String maps each byte to the rune of the same value, so regexp
// matching over binary PDF data stays byte-accurate.
func latin1String(data []byte) string {
	runes := make([]rune, len(data))
	for i, b := range data {
		runes[i] = rune(b)
	}
	return string(runes)
}

func firstSubmatch(re *regexp.Regexp, s string) string {
	m := re.FindStringSubmatch(s)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}
