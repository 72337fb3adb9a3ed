package docproc

// ExtractMetadata derives descriptive and structural facts from a trimmed
// payload using the default configuration. See Processor.extractMetadata for
// the failure contract.
func ExtractMetadata(data []byte, t DocumentType, props map[string]string) DocumentMetadata {
	cfg := Config{}
	cfg.defaults()
	p := &Processor{cfg: cfg, logger: cfg.Logger}
	return p.extractMetadata(data, t, props)
}

// extractMetadata dispatches to a type-specific routine. A routine failure is
// absorbed here: whatever fields it managed to fill before failing are kept,
// and the result is still a well-formed record with PageCount >= 1.
func (p *Processor) extractMetadata(data []byte, t DocumentType, props map[string]string) DocumentMetadata {
	meta := baseMetadata(data, props)

	var err error
	switch t {
	case TypePDF:
		meta, err = extractPDFMetadata(data, meta)
	case TypeJPEG, TypePNG:
		meta, err = extractImageMetadata(data, meta)
	case TypeText:
		meta, err = extractTextMetadata(data, meta, p.cfg.LinesPerPage)
	default:
		// raw, postscript, unknown: no structural inference.
	}
	if err != nil {
		p.logger.Warn("metadata extraction degraded", "type", t, "error", err)
	}

	if meta.PageCount < 1 {
		meta.PageCount = 1
	}
	return meta
}

// baseMetadata is the starting record for every extraction path: the trimmed
// size plus the caller-supplied properties as the custom-properties baseline.
func baseMetadata(data []byte, props map[string]string) DocumentMetadata {
	meta := DocumentMetadata{
		PageCount:    1,
		DocumentSize: int64(len(data)),
	}
	if len(props) > 0 {
		meta.Properties = make(map[string]string, len(props))
		for k, v := range props {
			meta.Properties[k] = v
		}
	}
	return meta
}

// setProperty records an extractor-derived property without overwriting a
// caller-supplied value of the same name.
func (m *DocumentMetadata) setProperty(key, value string) {
	if m.Properties == nil {
		m.Properties = make(map[string]string)
	}
	if _, exists := m.Properties[key]; exists {
		return
	}
	m.Properties[key] = value
}
