package docproc

import "strings"

// DocumentType identifies a spooled document format.
type DocumentType string

const (
	TypePDF        DocumentType = "pdf"
	TypeJPEG       DocumentType = "jpeg"
	TypePNG        DocumentType = "png"
	TypePostScript DocumentType = "postscript"
	TypeRaw        DocumentType = "raw"
	TypeText       DocumentType = "text"
	TypeUnknown    DocumentType = "unknown"
)

// Extension returns the canonical file extension (without dot) for the type.
// Unknown documents use "data" so fallback saves land as job_<id>_<ts>.data.
func (t DocumentType) Extension() string {
	switch t {
	case TypePDF:
		return "pdf"
	case TypeJPEG:
		return "jpg"
	case TypePNG:
		return "png"
	case TypePostScript:
		return "ps"
	case TypeRaw:
		return "raw"
	case TypeText:
		return "txt"
	default:
		return "data"
	}
}

// MIME returns the canonical MIME type.
func (t DocumentType) MIME() string {
	switch t {
	case TypePDF:
		return "application/pdf"
	case TypeJPEG:
		return "image/jpeg"
	case TypePNG:
		return "image/png"
	case TypePostScript:
		return "application/postscript"
	case TypeText:
		return "text/plain"
	default:
		return "application/octet-stream"
	}
}

// TypeFromMIME maps a MIME string back to a DocumentType. Unrecognised or
// empty strings map to TypeUnknown; application/octet-stream maps to TypeRaw
// since spool transports declare raw payloads that way.
func TypeFromMIME(mime string) DocumentType {
	switch strings.ToLower(strings.TrimSpace(mime)) {
	case "application/pdf":
		return TypePDF
	case "image/jpeg", "image/jpg":
		return TypeJPEG
	case "image/png":
		return TypePNG
	case "application/postscript":
		return TypePostScript
	case "text/plain":
		return TypeText
	case "application/octet-stream":
		return TypeRaw
	default:
		return TypeUnknown
	}
}

// TypeFromExtension maps a file extension (with or without leading dot) to a
// DocumentType, defaulting to TypeUnknown.
func TypeFromExtension(ext string) DocumentType {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "pdf":
		return TypePDF
	case "jpg", "jpeg":
		return TypeJPEG
	case "png":
		return TypePNG
	case "ps":
		return TypePostScript
	case "raw":
		return TypeRaw
	case "txt", "text":
		return TypeText
	default:
		return TypeUnknown
	}
}

// DocumentMetadata holds descriptive and structural facts derived from a
// trimmed document payload. Values are set once during extraction; later
// refinement builds a new record rather than mutating an existing one.
type DocumentMetadata struct {
	Title            string `json:"title,omitempty"`
	Author           string `json:"author,omitempty"`
	Subject          string `json:"subject,omitempty"`
	Creator          string `json:"creator,omitempty"`
	Producer         string `json:"producer,omitempty"`
	CreationDate     string `json:"creation_date,omitempty"` // opaque, format-specific
	ModificationDate string `json:"modification_date,omitempty"`
	Keywords         string `json:"keywords,omitempty"`

	PageCount    int   `json:"page_count"`    // always >= 1
	DocumentSize int64 `json:"document_size"` // trimmed payload length in bytes

	ColorSpace string `json:"color_space,omitempty"`
	Resolution string `json:"resolution,omitempty"` // "WIDTHxHEIGHT"
	Encryption string `json:"encryption,omitempty"`

	HasImages bool `json:"has_images"`
	HasText   bool `json:"has_text"`

	// Properties carries caller-supplied custom properties merged with
	// extractor-derived entries (e.g. line_count for text documents).
	Properties map[string]string `json:"properties,omitempty"`
}

// DocumentProcessingResult is the outcome of one Process call. Either the
// success path populates all derived fields, or the failure path returns a
// minimal unknown-typed record with sizes and an error message only.
type DocumentProcessingResult struct {
	Success       bool             `json:"success"`
	OriginalSize  int64            `json:"original_size"`
	ProcessedSize int64            `json:"processed_size"`
	DocumentType  DocumentType     `json:"document_type"`
	PageCount     int              `json:"page_count"`
	Metadata      DocumentMetadata `json:"metadata"`
	DocumentPath  string           `json:"document_path,omitempty"`
	ThumbnailPath string           `json:"thumbnail_path,omitempty"`
	Error         string           `json:"error,omitempty"`
}
