// Package docproc classifies raw spooled print-job payloads, carves the
// canonical document out of any transport framing, and extracts per-type
// summary metadata. Every step is best-effort: Process always returns a
// well-formed result, whatever the input.
package docproc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// JobStore receives derived facts after processing so job records stay
// consistent with processing outcomes. Updates are best-effort; an error
// never invalidates the processing result. Implementations must tolerate
// concurrent calls for distinct job ids.
type JobStore interface {
	UpdateJobMetadata(ctx context.Context, jobID string, facts map[string]string) error
}

// Processor runs the classification and extraction pipeline for one payload
// at a time. A single instance is safe for concurrent use across jobs: the
// only shared resource is the jobs directory, and filenames embed job id and
// timestamp.
type Processor struct {
	cfg      Config
	store    JobStore
	renderer Renderer
	logger   *slog.Logger
}

// Option configures a Processor.
type Option func(*Processor)

// WithJobStore sets the job-store collaborator notified with derived facts.
func WithJobStore(s JobStore) Option {
	return func(p *Processor) { p.store = s }
}

// WithRenderer sets the rendering capability used for thumbnails. Without
// one, processing simply produces no thumbnails.
func WithRenderer(r Renderer) Option {
	return func(p *Processor) { p.renderer = r }
}

// New creates a Processor with the given configuration. Collaborators are
// injected explicitly; there is no process-global instance.
func New(cfg Config, opts ...Option) *Processor {
	cfg.defaults()
	p := &Processor{
		cfg:    cfg,
		logger: cfg.Logger,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Process runs the full pipeline on one raw spooled payload: classify,
// strip transport framing, persist the document, extract metadata, request a
// thumbnail, and notify the job store. declaredFormat is the transport's
// claimed MIME type; it is logged when it disagrees with the content but the
// detected type always wins.
//
// Process never panics outward and never returns an error: any failure past
// recovery yields a minimal failure result after a best-effort save of the
// untouched raw bytes.
func (p *Processor) Process(ctx context.Context, raw []byte, jobID, declaredFormat string, props map[string]string) (result DocumentProcessingResult) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			result = p.fail(raw, jobID, fmt.Errorf("processing panic: %v", r))
		}
	}()

	if len(raw) == 0 {
		return p.fail(raw, jobID, errors.New("empty payload"))
	}

	docType := classify(raw, &p.cfg)
	if declared := TypeFromMIME(declaredFormat); declaredFormat != "" && declared != docType {
		p.logger.Debug("declared format disagrees with content",
			"job_id", jobID, "declared", declaredFormat, "detected", docType)
	}

	trimmed, offset := ExtractFrame(raw, docType)
	if offset > 0 {
		p.logger.Debug("stripped transport framing", "job_id", jobID, "bytes", offset)
	}

	filename := fmt.Sprintf("job_%s_%d.%s", jobID, start.UnixMilli(), docType.Extension())
	docPath := filepath.Join(p.cfg.JobsDir, filename)
	if err := writeDocument(docPath, trimmed); err != nil {
		return p.fail(raw, jobID, fmt.Errorf("persist document: %w", err))
	}

	meta := p.extractMetadata(trimmed, docType, props)
	thumbPath := p.renderThumbnail(trimmed, docType, filename)

	p.notifyStore(ctx, jobID, docType, int64(len(raw)), int64(len(trimmed)), meta.PageCount, thumbPath != "")

	p.logger.Info("processed job",
		"job_id", jobID, "type", docType, "pages", meta.PageCount,
		"original_size", len(raw), "processed_size", len(trimmed),
		"framing_offset", offset, "duration_ms", time.Since(start).Milliseconds())

	return DocumentProcessingResult{
		Success:       true,
		OriginalSize:  int64(len(raw)),
		ProcessedSize: int64(len(trimmed)),
		DocumentType:  docType,
		PageCount:     meta.PageCount,
		Metadata:      meta,
		DocumentPath:  docPath,
		ThumbnailPath: thumbPath,
	}
}

func writeDocument(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// notifyStore pushes derived facts to the job store. Best-effort: a store
// failure is logged and absorbed.
func (p *Processor) notifyStore(ctx context.Context, jobID string, t DocumentType, originalSize, processedSize int64, pages int, hasThumb bool) {
	if p.store == nil {
		return
	}
	facts := map[string]string{
		"original_size":   strconv.FormatInt(originalSize, 10),
		"processed_size":  strconv.FormatInt(processedSize, 10),
		"document_type":   string(t),
		"page_count":      strconv.Itoa(pages),
		"has_thumbnail":   strconv.FormatBool(hasThumb),
		"processing_time": strconv.FormatInt(time.Now().UnixMilli(), 10),
	}
	if err := p.store.UpdateJobMetadata(ctx, jobID, facts); err != nil {
		p.logger.Warn("job store update failed", "job_id", jobID, "error", err)
	}
}

// fail is the degradation path: save the raw bytes untouched so nothing is
// lost, then return the minimal failure result. A failed fallback save is
// logged only — there is no further degradation step.
func (p *Processor) fail(raw []byte, jobID string, cause error) DocumentProcessingResult {
	p.logger.Error("processing failed", "job_id", jobID, "error", cause)

	if len(raw) > 0 {
		fallback := filepath.Join(p.cfg.JobsDir, fmt.Sprintf("job_%s_%d.data", jobID, time.Now().UnixMilli()))
		if err := writeDocument(fallback, raw); err != nil {
			p.logger.Error("fallback save failed", "job_id", jobID, "path", fallback, "error", err)
		} else {
			p.logger.Info("saved raw payload for manual recovery", "job_id", jobID, "path", fallback)
		}
	}

	return DocumentProcessingResult{
		Success:      false,
		OriginalSize: int64(len(raw)),
		DocumentType: TypeUnknown,
		PageCount:    1,
		Metadata: DocumentMetadata{
			PageCount:    1,
			DocumentSize: int64(len(raw)),
		},
		Error: cause.Error(),
	}
}
