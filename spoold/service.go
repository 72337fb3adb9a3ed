// Package spoold is the print-spool daemon: it accepts raw job payloads over
// HTTP, queues them, and runs the document processing pipeline on a pool of
// workers. Results are persisted in the job store and surfaced back over the
// same API.
package spoold

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spoolworks/spooldoc/docproc"
	"github.com/spoolworks/spooldoc/idgen"
	"github.com/spoolworks/spooldoc/jobstore"
	"github.com/spoolworks/spooldoc/observability"
	"github.com/spoolworks/spooldoc/settings"
)

// ErrQueueFull is returned by Submit when the processing queue has no room.
var ErrQueueFull = errors.New("processing queue is full")

// ErrJobTooLarge is returned by Submit when the payload exceeds max_job_mb.
var ErrJobTooLarge = errors.New("job payload exceeds size limit")

// queuedJob is the unit of work handed to the worker pool. The payload lives
// in the spool directory, keyed by job id, so queued work survives a restart.
type queuedJob struct {
	ID             string
	DeclaredFormat string
	Props          map[string]string
}

// Service is the daemon orchestrator.
type Service struct {
	Config *Config

	store    *jobstore.Store
	settings *settings.Store
	proc     *docproc.Processor
	renderer docproc.Renderer
	queue    chan queuedJob
	logger   *slog.Logger
	events   *observability.EventLogger
	metrics  *observability.MetricsManager
	newID    idgen.Generator
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithRenderer enables thumbnail rendering with the given renderer.
func WithRenderer(r docproc.Renderer) Option {
	return func(s *Service) { s.renderer = r }
}

// WithEvents sets the business event logger.
func WithEvents(e *observability.EventLogger) Option {
	return func(s *Service) { s.events = e }
}

// WithMetrics sets the metrics manager.
func WithMetrics(m *observability.MetricsManager) Option {
	return func(s *Service) { s.metrics = m }
}

// WithIDGenerator sets the ID generator for job IDs.
func WithIDGenerator(g idgen.Generator) Option {
	return func(s *Service) { s.newID = g }
}

// New creates a fully wired service: job store, settings store, spool
// directory, and the document processor.
func New(cfg *Config, opts ...Option) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	store, err := jobstore.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open job store: %w", err)
	}
	set, err := settings.NewWithDB(store.DB())
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("open settings: %w", err)
	}

	s := &Service{
		Config:   cfg,
		store:    store,
		settings: set,
		queue:    make(chan queuedJob, cfg.QueueDepth),
		logger:   slog.Default(),
		newID:    idgen.Prefixed("job_", idgen.Default),
	}
	for _, o := range opts {
		o(s)
	}

	procCfg := cfg.Heuristics
	procCfg.JobsDir = filepath.Join(cfg.DataDir, "jobs")
	procCfg.Logger = s.logger
	if cfg.Render.Enabled {
		procCfg.ThumbnailMaxDim = cfg.Render.MaxDimension
	}
	procOpts := []docproc.Option{docproc.WithJobStore(store)}
	if s.renderer != nil {
		procOpts = append(procOpts, docproc.WithRenderer(s.renderer))
	}
	s.proc = docproc.New(procCfg, procOpts...)

	if err := os.MkdirAll(s.spoolDir(), 0o755); err != nil {
		store.Close()
		return nil, fmt.Errorf("create spool dir: %w", err)
	}
	return s, nil
}

// Store exposes the job store for composition roots that share its database.
func (s *Service) Store() *jobstore.Store { return s.store }

// Settings exposes the runtime settings store.
func (s *Service) Settings() *settings.Store { return s.settings }

// Close releases resources.
func (s *Service) Close() error {
	if s.metrics != nil {
		s.metrics.Close()
	}
	return s.store.Close()
}

// maxJobBytes honours a runtime "max_job_mb" setting when one is stored,
// falling back to the static config limit.
func (s *Service) maxJobBytes(ctx context.Context) int64 {
	if mb, err := s.settings.GetInt(ctx, "max_job_mb", 0); err == nil && mb > 0 {
		return int64(mb) * 1024 * 1024
	}
	return s.Config.MaxJobBytes()
}

func (s *Service) spoolDir() string {
	return filepath.Join(s.Config.DataDir, "spool")
}

func (s *Service) spoolPath(jobID string) string {
	return filepath.Join(s.spoolDir(), jobID+".spl")
}

// Submit accepts a raw payload, persists it to the spool, records the job,
// and enqueues it for processing. It returns the assigned job id.
func (s *Service) Submit(ctx context.Context, data []byte, declaredFormat string, props map[string]string) (string, error) {
	if int64(len(data)) > s.maxJobBytes(ctx) {
		return "", ErrJobTooLarge
	}

	jobID := s.newID()
	if err := os.WriteFile(s.spoolPath(jobID), data, 0o644); err != nil {
		return "", fmt.Errorf("spool payload: %w", err)
	}
	if err := s.store.CreateJob(ctx, jobID, declaredFormat, int64(len(data)), props); err != nil {
		os.Remove(s.spoolPath(jobID))
		return "", fmt.Errorf("create job: %w", err)
	}

	select {
	case s.queue <- queuedJob{ID: jobID, DeclaredFormat: declaredFormat, Props: props}:
	default:
		// Keep the spooled payload and the received row: boot-time recovery
		// will pick the job up again.
		s.logger.Warn("queue full, job left for recovery", "job_id", jobID)
		return jobID, ErrQueueFull
	}

	s.recordEvent(ctx, "job", jobID, "submitted", "", true)
	s.logger.Info("job submitted",
		"job_id", jobID,
		"size", len(data),
		"declared_format", declaredFormat)
	return jobID, nil
}

// RecoverStaleJobs re-enqueues jobs stuck in received or processing states
// from a previous crash. Jobs whose spooled payload is gone are marked
// failed. Call once at boot before accepting new submissions.
func (s *Service) RecoverStaleJobs(ctx context.Context) {
	for _, state := range []string{jobstore.StateReceived, jobstore.StateProcessing} {
		jobs, err := s.store.ListJobsByState(ctx, state)
		if err != nil {
			s.logger.Error("recovery list failed", "state", state, "error", err)
			continue
		}
		requeued := 0
		for _, j := range jobs {
			if _, err := os.Stat(s.spoolPath(j.ID)); err != nil {
				s.logger.Warn("stale job payload missing, marking failed", "job_id", j.ID)
				if err := s.store.SaveResult(ctx, j.ID, false, 0, string(docproc.TypeUnknown), 1,
					"", "", "spooled payload lost"); err != nil {
					s.logger.Error("recovery mark failed", "job_id", j.ID, "error", err)
				}
				continue
			}
			select {
			case s.queue <- queuedJob{ID: j.ID, DeclaredFormat: j.DeclaredFormat, Props: j.Properties}:
				requeued++
			default:
				s.logger.Warn("recovery queue full, remaining jobs deferred", "state", state)
				return
			}
		}
		if requeued > 0 {
			s.logger.Info("re-queued stale jobs", "state", state, "count", requeued)
		}
	}
}

func (s *Service) recordEvent(ctx context.Context, entityType, entityID, action, details string, success bool) {
	if s.events == nil {
		return
	}
	s.events.LogEvent(ctx, observability.BusinessEvent{
		EventType:   "print_job",
		ServiceName: "spoold",
		EntityType:  entityType,
		EntityID:    entityID,
		Action:      action,
		Details:     details,
		Success:     success,
	})
}

func (s *Service) recordMetric(name string, value float64, unit string) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordSimple(name, value, unit)
}
