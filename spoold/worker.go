package spoold

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/spoolworks/spooldoc/docproc"
	"github.com/spoolworks/spooldoc/jobstore"
	"github.com/spoolworks/spooldoc/observability"
)

// Run drains the job queue on a pool of workers until ctx is cancelled.
// It blocks; callers usually run it in a goroutine next to the HTTP server.
func (s *Service) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < s.Config.Workers; i++ {
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case qj := <-s.queue:
					s.processJob(ctx, qj)
				}
			}
		})
	}
	s.logger.Info("worker pool started", "workers", s.Config.Workers)
	err := g.Wait()
	s.logger.Info("worker pool stopped")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (s *Service) processJob(ctx context.Context, qj queuedJob) {
	start := time.Now()

	raw, err := os.ReadFile(s.spoolPath(qj.ID))
	if err != nil {
		s.logger.Error("spooled payload unreadable", "job_id", qj.ID, "error", err)
		if err := s.store.SaveResult(ctx, qj.ID, false, 0, string(docproc.TypeUnknown), 1, "", "", "spooled payload lost"); err != nil {
			s.logger.Error("save result", "job_id", qj.ID, "error", err)
		}
		s.recordMetric(observability.MetricJobsFailed, 1, "count")
		return
	}

	if err := s.store.UpdateJobState(ctx, qj.ID, jobstore.StateProcessing, ""); err != nil {
		s.logger.Error("mark processing", "job_id", qj.ID, "error", err)
	}

	res := s.proc.Process(ctx, raw, qj.ID, qj.DeclaredFormat, qj.Props)

	saveErr := s.store.SaveResult(ctx, qj.ID, res.Success, res.ProcessedSize,
		string(res.DocumentType), res.PageCount,
		res.DocumentPath, res.ThumbnailPath, res.Error)
	if saveErr != nil {
		s.logger.Error("save result", "job_id", qj.ID, "error", saveErr)
	}

	duration := time.Since(start)
	s.recordMetric(observability.MetricJobDurationMs, float64(duration.Milliseconds()), "milliseconds")
	s.recordMetric(observability.MetricJobOriginalBytes, float64(res.OriginalSize), "bytes")
	if res.Success {
		s.recordMetric(observability.MetricJobProcessedBytes, float64(res.ProcessedSize), "bytes")
		s.recordMetric(observability.MetricJobsProcessed, 1, "count")
		s.recordEvent(ctx, "job", qj.ID, "processed", "", true)
	} else {
		s.recordMetric(observability.MetricJobsFailed, 1, "count")
		s.recordEvent(ctx, "job", qj.ID, "failed", "", false)
	}

	// The spool copy is only needed until a result is durably recorded. When
	// the save failed (for instance a shutdown mid-job) the copy stays so
	// boot-time recovery can re-run the job.
	if saveErr == nil {
		if err := os.Remove(s.spoolPath(qj.ID)); err != nil {
			s.logger.Warn("spool cleanup", "job_id", qj.ID, "error", err)
		}
	}
}

// RunRetention periodically prunes observability data according to the
// configured retention window. It blocks until ctx is cancelled.
func (s *Service) RunRetention(ctx context.Context, obsDB *sql.DB, interval time.Duration) {
	if s.Config.Obs.RetentionDays <= 0 || obsDB == nil {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			days := s.Config.Obs.RetentionDays
			if err := observability.Cleanup(ctx, obsDB, observability.RetentionConfig{
				EventLogsDays:  days,
				MetricsDays:    days,
				HeartbeatsDays: days,
			}); err != nil {
				s.logger.Error("observability cleanup", "error", err)
			}
		}
	}
}
