package spoold

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spoolworks/spooldoc/jobstore"
	_ "modernc.org/sqlite"
)

func newTestService(t *testing.T, mutate func(*Config)) *Service {
	t.Helper()
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.DBPath = filepath.Join(dir, "jobs.db")
	cfg.DataDir = filepath.Join(dir, "data")
	cfg.Workers = 2
	cfg.Render.Enabled = false
	if mutate != nil {
		mutate(cfg)
	}
	svc, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { svc.Close() })
	return svc
}

func pdfPayload() []byte {
	return []byte("%PDF-1.4\n1 0 obj<</Type/Catalog>>endobj\n/Type /Page\n%%EOF")
}

// waitForState polls until the job leaves the pending states or the deadline
// passes.
func waitForState(t *testing.T, svc *Service, jobID string, want string) *jobstore.Job {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := svc.Store().GetJob(context.Background(), jobID)
		if err != nil {
			t.Fatalf("GetJob: %v", err)
		}
		if job != nil && job.State == want {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %s never reached state %q", jobID, want)
	return nil
}

func TestSubmitAndProcess(t *testing.T) {
	svc := newTestService(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go svc.Run(ctx)

	jobID, err := svc.Submit(ctx, pdfPayload(), "application/pdf", map[string]string{"source": "test"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	job := waitForState(t, svc, jobID, jobstore.StateDone)
	if job.DocumentType != "pdf" {
		t.Errorf("document type = %q", job.DocumentType)
	}
	if job.DocumentPath == "" {
		t.Fatal("no document path recorded")
	}
	if _, err := os.Stat(job.DocumentPath); err != nil {
		t.Errorf("document file missing: %v", err)
	}
	if job.Properties["source"] != "test" {
		t.Errorf("caller property lost: %v", job.Properties)
	}

	// Spool copy is removed once the result is recorded.
	if _, err := os.Stat(svc.spoolPath(jobID)); !os.IsNotExist(err) {
		t.Errorf("spool file not cleaned up: %v", err)
	}
}

func TestSubmitGarbageStillCompletes(t *testing.T) {
	svc := newTestService(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go svc.Run(ctx)

	jobID, err := svc.Submit(ctx, []byte{0x00, 0x01, 0xFE, 0xFF}, "", nil)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	job := waitForState(t, svc, jobID, jobstore.StateDone)
	if job.DocumentType != "unknown" {
		t.Errorf("document type = %q", job.DocumentType)
	}
}

func TestSubmitTooLarge(t *testing.T) {
	svc := newTestService(t, func(c *Config) { c.MaxJobMB = 1 })

	big := make([]byte, 2*1024*1024)
	if _, err := svc.Submit(context.Background(), big, "", nil); err != ErrJobTooLarge {
		t.Errorf("err = %v, want ErrJobTooLarge", err)
	}
}

func TestSubmitSizeLimitFromSettings(t *testing.T) {
	svc := newTestService(t, func(c *Config) { c.MaxJobMB = 100 })
	ctx := context.Background()

	// A stored max_job_mb setting overrides the static config limit.
	if err := svc.Settings().Set(ctx, "max_job_mb", "1"); err != nil {
		t.Fatal(err)
	}
	big := make([]byte, 2*1024*1024)
	if _, err := svc.Submit(ctx, big, "", nil); err != ErrJobTooLarge {
		t.Errorf("err = %v, want ErrJobTooLarge", err)
	}
}

func TestSubmitQueueFull(t *testing.T) {
	svc := newTestService(t, func(c *Config) { c.QueueDepth = 1 })

	// No workers running: the first submit fills the queue.
	if _, err := svc.Submit(context.Background(), pdfPayload(), "", nil); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	jobID, err := svc.Submit(context.Background(), pdfPayload(), "", nil)
	if err != ErrQueueFull {
		t.Fatalf("err = %v, want ErrQueueFull", err)
	}
	// The overflow job is still persisted and spooled for recovery.
	job, _ := svc.Store().GetJob(context.Background(), jobID)
	if job == nil || job.State != jobstore.StateReceived {
		t.Errorf("overflow job not persisted: %+v", job)
	}
	if _, err := os.Stat(svc.spoolPath(jobID)); err != nil {
		t.Errorf("overflow spool file missing: %v", err)
	}
}

func TestRecoverStaleJobs(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.DBPath = filepath.Join(dir, "jobs.db")
	cfg.DataDir = filepath.Join(dir, "data")
	cfg.Workers = 1
	cfg.Render.Enabled = false

	// First life: submit without running workers, then shut down.
	svc1, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	jobID, err := svc1.Submit(context.Background(), pdfPayload(), "", nil)
	if err != nil {
		t.Fatal(err)
	}
	svc1.Close()

	// Second life: recovery re-enqueues the spooled job and a worker drains it.
	svc2, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer svc2.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc2.RecoverStaleJobs(ctx)
	go svc2.Run(ctx)

	waitForState(t, svc2, jobID, jobstore.StateDone)
}

func TestSpoolKeptWhenResultNotRecorded(t *testing.T) {
	svc := newTestService(t, nil)

	jobID, err := svc.Submit(context.Background(), pdfPayload(), "", nil)
	if err != nil {
		t.Fatal(err)
	}

	// A real shutdown loses the in-memory queue, so drain the entry Submit
	// created: recovery must be the only source of the re-run.
	<-svc.queue

	// A cancelled context models shutdown mid-job: the result cannot be
	// recorded, so the spool copy must survive for boot-time recovery.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	svc.processJob(ctx, queuedJob{ID: jobID})

	if _, err := os.Stat(svc.spoolPath(jobID)); err != nil {
		t.Fatalf("spool copy gone although no result was recorded: %v", err)
	}
	job, err := svc.Store().GetJob(context.Background(), jobID)
	if err != nil {
		t.Fatal(err)
	}
	if job.State == jobstore.StateDone || job.State == jobstore.StateFailed {
		t.Errorf("state = %q, want a pending state", job.State)
	}

	// Recovery then re-runs the job to completion.
	runCtx, stop := context.WithCancel(context.Background())
	defer stop()
	svc.RecoverStaleJobs(runCtx)
	go svc.Run(runCtx)
	waitForState(t, svc, jobID, jobstore.StateDone)
}

func TestRecoverStaleJobsMissingPayload(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	// A job row without its spool file models a crash that lost the payload.
	if err := svc.Store().CreateJob(ctx, "orphan", "", 10, nil); err != nil {
		t.Fatal(err)
	}

	svc.RecoverStaleJobs(ctx)

	job, _ := svc.Store().GetJob(ctx, "orphan")
	if job.State != jobstore.StateFailed {
		t.Errorf("state = %q, want failed", job.State)
	}
	if job.Error == "" {
		t.Error("expected an error message on the orphaned job")
	}
}

func TestConcurrentSubmissions(t *testing.T) {
	svc := newTestService(t, func(c *Config) { c.Workers = 4 })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go svc.Run(ctx)

	ids := make([]string, 8)
	for i := range ids {
		payload := []byte(fmt.Sprintf("%%PDF-1.4\njob %d\n/Type /Page\n%%%%EOF", i))
		id, err := svc.Submit(ctx, payload, "", nil)
		if err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
		ids[i] = id
	}

	for _, id := range ids {
		waitForState(t, svc, id, jobstore.StateDone)
	}
}
