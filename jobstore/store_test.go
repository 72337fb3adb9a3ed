package jobstore

import (
	"context"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/spoolworks/spooldoc/dbopen"
	_ "modernc.org/sqlite"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db := dbopen.OpenMemory(t)
	s, err := NewWithDB(db)
	if err != nil {
		t.Fatalf("NewWithDB: %v", err)
	}
	return s
}

func TestCreateAndGetJob(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	props := map[string]string{"source": "usb", "user": "alice"}
	if err := s.CreateJob(ctx, "job-1", "application/pdf", 4096, props); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	job, err := s.GetJob(ctx, "job-1")
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if job == nil {
		t.Fatal("job not found")
	}
	if job.State != StateReceived {
		t.Errorf("state = %q, want %q", job.State, StateReceived)
	}
	if job.DeclaredFormat != "application/pdf" {
		t.Errorf("declared format = %q", job.DeclaredFormat)
	}
	if job.OriginalSize != 4096 {
		t.Errorf("original size = %d", job.OriginalSize)
	}
	if job.Properties["source"] != "usb" || job.Properties["user"] != "alice" {
		t.Errorf("properties = %v", job.Properties)
	}
	if job.CreatedAt.IsZero() {
		t.Error("created_at not set")
	}
}

func TestGetJobMissing(t *testing.T) {
	s := newTestStore(t)

	job, err := s.GetJob(context.Background(), "nope")
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if job != nil {
		t.Errorf("expected nil for missing job, got %+v", job)
	}
}

func TestUpdateJobState(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.CreateJob(ctx, "job-1", "", 10, nil); err != nil {
		t.Fatal(err)
	}
	if err := s.UpdateJobState(ctx, "job-1", StateProcessing, ""); err != nil {
		t.Fatalf("UpdateJobState: %v", err)
	}
	job, _ := s.GetJob(ctx, "job-1")
	if job.State != StateProcessing {
		t.Errorf("state = %q, want %q", job.State, StateProcessing)
	}

	if err := s.UpdateJobState(ctx, "job-1", StateFailed, "boom"); err != nil {
		t.Fatal(err)
	}
	job, _ = s.GetJob(ctx, "job-1")
	if job.State != StateFailed || job.Error != "boom" {
		t.Errorf("state=%q error=%q", job.State, job.Error)
	}
}

func TestSaveResult(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	docPath := filepath.Join("jobs", "job_j1_123.pdf")
	thumbPath := filepath.Join("jobs", "thumb_job_j1_123.pdf.png")

	if err := s.CreateJob(ctx, "j1", "", 2048, nil); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveResult(ctx, "j1", true, 2000, "pdf", 4, docPath, thumbPath, ""); err != nil {
		t.Fatalf("SaveResult: %v", err)
	}

	job, _ := s.GetJob(ctx, "j1")
	if job.State != StateDone {
		t.Errorf("state = %q, want %q", job.State, StateDone)
	}
	if job.ProcessedSize != 2000 || job.DocumentType != "pdf" || job.PageCount != 4 {
		t.Errorf("result fields: %+v", job)
	}
	if !job.HasThumbnail {
		t.Error("has_thumbnail should be true when thumbnail path is set")
	}
	if job.DocumentPath != docPath || job.ThumbnailPath != thumbPath {
		t.Errorf("paths: %q %q", job.DocumentPath, job.ThumbnailPath)
	}
	if job.ProcessedAt == nil {
		t.Error("processed_at not set")
	}
}

func TestSaveResultFailure(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.CreateJob(ctx, "j1", "", 10, nil); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveResult(ctx, "j1", false, 0, "unknown", 1, "fallback/job_j1_1.data", "", "decode failed"); err != nil {
		t.Fatal(err)
	}

	job, _ := s.GetJob(ctx, "j1")
	if job.State != StateFailed {
		t.Errorf("state = %q, want %q", job.State, StateFailed)
	}
	if job.Error != "decode failed" {
		t.Errorf("error = %q", job.Error)
	}
	if job.HasThumbnail {
		t.Error("failed job should not report a thumbnail")
	}
}

func TestUpdateJobMetadata(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.CreateJob(ctx, "j1", "", 100, map[string]string{"source": "lan"}); err != nil {
		t.Fatal(err)
	}

	facts := map[string]string{
		"original_size":  "100",
		"processed_size": "96",
		"document_type":  "pdf",
		"page_count":     "3",
		"has_thumbnail":  "true",
		"word_count":     "420",
	}
	if err := s.UpdateJobMetadata(ctx, "j1", facts); err != nil {
		t.Fatalf("UpdateJobMetadata: %v", err)
	}

	job, _ := s.GetJob(ctx, "j1")
	if job.ProcessedSize != 96 || job.DocumentType != "pdf" || job.PageCount != 3 {
		t.Errorf("columns not applied: %+v", job)
	}
	if !job.HasThumbnail {
		t.Error("has_thumbnail not applied")
	}
	if job.Properties["word_count"] != "420" {
		t.Errorf("unknown fact not merged: %v", job.Properties)
	}
	if job.Properties["source"] != "lan" {
		t.Errorf("existing property lost: %v", job.Properties)
	}
}

func TestUpdateJobMetadataUnknownJob(t *testing.T) {
	s := newTestStore(t)

	err := s.UpdateJobMetadata(context.Background(), "ghost", map[string]string{"document_type": "pdf"})
	if err == nil {
		t.Error("expected error for unknown job id")
	}
}

func TestUpdateJobMetadataBadNumber(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.CreateJob(ctx, "j1", "", 10, nil); err != nil {
		t.Fatal(err)
	}
	err := s.UpdateJobMetadata(ctx, "j1", map[string]string{"page_count": "many"})
	if err == nil {
		t.Error("expected error for non-numeric page_count")
	}
}

func TestUpdateJobMetadataEmptyFacts(t *testing.T) {
	s := newTestStore(t)

	if err := s.UpdateJobMetadata(context.Background(), "whatever", nil); err != nil {
		t.Errorf("empty facts should be a no-op, got %v", err)
	}
}

func TestUpdateJobMetadataConcurrentProperties(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.CreateJob(ctx, "j1", "", 1, nil); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	// Distinct property keys written concurrently must all survive: each
	// merge runs read-modify-write in its own transaction.
	const writers = 8
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := "tray_" + strconv.Itoa(i)
			errs <- s.UpdateJobMetadata(ctx, "j1", map[string]string{key: "upper"})
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("UpdateJobMetadata: %v", err)
		}
	}

	job, err := s.GetJob(ctx, "j1")
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	for i := 0; i < writers; i++ {
		key := "tray_" + strconv.Itoa(i)
		if job.Properties[key] != "upper" {
			t.Errorf("property %s lost, got %v", key, job.Properties)
		}
	}
}

func TestListJobs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		if err := s.CreateJob(ctx, id, "", 1, nil); err != nil {
			t.Fatal(err)
		}
		time.Sleep(2 * time.Millisecond)
	}
	if err := s.UpdateJobState(ctx, "b", StateDone, ""); err != nil {
		t.Fatal(err)
	}

	all, err := s.ListJobs(ctx, "", 0)
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("len = %d, want 3", len(all))
	}
	if all[0].ID != "c" {
		t.Errorf("newest first: got %q", all[0].ID)
	}

	done, err := s.ListJobs(ctx, StateDone, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(done) != 1 || done[0].ID != "b" {
		t.Errorf("state filter: %+v", done)
	}

	limited, err := s.ListJobs(ctx, "", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(limited) != 2 {
		t.Errorf("limit: len = %d, want 2", len(limited))
	}
}

func TestListJobsByState(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b"} {
		if err := s.CreateJob(ctx, id, "", 1, nil); err != nil {
			t.Fatal(err)
		}
		if err := s.UpdateJobState(ctx, id, StateProcessing, ""); err != nil {
			t.Fatal(err)
		}
		time.Sleep(2 * time.Millisecond)
	}

	stuck, err := s.ListJobsByState(ctx, StateProcessing)
	if err != nil {
		t.Fatalf("ListJobsByState: %v", err)
	}
	if len(stuck) != 2 {
		t.Fatalf("len = %d, want 2", len(stuck))
	}
	if stuck[0].ID != "a" {
		t.Errorf("oldest first: got %q", stuck[0].ID)
	}
}

func TestOpenCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "jobs.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	if err := s.CreateJob(context.Background(), "j1", "", 1, nil); err != nil {
		t.Fatalf("CreateJob on file-backed store: %v", err)
	}
}
