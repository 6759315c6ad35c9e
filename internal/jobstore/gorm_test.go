package jobstore

import (
	"context"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *GormStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "worker.db")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return store
}

func seedJob(t *testing.T, s *GormStore, id string) {
	t.Helper()
	err := s.db.Create(&jobRow{ID: id, URL: "https://example.com/a.m3u8", Status: string(StatusQueued)}).Error
	if err != nil {
		t.Fatalf("seed job: %v", err)
	}
}

func TestGormStoreGetAndUpdateStatus(t *testing.T) {
	s := newTestStore(t)
	seedJob(t, s, "job-1")

	ctx := context.Background()
	if err := s.UpdateStatus(ctx, "job-1", StatusDownloading, 10, ""); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}

	job, err := s.Get(ctx, "job-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if job.Status != StatusDownloading || job.Progress != 10 {
		t.Fatalf("job = %+v", job)
	}
}

func TestGormStoreUpdateStatusDoesNotOverrideCancelled(t *testing.T) {
	s := newTestStore(t)
	seedJob(t, s, "job-2")
	ctx := context.Background()

	if err := s.UpdateStatus(ctx, "job-2", StatusCancelled, 0, ""); err != nil {
		t.Fatalf("UpdateStatus(cancelled): %v", err)
	}
	if err := s.UpdateStatus(ctx, "job-2", StatusDownloading, 50, ""); err != nil {
		t.Fatalf("UpdateStatus(downloading): %v", err)
	}

	cancelled, err := s.IsCancelled(ctx, "job-2")
	if err != nil {
		t.Fatalf("IsCancelled: %v", err)
	}
	if !cancelled {
		t.Fatalf("expected job to remain cancelled after a later status update")
	}
}

func TestGormStoreIncrementRetry(t *testing.T) {
	s := newTestStore(t)
	seedJob(t, s, "job-3")
	ctx := context.Background()

	n, err := s.IncrementRetry(ctx, "job-3")
	if err != nil {
		t.Fatalf("IncrementRetry: %v", err)
	}
	if n != 1 {
		t.Fatalf("retry count = %d, want 1", n)
	}
}

func TestGormStoreCreate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Create(ctx, "job-5", "https://example.com/v.m3u8", "https://example.com/watch"); err != nil {
		t.Fatalf("Create: %v", err)
	}

	job, err := s.Get(ctx, "job-5")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if job.Status != StatusQueued || job.URL != "https://example.com/v.m3u8" || job.SourcePage != "https://example.com/watch" {
		t.Fatalf("job = %+v", job)
	}
}

func TestGormStoreMetadataRoundtrip(t *testing.T) {
	s := newTestStore(t)
	seedJob(t, s, "job-4")
	ctx := context.Background()

	if err := s.PutMetadata(ctx, "job-4", "resolution", "1920x1080"); err != nil {
		t.Fatalf("PutMetadata: %v", err)
	}
	val, ok, err := s.GetMetadata(ctx, "job-4", "resolution")
	if err != nil {
		t.Fatalf("GetMetadata: %v", err)
	}
	if !ok || val != "1920x1080" {
		t.Fatalf("GetMetadata = (%q, %v), want (1920x1080, true)", val, ok)
	}

	_, ok, err = s.GetMetadata(ctx, "job-4", "missing")
	if err != nil {
		t.Fatalf("GetMetadata(missing): %v", err)
	}
	if ok {
		t.Fatalf("expected missing key to report ok=false")
	}
}
