package jobstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// jobRow and metadataRow are the gorm-mapped shapes of the "jobs" and
// "job_metadata" tables; Store's public Job/Metadata types stay storage-
// agnostic so callers never import gorm.
type jobRow struct {
	ID         string `gorm:"primaryKey"`
	URL        string
	SourcePage string
	OutputPath string
	Status     string `gorm:"index"`
	Progress   float64
	RetryCount int
	LastError  string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (jobRow) TableName() string { return "jobs" }

type metadataRow struct {
	JobID string `gorm:"primaryKey;column:job_id"`
	Key   string `gorm:"primaryKey"`
	Value string
}

func (metadataRow) TableName() string { return "job_metadata" }

// GormStore is the reference Store backed by gorm, matching the
// glebarez/sqlite pure-Go driver the rest of the worker's persistence
// uses so the binary stays cgo-free.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore wraps an already-opened *gorm.DB and ensures the schema
// exists.
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&jobRow{}, &metadataRow{}); err != nil {
		return nil, fmt.Errorf("jobstore: migrate schema: %w", err)
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) Create(ctx context.Context, id, url, sourcePage string) error {
	row := jobRow{
		ID:         id,
		URL:        url,
		SourcePage: sourcePage,
		Status:     string(StatusQueued),
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
	return s.db.WithContext(ctx).Create(&row).Error
}

func (s *GormStore) Get(ctx context.Context, id string) (*Job, error) {
	var row jobRow
	if err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("jobstore: job %s not found", id)
		}
		return nil, err
	}
	return fromRow(row), nil
}

func (s *GormStore) IsCancelled(ctx context.Context, id string) (bool, error) {
	var status string
	err := s.db.WithContext(ctx).
		Model(&jobRow{}).
		Select("status").
		Where("id = ?", id).
		Take(&status).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, fmt.Errorf("jobstore: job %s not found", id)
		}
		return false, err
	}
	return status == string(StatusCancelled), nil
}

func (s *GormStore) UpdateStatus(ctx context.Context, id string, status Status, progress float64, lastError string) error {
	result := s.db.WithContext(ctx).
		Model(&jobRow{}).
		Where("id = ? AND status != ?", id, string(StatusCancelled)).
		Updates(map[string]any{
			"status":     string(status),
			"progress":   progress,
			"last_error": lastError,
			"updated_at": time.Now(),
		})
	return result.Error
}

func (s *GormStore) IncrementRetry(ctx context.Context, id string) (int, error) {
	err := s.db.WithContext(ctx).
		Model(&jobRow{}).
		Where("id = ?", id).
		Update("retry_count", gorm.Expr("retry_count + 1")).Error
	if err != nil {
		return 0, err
	}
	job, err := s.Get(ctx, id)
	if err != nil {
		return 0, err
	}
	return job.RetryCount, nil
}

func (s *GormStore) SetOutputPath(ctx context.Context, id, path string) error {
	return s.db.WithContext(ctx).
		Model(&jobRow{}).
		Where("id = ?", id).
		Update("output_path", path).Error
}

func (s *GormStore) PutMetadata(ctx context.Context, id, key, value string) error {
	row := metadataRow{JobID: id, Key: key, Value: value}
	return s.db.WithContext(ctx).Save(&row).Error
}

func (s *GormStore) GetMetadata(ctx context.Context, id, key string) (string, bool, error) {
	var row metadataRow
	err := s.db.WithContext(ctx).First(&row, "job_id = ? AND key = ?", id, key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return row.Value, true, nil
}

func fromRow(r jobRow) *Job {
	return &Job{
		ID:         r.ID,
		URL:        r.URL,
		SourcePage: r.SourcePage,
		OutputPath: r.OutputPath,
		Status:     Status(r.Status),
		Progress:   r.Progress,
		RetryCount: r.RetryCount,
		LastError:  r.LastError,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}
