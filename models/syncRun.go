package models

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

type SyncRun struct {
	ID          uint       `gorm:"primary_key" json:"id"`
	PublicId    string     `gorm:"uniqueIndex;size:36;not null" json:"public_id"`
	Tenant      string     `gorm:"index;size:20;not null" json:"tenant"`
	Status      string     `gorm:"size:20;not null" json:"status"`
	TriggeredBy string     `gorm:"size:20" json:"triggered_by"`
	TotalSeen   int        `json:"total_seen"`
	Created     int        `json:"created"`
	Updated     int        `json:"updated"`
	Skipped     int        `json:"skipped"`
	ErrorCount  int        `json:"error_count"`
	StartedAt   *time.Time `json:"started_at"`
	FinishedAt  *time.Time `json:"finished_at"`
	DurationMs  int64      `json:"duration_ms"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

type SyncRunError struct {
	ID          uint      `gorm:"primary_key" json:"id"`
	SyncRunId   uint      `gorm:"index;not null" json:"sync_run_id"`
	OrderNumber string    `gorm:"size:64" json:"order_number"`
	Message     string    `gorm:"type:text" json:"message"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// SyncRunStore persists run history. All methods are nil-safe so the sync
// layer keeps working when no database is connected (summaries are still
// returned to the caller, history is simply not recorded).
type SyncRunStore struct {
	DB *gorm.DB
}

func (s *SyncRunStore) db(ctx context.Context) *gorm.DB {
	if s == nil || s.DB == nil {
		return nil
	}
	return s.DB.WithContext(ctx)
}

func (s *SyncRunStore) Begin(ctx context.Context, run *SyncRun) error {
	db := s.db(ctx)
	if db == nil {
		return nil
	}
	now := time.Now()
	run.Status = SyncRunStatusRunning
	run.StartedAt = &now
	return db.Create(run).Error
}

func (s *SyncRunStore) Finish(ctx context.Context, run *SyncRun, errMessages []string) error {
	db := s.db(ctx)
	if db == nil {
		return nil
	}
	now := time.Now()
	run.FinishedAt = &now
	if run.StartedAt != nil {
		run.DurationMs = now.Sub(*run.StartedAt).Milliseconds()
	}
	if err := db.Model(run).Updates(map[string]interface{}{
		"status":      run.Status,
		"total_seen":  run.TotalSeen,
		"created":     run.Created,
		"updated":     run.Updated,
		"skipped":     run.Skipped,
		"error_count": run.ErrorCount,
		"finished_at": run.FinishedAt,
		"duration_ms": run.DurationMs,
	}).Error; err != nil {
		return err
	}
	for _, msg := range errMessages {
		rec := SyncRunError{SyncRunId: run.ID, Message: msg}
		if err := db.Create(&rec).Error; err != nil {
			return err
		}
	}
	return nil
}

func (s *SyncRunStore) Recent(ctx context.Context, tenant string, limit int) ([]SyncRun, error) {
	db := s.db(ctx)
	if db == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}
	query := db.Model(&SyncRun{}).Order("id DESC").Limit(limit)
	if tenant != "" {
		query = query.Where("tenant = ?", tenant)
	}
	var runs []SyncRun
	err := query.Find(&runs).Error
	return runs, err
}

func (s *SyncRunStore) ByPublicId(ctx context.Context, publicId string) (*SyncRun, []SyncRunError, error) {
	db := s.db(ctx)
	if db == nil {
		return nil, nil, errors.New("sync run history is not available")
	}
	var run SyncRun
	if err := db.Where("public_id = ?", publicId).Take(&run).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, nil
		}
		return nil, nil, err
	}
	var errs []SyncRunError
	if err := db.Where("sync_run_id = ?", run.ID).Order("id").Find(&errs).Error; err != nil {
		return nil, nil, err
	}
	return &run, errs, nil
}
