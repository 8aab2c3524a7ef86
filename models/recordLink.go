package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/storeadmin_backend/config"
	"gorm.io/gorm"
)

// RecordLink is a stored cross-reference between a repository record and its
// commerce-side counterpart. It is a best-effort cache: the slug-based lookup
// in the resolver can always rebuild a missing link, so writes here never
// fail a caller.
type RecordLink struct {
	ID         uint      `gorm:"primary_key" json:"id"`
	EntityType string    `gorm:"uniqueIndex:idx_record_link,priority:1;size:50;not null" json:"entity_type"`
	StableId   string    `gorm:"uniqueIndex:idx_record_link,priority:2;size:128;not null" json:"stable_id"`
	RemoteId   int       `gorm:"not null" json:"remote_id"`
	LastSeenAt time.Time `json:"last_seen_at"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// RecordLinkStore reads and writes RecordLink rows with a Redis read-through
// cache in front. Nil-safe: without a DB every lookup is a miss.
type RecordLinkStore struct {
	DB *gorm.DB
}

func linkCacheKey(entityType, stableId string) string {
	return fmt.Sprintf("RecordLink:%s:%s", entityType, stableId)
}

func (s *RecordLinkStore) FindLink(ctx context.Context, entityType string, stableId string) (int, bool, error) {
	var cached int
	if ok, err := config.GetRedisObject(linkCacheKey(entityType, stableId), &cached); err == nil && ok && cached != 0 {
		return cached, true, nil
	}

	if s == nil || s.DB == nil {
		return 0, false, nil
	}
	var link RecordLink
	err := s.DB.WithContext(ctx).
		Where("entity_type = ? AND stable_id = ?", entityType, stableId).
		Take(&link).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, false, nil
		}
		return 0, false, err
	}
	_ = config.SetRedisObject(linkCacheKey(entityType, stableId), link.RemoteId, time.Hour)
	return link.RemoteId, true, nil
}

func (s *RecordLinkStore) SaveLink(ctx context.Context, entityType string, stableId string, remoteId int) error {
	_ = config.SetRedisObject(linkCacheKey(entityType, stableId), remoteId, time.Hour)

	if s == nil || s.DB == nil {
		return nil
	}
	db := s.DB.WithContext(ctx)
	now := time.Now()

	var link RecordLink
	err := db.Where("entity_type = ? AND stable_id = ?", entityType, stableId).Take(&link).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		link = RecordLink{
			EntityType: entityType,
			StableId:   stableId,
			RemoteId:   remoteId,
			LastSeenAt: now,
		}
		return db.Create(&link).Error
	}
	return db.Model(&link).Updates(map[string]interface{}{
		"remote_id":    remoteId,
		"last_seen_at": now,
	}).Error
}

func (s *RecordLinkStore) DeleteLink(ctx context.Context, entityType string, stableId string) error {
	_ = config.RemoveRedisKey(linkCacheKey(entityType, stableId))

	if s == nil || s.DB == nil {
		return nil
	}
	return s.DB.WithContext(ctx).
		Where("entity_type = ? AND stable_id = ?", entityType, stableId).
		Delete(&RecordLink{}).Error
}
