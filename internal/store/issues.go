package store

import (
	"context"
	"time"

	"gorm.io/gorm/clause"

	"github.com/bartek5186/dopi2woo/internal/db"
)

// SaveIssue – upsert ostatniego problemu dla (meta_id, reason).
func (s *Store) SaveIssue(ctx context.Context, metaID, reason, details string) error {
	issue := db.ImportIssue{
		MetaID:  metaID,
		Reason:  reason,
		Details: details,
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "meta_id"},
			{Name: "reason"},
		},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"details":    details,
			"updated_at": time.Now(),
		}),
	}).Create(&issue).Error
	return wrap("save issue", err)
}

// ClearIssues usuwa problemy produktu po udanym imporcie.
func (s *Store) ClearIssues(ctx context.Context, metaID string) error {
	return wrap("clear issues", s.db.WithContext(ctx).Where("meta_id = ?", metaID).Delete(&db.ImportIssue{}).Error)
}

func (s *Store) ListIssues(ctx context.Context, limit int) ([]db.ImportIssue, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []db.ImportIssue
	err := s.db.WithContext(ctx).Order("updated_at DESC").Limit(limit).Find(&out).Error
	return out, wrap("list issues", err)
}
