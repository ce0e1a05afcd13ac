package progress

import (
	"context"
	"errors"
	"sync"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/bartek5186/dopi2woo/internal/db"
)

type entry struct {
	data []byte
	exp  time.Time
}

// MemoryStore – postęp widoczny tylko w tym procesie.
type MemoryStore struct {
	mu sync.Mutex
	m  map[string]entry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{m: map[string]entry{}}
}

func (s *MemoryStore) Load(_ context.Context, key string) ([]byte, time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.m[key]
	return e.data, e.exp, ok, nil
}

func (s *MemoryStore) Save(_ context.Context, key string, data []byte, exp time.Time) error {
	s.mu.Lock()
	s.m[key] = entry{data: data, exp: exp}
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.m, key)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Purge(_ context.Context, before time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, e := range s.m {
		if !before.Before(e.exp) {
			delete(s.m, k)
		}
	}
	return nil
}

// GormStore – tabela progress_records; CLI i serwer HTTP widzą ten sam postęp.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(gdb *gorm.DB) *GormStore {
	return &GormStore{db: gdb}
}

func (s *GormStore) Load(ctx context.Context, key string) ([]byte, time.Time, bool, error) {
	var row db.ProgressRecord
	err := s.db.WithContext(ctx).Where("progress_key = ?", key).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, time.Time{}, false, nil
	}
	if err != nil {
		return nil, time.Time{}, false, err
	}
	return []byte(row.Data), row.ExpiresAt, true, nil
}

func (s *GormStore) Save(ctx context.Context, key string, data []byte, exp time.Time) error {
	row := db.ProgressRecord{Key: key, Data: string(data), ExpiresAt: exp.UTC()}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "progress_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"data", "expires_at"}),
	}).Create(&row).Error
}

func (s *GormStore) Delete(ctx context.Context, key string) error {
	return s.db.WithContext(ctx).Where("progress_key = ?", key).Delete(&db.ProgressRecord{}).Error
}

func (s *GormStore) Purge(ctx context.Context, before time.Time) error {
	return s.db.WithContext(ctx).Where("expires_at <= ?", before.UTC()).Delete(&db.ProgressRecord{}).Error
}
