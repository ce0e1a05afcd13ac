// Package kv to magazyn opcji klucz → wartość JSON (mapa kategorii, pending, historia synchronizacji).
package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/bartek5186/dopi2woo/internal/db"
)

type Store interface {
	// Get dekoduje wartość do v; false gdy klucza nie ma.
	Get(ctx context.Context, key string, v any) (bool, error)
	Put(ctx context.Context, key string, v any) error
	Delete(ctx context.Context, key string) error
}

// GormStore trzyma opcje w tabeli kvs.
type GormStore struct {
	db *gorm.DB
}

func NewGorm(gdb *gorm.DB) *GormStore {
	return &GormStore{db: gdb}
}

func (s *GormStore) Get(ctx context.Context, key string, v any) (bool, error) {
	var row db.KV
	err := s.db.WithContext(ctx).Where("k = ?", key).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("kv get %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(row.V), v); err != nil {
		return false, fmt.Errorf("kv decode %s: %w", key, err)
	}
	return true, nil
}

func (s *GormStore) Put(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("kv encode %s: %w", key, err)
	}
	row := db.KV{K: key, V: string(raw)}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "k"}},
		DoUpdates: clause.AssignmentColumns([]string{"v"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("kv put %s: %w", key, err)
	}
	return nil
}

func (s *GormStore) Delete(ctx context.Context, key string) error {
	return s.db.WithContext(ctx).Where("k = ?", key).Delete(&db.KV{}).Error
}

// MemoryStore – wersja w pamięci (testy, tryb bez bazy).
type MemoryStore struct {
	mu sync.RWMutex
	m  map[string][]byte
}

func NewMemory() *MemoryStore {
	return &MemoryStore{m: map[string][]byte{}}
}

func (s *MemoryStore) Get(_ context.Context, key string, v any) (bool, error) {
	s.mu.RLock()
	raw, ok := s.m[key]
	s.mu.RUnlock()
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, v)
}

func (s *MemoryStore) Put(_ context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.m[key] = raw
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.m, key)
	s.mu.Unlock()
	return nil
}
