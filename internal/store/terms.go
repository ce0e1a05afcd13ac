package store

import (
	"context"

	"github.com/bartek5186/dopi2woo/internal/db"
	"github.com/bartek5186/dopi2woo/internal/textutil"
)

// FindTerm szuka kategorii o dokładnie tej nazwie pod danym rodzicem.
func (s *Store) FindTerm(ctx context.Context, name string, parentID uint) (uint, bool, error) {
	var c db.Category
	res := s.db.WithContext(ctx).
		Where("name = ? AND parent_id = ?", name, parentID).
		Order("id").
		Limit(1).
		Find(&c)
	if res.Error != nil {
		return 0, false, wrap("find term", res.Error)
	}
	return c.ID, res.RowsAffected > 0, nil
}

func (s *Store) CreateTerm(ctx context.Context, name string, parentID uint) (uint, error) {
	c := db.Category{Name: name, ParentID: parentID, Slug: textutil.Slug(name)}
	if err := s.db.WithContext(ctx).Create(&c).Error; err != nil {
		return 0, wrap("create term", err)
	}
	return c.ID, nil
}

func (s *Store) TermExists(ctx context.Context, id uint) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&db.Category{}).Where("id = ?", id).Count(&n).Error
	return n > 0, wrap("term exists", err)
}

// FindTermByDopigoID – odwrotne wyszukanie po metadanej termu.
func (s *Store) FindTermByDopigoID(ctx context.Context, dopigoID int64) (uint, bool, error) {
	var c db.Category
	res := s.db.WithContext(ctx).Where("dopigo_id = ?", dopigoID).Order("id").Limit(1).Find(&c)
	if res.Error != nil {
		return 0, false, wrap("find term by dopigo id", res.Error)
	}
	return c.ID, res.RowsAffected > 0, nil
}

func (s *Store) SetTermDopigoID(ctx context.Context, termID uint, dopigoID int64) error {
	err := s.db.WithContext(ctx).Model(&db.Category{}).
		Where("id = ?", termID).
		Update("dopigo_id", dopigoID).Error
	return wrap("set term meta", err)
}

func (s *Store) DeleteTerm(ctx context.Context, id uint) error {
	return wrap("delete term", s.db.WithContext(ctx).Delete(&db.Category{}, id).Error)
}

func (s *Store) CountTerms(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&db.Category{}).Count(&n).Error
	return n, wrap("count terms", err)
}
