package store

import (
	"context"

	"github.com/bartek5186/dopi2woo/internal/db"
)

// FindMediaByURL: najpierw kanoniczny URL (guid), potem zapamiętany source_url. Tylko dokładna równość.
func (s *Store) FindMediaByURL(ctx context.Context, url string) (uint, bool, error) {
	if url == "" {
		return 0, false, nil
	}
	for _, col := range []string{"guid", "source_url"} {
		var m db.Media
		res := s.db.WithContext(ctx).Where(col+" = ?", url).Order("id").Limit(1).Find(&m)
		if res.Error != nil {
			return 0, false, wrap("find media", res.Error)
		}
		if res.RowsAffected > 0 {
			return m.ID, true, nil
		}
	}
	return 0, false, nil
}

func (s *Store) CreateMedia(ctx context.Context, m *db.Media) error {
	return wrap("create media", s.db.WithContext(ctx).Create(m).Error)
}

func (s *Store) DeleteMedia(ctx context.Context, id uint) error {
	return wrap("delete media", s.db.WithContext(ctx).Delete(&db.Media{}, id).Error)
}
