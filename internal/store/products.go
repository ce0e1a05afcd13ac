package store

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/bartek5186/dopi2woo/internal/db"
)

// FindProduct szuka produktu po meta_id razem z koszem; jedno zapytanie daje trzy stany.
func (s *Store) FindProduct(ctx context.Context, metaID string) (*db.Product, Lifecycle, error) {
	var p db.Product
	res := s.db.WithContext(ctx).Unscoped().Where("meta_id = ?", metaID).Limit(1).Find(&p)
	if res.Error != nil {
		return nil, Absent, wrap("find product", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, Absent, nil
	}
	if p.DeletedAt.Valid {
		return &p, SoftDeleted, nil
	}
	return &p, Active, nil
}

func (s *Store) GetProduct(ctx context.Context, id uint) (*db.Product, error) {
	var p db.Product
	err := s.db.WithContext(ctx).Take(&p, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, wrap("get product", err)
	}
	return &p, nil
}

// RestoreProduct zdejmuje produkt z kosza.
func (s *Store) RestoreProduct(ctx context.Context, p *db.Product) error {
	err := s.db.WithContext(ctx).Unscoped().Model(&db.Product{}).
		Where("id = ?", p.ID).
		Update("deleted_at", nil).Error
	if err != nil {
		return wrap("restore product", err)
	}
	p.DeletedAt = gorm.DeletedAt{}
	return nil
}

// SaveProduct tworzy (ID == 0) albo nadpisuje cały rekord.
func (s *Store) SaveProduct(ctx context.Context, p *db.Product) error {
	tx := s.db.WithContext(ctx)
	if p.ID == 0 {
		return wrap("create product", tx.Create(p).Error)
	}
	return wrap("save product", tx.Unscoped().Save(p).Error)
}

// TrashProduct przenosi produkt do kosza (soft delete).
func (s *Store) TrashProduct(ctx context.Context, id uint) error {
	return wrap("trash product", s.db.WithContext(ctx).Delete(&db.Product{}, id).Error)
}

func (s *Store) CountProducts(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&db.Product{}).Count(&n).Error
	return n, wrap("count products", err)
}

// ListProducts – ostatnio zsynchronizowane produkty (najnowsze pierwsze).
func (s *Store) ListProducts(ctx context.Context, limit int) ([]db.Product, error) {
	if limit <= 0 {
		limit = 20
	}
	var out []db.Product
	err := s.db.WithContext(ctx).
		Where("meta_id <> ''").
		Order("updated_at DESC").
		Limit(limit).
		Find(&out).Error
	return out, wrap("list products", err)
}

// ListVariations zwraca wszystkie warianty produktu, także te w koszu.
func (s *Store) ListVariations(ctx context.Context, productID uint) ([]db.Variation, error) {
	var out []db.Variation
	err := s.db.WithContext(ctx).Unscoped().
		Where("product_id = ?", productID).
		Order("id").
		Find(&out).Error
	return out, wrap("list variations", err)
}

func (s *Store) SaveVariation(ctx context.Context, v *db.Variation) error {
	tx := s.db.WithContext(ctx)
	if v.ID == 0 {
		return wrap("create variation", tx.Create(v).Error)
	}
	return wrap("save variation", tx.Unscoped().Save(v).Error)
}

func (s *Store) TrashVariations(ctx context.Context, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	return wrap("trash variations", s.db.WithContext(ctx).Delete(&db.Variation{}, ids).Error)
}

// UpdateStock ustawia stan po id wariantu Dopigo: najpierw warianty, potem produkty proste.
func (s *Store) UpdateStock(ctx context.Context, variantID string, qty int, status string) error {
	fields := map[string]any{
		"manage_stock":   true,
		"stock_quantity": qty,
		"stock_status":   status,
	}
	tx := s.db.WithContext(ctx)
	res := tx.Model(&db.Variation{}).Where("dopigo_product_id = ?", variantID).Updates(fields)
	if res.Error != nil {
		return wrap("update variation stock", res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}
	res = tx.Model(&db.Product{}).Where("dopigo_product_id = ?", variantID).Updates(fields)
	if res.Error != nil {
		return wrap("update product stock", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
