package mapper

import (
	"context"
	"strings"

	"github.com/bartek5186/dopi2woo/internal/store"
)

// ErrNotFound – żaden produkt ani wariant nie ma tego id Dopigo.
var ErrNotFound = store.ErrNotFound

// UpdateStock ustawia stan magazynowy po id wariantu Dopigo (webhook).
func (m *Mapper) UpdateStock(ctx context.Context, variantID string, qty int) error {
	variantID = strings.TrimSpace(variantID)
	if variantID == "" {
		return ErrNotFound
	}
	if err := m.cat.UpdateStock(ctx, variantID, qty, StockStatus(qty)); err != nil {
		return err
	}
	m.log.Info().Str("dopigo_product_id", variantID).Int("stock", qty).Msg("stock updated")
	return nil
}
