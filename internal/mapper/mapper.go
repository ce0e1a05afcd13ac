// Package mapper zamienia rekord produktu Dopigo na produkt sklepu (prosty albo z wariantami).
package mapper

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/bartek5186/dopi2woo/internal/db"
	"github.com/bartek5186/dopi2woo/internal/dopigo"
	"github.com/bartek5186/dopi2woo/internal/images"
	"github.com/bartek5186/dopi2woo/internal/store"
	"github.com/bartek5186/dopi2woo/internal/textutil"
)

// Catalog – zapis produktów i wariantów.
type Catalog interface {
	SaveProduct(ctx context.Context, p *db.Product) error
	ListVariations(ctx context.Context, productID uint) ([]db.Variation, error)
	SaveVariation(ctx context.Context, v *db.Variation) error
	TrashVariations(ctx context.Context, ids []uint) error
	UpdateStock(ctx context.Context, variantID string, qty int, status string) error
}

type Categories interface {
	Lookup(ctx context.Context, dopigoID int64) (uint, bool, error)
	MarkPending(ctx context.Context, dopigoID int64) error
}

type ImageResolver interface {
	Resolve(ctx context.Context, imgs []dopigo.Image, stored []string, vc images.VariantContext) []uint
}

type Mapper struct {
	log  zerolog.Logger
	cat  Catalog
	cats Categories
	imgs ImageResolver
}

func New(log zerolog.Logger, cat Catalog, cats Categories, imgs ImageResolver) *Mapper {
	return &Mapper{
		log:  log.With().Str("component", "mapper").Logger(),
		cat:  cat,
		cats: cats,
		imgs: imgs,
	}
}

// Map ustawia pola produktu z rekordu Dopigo i zapisuje go. existing == nil → nowy produkt.
func (m *Mapper) Map(ctx context.Context, ext *dopigo.Product, existing *db.Product, skipImages bool) (*db.Product, error) {
	if len(ext.Products) == 0 {
		return nil, fmt.Errorf("product %s: no variants", ext.MetaID)
	}
	p := existing
	if p == nil {
		p = &db.Product{}
	}
	variable := len(ext.Products) > 1

	p.Name = textutil.SanitizeText(ext.Name)
	p.Description = ext.Description
	p.Status = db.StatusDraft
	if ext.Active {
		p.Status = db.StatusPublish
	}
	if ext.Subheading != "" {
		p.ShortDescription = textutil.SanitizeText(ext.Subheading)
	}
	if err := m.applyCategory(ctx, p, int64(ext.Category)); err != nil {
		return nil, err
	}
	p.MetaID = ext.MetaID.String()
	p.VAT = ext.VAT.String()

	if variable {
		if err := m.mapVariable(ctx, p, ext, skipImages); err != nil {
			return nil, err
		}
	} else {
		if err := m.mapSimple(ctx, p, ext.Products[0], skipImages); err != nil {
			return nil, err
		}
	}

	if err := m.cat.SaveProduct(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (m *Mapper) applyCategory(ctx context.Context, p *db.Product, dopigoID int64) error {
	if dopigoID <= 0 {
		return nil
	}
	termID, ok, err := m.cats.Lookup(ctx, dopigoID)
	if err != nil {
		return err
	}
	if ok {
		p.CategoryIDs = []uint{termID}
		return nil
	}
	// bez mapowania produkt zostaje w dotychczasowych kategoriach
	m.log.Debug().Int64("dopigo_category", dopigoID).Str("meta_id", p.MetaID).Msg("category not mapped yet, marked pending")
	return m.cats.MarkPending(ctx, dopigoID)
}

func (m *Mapper) mapSimple(ctx context.Context, p *db.Product, v dopigo.Variant, skipImages bool) error {
	wasVariable := p.Type == db.TypeVariable
	p.Type = db.TypeSimple
	p.Attributes = nil
	p.DopigoProductID = v.ID.String()

	if ids, resolved := m.applyVariant(ctx, &p.VariantFields, v, skipImages); resolved {
		p.ImageID, p.GalleryImageIDs = nil, nil
		if len(ids) > 0 {
			p.ImageID = &ids[0]
			if len(ids) > 1 {
				p.GalleryImageIDs = ids[1:]
			}
		}
	}

	if wasVariable && p.ID != 0 {
		// produkt przestał mieć warianty
		vars, err := m.cat.ListVariations(ctx, p.ID)
		if err != nil {
			return err
		}
		var ids []uint
		for _, vr := range vars {
			if !vr.DeletedAt.Valid {
				ids = append(ids, vr.ID)
			}
		}
		return m.cat.TrashVariations(ctx, ids)
	}
	return nil
}

func (m *Mapper) mapVariable(ctx context.Context, p *db.Product, ext *dopigo.Product, skipImages bool) error {
	p.Type = db.TypeVariable
	p.DopigoProductID = ""
	p.VariantFields = db.VariantFields{}
	p.GalleryImageIDs = nil

	// warianty potrzebują zapisanego rodzica
	if err := m.cat.SaveProduct(ctx, p); err != nil {
		return err
	}
	p.Attributes = CollectAttributes(ext.Products)

	current, err := m.cat.ListVariations(ctx, p.ID)
	if err != nil {
		return err
	}
	byKey := make(map[string]*db.Variation, len(current))
	for i := range current {
		byKey[current[i].DopigoProductID] = &current[i]
	}

	seen := make(map[uint]bool, len(ext.Products))
	for i, v := range ext.Products {
		key := VariantKey(v, i)
		vr, ok := byKey[key]
		if !ok {
			vr = &db.Variation{ProductID: p.ID, DopigoProductID: key}
			byKey[key] = vr
		}
		if err := m.mapVariation(ctx, vr, v, skipImages); err != nil {
			return fmt.Errorf("variation %s: %w", key, err)
		}
		seen[vr.ID] = true
	}

	var stale []uint
	for _, vr := range current {
		if !seen[vr.ID] && !vr.DeletedAt.Valid {
			stale = append(stale, vr.ID)
		}
	}
	if len(stale) > 0 {
		m.log.Debug().Str("meta_id", p.MetaID).Int("count", len(stale)).Msg("trashing variations missing in Dopigo")
	}
	return m.cat.TrashVariations(ctx, stale)
}

func (m *Mapper) mapVariation(ctx context.Context, vr *db.Variation, v dopigo.Variant, skipImages bool) error {
	vr.DeletedAt = gorm.DeletedAt{}
	vr.Attributes = VariationAttributes(v)
	if ids, resolved := m.applyVariant(ctx, &vr.VariantFields, v, skipImages); resolved {
		vr.ImageID = nil
		if len(ids) > 0 {
			vr.ImageID = &ids[0]
		}
	}

	err := m.cat.SaveVariation(ctx, vr)
	if vr.ID == 0 && errors.Is(err, store.ErrDuplicate) {
		// równoległy sync utworzył ten wariant – nadpisz jego rekord
		vars, lerr := m.cat.ListVariations(ctx, vr.ProductID)
		if lerr != nil {
			return lerr
		}
		for _, w := range vars {
			if w.DopigoProductID == vr.DopigoProductID {
				vr.ID, vr.CreatedAt = w.ID, w.CreatedAt
				return m.cat.SaveVariation(ctx, vr)
			}
		}
	}
	return err
}

// applyVariant ustawia pola wspólne dla produktu prostego i wariantu.
// resolved=true gdy obrazki zostały rozwiązane i trzeba podmienić przypięte media.
func (m *Mapper) applyVariant(ctx context.Context, f *db.VariantFields, v dopigo.Variant, skipImages bool) ([]uint, bool) {
	if v.SKU != "" {
		f.SKU = textutil.SanitizeText(v.SKU)
	}
	applyPrices(f, v)

	f.ManageStock = true
	f.StockQuantity = int(v.AvailableStock)
	f.StockStatus = StockStatus(f.StockQuantity)

	if w := v.Weight.String(); w != "" && w != "0" {
		f.Weight = w
	}
	f.Barcode = v.Barcode
	if v.PurchasePrice.Present() {
		f.PurchasePrice = v.PurchasePrice.NullDecimal
	}

	if len(v.Images) == 0 {
		return nil, false
	}
	urls := images.URLs(v.Images)
	stored := f.ImageURLs
	if len(f.ImageURLsOriginal) == 0 {
		f.ImageURLsOriginal = urls
	}
	f.ImageURLs = urls
	if skipImages {
		return nil, false
	}
	return m.imgs.Resolve(ctx, v.Images, stored, images.VariantContext{SKU: v.SKU}), true
}

// applyPrices: price < listing_price → promocja; w innym wypadku price jest ceną regularną.
func applyPrices(f *db.VariantFields, v dopigo.Variant) {
	f.SalePrice = decimal.NullDecimal{}
	if v.ListingPrice.Present() {
		f.RegularPrice = v.ListingPrice.NullDecimal
	}
	if !v.Price.Present() {
		return
	}
	if v.ListingPrice.Present() && v.Price.Decimal.LessThan(v.ListingPrice.Decimal) {
		f.SalePrice = v.Price.NullDecimal
		return
	}
	f.RegularPrice = v.Price.NullDecimal
}

func StockStatus(qty int) string {
	if qty > 0 {
		return db.StockIn
	}
	return db.StockOut
}

// VariantKey – klucz korelacji wariantu; bez id Dopigo bierzemy SKU, a na końcu pozycję.
func VariantKey(v dopigo.Variant, idx int) string {
	if id := v.ID.String(); id != "" {
		return id
	}
	if sku := strings.TrimSpace(v.SKU); sku != "" {
		return "sku:" + sku
	}
	return fmt.Sprintf("idx:%d", idx)
}

// CollectAttributes składa wymiary wariantów: nazwa (slug) → unikalne wartości w kolejności wystąpienia.
func CollectAttributes(variants []dopigo.Variant) []db.Attribute {
	var out []db.Attribute
	pos := map[string]int{}
	for _, v := range variants {
		for _, ca := range v.CustomAttributes {
			name := textutil.Slug(ca.Attribute.Name)
			if name == "" {
				continue
			}
			i, ok := pos[name]
			if !ok {
				i = len(out)
				pos[name] = i
				out = append(out, db.Attribute{Name: name, Position: i, Visible: true, Variation: true})
			}
			if !containsString(out[i].Options, ca.Value.Name) {
				out[i].Options = append(out[i].Options, ca.Value.Name)
			}
		}
	}
	return out
}

// VariationAttributes – wartości atrybutów jednego wariantu, klucze jak w CollectAttributes.
func VariationAttributes(v dopigo.Variant) map[string]string {
	out := make(map[string]string, len(v.CustomAttributes))
	for _, ca := range v.CustomAttributes {
		if name := textutil.Slug(ca.Attribute.Name); name != "" {
			out[name] = ca.Value.Name
		}
	}
	return out
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
