// internal/db/models.go
package db

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	TypeSimple   = "simple"
	TypeVariable = "variable"

	StatusPublish = "publish"
	StatusDraft   = "draft"

	StockIn  = "instock"
	StockOut = "outofstock"
)

// VariantFields to pola wspólne dla produktu prostego i wariantu.
type VariantFields struct {
	SKU               string              `gorm:"size:128;index"`
	RegularPrice      decimal.NullDecimal `gorm:"type:decimal(12,2)"`
	SalePrice         decimal.NullDecimal `gorm:"type:decimal(12,2)"`
	ManageStock       bool
	StockQuantity     int
	StockStatus       string `gorm:"size:16"`
	Weight            string `gorm:"size:32"`
	Barcode           string `gorm:"size:64"`
	PurchasePrice     decimal.NullDecimal `gorm:"type:decimal(12,2)"`
	ImageID           *uint
	ImageURLs         []string `gorm:"serializer:json;type:text"` // _dopigo_image_urls
	ImageURLsOriginal []string `gorm:"serializer:json;type:text"` // _dopigo_image_urls_original
}

// Attribute to wymiar wariantów produktu zmiennego.
type Attribute struct {
	Name      string   `json:"name"`
	Options   []string `json:"options"`
	Position  int      `json:"position"`
	Visible   bool     `json:"visible"`
	Variation bool     `json:"variation"`
}

// products
type Product struct {
	ID               uint   `gorm:"primaryKey"`
	Type             string `gorm:"size:16;index"` // simple/variable
	Name             string `gorm:"size:255"`
	Description      string `gorm:"type:text"`
	ShortDescription string `gorm:"type:text"`
	Status           string `gorm:"size:16;index"` // publish/draft
	CategoryIDs      []uint `gorm:"serializer:json;type:text"`
	MetaID           string `gorm:"size:64;uniqueIndex"` // _dopigo_meta_id
	VAT              string `gorm:"size:16"`
	DopigoProductID  string `gorm:"size:64;index"` // tylko dla simple
	VariantFields    `gorm:"embedded"`
	GalleryImageIDs  []uint      `gorm:"serializer:json;type:text"`
	Attributes       []Attribute `gorm:"serializer:json;type:text"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
	DeletedAt        gorm.DeletedAt `gorm:"index"` // trash
}

// product_variations
type Variation struct {
	ID              uint              `gorm:"primaryKey"`
	ProductID       uint              `gorm:"uniqueIndex:uniq_variation_ext,priority:1"`
	DopigoProductID string            `gorm:"size:64;uniqueIndex:uniq_variation_ext,priority:2"`
	Attributes      map[string]string `gorm:"serializer:json;type:text"`
	VariantFields   `gorm:"embedded"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
	DeletedAt       gorm.DeletedAt `gorm:"index"`
}

// product_categories (taksonomia); DopigoID to meta termu
type Category struct {
	ID        uint   `gorm:"primaryKey"`
	Name      string `gorm:"size:255;index:idx_category_name_parent,priority:1"`
	ParentID  uint   `gorm:"index:idx_category_name_parent,priority:2"`
	Slug      string `gorm:"size:255"`
	DopigoID  int64  `gorm:"index"`
	CreatedAt time.Time
}

// media (biblioteka obrazków)
type Media struct {
	ID        uint   `gorm:"primaryKey"`
	GUID      string `gorm:"size:768;index"` // kanoniczny URL
	SourceURL string `gorm:"size:768;index"` // _dopigo_image_url
	Filename  string
	Path      string
	MimeType  string `gorm:"size:64"`
	SizeBytes int64
	CreatedAt time.Time
}

// kv – opcje (mapa kategorii, pending, historia)
type KV struct {
	K string `gorm:"primaryKey;size:191"`
	V string `gorm:"type:text"`
}

// import_issues – ostatni błąd per produkt
type ImportIssue struct {
	ID        uint   `gorm:"primaryKey"`
	MetaID    string `gorm:"size:64;uniqueIndex:uniq_issue_key,priority:1"`
	Reason    string `gorm:"size:32;uniqueIndex:uniq_issue_key,priority:2"`
	Details   string `gorm:"type:text"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// import_files – pliki z katalogu drop
type ImportFile struct {
	ImportID    uint   `gorm:"primaryKey;column:import_id"`
	Filename    string `gorm:"size:255;index"`
	Kind        string `gorm:"size:16;index"` // products/categories
	SHA256      string `gorm:"size:64;uniqueIndex"`
	SizeBytes   int64
	Status      int       `gorm:"index"` // 0=pending, 1=done, 2=error
	LastError   string    `gorm:"type:text"`
	ReceivedAt  time.Time `gorm:"autoCreateTime"`
	ProcessedAt *time.Time
}

// progress_records – odpowiednik transientów
type ProgressRecord struct {
	Key       string    `gorm:"primaryKey;size:64;column:progress_key"`
	Data      string    `gorm:"type:text"`
	ExpiresAt time.Time `gorm:"index"`
}

const (
	FilePending = 0
	FileDone    = 1
	FileError   = 2
)
