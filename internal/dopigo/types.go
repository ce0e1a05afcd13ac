// internal/dopigo/types.go
package dopigo

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Product to rekord katalogu Dopigo (meta produkt + warianty w "products").
type Product struct {
	MetaID      FlexString `json:"meta_id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Subheading  string     `json:"subheading"`
	Active      bool       `json:"active"`
	Category    FlexInt    `json:"category"`
	VAT         FlexString `json:"vat"`
	Products    []Variant  `json:"products"`
}

type Variant struct {
	ID               FlexString        `json:"id"`
	SKU              string            `json:"sku"`
	Barcode          string            `json:"barcode"`
	Price            Price             `json:"price"`
	ListingPrice     Price             `json:"listing_price"`
	PurchasePrice    Price             `json:"purchase_price"`
	Weight           FlexString        `json:"weight"`
	AvailableStock   FlexInt           `json:"available_stock"`
	CustomAttributes []CustomAttribute `json:"custom_attributes"`
	Images           []Image           `json:"images"`
}

type CustomAttribute struct {
	Attribute struct {
		Name string `json:"name"`
	} `json:"attribute"`
	Value struct {
		Name string `json:"name"`
	} `json:"value"`
}

type Image struct {
	AbsoluteURL string  `json:"absolute_url"`
	SourceURL   string  `json:"source_url"`
	Order       FlexInt `json:"order"`
}

// FlexString przyjmuje string, liczbę albo null (Dopigo bywa niekonsekwentne).
type FlexString string

func (s *FlexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*s = ""
		return nil
	}
	if b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = FlexString(strings.TrimSpace(v))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("flex string: %w", err)
	}
	*s = FlexString(n.String())
	return nil
}

func (s FlexString) String() string { return string(s) }

// FlexInt przyjmuje liczbę, liczbę w stringu albo null (→ 0).
type FlexInt int64

func (i *FlexInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	s = strings.TrimSpace(s)
	if s == "" || s == "null" {
		*i = 0
		return nil
	}
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		*i = FlexInt(v)
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("flex int %q: %w", s, err)
	}
	*i = FlexInt(int64(f))
	return nil
}

// Price – cena jako decimal; "", null → brak ceny.
type Price struct {
	decimal.NullDecimal
}

func NewPrice(s string) Price {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Price{}
	}
	return Price{decimal.NewNullDecimal(d)}
}

func (p *Price) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(strings.Trim(strings.TrimSpace(string(b)), `"`))
	if s == "" || s == "null" {
		p.NullDecimal = decimal.NullDecimal{}
		return nil
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(s, ",", "."))
	if err != nil {
		return fmt.Errorf("price %q: %w", s, err)
	}
	p.NullDecimal = decimal.NewNullDecimal(d)
	return nil
}

func (p Price) MarshalJSON() ([]byte, error) {
	if !p.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(p.Decimal.String())
}

// Present – cena podana i różna od zera (zero traktujemy jak brak).
func (p Price) Present() bool {
	return p.Valid && !p.Decimal.IsZero()
}

// DecodeRecords rozpakowuje listę produktów: koperta {count,next,results} albo goła tablica.
func DecodeRecords(body []byte) ([]json.RawMessage, error) {
	page, err := decodePage(body)
	if err != nil {
		return nil, err
	}
	return page.Results, nil
}
