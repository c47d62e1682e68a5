package catalog

import (
	"encoding/json"
	"strings"
	"time"
	"unicode"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
)

type Category struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description string    `json:"description"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Product struct {
	ID                uuid.UUID       `json:"id"`
	CategoryID        *uuid.UUID      `json:"category_id,omitempty"`
	Name              string          `json:"name"`
	Slug              string          `json:"slug"`
	SKU               string          `json:"sku"`
	Description       string          `json:"description"`
	Price             decimal.Decimal `json:"price"`
	StockQuantity     int             `json:"stock_quantity"`
	LowStockThreshold int             `json:"low_stock_threshold"`
	IsActive          bool            `json:"is_active"`
	Variants          []Variant       `json:"variants"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

func (p *Product) InStock() bool {
	return p.StockQuantity > 0
}

func (p *Product) LowStock() bool {
	return p.StockQuantity <= p.LowStockThreshold
}

// MarshalJSON adds the derived stock flags to the stored fields.
func (p Product) MarshalJSON() ([]byte, error) {
	type product Product
	return json.Marshal(struct {
		product
		IsInStock  bool `json:"is_in_stock"`
		IsLowStock bool `json:"is_low_stock"`
	}{
		product:    product(p),
		IsInStock:  p.InStock(),
		IsLowStock: p.LowStock(),
	})
}

// Variant is a purchasable configuration of a product with its own price
// and stock.
type Variant struct {
	ID            uuid.UUID       `json:"id"`
	ProductID     uuid.UUID       `json:"product_id"`
	Name          string          `json:"name"`
	SKU           string          `json:"sku"`
	Price         decimal.Decimal `json:"price"`
	StockQuantity int             `json:"stock_quantity"`
	IsActive      bool            `json:"is_active"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// StockRef points at the stock counter a line draws from: the variant when
// VariantID is set, otherwise the product itself.
type StockRef struct {
	ProductID uuid.UUID
	VariantID uuid.UUID
}

func RefFor(productID uuid.UUID, variantID *uuid.UUID) StockRef {
	ref := StockRef{ProductID: productID}
	if variantID != nil {
		ref.VariantID = *variantID
	}
	return ref
}

func (r StockRef) HasVariant() bool {
	return r.VariantID != uuid.Nil
}

// VariantPtr returns the variant id or nil for product-level stock.
func (r StockRef) VariantPtr() *uuid.UUID {
	if !r.HasVariant() {
		return nil
	}
	id := r.VariantID
	return &id
}

// StockLevel is the live price and stock resolved for a StockRef.
type StockLevel struct {
	Ref      StockRef
	Name     string
	Price    decimal.Decimal
	Stock    int
	IsActive bool
}

type ProductFilter struct {
	CategoryID *uuid.UUID
	Limit      int
	Offset     int
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

func (f ProductFilter) normalized() ProductFilter {
	if f.Limit <= 0 {
		f.Limit = defaultPageSize
	}
	if f.Limit > maxPageSize {
		f.Limit = maxPageSize
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

func slugify(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
