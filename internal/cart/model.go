package cart

import (
	"strings"
	"time"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"

	"github.com/vasiliy-maslov/ecommerce-microservices/shop-service/internal/apperror"
	"github.com/vasiliy-maslov/ecommerce-microservices/shop-service/internal/catalog"
)

// Owner identifies whose cart is addressed: a signed-in user or an
// anonymous session. The user wins when both are present.
type Owner struct {
	UserID     uuid.UUID
	SessionKey string
}

func UserOwner(id uuid.UUID) Owner {
	return Owner{UserID: id}
}

func SessionOwner(key string) Owner {
	return Owner{SessionKey: strings.TrimSpace(key)}
}

func (o Owner) IsUser() bool {
	return o.UserID != uuid.Nil
}

func (o Owner) Validate() error {
	if !o.IsUser() && o.SessionKey == "" {
		return apperror.Validation("owner", "user or session key is required")
	}
	if !o.IsUser() && len(o.SessionKey) > 40 {
		return apperror.Validation("session_key", "must be at most 40 characters")
	}
	return nil
}

type Cart struct {
	ID         uuid.UUID  `json:"id"`
	UserID     *uuid.UUID `json:"user_id,omitempty"`
	SessionKey *string    `json:"session_key,omitempty"`
	Items      []Item     `json:"items"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// Item is a cart line joined with the live product and variant it points at.
type Item struct {
	ID          uuid.UUID       `json:"id"`
	CartID      uuid.UUID       `json:"cart_id"`
	ProductID   uuid.UUID       `json:"product_id"`
	VariantID   *uuid.UUID      `json:"variant_id,omitempty"`
	Quantity    int             `json:"quantity"`
	ProductName string          `json:"product_name"`
	VariantName string          `json:"variant_name,omitempty"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Stock       int             `json:"-"`
	IsActive    bool            `json:"-"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func (i Item) Ref() catalog.StockRef {
	return catalog.RefFor(i.ProductID, i.VariantID)
}

func (i Item) TotalPrice() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

type Summary struct {
	TotalItems int             `json:"total_items"`
	TotalPrice decimal.Decimal `json:"total_price"`
	ItemCount  int             `json:"item_count"`
}

func (c *Cart) Summary() Summary {
	s := Summary{TotalPrice: decimal.Zero, ItemCount: len(c.Items)}
	for _, item := range c.Items {
		s.TotalItems += item.Quantity
		s.TotalPrice = s.TotalPrice.Add(item.TotalPrice())
	}
	return s
}

func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// WishlistItem is a saved product joined with its live listing.
type WishlistItem struct {
	ID          uuid.UUID       `json:"id"`
	ProductID   uuid.UUID       `json:"product_id"`
	ProductName string          `json:"product_name"`
	ProductSlug string          `json:"product_slug"`
	Price       decimal.Decimal `json:"price"`
	InStock     bool            `json:"is_in_stock"`
	IsActive    bool            `json:"is_active"`
	CreatedAt   time.Time       `json:"created_at"`
}
