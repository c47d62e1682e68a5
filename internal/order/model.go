package order

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"

	"github.com/vasiliy-maslov/ecommerce-microservices/shop-service/internal/apperror"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusConfirmed  Status = "confirmed"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
	StatusRefunded   Status = "refunded"
)

func (s Status) String() string {
	return string(s)
}

func (s Status) Valid() bool {
	_, ok := allowedTransitions[s]
	return ok
}

type PaymentStatus string

const (
	PaymentPending           PaymentStatus = "pending"
	PaymentPaid              PaymentStatus = "paid"
	PaymentFailed            PaymentStatus = "failed"
	PaymentRefunded          PaymentStatus = "refunded"
	PaymentPartiallyRefunded PaymentStatus = "partially_refunded"
)

func (s PaymentStatus) String() string {
	return string(s)
}

// Address is copied onto the order at checkout and never follows later
// changes to the customer's details.
type Address struct {
	FirstName    string `json:"first_name" validate:"required,max=150"`
	LastName     string `json:"last_name" validate:"required,max=150"`
	Company      string `json:"company" validate:"max=100"`
	AddressLine1 string `json:"address_line_1" validate:"required,max=255"`
	AddressLine2 string `json:"address_line_2" validate:"max=255"`
	City         string `json:"city" validate:"required,max=100"`
	State        string `json:"state" validate:"required,max=100"`
	PostalCode   string `json:"postal_code" validate:"required,max=20"`
	Country      string `json:"country" validate:"required,max=100"`
	Phone        string `json:"phone" validate:"max=20"`
}

type Item struct {
	ID         uuid.UUID       `json:"id"`
	OrderID    uuid.UUID       `json:"order_id"`
	ProductID  uuid.UUID       `json:"product_id"`
	VariantID  *uuid.UUID      `json:"variant_id,omitempty"`
	Name       string          `json:"name"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	TotalPrice decimal.Decimal `json:"total_price"`
	CreatedAt  time.Time       `json:"created_at"`
}

// StatusChange is one append-only entry of an order's status history.
type StatusChange struct {
	ID        uuid.UUID  `json:"id"`
	OrderID   uuid.UUID  `json:"order_id"`
	Status    Status     `json:"status"`
	Notes     string     `json:"notes"`
	CreatedBy *uuid.UUID `json:"created_by,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

type Order struct {
	ID             uuid.UUID       `json:"id"`
	OrderNumber    string          `json:"order_number"`
	UserID         uuid.UUID       `json:"user_id"`
	Status         Status          `json:"status"`
	PaymentStatus  PaymentStatus   `json:"payment_status"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	TaxAmount      decimal.Decimal `json:"tax_amount"`
	ShippingAmount decimal.Decimal `json:"shipping_amount"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	CouponCode     string          `json:"coupon_code,omitempty"`
	Billing        Address         `json:"billing"`
	Shipping       Address         `json:"shipping"`
	Notes          string          `json:"notes"`
	TrackingNumber string          `json:"tracking_number"`
	ShippedAt      *time.Time      `json:"shipped_at,omitempty"`
	DeliveredAt    *time.Time      `json:"delivered_at,omitempty"`
	Items          []Item          `json:"items"`
	History        []StatusChange  `json:"status_history,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

func (o *Order) IsPaid() bool {
	return o.PaymentStatus == PaymentPaid
}

func (o *Order) TotalItems() int {
	n := 0
	for _, item := range o.Items {
		n += item.Quantity
	}
	return n
}

type CheckoutRequest struct {
	Billing    Address `json:"billing"`
	Shipping   Address `json:"shipping"`
	CouponCode string  `json:"coupon_code" validate:"max=50"`
	Notes      string  `json:"notes"`
}

var checkoutValidator = newCheckoutValidator()

func newCheckoutValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validate applies the struct tags of the request and both addresses,
// reporting fields as "billing.first_name".
func (r CheckoutRequest) validate() error {
	err := checkoutValidator.Struct(r)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("service: failed to validate checkout: %w", err)
	}

	fields := apperror.FieldErrors{}
	for _, fe := range verrs {
		path := fe.Namespace()
		if i := strings.Index(path, "."); i >= 0 {
			path = path[i+1:]
		}
		switch fe.Tag() {
		case "required":
			fields[path] = "is required"
		case "max":
			fields[path] = "must be at most " + fe.Param()
		default:
			fields[path] = "is invalid"
		}
	}
	return fields
}

type StatusUpdate struct {
	Status         Status
	Notes          string
	TrackingNumber string
}

type Stats struct {
	TotalOrders     int             `json:"total_orders" db:"total_orders"`
	PendingOrders   int             `json:"pending_orders" db:"pending_orders"`
	CompletedOrders int             `json:"completed_orders" db:"completed_orders"`
	CancelledOrders int             `json:"cancelled_orders" db:"cancelled_orders"`
	TotalSpent      decimal.Decimal `json:"total_spent" db:"total_spent"`
}
