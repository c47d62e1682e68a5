package order

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/vasiliy-maslov/ecommerce-microservices/shop-service/internal/apperror"
	"github.com/vasiliy-maslov/ecommerce-microservices/shop-service/internal/cart"
	"github.com/vasiliy-maslov/ecommerce-microservices/shop-service/internal/catalog"
	"github.com/vasiliy-maslov/ecommerce-microservices/shop-service/internal/db"
)

var allowedTransitions = map[Status]map[Status]bool{
	StatusPending: {
		StatusConfirmed: true,
		StatusCancelled: true,
	},
	StatusConfirmed: {
		StatusProcessing: true,
		StatusCancelled:  true,
		StatusRefunded:   true,
	},
	StatusProcessing: {
		StatusShipped:   true,
		StatusCancelled: true,
		StatusRefunded:  true,
	},
	StatusShipped: {
		StatusDelivered: true,
		StatusRefunded:  true,
	},
	StatusDelivered: {
		StatusRefunded: true,
	},
	StatusCancelled: {},
	StatusRefunded:  {},
}

var (
	ErrEmptyCart               = fmt.Errorf("empty cart: %w", apperror.ErrValidation)
	ErrInvalidStatusTransition = fmt.Errorf("invalid order status transition: %w", apperror.ErrInvalidState)
	ErrCancelNotAllowed        = fmt.Errorf("only pending orders can be cancelled: %w", apperror.ErrInvalidState)
)

const orderNumberAttempts = 3

// CartStore is the part of the cart repository checkout consumes.
type CartStore interface {
	Find(ctx context.Context, owner cart.Owner) (*cart.Cart, error)
	ListItems(ctx context.Context, cartID uuid.UUID) ([]cart.Item, error)
	Clear(ctx context.Context, cartID uuid.UUID) error
}

// Inventory is the part of the catalog repository that moves stock.
type Inventory interface {
	LockStock(ctx context.Context, refs []catalog.StockRef) (map[catalog.StockRef]catalog.StockLevel, error)
	DecrementStock(ctx context.Context, ref catalog.StockRef, quantity int) error
	IncrementStock(ctx context.Context, ref catalog.StockRef, quantity int) error
}

// CouponRedeemer applies a coupon code to a subtotal inside the caller's
// transaction.
type CouponRedeemer interface {
	Redeem(ctx context.Context, code string, subtotal decimal.Decimal) (decimal.Decimal, string, error)
}

// ChargePolicy computes tax and shipping for a checkout.
type ChargePolicy interface {
	Charges(subtotal decimal.Decimal, shipping Address) (tax, shippingAmount decimal.Decimal)
}

// NoCharges is the default policy: no tax and free shipping.
type NoCharges struct{}

func (NoCharges) Charges(decimal.Decimal, Address) (decimal.Decimal, decimal.Decimal) {
	return decimal.Zero, decimal.Zero
}

type Service interface {
	Checkout(ctx context.Context, userID uuid.UUID, req CheckoutRequest) (*Order, error)
	GetOrder(ctx context.Context, userID, id uuid.UUID) (*Order, error)
	ListOrders(ctx context.Context, userID uuid.UUID) ([]Order, error)
	Stats(ctx context.Context, userID uuid.UUID) (*Stats, error)
	Cancel(ctx context.Context, userID, id uuid.UUID, notes string) (*Order, error)
	UpdateStatus(ctx context.Context, staffID, id uuid.UUID, upd StatusUpdate) (*Order, error)
	MarkPaid(ctx context.Context, id uuid.UUID) error
	MarkPaymentFailed(ctx context.Context, id uuid.UUID) error
}

type service struct {
	tx      db.Transactor
	repo    Repository
	carts   CartStore
	stock   Inventory
	coupons CouponRedeemer
	charges ChargePolicy
	now     func() time.Time
}

type Option func(*service)

func WithChargePolicy(p ChargePolicy) Option {
	return func(s *service) { s.charges = p }
}

func WithClock(now func() time.Time) Option {
	return func(s *service) { s.now = now }
}

func NewService(tx db.Transactor, repo Repository, carts CartStore, stock Inventory, coupons CouponRedeemer, opts ...Option) Service {
	s := &service{
		tx:      tx,
		repo:    repo,
		carts:   carts,
		stock:   stock,
		coupons: coupons,
		charges: NoCharges{},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *service) Checkout(ctx context.Context, userID uuid.UUID, req CheckoutRequest) (*Order, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	var created *Order
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		c, err := s.carts.Find(ctx, cart.UserOwner(userID))
		if err != nil {
			if errors.Is(err, cart.ErrCartNotFound) {
				return ErrEmptyCart
			}
			return err
		}

		lines, err := s.carts.ListItems(ctx, c.ID)
		if err != nil {
			return err
		}
		c.Items = lines
		if c.IsEmpty() {
			return ErrEmptyCart
		}

		refs := make([]catalog.StockRef, 0, len(lines))
		for _, line := range lines {
			refs = append(refs, line.Ref())
		}
		levels, err := s.stock.LockStock(ctx, refs)
		if err != nil {
			return err
		}

		o := &Order{
			UserID:        userID,
			Status:        StatusPending,
			PaymentStatus: PaymentPending,
			Billing:       req.Billing,
			Shipping:      req.Shipping,
			Notes:         req.Notes,
			Subtotal:      decimal.Zero,
			Items:         make([]Item, 0, len(lines)),
		}
		for _, line := range lines {
			level := levels[line.Ref()]
			if !level.IsActive {
				return apperror.Validation("items", fmt.Sprintf("%s is no longer available", level.Name))
			}
			if line.Quantity > level.Stock {
				return &apperror.StockError{
					ProductID: line.ProductID,
					VariantID: line.VariantID,
					Name:      level.Name,
					Requested: line.Quantity,
					Available: level.Stock,
				}
			}

			total := level.Price.Mul(decimal.NewFromInt(int64(line.Quantity)))
			o.Subtotal = o.Subtotal.Add(total)
			o.Items = append(o.Items, Item{
				ProductID:  line.ProductID,
				VariantID:  line.VariantID,
				Name:       level.Name,
				Quantity:   line.Quantity,
				UnitPrice:  level.Price,
				TotalPrice: total,
			})
		}

		o.DiscountAmount, o.CouponCode, err = s.coupons.Redeem(ctx, req.CouponCode, o.Subtotal)
		if err != nil {
			return err
		}
		o.TaxAmount, o.ShippingAmount = s.charges.Charges(o.Subtotal, req.Shipping)
		o.TotalAmount = o.Subtotal.Add(o.TaxAmount).Add(o.ShippingAmount).Sub(o.DiscountAmount)

		if err := s.insertOrder(ctx, o); err != nil {
			return err
		}

		for _, item := range o.Items {
			if err := s.stock.DecrementStock(ctx, catalog.RefFor(item.ProductID, item.VariantID), item.Quantity); err != nil {
				return err
			}
		}

		if err := s.carts.Clear(ctx, c.ID); err != nil {
			return err
		}

		if err := s.appendHistory(ctx, o, "Order created", &userID); err != nil {
			return err
		}

		created = o
		return nil
	})
	if err != nil {
		if isClientError(err) {
			log.Warn().Err(err).Stringer("user_id", userID).Msg("service: checkout rejected")
			return nil, err
		}
		log.Error().Err(err).Stringer("user_id", userID).Msg("service: checkout failed")
		return nil, fmt.Errorf("service: failed to check out: %w", err)
	}

	log.Info().
		Stringer("order_id", created.ID).
		Str("order_number", created.OrderNumber).
		Stringer("user_id", userID).
		Int("items", created.TotalItems()).
		Str("total", created.TotalAmount.StringFixed(2)).
		Msg("service: order placed")
	return created, nil
}

func (s *service) insertOrder(ctx context.Context, o *Order) error {
	for attempt := 0; attempt < orderNumberAttempts; attempt++ {
		number, err := newOrderNumber()
		if err != nil {
			return err
		}
		o.OrderNumber = number

		err = s.repo.Create(ctx, o)
		if !errors.Is(err, ErrOrderNumberConflict) {
			return err
		}
		log.Warn().Str("order_number", number).Msg("service: order number collision, retrying")
	}
	return fmt.Errorf("service: could not allocate a unique order number after %d attempts", orderNumberAttempts)
}

// newOrderNumber returns "ORD-" followed by eight upper-case hex digits.
func newOrderNumber() (string, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return "", fmt.Errorf("service: failed to generate order number: %w", err)
	}
	return "ORD-" + strings.ToUpper(hex.EncodeToString(id.Bytes()[:4])), nil
}

func (s *service) appendHistory(ctx context.Context, o *Order, notes string, by *uuid.UUID) error {
	change := &StatusChange{OrderID: o.ID, Status: o.Status, Notes: notes, CreatedBy: by}
	if err := s.repo.AddHistory(ctx, change); err != nil {
		return err
	}
	o.History = append(o.History, *change)
	return nil
}

func (s *service) GetOrder(ctx context.Context, userID, id uuid.UUID) (*Order, error) {
	o, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			log.Warn().Err(err).Stringer("order_id", id).Msg("service: order not found by id")
			return nil, ErrOrderNotFound
		}
		log.Error().Err(err).Msg("service: failed to fetch order by id in repository")
		return nil, fmt.Errorf("service: failed to fetch order by id: %w", err)
	}
	if o.UserID != userID {
		return nil, ErrOrderNotFound
	}
	return o, nil
}

func (s *service) ListOrders(ctx context.Context, userID uuid.UUID) ([]Order, error) {
	orders, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		log.Error().Err(err).Stringer("user_id", userID).Msg("service: failed to fetch user orders in repository")
		return nil, fmt.Errorf("service: failed to fetch user orders: %w", err)
	}
	return orders, nil
}

func (s *service) Stats(ctx context.Context, userID uuid.UUID) (*Stats, error) {
	stats, err := s.repo.Stats(ctx, userID)
	if err != nil {
		log.Error().Err(err).Stringer("user_id", userID).Msg("service: failed to compute order stats")
		return nil, fmt.Errorf("service: failed to compute order stats: %w", err)
	}
	return stats, nil
}

func (s *service) Cancel(ctx context.Context, userID, id uuid.UUID, notes string) (*Order, error) {
	if notes == "" {
		notes = "Order cancelled by customer"
	}

	var cancelled *Order
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		o, err := s.repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if o.UserID != userID {
			return ErrOrderNotFound
		}
		if o.Status != StatusPending {
			return ErrCancelNotAllowed
		}

		if err := s.restoreStock(ctx, o.Items); err != nil {
			return err
		}

		o.Status = StatusCancelled
		if err := s.repo.UpdateStatus(ctx, o); err != nil {
			return err
		}
		if err := s.appendHistory(ctx, o, notes, &userID); err != nil {
			return err
		}

		cancelled = o
		return nil
	})
	if err != nil {
		if isClientError(err) {
			log.Warn().Err(err).Stringer("order_id", id).Msg("service: cancellation rejected")
			return nil, err
		}
		log.Error().Err(err).Stringer("order_id", id).Msg("service: failed to cancel order")
		return nil, fmt.Errorf("service: failed to cancel order: %w", err)
	}

	log.Info().Stringer("order_id", id).Stringer("user_id", userID).Msg("service: order cancelled")
	return cancelled, nil
}

func (s *service) restoreStock(ctx context.Context, items []Item) error {
	if len(items) == 0 {
		return nil
	}

	refs := make([]catalog.StockRef, 0, len(items))
	for _, item := range items {
		refs = append(refs, catalog.RefFor(item.ProductID, item.VariantID))
	}
	if _, err := s.stock.LockStock(ctx, refs); err != nil {
		return err
	}

	for _, item := range items {
		if err := s.stock.IncrementStock(ctx, catalog.RefFor(item.ProductID, item.VariantID), item.Quantity); err != nil {
			return err
		}
	}
	return nil
}

func (s *service) UpdateStatus(ctx context.Context, staffID, id uuid.UUID, upd StatusUpdate) (*Order, error) {
	if !upd.Status.Valid() {
		return nil, apperror.Validation("status", fmt.Sprintf("unknown status %q", upd.Status))
	}

	var updated *Order
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		o, err := s.repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}

		if o.Status == upd.Status {
			log.Info().Stringer("order_id", id).Stringer("status", upd.Status).Msg("service: order status is already the same, no update needed")
			updated = o
			return nil
		}

		if !allowedTransitions[o.Status][upd.Status] {
			log.Warn().
				Stringer("order_id", id).
				Stringer("current_status", o.Status).
				Stringer("new_status", upd.Status).
				Msg("service: invalid status transition attempt")
			return fmt.Errorf("%w: %s to %s", ErrInvalidStatusTransition, o.Status, upd.Status)
		}

		if upd.Status == StatusCancelled {
			if err := s.restoreStock(ctx, o.Items); err != nil {
				return err
			}
		}

		now := s.now().UTC()
		if upd.Status == StatusShipped && o.ShippedAt == nil {
			o.ShippedAt = &now
		}
		if upd.Status == StatusDelivered && o.DeliveredAt == nil {
			o.DeliveredAt = &now
		}
		if upd.TrackingNumber != "" {
			o.TrackingNumber = upd.TrackingNumber
		}

		previous := o.Status
		o.Status = upd.Status
		if err := s.repo.UpdateStatus(ctx, o); err != nil {
			return err
		}
		if err := s.appendHistory(ctx, o, upd.Notes, &staffID); err != nil {
			return err
		}

		log.Info().Stringer("order_id", id).Stringer("old_status", previous).Stringer("new_status", o.Status).Msg("service: order status updated successfully")
		updated = o
		return nil
	})
	if err != nil {
		if isClientError(err) {
			return nil, err
		}
		log.Error().Err(err).Stringer("order_id", id).Msg("service: failed to update order status")
		return nil, fmt.Errorf("service: failed to update order status: %w", err)
	}

	return updated, nil
}

func (s *service) MarkPaid(ctx context.Context, id uuid.UUID) error {
	return s.setPaymentStatus(ctx, id, PaymentPaid)
}

func (s *service) MarkPaymentFailed(ctx context.Context, id uuid.UUID) error {
	return s.setPaymentStatus(ctx, id, PaymentFailed)
}

func (s *service) setPaymentStatus(ctx context.Context, id uuid.UUID, status PaymentStatus) error {
	if err := s.repo.SetPaymentStatus(ctx, id, status); err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return ErrOrderNotFound
		}
		log.Error().Err(err).Stringer("order_id", id).Stringer("payment_status", status).Msg("service: failed to set payment status")
		return fmt.Errorf("service: failed to set payment status: %w", err)
	}
	log.Info().Stringer("order_id", id).Stringer("payment_status", status).Msg("service: payment status updated")
	return nil
}

func isClientError(err error) bool {
	return errors.Is(err, apperror.ErrValidation) ||
		errors.Is(err, apperror.ErrNotFound) ||
		errors.Is(err, apperror.ErrInsufficientStock) ||
		errors.Is(err, apperror.ErrInvalidState) ||
		errors.Is(err, apperror.ErrConflict)
}
