package order_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vasiliy-maslov/ecommerce-microservices/shop-service/internal/apperror"
	"github.com/vasiliy-maslov/ecommerce-microservices/shop-service/internal/cart"
	"github.com/vasiliy-maslov/ecommerce-microservices/shop-service/internal/catalog"
	"github.com/vasiliy-maslov/ecommerce-microservices/shop-service/internal/coupon"
	"github.com/vasiliy-maslov/ecommerce-microservices/shop-service/internal/db"
	"github.com/vasiliy-maslov/ecommerce-microservices/shop-service/internal/db/dbtest"
	"github.com/vasiliy-maslov/ecommerce-microservices/shop-service/internal/order"
	"github.com/vasiliy-maslov/ecommerce-microservices/shop-service/internal/user"
)

type storeFixture struct {
	pg       *db.Postgres
	users    user.Repository
	catalog  catalog.Repository
	carts    cart.Repository
	coupons  coupon.Repository
	orders   order.Repository
	checkout order.Service
}

func newStoreFixture(t *testing.T) *storeFixture {
	pg := dbtest.Open(t, "users", "products", "categories", "coupons", "carts", "orders")
	f := &storeFixture{
		pg:      pg,
		users:   user.NewRepository(pg),
		catalog: catalog.NewRepository(pg),
		carts:   cart.NewRepository(pg),
		coupons: coupon.NewRepository(pg),
		orders:  order.NewRepository(pg),
	}
	f.checkout = order.NewService(pg, f.orders, f.carts, f.catalog, coupon.NewService(f.coupons))
	return f
}

func (f *storeFixture) customer(t *testing.T, email string) uuid.UUID {
	t.Helper()
	id, err := f.users.Create(context.Background(), &user.User{
		FirstName:    "Ada",
		LastName:     "Lovelace",
		Email:        email,
		PasswordHash: "hashed_password",
	})
	require.NoError(t, err)
	return id
}

func (f *storeFixture) product(t *testing.T, sku string, price string, stock int) *catalog.Product {
	t.Helper()
	p := &catalog.Product{
		Name:              "Mug " + sku,
		Slug:              strings.ToLower(sku),
		SKU:               sku,
		Price:             dec(price),
		StockQuantity:     stock,
		LowStockThreshold: 1,
		IsActive:          true,
	}
	require.NoError(t, f.catalog.CreateProduct(context.Background(), p))
	return p
}

func (f *storeFixture) variant(t *testing.T, p *catalog.Product, sku string, price string, stock int) *catalog.Variant {
	t.Helper()
	v := &catalog.Variant{ProductID: p.ID, Name: "Large", SKU: sku, Price: dec(price), StockQuantity: stock, IsActive: true}
	require.NoError(t, f.catalog.CreateVariant(context.Background(), v))
	return v
}

func (f *storeFixture) fillCart(t *testing.T, userID uuid.UUID, ref catalog.StockRef, quantity int) *cart.Cart {
	t.Helper()
	ctx := context.Background()
	c, err := f.carts.GetOrCreate(ctx, cart.UserOwner(userID))
	require.NoError(t, err)
	_, _, err = f.carts.AddQuantity(ctx, c.ID, ref, quantity)
	require.NoError(t, err)
	return c
}

func (f *storeFixture) stock(t *testing.T, ref catalog.StockRef) int {
	t.Helper()
	level, err := f.catalog.GetStockLevel(context.Background(), ref)
	require.NoError(t, err)
	return level.Stock
}

func (f *storeFixture) cartLines(t *testing.T, c *cart.Cart) []cart.Item {
	t.Helper()
	items, err := f.carts.ListItems(context.Background(), c.ID)
	require.NoError(t, err)
	return items
}

func TestCheckout_Postgres_Success(t *testing.T) {
	f := newStoreFixture(t)
	ctx := context.Background()

	userID := f.customer(t, "checkout@example.com")
	mug := f.product(t, "MUG-A", "10.00", 5)
	large := f.variant(t, mug, "MUG-A-L", "12.50", 3)
	mugRef := catalog.RefFor(mug.ID, nil)
	largeRef := catalog.RefFor(mug.ID, &large.ID)

	limit := 5
	require.NoError(t, f.coupons.Create(ctx, &coupon.Coupon{
		Code:       "SAVE5",
		Type:       coupon.TypeFixed,
		Value:      dec("5"),
		UsageLimit: &limit,
		IsActive:   true,
		ValidFrom:  time.Now().Add(-time.Hour),
		ValidUntil: time.Now().Add(time.Hour),
	}))

	c := f.fillCart(t, userID, mugRef, 2)
	f.fillCart(t, userID, largeRef, 1)

	o, err := f.checkout.Checkout(ctx, userID, order.CheckoutRequest{Billing: address(), Shipping: address(), CouponCode: "save5"})
	require.NoError(t, err)

	assert.True(t, dec("32.50").Equal(o.Subtotal), o.Subtotal.String())
	assert.True(t, dec("5").Equal(o.DiscountAmount), o.DiscountAmount.String())
	assert.True(t, dec("27.50").Equal(o.TotalAmount), o.TotalAmount.String())
	assert.Equal(t, "SAVE5", o.CouponCode)
	assert.Equal(t, 3, o.TotalItems())

	assert.Equal(t, 3, f.stock(t, mugRef))
	assert.Equal(t, 2, f.stock(t, largeRef))
	assert.Empty(t, f.cartLines(t, c))

	saved, err := f.orders.GetByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, o.OrderNumber, saved.OrderNumber)
	assert.Len(t, saved.Items, 2)
	assert.Equal(t, order.StatusPending, saved.Status)

	used, err := f.coupons.GetByCode(ctx, "SAVE5")
	require.NoError(t, err)
	assert.Equal(t, 1, used.UsedCount)
}

func TestCheckout_Postgres_InsufficientStockRollsBack(t *testing.T) {
	f := newStoreFixture(t)
	ctx := context.Background()

	userID := f.customer(t, "short@example.com")
	mug := f.product(t, "MUG-B", "10.00", 10)
	large := f.variant(t, mug, "MUG-B-L", "12.00", 2)
	mugRef := catalog.RefFor(mug.ID, nil)
	largeRef := catalog.RefFor(mug.ID, &large.ID)

	limit := 5
	require.NoError(t, f.coupons.Create(ctx, &coupon.Coupon{
		Code:       "TEN",
		Type:       coupon.TypePercentage,
		Value:      dec("10"),
		UsageLimit: &limit,
		IsActive:   true,
		ValidFrom:  time.Now().Add(-time.Hour),
		ValidUntil: time.Now().Add(time.Hour),
	}))

	c := f.fillCart(t, userID, mugRef, 1)
	f.fillCart(t, userID, largeRef, 3)

	_, err := f.checkout.Checkout(ctx, userID, order.CheckoutRequest{Billing: address(), Shipping: address(), CouponCode: "TEN"})

	var stockErr *apperror.StockError
	require.True(t, errors.As(err, &stockErr), "got %v", err)
	assert.Equal(t, 3, stockErr.Requested)
	assert.Equal(t, 2, stockErr.Available)

	assert.Equal(t, 10, f.stock(t, mugRef))
	assert.Equal(t, 2, f.stock(t, largeRef))
	assert.Len(t, f.cartLines(t, c), 2)

	unused, err := f.coupons.GetByCode(ctx, "TEN")
	require.NoError(t, err)
	assert.Equal(t, 0, unused.UsedCount)

	orders, err := f.orders.ListByUser(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestCheckout_Postgres_LastUnitRace(t *testing.T) {
	f := newStoreFixture(t)
	ctx := context.Background()

	mug := f.product(t, "MUG-C", "10.00", 1)
	ref := catalog.RefFor(mug.ID, nil)

	buyers := []uuid.UUID{
		f.customer(t, "first@example.com"),
		f.customer(t, "second@example.com"),
	}
	for _, id := range buyers {
		f.fillCart(t, id, ref, 1)
	}

	var wg sync.WaitGroup
	errs := make([]error, len(buyers))
	for i, id := range buyers {
		wg.Add(1)
		go func(i int, id uuid.UUID) {
			defer wg.Done()
			_, errs[i] = f.checkout.Checkout(ctx, id, order.CheckoutRequest{Billing: address(), Shipping: address()})
		}(i, id)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, apperror.ErrInsufficientStock)
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 0, f.stock(t, ref))
}

func TestCheckout_Postgres_OrderedVariantCannotBeDeleted(t *testing.T) {
	f := newStoreFixture(t)
	ctx := context.Background()

	userID := f.customer(t, "restrict@example.com")
	mug := f.product(t, "MUG-D", "10.00", 5)
	large := f.variant(t, mug, "MUG-D-L", "12.00", 5)
	f.fillCart(t, userID, catalog.RefFor(mug.ID, &large.ID), 2)

	o, err := f.checkout.Checkout(ctx, userID, order.CheckoutRequest{Billing: address(), Shipping: address()})
	require.NoError(t, err)

	_, err = f.pg.Pool.Exec(ctx, `DELETE FROM product_variants WHERE id = $1`, large.ID)
	require.Error(t, err)
	assert.True(t, db.IsForeignKeyViolation(err), "got %v", err)

	cancelled, err := f.checkout.Cancel(ctx, userID, o.ID, "")
	require.NoError(t, err)
	assert.Equal(t, order.StatusCancelled, cancelled.Status)
	assert.Equal(t, 5, f.stock(t, catalog.RefFor(mug.ID, &large.ID)))
	assert.Equal(t, 5, f.stock(t, catalog.RefFor(mug.ID, nil)))
}
