package http_test

import (
	"context"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/vasiliy-maslov/ecommerce-microservices/shop-service/internal/cart"
	"github.com/vasiliy-maslov/ecommerce-microservices/shop-service/internal/catalog"
	"github.com/vasiliy-maslov/ecommerce-microservices/shop-service/internal/coupon"
	"github.com/vasiliy-maslov/ecommerce-microservices/shop-service/internal/order"
	"github.com/vasiliy-maslov/ecommerce-microservices/shop-service/internal/payment"
	"github.com/vasiliy-maslov/ecommerce-microservices/shop-service/internal/user"
)

type MockUserService struct {
	mock.Mock
}

func (m *MockUserService) CreateUser(ctx context.Context, u *user.User, password string) (*user.User, error) {
	args := m.Called(ctx, u, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*user.User), args.Error(1)
}

func (m *MockUserService) GetUserByID(ctx context.Context, id uuid.UUID) (*user.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*user.User), args.Error(1)
}

type MockCatalogService struct {
	mock.Mock
}

func (m *MockCatalogService) CreateCategory(ctx context.Context, c *catalog.Category) (*catalog.Category, error) {
	args := m.Called(ctx, c)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Category), args.Error(1)
}

func (m *MockCatalogService) ListCategories(ctx context.Context) ([]catalog.Category, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]catalog.Category), args.Error(1)
}

func (m *MockCatalogService) CreateProduct(ctx context.Context, p *catalog.Product) (*catalog.Product, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Product), args.Error(1)
}

func (m *MockCatalogService) GetProduct(ctx context.Context, id uuid.UUID) (*catalog.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Product), args.Error(1)
}

func (m *MockCatalogService) ListProducts(ctx context.Context, filter catalog.ProductFilter) ([]catalog.Product, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]catalog.Product), args.Error(1)
}

func (m *MockCatalogService) CreateVariant(ctx context.Context, v *catalog.Variant) (*catalog.Variant, error) {
	args := m.Called(ctx, v)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Variant), args.Error(1)
}

func (m *MockCatalogService) SetStock(ctx context.Context, ref catalog.StockRef, quantity int) error {
	args := m.Called(ctx, ref, quantity)
	return args.Error(0)
}

type MockCartService struct {
	mock.Mock
}

func (m *MockCartService) GetCart(ctx context.Context, owner cart.Owner) (*cart.Cart, error) {
	args := m.Called(ctx, owner)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*cart.Cart), args.Error(1)
}

func (m *MockCartService) Summary(ctx context.Context, owner cart.Owner) (cart.Summary, error) {
	args := m.Called(ctx, owner)
	return args.Get(0).(cart.Summary), args.Error(1)
}

func (m *MockCartService) AddItem(ctx context.Context, owner cart.Owner, productID uuid.UUID, variantID *uuid.UUID, quantity int) (*cart.Item, error) {
	args := m.Called(ctx, owner, productID, variantID, quantity)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*cart.Item), args.Error(1)
}

func (m *MockCartService) UpdateItem(ctx context.Context, owner cart.Owner, itemID uuid.UUID, quantity int) (*cart.Item, error) {
	args := m.Called(ctx, owner, itemID, quantity)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*cart.Item), args.Error(1)
}

func (m *MockCartService) RemoveItem(ctx context.Context, owner cart.Owner, productID uuid.UUID, variantID *uuid.UUID) error {
	args := m.Called(ctx, owner, productID, variantID)
	return args.Error(0)
}

func (m *MockCartService) Clear(ctx context.Context, owner cart.Owner) error {
	args := m.Called(ctx, owner)
	return args.Error(0)
}

func (m *MockCartService) Wishlist(ctx context.Context, userID uuid.UUID) ([]cart.WishlistItem, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]cart.WishlistItem), args.Error(1)
}

func (m *MockCartService) AddToWishlist(ctx context.Context, userID, productID uuid.UUID) (*cart.WishlistItem, error) {
	args := m.Called(ctx, userID, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*cart.WishlistItem), args.Error(1)
}

func (m *MockCartService) RemoveFromWishlist(ctx context.Context, userID, productID uuid.UUID) error {
	args := m.Called(ctx, userID, productID)
	return args.Error(0)
}

type MockCouponService struct {
	mock.Mock
}

func (m *MockCouponService) Create(ctx context.Context, c *coupon.Coupon) (*coupon.Coupon, error) {
	args := m.Called(ctx, c)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*coupon.Coupon), args.Error(1)
}

func (m *MockCouponService) ListActive(ctx context.Context) ([]coupon.Coupon, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]coupon.Coupon), args.Error(1)
}

func (m *MockCouponService) Validate(ctx context.Context, code string, amount decimal.Decimal) (*coupon.Preview, error) {
	args := m.Called(ctx, code, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*coupon.Preview), args.Error(1)
}

func (m *MockCouponService) Redeem(ctx context.Context, code string, subtotal decimal.Decimal) (decimal.Decimal, string, error) {
	args := m.Called(ctx, code, subtotal)
	return args.Get(0).(decimal.Decimal), args.String(1), args.Error(2)
}

type MockOrderService struct {
	mock.Mock
}

func (m *MockOrderService) Checkout(ctx context.Context, userID uuid.UUID, req order.CheckoutRequest) (*order.Order, error) {
	args := m.Called(ctx, userID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrderService) GetOrder(ctx context.Context, userID, id uuid.UUID) (*order.Order, error) {
	args := m.Called(ctx, userID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrderService) ListOrders(ctx context.Context, userID uuid.UUID) ([]order.Order, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]order.Order), args.Error(1)
}

func (m *MockOrderService) Stats(ctx context.Context, userID uuid.UUID) (*order.Stats, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Stats), args.Error(1)
}

func (m *MockOrderService) Cancel(ctx context.Context, userID, id uuid.UUID, notes string) (*order.Order, error) {
	args := m.Called(ctx, userID, id, notes)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrderService) UpdateStatus(ctx context.Context, staffID, id uuid.UUID, upd order.StatusUpdate) (*order.Order, error) {
	args := m.Called(ctx, staffID, id, upd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrderService) MarkPaid(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockOrderService) MarkPaymentFailed(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type MockPaymentService struct {
	mock.Mock
}

func (m *MockPaymentService) CreateIntent(ctx context.Context, userID, orderID uuid.UUID, currency string) (*payment.IntentResult, error) {
	args := m.Called(ctx, userID, orderID, currency)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.IntentResult), args.Error(1)
}

func (m *MockPaymentService) Confirm(ctx context.Context, userID, paymentID uuid.UUID) (*payment.Confirmation, error) {
	args := m.Called(ctx, userID, paymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Confirmation), args.Error(1)
}

func (m *MockPaymentService) HandleWebhook(ctx context.Context, event payment.WebhookEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockPaymentService) GetPayment(ctx context.Context, userID, paymentID uuid.UUID) (*payment.Payment, error) {
	args := m.Called(ctx, userID, paymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Payment), args.Error(1)
}

func (m *MockPaymentService) ListPayments(ctx context.Context, userID uuid.UUID) ([]payment.Payment, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]payment.Payment), args.Error(1)
}
