package http_test

import (
	"net/http"
	"testing"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/vasiliy-maslov/ecommerce-microservices/shop-service/internal/apperror"
	"github.com/vasiliy-maslov/ecommerce-microservices/shop-service/internal/cart"
	handler "github.com/vasiliy-maslov/ecommerce-microservices/shop-service/internal/handler/http"
)

func TestCartHandler_RequiresOwner(t *testing.T) {
	guard, _, _ := staffGuard(t)
	mockService := new(MockCartService)

	rr := do(t, handler.NewCartHandler(mockService, guard), http.MethodGet, "/cart", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = do(t, handler.NewCartHandler(mockService, guard), http.MethodGet, "/cart", nil,
		map[string]string{handler.HeaderUserID: "not-a-uuid"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	mockService.AssertNotCalled(t, "GetCart", mock.Anything, mock.Anything)
}

func TestCartHandler_GetCart_Session(t *testing.T) {
	guard, _, _ := staffGuard(t)
	mockService := new(MockCartService)
	key := "sess-123"
	owner := cart.SessionOwner(key)

	c := &cart.Cart{
		ID:         newID(),
		SessionKey: &key,
		Items: []cart.Item{
			{ID: newID(), ProductID: newID(), Quantity: 2, UnitPrice: decimal.RequireFromString("19.99")},
			{ID: newID(), ProductID: newID(), Quantity: 1, UnitPrice: decimal.RequireFromString("5.02")},
		},
	}
	mockService.On("GetCart", mock.Anything, owner).Return(c, nil).Once()

	rr := do(t, handler.NewCartHandler(mockService, guard), http.MethodGet, "/cart", nil,
		map[string]string{handler.HeaderSessionKey: key})

	require.Equal(t, http.StatusOK, rr.Code)
	var resp handler.CartResponse
	decodeBody(t, rr, &resp)
	assert.Equal(t, 3, resp.TotalItems)
	assert.Equal(t, 2, resp.ItemCount)
	assert.True(t, resp.TotalPrice.Equal(decimal.RequireFromString("45.00")), "got %s", resp.TotalPrice)
	require.Len(t, resp.Items, 2)
	assert.True(t, resp.Items[0].TotalPrice.Equal(decimal.RequireFromString("39.98")))
}

func TestCartHandler_AddItem(t *testing.T) {
	guard, _, customerID := staffGuard(t)
	owner := cart.UserOwner(customerID)
	productID := newID()

	t.Run("created", func(t *testing.T) {
		mockService := new(MockCartService)
		mockService.On("AddItem", mock.Anything, owner, productID, (*uuid.UUID)(nil), 2).
			Return(&cart.Item{ID: newID(), ProductID: productID, Quantity: 2, UnitPrice: decimal.NewFromInt(10)}, nil).Once()

		rr := do(t, handler.NewCartHandler(mockService, guard), http.MethodPost, "/cart/items",
			handler.AddCartItemRequest{ProductID: productID, Quantity: 2}, asUser(customerID))

		require.Equal(t, http.StatusCreated, rr.Code)
		var resp handler.CartItemResponse
		decodeBody(t, rr, &resp)
		assert.True(t, resp.TotalPrice.Equal(decimal.NewFromInt(20)))
		mockService.AssertExpectations(t)
	})

	t.Run("exceeds_stock", func(t *testing.T) {
		mockService := new(MockCartService)
		mockService.On("AddItem", mock.Anything, owner, productID, (*uuid.UUID)(nil), 5).
			Return(nil, &apperror.StockError{ProductID: productID, Name: "Blue Mug", Requested: 5, Available: 3}).Once()

		rr := do(t, handler.NewCartHandler(mockService, guard), http.MethodPost, "/cart/items",
			handler.AddCartItemRequest{ProductID: productID, Quantity: 5}, asUser(customerID))

		require.Equal(t, http.StatusBadRequest, rr.Code)
		var resp handler.StockErrorResponse
		decodeBody(t, rr, &resp)
		assert.Equal(t, productID, resp.ProductID)
		assert.Equal(t, 5, resp.Requested)
		assert.Equal(t, 3, resp.Available)
		assert.Contains(t, resp.Error, "Blue Mug")
	})

	t.Run("zero_quantity", func(t *testing.T) {
		mockService := new(MockCartService)

		rr := do(t, handler.NewCartHandler(mockService, guard), http.MethodPost, "/cart/items",
			handler.AddCartItemRequest{ProductID: productID, Quantity: 0}, asUser(customerID))

		details := validationDetails(t, rr)
		assert.Contains(t, details, "quantity")
		mockService.AssertNotCalled(t, "AddItem", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestCartHandler_UpdateItem_NotFound(t *testing.T) {
	guard, _, customerID := staffGuard(t)
	mockService := new(MockCartService)
	itemID := newID()
	mockService.On("UpdateItem", mock.Anything, cart.UserOwner(customerID), itemID, 3).Return(nil, cart.ErrItemNotFound).Once()

	rr := do(t, handler.NewCartHandler(mockService, guard), http.MethodPatch, "/cart/items/"+itemID.String(),
		handler.UpdateCartItemRequest{Quantity: 3}, asUser(customerID))

	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "Cart item not found", errorBody(t, rr))
}

func TestCartHandler_RemoveItem(t *testing.T) {
	guard, _, customerID := staffGuard(t)
	owner := cart.UserOwner(customerID)
	productID, variantID := newID(), newID()

	t.Run("variant_in_body", func(t *testing.T) {
		mockService := new(MockCartService)
		mockService.On("RemoveItem", mock.Anything, owner, productID, &variantID).Return(nil).Once()

		rr := do(t, handler.NewCartHandler(mockService, guard), http.MethodDelete, "/cart/products/"+productID.String(),
			handler.RemoveCartItemRequest{VariantID: &variantID}, asUser(customerID))

		require.Equal(t, http.StatusOK, rr.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("variant_in_query", func(t *testing.T) {
		mockService := new(MockCartService)
		mockService.On("RemoveItem", mock.Anything, owner, productID, &variantID).Return(nil).Once()

		rr := do(t, handler.NewCartHandler(mockService, guard), http.MethodDelete,
			"/cart/products/"+productID.String()+"?variant_id="+variantID.String(), nil, asUser(customerID))

		require.Equal(t, http.StatusOK, rr.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("no_such_line", func(t *testing.T) {
		mockService := new(MockCartService)
		mockService.On("RemoveItem", mock.Anything, owner, productID, (*uuid.UUID)(nil)).Return(cart.ErrItemNotFound).Once()

		rr := do(t, handler.NewCartHandler(mockService, guard), http.MethodDelete, "/cart/products/"+productID.String(), nil, asUser(customerID))

		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestCartHandler_ClearAndSummary(t *testing.T) {
	guard, _, customerID := staffGuard(t)
	owner := cart.UserOwner(customerID)
	mockService := new(MockCartService)
	mockService.On("Clear", mock.Anything, owner).Return(nil).Once()
	mockService.On("Summary", mock.Anything, owner).Return(cart.Summary{TotalPrice: decimal.Zero}, nil).Once()
	h := handler.NewCartHandler(mockService, guard)

	rr := do(t, h, http.MethodDelete, "/cart", nil, asUser(customerID))
	require.Equal(t, http.StatusOK, rr.Code)
	var msg handler.MessageResponse
	decodeBody(t, rr, &msg)
	assert.Equal(t, "Cart cleared", msg.Message)

	rr = do(t, h, http.MethodGet, "/cart/summary", nil, asUser(customerID))
	require.Equal(t, http.StatusOK, rr.Code)
	var summary cart.Summary
	decodeBody(t, rr, &summary)
	assert.Zero(t, summary.TotalItems)
	mockService.AssertExpectations(t)
}

func TestCartHandler_Wishlist(t *testing.T) {
	guard, _, customerID := staffGuard(t)
	productID := newID()

	t.Run("list", func(t *testing.T) {
		mockService := new(MockCartService)
		mockService.On("Wishlist", mock.Anything, customerID).
			Return([]cart.WishlistItem{{ID: newID(), ProductID: productID, ProductName: "Blue Mug", Price: decimal.NewFromInt(12)}}, nil).Once()

		rr := do(t, handler.NewCartHandler(mockService, guard), http.MethodGet, "/wishlist", nil, asUser(customerID))

		require.Equal(t, http.StatusOK, rr.Code)
		var resp []cart.WishlistItem
		decodeBody(t, rr, &resp)
		require.Len(t, resp, 1)
		assert.Equal(t, "Blue Mug", resp[0].ProductName)
		mockService.AssertExpectations(t)
	})

	t.Run("add_created", func(t *testing.T) {
		mockService := new(MockCartService)
		mockService.On("AddToWishlist", mock.Anything, customerID, productID).
			Return(&cart.WishlistItem{ID: newID(), ProductID: productID}, nil).Once()

		rr := do(t, handler.NewCartHandler(mockService, guard), http.MethodPost, "/wishlist/items",
			handler.AddWishlistItemRequest{ProductID: productID}, asUser(customerID))

		require.Equal(t, http.StatusCreated, rr.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("add_duplicate", func(t *testing.T) {
		mockService := new(MockCartService)
		mockService.On("AddToWishlist", mock.Anything, customerID, productID).Return(nil, cart.ErrAlreadyWishlisted).Once()

		rr := do(t, handler.NewCartHandler(mockService, guard), http.MethodPost, "/wishlist/items",
			handler.AddWishlistItemRequest{ProductID: productID}, asUser(customerID))

		assert.Equal(t, http.StatusConflict, rr.Code)
		assert.Equal(t, "Product already in wishlist", errorBody(t, rr))
	})

	t.Run("remove_missing", func(t *testing.T) {
		mockService := new(MockCartService)
		mockService.On("RemoveFromWishlist", mock.Anything, customerID, productID).Return(cart.ErrWishlistItemNotFound).Once()

		rr := do(t, handler.NewCartHandler(mockService, guard), http.MethodDelete, "/wishlist/items/"+productID.String(), nil, asUser(customerID))

		assert.Equal(t, http.StatusNotFound, rr.Code)
		assert.Equal(t, "Item not found in wishlist", errorBody(t, rr))
	})

	t.Run("session_only", func(t *testing.T) {
		mockService := new(MockCartService)

		rr := do(t, handler.NewCartHandler(mockService, guard), http.MethodGet, "/wishlist", nil,
			map[string]string{handler.HeaderSessionKey: "sess-1"})

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		mockService.AssertNotCalled(t, "Wishlist", mock.Anything, mock.Anything)
	})
}
