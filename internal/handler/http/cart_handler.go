package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"

	"github.com/vasiliy-maslov/ecommerce-microservices/shop-service/internal/cart"
)

type AddCartItemRequest struct {
	ProductID uuid.UUID  `json:"product_id" validate:"required"`
	VariantID *uuid.UUID `json:"variant_id"`
	Quantity  int        `json:"quantity" validate:"required,gte=1"`
}

type UpdateCartItemRequest struct {
	Quantity int `json:"quantity" validate:"required,gte=1"`
}

type AddWishlistItemRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
}

type RemoveCartItemRequest struct {
	VariantID *uuid.UUID `json:"variant_id"`
}

type CartItemResponse struct {
	cart.Item
	TotalPrice decimal.Decimal `json:"total_price"`
}

type CartResponse struct {
	ID         uuid.UUID          `json:"id"`
	UserID     *uuid.UUID         `json:"user_id,omitempty"`
	SessionKey *string            `json:"session_key,omitempty"`
	Items      []CartItemResponse `json:"items"`
	cart.Summary
}

type MessageResponse struct {
	Message string `json:"message"`
}

func newCartItemResponse(item cart.Item) CartItemResponse {
	return CartItemResponse{Item: item, TotalPrice: item.TotalPrice()}
}

func newCartResponse(c *cart.Cart) CartResponse {
	items := make([]CartItemResponse, 0, len(c.Items))
	for _, item := range c.Items {
		items = append(items, newCartItemResponse(item))
	}
	return CartResponse{
		ID:         c.ID,
		UserID:     c.UserID,
		SessionKey: c.SessionKey,
		Items:      items,
		Summary:    c.Summary(),
	}
}

type CartHandler struct {
	service  cart.Service
	guard    *Guard
	validate *validator.Validate
}

func NewCartHandler(service cart.Service, guard *Guard) *CartHandler {
	return &CartHandler{
		service:  service,
		guard:    guard,
		validate: newValidator(),
	}
}

func (h *CartHandler) RegisterRoutes(router chi.Router) {
	router.Route("/cart", func(r chi.Router) {
		r.Use(h.guard.RequireCartOwner)
		r.Get("/", h.handleGetCart)
		r.Delete("/", h.handleClearCart)
		r.Get("/summary", h.handleSummary)
		r.Post("/items", h.handleAddItem)
		r.Patch("/items/{itemID}", h.handleUpdateItem)
		r.Delete("/products/{productID}", h.handleRemoveItem)
	})
	router.Route("/wishlist", func(r chi.Router) {
		r.Use(h.guard.RequireUser)
		r.Get("/", h.handleGetWishlist)
		r.Post("/items", h.handleAddToWishlist)
		r.Delete("/items/{productID}", h.handleRemoveFromWishlist)
	})
}

func (h *CartHandler) handleGetCart(w http.ResponseWriter, r *http.Request) {
	c, err := h.service.GetCart(r.Context(), ownerFrom(r.Context()))
	if err != nil {
		respondWithServiceError(w, err, "Failed to get cart")
		return
	}
	respondWithJSON(w, http.StatusOK, newCartResponse(c))
}

func (h *CartHandler) handleSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.Summary(r.Context(), ownerFrom(r.Context()))
	if err != nil {
		respondWithServiceError(w, err, "Failed to get cart summary")
		return
	}
	respondWithJSON(w, http.StatusOK, summary)
}

func (h *CartHandler) handleAddItem(w http.ResponseWriter, r *http.Request) {
	var requestPayload AddCartItemRequest
	if !decodeAndValidate(w, r, h.validate, &requestPayload) {
		return
	}

	item, err := h.service.AddItem(r.Context(), ownerFrom(r.Context()), requestPayload.ProductID, requestPayload.VariantID, requestPayload.Quantity)
	if err != nil {
		respondWithServiceError(w, err, "Failed to add item to cart")
		return
	}
	respondWithJSON(w, http.StatusCreated, newCartItemResponse(*item))
}

func (h *CartHandler) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	itemID, ok := uuidParam(w, r, "itemID")
	if !ok {
		return
	}

	var requestPayload UpdateCartItemRequest
	if !decodeAndValidate(w, r, h.validate, &requestPayload) {
		return
	}

	item, err := h.service.UpdateItem(r.Context(), ownerFrom(r.Context()), itemID, requestPayload.Quantity)
	if err != nil {
		respondWithServiceError(w, err, "Failed to update cart item")
		return
	}
	respondWithJSON(w, http.StatusOK, newCartItemResponse(*item))
}

// handleRemoveItem takes an optional JSON body naming the variant line.
func (h *CartHandler) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	productID, ok := uuidParam(w, r, "productID")
	if !ok {
		return
	}

	var requestPayload RemoveCartItemRequest
	if err := json.NewDecoder(r.Body).Decode(&requestPayload); err != nil && !errors.Is(err, io.EOF) {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if raw := r.URL.Query().Get("variant_id"); raw != "" && requestPayload.VariantID == nil {
		id, err := uuid.FromString(raw)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid variant_id parameter")
			return
		}
		requestPayload.VariantID = &id
	}

	if err := h.service.RemoveItem(r.Context(), ownerFrom(r.Context()), productID, requestPayload.VariantID); err != nil {
		respondWithServiceError(w, err, "Failed to remove item from cart")
		return
	}
	respondWithJSON(w, http.StatusOK, MessageResponse{Message: "Item removed from cart"})
}

func (h *CartHandler) handleClearCart(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Clear(r.Context(), ownerFrom(r.Context())); err != nil {
		respondWithServiceError(w, err, "Failed to clear cart")
		return
	}
	respondWithJSON(w, http.StatusOK, MessageResponse{Message: "Cart cleared"})
}

func (h *CartHandler) handleGetWishlist(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.Wishlist(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		respondWithServiceError(w, err, "Failed to get wishlist")
		return
	}
	respondWithJSON(w, http.StatusOK, items)
}

func (h *CartHandler) handleAddToWishlist(w http.ResponseWriter, r *http.Request) {
	var requestPayload AddWishlistItemRequest
	if !decodeAndValidate(w, r, h.validate, &requestPayload) {
		return
	}

	item, err := h.service.AddToWishlist(r.Context(), userIDFrom(r.Context()), requestPayload.ProductID)
	if err != nil {
		respondWithServiceError(w, err, "Failed to add item to wishlist")
		return
	}
	respondWithJSON(w, http.StatusCreated, item)
}

func (h *CartHandler) handleRemoveFromWishlist(w http.ResponseWriter, r *http.Request) {
	productID, ok := uuidParam(w, r, "productID")
	if !ok {
		return
	}

	if err := h.service.RemoveFromWishlist(r.Context(), userIDFrom(r.Context()), productID); err != nil {
		respondWithServiceError(w, err, "Failed to remove item from wishlist")
		return
	}
	respondWithJSON(w, http.StatusOK, MessageResponse{Message: "Item removed from wishlist"})
}
