package http

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"

	"github.com/vasiliy-maslov/ecommerce-microservices/shop-service/internal/catalog"
)

type CreateCategoryRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Slug        string `json:"slug" validate:"omitempty,max=100"`
	Description string `json:"description"`
	IsActive    *bool  `json:"is_active"`
}

type CreateProductRequest struct {
	CategoryID        *uuid.UUID      `json:"category_id"`
	Name              string          `json:"name" validate:"required,max=200"`
	Slug              string          `json:"slug" validate:"omitempty,max=200"`
	SKU               string          `json:"sku" validate:"required,max=100"`
	Description       string          `json:"description"`
	Price             decimal.Decimal `json:"price"`
	StockQuantity     int             `json:"stock_quantity" validate:"gte=0"`
	LowStockThreshold *int            `json:"low_stock_threshold" validate:"omitempty,gte=0"`
	IsActive          *bool           `json:"is_active"`
}

type CreateVariantRequest struct {
	Name          string          `json:"name" validate:"required,max=100"`
	SKU           string          `json:"sku" validate:"required,max=100"`
	Price         decimal.Decimal `json:"price"`
	StockQuantity int             `json:"stock_quantity" validate:"gte=0"`
	IsActive      *bool           `json:"is_active"`
}

type SetStockRequest struct {
	VariantID *uuid.UUID `json:"variant_id"`
	Quantity  *int       `json:"quantity" validate:"required,gte=0"`
}

type StockResponse struct {
	ProductID uuid.UUID  `json:"product_id"`
	VariantID *uuid.UUID `json:"variant_id,omitempty"`
	Quantity  int        `json:"stock_quantity"`
}

const defaultLowStockThreshold = 10

type CatalogHandler struct {
	service  catalog.Service
	guard    *Guard
	validate *validator.Validate
}

func NewCatalogHandler(service catalog.Service, guard *Guard) *CatalogHandler {
	return &CatalogHandler{
		service:  service,
		guard:    guard,
		validate: newValidator(),
	}
}

func (h *CatalogHandler) RegisterRoutes(router chi.Router) {
	router.Get("/categories", h.handleListCategories)
	router.Get("/products", h.handleListProducts)
	router.Get("/products/{id}", h.handleGetProduct)

	router.Group(func(staff chi.Router) {
		staff.Use(h.guard.RequireStaff)
		staff.Post("/categories", h.handleCreateCategory)
		staff.Post("/products", h.handleCreateProduct)
		staff.Post("/products/{id}/variants", h.handleCreateVariant)
		staff.Put("/products/{id}/stock", h.handleSetStock)
	})
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

func (h *CatalogHandler) handleListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.service.ListCategories(r.Context())
	if err != nil {
		respondWithServiceError(w, err, "Failed to list categories")
		return
	}
	respondWithJSON(w, http.StatusOK, categories)
}

func (h *CatalogHandler) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var requestPayload CreateCategoryRequest
	if !decodeAndValidate(w, r, h.validate, &requestPayload) {
		return
	}

	created, err := h.service.CreateCategory(r.Context(), &catalog.Category{
		Name:        requestPayload.Name,
		Slug:        requestPayload.Slug,
		Description: requestPayload.Description,
		IsActive:    boolOr(requestPayload.IsActive, true),
	})
	if err != nil {
		respondWithServiceError(w, err, "Failed to create category")
		return
	}

	respondWithJSON(w, http.StatusCreated, created)
}

func (h *CatalogHandler) handleListProducts(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	var filter catalog.ProductFilter

	if raw := query.Get("category"); raw != "" {
		id, err := uuid.FromString(raw)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid category parameter")
			return
		}
		filter.CategoryID = &id
	}
	for name, dst := range map[string]*int{"limit": &filter.Limit, "offset": &filter.Offset} {
		raw := query.Get(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid "+name+" parameter")
			return
		}
		*dst = n
	}

	products, err := h.service.ListProducts(r.Context(), filter)
	if err != nil {
		respondWithServiceError(w, err, "Failed to list products")
		return
	}
	respondWithJSON(w, http.StatusOK, products)
}

func (h *CatalogHandler) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	productID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	product, err := h.service.GetProduct(r.Context(), productID)
	if err != nil {
		respondWithServiceError(w, err, "Failed to get product")
		return
	}
	respondWithJSON(w, http.StatusOK, product)
}

func (h *CatalogHandler) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var requestPayload CreateProductRequest
	if !decodeAndValidate(w, r, h.validate, &requestPayload) {
		return
	}

	threshold := defaultLowStockThreshold
	if requestPayload.LowStockThreshold != nil {
		threshold = *requestPayload.LowStockThreshold
	}

	created, err := h.service.CreateProduct(r.Context(), &catalog.Product{
		CategoryID:        requestPayload.CategoryID,
		Name:              requestPayload.Name,
		Slug:              requestPayload.Slug,
		SKU:               requestPayload.SKU,
		Description:       requestPayload.Description,
		Price:             requestPayload.Price,
		StockQuantity:     requestPayload.StockQuantity,
		LowStockThreshold: threshold,
		IsActive:          boolOr(requestPayload.IsActive, true),
	})
	if err != nil {
		respondWithServiceError(w, err, "Failed to create product")
		return
	}

	respondWithJSON(w, http.StatusCreated, created)
}

func (h *CatalogHandler) handleCreateVariant(w http.ResponseWriter, r *http.Request) {
	productID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	var requestPayload CreateVariantRequest
	if !decodeAndValidate(w, r, h.validate, &requestPayload) {
		return
	}

	created, err := h.service.CreateVariant(r.Context(), &catalog.Variant{
		ProductID:     productID,
		Name:          requestPayload.Name,
		SKU:           requestPayload.SKU,
		Price:         requestPayload.Price,
		StockQuantity: requestPayload.StockQuantity,
		IsActive:      boolOr(requestPayload.IsActive, true),
	})
	if err != nil {
		respondWithServiceError(w, err, "Failed to create variant")
		return
	}

	respondWithJSON(w, http.StatusCreated, created)
}

func (h *CatalogHandler) handleSetStock(w http.ResponseWriter, r *http.Request) {
	productID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	var requestPayload SetStockRequest
	if !decodeAndValidate(w, r, h.validate, &requestPayload) {
		return
	}

	ref := catalog.RefFor(productID, requestPayload.VariantID)
	if err := h.service.SetStock(r.Context(), ref, *requestPayload.Quantity); err != nil {
		respondWithServiceError(w, err, "Failed to set stock")
		return
	}

	respondWithJSON(w, http.StatusOK, StockResponse{
		ProductID: productID,
		VariantID: ref.VariantPtr(),
		Quantity:  *requestPayload.Quantity,
	})
}
