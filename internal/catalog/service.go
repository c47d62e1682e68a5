package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"

	"github.com/vasiliy-maslov/ecommerce-microservices/shop-service/internal/apperror"
)

type Service interface {
	CreateCategory(ctx context.Context, c *Category) (*Category, error)
	ListCategories(ctx context.Context) ([]Category, error)
	CreateProduct(ctx context.Context, p *Product) (*Product, error)
	GetProduct(ctx context.Context, id uuid.UUID) (*Product, error)
	ListProducts(ctx context.Context, filter ProductFilter) ([]Product, error)
	CreateVariant(ctx context.Context, v *Variant) (*Variant, error)
	SetStock(ctx context.Context, ref StockRef, quantity int) error
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (s *service) CreateCategory(ctx context.Context, c *Category) (*Category, error) {
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return nil, apperror.Validation("name", "cannot be empty")
	}
	if c.Slug == "" {
		c.Slug = slugify(c.Name)
	}

	if err := s.repo.CreateCategory(ctx, c); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			log.Warn().Err(err).Str("name", c.Name).Msg("service: category already exists")
			return nil, err
		}
		log.Error().Err(err).Msg("service: failed to create category in repository")
		return nil, fmt.Errorf("service: failed to create category: %w", err)
	}

	log.Info().Stringer("category_id", c.ID).Msg("service: category created")
	return c, nil
}

func (s *service) ListCategories(ctx context.Context) ([]Category, error) {
	categories, err := s.repo.ListCategories(ctx)
	if err != nil {
		log.Error().Err(err).Msg("service: failed to list categories")
		return nil, fmt.Errorf("service: failed to list categories: %w", err)
	}
	return categories, nil
}

func (s *service) CreateProduct(ctx context.Context, p *Product) (*Product, error) {
	p.Name = strings.TrimSpace(p.Name)
	p.SKU = strings.TrimSpace(p.SKU)

	fields := apperror.FieldErrors{}
	if p.Name == "" {
		fields["name"] = "cannot be empty"
	}
	if p.SKU == "" {
		fields["sku"] = "cannot be empty"
	}
	if p.Price.IsNegative() {
		fields["price"] = "cannot be negative"
	}
	if p.StockQuantity < 0 {
		fields["stock_quantity"] = "cannot be negative"
	}
	if p.LowStockThreshold < 0 {
		fields["low_stock_threshold"] = "cannot be negative"
	}
	if len(fields) > 0 {
		return nil, fields
	}
	if p.Slug == "" {
		p.Slug = slugify(p.Name)
	}

	if err := s.repo.CreateProduct(ctx, p); err != nil {
		if errors.Is(err, apperror.ErrConflict) || errors.Is(err, apperror.ErrNotFound) {
			log.Warn().Err(err).Str("sku", p.SKU).Msg("service: product rejected by repository")
			return nil, err
		}
		log.Error().Err(err).Msg("service: failed to create product in repository")
		return nil, fmt.Errorf("service: failed to create product: %w", err)
	}

	log.Info().Stringer("product_id", p.ID).Str("sku", p.SKU).Msg("service: product created")
	return p, nil
}

func (s *service) GetProduct(ctx context.Context, id uuid.UUID) (*Product, error) {
	p, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		if errors.Is(err, ErrProductNotFound) {
			return nil, ErrProductNotFound
		}
		log.Error().Err(err).Stringer("product_id", id).Msg("service: failed to get product")
		return nil, fmt.Errorf("service: failed to get product '%s': %w", id, err)
	}
	return p, nil
}

func (s *service) ListProducts(ctx context.Context, filter ProductFilter) ([]Product, error) {
	products, err := s.repo.ListProducts(ctx, filter.normalized())
	if err != nil {
		log.Error().Err(err).Msg("service: failed to list products")
		return nil, fmt.Errorf("service: failed to list products: %w", err)
	}
	return products, nil
}

func (s *service) CreateVariant(ctx context.Context, v *Variant) (*Variant, error) {
	v.Name = strings.TrimSpace(v.Name)
	v.SKU = strings.TrimSpace(v.SKU)

	fields := apperror.FieldErrors{}
	if v.Name == "" {
		fields["name"] = "cannot be empty"
	}
	if v.SKU == "" {
		fields["sku"] = "cannot be empty"
	}
	if v.Price.IsNegative() {
		fields["price"] = "cannot be negative"
	}
	if v.StockQuantity < 0 {
		fields["stock_quantity"] = "cannot be negative"
	}
	if len(fields) > 0 {
		return nil, fields
	}

	if err := s.repo.CreateVariant(ctx, v); err != nil {
		if errors.Is(err, apperror.ErrConflict) || errors.Is(err, apperror.ErrNotFound) {
			log.Warn().Err(err).Stringer("product_id", v.ProductID).Msg("service: variant rejected by repository")
			return nil, err
		}
		log.Error().Err(err).Msg("service: failed to create variant in repository")
		return nil, fmt.Errorf("service: failed to create variant: %w", err)
	}

	log.Info().Stringer("variant_id", v.ID).Stringer("product_id", v.ProductID).Msg("service: variant created")
	return v, nil
}

func (s *service) SetStock(ctx context.Context, ref StockRef, quantity int) error {
	if quantity < 0 {
		return apperror.Validation("quantity", "cannot be negative")
	}

	if err := s.repo.SetStock(ctx, ref, quantity); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return err
		}
		log.Error().Err(err).Stringer("product_id", ref.ProductID).Msg("service: failed to set stock")
		return fmt.Errorf("service: failed to set stock: %w", err)
	}

	log.Info().
		Stringer("product_id", ref.ProductID).
		Stringer("variant_id", ref.VariantID).
		Int("quantity", quantity).
		Msg("service: stock level set")
	return nil
}
