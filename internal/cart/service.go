package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"

	"github.com/vasiliy-maslov/ecommerce-microservices/shop-service/internal/apperror"
	"github.com/vasiliy-maslov/ecommerce-microservices/shop-service/internal/catalog"
	"github.com/vasiliy-maslov/ecommerce-microservices/shop-service/internal/db"
)

// StockReader resolves the live price and stock of a product or variant.
type StockReader interface {
	GetStockLevel(ctx context.Context, ref catalog.StockRef) (catalog.StockLevel, error)
}

type Service interface {
	GetCart(ctx context.Context, owner Owner) (*Cart, error)
	Summary(ctx context.Context, owner Owner) (Summary, error)
	AddItem(ctx context.Context, owner Owner, productID uuid.UUID, variantID *uuid.UUID, quantity int) (*Item, error)
	UpdateItem(ctx context.Context, owner Owner, itemID uuid.UUID, quantity int) (*Item, error)
	RemoveItem(ctx context.Context, owner Owner, productID uuid.UUID, variantID *uuid.UUID) error
	Clear(ctx context.Context, owner Owner) error

	Wishlist(ctx context.Context, userID uuid.UUID) ([]WishlistItem, error)
	AddToWishlist(ctx context.Context, userID, productID uuid.UUID) (*WishlistItem, error)
	RemoveFromWishlist(ctx context.Context, userID, productID uuid.UUID) error
}

type service struct {
	tx    db.Transactor
	repo  Repository
	stock StockReader
}

func NewService(tx db.Transactor, repo Repository, stock StockReader) Service {
	return &service{tx: tx, repo: repo, stock: stock}
}

func (s *service) GetCart(ctx context.Context, owner Owner) (*Cart, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}

	c, err := s.repo.GetOrCreate(ctx, owner)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, err
		}
		log.Error().Err(err).Msg("service: failed to get or create cart")
		return nil, fmt.Errorf("service: failed to get cart: %w", err)
	}

	items, err := s.repo.ListItems(ctx, c.ID)
	if err != nil {
		log.Error().Err(err).Stringer("cart_id", c.ID).Msg("service: failed to list cart items")
		return nil, fmt.Errorf("service: failed to list cart items: %w", err)
	}
	c.Items = items

	return c, nil
}

func (s *service) Summary(ctx context.Context, owner Owner) (Summary, error) {
	c, err := s.GetCart(ctx, owner)
	if err != nil {
		return Summary{}, err
	}
	return c.Summary(), nil
}

func (s *service) AddItem(ctx context.Context, owner Owner, productID uuid.UUID, variantID *uuid.UUID, quantity int) (*Item, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}
	if quantity < 1 {
		return nil, apperror.Validation("quantity", "must be at least 1")
	}

	ref := catalog.RefFor(productID, variantID)
	var added *Item

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		level, err := s.stock.GetStockLevel(ctx, ref)
		if err != nil {
			return err
		}
		if !level.IsActive {
			if ref.HasVariant() {
				return catalog.ErrVariantNotFound
			}
			return catalog.ErrProductNotFound
		}

		c, err := s.repo.GetOrCreate(ctx, owner)
		if err != nil {
			return err
		}

		lineID, total, err := s.repo.AddQuantity(ctx, c.ID, ref, quantity)
		if err != nil {
			return err
		}
		if total > level.Stock {
			return &apperror.StockError{
				ProductID: ref.ProductID,
				VariantID: ref.VariantPtr(),
				Name:      level.Name,
				Requested: total,
				Available: level.Stock,
			}
		}

		added, err = s.repo.GetItem(ctx, c.ID, lineID)
		return err
	})
	if err != nil {
		if isClientError(err) {
			log.Warn().Err(err).Stringer("product_id", productID).Msg("service: cart item rejected")
			return nil, err
		}
		log.Error().Err(err).Stringer("product_id", productID).Msg("service: failed to add cart item")
		return nil, fmt.Errorf("service: failed to add cart item: %w", err)
	}

	log.Info().Stringer("cart_id", added.CartID).Stringer("item_id", added.ID).Int("quantity", added.Quantity).Msg("service: cart item added")
	return added, nil
}

func (s *service) UpdateItem(ctx context.Context, owner Owner, itemID uuid.UUID, quantity int) (*Item, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}
	if quantity < 1 {
		return nil, apperror.Validation("quantity", "must be at least 1")
	}

	var updated *Item
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		c, err := s.repo.Find(ctx, owner)
		if err != nil {
			if errors.Is(err, ErrCartNotFound) {
				return ErrItemNotFound
			}
			return err
		}

		item, err := s.repo.GetItem(ctx, c.ID, itemID)
		if err != nil {
			return err
		}
		if quantity > item.Stock {
			return &apperror.StockError{
				ProductID: item.ProductID,
				VariantID: item.VariantID,
				Name:      item.ProductName,
				Requested: quantity,
				Available: item.Stock,
			}
		}

		if err := s.repo.SetQuantity(ctx, c.ID, itemID, quantity); err != nil {
			return err
		}
		item.Quantity = quantity
		updated = item
		return nil
	})
	if err != nil {
		if isClientError(err) {
			return nil, err
		}
		log.Error().Err(err).Stringer("item_id", itemID).Msg("service: failed to update cart item")
		return nil, fmt.Errorf("service: failed to update cart item: %w", err)
	}

	return updated, nil
}

func (s *service) RemoveItem(ctx context.Context, owner Owner, productID uuid.UUID, variantID *uuid.UUID) error {
	if err := owner.Validate(); err != nil {
		return err
	}

	c, err := s.repo.Find(ctx, owner)
	if err != nil {
		if errors.Is(err, ErrCartNotFound) {
			return ErrItemNotFound
		}
		log.Error().Err(err).Msg("service: failed to find cart")
		return fmt.Errorf("service: failed to find cart: %w", err)
	}

	if err := s.repo.RemoveLine(ctx, c.ID, catalog.RefFor(productID, variantID)); err != nil {
		if errors.Is(err, ErrItemNotFound) {
			return ErrItemNotFound
		}
		log.Error().Err(err).Stringer("cart_id", c.ID).Msg("service: failed to remove cart item")
		return fmt.Errorf("service: failed to remove cart item: %w", err)
	}

	return nil
}

func (s *service) Clear(ctx context.Context, owner Owner) error {
	if err := owner.Validate(); err != nil {
		return err
	}

	c, err := s.repo.Find(ctx, owner)
	if err != nil {
		if errors.Is(err, ErrCartNotFound) {
			return nil
		}
		log.Error().Err(err).Msg("service: failed to find cart")
		return fmt.Errorf("service: failed to find cart: %w", err)
	}

	if err := s.repo.Clear(ctx, c.ID); err != nil {
		log.Error().Err(err).Stringer("cart_id", c.ID).Msg("service: failed to clear cart")
		return fmt.Errorf("service: failed to clear cart: %w", err)
	}

	return nil
}

func (s *service) Wishlist(ctx context.Context, userID uuid.UUID) ([]WishlistItem, error) {
	items, err := s.repo.ListWishlist(ctx, userID)
	if err != nil {
		log.Error().Err(err).Stringer("user_id", userID).Msg("service: failed to list wishlist")
		return nil, fmt.Errorf("service: failed to list wishlist: %w", err)
	}
	return items, nil
}

// AddToWishlist accepts active products only; a product already saved is
// a conflict rather than a silent no-op.
func (s *service) AddToWishlist(ctx context.Context, userID, productID uuid.UUID) (*WishlistItem, error) {
	if productID == uuid.Nil {
		return nil, apperror.Validation("product_id", "is required")
	}

	item, err := s.addToWishlist(ctx, userID, productID)
	if err != nil {
		if isClientError(err) || errors.Is(err, apperror.ErrConflict) {
			log.Warn().Err(err).Stringer("product_id", productID).Msg("service: wishlist item rejected")
			return nil, err
		}
		log.Error().Err(err).Stringer("product_id", productID).Msg("service: failed to add wishlist item")
		return nil, fmt.Errorf("service: failed to add wishlist item: %w", err)
	}

	log.Info().Stringer("user_id", userID).Stringer("product_id", productID).Msg("service: product added to wishlist")
	return item, nil
}

func (s *service) addToWishlist(ctx context.Context, userID, productID uuid.UUID) (*WishlistItem, error) {
	level, err := s.stock.GetStockLevel(ctx, catalog.RefFor(productID, nil))
	if err != nil {
		return nil, err
	}
	if !level.IsActive {
		return nil, catalog.ErrProductNotFound
	}
	return s.repo.AddToWishlist(ctx, userID, productID)
}

func (s *service) RemoveFromWishlist(ctx context.Context, userID, productID uuid.UUID) error {
	if err := s.repo.RemoveFromWishlist(ctx, userID, productID); err != nil {
		if errors.Is(err, ErrWishlistItemNotFound) {
			return err
		}
		log.Error().Err(err).Stringer("product_id", productID).Msg("service: failed to remove wishlist item")
		return fmt.Errorf("service: failed to remove wishlist item: %w", err)
	}
	return nil
}

func isClientError(err error) bool {
	return errors.Is(err, apperror.ErrValidation) ||
		errors.Is(err, apperror.ErrNotFound) ||
		errors.Is(err, apperror.ErrInsufficientStock)
}
