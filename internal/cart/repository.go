package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/vasiliy-maslov/ecommerce-microservices/shop-service/internal/apperror"
	"github.com/vasiliy-maslov/ecommerce-microservices/shop-service/internal/catalog"
	"github.com/vasiliy-maslov/ecommerce-microservices/shop-service/internal/db"
)

var (
	ErrCartNotFound = fmt.Errorf("cart %w", apperror.ErrNotFound)
	ErrItemNotFound = fmt.Errorf("cart item %w", apperror.ErrNotFound)

	ErrWishlistItemNotFound = fmt.Errorf("item not found in wishlist: %w", apperror.ErrNotFound)
	ErrAlreadyWishlisted    = fmt.Errorf("product already in wishlist: %w", apperror.ErrConflict)
)

type Repository interface {
	GetOrCreate(ctx context.Context, owner Owner) (*Cart, error)
	Find(ctx context.Context, owner Owner) (*Cart, error)
	ListItems(ctx context.Context, cartID uuid.UUID) ([]Item, error)
	GetItem(ctx context.Context, cartID, itemID uuid.UUID) (*Item, error)
	// AddQuantity creates the line or merges into the existing one and
	// returns the line id with the resulting quantity.
	AddQuantity(ctx context.Context, cartID uuid.UUID, ref catalog.StockRef, quantity int) (uuid.UUID, int, error)
	SetQuantity(ctx context.Context, cartID, itemID uuid.UUID, quantity int) error
	RemoveLine(ctx context.Context, cartID uuid.UUID, ref catalog.StockRef) error
	Clear(ctx context.Context, cartID uuid.UUID) error

	ListWishlist(ctx context.Context, userID uuid.UUID) ([]WishlistItem, error)
	AddToWishlist(ctx context.Context, userID, productID uuid.UUID) (*WishlistItem, error)
	RemoveFromWishlist(ctx context.Context, userID, productID uuid.UUID) error
}

type postgresRepository struct {
	db *db.Postgres
}

func NewRepository(db *db.Postgres) Repository {
	return &postgresRepository{db: db}
}

const cartColumns = `id, user_id, session_key, created_at, updated_at`

// GetOrCreate is safe under concurrent first calls: the loser of the insert
// race does nothing and reads the winner's row.
func (r *postgresRepository) GetOrCreate(ctx context.Context, owner Owner) (*Cart, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return nil, fmt.Errorf("repository: failed to generate cart ID: %w", err)
	}

	var query string
	var key any
	if owner.IsUser() {
		query = `
			INSERT INTO carts (id, user_id, created_at, updated_at)
			VALUES ($1, $2, NOW(), NOW())
			ON CONFLICT (user_id) WHERE user_id IS NOT NULL DO NOTHING`
		key = owner.UserID
	} else {
		query = `
			INSERT INTO carts (id, session_key, created_at, updated_at)
			VALUES ($1, $2, NOW(), NOW())
			ON CONFLICT (session_key) WHERE session_key IS NOT NULL DO NOTHING`
		key = owner.SessionKey
	}

	if _, err := r.db.Conn(ctx).Exec(ctx, query, id, key); err != nil {
		if db.IsForeignKeyViolation(err) {
			return nil, fmt.Errorf("cart owner %w", apperror.ErrNotFound)
		}
		return nil, fmt.Errorf("repository: failed to insert cart: %w", err)
	}

	return r.Find(ctx, owner)
}

func (r *postgresRepository) Find(ctx context.Context, owner Owner) (*Cart, error) {
	var query string
	var key any
	if owner.IsUser() {
		query = `SELECT ` + cartColumns + ` FROM carts WHERE user_id = $1`
		key = owner.UserID
	} else {
		query = `SELECT ` + cartColumns + ` FROM carts WHERE session_key = $1`
		key = owner.SessionKey
	}

	var c Cart
	err := r.db.Conn(ctx).QueryRow(ctx, query, key).Scan(&c.ID, &c.UserID, &c.SessionKey, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCartNotFound
		}
		return nil, fmt.Errorf("repository: failed to select cart: %w", err)
	}

	c.Items = make([]Item, 0)
	return &c, nil
}

const itemQuery = `
	SELECT ci.id, ci.cart_id, ci.product_id, ci.variant_id, ci.quantity,
		p.name, COALESCE(v.name, ''),
		COALESCE(v.price, p.price),
		COALESCE(v.stock_quantity, p.stock_quantity),
		p.is_active AND COALESCE(v.is_active, TRUE),
		ci.created_at, ci.updated_at
	FROM cart_items ci
	JOIN products p ON p.id = ci.product_id
	LEFT JOIN product_variants v ON v.id = ci.variant_id`

func scanItem(row pgx.Row, i *Item) error {
	return row.Scan(
		&i.ID,
		&i.CartID,
		&i.ProductID,
		&i.VariantID,
		&i.Quantity,
		&i.ProductName,
		&i.VariantName,
		&i.UnitPrice,
		&i.Stock,
		&i.IsActive,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
}

func (r *postgresRepository) ListItems(ctx context.Context, cartID uuid.UUID) ([]Item, error) {
	rows, err := r.db.Conn(ctx).Query(ctx, itemQuery+` WHERE ci.cart_id = $1 ORDER BY ci.created_at, ci.id`, cartID)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query cart items: %w", err)
	}
	defer rows.Close()

	items := make([]Item, 0)
	for rows.Next() {
		var i Item
		if err := scanItem(rows, &i); err != nil {
			return nil, fmt.Errorf("repository: failed to scan cart item: %w", err)
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating cart items: %w", err)
	}

	return items, nil
}

func (r *postgresRepository) GetItem(ctx context.Context, cartID, itemID uuid.UUID) (*Item, error) {
	var i Item
	err := scanItem(r.db.Conn(ctx).QueryRow(ctx, itemQuery+` WHERE ci.cart_id = $1 AND ci.id = $2`, cartID, itemID), &i)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrItemNotFound
		}
		return nil, fmt.Errorf("repository: failed to select cart item %s: %w", itemID, err)
	}
	return &i, nil
}

func (r *postgresRepository) AddQuantity(ctx context.Context, cartID uuid.UUID, ref catalog.StockRef, quantity int) (uuid.UUID, int, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return uuid.Nil, 0, fmt.Errorf("repository: failed to generate cart item ID: %w", err)
	}

	query := `
		INSERT INTO cart_items (id, cart_id, product_id, variant_id, quantity, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		ON CONFLICT (cart_id, product_id, (COALESCE(variant_id, '00000000-0000-0000-0000-000000000000'::uuid)))
		DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity, updated_at = NOW()
		RETURNING id, quantity
	`
	var lineID uuid.UUID
	var total int
	err = r.db.Conn(ctx).QueryRow(ctx, query, id, cartID, ref.ProductID, ref.VariantPtr(), quantity).Scan(&lineID, &total)
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return uuid.Nil, 0, catalog.ErrProductNotFound
		}
		return uuid.Nil, 0, fmt.Errorf("repository: failed to upsert cart item: %w", err)
	}

	return lineID, total, nil
}

func (r *postgresRepository) SetQuantity(ctx context.Context, cartID, itemID uuid.UUID, quantity int) error {
	query := `UPDATE cart_items SET quantity = $1, updated_at = NOW() WHERE cart_id = $2 AND id = $3`
	tag, err := r.db.Conn(ctx).Exec(ctx, query, quantity, cartID, itemID)
	if err != nil {
		return fmt.Errorf("repository: failed to update cart item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrItemNotFound
	}
	return nil
}

func (r *postgresRepository) RemoveLine(ctx context.Context, cartID uuid.UUID, ref catalog.StockRef) error {
	query := `
		DELETE FROM cart_items
		WHERE cart_id = $1 AND product_id = $2 AND variant_id IS NOT DISTINCT FROM $3`
	tag, err := r.db.Conn(ctx).Exec(ctx, query, cartID, ref.ProductID, ref.VariantPtr())
	if err != nil {
		return fmt.Errorf("repository: failed to delete cart item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrItemNotFound
	}
	return nil
}

func (r *postgresRepository) Clear(ctx context.Context, cartID uuid.UUID) error {
	if _, err := r.db.Conn(ctx).Exec(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID); err != nil {
		return fmt.Errorf("repository: failed to clear cart: %w", err)
	}
	return nil
}

const wishlistQuery = `
	SELECT w.id, w.product_id, p.name, p.slug, p.price, p.stock_quantity > 0, p.is_active, w.created_at
	FROM wishlist_items w
	JOIN products p ON p.id = w.product_id`

func scanWishlistItem(row pgx.Row, w *WishlistItem) error {
	return row.Scan(&w.ID, &w.ProductID, &w.ProductName, &w.ProductSlug, &w.Price, &w.InStock, &w.IsActive, &w.CreatedAt)
}

func (r *postgresRepository) ListWishlist(ctx context.Context, userID uuid.UUID) ([]WishlistItem, error) {
	rows, err := r.db.Conn(ctx).Query(ctx, wishlistQuery+` WHERE w.user_id = $1 ORDER BY w.created_at DESC, w.id`, userID)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query wishlist: %w", err)
	}
	defer rows.Close()

	items := make([]WishlistItem, 0)
	for rows.Next() {
		var w WishlistItem
		if err := scanWishlistItem(rows, &w); err != nil {
			return nil, fmt.Errorf("repository: failed to scan wishlist item: %w", err)
		}
		items = append(items, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating wishlist: %w", err)
	}

	return items, nil
}

func (r *postgresRepository) AddToWishlist(ctx context.Context, userID, productID uuid.UUID) (*WishlistItem, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return nil, fmt.Errorf("repository: failed to generate wishlist item ID: %w", err)
	}

	query := `INSERT INTO wishlist_items (id, user_id, product_id, created_at) VALUES ($1, $2, $3, NOW())`
	if _, err := r.db.Conn(ctx).Exec(ctx, query, id, userID, productID); err != nil {
		switch {
		case db.IsUniqueViolation(err, "wishlist_items_user_product_key"):
			return nil, ErrAlreadyWishlisted
		case db.IsForeignKeyViolation(err):
			return nil, catalog.ErrProductNotFound
		}
		return nil, fmt.Errorf("repository: failed to insert wishlist item: %w", err)
	}

	var w WishlistItem
	if err := scanWishlistItem(r.db.Conn(ctx).QueryRow(ctx, wishlistQuery+` WHERE w.id = $1`, id), &w); err != nil {
		return nil, fmt.Errorf("repository: failed to select wishlist item %s: %w", id, err)
	}
	return &w, nil
}

func (r *postgresRepository) RemoveFromWishlist(ctx context.Context, userID, productID uuid.UUID) error {
	tag, err := r.db.Conn(ctx).Exec(ctx, `DELETE FROM wishlist_items WHERE user_id = $1 AND product_id = $2`, userID, productID)
	if err != nil {
		return fmt.Errorf("repository: failed to delete wishlist item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrWishlistItemNotFound
	}
	return nil
}
