package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/vasiliy-maslov/ecommerce-microservices/shop-service/internal/apperror"
	"github.com/vasiliy-maslov/ecommerce-microservices/shop-service/internal/db"
)

var (
	ErrProductNotFound  = fmt.Errorf("product %w", apperror.ErrNotFound)
	ErrVariantNotFound  = fmt.Errorf("product variant %w", apperror.ErrNotFound)
	ErrCategoryNotFound = fmt.Errorf("category %w", apperror.ErrNotFound)
	ErrDuplicateSKU     = fmt.Errorf("SKU already exists: %w", apperror.ErrConflict)
	ErrDuplicateSlug    = fmt.Errorf("slug already exists: %w", apperror.ErrConflict)
	ErrDuplicateName    = fmt.Errorf("category name already exists: %w", apperror.ErrConflict)
	ErrNegativeValue    = fmt.Errorf("price, stock and threshold cannot be negative: %w", apperror.ErrValidation)
)

type Repository interface {
	CreateCategory(ctx context.Context, c *Category) error
	ListCategories(ctx context.Context) ([]Category, error)

	CreateProduct(ctx context.Context, p *Product) error
	GetProduct(ctx context.Context, id uuid.UUID) (*Product, error)
	ListProducts(ctx context.Context, filter ProductFilter) ([]Product, error)
	CreateVariant(ctx context.Context, v *Variant) error
	SetStock(ctx context.Context, ref StockRef, quantity int) error

	GetStockLevel(ctx context.Context, ref StockRef) (StockLevel, error)
	LockStock(ctx context.Context, refs []StockRef) (map[StockRef]StockLevel, error)
	DecrementStock(ctx context.Context, ref StockRef, quantity int) error
	IncrementStock(ctx context.Context, ref StockRef, quantity int) error
}

type postgresRepository struct {
	db *db.Postgres
}

func NewRepository(db *db.Postgres) Repository {
	return &postgresRepository{db: db}
}

func newID() (uuid.UUID, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return uuid.Nil, fmt.Errorf("repository: failed to generate ID: %w", err)
	}
	return id, nil
}

func (r *postgresRepository) CreateCategory(ctx context.Context, c *Category) error {
	id, err := newID()
	if err != nil {
		return err
	}
	now := time.Now().UTC()

	query := `
		INSERT INTO categories (id, name, slug, description, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = r.db.Conn(ctx).Exec(ctx, query, id, c.Name, c.Slug, c.Description, c.IsActive, now, now)
	if err != nil {
		switch {
		case db.IsUniqueViolation(err, "categories_name_key"):
			return ErrDuplicateName
		case db.IsUniqueViolation(err, "categories_slug_key"):
			return ErrDuplicateSlug
		}
		return fmt.Errorf("repository: failed to insert category: %w", err)
	}

	c.ID = id
	c.CreatedAt = now
	c.UpdatedAt = now
	return nil
}

func (r *postgresRepository) ListCategories(ctx context.Context) ([]Category, error) {
	query := `
		SELECT id, name, slug, description, is_active, created_at, updated_at
		FROM categories
		WHERE is_active
		ORDER BY name
	`
	rows, err := r.db.Conn(ctx).Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query categories: %w", err)
	}
	defer rows.Close()

	categories := make([]Category, 0)
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Slug, &c.Description, &c.IsActive, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("repository: failed to scan category: %w", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating categories: %w", err)
	}

	return categories, nil
}

func (r *postgresRepository) CreateProduct(ctx context.Context, p *Product) error {
	id, err := newID()
	if err != nil {
		return err
	}
	now := time.Now().UTC()

	query := `
		INSERT INTO products (id, category_id, name, slug, sku, description, price, stock_quantity,
			low_stock_threshold, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err = r.db.Conn(ctx).Exec(ctx, query,
		id,
		p.CategoryID,
		p.Name,
		p.Slug,
		p.SKU,
		p.Description,
		p.Price,
		p.StockQuantity,
		p.LowStockThreshold,
		p.IsActive,
		now,
		now,
	)
	if err != nil {
		switch {
		case db.IsUniqueViolation(err, "products_sku_key"):
			return ErrDuplicateSKU
		case db.IsUniqueViolation(err, "products_slug_key"):
			return ErrDuplicateSlug
		case db.IsForeignKeyViolation(err):
			return ErrCategoryNotFound
		case db.IsCheckViolation(err):
			return ErrNegativeValue
		}
		return fmt.Errorf("repository: failed to insert product: %w", err)
	}

	p.ID = id
	p.CreatedAt = now
	p.UpdatedAt = now
	p.Variants = make([]Variant, 0)
	return nil
}

const productColumns = `id, category_id, name, slug, sku, description, price, stock_quantity,
	low_stock_threshold, is_active, created_at, updated_at`

func scanProduct(row pgx.Row, p *Product) error {
	return row.Scan(
		&p.ID,
		&p.CategoryID,
		&p.Name,
		&p.Slug,
		&p.SKU,
		&p.Description,
		&p.Price,
		&p.StockQuantity,
		&p.LowStockThreshold,
		&p.IsActive,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
}

func (r *postgresRepository) GetProduct(ctx context.Context, id uuid.UUID) (*Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	var p Product
	if err := scanProduct(r.db.Conn(ctx).QueryRow(ctx, query, id), &p); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("repository: failed to select product by id %s: %w", id, err)
	}

	variants, err := r.listVariants(ctx, []uuid.UUID{id})
	if err != nil {
		return nil, err
	}
	p.Variants = variants[id]
	if p.Variants == nil {
		p.Variants = make([]Variant, 0)
	}

	return &p, nil
}

func (r *postgresRepository) ListProducts(ctx context.Context, filter ProductFilter) ([]Product, error) {
	filter = filter.normalized()

	query := `SELECT ` + productColumns + `
		FROM products
		WHERE is_active AND ($1::uuid IS NULL OR category_id = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.Conn(ctx).Query(ctx, query, filter.CategoryID, filter.Limit, filter.Offset)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query products: %w", err)
	}
	defer rows.Close()

	products := make([]Product, 0)
	ids := make([]uuid.UUID, 0)
	for rows.Next() {
		var p Product
		if err := scanProduct(rows, &p); err != nil {
			return nil, fmt.Errorf("repository: failed to scan product: %w", err)
		}
		products = append(products, p)
		ids = append(ids, p.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating products: %w", err)
	}

	if len(ids) == 0 {
		return products, nil
	}

	variants, err := r.listVariants(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range products {
		products[i].Variants = variants[products[i].ID]
		if products[i].Variants == nil {
			products[i].Variants = make([]Variant, 0)
		}
	}

	return products, nil
}

func (r *postgresRepository) listVariants(ctx context.Context, productIDs []uuid.UUID) (map[uuid.UUID][]Variant, error) {
	query := `
		SELECT id, product_id, name, sku, price, stock_quantity, is_active, created_at, updated_at
		FROM product_variants
		WHERE product_id = ANY($1)
		ORDER BY name
	`
	rows, err := r.db.Conn(ctx).Query(ctx, query, productIDs)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query variants: %w", err)
	}
	defer rows.Close()

	byProduct := make(map[uuid.UUID][]Variant)
	for rows.Next() {
		var v Variant
		err := rows.Scan(&v.ID, &v.ProductID, &v.Name, &v.SKU, &v.Price, &v.StockQuantity, &v.IsActive, &v.CreatedAt, &v.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan variant: %w", err)
		}
		byProduct[v.ProductID] = append(byProduct[v.ProductID], v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating variants: %w", err)
	}

	return byProduct, nil
}

func (r *postgresRepository) CreateVariant(ctx context.Context, v *Variant) error {
	id, err := newID()
	if err != nil {
		return err
	}
	now := time.Now().UTC()

	query := `
		INSERT INTO product_variants (id, product_id, name, sku, price, stock_quantity, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = r.db.Conn(ctx).Exec(ctx, query, id, v.ProductID, v.Name, v.SKU, v.Price, v.StockQuantity, v.IsActive, now, now)
	if err != nil {
		switch {
		case db.IsUniqueViolation(err, "product_variants_sku_key"):
			return ErrDuplicateSKU
		case db.IsForeignKeyViolation(err):
			return ErrProductNotFound
		case db.IsCheckViolation(err):
			return ErrNegativeValue
		}
		return fmt.Errorf("repository: failed to insert variant: %w", err)
	}

	v.ID = id
	v.CreatedAt = now
	v.UpdatedAt = now
	return nil
}

func (r *postgresRepository) SetStock(ctx context.Context, ref StockRef, quantity int) error {
	var (
		query string
		args  []any
	)
	if ref.HasVariant() {
		query = `UPDATE product_variants SET stock_quantity = $1, updated_at = NOW() WHERE id = $2 AND product_id = $3`
		args = []any{quantity, ref.VariantID, ref.ProductID}
	} else {
		query = `UPDATE products SET stock_quantity = $1, updated_at = NOW() WHERE id = $2`
		args = []any{quantity, ref.ProductID}
	}

	tag, err := r.db.Conn(ctx).Exec(ctx, query, args...)
	if err != nil {
		if db.IsCheckViolation(err) {
			return ErrNegativeValue
		}
		return fmt.Errorf("repository: failed to set stock: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if ref.HasVariant() {
			return ErrVariantNotFound
		}
		return ErrProductNotFound
	}

	return nil
}

const (
	productLevelQuery = `
		SELECT id, name, price, stock_quantity, is_active
		FROM products
		WHERE id = ANY($1)
		ORDER BY id`
	variantLevelQuery = `
		SELECT v.id, v.product_id, p.name || ' - ' || v.name, v.price, v.stock_quantity, v.is_active AND p.is_active
		FROM product_variants v
		JOIN products p ON p.id = v.product_id
		WHERE v.id = ANY($1)
		ORDER BY v.id`
)

func (r *postgresRepository) GetStockLevel(ctx context.Context, ref StockRef) (StockLevel, error) {
	levels, err := r.stockLevels(ctx, []StockRef{ref}, false)
	if err != nil {
		return StockLevel{}, err
	}
	level, ok := levels[ref]
	if !ok {
		if ref.HasVariant() {
			return StockLevel{}, ErrVariantNotFound
		}
		return StockLevel{}, ErrProductNotFound
	}
	return level, nil
}

// LockStock takes row locks on every referenced product and variant, in id
// order, for the rest of the surrounding transaction. Missing rows are
// reported as not found.
func (r *postgresRepository) LockStock(ctx context.Context, refs []StockRef) (map[StockRef]StockLevel, error) {
	levels, err := r.stockLevels(ctx, refs, true)
	if err != nil {
		return nil, err
	}
	for _, ref := range refs {
		if _, ok := levels[ref]; !ok {
			if ref.HasVariant() {
				return nil, ErrVariantNotFound
			}
			return nil, ErrProductNotFound
		}
	}
	return levels, nil
}

func (r *postgresRepository) stockLevels(ctx context.Context, refs []StockRef, lock bool) (map[StockRef]StockLevel, error) {
	var productIDs, variantIDs []uuid.UUID
	for _, ref := range refs {
		if ref.HasVariant() {
			variantIDs = append(variantIDs, ref.VariantID)
		} else {
			productIDs = append(productIDs, ref.ProductID)
		}
	}
	sortIDs(productIDs)
	sortIDs(variantIDs)

	levels := make(map[StockRef]StockLevel, len(refs))
	conn := r.db.Conn(ctx)

	if len(productIDs) > 0 {
		query := productLevelQuery
		if lock {
			query += " FOR UPDATE"
		}
		rows, err := conn.Query(ctx, query, productIDs)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to query product stock: %w", err)
		}
		for rows.Next() {
			var l StockLevel
			if err := rows.Scan(&l.Ref.ProductID, &l.Name, &l.Price, &l.Stock, &l.IsActive); err != nil {
				rows.Close()
				return nil, fmt.Errorf("repository: failed to scan product stock: %w", err)
			}
			levels[l.Ref] = l
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("repository: error iterating product stock: %w", err)
		}
	}

	if len(variantIDs) > 0 {
		query := variantLevelQuery
		if lock {
			query += " FOR UPDATE OF v"
		}
		rows, err := conn.Query(ctx, query, variantIDs)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to query variant stock: %w", err)
		}
		for rows.Next() {
			var l StockLevel
			if err := rows.Scan(&l.Ref.VariantID, &l.Ref.ProductID, &l.Name, &l.Price, &l.Stock, &l.IsActive); err != nil {
				rows.Close()
				return nil, fmt.Errorf("repository: failed to scan variant stock: %w", err)
			}
			levels[l.Ref] = l
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("repository: error iterating variant stock: %w", err)
		}
	}

	return levels, nil
}

// DecrementStock subtracts quantity only while enough stock remains, so two
// concurrent checkouts can never drive a counter negative.
func (r *postgresRepository) DecrementStock(ctx context.Context, ref StockRef, quantity int) error {
	var query string
	var target uuid.UUID
	if ref.HasVariant() {
		query = `UPDATE product_variants SET stock_quantity = stock_quantity - $1, updated_at = NOW()
			WHERE id = $2 AND stock_quantity >= $1`
		target = ref.VariantID
	} else {
		query = `UPDATE products SET stock_quantity = stock_quantity - $1, updated_at = NOW()
			WHERE id = $2 AND stock_quantity >= $1`
		target = ref.ProductID
	}

	tag, err := r.db.Conn(ctx).Exec(ctx, query, quantity, target)
	if err != nil {
		return fmt.Errorf("repository: failed to decrement stock: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	level, err := r.GetStockLevel(ctx, ref)
	if err != nil {
		return err
	}
	return &apperror.StockError{
		ProductID: ref.ProductID,
		VariantID: ref.VariantPtr(),
		Name:      level.Name,
		Requested: quantity,
		Available: level.Stock,
	}
}

func (r *postgresRepository) IncrementStock(ctx context.Context, ref StockRef, quantity int) error {
	var query string
	var target uuid.UUID
	if ref.HasVariant() {
		query = `UPDATE product_variants SET stock_quantity = stock_quantity + $1, updated_at = NOW() WHERE id = $2`
		target = ref.VariantID
	} else {
		query = `UPDATE products SET stock_quantity = stock_quantity + $1, updated_at = NOW() WHERE id = $2`
		target = ref.ProductID
	}

	tag, err := r.db.Conn(ctx).Exec(ctx, query, quantity, target)
	if err != nil {
		return fmt.Errorf("repository: failed to increment stock: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if ref.HasVariant() {
			return ErrVariantNotFound
		}
		return ErrProductNotFound
	}

	return nil
}

func sortIDs(ids []uuid.UUID) {
	sort.Slice(ids, func(i, j int) bool {
		return ids[i].String() < ids[j].String()
	})
}
