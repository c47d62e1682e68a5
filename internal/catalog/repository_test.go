package catalog_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vasiliy-maslov/ecommerce-microservices/shop-service/internal/apperror"
	"github.com/vasiliy-maslov/ecommerce-microservices/shop-service/internal/catalog"
	"github.com/vasiliy-maslov/ecommerce-microservices/shop-service/internal/db/dbtest"
)

func seedProduct(t *testing.T, repo catalog.Repository, sku string, stock int) *catalog.Product {
	t.Helper()
	p := &catalog.Product{
		Name:              "Mug " + sku,
		Slug:              "mug-" + strings.ToLower(sku),
		SKU:               sku,
		Price:             decimal.RequireFromString("12.50"),
		StockQuantity:     stock,
		LowStockThreshold: 2,
		IsActive:          true,
	}
	require.NoError(t, repo.CreateProduct(context.Background(), p))
	return p
}

func TestPostgresRepository_ProductAndVariants(t *testing.T) {
	pg := dbtest.Open(t, "products", "categories")
	repo := catalog.NewRepository(pg)
	ctx := context.Background()

	p := seedProduct(t, repo, "MUG-1", 5)
	v := &catalog.Variant{ProductID: p.ID, Name: "Large", SKU: "MUG-1-L", Price: decimal.RequireFromString("15.00"), StockQuantity: 1, IsActive: true}
	require.NoError(t, repo.CreateVariant(ctx, v))

	got, err := repo.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, got.Variants, 1)
	assert.Equal(t, "Large", got.Variants[0].Name)

	err = repo.CreateProduct(ctx, &catalog.Product{Name: "Other", Slug: "other", SKU: "MUG-1", Price: decimal.NewFromInt(1), IsActive: true})
	assert.ErrorIs(t, err, catalog.ErrDuplicateSKU)

	_, err = repo.GetProduct(ctx, uuid.Must(uuid.NewV4()))
	assert.ErrorIs(t, err, catalog.ErrProductNotFound)

	err = repo.SetStock(ctx, catalog.RefFor(p.ID, &v.ID), -1)
	assert.ErrorIs(t, err, catalog.ErrNegativeValue)
	assert.ErrorIs(t, err, apperror.ErrValidation)

	err = repo.CreateProduct(ctx, &catalog.Product{Name: "Broken", Slug: "broken", SKU: "BROKEN", Price: decimal.NewFromInt(-1), IsActive: true})
	assert.ErrorIs(t, err, catalog.ErrNegativeValue)
}

func TestPostgresRepository_DecrementStock(t *testing.T) {
	pg := dbtest.Open(t, "products", "categories")
	repo := catalog.NewRepository(pg)
	ctx := context.Background()

	p := seedProduct(t, repo, "MUG-2", 3)
	ref := catalog.RefFor(p.ID, nil)

	require.NoError(t, repo.DecrementStock(ctx, ref, 2))

	err := repo.DecrementStock(ctx, ref, 2)
	var stockErr *apperror.StockError
	require.True(t, errors.As(err, &stockErr))
	assert.Equal(t, 2, stockErr.Requested)
	assert.Equal(t, 1, stockErr.Available)
	assert.Equal(t, "Mug MUG-2", stockErr.Name)

	require.NoError(t, repo.IncrementStock(ctx, ref, 4))
	level, err := repo.GetStockLevel(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, 5, level.Stock)
}

func TestPostgresRepository_LockStockInsideTx(t *testing.T) {
	pg := dbtest.Open(t, "products", "categories")
	repo := catalog.NewRepository(pg)
	ctx := context.Background()

	a := seedProduct(t, repo, "MUG-3", 4)
	b := seedProduct(t, repo, "MUG-4", 0)
	refs := []catalog.StockRef{catalog.RefFor(b.ID, nil), catalog.RefFor(a.ID, nil)}

	err := pg.WithinTx(ctx, func(ctx context.Context) error {
		levels, err := repo.LockStock(ctx, refs)
		if err != nil {
			return err
		}
		assert.Equal(t, 4, levels[refs[1]].Stock)
		assert.Equal(t, 0, levels[refs[0]].Stock)
		return repo.DecrementStock(ctx, refs[0], 1)
	})
	assert.True(t, errors.Is(err, apperror.ErrInsufficientStock))

	_, err = repo.LockStock(ctx, []catalog.StockRef{catalog.RefFor(uuid.Must(uuid.NewV4()), nil)})
	assert.ErrorIs(t, err, catalog.ErrProductNotFound)
}
