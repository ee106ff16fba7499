package store_test

import (
	"context"
	"testing"

	"github.com/fameuxarte/fameuxarte-api/models"
	"github.com/fameuxarte/fameuxarte-api/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCarts(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	carts := store.NewCarts(db)

	require.NoError(t, db.Create(&[]models.Artwork{
		{ID: "a1", Title: "Dusk", Price: decimal.RequireFromString("150.00")},
		{ID: "a2", Title: "Dawn", Price: decimal.RequireFromString("99.50")},
	}).Error)

	first, err := carts.Add(ctx, "user-1", "a1", 1)
	require.NoError(t, err)
	assert.Equal(t, "Dusk", first.Artwork.Title)

	again, err := carts.Add(ctx, "user-1", "a1", 2)
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, 3, again.Quantity)

	_, err = carts.Add(ctx, "user-1", "a2", 1)
	require.NoError(t, err)
	_, err = carts.Add(ctx, "user-2", "a2", 1)
	require.NoError(t, err)

	lines, err := carts.List(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.True(t, decimal.RequireFromString("150").Equal(lines[0].Artwork.Price))

	updated, err := carts.SetQuantity(ctx, "user-1", first.ID, 5)
	require.NoError(t, err)
	assert.Equal(t, 5, updated.Quantity)

	_, err = carts.SetQuantity(ctx, "user-2", first.ID, 5)
	assert.ErrorIs(t, err, store.ErrCartLineNotFound, "other users cannot touch the line")

	require.NoError(t, carts.Remove(ctx, "user-1", first.ID))
	assert.ErrorIs(t, carts.Remove(ctx, "user-1", first.ID), store.ErrCartLineNotFound)

	lines, err = carts.List(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, lines, 1)
}

func TestCatalog(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	catalog := store.NewCatalog(db)

	require.NoError(t, db.Create(&models.Artwork{ID: "a1", Title: "Dusk", Price: decimal.NewFromInt(10)}).Error)

	found, err := catalog.FindMany(ctx, []string{"a1", "a1", "missing"})
	require.NoError(t, err)
	assert.Len(t, found, 1)
	assert.Contains(t, found, "a1")

	_, err = catalog.Find(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrArtworkNotFound)
}
