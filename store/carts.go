package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/fameuxarte/fameuxarte-api/models"
	"github.com/samber/lo"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrArtworkNotFound  = errors.New("artwork not found")
	ErrCartLineNotFound = errors.New("cart line not found")
)

type Catalog struct {
	db *gorm.DB
}

func NewCatalog(db *gorm.DB) *Catalog {
	return &Catalog{db: db}
}

func (c *Catalog) Find(ctx context.Context, id string) (*models.Artwork, error) {
	var artwork models.Artwork
	err := c.db.WithContext(ctx).Where("id = ?", id).First(&artwork).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrArtworkNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find artwork: %w", err)
	}
	return &artwork, nil
}

// FindMany returns the artworks that exist among ids, keyed by id.
func (c *Catalog) FindMany(ctx context.Context, ids []string) (map[string]models.Artwork, error) {
	var artworks []models.Artwork
	err := c.db.WithContext(ctx).Where("id IN ?", lo.Uniq(ids)).Find(&artworks).Error
	if err != nil {
		return nil, fmt.Errorf("find artworks: %w", err)
	}
	return lo.KeyBy(artworks, func(a models.Artwork) string { return a.ID }), nil
}

type Carts struct {
	db *gorm.DB
}

func NewCarts(db *gorm.DB) *Carts {
	return &Carts{db: db}
}

func (c *Carts) List(ctx context.Context, userID string) ([]models.CartItem, error) {
	var lines []models.CartItem
	err := c.db.WithContext(ctx).
		Preload("Artwork").
		Where("user_id = ?", userID).
		Order("created_at asc").
		Find(&lines).Error
	if err != nil {
		return nil, fmt.Errorf("list cart: %w", err)
	}
	return lines, nil
}

// Add puts an artwork in the cart or bumps the quantity of the existing
// line for it.
func (c *Carts) Add(ctx context.Context, userID, artworkID string, quantity int) (*models.CartItem, error) {
	line := models.CartItem{UserID: userID, ArtworkID: artworkID, Quantity: quantity}

	err := c.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "artwork_id"}},
			DoUpdates: clause.Assignments(map[string]any{"quantity": gorm.Expr("cart_items.quantity + ?", quantity)}),
		}).
		Create(&line).Error
	if err != nil {
		return nil, fmt.Errorf("add cart line: %w", err)
	}

	return c.find(ctx, userID, "artwork_id = ?", artworkID)
}

func (c *Carts) SetQuantity(ctx context.Context, userID, lineID string, quantity int) (*models.CartItem, error) {
	res := c.db.WithContext(ctx).
		Model(&models.CartItem{}).
		Where("id = ? AND user_id = ?", lineID, userID).
		Update("quantity", quantity)
	if res.Error != nil {
		return nil, fmt.Errorf("update cart line: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrCartLineNotFound
	}
	return c.find(ctx, userID, "id = ?", lineID)
}

func (c *Carts) Remove(ctx context.Context, userID, lineID string) error {
	res := c.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", lineID, userID).
		Delete(&models.CartItem{})
	if res.Error != nil {
		return fmt.Errorf("remove cart line: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrCartLineNotFound
	}
	return nil
}

func (c *Carts) find(ctx context.Context, userID, query string, arg string) (*models.CartItem, error) {
	var line models.CartItem
	err := c.db.WithContext(ctx).
		Preload("Artwork").
		Where("user_id = ?", userID).
		Where(query, arg).
		First(&line).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCartLineNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find cart line: %w", err)
	}
	return &line, nil
}
