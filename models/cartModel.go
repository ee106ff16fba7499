package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CartItem is one line of a user's cart. The JSON form matches what the
// checkout builder reads: the line id plus the embedded artwork.
type CartItem struct {
	ID        string    `json:"id" gorm:"type:varchar(36);primaryKey"`
	UserID    string    `json:"-" gorm:"type:varchar(64);not null;uniqueIndex:idx_cart_user_artwork"`
	ArtworkID string    `json:"artworkId" gorm:"type:varchar(64);not null;uniqueIndex:idx_cart_user_artwork"`
	Quantity  int       `json:"quantity" gorm:"not null"`
	Artwork   Artwork   `json:"artwork" gorm:"foreignKey:ArtworkID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

func (c *CartItem) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}
