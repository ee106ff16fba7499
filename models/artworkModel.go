package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Artwork is a catalog entry. Only the fields checkout relies on are
// modelled here.
type Artwork struct {
	ID        string          `json:"id" gorm:"type:varchar(64);primaryKey"`
	Title     string          `json:"title" gorm:"not null"`
	Price     decimal.Decimal `json:"price" gorm:"type:numeric(12,2);not null"`
	ImageURL  string          `json:"imageUrl,omitempty"`
	Tags      datatypes.JSON  `json:"tags,omitempty"`
	CreatedAt time.Time       `json:"-"`
	UpdatedAt time.Time       `json:"-"`
}
