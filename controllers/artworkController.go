package controllers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/fameuxarte/fameuxarte-api/initializers"
	"github.com/fameuxarte/fameuxarte-api/models"
	"github.com/fameuxarte/fameuxarte-api/store"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm/clause"
)

type artworkInput struct {
	ID       string          `json:"id"`
	Title    string          `json:"title" binding:"required"`
	Price    decimal.Decimal `json:"price"`
	ImageURL string          `json:"imageUrl"`
	Tags     datatypes.JSON  `json:"tags"`
}

// Artwork handlers. The catalog itself is managed elsewhere; these exist
// so prices can be read and kept in sync for checkout.
func GetArtworks(ctx *gin.Context) {
	var artworks []models.Artwork
	if err := initializers.DB.WithContext(ctx.Request.Context()).Order("created_at desc").Find(&artworks).Error; err != nil {
		slog.Error("Failed to fetch artworks", "error", err)
		sendErrorResponse(ctx, http.StatusInternalServerError, msgInternalServerError)
		return
	}

	sendJSONResponse(ctx, http.StatusOK, gin.H{"artworks": artworks})
}

func GetArtwork(ctx *gin.Context) {
	artwork, err := store.NewCatalog(initializers.DB).Find(ctx.Request.Context(), ctx.Param("id"))
	if errors.Is(err, store.ErrArtworkNotFound) {
		sendErrorResponse(ctx, http.StatusNotFound, msgArtworkNotFound)
		return
	}
	if err != nil {
		slog.Error("Failed to fetch artwork", "artworkId", ctx.Param("id"), "error", err)
		sendErrorResponse(ctx, http.StatusInternalServerError, msgInternalServerError)
		return
	}

	sendJSONResponse(ctx, http.StatusOK, gin.H{"artwork": artwork})
}

// UpsertArtwork creates an artwork or replaces the title and price of an
// existing one. Orders already placed keep their purchase price.
func UpsertArtwork(ctx *gin.Context) {
	var input artworkInput
	if err := ctx.ShouldBindJSON(&input); err != nil {
		sendErrorResponse(ctx, http.StatusBadRequest, msgInvalidInput)
		return
	}
	if !input.Price.IsPositive() {
		sendErrorDetails(ctx, http.StatusBadRequest, msgInvalidInput, map[string]any{"fields": []string{"price"}})
		return
	}

	artwork := models.Artwork{
		ID:       strings.TrimSpace(input.ID),
		Title:    strings.TrimSpace(input.Title),
		Price:    input.Price.Round(2),
		ImageURL: input.ImageURL,
		Tags:     input.Tags,
	}
	if artwork.ID == "" {
		artwork.ID = uuid.NewString()
	}

	err := initializers.DB.WithContext(ctx.Request.Context()).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"title", "price", "image_url", "tags", "updated_at"}),
		}).
		Create(&artwork).Error
	if err != nil {
		slog.Error("Failed to save artwork", "artworkId", artwork.ID, "error", err)
		sendErrorResponse(ctx, http.StatusInternalServerError, msgInternalServerError)
		return
	}

	sendJSONResponse(ctx, http.StatusOK, gin.H{"artwork": artwork})
}
