package controllers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/fameuxarte/fameuxarte-api/initializers"
	"github.com/fameuxarte/fameuxarte-api/middlewares"
	"github.com/fameuxarte/fameuxarte-api/store"
	"github.com/gin-gonic/gin"
)

type cartItemInput struct {
	ArtworkID string `json:"artworkId" binding:"required"`
	Quantity  int    `json:"quantity" binding:"omitempty,min=1,max=100"`
}

type cartQuantityInput struct {
	Quantity int `json:"quantity" binding:"required,min=1,max=100"`
}

func GetCart(ctx *gin.Context) {
	lines, err := store.NewCarts(initializers.DB).List(ctx.Request.Context(), middlewares.UserID(ctx))
	if err != nil {
		slog.Error("Failed to fetch cart", "error", err)
		sendErrorResponse(ctx, http.StatusInternalServerError, msgInternalServerError)
		return
	}

	sendJSONResponse(ctx, http.StatusOK, gin.H{"items": lines})
}

func AddCartItem(ctx *gin.Context) {
	var input cartItemInput
	if err := ctx.ShouldBindJSON(&input); err != nil {
		sendErrorResponse(ctx, http.StatusBadRequest, msgInvalidInput)
		return
	}
	if input.Quantity == 0 {
		input.Quantity = 1
	}

	if _, err := store.NewCatalog(initializers.DB).Find(ctx.Request.Context(), input.ArtworkID); err != nil {
		if errors.Is(err, store.ErrArtworkNotFound) {
			sendErrorResponse(ctx, http.StatusNotFound, msgArtworkNotFound)
			return
		}
		slog.Error("Failed to look up artwork", "artworkId", input.ArtworkID, "error", err)
		sendErrorResponse(ctx, http.StatusInternalServerError, msgInternalServerError)
		return
	}

	line, err := store.NewCarts(initializers.DB).Add(ctx.Request.Context(), middlewares.UserID(ctx), input.ArtworkID, input.Quantity)
	if err != nil {
		slog.Error("Failed to add cart item", "artworkId", input.ArtworkID, "error", err)
		sendErrorResponse(ctx, http.StatusInternalServerError, msgInternalServerError)
		return
	}

	sendJSONResponse(ctx, http.StatusCreated, gin.H{
		"message": line.Artwork.Title + " added to cart",
		"item":    line,
	})
}

func UpdateCartItem(ctx *gin.Context) {
	var input cartQuantityInput
	if err := ctx.ShouldBindJSON(&input); err != nil {
		sendErrorResponse(ctx, http.StatusBadRequest, msgInvalidInput)
		return
	}

	line, err := store.NewCarts(initializers.DB).SetQuantity(ctx.Request.Context(), middlewares.UserID(ctx), ctx.Param("lineId"), input.Quantity)
	if errors.Is(err, store.ErrCartLineNotFound) {
		sendErrorResponse(ctx, http.StatusNotFound, msgCartLineNotFound)
		return
	}
	if err != nil {
		slog.Error("Failed to update cart item", "lineId", ctx.Param("lineId"), "error", err)
		sendErrorResponse(ctx, http.StatusInternalServerError, msgInternalServerError)
		return
	}

	sendJSONResponse(ctx, http.StatusOK, gin.H{"item": line})
}

func DeleteCartItem(ctx *gin.Context) {
	err := store.NewCarts(initializers.DB).Remove(ctx.Request.Context(), middlewares.UserID(ctx), ctx.Param("lineId"))
	if errors.Is(err, store.ErrCartLineNotFound) {
		sendErrorResponse(ctx, http.StatusNotFound, msgCartLineNotFound)
		return
	}
	if err != nil {
		slog.Error("Failed to remove cart item", "lineId", ctx.Param("lineId"), "error", err)
		sendErrorResponse(ctx, http.StatusInternalServerError, msgInternalServerError)
		return
	}

	sendJSONResponse(ctx, http.StatusOK, gin.H{"message": "Item removed from cart"})
}
