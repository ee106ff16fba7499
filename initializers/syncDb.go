package initializers

import (
	"fmt"
	"log/slog"

	"github.com/fameuxarte/fameuxarte-api/models"
)

func SyncDatabase() error {
	err := DB.AutoMigrate(&models.Artwork{}, &models.CartItem{}, &models.Order{}, &models.OrderItem{})
	if err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	slog.Info("Database synced successfully.")
	return nil
}
