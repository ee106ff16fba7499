package initializers

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis stays nil when REDIS_URL is unset; callers skip caching then.
var Redis *redis.Client

func ConnectToRedis() error {
	url := strings.TrimSpace(os.Getenv("REDIS_URL"))
	if url == "" {
		slog.Warn("REDIS_URL not set, gateway order cache and reconciliation queue disabled")
		return nil
	}

	opts, err := redis.ParseURL(url)
	if err != nil {
		return fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return fmt.Errorf("failed to connect to redis: %w", err)
	}

	Redis = client
	slog.Info("Connected to redis.")
	return nil
}
