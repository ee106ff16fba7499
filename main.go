package main

import (
	"log/slog"
	"os"

	"github.com/fameuxarte/fameuxarte-api/initializers"
	"github.com/fameuxarte/fameuxarte-api/routes"
)

func init() {
	initializers.LoadEnv()
	initializers.InitLogger()

	if err := initializers.ConnectToDB(); err != nil {
		slog.Error("Database connection failed", "error", err)
		os.Exit(1)
	}
	if err := initializers.SyncDatabase(); err != nil {
		slog.Error("Database sync failed", "error", err)
		os.Exit(1)
	}
	if err := initializers.ConnectToRedis(); err != nil {
		slog.Error("Redis connection failed", "error", err)
		os.Exit(1)
	}
}

func main() {
	server := routes.NewServer(slog.Default())
	if err := server.Run(); err != nil {
		slog.Error("Server stopped", "error", err)
		os.Exit(1)
	}
}
