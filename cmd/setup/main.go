package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/stanleyjzheng/sudopay/internal/common"
	"github.com/stanleyjzheng/sudopay/internal/config"
)

func main() {
	ctx := context.Background()

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load config", zap.Error(err))
	}

	zap.L().Info("Setting up SQLite database", zap.String("path", cfg.Database.Path))

	// InitializeServices creates the schema and validates assets.yaml.
	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	common.PrintHeader("SETUP COMPLETE", common.DefaultWidth)
	fmt.Printf("Database:          %s\n", cfg.Database.Path)
	fmt.Printf("Custodial address: %s\n", services.Registry.CustodialAddress())
	fmt.Printf("Feed:              %s\n", cfg.Feed.BaseURL)
	common.PrintSeparator("=", common.DefaultWidth)
	fmt.Println()

	zap.L().Info("Initialization complete")
}
