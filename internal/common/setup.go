package common

import (
	"context"
	"log"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/stanleyjzheng/sudopay/internal/assets"
	"github.com/stanleyjzheng/sudopay/internal/blastscan"
	"github.com/stanleyjzheng/sudopay/internal/database"
	"github.com/stanleyjzheng/sudopay/internal/models"
	"github.com/stanleyjzheng/sudopay/internal/notify"
)

// init loads environment variables from .env file if it exists
func init() {
	// Environment variables can also be set via shell export, docker, etc.
	if err := godotenv.Load(); err != nil {
		log.Printf("Note: No .env file found or unable to load it: %v\n", err)
	}
}

type Services struct {
	DbService  *database.Service
	Registry   *assets.Registry
	FeedClient *blastscan.Client
}

func InitializeLogger() (*zap.Logger, func()) {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	zap.ReplaceGlobals(logger)

	cleanup := func() {
		if err := logger.Sync(); err != nil {
			if !isIgnorableSyncError(err) {
				log.Printf("Failed to sync logger: %v\n", err)
			}
		}
	}

	return logger, cleanup
}

// InitializeServices wires up the database, asset registry and feed client.
func InitializeServices(ctx context.Context, cfg *models.Config) (*Services, error) {
	dbService, err := database.NewService(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	registry, err := assets.Load(cfg.Listener.AssetsFile)
	if err != nil {
		dbService.Close()
		return nil, err
	}
	zap.L().Info("Asset registry loaded",
		zap.String("custodial_address", registry.CustodialAddress()))

	return &Services{
		DbService:  dbService,
		Registry:   registry,
		FeedClient: blastscan.NewClient(cfg.Feed, registry),
	}, nil
}

// InitializeDatabaseOnly initializes just the database service.
// Useful for read-only operations like querying balances.
func InitializeDatabaseOnly(ctx context.Context, cfg *models.Config) (*database.Service, error) {
	return database.NewService(ctx, cfg.Database)
}

// InitializeNotifier builds the telegram notifier, falling back to a no-op
// when no bot token is configured.
func InitializeNotifier(cfg models.TelegramConfig) notify.Notifier {
	if cfg.Token == "" {
		zap.L().Warn("No telegram bot token configured, deposit notifications disabled")
		return notify.Noop{}
	}

	notifier, err := notify.NewTelegramNotifier(cfg.Token)
	if err != nil {
		zap.L().Warn("Failed to initialize telegram notifier, deposit notifications disabled",
			zap.Error(err))
		return notify.Noop{}
	}
	return notifier
}

func (cs *Services) Close() {
	if cs.DbService != nil {
		cs.DbService.Close()
	}
}

func isIgnorableSyncError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "sync /dev/stderr: inappropriate ioctl for device") ||
		strings.Contains(msg, "sync /dev/stdout: inappropriate ioctl for device")
}
