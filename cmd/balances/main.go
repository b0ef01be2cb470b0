package main

import (
	"context"
	"errors"
	"flag"
	"fmt"

	"go.uber.org/zap"

	"github.com/stanleyjzheng/sudopay/internal/assets"
	"github.com/stanleyjzheng/sudopay/internal/common"
	"github.com/stanleyjzheng/sudopay/internal/config"
	"github.com/stanleyjzheng/sudopay/internal/store"
)

func main() {
	ctx := context.Background()

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	accountFlag := flag.String("account", "", "Account address to show the balance for (required)")
	flag.Parse()

	if *accountFlag == "" {
		zap.L().Fatal("Flag --account is required")
	}

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load config", zap.Error(err))
	}

	dbService, err := common.InitializeDatabaseOnly(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize database", zap.Error(err))
	}
	defer dbService.Close()

	registry, err := assets.Load(cfg.Listener.AssetsFile)
	if err != nil {
		zap.L().Fatal("Failed to load asset registry", zap.Error(err))
	}

	balance, err := dbService.GetBalance(ctx, *accountFlag)
	if errors.Is(err, store.ErrNotFound) {
		fmt.Printf("No balance found for %s\n", *accountFlag)
		return
	}
	if err != nil {
		zap.L().Fatal("Failed to get balance", zap.Error(err))
	}

	// Raw smallest-unit balances converted to whole units for display. The
	// eth bucket holds ETH and WETH combined.
	ethUnits := registry.UnitAmount(assets.Eth, balance.EthBalance)
	usdbUnits := registry.UnitAmount(assets.Usdb, balance.UsdbBalance)
	yieldUnits := registry.UnitAmount(assets.Eth, balance.AccruedYieldBalance)

	common.PrintHeader("ACCOUNT BALANCE", common.DefaultWidth)
	fmt.Printf("Account:       %s\n", balance.SeedPhrasePublicKey)
	fmt.Printf("ETH + WETH:    %s\n", ethUnits.String())
	fmt.Printf("USDB:          %s\n", usdbUnits.String())
	fmt.Printf("Accrued yield: %s\n", yieldUnits.String())
	fmt.Printf("Last updated:  %s\n", balance.UpdatedAt.Format("2006-01-02 15:04:05 MST"))
	common.PrintSeparator("=", common.DefaultWidth)
	fmt.Println()
}
