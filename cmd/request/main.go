package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/stanleyjzheng/sudopay/internal/assets"
	"github.com/stanleyjzheng/sudopay/internal/common"
	"github.com/stanleyjzheng/sudopay/internal/config"
	"github.com/stanleyjzheng/sudopay/internal/store"
)

// Stand-in for the chat front end: declares a deposit intent so the listener
// can match the incoming transfer.
func main() {
	ctx := context.Background()

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	depositorFlag := flag.String("depositor", "", "Depositor's account address (required)")
	assetFlag := flag.String("asset", "", "Asset symbol: ETH, WETH or USDB (required)")
	amountFlag := flag.String("amount", "", "Expected deposit amount in whole units")
	fromFlag := flag.String("from", "", "Sender address the deposit will come from")
	flag.Parse()

	if *depositorFlag == "" || *assetFlag == "" {
		zap.L().Fatal("Flags --depositor and --asset are required")
	}
	if (*amountFlag == "") == (*fromFlag == "") {
		zap.L().Fatal("Exactly one of --amount or --from must be provided")
	}

	asset, err := assets.ParseAsset(*assetFlag)
	if err != nil {
		zap.L().Fatal("Invalid asset", zap.Error(err))
	}

	params := store.NewDepositRequestParams{
		DepositorPublicKey: *depositorFlag,
		Asset:              asset,
		FromAddress:        *fromFlag,
	}
	if *amountFlag != "" {
		amount, err := decimal.NewFromString(*amountFlag)
		if err != nil {
			zap.L().Fatal("Invalid amount", zap.Error(err))
		}
		params.UnitAmount = decimal.NewNullDecimal(amount)
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

	request, err := dbService.CreateDepositRequest(ctx, params)
	if err != nil {
		zap.L().Fatal("Failed to create deposit request", zap.Error(err))
	}

	common.PrintHeader("DEPOSIT REQUEST CREATED", common.DefaultWidth)
	fmt.Printf("Request ID: %s\n", request.ID)
	fmt.Printf("Depositor:  %s\n", request.DepositorPublicKey)
	fmt.Printf("Asset:      %s\n", request.Asset)
	if request.UnitAmount.Valid {
		fmt.Printf("Amount:     %s\n", request.UnitAmount.Decimal.String())
	} else {
		fmt.Printf("From:       %s\n", request.FromAddress)
	}
	fmt.Printf("Valid for three minutes from %s\n", request.CreatedAt.Format("15:04:05 MST"))
	common.PrintSeparator("=", common.DefaultWidth)
	fmt.Println()
}
