package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/stanleyjzheng/sudopay/internal/assets"
	"github.com/stanleyjzheng/sudopay/internal/store"
)

func TestCreateDepositRequest_Validation(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	// Neither selector set.
	_, err := service.CreateDepositRequest(ctx, store.NewDepositRequestParams{
		DepositorPublicKey: "0xuser",
		Asset:              assets.Eth,
	})
	if err == nil {
		t.Error("Expected error when neither amount nor address is set")
	}

	// Both selectors set.
	_, err = service.CreateDepositRequest(ctx, store.NewDepositRequestParams{
		DepositorPublicKey: "0xuser",
		Asset:              assets.Eth,
		UnitAmount:         decimal.NewNullDecimal(decimal.NewFromInt(1)),
		FromAddress:        "0xsender",
	})
	if err == nil {
		t.Error("Expected error when both amount and address are set")
	}

	_, err = service.CreateDepositRequest(ctx, store.NewDepositRequestParams{
		DepositorPublicKey: "0xuser",
		Asset:              assets.Eth,
		UnitAmount:         decimal.NewNullDecimal(decimal.NewFromInt(-1)),
	})
	if err == nil {
		t.Error("Expected error for negative amount")
	}
}

func TestFindRequestsByAmount_ToleranceBounds(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	_, err := service.CreateDepositRequest(ctx, store.NewDepositRequestParams{
		DepositorPublicKey: "0xuser",
		Asset:              assets.Usdb,
		UnitAmount:         decimal.NewNullDecimal(decimal.NewFromInt(100)),
	})
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}

	window := store.RequestWindow{
		Start: time.Now().UTC().Add(-time.Minute),
		End:   time.Now().UTC().Add(time.Minute),
	}

	cases := []struct {
		depositAmount string
		wantMatch     bool
	}{
		{"100", true},
		{"100.05", true},
		{"99.91", true},
		{"101", false},
		{"99.8", false},
	}

	for _, tc := range cases {
		requests, err := service.FindRequestsByAmount(ctx,
			decimal.RequireFromString(tc.depositAmount), assets.Usdb, window)
		if err != nil {
			t.Fatalf("FindRequestsByAmount(%s) failed: %v", tc.depositAmount, err)
		}
		if got := len(requests) > 0; got != tc.wantMatch {
			t.Errorf("Deposit of %s: expected match=%v, got %d candidates",
				tc.depositAmount, tc.wantMatch, len(requests))
		}
	}
}

func TestFindRequestsByAmount_AssetIsolation(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	_, err := service.CreateDepositRequest(ctx, store.NewDepositRequestParams{
		DepositorPublicKey: "0xuser",
		Asset:              assets.Usdb,
		UnitAmount:         decimal.NewNullDecimal(decimal.NewFromInt(100)),
	})
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}

	window := store.RequestWindow{
		Start: time.Now().UTC().Add(-time.Minute),
		End:   time.Now().UTC().Add(time.Minute),
	}

	requests, err := service.FindRequestsByAmount(ctx, decimal.NewFromInt(100), assets.Weth, window)
	if err != nil {
		t.Fatalf("FindRequestsByAmount failed: %v", err)
	}
	if len(requests) != 0 {
		t.Errorf("Expected no cross-asset matches, got %d", len(requests))
	}
}

func TestFindRequestsByAddress(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	_, err := service.CreateDepositRequest(ctx, store.NewDepositRequestParams{
		DepositorPublicKey: "0xuser",
		Asset:              assets.Eth,
		FromAddress:        "0xSenderADDR",
	})
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}

	open := store.RequestWindow{
		Start: time.Now().UTC().Add(-time.Minute),
		End:   time.Now().UTC().Add(time.Minute),
	}
	requests, err := service.FindRequestsByAddress(ctx, "0xsenderaddr", assets.Eth, open)
	if err != nil {
		t.Fatalf("FindRequestsByAddress failed: %v", err)
	}
	if len(requests) != 1 {
		t.Fatalf("Expected 1 match regardless of address casing, got %d", len(requests))
	}
	if requests[0].MatchedTransactionID != "" {
		t.Errorf("Expected open request, got matched to %s", requests[0].MatchedTransactionID)
	}

	// A window that ends before the request was created excludes it.
	closed := store.RequestWindow{
		Start: time.Now().UTC().Add(-time.Hour),
		End:   time.Now().UTC().Add(-time.Minute),
	}
	requests, err = service.FindRequestsByAddress(ctx, "0xsenderaddr", assets.Eth, closed)
	if err != nil {
		t.Fatalf("FindRequestsByAddress failed: %v", err)
	}
	if len(requests) != 0 {
		t.Errorf("Expected no matches outside the window, got %d", len(requests))
	}
}

func TestSetMatchedTransactionID(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	request, err := service.CreateDepositRequest(ctx, store.NewDepositRequestParams{
		DepositorPublicKey: "0xuser",
		Asset:              assets.Eth,
		UnitAmount:         decimal.NewNullDecimal(decimal.NewFromInt(1)),
	})
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}

	if err := service.SetMatchedTransactionID(ctx, request.ID, "0xTX1"); err != nil {
		t.Fatalf("SetMatchedTransactionID failed: %v", err)
	}

	// Re-applying the same pairing is a no-op.
	if err := service.SetMatchedTransactionID(ctx, request.ID, "0xtx1"); err != nil {
		t.Fatalf("Idempotent re-apply failed: %v", err)
	}

	// Pairing with a different transaction is refused.
	err = service.SetMatchedTransactionID(ctx, request.ID, "0xtx2")
	if !errors.Is(err, store.ErrRequestAlreadyMatched) {
		t.Errorf("Expected ErrRequestAlreadyMatched, got %v", err)
	}

	err = service.SetMatchedTransactionID(ctx, "no-such-request", "0xtx1")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}
