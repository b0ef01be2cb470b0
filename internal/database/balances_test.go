package database

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/stanleyjzheng/sudopay/internal/assets"
	"github.com/stanleyjzheng/sudopay/internal/store"
)

func TestCreateBalance_Idempotent(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	if _, err := service.CreateBalance(ctx, "0xacct"); err != nil {
		t.Fatalf("CreateBalance failed: %v", err)
	}
	if err := service.Credit(ctx, "0xacct", decimal.NewFromInt(10), assets.Eth); err != nil {
		t.Fatalf("Credit failed: %v", err)
	}

	// Re-creating must not reset the balance.
	balance, err := service.CreateBalance(ctx, "0xacct")
	if err != nil {
		t.Fatalf("Second CreateBalance failed: %v", err)
	}
	if !balance.EthBalance.Equal(decimal.NewFromInt(10)) {
		t.Errorf("Expected eth balance 10, got %s", balance.EthBalance)
	}
}

func TestCreditAndDebit(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	if _, err := service.CreateBalance(ctx, "0xacct"); err != nil {
		t.Fatalf("CreateBalance failed: %v", err)
	}

	if err := service.Credit(ctx, "0xacct", decimal.NewFromInt(100), assets.Usdb); err != nil {
		t.Fatalf("Credit failed: %v", err)
	}
	if err := service.Debit(ctx, "0xacct", decimal.NewFromInt(40), assets.Usdb); err != nil {
		t.Fatalf("Debit failed: %v", err)
	}

	balance, err := service.GetBalance(ctx, "0xacct")
	if err != nil {
		t.Fatalf("GetBalance failed: %v", err)
	}
	if !balance.UsdbBalance.Equal(decimal.NewFromInt(60)) {
		t.Errorf("Expected usdb balance 60, got %s", balance.UsdbBalance)
	}
}

func TestWethSharesEthBucket(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	if _, err := service.CreateBalance(ctx, "0xacct"); err != nil {
		t.Fatalf("CreateBalance failed: %v", err)
	}

	if err := service.Credit(ctx, "0xacct", decimal.NewFromInt(3), assets.Eth); err != nil {
		t.Fatalf("ETH credit failed: %v", err)
	}
	if err := service.Credit(ctx, "0xacct", decimal.NewFromInt(4), assets.Weth); err != nil {
		t.Fatalf("WETH credit failed: %v", err)
	}

	balance, err := service.GetBalance(ctx, "0xacct")
	if err != nil {
		t.Fatalf("GetBalance failed: %v", err)
	}
	if !balance.EthBalance.Equal(decimal.NewFromInt(7)) {
		t.Errorf("Expected combined eth bucket 7, got %s", balance.EthBalance)
	}
	if !balance.UsdbBalance.IsZero() {
		t.Errorf("Expected usdb bucket untouched, got %s", balance.UsdbBalance)
	}
}

func TestDebit_InsufficientBalance(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	if _, err := service.CreateBalance(ctx, "0xacct"); err != nil {
		t.Fatalf("CreateBalance failed: %v", err)
	}
	if err := service.Credit(ctx, "0xacct", decimal.NewFromInt(5), assets.Eth); err != nil {
		t.Fatalf("Credit failed: %v", err)
	}

	err := service.Debit(ctx, "0xacct", decimal.NewFromInt(6), assets.Eth)
	if !errors.Is(err, store.ErrInsufficientBalance) {
		t.Errorf("Expected ErrInsufficientBalance, got %v", err)
	}

	// Failed debit must not change the stored balance.
	balance, err := service.GetBalance(ctx, "0xacct")
	if err != nil {
		t.Fatalf("GetBalance failed: %v", err)
	}
	if !balance.EthBalance.Equal(decimal.NewFromInt(5)) {
		t.Errorf("Expected eth balance 5 after failed debit, got %s", balance.EthBalance)
	}
}

func TestCompetingDebitsOverdraw(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	if _, err := service.CreateBalance(ctx, "0xacct"); err != nil {
		t.Fatalf("CreateBalance failed: %v", err)
	}
	if err := service.Credit(ctx, "0xacct", decimal.NewFromInt(100), assets.Usdb); err != nil {
		t.Fatalf("Credit failed: %v", err)
	}

	// Two debits of 60 against 100: exactly one must win.
	results := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- service.Debit(ctx, "0xacct", decimal.NewFromInt(60), assets.Usdb)
		}()
	}
	wg.Wait()
	close(results)

	var succeeded, insufficient int
	for err := range results {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, store.ErrInsufficientBalance):
			insufficient++
		default:
			t.Fatalf("Unexpected debit error: %v", err)
		}
	}
	if succeeded != 1 || insufficient != 1 {
		t.Errorf("Expected one success and one rejection, got %d/%d", succeeded, insufficient)
	}

	balance, err := service.GetBalance(ctx, "0xacct")
	if err != nil {
		t.Fatalf("GetBalance failed: %v", err)
	}
	if !balance.UsdbBalance.Equal(decimal.NewFromInt(40)) {
		t.Errorf("Expected 40 remaining, got %s", balance.UsdbBalance)
	}
}

func TestDebit_UnknownAccount(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	err := service.Debit(context.Background(), "0xnobody", decimal.NewFromInt(1), assets.Eth)
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestYieldAccruesOnEthBucket(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	if _, err := service.CreateBalance(ctx, "0xacct"); err != nil {
		t.Fatalf("CreateBalance failed: %v", err)
	}

	oneEth := decimal.RequireFromString("1000000000000000000")
	if err := service.Credit(ctx, "0xacct", oneEth, assets.Eth); err != nil {
		t.Fatalf("Credit failed: %v", err)
	}

	// Backdate the last update so the next mutation accrues a day of yield.
	dayAgo := time.Now().UTC().Add(-24 * time.Hour)
	if _, err := service.db.Exec(
		"UPDATE balances SET updated_at = ? WHERE seed_phrase_public_key = ?",
		dayAgo, "0xacct"); err != nil {
		t.Fatalf("Failed to backdate balance: %v", err)
	}

	if err := service.Credit(ctx, "0xacct", decimal.NewFromInt(1), assets.Usdb); err != nil {
		t.Fatalf("Credit failed: %v", err)
	}

	balance, err := service.GetBalance(ctx, "0xacct")
	if err != nil {
		t.Fatalf("GetBalance failed: %v", err)
	}

	// One day on 1 ETH at the daily rate is 0.000094 ETH, give or take the
	// seconds the test itself took.
	expected := oneEth.Mul(dailyYield)
	lower := expected.Mul(decimal.RequireFromString("0.99"))
	upper := expected.Mul(decimal.RequireFromString("1.01"))
	if balance.AccruedYieldBalance.LessThan(lower) || balance.AccruedYieldBalance.GreaterThan(upper) {
		t.Errorf("Expected accrued yield near %s, got %s", expected, balance.AccruedYieldBalance)
	}
}
