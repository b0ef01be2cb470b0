package blastscan

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/stanleyjzheng/sudopay/internal/assets"
	"github.com/stanleyjzheng/sudopay/internal/models"
)

const custodial = "0x841886ab34886fe435ee8f34b08119f051a40a28"

func testClient(t *testing.T, handler http.HandlerFunc) (*Client, func()) {
	server := httptest.NewServer(handler)

	registry, err := assets.New(custodial, []assets.AssetEntry{
		{Symbol: "ETH", Decimals: 18},
		{Symbol: "WETH", TokenAddress: "0x4200000000000000000000000000000000000023", Decimals: 18},
		{Symbol: "USDB", TokenAddress: "0x4200000000000000000000000000000000000022", Decimals: 18},
	}, nil)
	if err != nil {
		t.Fatalf("Failed to build registry: %v", err)
	}

	client := NewClient(models.FeedConfig{
		BaseURL:        server.URL,
		RequestTimeout: 5 * time.Second,
		PageLimit:      100,
	}, registry)

	return client, server.Close
}

func TestListNativeTransfers_FiltersAndPaginates(t *testing.T) {
	client, cleanup := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("nextToken"); got != "tok-1" {
			t.Errorf("Expected nextToken tok-1, got %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"items": [
				{"id": "0xin", "createdAt": "2024-05-01T12:00:00Z", "from": "0xsender",
				 "to": "0x841886AB34886FE435Ee8f34b08119f051A40a28", "value": "1000000000000000000", "gasUsed": 21000},
				{"id": "0xzero", "createdAt": "2024-05-01T12:00:01Z", "from": "0xsender",
				 "to": "0x841886ab34886fe435ee8f34b08119f051a40a28", "value": 0, "gasUsed": 50000},
				{"id": "0xelse", "createdAt": "2024-05-01T12:00:02Z", "from": "0xsender",
				 "to": "0xother", "value": "5", "gasUsed": 21000}
			],
			"link": {"nextToken": "tok-2"}
		}`))
	})
	defer cleanup()

	items, nextToken, err := client.ListNativeTransfers(context.Background(), "tok-1")
	if err != nil {
		t.Fatalf("ListNativeTransfers failed: %v", err)
	}
	if nextToken != "tok-2" {
		t.Errorf("Expected nextToken tok-2, got %q", nextToken)
	}
	if len(items) != 1 {
		t.Fatalf("Expected 1 transfer after filtering, got %d", len(items))
	}
	if items[0].ID != "0xin" {
		t.Errorf("Expected transfer 0xin, got %s", items[0].ID)
	}
	if !items[0].Value.Equal(decimal.RequireFromString("1000000000000000000")) {
		t.Errorf("Unexpected value %s", items[0].Value)
	}
}

func TestListTokenTransfers(t *testing.T) {
	client, cleanup := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"items": [
				{"txHash": "0xtok", "createdAt": "2024-05-01T12:00:00Z", "from": "0xsender",
				 "to": "0x841886ab34886fe435ee8f34b08119f051a40a28",
				 "tokenAddress": "0x4200000000000000000000000000000000000022", "amount": "250000000000000000000"},
				{"txHash": "0xmiss", "createdAt": "2024-05-01T12:00:01Z", "from": "0xsender",
				 "to": "0xother",
				 "tokenAddress": "0x4200000000000000000000000000000000000022", "amount": "1"}
			],
			"link": {}
		}`))
	})
	defer cleanup()

	items, nextToken, err := client.ListTokenTransfers(context.Background(), "")
	if err != nil {
		t.Fatalf("ListTokenTransfers failed: %v", err)
	}
	if nextToken != "" {
		t.Errorf("Expected empty nextToken at end of feed, got %q", nextToken)
	}
	if len(items) != 1 || items[0].TxHash != "0xtok" {
		t.Fatalf("Expected only the custodial transfer, got %+v", items)
	}
}

func TestFetchPage_FeedUnavailable(t *testing.T) {
	client, cleanup := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream maintenance", http.StatusBadGateway)
	})
	defer cleanup()

	_, _, err := client.ListNativeTransfers(context.Background(), "")
	if !errors.Is(err, ErrFeedUnavailable) {
		t.Errorf("Expected ErrFeedUnavailable, got %v", err)
	}
}

func TestFlexDecimal_HexAmount(t *testing.T) {
	var f FlexDecimal
	if err := f.UnmarshalJSON([]byte(`"0xde0b6b3a7640000"`)); err != nil {
		t.Fatalf("UnmarshalJSON failed: %v", err)
	}
	if !f.Equal(decimal.RequireFromString("1000000000000000000")) {
		t.Errorf("Expected 1e18, got %s", f.String())
	}

	if err := f.UnmarshalJSON([]byte(`"not-a-number"`)); err == nil {
		t.Error("Expected error for garbage amount")
	}
}
