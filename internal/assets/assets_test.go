package assets

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEntries() []AssetEntry {
	return []AssetEntry{
		{Symbol: "ETH", Decimals: 18},
		{Symbol: "WETH", TokenAddress: "0x4200000000000000000000000000000000000023", Decimals: 18},
		{Symbol: "USDB", TokenAddress: "0x4200000000000000000000000000000000000022", Decimals: 18},
	}
}

func TestNewRegistryValidation(t *testing.T) {
	_, err := New("", testEntries(), nil)
	assert.Error(t, err, "empty custodial address")

	_, err = New("0xCustodial", testEntries()[:2], nil)
	assert.Error(t, err, "missing USDB entry")

	bad := testEntries()
	bad[1].TokenAddress = ""
	_, err = New("0xCustodial", bad, nil)
	assert.Error(t, err, "token asset without token address")

	_, err = New("0xCustodial", testEntries(), nil)
	assert.NoError(t, err)
}

func TestBucketMapping(t *testing.T) {
	assert.Equal(t, BucketEth, Eth.Bucket())
	assert.Equal(t, BucketEth, Weth.Bucket())
	assert.Equal(t, BucketUsdb, Usdb.Bucket())
}

func TestParseAsset(t *testing.T) {
	asset, err := ParseAsset(" weth ")
	require.NoError(t, err)
	assert.Equal(t, Weth, asset)

	_, err = ParseAsset("DOGE")
	assert.Error(t, err)
}

func TestTokenAddressLookup(t *testing.T) {
	registry, err := New("0xCustodial", testEntries(), nil)
	require.NoError(t, err)

	asset, ok := registry.AssetForTokenAddress("0x4200000000000000000000000000000000000023")
	require.True(t, ok)
	assert.Equal(t, Weth, asset)

	// Lookup is case-insensitive.
	asset, ok = registry.AssetForTokenAddress("0x4200000000000000000000000000000000000022")
	require.True(t, ok)
	assert.Equal(t, Usdb, asset)

	_, ok = registry.AssetForTokenAddress("0xdeadbeef")
	assert.False(t, ok)

	_, ok = registry.TokenAddress(Eth)
	assert.False(t, ok, "native currency has no token address")
}

func TestUnitAndRawConversion(t *testing.T) {
	registry, err := New("0xCustodial", testEntries(), nil)
	require.NoError(t, err)

	raw := decimal.RequireFromString("1500000000000000000")
	units := registry.UnitAmount(Eth, raw)
	assert.True(t, units.Equal(decimal.RequireFromString("1.5")), "got %s", units)

	back := registry.RawAmount(Eth, units)
	assert.True(t, back.Equal(raw), "got %s", back)
}

func TestDenylist(t *testing.T) {
	registry, err := New("0xCustodial", testEntries(), []string{"0xAbCdEf0000000000000000000000000000000001"})
	require.NoError(t, err)

	assert.True(t, registry.IsDenylisted("0xabcdef0000000000000000000000000000000001"))
	assert.True(t, registry.IsDenylisted("0xABCDEF0000000000000000000000000000000001"))
	assert.False(t, registry.IsDenylisted("0x0000000000000000000000000000000000000002"))
}
