package assets

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v2"
)

// Asset is a closed set of supported symbols. Anything else sent to the
// custodial address is lost (and says so in the deposit dialogue).
type Asset string

const (
	Eth  Asset = "ETH"
	Weth Asset = "WETH"
	Usdb Asset = "USDB"
)

// Bucket identifies which balance column an asset settles into.
// ETH and WETH share one bucket; USDB has its own.
type Bucket int

const (
	BucketEth Bucket = iota
	BucketUsdb
)

// ParseAsset parses a symbol case-insensitively.
func ParseAsset(s string) (Asset, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ETH":
		return Eth, nil
	case "WETH":
		return Weth, nil
	case "USDB":
		return Usdb, nil
	default:
		return "", fmt.Errorf("unsupported asset %q", s)
	}
}

func (a Asset) String() string {
	return string(a)
}

// Bucket returns the balance bucket the asset settles into.
func (a Asset) Bucket() Bucket {
	if a == Usdb {
		return BucketUsdb
	}
	return BucketEth
}

// AssetEntry is one asset in assets.yaml. TokenAddress is empty for the
// native currency.
type AssetEntry struct {
	Symbol       string `yaml:"symbol"`
	TokenAddress string `yaml:"token_address"`
	Decimals     int32  `yaml:"decimals"`
}

type registryFile struct {
	CustodialAddress    string       `yaml:"custodial_address"`
	Assets              []AssetEntry `yaml:"assets"`
	DenylistedAddresses []string     `yaml:"denylisted_addresses"`
}

// Registry is the immutable asset configuration, built once at startup and
// passed into every component that needs it.
type Registry struct {
	custodialAddress string
	byAsset          map[Asset]AssetEntry
	byTokenAddress   map[string]Asset
	denylist         map[string]struct{}
}

// Load reads and validates assets.yaml.
func Load(assetsFile string) (*Registry, error) {
	assetsPath := assetsFile
	if !filepath.IsAbs(assetsFile) {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		assetsPath = filepath.Join(wd, assetsFile)
	}

	data, err := os.ReadFile(assetsPath)
	if err != nil {
		return nil, fmt.Errorf("unable to read %s: %w", assetsFile, err)
	}

	var file registryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("unable to parse %s: %w", assetsFile, err)
	}

	return New(file.CustodialAddress, file.Assets, file.DenylistedAddresses)
}

// New builds a Registry from already-parsed configuration.
func New(custodialAddress string, entries []AssetEntry, denylist []string) (*Registry, error) {
	if custodialAddress == "" {
		return nil, fmt.Errorf("custodial address cannot be empty")
	}

	r := &Registry{
		custodialAddress: strings.ToLower(custodialAddress),
		byAsset:          make(map[Asset]AssetEntry, len(entries)),
		byTokenAddress:   make(map[string]Asset, len(entries)),
		denylist:         make(map[string]struct{}, len(denylist)),
	}

	for i, entry := range entries {
		asset, err := ParseAsset(entry.Symbol)
		if err != nil {
			return nil, fmt.Errorf("asset at index %d: %w", i, err)
		}
		if entry.Decimals <= 0 {
			return nil, fmt.Errorf("asset %s: decimals must be positive, got %d", asset, entry.Decimals)
		}
		if asset != Eth && entry.TokenAddress == "" {
			return nil, fmt.Errorf("asset %s: missing token_address", asset)
		}
		if _, dup := r.byAsset[asset]; dup {
			return nil, fmt.Errorf("asset %s: duplicate entry", asset)
		}

		entry.TokenAddress = strings.ToLower(entry.TokenAddress)
		r.byAsset[asset] = entry
		if entry.TokenAddress != "" {
			r.byTokenAddress[entry.TokenAddress] = asset
		}
	}

	for _, asset := range []Asset{Eth, Weth, Usdb} {
		if _, ok := r.byAsset[asset]; !ok {
			return nil, fmt.Errorf("asset %s: missing from registry", asset)
		}
	}

	for _, addr := range denylist {
		r.denylist[strings.ToLower(addr)] = struct{}{}
	}

	return r, nil
}

// CustodialAddress returns the lowercased deposit destination address.
func (r *Registry) CustodialAddress() string {
	return r.custodialAddress
}

// AssetForTokenAddress resolves a token contract address to an asset.
func (r *Registry) AssetForTokenAddress(tokenAddress string) (Asset, bool) {
	asset, ok := r.byTokenAddress[strings.ToLower(tokenAddress)]
	return asset, ok
}

// TokenAddress returns the contract address for an asset, or false for the
// native currency.
func (r *Registry) TokenAddress(asset Asset) (string, bool) {
	entry, ok := r.byAsset[asset]
	if !ok || entry.TokenAddress == "" {
		return "", false
	}
	return entry.TokenAddress, true
}

// Decimals returns the on-chain decimal precision for an asset.
func (r *Registry) Decimals(asset Asset) int32 {
	return r.byAsset[asset].Decimals
}

// UnitAmount converts a raw smallest-unit amount to whole units.
func (r *Registry) UnitAmount(asset Asset, raw decimal.Decimal) decimal.Decimal {
	return raw.Shift(-r.Decimals(asset))
}

// RawAmount converts a whole-unit amount to the smallest on-chain unit.
func (r *Registry) RawAmount(asset Asset, units decimal.Decimal) decimal.Decimal {
	return units.Shift(r.Decimals(asset))
}

// IsDenylisted reports whether the address is a known exchange withdrawal
// address. Deposits from these are never trusted for address matching since
// many depositors share them.
func (r *Registry) IsDenylisted(address string) bool {
	_, ok := r.denylist[strings.ToLower(address)]
	return ok
}
