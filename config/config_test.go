package config

import (
	"math/big"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadCreatesDefault(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default file not written: %v", err)
	}
	if cfg.Service.Name != "marketd" {
		t.Fatalf("service name = %q", cfg.Service.Name)
	}
	if cfg.Market.BaseDecimals != 6 {
		t.Fatalf("base decimals = %d", cfg.Market.BaseDecimals)
	}
	if cfg.Gateway.ListenAddress != ":8645" {
		t.Fatalf("listen address = %q", cfg.Gateway.ListenAddress)
	}
	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Market.BaseBorrowMin != cfg.Market.BaseBorrowMin {
		t.Fatalf("reload mismatch: %q vs %q", reloaded.Market.BaseBorrowMin, cfg.Market.BaseBorrowMin)
	}
}

func TestLoadParsesMarketSection(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	raw := `
[service]
Name = "marketd-test"

[market]
Governor = "0x1000000000000000000000000000000000000001"
PauseGuardian = "0x1000000000000000000000000000000000000002"
BaseDecimals = 8
BasePriceFeed = "wbtc.usd"
BaseBorrowMin = "50000"

[[market.assets]]
Asset = "0x2000000000000000000000000000000000000001"
PriceFeed = "weth.usd"
Decimals = 18
BorrowCollateralFactor = "800000000000000000"
LiquidateCollateralFactor = "850000000000000000"
LiquidationFactor = "950000000000000000"
SupplyCap = "1000000000000000000000"

[gateway]
JWTSecret = "test-secret"

[rates.supply]
SlopeLow = "1000000000"
Kink = "800000000000000000"

[rates.borrow]
Base = "500000000"
SlopeLow = "1500000000"
SlopeHigh = "30000000000"
Kink = "800000000000000000"
`
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	params, err := cfg.EngineParams()
	if err != nil {
		t.Fatalf("engine params: %v", err)
	}
	if params.BaseDecimals != 8 || params.BasePriceFeed != "wbtc.usd" {
		t.Fatalf("base settings = %d %q", params.BaseDecimals, params.BasePriceFeed)
	}
	if params.BaseBorrowMin.Cmp(big.NewInt(50_000)) != 0 {
		t.Fatalf("borrow min = %s", params.BaseBorrowMin)
	}
	if params.Governor.Hex() != "0x1000000000000000000000000000000000000001" {
		t.Fatalf("governor = %s", params.Governor.Hex())
	}
	assets, err := cfg.EngineAssets()
	if err != nil {
		t.Fatalf("engine assets: %v", err)
	}
	if len(assets) != 1 {
		t.Fatalf("asset count = %d", len(assets))
	}
	if assets[0].Decimals != 18 || assets[0].PriceFeed != "weth.usd" {
		t.Fatalf("asset settings = %d %q", assets[0].Decimals, assets[0].PriceFeed)
	}
	if assets[0].LiquidationFactor.Cmp(mustParse(t, "950000000000000000")) != 0 {
		t.Fatalf("liquidation factor = %s", assets[0].LiquidationFactor)
	}
	model, err := cfg.RateModel()
	if err != nil {
		t.Fatalf("rate model: %v", err)
	}
	if model == nil {
		t.Fatalf("rate model is nil")
	}
	if model.Borrow.SlopeHigh.Cmp(big.NewInt(30_000_000_000)) != 0 {
		t.Fatalf("borrow slope = %s", model.Borrow.SlopeHigh)
	}
	if model.Supply.Base.Sign() != 0 {
		t.Fatalf("supply base = %s", model.Supply.Base)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	dir := t.TempDir()
	cases := []struct {
		name string
		raw  string
	}{
		{"bad governor", "[market]\nGovernor = \"not-an-address\"\n"},
		{"negative amount", "[market]\nGovernor = \"0x1000000000000000000000000000000000000001\"\nBaseBorrowMin = \"-5\"\n"},
		{"garbage amount", "[market]\nGovernor = \"0x1000000000000000000000000000000000000001\"\nRewardScale = \"1e18\"\n"},
		{"missing governor", "[gateway]\nJWTSecret = \"x\"\n"},
		{"missing jwt secret", "[market]\nGovernor = \"0x1000000000000000000000000000000000000001\"\n"},
	}
	for _, tc := range cases {
		path := filepath.Join(dir, tc.name+".toml")
		if err := os.WriteFile(path, []byte(tc.raw), 0o600); err != nil {
			t.Fatalf("%s: write: %v", tc.name, err)
		}
		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("%s: load: %v", tc.name, err)
		}
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: validate accepted bad config", tc.name)
		}
	}
}

func TestEmptyRatesSectionMeansDefaultModel(t *testing.T) {
	cfg := &Config{}
	cfg.EnsureDefaults()
	model, err := cfg.RateModel()
	if err != nil {
		t.Fatalf("rate model: %v", err)
	}
	if model != nil {
		t.Fatalf("expected nil model for empty rates section")
	}
}

func mustParse(t *testing.T, raw string) *big.Int {
	t.Helper()
	out, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		t.Fatalf("bad literal %q", raw)
	}
	return out
}
