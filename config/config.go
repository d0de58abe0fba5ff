package config

import (
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/ethereum/go-ethereum/common"

	"moneta/native/market"
)

// Config is the marketd runtime configuration. Big-integer amounts are
// expressed as decimal strings so TOML files survive values past int64.
type Config struct {
	Service ServiceConfig `toml:"service"`
	Storage StorageConfig `toml:"storage"`
	Market  MarketConfig  `toml:"market"`
	Oracle  OracleConfig  `toml:"oracle"`
	Rates   RatesConfig   `toml:"rates"`
	Gateway GatewayConfig `toml:"gateway"`
	Logging LoggingConfig `toml:"logging"`
}

// ServiceConfig carries process-level settings.
type ServiceConfig struct {
	Name string `toml:"Name"`
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	DataDir   string `toml:"DataDir"`
	AuditPath string `toml:"AuditPath"`
}

// AssetConfig mirrors a collateral listing in TOML form.
type AssetConfig struct {
	Asset                     string `toml:"Asset"`
	PriceFeed                 string `toml:"PriceFeed"`
	Decimals                  uint8  `toml:"Decimals"`
	BorrowCollateralFactor    string `toml:"BorrowCollateralFactor"`
	LiquidateCollateralFactor string `toml:"LiquidateCollateralFactor"`
	LiquidationFactor         string `toml:"LiquidationFactor"`
	SupplyCap                 string `toml:"SupplyCap"`
}

// MarketConfig carries the engine's governance parameters.
type MarketConfig struct {
	Governor                string        `toml:"Governor"`
	PauseGuardian           string        `toml:"PauseGuardian"`
	BaseDecimals            uint8         `toml:"BaseDecimals"`
	BasePriceFeed           string        `toml:"BasePriceFeed"`
	StoreFrontPriceFactor   string        `toml:"StoreFrontPriceFactor"`
	StorefrontCoefficient   string        `toml:"StorefrontCoefficient"`
	BaseBorrowMin           string        `toml:"BaseBorrowMin"`
	BaseMinForRewards       string        `toml:"BaseMinForRewards"`
	BaseTrackingSupplySpeed string        `toml:"BaseTrackingSupplySpeed"`
	BaseTrackingBorrowSpeed string        `toml:"BaseTrackingBorrowSpeed"`
	RewardScale             string        `toml:"RewardScale"`
	RescaleFactor           string        `toml:"RescaleFactor"`
	RewardMultiplier        string        `toml:"RewardMultiplier"`
	Assets                  []AssetConfig `toml:"assets"`
}

// OracleConfig seeds the in-process price board. Prices maps feed names to
// priceScale-scaled decimal strings.
type OracleConfig struct {
	MaxAgeSeconds int               `toml:"MaxAgeSeconds"`
	Prices        map[string]string `toml:"Prices"`
}

// SeedPrices parses the configured initial prices.
func (c *Config) SeedPrices() (map[string]*big.Int, error) {
	out := make(map[string]*big.Int, len(c.Oracle.Prices))
	for feed, raw := range c.Oracle.Prices {
		price, err := parseAmount("oracle.Prices."+feed, raw)
		if err != nil {
			return nil, err
		}
		out[feed] = price
	}
	return out, nil
}

// RateCurveConfig is one segment-pair of the kinked curve, in per-second
// factorScale units.
type RateCurveConfig struct {
	Base      string `toml:"Base"`
	SlopeLow  string `toml:"SlopeLow"`
	SlopeHigh string `toml:"SlopeHigh"`
	Kink      string `toml:"Kink"`
}

// RatesConfig pairs the supply and borrow curves.
type RatesConfig struct {
	Supply RateCurveConfig `toml:"supply"`
	Borrow RateCurveConfig `toml:"borrow"`
}

// GatewayConfig carries the HTTP gateway settings.
type GatewayConfig struct {
	ListenAddress  string  `toml:"ListenAddress"`
	JWTSecret      string  `toml:"JWTSecret"`
	RatePerSecond  float64 `toml:"RatePerSecond"`
	RateBurst      int     `toml:"RateBurst"`
	MetricsEnabled bool    `toml:"MetricsEnabled"`
}

// LoggingConfig carries structured-logging settings.
type LoggingConfig struct {
	Level      string `toml:"Level"`
	Format     string `toml:"Format"`
	FilePath   string `toml:"FilePath"`
	MaxSizeMB  int    `toml:"MaxSizeMB"`
	MaxBackups int    `toml:"MaxBackups"`
	MaxAgeDays int    `toml:"MaxAgeDays"`
}

// Load reads the configuration at path, creating a default file when none
// exists yet.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	cfg.EnsureDefaults()
	return cfg, nil
}

func createDefault(path string) (*Config, error) {
	cfg := &Config{}
	cfg.EnsureDefaults()
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	defer file.Close()
	return toml.NewEncoder(file).Encode(cfg)
}

// EnsureDefaults fills any unset field with a serviceable default.
func (c *Config) EnsureDefaults() {
	if strings.TrimSpace(c.Service.Name) == "" {
		c.Service.Name = "marketd"
	}
	if strings.TrimSpace(c.Storage.DataDir) == "" {
		c.Storage.DataDir = "./data"
	}
	if strings.TrimSpace(c.Storage.AuditPath) == "" {
		c.Storage.AuditPath = "./data/audit.db"
	}
	if strings.TrimSpace(c.Market.BasePriceFeed) == "" {
		c.Market.BasePriceFeed = "base.usd"
	}
	if c.Market.BaseDecimals == 0 {
		c.Market.BaseDecimals = 6
	}
	if strings.TrimSpace(c.Market.StoreFrontPriceFactor) == "" {
		c.Market.StoreFrontPriceFactor = "500000000000000000"
	}
	if strings.TrimSpace(c.Market.StorefrontCoefficient) == "" {
		c.Market.StorefrontCoefficient = "800000000000000000"
	}
	if strings.TrimSpace(c.Market.BaseBorrowMin) == "" {
		c.Market.BaseBorrowMin = "1000000"
	}
	if strings.TrimSpace(c.Market.BaseMinForRewards) == "" {
		c.Market.BaseMinForRewards = "1000000"
	}
	if strings.TrimSpace(c.Market.RewardScale) == "" {
		c.Market.RewardScale = "1000000000000000000"
	}
	if strings.TrimSpace(c.Market.RescaleFactor) == "" {
		c.Market.RescaleFactor = "1"
	}
	if strings.TrimSpace(c.Market.RewardMultiplier) == "" {
		c.Market.RewardMultiplier = "1000000000000000000"
	}
	if c.Oracle.Prices == nil {
		c.Oracle.Prices = map[string]string{}
	}
	if strings.TrimSpace(c.Gateway.ListenAddress) == "" {
		c.Gateway.ListenAddress = ":8645"
	}
	if c.Gateway.RatePerSecond <= 0 {
		c.Gateway.RatePerSecond = 50
	}
	if c.Gateway.RateBurst <= 0 {
		c.Gateway.RateBurst = 100
	}
	if strings.TrimSpace(c.Logging.Level) == "" {
		c.Logging.Level = "info"
	}
	if strings.TrimSpace(c.Logging.Format) == "" {
		c.Logging.Format = "json"
	}
	if c.Logging.MaxSizeMB <= 0 {
		c.Logging.MaxSizeMB = 100
	}
	if c.Logging.MaxBackups <= 0 {
		c.Logging.MaxBackups = 5
	}
	if c.Logging.MaxAgeDays <= 0 {
		c.Logging.MaxAgeDays = 30
	}
}

func parseAmount(field, value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return big.NewInt(0), nil
	}
	out, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("config: %s: invalid decimal amount %q", field, value)
	}
	if out.Sign() < 0 {
		return nil, fmt.Errorf("config: %s: negative amount %q", field, value)
	}
	return out, nil
}

func parseAddress(field, value string) (common.Address, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return common.Address{}, nil
	}
	if !common.IsHexAddress(trimmed) {
		return common.Address{}, fmt.Errorf("config: %s: invalid address %q", field, value)
	}
	return common.HexToAddress(trimmed), nil
}

// EngineParams converts the TOML market section into engine parameters.
func (c *Config) EngineParams() (market.Params, error) {
	params := market.Params{
		BaseDecimals:  c.Market.BaseDecimals,
		BasePriceFeed: strings.TrimSpace(c.Market.BasePriceFeed),
	}
	var err error
	if params.Governor, err = parseAddress("market.Governor", c.Market.Governor); err != nil {
		return params, err
	}
	if params.PauseGuardian, err = parseAddress("market.PauseGuardian", c.Market.PauseGuardian); err != nil {
		return params, err
	}
	fields := []struct {
		name   string
		raw    string
		target **big.Int
	}{
		{"market.StoreFrontPriceFactor", c.Market.StoreFrontPriceFactor, &params.StoreFrontPriceFactor},
		{"market.StorefrontCoefficient", c.Market.StorefrontCoefficient, &params.StorefrontCoefficient},
		{"market.BaseBorrowMin", c.Market.BaseBorrowMin, &params.BaseBorrowMin},
		{"market.BaseMinForRewards", c.Market.BaseMinForRewards, &params.BaseMinForRewards},
		{"market.BaseTrackingSupplySpeed", c.Market.BaseTrackingSupplySpeed, &params.BaseTrackingSupplySpeed},
		{"market.BaseTrackingBorrowSpeed", c.Market.BaseTrackingBorrowSpeed, &params.BaseTrackingBorrowSpeed},
		{"market.RewardScale", c.Market.RewardScale, &params.RewardScale},
		{"market.RescaleFactor", c.Market.RescaleFactor, &params.RescaleFactor},
		{"market.RewardMultiplier", c.Market.RewardMultiplier, &params.RewardMultiplier},
	}
	for _, field := range fields {
		value, err := parseAmount(field.name, field.raw)
		if err != nil {
			return params, err
		}
		*field.target = value
	}
	return params, nil
}

// EngineAssets converts the TOML asset listings into engine configs.
func (c *Config) EngineAssets() ([]market.AssetConfig, error) {
	assets := make([]market.AssetConfig, 0, len(c.Market.Assets))
	for i, raw := range c.Market.Assets {
		prefix := fmt.Sprintf("market.assets[%d]", i)
		asset := market.AssetConfig{
			PriceFeed: strings.TrimSpace(raw.PriceFeed),
			Decimals:  raw.Decimals,
		}
		var err error
		if asset.Asset, err = parseAddress(prefix+".Asset", raw.Asset); err != nil {
			return nil, err
		}
		if asset.BorrowCollateralFactor, err = parseAmount(prefix+".BorrowCollateralFactor", raw.BorrowCollateralFactor); err != nil {
			return nil, err
		}
		if asset.LiquidateCollateralFactor, err = parseAmount(prefix+".LiquidateCollateralFactor", raw.LiquidateCollateralFactor); err != nil {
			return nil, err
		}
		if asset.LiquidationFactor, err = parseAmount(prefix+".LiquidationFactor", raw.LiquidationFactor); err != nil {
			return nil, err
		}
		if asset.SupplyCap, err = parseAmount(prefix+".SupplyCap", raw.SupplyCap); err != nil {
			return nil, err
		}
		assets = append(assets, asset)
	}
	return assets, nil
}

// RateModel converts the TOML rates section, falling back to the engine's
// default model when the section is empty.
func (c *Config) RateModel() (*market.RateModel, error) {
	if c.Rates == (RatesConfig{}) {
		return nil, nil
	}
	supply, err := c.Rates.Supply.curve("rates.supply")
	if err != nil {
		return nil, err
	}
	borrow, err := c.Rates.Borrow.curve("rates.borrow")
	if err != nil {
		return nil, err
	}
	return &market.RateModel{Supply: supply, Borrow: borrow}, nil
}

func (r RateCurveConfig) curve(prefix string) (market.RateCurve, error) {
	curve := market.RateCurve{}
	var err error
	if curve.Base, err = parseAmount(prefix+".Base", r.Base); err != nil {
		return curve, err
	}
	if curve.SlopeLow, err = parseAmount(prefix+".SlopeLow", r.SlopeLow); err != nil {
		return curve, err
	}
	if curve.SlopeHigh, err = parseAmount(prefix+".SlopeHigh", r.SlopeHigh); err != nil {
		return curve, err
	}
	if curve.Kink, err = parseAmount(prefix+".Kink", r.Kink); err != nil {
		return curve, err
	}
	return curve, nil
}

// Validate rejects configurations that cannot produce a working service.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Market.Governor) == "" {
		return fmt.Errorf("config: market.Governor must be set")
	}
	if _, err := c.EngineParams(); err != nil {
		return err
	}
	if _, err := c.EngineAssets(); err != nil {
		return err
	}
	if _, err := c.RateModel(); err != nil {
		return err
	}
	if _, err := c.SeedPrices(); err != nil {
		return err
	}
	if strings.TrimSpace(c.Gateway.JWTSecret) == "" {
		return fmt.Errorf("config: gateway.JWTSecret must be set")
	}
	return nil
}
