package config

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/Veraticus/expense-ledger/internal/common"
	"github.com/Veraticus/expense-ledger/internal/currency"
)

// LoadCurrencyConfig builds the normalizer configuration from currency.* keys.
// Rates in currency.default_rates replace the built-in default for that
// currency and leave the others alone.
func LoadCurrencyConfig() (currency.Config, error) {
	cfg := currency.DefaultConfig()

	if v := viper.GetString("currency.base"); v != "" {
		cfg.Base = strings.ToUpper(v)
	}
	if v := viper.GetStringSlice("currency.supported"); len(v) > 0 {
		cfg.Supported = v
	}
	if v := viper.GetString("currency.source_url"); v != "" {
		cfg.SourceURL = v
	}
	if viper.IsSet("currency.timeout") {
		cfg.Timeout = viper.GetDuration("currency.timeout")
	}
	if viper.IsSet("currency.cache_ttl") {
		cfg.CacheTTL = viper.GetDuration("currency.cache_ttl")
	}

	for code, raw := range viper.GetStringMapString("currency.default_rates") {
		rate, err := decimal.NewFromString(raw)
		if err != nil {
			return cfg, fmt.Errorf("%w: currency.default_rates.%s: %v", common.ErrInvalidConfig, code, err)
		}
		if !rate.IsPositive() {
			return cfg, fmt.Errorf("%w: currency.default_rates.%s must be positive", common.ErrInvalidConfig, code)
		}
		cfg.DefaultRates[strings.ToUpper(code)] = rate
	}

	return cfg, nil
}
