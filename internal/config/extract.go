package config

import (
	"github.com/spf13/viper"

	"github.com/Veraticus/expense-ledger/internal/common"
	"github.com/Veraticus/expense-ledger/internal/extract"
)

// LoadExtractConfig reads gemini.* keys. The API key may also come from
// GEMINI_API_KEY.
func LoadExtractConfig() extract.Config {
	cfg := extract.Config{
		APIKey: firstOf("gemini.api_key", "GEMINI_API_KEY"),
		Model:  viper.GetString("gemini.model"),
		Retry: common.RetryOptions{
			MaxAttempts: viper.GetInt("gemini.retry_attempts"),
		},
	}
	if viper.IsSet("gemini.temperature") {
		cfg.Temperature = float32(viper.GetFloat64("gemini.temperature"))
	}
	return cfg
}
