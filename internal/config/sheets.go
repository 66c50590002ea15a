package config

import (
	"os"

	"github.com/spf13/viper"

	"github.com/Veraticus/expense-ledger/internal/sheets"
)

// LoadSheetsConfig loads Google Sheets configuration. Viper keys (config file
// or LEDGER_SHEETS_* env vars) win over the GOOGLE_SHEETS_* env vars, which
// win over defaults.
func LoadSheetsConfig() (*sheets.Config, error) {
	config := sheets.DefaultConfig()

	config.ServiceAccountPath = ExpandPath(firstOf("sheets.service_account_path", "GOOGLE_SHEETS_SERVICE_ACCOUNT_PATH"))
	config.ClientID = firstOf("sheets.client_id", "GOOGLE_SHEETS_CLIENT_ID")
	config.ClientSecret = firstOf("sheets.client_secret", "GOOGLE_SHEETS_CLIENT_SECRET")
	config.RefreshToken = firstOf("sheets.refresh_token", "GOOGLE_SHEETS_REFRESH_TOKEN")
	config.SpreadsheetID = firstOf("sheets.spreadsheet_id", "GOOGLE_SHEETS_SPREADSHEET_ID")

	if v := firstOf("sheets.spreadsheet_name", "GOOGLE_SHEETS_SPREADSHEET_NAME"); v != "" {
		config.SpreadsheetName = v
	}
	if v := viper.GetString("sheets.timezone"); v != "" {
		config.TimeZone = v
	}
	if v := viper.GetInt("sheets.batch_size"); v > 0 {
		config.BatchSize = v
	}
	if viper.IsSet("sheets.retry_attempts") {
		config.RetryAttempts = viper.GetInt("sheets.retry_attempts")
	}
	if viper.IsSet("sheets.retry_delay") {
		config.RetryDelay = viper.GetDuration("sheets.retry_delay")
	}
	if viper.IsSet("sheets.formatting") {
		config.EnableFormatting = viper.GetBool("sheets.formatting")
	}
	if v := viper.GetString("currency.base"); v != "" {
		config.BaseCurrency = v
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// firstOf returns the viper value of key, or the env var when the key is unset.
func firstOf(key, env string) string {
	if v := viper.GetString(key); v != "" {
		return v
	}
	return os.Getenv(env)
}
