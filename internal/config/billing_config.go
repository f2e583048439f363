package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// BillingConfig is the operator-tuned configuration. Grace and due windows are
// product decisions, never hard-coded at call sites.
type BillingConfig struct {
	Billing    BillingRules     `toml:"billing"`
	Generation GenerationConfig `toml:"generation"`
}

// BillingRules holds the lifecycle windows, in days.
type BillingRules struct {
	TrialDays        int `toml:"trial_days"`
	PaymentGraceDays int `toml:"payment_grace_days"`
	DueWindowDays    int `toml:"due_window_days"`
}

// GenerationConfig holds batch-generation tuning.
type GenerationConfig struct {
	Workers               int `toml:"workers"`
	AggregateCacheTTLDays int `toml:"aggregate_cache_ttl_days"`
}

// DefaultBillingConfig returns the shipped defaults: 14-day trial, 7-day
// payment grace, 14-day due window, 8 generation workers.
func DefaultBillingConfig() *BillingConfig {
	return &BillingConfig{
		Billing: BillingRules{
			TrialDays:        14,
			PaymentGraceDays: 7,
			DueWindowDays:    14,
		},
		Generation: GenerationConfig{
			Workers:               8,
			AggregateCacheTTLDays: 45,
		},
	}
}

// LoadBillingConfig loads configuration from a TOML file, falling back to
// defaults for any section the file omits.
func LoadBillingConfig(filename string) (*BillingConfig, error) {
	config := DefaultBillingConfig()
	if filename == "" {
		return config, nil
	}
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return config, nil
	}
	if _, err := toml.DecodeFile(filename, config); err != nil {
		return nil, fmt.Errorf("failed to load billing config %s: %w", filename, err)
	}
	if config.Generation.Workers <= 0 {
		config.Generation.Workers = DefaultBillingConfig().Generation.Workers
	}
	return config, nil
}
