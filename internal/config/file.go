package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// FileConfig is the optional YAML file named by TRACKER_CONFIG. It holds the
// reporting settings; environment variables still take precedence.
//
//	investment_categories: [stocks, funds]
//	palette:
//	  earning: "#2ca02c"
//	  expense: "#d62728"
//	  investment: "#1f77b4"
type FileConfig struct {
	InvestmentCategories []string `yaml:"investment_categories"`
	Palette              struct {
		Earning    string `yaml:"earning"`
		Expense    string `yaml:"expense"`
		Investment string `yaml:"investment"`
	} `yaml:"palette"`
}

// LoadFile reads and parses the YAML config at path.
func LoadFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var fc FileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return &fc, nil
}

// ApplyFile fills every setting the environment left unset from fc.
func (c *Config) ApplyFile(fc *FileConfig) {
	if os.Getenv("INVESTMENT_CATEGORIES") == "" && len(fc.InvestmentCategories) > 0 {
		c.InvestmentCategories = fc.InvestmentCategories
	}
	overlay := func(key string, dst *string, v string) {
		if os.Getenv(key) == "" && v != "" {
			*dst = v
		}
	}
	overlay("COLOR_EARNING", &c.Palette.Earning, fc.Palette.Earning)
	overlay("COLOR_EXPENSE", &c.Palette.Expense, fc.Palette.Expense)
	overlay("COLOR_INVESTMENT", &c.Palette.Investment, fc.Palette.Investment)
}

// LoadWithFile is Load followed by the overlay of the file named by
// ConfigFile, when there is one.
func LoadWithFile() (*Config, error) {
	cfg := Load()
	if cfg.ConfigFile == "" {
		return cfg, nil
	}
	fc, err := LoadFile(cfg.ConfigFile)
	if err != nil {
		return nil, err
	}
	cfg.ApplyFile(fc)
	return cfg, nil
}
