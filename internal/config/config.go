// Package config loads simulation settings from defaults, an optional YAML
// file and MARKETSIM_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the complete run configuration.
type Config struct {
	Model  Model  `yaml:"model"`
	Run    Run    `yaml:"run"`
	Output Output `yaml:"output"`
}

// Model holds the population sizes and the economic constants of the model.
type Model struct {
	Households int `yaml:"households" validate:"gte=1"`
	Firms      int `yaml:"firms" validate:"gte=1"`

	Wage             float64 `yaml:"wage" validate:"gt=0"`
	BreadPrice       float64 `yaml:"bread_price" validate:"gt=0"`
	LaborPerHire     float64 `yaml:"labor_per_hire" validate:"gt=0"`
	BreadPerPurchase float64 `yaml:"bread_per_purchase" validate:"gt=0"`

	Capital float64 `yaml:"capital" validate:"gte=0"`
	Alpha   float64 `yaml:"alpha" validate:"gte=0,lte=1"`

	FirmMoney      float64 `yaml:"firm_money" validate:"gte=0"`
	HouseholdMoney float64 `yaml:"household_money" validate:"gte=0"`
	HouseholdLabor float64 `yaml:"household_labor" validate:"gte=0"`

	// RefreshLabor tops each household's labor back up to HouseholdLabor at
	// the start of every round. Off by default: households sell their
	// endowment once.
	RefreshLabor  bool   `yaml:"refresh_labor"`
	CapitalPolicy string `yaml:"capital_policy" validate:"oneof=reset-to-capital carry-forward"`
}

// Run controls the length and reproducibility of a run.
type Run struct {
	Rounds int   `yaml:"rounds" validate:"gte=1"`
	Seed   int64 `yaml:"seed"` // 0 picks a random seed
}

// Output configures where round results go besides the log.
type Output struct {
	Database     string   `yaml:"database,omitempty"`
	KafkaBrokers []string `yaml:"kafka_brokers,omitempty" validate:"dive,hostname_port"`
	KafkaTopic   string   `yaml:"kafka_topic" validate:"required"`
	LogLevel     string   `yaml:"log_level" validate:"oneof=debug info warn error"`
}

// Default returns the configuration of the reference model: 50 households,
// 10 firms, 50 rounds.
func Default() Config {
	return Config{
		Model: Model{
			Households:       50,
			Firms:            10,
			Wage:             10,
			BreadPrice:       12,
			LaborPerHire:     1,
			BreadPerPurchase: 1,
			Capital:          1,
			Alpha:            0.5,
			FirmMoney:        100,
			HouseholdMoney:   10,
			HouseholdLabor:   1,
			RefreshLabor:     false,
			CapitalPolicy:    "reset-to-capital",
		},
		Run: Run{
			Rounds: 50,
			Seed:   42,
		},
		Output: Output{
			KafkaTopic: "marketsim.rounds",
			LogLevel:   "info",
		},
	}
}

// Load builds a Config from defaults, the YAML file at path (skipped when
// path is empty) and the process environment, then validates it.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadDotEnv loads variables from a .env file into the environment. A missing
// file is not an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

var validate = validator.New()

// Validate checks every field constraint.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// YAML renders the configuration as a YAML document.
func (c Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}
