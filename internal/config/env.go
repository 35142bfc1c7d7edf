package config

import (
	"fmt"
	"strconv"
	"strings"
)

// EnvPrefix is prepended to every environment variable the config reads.
const EnvPrefix = "MARKETSIM_"

// LookupFunc matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// ApplyEnv overrides fields from environment variables found through lookup.
func (c *Config) ApplyEnv(lookup LookupFunc) error {
	e := envReader{lookup: lookup}

	e.int("HOUSEHOLDS", &c.Model.Households)
	e.int("FIRMS", &c.Model.Firms)
	e.float("WAGE", &c.Model.Wage)
	e.float("BREAD_PRICE", &c.Model.BreadPrice)
	e.float("LABOR_PER_HIRE", &c.Model.LaborPerHire)
	e.float("BREAD_PER_PURCHASE", &c.Model.BreadPerPurchase)
	e.float("CAPITAL", &c.Model.Capital)
	e.float("ALPHA", &c.Model.Alpha)
	e.float("FIRM_MONEY", &c.Model.FirmMoney)
	e.float("HOUSEHOLD_MONEY", &c.Model.HouseholdMoney)
	e.float("HOUSEHOLD_LABOR", &c.Model.HouseholdLabor)
	e.bool("REFRESH_LABOR", &c.Model.RefreshLabor)
	e.string("CAPITAL_POLICY", &c.Model.CapitalPolicy)

	e.int("ROUNDS", &c.Run.Rounds)
	e.int64("SEED", &c.Run.Seed)

	e.string("DATABASE", &c.Output.Database)
	e.list("KAFKA_BROKERS", &c.Output.KafkaBrokers)
	e.string("KAFKA_TOPIC", &c.Output.KafkaTopic)
	e.string("LOG_LEVEL", &c.Output.LogLevel)

	return e.err
}

// envReader keeps the first parse error and skips the rest.
type envReader struct {
	lookup LookupFunc
	err    error
}

func (e *envReader) get(name string) (string, bool) {
	if e.err != nil {
		return "", false
	}
	v, ok := e.lookup(EnvPrefix + name)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return strings.TrimSpace(v), true
}

func (e *envReader) fail(name, value string, err error) {
	e.err = fmt.Errorf("env %s%s=%q: %w", EnvPrefix, name, value, err)
}

func (e *envReader) string(name string, dst *string) {
	if v, ok := e.get(name); ok {
		*dst = v
	}
}

func (e *envReader) int(name string, dst *int) {
	if v, ok := e.get(name); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			e.fail(name, v, err)
			return
		}
		*dst = n
	}
}

func (e *envReader) int64(name string, dst *int64) {
	if v, ok := e.get(name); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			e.fail(name, v, err)
			return
		}
		*dst = n
	}
}

func (e *envReader) float(name string, dst *float64) {
	if v, ok := e.get(name); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			e.fail(name, v, err)
			return
		}
		*dst = f
	}
}

func (e *envReader) bool(name string, dst *bool) {
	if v, ok := e.get(name); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			e.fail(name, v, err)
			return
		}
		*dst = b
	}
}

func (e *envReader) list(name string, dst *[]string) {
	if v, ok := e.get(name); ok {
		var out []string
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		*dst = out
	}
}
