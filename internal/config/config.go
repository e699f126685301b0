// Package config loads and validates the collective configuration. All
// configuration problems are setup defects and fail the run before any
// data is touched.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	billing "vzev-billing/internal/billing/domain"
	"vzev-billing/internal/calendar"
	masterdata "vzev-billing/internal/masterdata/domain"
)

const monthLayout = "2006-01"

// Settings holds runtime paths and endpoints.
type Settings struct {
	CSVDirectory    string `yaml:"csv_directory"`
	OutputDirectory string `yaml:"output_directory"`
	// DatabaseURL selects the postgres reading store; empty runs in-memory.
	DatabaseURL string `yaml:"database_url"`
	MetricsAddr string `yaml:"metrics_addr"`
}

// Collective holds the billing parameters shared by all members.
type Collective struct {
	Name            string  `yaml:"name"`
	Timezone        string  `yaml:"timezone"`
	BillingInterval string  `yaml:"billing_interval"`
	PeriodStart     string  `yaml:"period_start"`
	PeriodEnd       string  `yaml:"period_end"`
	LocalRate       float64 `yaml:"local_rate"`
	BKWBuyRate      float64 `yaml:"bkw_buy_rate"`
	BKWSellRate     float64 `yaml:"bkw_sell_rate"`
	Currency        string  `yaml:"currency"`
}

// MeterConfig is one meter entry under a member.
type MeterConfig struct {
	ExternalID   string `yaml:"external_id"`
	Name         string `yaml:"name"`
	IsProduction bool   `yaml:"is_production"`
	IsVirtual    bool   `yaml:"is_virtual"`
}

// MemberConfig is one member entry.
type MemberConfig struct {
	ID        string        `yaml:"id"`
	FirstName string        `yaml:"first_name"`
	LastName  string        `yaml:"last_name"`
	Street    string        `yaml:"street"`
	Zip       string        `yaml:"zip"`
	City      string        `yaml:"city"`
	Canton    string        `yaml:"canton"`
	IsHost    bool          `yaml:"is_host"`
	Meters    []MeterConfig `yaml:"meters"`
}

// Config is the root configuration object.
type Config struct {
	Settings   Settings       `yaml:"settings"`
	Collective Collective     `yaml:"collective"`
	Members    []MemberConfig `yaml:"members"`
}

// Load reads and validates path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg := &Config{
		Settings: Settings{
			CSVDirectory:    "./data",
			OutputDirectory: "./output",
		},
		Collective: Collective{
			Timezone:        "Europe/Zurich",
			BillingInterval: string(calendar.IntervalMonthly),
			Currency:        "CHF",
		},
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Collective.Name == "" {
		return errors.New("config: collective name is required")
	}
	if !c.Interval().Valid() {
		return fmt.Errorf("config: %w: %q", calendar.ErrUnknownIntervalKind, c.Collective.BillingInterval)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	start, end, err := c.Period()
	if err != nil {
		return err
	}
	if end.Before(start) {
		return fmt.Errorf("config: %w: %s..%s", calendar.ErrInvalidRange, start, end)
	}
	if err := c.Rates().Validate(); err != nil {
		return err
	}
	if _, err := c.Graph(); err != nil {
		return err
	}
	return nil
}

// Location resolves the configured time zone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Collective.Timezone)
	if err != nil {
		return nil, fmt.Errorf("config: time zone %q: %w", c.Collective.Timezone, err)
	}
	return loc, nil
}

// Interval returns the configured billing interval kind.
func (c *Config) Interval() calendar.IntervalKind {
	return calendar.IntervalKind(c.Collective.BillingInterval)
}

// Period parses the configured overall period bounds (inclusive months).
func (c *Config) Period() (calendar.Month, calendar.Month, error) {
	start, err := parseMonth(c.Collective.PeriodStart)
	if err != nil {
		return calendar.Month{}, calendar.Month{}, fmt.Errorf("config: period_start: %w", err)
	}
	end, err := parseMonth(c.Collective.PeriodEnd)
	if err != nil {
		return calendar.Month{}, calendar.Month{}, fmt.Errorf("config: period_end: %w", err)
	}
	return start, end, nil
}

// Rates returns the configured flat rates.
func (c *Config) Rates() billing.Rates {
	return billing.Rates{
		LocalRate:   decimal.NewFromFloat(c.Collective.LocalRate),
		BKWBuyRate:  decimal.NewFromFloat(c.Collective.BKWBuyRate),
		BKWSellRate: decimal.NewFromFloat(c.Collective.BKWSellRate),
		Currency:    c.Collective.Currency,
	}
}

// Graph builds and validates the member/meter topology.
func (c *Config) Graph() (*masterdata.Graph, error) {
	members := make([]masterdata.Member, 0, len(c.Members))
	for _, mc := range c.Members {
		member := masterdata.Member{
			ID:        mc.ID,
			FirstName: mc.FirstName,
			LastName:  mc.LastName,
			Street:    mc.Street,
			Zip:       mc.Zip,
			City:      mc.City,
			Canton:    mc.Canton,
			IsHost:    mc.IsHost,
		}
		for _, meterCfg := range mc.Meters {
			member.Meters = append(member.Meters, masterdata.Meter{
				ExternalID:   meterCfg.ExternalID,
				Name:         meterCfg.Name,
				MemberID:     mc.ID,
				IsProduction: meterCfg.IsProduction,
				IsVirtual:    meterCfg.IsVirtual,
			})
		}
		members = append(members, member)
	}
	return masterdata.NewGraph(members)
}

func parseMonth(value string) (calendar.Month, error) {
	t, err := time.Parse(monthLayout, value)
	if err != nil {
		return calendar.Month{}, fmt.Errorf("expected YYYY-MM, got %q", value)
	}
	return calendar.Month{Year: t.Year(), Month: t.Month()}, nil
}
