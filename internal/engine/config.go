// Package engine drives the trading loop: it pulls signal points from a
// market data source, evaluates the strategy, routes signals through the
// trade manager and aggregates performance. The backtest and live variants
// differ only in pacing, staleness handling and side effects.
package engine

import (
	"encoding/json"
	"reflect"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"
	"github.com/moznion/go-optional"
	"github.com/quantframe/papertrade/internal/position"
	"github.com/quantframe/papertrade/internal/types"
	"github.com/quantframe/papertrade/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config parameterizes both engine variants. Durations accept Go duration
// strings in YAML ("30m", "1h").
type Config struct {
	InitialCapital float64 `yaml:"initial_capital" json:"initial_capital" jsonschema:"title=Initial Capital,description=Starting cash for the simulated account,minimum=0" validate:"gt=0"`
	CommissionRate float64 `yaml:"commission_rate" json:"commission_rate" jsonschema:"title=Commission Rate,description=Commission charged as notional times rate,minimum=0,maximum=1" validate:"gte=0,lt=1"`
	PositionRatio  float64 `yaml:"position_ratio" json:"position_ratio" jsonschema:"title=Position Ratio,description=Default fraction of equity targeted per symbol,minimum=0,maximum=1" validate:"gt=0,lte=1"`

	Sizing position.SizingConfig `yaml:"position_sizing" json:"position_sizing" jsonschema:"title=Position Sizing,description=Risk budget and rebalance policy"`

	// TCooldown is the minimum spacing between executed intraday trades
	// per symbol
	TCooldown time.Duration `yaml:"t_cooldown" json:"t_cooldown" jsonschema:"title=T Cooldown,description=Minimum spacing between executed intraday trades per symbol"`

	Interval types.Interval `yaml:"interval" json:"interval" jsonschema:"title=Interval,description=Bar interval driving the strategy,enum=1m,enum=5m,enum=15m,enum=30m,enum=1h,enum=1d" validate:"required,oneof=1m 5m 15m 30m 1h 1d"`
	// HistoryCount is the window length a live poll requests
	HistoryCount int `yaml:"history_count" json:"history_count" jsonschema:"title=History Count,description=Window length requested per live poll,minimum=1"`

	// PollInterval and RequestDelay pace the live loop only
	PollInterval time.Duration `yaml:"poll_interval" json:"poll_interval" jsonschema:"title=Poll Interval,description=Rest between live polling cycles"`
	RequestDelay time.Duration `yaml:"request_delay" json:"request_delay" jsonschema:"title=Request Delay,description=Spacing between per-symbol quote requests"`

	// StartTime bounds trading; earlier bars only warm the strategy window
	StartTime optional.Option[time.Time] `yaml:"start_time" json:"start_time" jsonschema:"title=Start Time,description=Optional first traded timestamp"`
	EndTime   optional.Option[time.Time] `yaml:"end_time" json:"end_time" jsonschema:"title=End Time,description=Optional last traded timestamp"`

	Symbols    []string          `yaml:"symbols" json:"symbols" jsonschema:"title=Symbols,description=Symbols to trade" validate:"min=1"`
	StockNames map[string]string `yaml:"stock_names" json:"stock_names" jsonschema:"title=Stock Names,description=Display names per symbol"`
	LotSizes   map[string]int64  `yaml:"lot_sizes" json:"lot_sizes" jsonschema:"title=Lot Sizes,description=Minimum tradable unit per symbol"`

	// SnapshotPath is where the live engine persists the account
	SnapshotPath string `yaml:"snapshot_path" json:"snapshot_path" jsonschema:"title=Snapshot Path,description=Account snapshot file for live restarts"`
	// WebhookURL receives live trade notifications; empty logs instead
	WebhookURL string `yaml:"webhook_url" json:"webhook_url" jsonschema:"title=Webhook URL,description=Notification webhook for live signals"`
}

// DefaultConfig returns the config both engines start from before YAML
// overrides.
func DefaultConfig() Config {
	return Config{
		InitialCapital: 100000,
		CommissionRate: 0.001,
		PositionRatio:  0.2,
		Sizing:         position.DefaultSizingConfig(),
		TCooldown:      30 * time.Minute,
		Interval:       types.Interval1d,
		HistoryCount:   100,
		PollInterval:   60 * time.Second,
		RequestDelay:   500 * time.Millisecond,
		StartTime:      optional.None[time.Time](),
		EndTime:        optional.None[time.Time](),
		SnapshotPath:   "simulate/account.json",
	}
}

// UnmarshalYAML implements custom unmarshaling for Config: optional times
// map through pointers and durations accept duration strings.
func (c *Config) UnmarshalYAML(unmarshal func(interface{}) error) error {
	// Pointer fields distinguish an absent key from an explicit zero so a
	// zero-valid value (commission_rate: 0) is never replaced by a default.
	type plainConfig struct {
		InitialCapital *float64               `yaml:"initial_capital"`
		CommissionRate *float64               `yaml:"commission_rate"`
		PositionRatio  *float64               `yaml:"position_ratio"`
		Sizing         *position.SizingConfig `yaml:"position_sizing"`
		TCooldown      string                 `yaml:"t_cooldown"`
		Interval       types.Interval         `yaml:"interval"`
		HistoryCount   *int                   `yaml:"history_count"`
		PollInterval   string                 `yaml:"poll_interval"`
		RequestDelay   string                 `yaml:"request_delay"`
		StartTime      *time.Time             `yaml:"start_time"`
		EndTime        *time.Time             `yaml:"end_time"`
		Symbols        []string               `yaml:"symbols"`
		StockNames     map[string]string      `yaml:"stock_names"`
		LotSizes       map[string]int64       `yaml:"lot_sizes"`
		SnapshotPath   string                 `yaml:"snapshot_path"`
		WebhookURL     string                 `yaml:"webhook_url"`
	}

	var plain plainConfig
	if err := unmarshal(&plain); err != nil {
		return err
	}

	if plain.InitialCapital != nil {
		c.InitialCapital = *plain.InitialCapital
	}

	if plain.CommissionRate != nil {
		c.CommissionRate = *plain.CommissionRate
	}

	if plain.PositionRatio != nil {
		c.PositionRatio = *plain.PositionRatio
	}

	if plain.Sizing != nil {
		c.Sizing = *plain.Sizing
	}

	if plain.Interval != "" {
		c.Interval = plain.Interval
	}

	if plain.HistoryCount != nil {
		c.HistoryCount = *plain.HistoryCount
	}

	for _, d := range []struct {
		raw string
		dst *time.Duration
	}{
		{plain.TCooldown, &c.TCooldown},
		{plain.PollInterval, &c.PollInterval},
		{plain.RequestDelay, &c.RequestDelay},
	} {
		if d.raw == "" {
			continue
		}

		parsed, err := time.ParseDuration(d.raw)
		if err != nil {
			return errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "invalid duration %q", d.raw)
		}

		*d.dst = parsed
	}

	if plain.StartTime != nil {
		c.StartTime = optional.Some(*plain.StartTime)
	}

	if plain.EndTime != nil {
		c.EndTime = optional.Some(*plain.EndTime)
	}

	if plain.Symbols != nil {
		c.Symbols = plain.Symbols
	}

	if plain.StockNames != nil {
		c.StockNames = plain.StockNames
	}

	if plain.LotSizes != nil {
		c.LotSizes = plain.LotSizes
	}

	if plain.SnapshotPath != "" {
		c.SnapshotPath = plain.SnapshotPath
	}

	if plain.WebhookURL != "" {
		c.WebhookURL = plain.WebhookURL
	}

	return nil
}

// ParseConfig parses a YAML document over the defaults and validates the
// result.
func ParseConfig(content string) (Config, error) {
	config := DefaultConfig()

	if err := yaml.Unmarshal([]byte(content), &config); err != nil {
		return Config{}, errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to parse config", err)
	}

	if err := config.Validate(); err != nil {
		return Config{}, err
	}

	return config, nil
}

// Validate checks the struct tags plus the cross-field rules the tags can't
// express.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid config", err)
	}

	if c.StartTime.IsSome() && c.EndTime.IsSome() && c.EndTime.Unwrap().Before(c.StartTime.Unwrap()) {
		return errors.New(errors.ErrCodeInvalidConfiguration, "end_time is before start_time")
	}

	return nil
}

// GenerateSchema builds the JSON schema describing the config file format.
func (c *Config) GenerateSchema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		ExpandedStruct:             true,
		AllowAdditionalProperties:  false,
		Mapper: func(t reflect.Type) *jsonschema.Schema {
			if t.String() == "optional.Option[time.Time]" {
				return &jsonschema.Schema{
					Type:   "string",
					Format: "date-time",
				}
			}

			if t == reflect.TypeOf(time.Duration(0)) {
				return &jsonschema.Schema{
					Type:        "string",
					Description: "Go duration string, e.g. 30m",
				}
			}

			return nil
		},
	}

	schema := reflector.Reflect(c)
	schema.Title = "papertrade-engine-config"
	schema.Description = "Configuration schema for the paper-trading engines"
	schema.Version = "http://json-schema.org/draft-07/schema#"

	return schema
}

// GenerateSchemaJSON renders the config schema as indented JSON.
func (c *Config) GenerateSchemaJSON() (string, error) {
	schemaBytes, err := json.MarshalIndent(c.GenerateSchema(), "", "  ")
	if err != nil {
		return "", err
	}

	return string(schemaBytes), nil
}
