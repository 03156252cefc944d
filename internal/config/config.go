package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rojenarda/electricity-data-fetching-tr/internal/series"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	envPrefix = "ELECDATA"

	DefaultShiftDays = 2
)

// Config defines the application configuration structure
type Config struct {
	Market   MarketConfig   `mapstructure:"market" yaml:"market"`
	Dataset  DatasetConfig  `mapstructure:"dataset" yaml:"dataset"`
	Exchange ExchangeConfig `mapstructure:"exchange" yaml:"exchange"`
	Calendar CalendarConfig `mapstructure:"calendar" yaml:"calendar"`
	Schedule ScheduleConfig `mapstructure:"schedule" yaml:"schedule"`
	Recorder RecorderConfig `mapstructure:"recorder" yaml:"recorder"`
	Metrics  MetricsConfig  `mapstructure:"metrics" yaml:"metrics"`
}

// MarketConfig defines the market-data source and its series catalog
type MarketConfig struct {
	Timezone              string         `mapstructure:"timezone" yaml:"timezone"`
	RequestTimeoutSeconds int            `mapstructure:"request_timeout_seconds" yaml:"request_timeout_seconds"`
	MaxWindowDays         int            `mapstructure:"max_window_days" yaml:"max_window_days"`
	PublishHour           int            `mapstructure:"publish_hour" yaml:"publish_hour"`
	Series                []SeriesConfig `mapstructure:"series" yaml:"series"`
	Ratios                []RatioConfig  `mapstructure:"ratios" yaml:"ratios"`
}

// SeriesConfig defines one market-data endpoint
type SeriesConfig struct {
	Name        string                 `mapstructure:"name" yaml:"name"`
	URL         string                 `mapstructure:"url" yaml:"url"`
	Kind        string                 `mapstructure:"kind" yaml:"kind,omitempty"`
	DateKey     string                 `mapstructure:"date_key" yaml:"date_key,omitempty"`
	LagHours    int                    `mapstructure:"lag_hours" yaml:"lag_hours"`
	Columns     []ColumnConfig         `mapstructure:"columns" yaml:"columns"`
	ExtraParams map[string]interface{} `mapstructure:"extra_params" yaml:"extra_params,omitempty"`
}

// ColumnConfig maps one response key to a dataset column
type ColumnConfig struct {
	Key  string `mapstructure:"key" yaml:"key"`
	Name string `mapstructure:"name" yaml:"name"`
}

// RatioConfig defines a series derived by dividing two others
type RatioConfig struct {
	Name        string `mapstructure:"name" yaml:"name"`
	Numerator   string `mapstructure:"numerator" yaml:"numerator"`
	Denominator string `mapstructure:"denominator" yaml:"denominator"`
	LagHours    int    `mapstructure:"lag_hours" yaml:"lag_hours"`
}

// DatasetConfig defines the output dataset
type DatasetConfig struct {
	Dir            string         `mapstructure:"dir" yaml:"dir"`
	Series         []string       `mapstructure:"series" yaml:"series"`
	Currency       CurrencyConfig `mapstructure:"currency" yaml:"currency"`
	ParquetEnabled bool           `mapstructure:"parquet_enabled" yaml:"parquet_enabled"`
	ParquetDir     string         `mapstructure:"parquet_dir" yaml:"parquet_dir"`
}

// CurrencyConfig names the columns taking part in currency normalisation
type CurrencyConfig struct {
	BaseColumn   string   `mapstructure:"base_column" yaml:"base_column"`
	TargetColumn string   `mapstructure:"target_column" yaml:"target_column"`
	Convert      []string `mapstructure:"convert" yaml:"convert"`
}

// ExchangeConfig defines the fallback exchange-rate service
type ExchangeConfig struct {
	BaseURL               string `mapstructure:"base_url" yaml:"base_url"`
	AccessKey             string `mapstructure:"access_key" yaml:"access_key"`
	ShiftDays             int    `mapstructure:"shift_days" yaml:"shift_days"`
	BaseCurrency          string `mapstructure:"base_currency" yaml:"base_currency"`
	TargetCurrency        string `mapstructure:"target_currency" yaml:"target_currency"`
	RequestTimeoutSeconds int    `mapstructure:"request_timeout_seconds" yaml:"request_timeout_seconds"`
}

// CalendarConfig defines the holiday calendar
type CalendarConfig struct {
	ExtraHolidays []string `mapstructure:"extra_holidays" yaml:"extra_holidays"`
}

// ScheduleConfig defines the periodic update
type ScheduleConfig struct {
	Cron           string `mapstructure:"cron" yaml:"cron"`
	File           string `mapstructure:"file" yaml:"file"`
	ReplaceLastDay bool   `mapstructure:"replace_last_day" yaml:"replace_last_day"`
	RunOnStart     bool   `mapstructure:"run_on_start" yaml:"run_on_start"`
}

// RecorderConfig defines where run history is kept. An empty path disables it.
type RecorderConfig struct {
	SQLitePath string `mapstructure:"sqlite_path" yaml:"sqlite_path"`
}

// MetricsConfig defines the prometheus endpoint of the scheduler
type MetricsConfig struct {
	ListenAddr string `mapstructure:"listen_addr" yaml:"listen_addr"`
}

// LoadConfig loads configuration from file and overrides with environment variables
func LoadConfig(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)

	// Set up mappings for nested config keys to env vars
	v.BindEnv("market.timezone", "ELECDATA_TIMEZONE")
	v.BindEnv("market.request_timeout_seconds", "ELECDATA_REQUEST_TIMEOUT")
	v.BindEnv("market.max_window_days", "ELECDATA_MAX_WINDOW_DAYS")
	v.BindEnv("market.publish_hour", "ELECDATA_PUBLISH_HOUR")

	v.BindEnv("dataset.dir", "ELECDATA_DATASET_DIR")
	v.BindEnv("dataset.parquet_enabled", "ELECDATA_PARQUET_ENABLED")
	v.BindEnv("dataset.parquet_dir", "ELECDATA_PARQUET_DIR")

	v.BindEnv("exchange.base_url", "ELECDATA_EXCHANGE_URL")
	v.BindEnv("exchange.access_key", "ELECDATA_EXCHANGE_ACCESS_KEY")
	v.BindEnv("exchange.shift_days", "ELECDATA_EXCHANGE_SHIFT_DAYS")
	v.BindEnv("exchange.base_currency", "ELECDATA_BASE_CURRENCY")
	v.BindEnv("exchange.target_currency", "ELECDATA_TARGET_CURRENCY")
	v.BindEnv("exchange.request_timeout_seconds", "ELECDATA_EXCHANGE_TIMEOUT")

	v.BindEnv("schedule.cron", "ELECDATA_SCHEDULE")
	v.BindEnv("schedule.file", "ELECDATA_SCHEDULE_FILE")
	v.BindEnv("schedule.replace_last_day", "ELECDATA_REPLACE_LAST_DAY")
	v.BindEnv("schedule.run_on_start", "ELECDATA_RUN_ON_START")

	v.BindEnv("recorder.sqlite_path", "ELECDATA_SQLITE_PATH")
	v.BindEnv("metrics.listen_addr", "ELECDATA_METRICS_ADDR")

	// First attempt to read the config file
	var configFileFound bool
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok || os.IsNotExist(err) {
			fmt.Printf("Config file not found at %s, falling back to environment variables\n", path)
		} else {
			return Config{}, fmt.Errorf("error reading config file %s: %w", path, err)
		}
	} else {
		configFileFound = true
		fmt.Printf("Loaded config from %s, will override with environment variables\n", v.ConfigFileUsed())
	}

	// Environment variables must take precedence over file values
	v.AutomaticEnv()

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return Config{}, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// zero and empty are valid for these keys, so only an absent key gets the default
	if !v.IsSet("exchange.shift_days") {
		config.Exchange.ShiftDays = DefaultShiftDays
	}
	if !v.IsSet("market.publish_hour") {
		config.Market.PublishHour = series.DefaultPublishHour
	}
	currency := defaultCurrency()
	if !v.IsSet("dataset.currency.base_column") {
		config.Dataset.Currency.BaseColumn = currency.BaseColumn
	}
	if !v.IsSet("dataset.currency.target_column") {
		config.Dataset.Currency.TargetColumn = currency.TargetColumn
	}
	if !v.IsSet("dataset.currency.convert") {
		config.Dataset.Currency.Convert = currency.Convert
	}
	applyDefaults(&config)

	if configFileFound {
		fmt.Println("Configuration loaded from file and overridden with environment variables")
	} else {
		fmt.Println("Configuration loaded from environment variables with defaults applied")
	}

	return config, nil
}

// Default returns the configuration used when nothing is set
func Default() Config {
	config := Config{
		Market:   MarketConfig{PublishHour: series.DefaultPublishHour},
		Dataset:  DatasetConfig{Currency: defaultCurrency()},
		Exchange: ExchangeConfig{ShiftDays: DefaultShiftDays},
	}
	applyDefaults(&config)
	return config
}

// applyDefaults sets default values for any config values not set from file or environment
func applyDefaults(config *Config) {
	// Market defaults
	if config.Market.Timezone == "" {
		config.Market.Timezone = "Europe/Istanbul"
	}
	if config.Market.RequestTimeoutSeconds == 0 {
		config.Market.RequestTimeoutSeconds = 30
	}
	if config.Market.MaxWindowDays == 0 {
		config.Market.MaxWindowDays = 1095
	}
	if len(config.Market.Series) == 0 {
		config.Market.Series = defaultSeries()
	}
	if len(config.Market.Ratios) == 0 {
		config.Market.Ratios = []RatioConfig{{
			Name:        "ForecastedDemandSupply",
			Numerator:   "ForecastedDemand",
			Denominator: "ForecastedSupply",
			LagHours:    24,
		}}
	}

	// Dataset defaults
	if config.Dataset.Dir == "" {
		config.Dataset.Dir = "./data"
	}
	if len(config.Dataset.Series) == 0 {
		config.Dataset.Series = []string{"DayAheadPrices", "BalancingMarketPrices", "ForecastedDemandSupply"}
	}
	if config.Dataset.ParquetDir == "" {
		config.Dataset.ParquetDir = "./parquet_data"
	}

	// Exchange defaults
	if config.Exchange.BaseURL == "" {
		config.Exchange.BaseURL = "http://api.exchangeratesapi.io/v1"
	}
	if config.Exchange.BaseCurrency == "" {
		config.Exchange.BaseCurrency = "TRY"
	}
	if config.Exchange.TargetCurrency == "" {
		config.Exchange.TargetCurrency = "USD"
	}
	if config.Exchange.RequestTimeoutSeconds == 0 {
		config.Exchange.RequestTimeoutSeconds = 30
	}

	// Schedule defaults
	if config.Schedule.Cron == "" {
		config.Schedule.Cron = "30 14 * * *"
	}
	if config.Schedule.File == "" {
		config.Schedule.File = filepath.Join(config.Dataset.Dir, "dataset_electricity.csv")
	}

	// Metrics defaults
	if config.Metrics.ListenAddr == "" {
		config.Metrics.ListenAddr = ":9108"
	}
}

// defaultCurrency converts day-ahead TRY prices to USD with the implied factor
func defaultCurrency() CurrencyConfig {
	return CurrencyConfig{
		BaseColumn:   "PriceTry",
		TargetColumn: "Price",
		Convert:      []string{"BalancingMarketPrice"},
	}
}

func defaultSeries() []SeriesConfig {
	const base = "https://seffaflik.epias.com.tr/electricity-service/v1"
	return []SeriesConfig{
		{
			Name: "DayAheadPrices",
			URL:  base + "/markets/dam/data/mcp",
			Kind: string(series.KindDayAhead),
			Columns: []ColumnConfig{
				{Key: "price", Name: "PriceTry"},
				{Key: "priceUsd", Name: "Price"},
			},
		},
		{
			Name:     "BalancingMarketPrices",
			URL:      base + "/markets/bpm/data/system-marginal-price",
			LagHours: 48,
			Columns:  []ColumnConfig{{Key: "systemMarginalPrice", Name: "BalancingMarketPrice"}},
		},
		{
			Name:     "ForecastedDemand",
			URL:      base + "/consumption/data/load-estimation-plan",
			LagHours: 24,
			Columns:  []ColumnConfig{{Key: "lep", Name: "ForecastedDemand"}},
		},
		{
			Name:        "ForecastedSupply",
			URL:         base + "/generation/data/aic",
			LagHours:    24,
			Columns:     []ColumnConfig{{Key: "toplam", Name: "ForecastedSupply"}},
			ExtraParams: map[string]interface{}{"region": "TR1"},
		},
	}
}

// Validate checks the settings every command needs. requireExchange adds
// the checks for commands that fetch and convert prices.
func (c *Config) Validate(requireExchange bool) error {
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.Market.MaxWindowDays <= 0 {
		return fmt.Errorf("market.max_window_days must be positive, got %d", c.Market.MaxWindowDays)
	}
	if c.Market.PublishHour < 0 || c.Market.PublishHour > 23 {
		return fmt.Errorf("market.publish_hour must be between 0 and 23, got %d", c.Market.PublishHour)
	}
	for _, s := range c.Market.Series {
		switch series.Kind(s.Kind) {
		case "", series.KindPlain, series.KindDayAhead:
		default:
			return fmt.Errorf("series %s has unknown kind %q", s.Name, s.Kind)
		}
	}
	if len(c.Dataset.Series) == 0 {
		return fmt.Errorf("dataset.series cannot be empty")
	}
	if requireExchange && c.ConvertsCurrency() && c.Exchange.AccessKey == "" {
		return fmt.Errorf("exchange.access_key is required (set ELECDATA_EXCHANGE_ACCESS_KEY)")
	}
	return nil
}

// ConvertsCurrency reports whether currency normalisation is configured
func (c *Config) ConvertsCurrency() bool {
	return c.Dataset.Currency.BaseColumn != "" && c.Dataset.Currency.TargetColumn != ""
}

// Location loads the configured timezone
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Market.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid market.timezone %q: %w", c.Market.Timezone, err)
	}
	return loc, nil
}

// WindowSpan returns the maximum request span
func (c *Config) WindowSpan() time.Duration {
	return time.Duration(c.Market.MaxWindowDays) * 24 * time.Hour
}

// SeriesDefinitions converts the catalog to series definitions
func (c *Config) SeriesDefinitions() ([]series.Definition, []series.RatioDefinition) {
	defs := make([]series.Definition, 0, len(c.Market.Series))
	for _, s := range c.Market.Series {
		cols := make([]series.ColumnMapping, 0, len(s.Columns))
		for _, col := range s.Columns {
			cols = append(cols, series.ColumnMapping{Key: col.Key, Name: col.Name})
		}
		defs = append(defs, series.Definition{
			Name:        s.Name,
			URL:         s.URL,
			DateKey:     s.DateKey,
			Columns:     cols,
			ExtraParams: s.ExtraParams,
			LagHours:    s.LagHours,
			Kind:        series.Kind(s.Kind),
		})
	}

	ratios := make([]series.RatioDefinition, 0, len(c.Market.Ratios))
	for _, r := range c.Market.Ratios {
		ratios = append(ratios, series.RatioDefinition{
			Name:        r.Name,
			Numerator:   r.Numerator,
			Denominator: r.Denominator,
			LagHours:    r.LagHours,
		})
	}
	return defs, ratios
}

// Save persists the configuration to the specified YAML file path
func (c *Config) Save(configPath string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	if dir := filepath.Dir(configPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config to file '%s': %w", configPath, err)
	}

	return nil
}
