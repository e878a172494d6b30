package ops

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"quoter/internal/schema"
	"quoter/internal/strategy"
)

// Environment variables carrying credentials. They never live in the
// config file.
const (
	EnvUsername = "QUOTER_USERNAME"
	EnvAPIKey   = "QUOTER_API_KEY"
)

// FileConfig mirrors the JSON config layout.
type FileConfig struct {
	Exchange  ExchangeConfig  `json:"exchange"`
	Dispatch  DispatchConfig  `json:"dispatch"`
	Rate      RateConfig      `json:"rate"`
	Strategy  StrategyConfig  `json:"strategy"`
	Journal   JournalConfig   `json:"journal"`
	Profiling ProfilingConfig `json:"profiling"`
}

// ExchangeConfig locates the exchange endpoints.
type ExchangeConfig struct {
	HTTPEndpoint string `json:"httpEndpoint"`
	WSEndpoint   string `json:"wsEndpoint"`
}

// DispatchConfig bounds the inbound event queues.
type DispatchConfig struct {
	QueueDepth int `json:"queueDepth"`
}

// RateConfig defines the outbound rate budget and pending queue.
type RateConfig struct {
	Limit             int  `json:"limit"`
	WindowMillis      int  `json:"windowMillis"`
	QueueDepth        int  `json:"queueDepth"`
	DrainOnReconnect  bool `json:"drainOnReconnect"`
	SendTimeoutMillis int  `json:"sendTimeoutMillis"`
}

// StrategyConfig parameterizes the reference strategy.
type StrategyConfig struct {
	Instruments       []string `json:"instruments"`
	Quantity          string   `json:"quantity"`
	HalfSpread        string   `json:"halfSpread"`
	RequoteThreshold  string   `json:"requoteThreshold"`
	MinIntervalMillis int      `json:"minIntervalMillis"`
	Priority          int32    `json:"priority"`
}

// JournalConfig locates the order journal database. An empty DSN disables
// journaling.
type JournalConfig struct {
	DSN string `json:"dsn"`
}

// ProfilingConfig enables continuous profiling when an address is set.
type ProfilingConfig struct {
	ServerAddress string `json:"serverAddress"`
}

// RateSpec is the resolved rate budget.
type RateSpec struct {
	Window           time.Duration
	Limit            int
	QueueDepth       int
	DrainOnReconnect bool
	SendTimeout      time.Duration
}

// Exchange is the resolved exchange access definition, credentials included.
type Exchange struct {
	HTTPEndpoint string
	WSEndpoint   string
	Username     string
	APIKey       string
}

// Loaded is the resolved configuration ready for use. Any defect in the
// file or the credential environment fails Load; the runtime never starts
// on a partially valid configuration.
type Loaded struct {
	Exchange      Exchange
	QueueDepth    int
	Rate          RateSpec
	Strategy      strategy.NaiveConfig
	JournalDSN    string
	ProfilingAddr string
}

// Load reads a JSON config file, resolves credentials from the
// environment, and validates everything.
func Load(path string) (Loaded, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Loaded{}, err
	}
	var cfg FileConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Loaded{}, err
	}

	exchange, err := resolveExchange(cfg.Exchange)
	if err != nil {
		return Loaded{}, err
	}
	rate, err := resolveRate(cfg.Rate)
	if err != nil {
		return Loaded{}, err
	}
	strat, err := resolveStrategy(cfg.Strategy)
	if err != nil {
		return Loaded{}, err
	}

	queueDepth := cfg.Dispatch.QueueDepth
	if queueDepth == 0 {
		queueDepth = 1024
	}
	if queueDepth < 0 {
		return Loaded{}, fmt.Errorf("dispatch queueDepth must be > 0")
	}

	return Loaded{
		Exchange:      exchange,
		QueueDepth:    queueDepth,
		Rate:          rate,
		Strategy:      strat,
		JournalDSN:    cfg.Journal.DSN,
		ProfilingAddr: cfg.Profiling.ServerAddress,
	}, nil
}

func resolveExchange(cfg ExchangeConfig) (Exchange, error) {
	if cfg.HTTPEndpoint == "" {
		return Exchange{}, fmt.Errorf("exchange httpEndpoint is empty")
	}
	if cfg.WSEndpoint == "" {
		return Exchange{}, fmt.Errorf("exchange wsEndpoint is empty")
	}
	username := os.Getenv(EnvUsername)
	if username == "" {
		return Exchange{}, fmt.Errorf("%s is not set", EnvUsername)
	}
	apiKey := os.Getenv(EnvAPIKey)
	if apiKey == "" {
		return Exchange{}, fmt.Errorf("%s is not set", EnvAPIKey)
	}
	return Exchange{
		HTTPEndpoint: cfg.HTTPEndpoint,
		WSEndpoint:   cfg.WSEndpoint,
		Username:     username,
		APIKey:       apiKey,
	}, nil
}

func resolveRate(cfg RateConfig) (RateSpec, error) {
	if cfg.Limit < 0 {
		return RateSpec{}, fmt.Errorf("rate limit must be >= 0")
	}
	if cfg.WindowMillis <= 0 && cfg.Limit > 0 {
		return RateSpec{}, fmt.Errorf("rate windowMillis must be > 0 when a limit is set")
	}
	if cfg.QueueDepth < 0 {
		return RateSpec{}, fmt.Errorf("rate queueDepth must be >= 0")
	}
	spec := RateSpec{
		Window:           time.Duration(cfg.WindowMillis) * time.Millisecond,
		Limit:            cfg.Limit,
		QueueDepth:       cfg.QueueDepth,
		DrainOnReconnect: cfg.DrainOnReconnect,
		SendTimeout:      time.Duration(cfg.SendTimeoutMillis) * time.Millisecond,
	}
	if spec.QueueDepth == 0 {
		spec.QueueDepth = 256
	}
	return spec, nil
}

func resolveStrategy(cfg StrategyConfig) (strategy.NaiveConfig, error) {
	if len(cfg.Instruments) == 0 {
		return strategy.NaiveConfig{}, fmt.Errorf("strategy instruments is empty")
	}
	quantity, err := parsePositiveDecimal("strategy quantity", cfg.Quantity)
	if err != nil {
		return strategy.NaiveConfig{}, err
	}
	halfSpread, err := parsePositiveDecimal("strategy halfSpread", cfg.HalfSpread)
	if err != nil {
		return strategy.NaiveConfig{}, err
	}

	threshold := decimal.Zero
	if cfg.RequoteThreshold != "" {
		threshold, err = decimal.NewFromString(cfg.RequoteThreshold)
		if err != nil {
			return strategy.NaiveConfig{}, fmt.Errorf("strategy requoteThreshold: %w", err)
		}
		if threshold.Sign() < 0 {
			return strategy.NaiveConfig{}, fmt.Errorf("strategy requoteThreshold must be >= 0")
		}
	}

	return strategy.NaiveConfig{
		Instruments:      cfg.Instruments,
		Quantity:         quantity,
		HalfSpread:       halfSpread,
		RequoteThreshold: threshold,
		MinInterval:      time.Duration(cfg.MinIntervalMillis) * time.Millisecond,
		Priority:         schema.Priority(cfg.Priority),
	}, nil
}

func parsePositiveDecimal(name, raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, fmt.Errorf("%s is empty", name)
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: %w", name, err)
	}
	if d.Sign() <= 0 {
		return decimal.Zero, fmt.Errorf("%s must be > 0", name)
	}
	return d, nil
}
