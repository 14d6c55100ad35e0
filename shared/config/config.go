package config

import (
	"log"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// ProviderConfig holds the endpoint settings for one market-data source.
type ProviderConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	BaseURL string `mapstructure:"base_url"`
}

// ResolverConfig controls the provider fallback chain.
type ResolverConfig struct {
	MaxAttempts int     `mapstructure:"max_attempts"`
	BaseDelayMS int     `mapstructure:"base_delay_ms"`
	MaxDelayMS  int     `mapstructure:"max_delay_ms"`
	JitterRange float64 `mapstructure:"jitter_range"`
}

// GuardConfig controls the durable-store write gate.
type GuardConfig struct {
	MaxWriters  int `mapstructure:"max_writers"`
	MaxAttempts int `mapstructure:"max_attempts"`
	BaseDelayMS int `mapstructure:"base_delay_ms"`
	MaxDelayMS  int `mapstructure:"max_delay_ms"`
}

// TrackerConfig controls record updates and the retirement policy.
type TrackerConfig struct {
	RetireThresholdUSD float64 `mapstructure:"retire_threshold_usd"`
	RetireWindowMin    int     `mapstructure:"retire_window_min"`
}

// SchedulerConfig controls the periodic refresh cycle.
type SchedulerConfig struct {
	RefreshSpec     string  `mapstructure:"refresh_spec"`
	UserReloadSpec  string  `mapstructure:"user_reload_spec"`
	MinChangePct    float64 `mapstructure:"min_change_pct"`
	ItemPauseMS     int     `mapstructure:"item_pause_ms"`
	AlertMultiplier int     `mapstructure:"alert_multiplier"`
}

// Config defines the global configuration structure.
type Config struct {
	App struct {
		Port        string `mapstructure:"port"`
		Environment string `mapstructure:"environment"`
	} `mapstructure:"app"`

	Logging struct {
		Level string `mapstructure:"level"`
	} `mapstructure:"logging"`

	Providers map[string]ProviderConfig `mapstructure:"providers"`

	Resolver  ResolverConfig  `mapstructure:"resolver"`
	Guard     GuardConfig     `mapstructure:"guard"`
	Tracker   TrackerConfig   `mapstructure:"tracker"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
}

var (
	globalConfig *Config
	configLock   sync.RWMutex
)

func setDefaults() {
	viper.SetDefault("app.environment", "production")
	viper.SetDefault("logging.level", "info")

	viper.SetDefault("providers.dexscreener.enabled", true)
	viper.SetDefault("providers.dexscreener.base_url", "https://api.dexscreener.com")
	viper.SetDefault("providers.geckoterminal.enabled", true)
	viper.SetDefault("providers.geckoterminal.base_url", "https://api.geckoterminal.com/api/v2")
	viper.SetDefault("providers.solscan.enabled", true)
	viper.SetDefault("providers.solscan.base_url", "https://public-api.solscan.io")

	viper.SetDefault("resolver.max_attempts", 3)
	viper.SetDefault("resolver.base_delay_ms", 2000)
	viper.SetDefault("resolver.max_delay_ms", 30000)
	viper.SetDefault("resolver.jitter_range", 0.5)

	viper.SetDefault("guard.max_writers", 3)
	viper.SetDefault("guard.max_attempts", 4)
	viper.SetDefault("guard.base_delay_ms", 250)
	viper.SetDefault("guard.max_delay_ms", 5000)

	viper.SetDefault("tracker.retire_threshold_usd", 4000.0)
	viper.SetDefault("tracker.retire_window_min", 20)

	viper.SetDefault("scheduler.refresh_spec", "@every 5m")
	viper.SetDefault("scheduler.user_reload_spec", "@every 5m")
	viper.SetDefault("scheduler.min_change_pct", 0.3)
	viper.SetDefault("scheduler.item_pause_ms", 200)
	viper.SetDefault("scheduler.alert_multiplier", 2)
}

// LoadConfig loads configuration from the given file path and merges it with
// environment variables. Missing file is not fatal; defaults apply.
func LoadConfig(path string) (*Config, error) {
	log.Printf("Starting to load configuration from file: %s", path)

	viper.SetConfigFile(path)
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()
	viper.SetEnvPrefix("APP")

	viper.BindEnv("app.port", "PORT")
	viper.BindEnv("app.environment", "ENVIRONMENT")
	viper.BindEnv("logging.level", "LOG_LEVEL")

	setDefaults()

	var cfg Config
	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Warning: Could not read config file: %v", err)
	}
	if err := viper.Unmarshal(&cfg); err != nil {
		log.Printf("Error unmarshalling configuration: %v", err)
		return nil, err
	}

	log.Printf("Loaded configuration from file: %s", path)
	return &cfg, nil
}

// SetGlobalConfig sets the loaded configuration globally.
func SetGlobalConfig(cfg *Config) {
	configLock.Lock()
	defer configLock.Unlock()
	globalConfig = cfg
}

// GetGlobalConfig retrieves the globally set configuration.
func GetGlobalConfig() *Config {
	configLock.RLock()
	defer configLock.RUnlock()
	if globalConfig == nil {
		log.Println("GetGlobalConfig: Global configuration is nil.")
	}
	return globalConfig
}

// BaseDelay returns the resolver chain base delay as a duration.
func (c ResolverConfig) BaseDelay() time.Duration {
	return time.Duration(c.BaseDelayMS) * time.Millisecond
}

// MaxDelay returns the resolver chain delay cap as a duration.
func (c ResolverConfig) MaxDelay() time.Duration {
	return time.Duration(c.MaxDelayMS) * time.Millisecond
}

// RetireWindow returns the sustained low-cap window as a duration.
func (c TrackerConfig) RetireWindow() time.Duration {
	return time.Duration(c.RetireWindowMin) * time.Minute
}
