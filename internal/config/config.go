// Package config provides configuration management using Viper
package config

import (
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// Environment types
const (
	Development = "development"
	Production  = "production"
	Test        = "test"
)

// LogLevel represents the logging level for the application
type LogLevel string

// Available log levels
const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// Config holds all configuration parameters for the application
type Config struct {
	// Application settings
	AppName     string   `mapstructure:"appname"`
	Environment string   `mapstructure:"environment"`
	LogLevel    LogLevel `mapstructure:"loglevel"`

	// Upstream insights API
	APIBaseURL        string `mapstructure:"apibaseurl"`
	APIVersion        string `mapstructure:"apiversion"`
	RequestTimeoutSec int    `mapstructure:"requesttimeoutsec"`

	// Rate budget (rolling windows)
	HourlyCallCeiling int `mapstructure:"hourlycallceiling"`
	DailyCallCeiling  int `mapstructure:"dailycallceiling"`

	// Retry policy
	RetryMaxAttempts int     `mapstructure:"retrymaxattempts"`
	RetryBaseDelayMs int     `mapstructure:"retrybasedelayms"`
	RetryMultiplier  float64 `mapstructure:"retrymultiplier"`
	RetryMaxDelayMs  int     `mapstructure:"retrymaxdelayms"`

	// Circuit breaker
	BreakerFailureThreshold int `mapstructure:"breakerfailurethreshold"`
	BreakerCooldownSec      int `mapstructure:"breakercooldownsec"`

	// Response cache
	CacheTTLSec int `mapstructure:"cachettlsec"`

	// Pagination
	MaxPages         int `mapstructure:"maxpages"`
	PageSize         int `mapstructure:"pagesize"`
	InterPageDelayMs int `mapstructure:"interpagedelayms"`

	// Creative enrichment fan-out
	EnrichBatchSize    int `mapstructure:"enrichbatchsize"`
	EnrichBatchDelayMs int `mapstructure:"enrichbatchdelayms"`

	// Gap severity thresholds (days)
	GapMinorDays    int `mapstructure:"gapminordays"`
	GapMajorDays    int `mapstructure:"gapmajordays"`
	GapCriticalDays int `mapstructure:"gapcriticaldays"`
	GapLookbackDays int `mapstructure:"gaplookbackdays"`
	MinGapDays      int `mapstructure:"mingapdays"`

	// Delivery intensity bucket thresholds (impressions)
	IntensityVeryLowMax int64 `mapstructure:"intensityverylowmax"`
	IntensityLowMax     int64 `mapstructure:"intensitylowmax"`
	IntensityMediumMax  int64 `mapstructure:"intensitymediummax"`
	IntensityHighMax    int64 `mapstructure:"intensityhighmax"`

	// Anomaly detection thresholds
	FrequencyCeiling       float64 `mapstructure:"frequencyceiling"`
	CTRDropMultiplier      float64 `mapstructure:"ctrdropmultiplier"`
	SpendSpikeMultiplier   float64 `mapstructure:"spendspikemultiplier"`
	AnomalyConsecutiveDays int     `mapstructure:"anomalyconsecutivedays"`
	IntermittentWindowDays int     `mapstructure:"intermittentwindowdays"`
	IntermittentMinActive  int     `mapstructure:"intermittentminactive"`
	IntermittentMaxActive  int     `mapstructure:"intermittentmaxactive"`

	// Storage (persistence collaborator used by the sync command)
	StoragePath  string `mapstructure:"storagepath"`
	DatabaseName string `mapstructure:"-"` // Derived from other settings

	// Logging settings
	LogsDirectory    string `mapstructure:"logsdir"`
	LogsMaxSizeInMb  int    `mapstructure:"logsmaxsizeinmb"`
	LogsMaxBackups   int    `mapstructure:"logsmaxbackups"`
	LogsMaxAgeInDays int    `mapstructure:"logsmaxageindays"`
}

var (
	cfg  *Config
	once sync.Once
)

// GetConfig returns the application configuration
func GetConfig() *Config {
	once.Do(func() {
		v := viper.New()

		// Set defaults
		v.SetDefault("appname", "adinsights")
		v.SetDefault("environment", Development)
		v.SetDefault("loglevel", string(LogLevelDebug))
		v.SetDefault("apibaseurl", "https://graph.facebook.com")
		v.SetDefault("apiversion", "v23.0")
		v.SetDefault("requesttimeoutsec", 30)
		v.SetDefault("hourlycallceiling", 200)
		v.SetDefault("dailycallceiling", 1000)
		v.SetDefault("retrymaxattempts", 3)
		v.SetDefault("retrybasedelayms", 1000)
		v.SetDefault("retrymultiplier", 2.0)
		v.SetDefault("retrymaxdelayms", 30000)
		v.SetDefault("breakerfailurethreshold", 5)
		v.SetDefault("breakercooldownsec", 60)
		v.SetDefault("cachettlsec", 300)
		v.SetDefault("maxpages", 100)
		v.SetDefault("pagesize", 500)
		v.SetDefault("interpagedelayms", 2000)
		v.SetDefault("enrichbatchsize", 25)
		v.SetDefault("enrichbatchdelayms", 100)
		v.SetDefault("gapminordays", 1)
		v.SetDefault("gapmajordays", 3)
		v.SetDefault("gapcriticaldays", 7)
		v.SetDefault("gaplookbackdays", 7)
		v.SetDefault("mingapdays", 1)
		v.SetDefault("intensityverylowmax", 100)
		v.SetDefault("intensitylowmax", 1000)
		v.SetDefault("intensitymediummax", 10000)
		v.SetDefault("intensityhighmax", 100000)
		v.SetDefault("frequencyceiling", 3.5)
		v.SetDefault("ctrdropmultiplier", 0.5)
		v.SetDefault("spendspikemultiplier", 2.0)
		v.SetDefault("anomalyconsecutivedays", 2)
		v.SetDefault("intermittentwindowdays", 7)
		v.SetDefault("intermittentminactive", 2)
		v.SetDefault("intermittentmaxactive", 5)
		v.SetDefault("storagepath", "storage")
		v.SetDefault("logsdir", "logs")
		v.SetDefault("logsmaxsizeinmb", 20)
		v.SetDefault("logsmaxbackups", 10)
		v.SetDefault("logsmaxageindays", 30)

		// Bind environment variables
		v.BindEnv("appname", "ADINSIGHTS_APP_NAME")
		v.BindEnv("environment", "ADINSIGHTS_ENV")
		v.BindEnv("loglevel", "ADINSIGHTS_LOG_LEVEL")
		v.BindEnv("apibaseurl", "ADINSIGHTS_API_BASE_URL")
		v.BindEnv("apiversion", "ADINSIGHTS_API_VERSION")
		v.BindEnv("requesttimeoutsec", "ADINSIGHTS_REQUEST_TIMEOUT_SEC")
		v.BindEnv("hourlycallceiling", "ADINSIGHTS_HOURLY_CALL_CEILING")
		v.BindEnv("dailycallceiling", "ADINSIGHTS_DAILY_CALL_CEILING")
		v.BindEnv("retrymaxattempts", "ADINSIGHTS_RETRY_MAX_ATTEMPTS")
		v.BindEnv("retrybasedelayms", "ADINSIGHTS_RETRY_BASE_DELAY_MS")
		v.BindEnv("retrymultiplier", "ADINSIGHTS_RETRY_MULTIPLIER")
		v.BindEnv("retrymaxdelayms", "ADINSIGHTS_RETRY_MAX_DELAY_MS")
		v.BindEnv("breakerfailurethreshold", "ADINSIGHTS_BREAKER_FAILURE_THRESHOLD")
		v.BindEnv("breakercooldownsec", "ADINSIGHTS_BREAKER_COOLDOWN_SEC")
		v.BindEnv("cachettlsec", "ADINSIGHTS_CACHE_TTL_SEC")
		v.BindEnv("maxpages", "ADINSIGHTS_MAX_PAGES")
		v.BindEnv("pagesize", "ADINSIGHTS_PAGE_SIZE")
		v.BindEnv("interpagedelayms", "ADINSIGHTS_INTER_PAGE_DELAY_MS")
		v.BindEnv("enrichbatchsize", "ADINSIGHTS_ENRICH_BATCH_SIZE")
		v.BindEnv("enrichbatchdelayms", "ADINSIGHTS_ENRICH_BATCH_DELAY_MS")
		v.BindEnv("gapminordays", "ADINSIGHTS_GAP_MINOR_DAYS")
		v.BindEnv("gapmajordays", "ADINSIGHTS_GAP_MAJOR_DAYS")
		v.BindEnv("gapcriticaldays", "ADINSIGHTS_GAP_CRITICAL_DAYS")
		v.BindEnv("gaplookbackdays", "ADINSIGHTS_GAP_LOOKBACK_DAYS")
		v.BindEnv("mingapdays", "ADINSIGHTS_MIN_GAP_DAYS")
		v.BindEnv("intensityverylowmax", "ADINSIGHTS_INTENSITY_VERY_LOW_MAX")
		v.BindEnv("intensitylowmax", "ADINSIGHTS_INTENSITY_LOW_MAX")
		v.BindEnv("intensitymediummax", "ADINSIGHTS_INTENSITY_MEDIUM_MAX")
		v.BindEnv("intensityhighmax", "ADINSIGHTS_INTENSITY_HIGH_MAX")
		v.BindEnv("frequencyceiling", "ADINSIGHTS_FREQUENCY_CEILING")
		v.BindEnv("ctrdropmultiplier", "ADINSIGHTS_CTR_DROP_MULTIPLIER")
		v.BindEnv("spendspikemultiplier", "ADINSIGHTS_SPEND_SPIKE_MULTIPLIER")
		v.BindEnv("anomalyconsecutivedays", "ADINSIGHTS_ANOMALY_CONSECUTIVE_DAYS")
		v.BindEnv("intermittentwindowdays", "ADINSIGHTS_INTERMITTENT_WINDOW_DAYS")
		v.BindEnv("intermittentminactive", "ADINSIGHTS_INTERMITTENT_MIN_ACTIVE")
		v.BindEnv("intermittentmaxactive", "ADINSIGHTS_INTERMITTENT_MAX_ACTIVE")
		v.BindEnv("storagepath", "ADINSIGHTS_STORAGE_PATH")
		v.BindEnv("logsdir", "ADINSIGHTS_LOGS_DIR")
		v.BindEnv("logsmaxsizeinmb", "ADINSIGHTS_LOGS_MAX_SIZE_IN_MB")
		v.BindEnv("logsmaxbackups", "ADINSIGHTS_LOGS_MAX_BACKUPS")
		v.BindEnv("logsmaxageindays", "ADINSIGHTS_LOGS_MAX_AGE_IN_DAYS")

		cfg = &Config{}
		if err := v.Unmarshal(cfg); err != nil {
			log.Fatalf("config: failed to unmarshal configuration: %v", err)
		}

		// Validate
		if err := cfg.validate(); err != nil {
			log.Fatalf("config: invalid configuration: %v", err)
		}

		// Set derived values
		cfg.DatabaseName = cfg.GetDatabasePath()
	})
	return cfg
}

// validate checks the configuration for errors
func (c *Config) validate() error {
	validEnvs := map[string]bool{
		Development: true,
		Production:  true,
		Test:        true,
	}
	if !validEnvs[c.Environment] {
		return fmt.Errorf("invalid environment: %s", c.Environment)
	}

	if c.HourlyCallCeiling <= 0 || c.DailyCallCeiling <= 0 {
		return fmt.Errorf("call ceilings must be positive")
	}
	if c.DailyCallCeiling < c.HourlyCallCeiling {
		return fmt.Errorf("daily call ceiling must be >= hourly call ceiling")
	}
	if c.RetryMaxAttempts < 1 {
		return fmt.Errorf("retry max attempts must be >= 1")
	}
	if c.RetryMultiplier < 1.0 {
		return fmt.Errorf("retry multiplier must be >= 1.0")
	}
	if c.GapMinorDays > c.GapMajorDays || c.GapMajorDays > c.GapCriticalDays {
		return fmt.Errorf("gap severity thresholds must be ordered minor <= major <= critical")
	}
	if c.IntermittentMinActive > c.IntermittentMaxActive {
		return fmt.Errorf("intermittent active-day bounds must be ordered min <= max")
	}

	return nil
}

// GetDatabasePath returns the appropriate database path based on environment
func (c *Config) GetDatabasePath() string {
	if c.DatabaseName == "" {
		c.DatabaseName = filepath.Join(c.StoragePath,
			fmt.Sprintf("%s-%s.db", c.AppName, c.Environment))
	}
	return c.DatabaseName
}

// RequestTimeout returns the upstream request timeout as a duration.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSec) * time.Second
}

// BreakerCooldown returns the circuit breaker cooldown as a duration.
func (c *Config) BreakerCooldown() time.Duration {
	return time.Duration(c.BreakerCooldownSec) * time.Second
}

// CacheTTL returns the response cache TTL as a duration.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSec) * time.Second
}

// InterPageDelay returns the courtesy delay applied between page fetches.
func (c *Config) InterPageDelay() time.Duration {
	return time.Duration(c.InterPageDelayMs) * time.Millisecond
}

// EnrichBatchDelay returns the delay between creative enrichment batches.
func (c *Config) EnrichBatchDelay() time.Duration {
	return time.Duration(c.EnrichBatchDelayMs) * time.Millisecond
}

// IsDevelopment returns true if the environment is development
func (c *Config) IsDevelopment() bool {
	return c.Environment == Development
}

// IsProduction returns true if the environment is production
func (c *Config) IsProduction() bool {
	return c.Environment == Production
}

// IsTest returns true if the environment is test
func (c *Config) IsTest() bool {
	return c.Environment == Test
}

// GetLogLevel returns the log level as a string.
func (c *Config) GetLogLevel() string {
	return string(c.LogLevel)
}

// Reset clears the cached configuration; intended for tests.
func Reset() {
	once = sync.Once{}
	cfg = nil
}
