package config

import (
	"os"
	"strings"
	"time"

	"codeberg.org/mutker/carbonwise/internal/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultLogPath    = "run_log.jsonl"
	DefaultPrice      = 0.25
	DefaultLogLevel   = "warning"
	DefaultInterval   = time.Second
	DefaultDBPath     = "carbonwise.db"
	DefaultEnvPrefix  = "CARBONWISE"
	DefaultConfigName = "carbonwise"
	DefaultCPUPIdle   = 5.0
	DefaultCPUPMax    = 20.0
	DefaultCPUGamma   = 1.3
)

type Config struct {
	LogPath    string        `mapstructure:"log_path"`
	Price      float64       `mapstructure:"kwh_eur"`
	CountryISO string        `mapstructure:"country_iso"`
	LogLevel   string        `mapstructure:"log_level"`
	Debug      bool          `mapstructure:"debug"`
	Verbose    bool          `mapstructure:"verbose"`
	Meter      MeterConfig   `mapstructure:"meter"`
	Store      StoreConfig   `mapstructure:"store"`
	Publish    PublishConfig `mapstructure:"publish"`
}

type MeterConfig struct {
	Sources  []string      `mapstructure:"sources"`
	Interval time.Duration `mapstructure:"interval"`
	CPU      CPUModel      `mapstructure:"cpu"`
}

// CPUModel holds the coefficients of the process CPU power model.
// PIdle and PMax are Watts, Gamma is the utilization exponent.
type CPUModel struct {
	PIdle float64 `mapstructure:"p_idle"`
	PMax  float64 `mapstructure:"p_max"`
	Gamma float64 `mapstructure:"gamma"`
}

type StoreConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	DBPath  string `mapstructure:"db_path"`
}

type PublishConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Region    string `mapstructure:"region"`
	Bucket    string `mapstructure:"bucket"`
	Prefix    string `mapstructure:"prefix"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

// flagKeys maps persistent flag names to configuration keys
var flagKeys = map[string]string{
	"log":       "log_path",
	"kwh-eur":   "kwh_eur",
	"country":   "country_iso",
	"log-level": "log_level",
	"debug":     "debug",
	"verbose":   "verbose",
}

// Load reads configuration from defaults, the config file, the environment and
// the given flag set, in increasing order of precedence. flags may be nil.
func Load(flags *pflag.FlagSet, opts ...Option) (*Config, error) {
	errFactory := errors.New()

	o := &options{
		configPath: os.Getenv(DefaultEnvPrefix + "_CONFIG"),
		envPrefix:  DefaultEnvPrefix,
	}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
		}
	}

	v := viper.New()
	setDefaults(v)

	if o.configPath != "" {
		v.SetConfigFile(o.configPath)
	} else {
		v.SetConfigName(DefaultConfigName)
		v.SetConfigType("toml")
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(dir + "/carbonwise")
		}
		v.AddConfigPath("/etc")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, errFactory.Wrap(errors.ErrReadConfig, err)
		}
	}

	v.SetEnvPrefix(o.envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := bindEnv(v, o.envPrefix); err != nil {
		return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, errFactory.Wrap(errors.ErrBindFlags, err)
				}
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
	}

	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_path", DefaultLogPath)
	v.SetDefault("kwh_eur", DefaultPrice)
	v.SetDefault("country_iso", "")
	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("debug", false)
	v.SetDefault("verbose", false)
	v.SetDefault("meter.sources", []string{SourceRAPL, SourceNVML, SourceCPU})
	v.SetDefault("meter.interval", DefaultInterval)
	v.SetDefault("meter.cpu.p_idle", DefaultCPUPIdle)
	v.SetDefault("meter.cpu.p_max", DefaultCPUPMax)
	v.SetDefault("meter.cpu.gamma", DefaultCPUGamma)
	v.SetDefault("store.enabled", false)
	v.SetDefault("store.db_path", DefaultDBPath)
	v.SetDefault("publish.endpoint", "")
	v.SetDefault("publish.access_key", "")
	v.SetDefault("publish.secret_key", "")
	v.SetDefault("publish.region", "us-east-1")
	v.SetDefault("publish.bucket", "carbonwise-reports")
	v.SetDefault("publish.prefix", "")
	v.SetDefault("publish.use_ssl", true)
}

// bindEnv registers the names that do not follow the prefix_key convention.
// CODECARBON_COUNTRY_ISO_CODE is honoured so existing setups keep their override.
func bindEnv(v *viper.Viper, prefix string) error {
	if err := v.BindEnv("log_path", prefix+"_LOG", prefix+"_LOG_PATH"); err != nil {
		return err
	}

	return v.BindEnv("country_iso", prefix+"_COUNTRY_ISO", "CODECARBON_COUNTRY_ISO_CODE")
}

func (c *Config) normalize() {
	c.CountryISO = strings.ToUpper(strings.TrimSpace(c.CountryISO))
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))

	if c.Debug {
		c.LogLevel = string(LogLevelDebug)
	} else if c.Verbose && c.LogLevel == string(LogLevelWarning) {
		c.LogLevel = string(LogLevelInfo)
	}

	sources := make([]string, 0, len(c.Meter.Sources))
	for _, s := range c.Meter.Sources {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			sources = append(sources, s)
		}
	}
	c.Meter.Sources = sources
}

// Validate checks the loaded configuration
func (c *Config) Validate() error {
	errFactory := errors.New()

	if !LogLevel(c.LogLevel).IsValid() {
		return errFactory.WithData(errors.ErrInvalidLogLevel, c.LogLevel)
	}

	if c.Price < 0 {
		return errFactory.WithData(errors.ErrInvalidPrice, c.Price)
	}

	if strings.TrimSpace(c.LogPath) == "" {
		return errFactory.WithMessage(errors.ErrInvalidConfig, "log_path is required")
	}

	if c.Meter.Interval <= 0 {
		return errFactory.WithData(errors.ErrInvalidInterval, c.Meter.Interval)
	}

	for _, s := range c.Meter.Sources {
		switch s {
		case SourceRAPL, SourceNVML, SourceCPU:
		default:
			return errFactory.WithMessage(errors.ErrInvalidConfig, "unknown meter source: "+s)
		}
	}

	if c.Meter.CPU.PMax < c.Meter.CPU.PIdle {
		return errFactory.WithMessage(errors.ErrInvalidConfig, "meter.cpu.p_max must be >= meter.cpu.p_idle")
	}

	if c.Store.Enabled && strings.TrimSpace(c.Store.DBPath) == "" {
		return errFactory.WithMessage(errors.ErrInvalidConfig, "store.db_path is required when store is enabled")
	}

	return nil
}
