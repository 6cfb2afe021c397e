package config

import (
	"errors"
	"io/fs"
	"net"
	"path/filepath"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvStaging    = "staging"
	EnvProduction = "production"
)

const (
	StoreFile     = "file"
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

type TwilioConfig struct {
	AccountSID string `mapstructure:"account_sid"`
	AuthToken  string `mapstructure:"auth_token"`
	FromPhone  string `mapstructure:"from_phone"`
	BaseURL    string `mapstructure:"base_url"`
}

// Enabled reports whether any Twilio credential is set. Partial
// credentials fail validation.
func (t TwilioConfig) Enabled() bool {
	return t.AccountSID != "" || t.AuthToken != "" || t.FromPhone != ""
}

func (t TwilioConfig) Validate() error {
	if !t.Enabled() {
		return nil
	}
	return validation.ValidateStruct(&t,
		validation.Field(&t.AccountSID, validation.Required),
		validation.Field(&t.AuthToken, validation.Required),
		validation.Field(&t.FromPhone, validation.Required),
		validation.Field(&t.BaseURL, is.URL),
	)
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

func (k KafkaConfig) Enabled() bool { return len(k.Brokers) > 0 }

func (k KafkaConfig) Validate() error {
	return validation.ValidateStruct(&k,
		validation.Field(&k.Brokers, validation.Each(validation.Required, validation.By(validateHostPort))),
		validation.Field(&k.Topic, validation.When(k.Enabled(), validation.Required)),
	)
}

type Config struct {
	Env                 string        `mapstructure:"env"`
	APIAddr             string        `mapstructure:"api_addr"` // empty disables the status API
	LogDir              string        `mapstructure:"log_dir"`
	LogLevel            string        `mapstructure:"log_level"`
	LogConsole          bool          `mapstructure:"log_console"`
	Store               string        `mapstructure:"store"`
	DataDir             string        `mapstructure:"data_dir"`
	LogsDir             string        `mapstructure:"logs_dir"` // check log streams, not the worker log
	DatabaseURL         string        `mapstructure:"database_url"`
	CheckInterval       time.Duration `mapstructure:"check_interval"`
	RotationInterval    time.Duration `mapstructure:"rotation_interval"`
	MaxTimeout          time.Duration `mapstructure:"max_timeout"`
	MaxConcurrentChecks int           `mapstructure:"max_concurrent_checks"`
	HashingSecret       string        `mapstructure:"hashing_secret"`
	MaxChecks           int           `mapstructure:"max_checks"`
	SlackWebhook        string        `mapstructure:"slack_webhook"`
	Twilio              TwilioConfig  `mapstructure:"twilio"`
	Kafka               KafkaConfig   `mapstructure:"kafka"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", EnvStaging)
	v.SetDefault("api_addr", "127.0.0.1:8080")
	v.SetDefault("log_dir", "logs")
	v.SetDefault("log_level", LogLevelInfo)
	v.SetDefault("log_console", false)
	v.SetDefault("store", StoreFile)
	v.SetDefault("data_dir", ".data")
	v.SetDefault("logs_dir", ".logs")
	v.SetDefault("database_url", "")
	v.SetDefault("check_interval", time.Minute)
	v.SetDefault("rotation_interval", 24*time.Hour)
	v.SetDefault("max_timeout", 5*time.Second)
	v.SetDefault("max_concurrent_checks", 50)
	v.SetDefault("hashing_secret", "")
	v.SetDefault("max_checks", 5)
	v.SetDefault("slack_webhook", "")
	v.SetDefault("twilio.account_sid", "")
	v.SetDefault("twilio.auth_token", "")
	v.SetDefault("twilio.from_phone", "")
	v.SetDefault("twilio.base_url", "https://api.twilio.com/2010-04-01")
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "uptime-alerts")
}

// Load reads configuration from dirs (default "." and "./config"). A .env
// file in any of them is loaded first without overriding the environment;
// config.yaml is optional. Environment variables win over the file, with
// nested keys spelled TWILIO_ACCOUNT_SID, KAFKA_BROKERS and so on.
func Load(dirs ...string) (*Config, error) {
	if len(dirs) == 0 {
		dirs = []string{".", "./config"}
	}
	for _, d := range dirs {
		if err := godotenv.Load(filepath.Join(d, ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, d := range dirs {
		v.AddConfigPath(d)
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Env, validation.Required, validation.In(EnvStaging, EnvProduction)),
		validation.Field(&c.APIAddr, validation.By(validateHostPort)),
		validation.Field(&c.LogDir, validation.Required),
		validation.Field(&c.LogLevel, validation.Required,
			validation.In(LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError)),
		validation.Field(&c.Store, validation.Required, validation.In(StoreFile, StoreMemory, StorePostgres)),
		validation.Field(&c.DataDir, validation.When(c.Store == StoreFile, validation.Required)),
		validation.Field(&c.LogsDir, validation.Required),
		validation.Field(&c.DatabaseURL, validation.When(c.Store == StorePostgres, validation.Required)),
		validation.Field(&c.CheckInterval, validation.Min(time.Duration(0))),
		validation.Field(&c.RotationInterval, validation.Min(time.Duration(0))),
		validation.Field(&c.MaxTimeout, validation.Required, validation.Min(time.Millisecond)),
		validation.Field(&c.MaxConcurrentChecks, validation.Required, validation.Min(1)),
		validation.Field(&c.HashingSecret, validation.When(c.Env == EnvProduction, validation.Required)),
		validation.Field(&c.MaxChecks, validation.Required, validation.Min(1)),
		validation.Field(&c.SlackWebhook, is.URL),
		validation.Field(&c.Twilio),
		validation.Field(&c.Kafka),
	)
}

// Channels lists the enabled alert channels in delivery order.
func (c *Config) Channels() []string {
	var out []string
	if c.Twilio.Enabled() {
		out = append(out, "twilio")
	}
	if c.SlackWebhook != "" {
		out = append(out, "slack")
	}
	if c.Kafka.Enabled() {
		out = append(out, "kafka")
	}
	return out
}

func validateHostPort(value interface{}) error {
	addr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}
	if addr == "" {
		return nil
	}

	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return validation.NewError("validation_invalid_hostport", "must be in host:port format")
	}
	if port == "" {
		return validation.NewError("validation_invalid_port", "port cannot be empty")
	}
	if host != "" {
		if err := is.Host.Validate(host); err != nil {
			return validation.NewError("validation_invalid_host", "invalid host")
		}
	}
	return nil
}
