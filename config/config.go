package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Dataset  DatasetConfig  `koanf:"dataset"`
	Database DatabaseConfig `koanf:"database"`
	Model    ModelConfig    `koanf:"model"`
	Redis    RedisConfig    `koanf:"redis"`
	CORS     CORSConfig     `koanf:"cors"`
	Logging  LoggingConfig  `koanf:"logging"`
}

type ServerConfig struct {
	Port           int           `koanf:"port" validate:"min=1,max=65535"`
	RequestTimeout time.Duration `koanf:"request_timeout" validate:"gt=0"`
	RateLimitRPS   float64       `koanf:"rate_limit_rps" validate:"gte=0"`
	RateLimitBurst int           `koanf:"rate_limit_burst" validate:"gte=0"`
}

type DatasetConfig struct {
	Source string `koanf:"source" validate:"oneof=csv postgres sqlite"`
	Path   string `koanf:"path"`
	Table  string `koanf:"table"`
}

type DatabaseConfig struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port" validate:"min=1,max=65535"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`
	Name     string `koanf:"name"`
	SSLMode  string `koanf:"sslmode"`
}

func (d DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
}

type ModelConfig struct {
	Path           string `koanf:"path" validate:"required"`
	VocabularyPath string `koanf:"vocabulary_path"`
	EncoderOrder   string `koanf:"encoder_order" validate:"oneof=first_occurrence sorted"`
}

type RedisConfig struct {
	Enabled   bool          `koanf:"enabled"`
	Host      string        `koanf:"host"`
	Port      int           `koanf:"port" validate:"min=1,max=65535"`
	Password  string        `koanf:"password"`
	DB        int           `koanf:"db" validate:"gte=0"`
	ResultTTL time.Duration `koanf:"result_ttl" validate:"gte=0"`
	Channel   string        `koanf:"channel" validate:"required"`
}

type CORSConfig struct {
	AllowedOrigins string `koanf:"allowed_origins"`
}

type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error"`
	Format string `koanf:"format" validate:"oneof=json console"`
}

// DefaultConfigPaths are searched in order when CONFIG_PATH is not set.
var DefaultConfigPaths = []string{"config.yaml", "config.yml"}

const ConfigPathEnvVar = "CONFIG_PATH"

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           8000,
			RequestTimeout: 30 * time.Second,
			RateLimitRPS:   20,
			RateLimitBurst: 40,
		},
		Dataset: DatasetConfig{
			Source: "csv",
			Path:   "CHLA_clean_data_2024_Appointments.csv",
			Table:  "appointments",
		},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "noshow",
			Password: "noshow_dev_password",
			Name:     "noshow",
			SSLMode:  "disable",
		},
		Model: ModelConfig{
			Path:         "random_forest_model.json",
			EncoderOrder: "first_occurrence",
		},
		Redis: RedisConfig{
			Enabled:   false,
			Host:      "localhost",
			Port:      6379,
			ResultTTL: 5 * time.Minute,
			Channel:   "noshow:runs",
		},
		CORS: CORSConfig{
			AllowedOrigins: "*",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// envMappings maps environment variables onto koanf paths. Variables not
// listed here are ignored.
var envMappings = map[string]string{
	"server_port":           "server.port",
	"request_timeout":       "server.request_timeout",
	"rate_limit_rps":        "server.rate_limit_rps",
	"rate_limit_burst":      "server.rate_limit_burst",
	"dataset_source":        "dataset.source",
	"dataset_path":          "dataset.path",
	"dataset_table":         "dataset.table",
	"db_host":               "database.host",
	"db_port":               "database.port",
	"db_user":               "database.user",
	"db_password":           "database.password",
	"db_name":               "database.name",
	"db_sslmode":            "database.sslmode",
	"model_path":            "model.path",
	"model_vocabulary_path": "model.vocabulary_path",
	"encoder_order":         "model.encoder_order",
	"redis_enabled":         "redis.enabled",
	"redis_host":            "redis.host",
	"redis_port":            "redis.port",
	"redis_password":        "redis.password",
	"redis_db":              "redis.db",
	"redis_result_ttl":      "redis.result_ttl",
	"redis_channel":         "redis.channel",
	"cors_allowed_origins":  "cors.allowed_origins",
	"log_level":             "logging.level",
	"log_format":            "logging.format",
}

func envTransform(key string) string {
	return envMappings[strings.ToLower(key)]
}

// LoadConfig layers defaults, an optional YAML file and environment variables,
// in increasing priority, then validates the result.
func LoadConfig() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

var validate = validator.New()

func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Dataset.Source != "postgres" && c.Dataset.Path == "" {
		return fmt.Errorf("dataset.path is required for source %q", c.Dataset.Source)
	}
	if c.Dataset.Source != "csv" && c.Dataset.Table == "" {
		return fmt.Errorf("dataset.table is required for source %q", c.Dataset.Source)
	}
	return nil
}
