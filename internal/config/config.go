package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
)

type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	DBName          string        `yaml:"dbname"`
	SSLMode         string        `yaml:"sslmode"`
	MaxConns        int32         `yaml:"max_conns"`
	MinConns        int32         `yaml:"min_conns"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"`
	MigrationsPath  string        `yaml:"migrations_path"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// PlatformConfig addresses one of the commerce platform APIs.
type PlatformConfig struct {
	Domain     string `yaml:"domain"`
	Token      string `yaml:"token"`
	APIVersion string `yaml:"api_version"`
}

type GatewayConfig struct {
	KeyID        string `yaml:"key_id"`
	KeySecret    string `yaml:"key_secret"`
	BaseURL      string `yaml:"base_url"`
	MerchantName string `yaml:"merchant_name"`
}

type TrackingConfig struct {
	BaseURL           string        `yaml:"base_url"`
	Token             string        `yaml:"token"`
	CacheTTL          time.Duration `yaml:"cache_ttl"`
	PollInterval      time.Duration `yaml:"poll_interval"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
}

type NotifyConfig struct {
	Endpoint    string `yaml:"endpoint"`
	AccessKey   string `yaml:"access_key"`
	SellerEmail string `yaml:"seller_email"`
	FromName    string `yaml:"from_name"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

type CheckoutConfig struct {
	MaxAttributeLength int            `yaml:"max_attribute_length"`
	AttributeLimits    map[string]int `yaml:"attribute_limits"`
}

type Config struct {
	App struct {
		Name     string `yaml:"name"`
		Port     string `yaml:"port"`
		Env      string `yaml:"env"`
		LogLevel string `yaml:"log_level"`
	} `yaml:"app"`
	StoreBackend string         `yaml:"store_backend"`
	Postgres     PostgresConfig `yaml:"postgres"`
	Redis        RedisConfig    `yaml:"redis"`
	Storefront   PlatformConfig `yaml:"storefront"`
	Admin        PlatformConfig `yaml:"admin"`
	Gateway      GatewayConfig  `yaml:"gateway"`
	Tracking     TrackingConfig `yaml:"tracking"`
	Notify       NotifyConfig   `yaml:"notify"`
	Kafka        KafkaConfig    `yaml:"kafka"`
	Checkout     CheckoutConfig `yaml:"checkout"`
	PostalLookup struct {
		BaseURL string `yaml:"base_url"`
	} `yaml:"postal_lookup"`
}

// NewConfig reads .env (if present), then the YAML file named by CONFIG_FILE
// (if set), then applies environment overrides.
func NewConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Msg(".env not loaded")
	}

	cfg := defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func defaults() *Config {
	cfg := &Config{}
	cfg.App.Name = "checkout-service"
	cfg.App.Port = "8080"
	cfg.App.Env = "development"
	cfg.App.LogLevel = "info"
	cfg.StoreBackend = StoreMemory
	cfg.Postgres.SSLMode = "disable"
	cfg.Postgres.MaxConns = 10
	cfg.Postgres.MinConns = 2
	cfg.Postgres.MaxConnLifetime = 30 * time.Minute
	cfg.Postgres.MigrationsPath = "migrations"
	cfg.Redis.Prefix = "storefront"
	cfg.Storefront.APIVersion = "2024-04"
	cfg.Admin.APIVersion = "2024-04"
	cfg.Gateway.BaseURL = "https://api.razorpay.com/v1"
	cfg.Tracking.CacheTTL = 5 * time.Minute
	cfg.Tracking.PollInterval = 30 * time.Second
	cfg.Tracking.RequestsPerSecond = 2
	cfg.Notify.Endpoint = "https://api.web3forms.com/submit"
	cfg.Notify.FromName = "Storefront Orders"
	cfg.Kafka.Topic = "storefront.orders"
	cfg.Checkout.MaxAttributeLength = 100
	cfg.PostalLookup.BaseURL = "https://api.postalpincode.in"
	return cfg
}

func (c *Config) loadFile(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	if err := yaml.NewDecoder(file).Decode(c); err != nil {
		return fmt.Errorf("invalid config file: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() {
	setString(&c.App.Port, "APP_PORT")
	setString(&c.App.Env, "APP_ENV")
	setString(&c.App.LogLevel, "LOG_LEVEL")
	setString(&c.StoreBackend, "STORE_BACKEND")

	setString(&c.Postgres.Host, "DB_HOST")
	setString(&c.Postgres.Port, "DB_PORT")
	setString(&c.Postgres.User, "DB_USER")
	setString(&c.Postgres.Password, "DB_PASSWORD")
	setString(&c.Postgres.DBName, "DB_NAME")
	setString(&c.Postgres.SSLMode, "DB_SSLMODE")
	setString(&c.Postgres.MigrationsPath, "DB_MIGRATIONS_PATH")

	setString(&c.Redis.Addr, "REDIS_ADDR")
	setString(&c.Redis.Password, "REDIS_PASSWORD")
	setInt(&c.Redis.DB, "REDIS_DB")

	setString(&c.Storefront.Domain, "STOREFRONT_DOMAIN")
	setString(&c.Storefront.Token, "STOREFRONT_TOKEN")
	setString(&c.Storefront.APIVersion, "STOREFRONT_API_VERSION")
	setString(&c.Admin.Domain, "ADMIN_DOMAIN")
	setString(&c.Admin.Token, "ADMIN_TOKEN")
	setString(&c.Admin.APIVersion, "ADMIN_API_VERSION")

	setString(&c.Gateway.KeyID, "GATEWAY_KEY_ID")
	setString(&c.Gateway.KeySecret, "GATEWAY_KEY_SECRET")
	setString(&c.Gateway.BaseURL, "GATEWAY_BASE_URL")
	setString(&c.Gateway.MerchantName, "GATEWAY_MERCHANT_NAME")

	setString(&c.Tracking.BaseURL, "TRACKING_BASE_URL")
	setString(&c.Tracking.Token, "TRACKING_TOKEN")
	setDuration(&c.Tracking.CacheTTL, "TRACKING_CACHE_TTL")
	setDuration(&c.Tracking.PollInterval, "TRACKING_POLL_INTERVAL")
	if value := strings.TrimSpace(os.Getenv("TRACKING_RATE_LIMIT")); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil && parsed >= 0 {
			c.Tracking.RequestsPerSecond = parsed
		}
	}

	setString(&c.Notify.Endpoint, "NOTIFY_ENDPOINT")
	setString(&c.Notify.AccessKey, "NOTIFY_ACCESS_KEY")
	setString(&c.Notify.SellerEmail, "NOTIFY_SELLER_EMAIL")
	setString(&c.Notify.FromName, "NOTIFY_FROM_NAME")

	if brokers := strings.TrimSpace(os.Getenv("KAFKA_BROKERS")); brokers != "" {
		c.Kafka.Brokers = strings.Split(brokers, ",")
	}
	setString(&c.Kafka.Topic, "KAFKA_TOPIC")

	setInt(&c.Checkout.MaxAttributeLength, "CHECKOUT_MAX_ATTRIBUTE_LENGTH")
	setString(&c.PostalLookup.BaseURL, "POSTAL_LOOKUP_BASE_URL")
}

func (c *Config) Validate() error {
	if c.App.Port == "" {
		return errors.New("config: APP_PORT is required")
	}

	switch c.StoreBackend {
	case StoreMemory:
	case StorePostgres:
		missing := make([]string, 0)
		for name, value := range map[string]string{
			"DB_HOST":     c.Postgres.Host,
			"DB_PORT":     c.Postgres.Port,
			"DB_USER":     c.Postgres.User,
			"DB_PASSWORD": c.Postgres.Password,
			"DB_NAME":     c.Postgres.DBName,
		} {
			if value == "" {
				missing = append(missing, name)
			}
		}
		if len(missing) > 0 {
			sort.Strings(missing)
			return fmt.Errorf("config: postgres store requires %s", strings.Join(missing, ", "))
		}
	case StoreRedis:
		if c.Redis.Addr == "" {
			return errors.New("config: redis store requires REDIS_ADDR")
		}
	default:
		return fmt.Errorf("config: unknown store backend %q", c.StoreBackend)
	}

	if c.Tracking.CacheTTL <= 0 {
		return errors.New("config: tracking cache ttl must be positive")
	}

	return nil
}

func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

func setString(dst *string, key string) {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		*dst = value
	}
}

func setInt(dst *int, key string) {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			*dst = parsed
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil && parsed > 0 {
			*dst = parsed
		}
	}
}
