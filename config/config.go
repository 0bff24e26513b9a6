package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type Config struct {
	Env       string          `mapstructure:"env"`
	Port      string          `mapstructure:"port"`
	CronKey   string          `mapstructure:"cron_key"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Database  DatabaseConfig  `mapstructure:"database"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Payments  PaymentsConfig  `mapstructure:"payments"`
	Stripe    StripeConfig    `mapstructure:"stripe"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Receipts  ReceiptsConfig  `mapstructure:"receipts"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

type HTTPConfig struct {
	CORSAllowedOrigins string `mapstructure:"cors_allowed_origins"`
	TrustedProxies     string `mapstructure:"trusted_proxies"`
	MaxBodyBytes       int64  `mapstructure:"max_body_bytes"`
	RequestTimeoutSec  int    `mapstructure:"request_timeout_sec"`
}

type DatabaseConfig struct {
	Driver          string `mapstructure:"driver"`
	DSN             string `mapstructure:"dsn"`
	Host            string `mapstructure:"host"`
	Port            string `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Pass            string `mapstructure:"pass"`
	Name            string `mapstructure:"name"`
	Params          string `mapstructure:"params"`
	TLS             string `mapstructure:"tls"`
	TLSVerify       bool   `mapstructure:"tls_verify"`
	TLSCAPath       string `mapstructure:"tls_ca_path"`
	TLSClientCert   string `mapstructure:"tls_client_cert"`
	TLSClientKey    string `mapstructure:"tls_client_key"`
	ConnectRetries  int    `mapstructure:"connect_retries"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool   `mapstructure:"auto_migrate"`
}

type JWTConfig struct {
	Secret   string `mapstructure:"secret"`
	Audience string `mapstructure:"audience"`
	Issuer   string `mapstructure:"issuer"`
}

type RedisConfig struct {
	Addr string `mapstructure:"addr"`
	Pass string `mapstructure:"pass"`
	DB   int    `mapstructure:"db"`
}

type PaymentsConfig struct {
	FeeRate            string `mapstructure:"fee_rate"`
	MinAmount          string `mapstructure:"min_amount"`
	Currency           string `mapstructure:"currency"`
	DefaultExpiryHours int    `mapstructure:"default_expiry_hours"`
	MaxExpiryHours     int    `mapstructure:"max_expiry_hours"`
	PublicBaseURL      string `mapstructure:"public_base_url"`
	EnforceClientEmail bool   `mapstructure:"enforce_client_email"`
}

type StripeConfig struct {
	SecretKey     string `mapstructure:"secret_key"`
	WebhookSecret string `mapstructure:"webhook_secret"`
}

type KafkaConfig struct {
	Brokers string `mapstructure:"brokers"`
	Topic   string `mapstructure:"topic"`
}

type ReceiptsConfig struct {
	Bucket    string `mapstructure:"bucket"`
	Prefix    string `mapstructure:"prefix"`
	Region    string `mapstructure:"region"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
}

type RateLimitConfig struct {
	CreatePerWindow int `mapstructure:"create_per_window"`
	RedeemPerWindow int `mapstructure:"redeem_per_window"`
	WindowSeconds   int `mapstructure:"window_seconds"`
}

// env names stay compatible with existing deployments (DB_HOST, JWT_SECRET, ...).
var bindings = map[string]string{
	"env":                           "ENV",
	"port":                          "PORT",
	"cron_key":                      "CRON_KEY",
	"http.cors_allowed_origins":     "CORS_ALLOWED_ORIGINS",
	"http.trusted_proxies":          "TRUSTED_PROXIES",
	"http.max_body_bytes":           "MAX_BODY_BYTES",
	"http.request_timeout_sec":      "REQ_TIMEOUT_SEC",
	"database.driver":               "DB_DRIVER",
	"database.dsn":                  "DB_DSN",
	"database.host":                 "DB_HOST",
	"database.port":                 "DB_PORT",
	"database.user":                 "DB_USER",
	"database.pass":                 "DB_PASS",
	"database.name":                 "DB_NAME",
	"database.params":               "DB_PARAMS",
	"database.tls":                  "DB_TLS",
	"database.tls_verify":           "DB_TLS_VERIFY",
	"database.tls_ca_path":          "DB_TLS_CA_PATH",
	"database.tls_client_cert":      "DB_TLS_CLIENT_CERT",
	"database.tls_client_key":       "DB_TLS_CLIENT_KEY",
	"database.connect_retries":      "DB_CONNECT_RETRIES",
	"database.max_open_conns":       "DB_MAX_OPEN_CONNS",
	"database.max_idle_conns":       "DB_MAX_IDLE_CONNS",
	"database.conn_max_lifetime":    "DB_CONN_MAX_LIFETIME",
	"database.auto_migrate":         "DB_AUTO_MIGRATE",
	"jwt.secret":                    "JWT_SECRET",
	"jwt.audience":                  "JWT_AUD",
	"jwt.issuer":                    "JWT_ISS",
	"redis.addr":                    "REDIS_ADDR",
	"redis.pass":                    "REDIS_PASS",
	"redis.db":                      "REDIS_DB",
	"payments.fee_rate":             "FEE_RATE",
	"payments.min_amount":           "LINK_MIN_AMOUNT",
	"payments.currency":             "LINK_CURRENCY",
	"payments.default_expiry_hours": "LINK_DEFAULT_EXPIRY_HOURS",
	"payments.max_expiry_hours":     "LINK_MAX_EXPIRY_HOURS",
	"payments.public_base_url":      "PUBLIC_BASE_URL",
	"payments.enforce_client_email": "LINK_ENFORCE_CLIENT_EMAIL",
	"stripe.secret_key":             "STRIPE_SECRET_KEY",
	"stripe.webhook_secret":         "STRIPE_WEBHOOK_SECRET",
	"kafka.brokers":                 "KAFKA_BROKERS",
	"kafka.topic":                   "KAFKA_TOPIC",
	"receipts.bucket":               "RECEIPTS_BUCKET",
	"receipts.prefix":               "RECEIPTS_PREFIX",
	"receipts.region":               "RECEIPTS_REGION",
	"receipts.endpoint":             "RECEIPTS_ENDPOINT",
	"receipts.access_key":           "RECEIPTS_ACCESS_KEY_ID",
	"receipts.secret_key":           "RECEIPTS_SECRET_ACCESS_KEY",
	"rate_limit.create_per_window":  "RATE_LINK_CREATE",
	"rate_limit.redeem_per_window":  "RATE_LINK_REDEEM",
	"rate_limit.window_seconds":     "RATE_WINDOW_SECONDS",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "development")
	v.SetDefault("port", "8080")
	v.SetDefault("http.cors_allowed_origins", "http://localhost:3000,http://127.0.0.1:3000")
	v.SetDefault("http.max_body_bytes", 1<<20)
	v.SetDefault("http.request_timeout_sec", 10)
	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.host", "127.0.0.1")
	v.SetDefault("database.port", "3306")
	v.SetDefault("database.user", "root")
	v.SetDefault("database.name", "paylink")
	v.SetDefault("database.params", "charset=utf8mb4&parseTime=True&loc=UTC")
	v.SetDefault("database.tls", "true")
	v.SetDefault("database.connect_retries", 5)
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 25)
	v.SetDefault("database.conn_max_lifetime", 3600)
	v.SetDefault("payments.fee_rate", "0.05")
	v.SetDefault("payments.min_amount", "1.00")
	v.SetDefault("payments.currency", "usd")
	v.SetDefault("payments.default_expiry_hours", 24)
	v.SetDefault("payments.max_expiry_hours", 720)
	v.SetDefault("payments.public_base_url", "http://localhost:8080")
	v.SetDefault("payments.enforce_client_email", true)
	v.SetDefault("kafka.topic", "paylink.transactions")
	v.SetDefault("receipts.prefix", "receipts")
	v.SetDefault("receipts.region", "auto")
	v.SetDefault("rate_limit.create_per_window", 30)
	v.SetDefault("rate_limit.redeem_per_window", 10)
	v.SetDefault("rate_limit.window_seconds", 60)
}

// Load reads .env (without overriding variables already set), an optional YAML
// file named by CONFIG_FILE, and finally the environment.
func Load() (*Config, error) {
	if envMap, err := godotenv.Read(); err == nil {
		for k, val := range envMap {
			if os.Getenv(k) == "" {
				os.Setenv(k, val)
			}
		}
	}

	v := viper.New()
	setDefaults(v)
	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, err
		}
	}

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

// Validate checks the settings the server cannot run without.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.JWT.Secret) == "" {
		return errors.New("JWT_SECRET is not set")
	}
	if c.Database.DSN == "" && (c.Database.Host == "" || c.Database.Name == "") {
		return errors.New("database host and name are required when DB_DSN is empty")
	}
	fee, err := c.Payments.Fee()
	if err != nil {
		return err
	}
	if fee.IsNegative() || fee.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("FEE_RATE must be within [0, 1), got %s", fee)
	}
	min, err := c.Payments.Minimum()
	if err != nil {
		return err
	}
	if !min.IsPositive() {
		return fmt.Errorf("LINK_MIN_AMOUNT must be positive, got %s", min)
	}
	p := c.Payments
	if p.MaxExpiryHours < 1 || p.DefaultExpiryHours < 1 || p.DefaultExpiryHours > p.MaxExpiryHours {
		return fmt.Errorf("invalid link expiry bounds: default=%d max=%d", p.DefaultExpiryHours, p.MaxExpiryHours)
	}
	if len(p.Currency) != 3 {
		return fmt.Errorf("LINK_CURRENCY must be a 3-letter code, got %q", p.Currency)
	}
	return nil
}

func (c *Config) IsDevelopment() bool {
	return strings.ToLower(c.Env) == "development"
}

func (p PaymentsConfig) Fee() (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(p.FeeRate))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid FEE_RATE %q: %w", p.FeeRate, err)
	}
	return d, nil
}

func (p PaymentsConfig) Minimum() (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(p.MinAmount))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid LINK_MIN_AMOUNT %q: %w", p.MinAmount, err)
	}
	return d, nil
}

func (k KafkaConfig) BrokerList() []string { return splitList(k.Brokers) }

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (h HTTPConfig) Origins() []string { return splitList(h.CORSAllowedOrigins) }

func (h HTTPConfig) Proxies() []string { return splitList(h.TrustedProxies) }

func (h HTTPConfig) RequestTimeout() time.Duration {
	if h.RequestTimeoutSec <= 0 {
		return 10 * time.Second
	}
	return time.Duration(h.RequestTimeoutSec) * time.Second
}

func (r RateLimitConfig) Window() time.Duration {
	if r.WindowSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(r.WindowSeconds) * time.Second
}
