package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Redis         RedisConfig         `mapstructure:"redis"`
	RabbitMQ      RabbitMQConfig      `mapstructure:"rabbitmq"`
	Stripe        StripeConfig        `mapstructure:"stripe"`
	Backup        BackupConfig        `mapstructure:"backup"`
	Cloudbeds     CloudbedsConfig     `mapstructure:"cloudbeds"`
	BookingCenter BookingCenterConfig `mapstructure:"bookingcenter"`
	Push          PushConfig          `mapstructure:"push"`
	Marketing     MarketingConfig     `mapstructure:"marketing"`
	CRM           CRMConfig           `mapstructure:"crm"`
	Hotels        HotelsConfig        `mapstructure:"hotels"`
	Funnel        FunnelConfig        `mapstructure:"funnel"`
}

type ServerConfig struct {
	Port           string        `mapstructure:"port"`
	Env            string        `mapstructure:"env"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	RateLimitRPS   float64       `mapstructure:"rate_limit_rps"`
	RateLimitBurst int           `mapstructure:"rate_limit_burst"`
}

type DatabaseConfig struct {
	Driver            string        `mapstructure:"driver"` // postgres | mysql
	DSN               string        `mapstructure:"dsn"`
	MaxIdleConns      int           `mapstructure:"max_idle_conns"`
	MaxOpenConns      int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime   time.Duration `mapstructure:"conn_max_lifetime"`
	KeepAliveInterval time.Duration `mapstructure:"keepalive_interval"`
	RetryAttempts     int           `mapstructure:"retry_attempts"`
	RetryDelay        time.Duration `mapstructure:"retry_delay"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"` // empty disables Redis-backed features
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type RabbitMQConfig struct {
	URL   string `mapstructure:"url"` // empty keeps notifications in-process
	Queue string `mapstructure:"queue"`
}

type StripeConfig struct {
	SecretKey          string `mapstructure:"secret_key"`
	WebhookSecret      string `mapstructure:"webhook_secret"`
	Currency           string `mapstructure:"currency"`
	PreauthAmountCents int64  `mapstructure:"preauth_amount_cents"`
}

type BackupConfig struct {
	Delay time.Duration `mapstructure:"delay"`
}

type CloudbedsConfig struct {
	BaseURL      string `mapstructure:"base_url"`
	TokenURL     string `mapstructure:"token_url"`
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	RefreshToken string `mapstructure:"refresh_token"`
	APIKey       string `mapstructure:"api_key"`
}

type BookingCenterConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	SiteID   string `mapstructure:"site_id"`
	Password string `mapstructure:"password"`
}

type PushConfig struct {
	VAPIDPublicKey     string `mapstructure:"vapid_public_key"`
	VAPIDPrivateKey    string `mapstructure:"vapid_private_key"`
	Subject            string `mapstructure:"subject"`
	FCMCredentialsPath string `mapstructure:"fcm_credentials_path"`
	FCMTopic           string `mapstructure:"fcm_topic"`
}

// MarketingConfig maps a tracked event name (e.g. "Purchase") to the webhook it is forwarded to.
type MarketingConfig struct {
	Webhooks map[string]string `mapstructure:"webhooks"`
}

type CRMConfig struct {
	Token        string        `mapstructure:"token"`
	PasswordHash string        `mapstructure:"password_hash"` // bcrypt
	JWTSecret    string        `mapstructure:"jwt_secret"`
	TokenExpiry  time.Duration `mapstructure:"token_expiry"`
	Issuer       string        `mapstructure:"issuer"`
}

type HotelsConfig struct {
	File           string `mapstructure:"file"`
	ValidateOnBoot bool   `mapstructure:"validate_on_boot"`
}

type FunnelConfig struct {
	Capacity int    `mapstructure:"capacity"`
	RedisKey string `mapstructure:"redis_key"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.env", "development")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.allowed_origins", []string{"http://localhost:5173"})
	v.SetDefault("server.rate_limit_rps", 5.0)
	v.SetDefault("server.rate_limit_burst", 20)

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.dsn", "host=localhost user=postgres password=postgres dbname=hotelbook port=5432 sslmode=disable")
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.conn_max_lifetime", 30*time.Minute)
	v.SetDefault("database.keepalive_interval", 4*time.Minute)
	v.SetDefault("database.retry_attempts", 3)
	v.SetDefault("database.retry_delay", 500*time.Millisecond)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("rabbitmq.url", "")
	v.SetDefault("rabbitmq.queue", "hotelbook.notifications")

	v.SetDefault("stripe.currency", "usd")
	v.SetDefault("stripe.preauth_amount_cents", 100)

	v.SetDefault("backup.delay", 5*time.Second)

	v.SetDefault("cloudbeds.base_url", "https://hotels.cloudbeds.com/api/v1.2")
	v.SetDefault("cloudbeds.token_url", "https://hotels.cloudbeds.com/api/v1.2/access_token")

	v.SetDefault("push.subject", "mailto:frontdesk@example.com")
	v.SetDefault("push.fcm_topic", "new-bookings")

	v.SetDefault("crm.token_expiry", 12*time.Hour)
	v.SetDefault("crm.issuer", "hotelbook-crm")

	v.SetDefault("hotels.file", "hotels.yaml")
	v.SetDefault("hotels.validate_on_boot", false)

	v.SetDefault("funnel.capacity", 500)
	v.SetDefault("funnel.redis_key", "hotelbook:funnel")
}

// Load reads .env (if present), config.yaml (if present) and the environment, in increasing precedence.
// Environment keys use underscores for nesting, e.g. STRIPE_SECRET_KEY overrides stripe.secret_key.
func Load() (*Config, error) {
	if err := godotenv.Load(); err == nil {
		log.Println("config: loaded .env")
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}
