package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = ""

	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App           AppConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Chapa         ChapaConfig
	Payments      PaymentsConfig
	Notifications NotificationsConfig
	Sendgrid      SendgridConfig
	Cron          CronConfig
	FeatureFlags  FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"SHOPVANA_APP_ENV" required:"true"`
	Port         string `envconfig:"SHOPVANA_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"SHOPVANA_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"SHOPVANA_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"SHOPVANA_DB_DSN"`
	Driver string `envconfig:"SHOPVANA_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"SHOPVANA_DB_HOST"`
	Port     int    `envconfig:"SHOPVANA_DB_PORT" default:"5432"`
	User     string `envconfig:"SHOPVANA_DB_USER"`
	Password string `envconfig:"SHOPVANA_DB_PASSWORD"`
	Name     string `envconfig:"SHOPVANA_DB_NAME"`
	SSLMode  string `envconfig:"SHOPVANA_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"SHOPVANA_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SHOPVANA_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SHOPVANA_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SHOPVANA_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

func (d *DBConfig) ensureDSN() error {
	if d.DSN != "" {
		return nil
	}
	if d.Host == "" || d.User == "" || d.Name == "" {
		return fmt.Errorf("either SHOPVANA_DB_DSN or host/user/name settings are required")
	}
	d.DSN = fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(d.User),
		url.QueryEscape(d.Password),
		d.Host,
		d.Port,
		d.Name,
		d.SSLMode,
	)
	return nil
}

type RedisConfig struct {
	URL          string        `envconfig:"SHOPVANA_REDIS_URL"`
	Address      string        `envconfig:"SHOPVANA_REDIS_ADDR"`
	Password     string        `envconfig:"SHOPVANA_REDIS_PASSWORD"`
	DB           int           `envconfig:"SHOPVANA_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SHOPVANA_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SHOPVANA_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SHOPVANA_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SHOPVANA_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SHOPVANA_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"SHOPVANA_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"SHOPVANA_JWT_ISSUER" default:"shopvana"`
	ExpirationMinutes int    `envconfig:"SHOPVANA_JWT_EXPIRATION_MINUTES" default:"60"`
}

// ChapaConfig carries the payment gateway credentials and endpoints. The
// adapter receives these through its constructor, never from globals.
type ChapaConfig struct {
	BaseURL     string        `envconfig:"SHOPVANA_CHAPA_BASE_URL" default:"https://api.chapa.co/v1"`
	SecretKey   string        `envconfig:"SHOPVANA_CHAPA_SECRET_KEY"`
	CallbackURL string        `envconfig:"SHOPVANA_CHAPA_CALLBACK_URL"`
	ReturnURL   string        `envconfig:"SHOPVANA_CHAPA_RETURN_URL"`
	Timeout     time.Duration `envconfig:"SHOPVANA_CHAPA_TIMEOUT" default:"15s"`
}

type PaymentsConfig struct {
	Window      time.Duration `envconfig:"SHOPVANA_PAYMENT_WINDOW" default:"60m"`
	WindowGrace time.Duration `envconfig:"SHOPVANA_PAYMENT_WINDOW_GRACE" default:"24h"`
	Currency    string        `envconfig:"SHOPVANA_PAYMENT_CURRENCY" default:"ETB"`
}

type NotificationsConfig struct {
	QueueKey     string        `envconfig:"SHOPVANA_NOTIFICATIONS_QUEUE_KEY" default:"sv:notifications:email"`
	PopTimeout   time.Duration `envconfig:"SHOPVANA_NOTIFICATIONS_POP_TIMEOUT" default:"5s"`
	SendTimeout  time.Duration `envconfig:"SHOPVANA_NOTIFICATIONS_SEND_TIMEOUT" default:"10s"`
	ReceiptsBase string        `envconfig:"SHOPVANA_NOTIFICATIONS_RECEIPTS_BASE" default:""`
}

type SendgridConfig struct {
	APIKey    string `envconfig:"SHOPVANA_SENDGRID_API_KEY"`
	BaseURL   string `envconfig:"SHOPVANA_SENDGRID_BASE_URL" default:"https://api.sendgrid.com"`
	FromEmail string `envconfig:"SHOPVANA_SENDGRID_FROM_EMAIL" default:"no-reply@shopvana.io"`
	FromName  string `envconfig:"SHOPVANA_SENDGRID_FROM_NAME" default:"Shopvana"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"SHOPVANA_CRON_INTERVAL" default:"5m"`
	LockTTL  time.Duration `envconfig:"SHOPVANA_CRON_LOCK_TTL" default:"10m"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"SHOPVANA_AUTO_MIGRATE" default:"false"`
	// SimulateCallbacks settles pending payments without a gateway;
	// never enable outside dev environments.
	SimulateCallbacks bool `envconfig:"SHOPVANA_SIMULATE_CALLBACKS" default:"false"`
}
