package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix is applied by envconfig when resolving variables.
const EnvPrefix = "digibazaar"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvDBDSN  = "DIGIBAZAAR_DB_DSN"
	EnvDBHost = "DIGIBAZAAR_DB_HOST"
	EnvDBUser = "DIGIBAZAAR_DB_USER"
	EnvDBName = "DIGIBAZAAR_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App        AppConfig
	DB         DBConfig
	Redis      RedisConfig
	JWT        JWTConfig
	Settlement SettlementConfig
	Gateway    GatewayConfig
	RateLimit  RateLimitConfig
	GCP        GCPConfig
	PubSub     PubSubConfig
	Outbox     OutboxConfig
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
	Env          string `envconfig:"DIGIBAZAAR_APP_ENV" required:"true"`
	Port         string `envconfig:"DIGIBAZAAR_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"DIGIBAZAAR_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"DIGIBAZAAR_LOG_WARN_STACK" default:"false"`
	AutoMigrate  bool   `envconfig:"DIGIBAZAAR_AUTO_MIGRATE" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"DIGIBAZAAR_DB_DSN"`
	Driver string `envconfig:"DIGIBAZAAR_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"DIGIBAZAAR_DB_HOST"`
	LegacyPort     int    `envconfig:"DIGIBAZAAR_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"DIGIBAZAAR_DB_USER"`
	LegacyPassword string `envconfig:"DIGIBAZAAR_DB_PASSWORD"`
	LegacyName     string `envconfig:"DIGIBAZAAR_DB_NAME"`
	LegacySSLMode  string `envconfig:"DIGIBAZAAR_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"DIGIBAZAAR_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"DIGIBAZAAR_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"DIGIBAZAAR_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"DIGIBAZAAR_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"DIGIBAZAAR_REDIS_URL" required:"true"`
	Address      string        `envconfig:"DIGIBAZAAR_REDIS_ADDR"`
	Password     string        `envconfig:"DIGIBAZAAR_REDIS_PASSWORD"`
	DB           int           `envconfig:"DIGIBAZAAR_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"DIGIBAZAAR_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"DIGIBAZAAR_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"DIGIBAZAAR_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"DIGIBAZAAR_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"DIGIBAZAAR_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"DIGIBAZAAR_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"DIGIBAZAAR_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"DIGIBAZAAR_JWT_EXPIRATION_MINUTES" default:"60"`
}

// SettlementConfig carries the money rules for the earnings pipeline.
// Rates are basis points so configuration stays integral.
type SettlementConfig struct {
	CommissionRateBps  int   `envconfig:"DIGIBAZAAR_COMMISSION_RATE_BPS" default:"1000"`
	GSTRateBps         int   `envconfig:"DIGIBAZAAR_GST_RATE_BPS" default:"1800"`
	HoldingPeriodDays  int   `envconfig:"DIGIBAZAAR_HOLDING_PERIOD_DAYS" default:"7"`
	MinimumPayoutPaise int64 `envconfig:"DIGIBAZAAR_MINIMUM_PAYOUT_PAISE" default:"50000"`
	AutoAcknowledge    bool  `envconfig:"DIGIBAZAAR_PAYOUT_AUTO_ACKNOWLEDGE" default:"false"`
	PayoutSLADays      int   `envconfig:"DIGIBAZAAR_PAYOUT_SLA_DAYS" default:"3"`
}

// HoldingPeriod returns the configured holding window as a duration.
func (s SettlementConfig) HoldingPeriod() time.Duration {
	return time.Duration(s.HoldingPeriodDays) * 24 * time.Hour
}

// PayoutSLA returns how long settlement normally takes once a payout is
// requested.
func (s SettlementConfig) PayoutSLA() time.Duration {
	return time.Duration(s.PayoutSLADays) * 24 * time.Hour
}

// GatewayConfig describes the opaque payment processor callback surface.
type GatewayConfig struct {
	WebhookSecret string        `envconfig:"DIGIBAZAAR_GATEWAY_WEBHOOK_SECRET" required:"true"`
	WebhookTTL    time.Duration `envconfig:"DIGIBAZAAR_GATEWAY_WEBHOOK_TTL" default:"168h"`
}

// RateLimitConfig throttles authenticated API traffic per account.
type RateLimitConfig struct {
	Window time.Duration `envconfig:"DIGIBAZAAR_RATE_LIMIT_WINDOW" default:"1m"`
	Limit  int64         `envconfig:"DIGIBAZAAR_RATE_LIMIT_PER_USER" default:"120"`
}

func (r RateLimitConfig) Enabled() bool {
	return r.Window > 0 && r.Limit > 0
}

type GCPConfig struct {
	ProjectID              string `envconfig:"DIGIBAZAAR_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"DIGIBAZAAR_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"DIGIBAZAAR_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	SettlementTopic        string `envconfig:"DIGIBAZAAR_PUBSUB_SETTLEMENT_TOPIC" default:"db-settlement-events"`
	SettlementSubscription string `envconfig:"DIGIBAZAAR_PUBSUB_SETTLEMENT_SUBSCRIPTION"`
}

type OutboxConfig struct {
	BatchSize    int           `envconfig:"DIGIBAZAAR_OUTBOX_BATCH_SIZE" default:"50"`
	PollInterval time.Duration `envconfig:"DIGIBAZAAR_OUTBOX_POLL_INTERVAL" default:"500ms"`
	MaxAttempts  int           `envconfig:"DIGIBAZAAR_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
