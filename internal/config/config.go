package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig          `env:",prefix=APP_"`
	Postgres     PostgresConfig     `env:",prefix=POSTGRES_"`
	Redis        RedisConfig        `env:",prefix=REDIS_"`
	NATS         NATSConfig         `env:",prefix=NATS_"`
	Logger       LoggerConfig       `env:",prefix=LOG_"`
	Tracing      TracingConfig      `env:",prefix=OTEL_"`
	Auth         AuthConfig         `env:",prefix=AUTH_"`
	Activation   ActivationConfig   `env:",prefix=ACTIVATION_"`
	Payment      PaymentConfig      `env:",prefix=PAYMENT_"`
	Access       AccessConfig       `env:",prefix=ACCESS_"`
	Notification NotificationConfig `env:",prefix=NOTIFY_"`
	RateLimit    RateLimitConfig    `env:",prefix=RATE_LIMIT_"`
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string   `env:"NAME,default=realty-service"`
	Env                   string   `env:"ENV,default=development"`
	Host                  string   `env:"HOST,default=0.0.0.0"`
	Port                  string   `env:"PORT,default=8080"`
	Version               string   `env:"VERSION,default=dev"`
	RequestTimeoutSeconds int      `env:"REQUEST_TIMEOUT_SECONDS,default=30"`
	AllowedOrigins        []string `env:"ALLOWED_ORIGINS,default=*"`
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string `env:"DSN"`
	MaxConns       int32  `env:"MAX_CONNS,default=10"`
	MinConns       int32  `env:"MIN_CONNS,default=2"`
	RunMigrations  bool   `env:"RUN_MIGRATIONS,default=true"`
	ConnMaxIdleSec int32  `env:"CONN_MAX_IDLE_SECONDS,default=30"`
	ConnMaxLifeSec int32  `env:"CONN_MAX_LIFE_SECONDS,default=300"`
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr      string `env:"ADDR,default=127.0.0.1:6379"`
	Password  string `env:"PASSWORD"`
	DB        int    `env:"DB,default=0"`
	KeyPrefix string `env:"KEY_PREFIX,default=realty:"`
}

// NATSConfig enables mirroring domain events to JetStream when URL is set.
type NATSConfig struct {
	URL           string `env:"URL"`
	Stream        string `env:"STREAM,default=REALTY_EVENTS"`
	SubjectPrefix string `env:"SUBJECT_PREFIX,default=realty.events"`
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level        string        `env:"LEVEL,default=info"`
	File         string        `env:"FILE"`
	FileMaxAge   time.Duration `env:"FILE_MAX_AGE,default=168h"`
	FileRotation time.Duration `env:"FILE_ROTATION,default=24h"`
}

// TracingConfig configures the OTLP exporter; tracing is disabled without an endpoint.
type TracingConfig struct {
	Endpoint string `env:"EXPORTER_OTLP_ENDPOINT"`
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret             string `env:"JWT_SECRET,default=dev-secret"`
	AccessTokenTTLMinutes int    `env:"ACCESS_TOKEN_TTL_MINUTES,default=60"`
	RefreshTokenTTLHours  int    `env:"REFRESH_TOKEN_TTL_HOURS,default=24"`
	BcryptCost            int    `env:"BCRYPT_COST,default=12"`
}

// Activation modes.
const (
	ActivationModeImmediate = "immediate"
	ActivationModePayment   = "payment"
)

// ActivationConfig selects the finalizer and the pending-row housekeeping.
type ActivationConfig struct {
	Mode             string        `env:"MODE,default=payment"`
	PendingRetention time.Duration `env:"PENDING_RETENTION,default=48h"`
	SweepInterval    time.Duration `env:"SWEEP_INTERVAL,default=1h"`
}

// PaymentConfig configures the checkout provider and redirect targets.
type PaymentConfig struct {
	Provider        string `env:"PROVIDER,default=sandbox"`
	StripeSecretKey string `env:"STRIPE_SECRET_KEY"`
	PublicBaseURL   string `env:"PUBLIC_BASE_URL,default=http://localhost:8080"`
	LoginURL        string `env:"LOGIN_URL,default=/login?success=account_created"`
	SignupCancelURL string `env:"SIGNUP_CANCEL_URL,default=/signup"`
	DashboardURL    string `env:"DASHBOARD_URL,default=/buyer/dashboard"`
	PricingFile     string `env:"PRICING_FILE"`
}

// AccessConfig holds the access pass policy.
type AccessConfig struct {
	BaseDays      int `env:"BASE_DAYS,default=30"`
	ExtensionDays int `env:"EXTENSION_DAYS,default=15"`
	MaxExtensions int `env:"MAX_EXTENSIONS,default=2"`
}

// NotificationConfig holds mail delivery settings. Without an SMTP address
// messages are only logged.
type NotificationConfig struct {
	EmailFrom    string `env:"EMAIL_FROM,default=noreply@example.com"`
	SMTPAddr     string `env:"SMTP_ADDR"`
	SMTPUser     string `env:"SMTP_USER"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
}

// RateLimitConfig bounds unauthenticated signup and verification traffic.
type RateLimitConfig struct {
	Max    int           `env:"MAX,default=20"`
	Window time.Duration `env:"WINDOW,default=1m"`
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load(ctx context.Context) (*Config, error) {
	_ = godotenv.Load()
	return LoadFrom(ctx, envconfig.OsLookuper())
}

// LoadFrom processes configuration from the given lookuper.
func LoadFrom(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: lookuper}); err != nil {
		return nil, fmt.Errorf("process env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Activation.Mode {
	case ActivationModeImmediate, ActivationModePayment:
	default:
		return fmt.Errorf("invalid ACTIVATION_MODE %q", c.Activation.Mode)
	}
	switch c.Payment.Provider {
	case "sandbox":
		if c.App.IsProduction() {
			return fmt.Errorf("PAYMENT_PROVIDER=sandbox is not allowed when APP_ENV=production")
		}
	case "stripe":
		if c.Payment.StripeSecretKey == "" {
			return fmt.Errorf("PAYMENT_STRIPE_SECRET_KEY required for stripe provider")
		}
	default:
		return fmt.Errorf("invalid PAYMENT_PROVIDER %q", c.Payment.Provider)
	}
	if c.Access.BaseDays <= 0 || c.Access.ExtensionDays <= 0 || c.Access.MaxExtensions < 0 {
		return fmt.Errorf("invalid access pass policy %+v", c.Access)
	}
	return nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// IsProduction reports whether APP_ENV names a production deployment.
func (a AppConfig) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(a.Env), "production")
}

// RefreshTokenTTL returns the refresh token lifetime.
func (a AuthConfig) RefreshTokenTTL() time.Duration {
	return time.Duration(a.RefreshTokenTTLHours) * time.Hour
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}
