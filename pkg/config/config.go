package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Password     PasswordConfig
	FeatureFlags FeatureFlagsConfig
	Mpesa        MpesaConfig
	SMS          SMSConfig
	Billing      BillingConfig
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
	Env          string `envconfig:"NYUMBANI_APP_ENV" required:"true"`
	Port         string `envconfig:"NYUMBANI_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"NYUMBANI_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"NYUMBANI_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"NYUMBANI_DB_DSN"`
	Driver string `envconfig:"NYUMBANI_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"NYUMBANI_DB_HOST"`
	LegacyPort     int    `envconfig:"NYUMBANI_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"NYUMBANI_DB_USER"`
	LegacyPassword string `envconfig:"NYUMBANI_DB_PASSWORD"`
	LegacyName     string `envconfig:"NYUMBANI_DB_NAME"`
	LegacySSLMode  string `envconfig:"NYUMBANI_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"NYUMBANI_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"NYUMBANI_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"NYUMBANI_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"NYUMBANI_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"NYUMBANI_REDIS_URL" required:"true"`
	Address      string        `envconfig:"NYUMBANI_REDIS_ADDR"`
	Password     string        `envconfig:"NYUMBANI_REDIS_PASSWORD"`
	DB           int           `envconfig:"NYUMBANI_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"NYUMBANI_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"NYUMBANI_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"NYUMBANI_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"NYUMBANI_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"NYUMBANI_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"NYUMBANI_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"NYUMBANI_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"NYUMBANI_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenTTLMinutes int    `envconfig:"NYUMBANI_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"NYUMBANI_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"NYUMBANI_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"NYUMBANI_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"NYUMBANI_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"NYUMBANI_ARGON_KEY_LEN" default:"32"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"NYUMBANI_AUTO_MIGRATE" default:"false"`
}

// MpesaConfig holds the Daraja credentials. Field names on the wire are
// provider-defined; only the credentials live here.
type MpesaConfig struct {
	ConsumerKey    string        `envconfig:"NYUMBANI_MPESA_CONSUMER_KEY"`
	ConsumerSecret string        `envconfig:"NYUMBANI_MPESA_CONSUMER_SECRET"`
	ShortCode      string        `envconfig:"NYUMBANI_MPESA_SHORTCODE"`
	Passkey        string        `envconfig:"NYUMBANI_MPESA_PASSKEY"`
	Env            string        `envconfig:"NYUMBANI_MPESA_ENV" default:"sandbox"`
	CallbackURL    string        `envconfig:"NYUMBANI_MPESA_CALLBACK_URL"`
	Timeout        time.Duration `envconfig:"NYUMBANI_MPESA_TIMEOUT" default:"30s"`
}

// Environment returns the normalized Daraja environment (sandbox/production).
func (m MpesaConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(m.Env))
	if env == "" {
		return "sandbox"
	}
	return env
}

type SMSConfig struct {
	Username string        `envconfig:"NYUMBANI_SMS_USERNAME"`
	APIKey   string        `envconfig:"NYUMBANI_SMS_API_KEY"`
	SenderID string        `envconfig:"NYUMBANI_SMS_SENDER_ID"`
	BaseURL  string        `envconfig:"NYUMBANI_SMS_BASE_URL" default:"https://api.africastalking.com"`
	Timeout  time.Duration `envconfig:"NYUMBANI_SMS_TIMEOUT" default:"15s"`
}

// BillingConfig carries the rent schedule knobs used by reminders.
type BillingConfig struct {
	RentDueDay int `envconfig:"NYUMBANI_BILLING_RENT_DUE_DAY" default:"10"`
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
