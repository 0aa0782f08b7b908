package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	App           AppConfig
	Service       ServiceConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Store         StoreConfig
	Cron          CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	if _, err := cfg.Store.ShippingFeeAmount(); err != nil {
		return nil, err
	}
	if cfg.App.IsProd() {
		if err := cfg.validateProd(); err != nil {
			return nil, err
		}
	}
	return &cfg, nil
}

// validateProd rejects settings that only make sense on a laptop.
func (c *Config) validateProd() error {
	if c.FeatureFlags.UseSQLite || c.DB.Driver == DriverSQLite {
		return fmt.Errorf("%s is not allowed in production", EnvUseSQLite)
	}
	for _, origin := range c.App.AllowedOrigins() {
		if origin == "*" {
			return fmt.Errorf("%s must list explicit origins in production", EnvCORSOrigins)
		}
	}
	return nil
}

type AppConfig struct {
	Env          string `envconfig:"FASHIONSTORE_APP_ENV" required:"true"`
	Port         string `envconfig:"FASHIONSTORE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"FASHIONSTORE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"FASHIONSTORE_LOG_WARN_STACK" default:"false"`
	CORSOrigins  string `envconfig:"FASHIONSTORE_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev) || strings.EqualFold(a.Env, "development")
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd) || strings.EqualFold(a.Env, "production")
}

// AllowedOrigins splits the comma separated CORS origin list.
func (a AppConfig) AllowedOrigins() []string {
	var origins []string
	for _, origin := range strings.Split(a.CORSOrigins, ",") {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}

type ServiceConfig struct {
	Kind string `envconfig:"FASHIONSTORE_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"FASHIONSTORE_DB_DSN"`
	Driver string `envconfig:"FASHIONSTORE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"FASHIONSTORE_DB_HOST"`
	LegacyPort     int    `envconfig:"FASHIONSTORE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"FASHIONSTORE_DB_USER"`
	LegacyPassword string `envconfig:"FASHIONSTORE_DB_PASSWORD"`
	LegacyName     string `envconfig:"FASHIONSTORE_DB_NAME"`
	LegacySSLMode  string `envconfig:"FASHIONSTORE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"FASHIONSTORE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"FASHIONSTORE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"FASHIONSTORE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"FASHIONSTORE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"FASHIONSTORE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"FASHIONSTORE_REDIS_ADDR"`
	Password     string        `envconfig:"FASHIONSTORE_REDIS_PASSWORD"`
	DB           int           `envconfig:"FASHIONSTORE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"FASHIONSTORE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"FASHIONSTORE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"FASHIONSTORE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"FASHIONSTORE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"FASHIONSTORE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"FASHIONSTORE_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"FASHIONSTORE_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"FASHIONSTORE_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenTTLMinutes int    `envconfig:"FASHIONSTORE_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"FASHIONSTORE_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"FASHIONSTORE_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"FASHIONSTORE_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"FASHIONSTORE_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"FASHIONSTORE_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"FASHIONSTORE_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"FASHIONSTORE_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"FASHIONSTORE_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"FASHIONSTORE_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"FASHIONSTORE_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"FASHIONSTORE_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"FASHIONSTORE_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"FASHIONSTORE_AUTO_MIGRATE" default:"false"`
}

// StoreConfig holds storefront-wide commercial settings.
type StoreConfig struct {
	Currency    string `envconfig:"FASHIONSTORE_CURRENCY" default:"VND"`
	ShippingFee string `envconfig:"FASHIONSTORE_SHIPPING_FEE" default:"30000"`
}

// ShippingFeeAmount parses the flat shipping fee charged on every order.
func (s StoreConfig) ShippingFeeAmount() (decimal.Decimal, error) {
	fee, err := decimal.NewFromString(strings.TrimSpace(s.ShippingFee))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s %q: %w", EnvShippingFee, s.ShippingFee, err)
	}
	if fee.IsNegative() {
		return decimal.Zero, fmt.Errorf("%s must not be negative", EnvShippingFee)
	}
	return fee, nil
}

type CronConfig struct {
	Interval           time.Duration `envconfig:"FASHIONSTORE_CRON_INTERVAL" default:"1h"`
	ReconcileBatchSize int           `envconfig:"FASHIONSTORE_CRON_RECONCILE_BATCH_SIZE" default:"200"`
	UnpaidOrderTTL     time.Duration `envconfig:"FASHIONSTORE_CRON_UNPAID_ORDER_TTL" default:"24h"`
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if db.DSN != "" {
		return nil
	}
	if useSQLite {
		db.Driver = DriverSQLite
		db.DSN = defaultSQLiteDSN
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
