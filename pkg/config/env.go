package config

// EnvPrefix is handed to envconfig; every field also declares its full name.
const EnvPrefix = "FASHIONSTORE"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	defaultSQLiteDSN = "file:fashionstore.db?_foreign_keys=on&_busy_timeout=5000"
)

const (
	EnvAppEnv                 = "FASHIONSTORE_APP_ENV"
	EnvPort                   = "FASHIONSTORE_APP_PORT"
	EnvDBDSN                  = "FASHIONSTORE_DB_DSN"
	EnvDBHost                 = "FASHIONSTORE_DB_HOST"
	EnvDBUser                 = "FASHIONSTORE_DB_USER"
	EnvDBName                 = "FASHIONSTORE_DB_NAME"
	EnvRedisURL               = "FASHIONSTORE_REDIS_URL"
	EnvJWTSecret              = "FASHIONSTORE_JWT_SECRET"
	EnvJWTIssuer              = "FASHIONSTORE_JWT_ISSUER"
	EnvJWTExpMins             = "FASHIONSTORE_JWT_EXPIRATION_MINUTES"
	EnvRefreshTokenTTLMinutes = "FASHIONSTORE_REFRESH_TOKEN_TTL_MINUTES"
	EnvUseSQLite              = "FASHIONSTORE_USE_SQLITE"
	EnvShippingFee            = "FASHIONSTORE_SHIPPING_FEE"
	EnvCORSOrigins            = "FASHIONSTORE_CORS_ORIGINS"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
