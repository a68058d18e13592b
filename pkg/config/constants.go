package config

const (
	// EnvPrefix namespaces all environment variables consumed by Load.
	EnvPrefix = "NYUMBANI"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "NYUMBANI_DB_DSN"
	EnvDBHost = "NYUMBANI_DB_HOST"
	EnvDBUser = "NYUMBANI_DB_USER"
	EnvDBName = "NYUMBANI_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
