package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/authkeeper/internal/flagx"
	"github.com/dmitrijs2005/authkeeper/internal/timex"
)

// JsonConfig is the on-disk shape of the configuration file. Durations use
// timex.Duration, so both "15m" and integer nanoseconds are accepted.
type JsonConfig struct {
	EndpointAddrGRPC             string         `json:"endpoint_addr_grpc"`
	EndpointAddrHTTP             string         `json:"endpoint_addr_http"`
	DatabaseDriver               string         `json:"database_driver"`
	DatabaseDSN                  string         `json:"database_dsn"`
	SecretKey                    string         `json:"secret_key"`
	JWTAlgorithm                 string         `json:"jwt_algorithm"`
	AccessTokenValidityDuration  timex.Duration `json:"access_token_validity_duration"`
	RefreshTokenValidityDuration timex.Duration `json:"refresh_token_validity_duration"`
	PasswordHasher               string         `json:"password_hasher"`
	BcryptCost                   int            `json:"bcrypt_cost"`
	TokenCleanupInterval         timex.Duration `json:"token_cleanup_interval"`
	OTLPEndpoint                 string         `json:"otlp_endpoint"`
	LogLevel                     string         `json:"log_level"`
	Environment                  string         `json:"environment"`
}

// parseJson loads the file named by -c/-config, if any, and copies every
// field present in it into config. An unreadable or invalid file panics.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setString(&config.DatabaseDriver, c.DatabaseDriver)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setString(&config.JWTAlgorithm, c.JWTAlgorithm)
	setString(&config.PasswordHasher, c.PasswordHasher)
	setString(&config.OTLPEndpoint, c.OTLPEndpoint)
	setString(&config.LogLevel, c.LogLevel)
	setString(&config.Environment, c.Environment)

	if c.AccessTokenValidityDuration.Duration != 0 {
		config.AccessTokenValidityDuration = c.AccessTokenValidityDuration.Duration
	}
	if c.RefreshTokenValidityDuration.Duration != 0 {
		config.RefreshTokenValidityDuration = c.RefreshTokenValidityDuration.Duration
	}
	if c.TokenCleanupInterval.Duration != 0 {
		config.TokenCleanupInterval = c.TokenCleanupInterval.Duration
	}
	if c.BcryptCost != 0 {
		config.BcryptCost = c.BcryptCost
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
