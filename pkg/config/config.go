// Package config loads gateway configuration from an optional .env file,
// an optional config file and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the full gateway configuration
type Config struct {
	Privy   PrivyConfig   `mapstructure:"privy"`
	Chain   ChainConfig   `mapstructure:"chain"`
	Server  ServerConfig  `mapstructure:"server"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	Retry   RetryConfig   `mapstructure:"retry"`
	Sponsor SponsorConfig `mapstructure:"sponsor"`
	Log     LogConfig     `mapstructure:"log"`
}

type PrivyConfig struct {
	AppID     string `mapstructure:"app_id"`
	AppSecret string `mapstructure:"app_secret"`
	APIURL    string `mapstructure:"api_url"`
	AuthURL   string `mapstructure:"auth_url"`
}

type ChainConfig struct {
	RPCURL          string `mapstructure:"rpc_url"`
	ContractAddress string `mapstructure:"contract_address"`
	ChainID         int64  `mapstructure:"chain_id"`
}

type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	CORSOrigin     string        `mapstructure:"cors_origin"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

type HTTPConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

// RetryConfig governs the provider calls that may be retried: the user lookup
// and the session exchange. The default of one attempt keeps each of them a
// single round trip; raising MaxAttempts lets a 429/502/503/504 or transport
// error on the session exchange be retried, relaxing that. Wallet creation
// and the relay are never retried.
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	BaseDelay   time.Duration `mapstructure:"base_delay"`
}

type SponsorConfig struct {
	ProvisionServerWallet bool          `mapstructure:"provision_server_wallet"`
	SessionSkew           time.Duration `mapstructure:"session_skew"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Env names kept compatible with the browser app's .env
var envBindings = map[string]string{
	"privy.app_id":       "VITE_PRIVY_APP_ID",
	"privy.app_secret":   "VITE_PRIVY_APP_SECRET",
	"privy.api_url":      "PRIVY_API_URL",
	"privy.auth_url":     "PRIVY_AUTH_URL",
	"chain.rpc_url":      "RPC_PROVIDER",
	"server.port":        "PORT",
	"server.cors_origin": "CORS_ORIGIN",
	"http.timeout":       "HTTP_TIMEOUT",
	"log.level":          "LOG_LEVEL",
	"log.format":         "LOG_FORMAT",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("privy.api_url", "https://api.privy.io")
	v.SetDefault("privy.auth_url", "https://auth.privy.io")

	v.SetDefault("chain.rpc_url", "https://api.privy.io/v1/rpc/base-sepolia")
	v.SetDefault("chain.contract_address", "0xDc89dA1e7Ca49b7CcDC8fDB897A32d564Abb8E42")
	v.SetDefault("chain.chain_id", 84532)

	v.SetDefault("server.port", 3001)
	v.SetDefault("server.cors_origin", "http://localhost:5173")
	v.SetDefault("server.request_timeout", "60s")

	v.SetDefault("http.timeout", "30s")

	v.SetDefault("retry.max_attempts", 1)
	v.SetDefault("retry.base_delay", "1s")

	v.SetDefault("sponsor.provision_server_wallet", true)
	v.SetDefault("sponsor.session_skew", "5s")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Load reads configuration. envFile is loaded into the process environment
// first if it exists; configFile, when empty, defaults to ./config.yaml and
// may be absent. Environment variables win over the file.
func Load(envFile, configFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("error loading %s: %w", envFile, err)
		}
	}

	v := viper.New()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !(configFile == "" && errors.Is(err, os.ErrNotExist)) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("error binding %s: %w", env, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error decoding config: %w", err)
	}
	return &cfg, nil
}

// Validate checks the values the gateway cannot start without
func (c *Config) Validate() error {
	var errs []error
	if c.Privy.AppID == "" {
		errs = append(errs, errors.New("VITE_PRIVY_APP_ID is required"))
	}
	if c.Privy.AppSecret == "" {
		errs = append(errs, errors.New("VITE_PRIVY_APP_SECRET is required"))
	}
	if c.Chain.RPCURL == "" {
		errs = append(errs, errors.New("RPC_PROVIDER is required"))
	}
	if c.Chain.ChainID <= 0 {
		errs = append(errs, fmt.Errorf("chain id must be positive, got %d", c.Chain.ChainID))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid port %d", c.Server.Port))
	}
	if c.Server.RequestTimeout <= 0 {
		errs = append(errs, errors.New("server.request_timeout must be positive"))
	}
	if c.HTTP.Timeout <= 0 {
		errs = append(errs, errors.New("http.timeout must be positive"))
	}
	if c.Retry.MaxAttempts < 1 {
		errs = append(errs, errors.New("retry.max_attempts must be at least 1"))
	}
	return errors.Join(errs...)
}

// Addr is the listen address for the configured port
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}
