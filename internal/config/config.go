// Package config loads the wide server configuration with viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to environment overrides, e.g. WIDE_REDIS_URL.
const EnvPrefix = "WIDE"

type Config struct {
	Server    Server    `mapstructure:"server"`
	Redis     Redis     `mapstructure:"redis"`
	SIWE      SIWE      `mapstructure:"siwe"`
	Terms     Terms     `mapstructure:"terms"`
	Session   Session   `mapstructure:"session"`
	Integrity Integrity `mapstructure:"integrity"`
	Ledger    Ledger    `mapstructure:"ledger"`
	Events    Events    `mapstructure:"events"`
	Logging   Logging   `mapstructure:"logging"`
	Metrics   Metrics   `mapstructure:"metrics"`
}

type Server struct {
	Address         string        `mapstructure:"address"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes"`
}

// Redis is the key-value backend. An empty URL selects the in-memory store.
type Redis struct {
	URL string `mapstructure:"url"`
}

type SIWE struct {
	Domain          string        `mapstructure:"domain"`
	URI             string        `mapstructure:"uri"`
	Version         string        `mapstructure:"version"`
	ChainID         int64         `mapstructure:"chain_id"`
	SignInStatement string        `mapstructure:"signin_statement"`
	SignUpStatement string        `mapstructure:"signup_statement"`
	Expiry          time.Duration `mapstructure:"expiry"`
}

type Terms struct {
	// TTL of an acceptance; zero keeps it forever.
	TTL time.Duration `mapstructure:"ttl"`
}

type Session struct {
	TTL          time.Duration `mapstructure:"ttl"`
	CookieName   string        `mapstructure:"cookie_name"`
	CookieDomain string        `mapstructure:"cookie_domain"`
	Secure       bool          `mapstructure:"secure"`
	SameSite     string        `mapstructure:"same_site"`
	SigningKey   string        `mapstructure:"signing_key"`
	Store        string        `mapstructure:"store"`
}

type Integrity struct {
	PrivateKey string `mapstructure:"private_key"`
}

type Ledger struct {
	Enabled         bool          `mapstructure:"enabled"`
	RPCURL          string        `mapstructure:"rpc_url"`
	ContractAddress string        `mapstructure:"contract_address"`
	ChainID         int64         `mapstructure:"chain_id"`
	ReceiptTimeout  time.Duration `mapstructure:"receipt_timeout"`
}

type Events struct {
	Backend          string        `mapstructure:"backend"`
	ConsumerGroup    string        `mapstructure:"consumer_group"`
	AnchorMaxRetries int           `mapstructure:"anchor_max_retries"`
	AnchorBackoff    time.Duration `mapstructure:"anchor_backoff"`
}

type Logging struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type Metrics struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.max_body_bytes", 1<<20)

	v.SetDefault("redis.url", "")

	v.SetDefault("siwe.domain", "localhost:3000")
	v.SetDefault("siwe.uri", "http://localhost:3000")
	v.SetDefault("siwe.version", "1")
	v.SetDefault("siwe.chain_id", 1)
	v.SetDefault("siwe.signin_statement", "By signing this message I authenticate with the WIDE client using my Ethereum address.")
	v.SetDefault("siwe.signup_statement", "By signing this message I accept the WIDE Terms and Conditions.")
	v.SetDefault("siwe.expiry", 5*time.Minute)

	v.SetDefault("terms.ttl", time.Duration(0))

	v.SetDefault("session.ttl", 24*time.Hour)
	v.SetDefault("session.cookie_name", "session_id")
	v.SetDefault("session.cookie_domain", "")
	v.SetDefault("session.secure", true)
	v.SetDefault("session.same_site", "lax")
	v.SetDefault("session.signing_key", "")
	v.SetDefault("session.store", "redis")

	v.SetDefault("integrity.private_key", "")

	v.SetDefault("ledger.enabled", false)
	v.SetDefault("ledger.rpc_url", "")
	v.SetDefault("ledger.contract_address", "")
	v.SetDefault("ledger.chain_id", 0)
	v.SetDefault("ledger.receipt_timeout", 2*time.Minute)

	v.SetDefault("events.backend", "memory")
	v.SetDefault("events.consumer_group", "wide")
	v.SetDefault("events.anchor_max_retries", 5)
	v.SetDefault("events.anchor_backoff", time.Second)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}

// LoadConfig reads file, or wide.yaml from ./config and the working directory
// when file is empty. A missing default file is not an error; environment
// variables and defaults still apply.
func LoadConfig(file string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("wide")
		v.SetConfigType("yaml")
		v.AddConfigPath("config")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}
	return v, nil
}

// ParseConfig unmarshals and validates v.
func ParseConfig(v *viper.Viper) (*Config, error) {
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unable to unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Load is LoadConfig followed by ParseConfig.
func Load(file string) (*Config, error) {
	v, err := LoadConfig(file)
	if err != nil {
		return nil, err
	}
	return ParseConfig(v)
}

func (c *Config) Validate() error {
	var errs []error

	if c.Server.MaxBodyBytes <= 0 {
		errs = append(errs, errors.New("server.max_body_bytes must be positive"))
	}
	if c.SIWE.Domain == "" {
		errs = append(errs, errors.New("siwe.domain is required"))
	}
	if c.SIWE.URI == "" {
		errs = append(errs, errors.New("siwe.uri is required"))
	}
	if c.SIWE.Expiry <= 0 {
		errs = append(errs, errors.New("siwe.expiry must be positive"))
	}
	if strings.ContainsAny(c.SIWE.SignInStatement+c.SIWE.SignUpStatement, "\r\n") {
		errs = append(errs, errors.New("siwe statements must be a single line"))
	}
	if c.Terms.TTL < 0 {
		errs = append(errs, errors.New("terms.ttl must not be negative"))
	}
	if c.Session.TTL <= 0 {
		errs = append(errs, errors.New("session.ttl must be positive"))
	}
	if c.Session.CookieName == "" {
		errs = append(errs, errors.New("session.cookie_name is required"))
	}
	switch strings.ToLower(c.Session.SameSite) {
	case "lax", "strict", "none":
	default:
		errs = append(errs, fmt.Errorf("session.same_site %q must be lax, strict or none", c.Session.SameSite))
	}
	switch c.Session.Store {
	case "redis", "memory":
	default:
		errs = append(errs, fmt.Errorf("session.store %q must be redis or memory", c.Session.Store))
	}
	switch c.Events.Backend {
	case "redis", "memory":
	default:
		errs = append(errs, fmt.Errorf("events.backend %q must be redis or memory", c.Events.Backend))
	}
	if c.Events.Backend == "redis" && c.Redis.URL == "" {
		errs = append(errs, errors.New("events.backend redis requires redis.url"))
	}
	if c.Ledger.Enabled {
		if c.Ledger.RPCURL == "" {
			errs = append(errs, errors.New("ledger.rpc_url is required when the ledger is enabled"))
		}
		if c.Ledger.ContractAddress == "" {
			errs = append(errs, errors.New("ledger.contract_address is required when the ledger is enabled"))
		}
		if c.Integrity.PrivateKey == "" {
			errs = append(errs, errors.New("integrity.private_key is required when the ledger is enabled"))
		}
	}

	return errors.Join(errs...)
}
