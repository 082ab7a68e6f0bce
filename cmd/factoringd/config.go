package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is the daemon configuration, read from the environment.
type Config struct {
	Addr            string        `env:"FACTORING_ADDR"             envDefault:":8080"`
	LogLevel        string        `env:"FACTORING_LOG_LEVEL"        envDefault:"info"`
	ShutdownTimeout time.Duration `env:"FACTORING_SHUTDOWN_TIMEOUT" envDefault:"10s"`

	// Store is one of memory, sqlite, postgres or mongo.
	Store         string `env:"FACTORING_STORE"          envDefault:"memory"`
	SQLitePath    string `env:"FACTORING_SQLITE_PATH"    envDefault:"factoring.db"`
	PostgresDSN   string `env:"FACTORING_POSTGRES_DSN"`
	MongoURI      string `env:"FACTORING_MONGO_URI"`
	MongoDatabase string `env:"FACTORING_MONGO_DATABASE" envDefault:"factoring"`

	SweepInterval     time.Duration `env:"FACTORING_SWEEP_INTERVAL"      envDefault:"30s"`
	MarketplaceFeeBps uint64        `env:"FACTORING_MARKETPLACE_FEE_BPS" envDefault:"250"`
	PlatformAddress   string        `env:"FACTORING_PLATFORM_ADDRESS"    envDefault:"platform"`
	MaxSlippageBps    uint64        `env:"FACTORING_MAX_SLIPPAGE_BPS"    envDefault:"500"`
	LocalChainID      uint64        `env:"FACTORING_LOCAL_CHAIN_ID"      envDefault:"1"`

	// Development collaborators. Roles are granted to the listed principals
	// and balances are seeded as principal=amount pairs.
	Issuers   []string          `env:"FACTORING_ISSUERS"   envSeparator:","`
	Verifiers []string          `env:"FACTORING_VERIFIERS" envSeparator:","`
	Admins    []string          `env:"FACTORING_ADMINS"    envSeparator:","`
	Oracles   []string          `env:"FACTORING_ORACLES"   envSeparator:","`
	Balances  map[string]uint64 `env:"FACTORING_BALANCES"  envSeparator:"," envKeyValSeparator:"="`
	Chains    []uint64          `env:"FACTORING_CHAINS"    envSeparator:","`
	Bridges   map[uint64]string `env:"FACTORING_BRIDGES"   envSeparator:"," envKeyValSeparator:"="`
}

// loadConfig reads .env files, when present, and then the environment.
func loadConfig(dotenv ...string) (Config, error) {
	for _, file := range dotenv {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", file, err)
		}
	}
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch strings.ToLower(c.Store) {
	case "memory", "sqlite":
	case "postgres":
		if c.PostgresDSN == "" {
			return errors.New("FACTORING_POSTGRES_DSN is required for the postgres store")
		}
	case "mongo":
		if c.MongoURI == "" {
			return errors.New("FACTORING_MONGO_URI is required for the mongo store")
		}
	default:
		return fmt.Errorf("unknown store %q", c.Store)
	}
	if c.LocalChainID == 0 {
		return errors.New("FACTORING_LOCAL_CHAIN_ID must be positive")
	}
	return nil
}
