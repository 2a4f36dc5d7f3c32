package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config represents the coordinator service configuration.
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Ledger        LedgerConfig        `mapstructure:"ledger"`
	Escrow        EscrowConfig        `mapstructure:"escrow"`
	Auth          AuthConfig          `mapstructure:"auth"`
	KeyManagement KeyManagementConfig `mapstructure:"key_management"`
	Watcher       WatcherConfig       `mapstructure:"watcher"`
	Logging       LoggingConfig       `mapstructure:"logging"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"ssl_mode"`
}

// LedgerConfig identifies the escrow ledger deployment and the privileged
// identities the coordinator acts as. Addresses are 0x-prefixed hex.
type LedgerConfig struct {
	Address            string        `mapstructure:"address"`
	ChainID            uint64        `mapstructure:"chain_id"`
	CoordinatorAddress string        `mapstructure:"coordinator_address"`
	AdminAddress       string        `mapstructure:"admin_address"`
	MaxTimeout         time.Duration `mapstructure:"max_timeout"`
}

// EscrowConfig contains escrow operation limits.
type EscrowConfig struct {
	// MaxTransferAmount is a decimal string; prepare requests above it fail.
	MaxTransferAmount string `mapstructure:"max_transfer_amount"`
	// AuthorizationTTL bounds signature-mode authorization deadlines.
	AuthorizationTTL time.Duration `mapstructure:"authorization_ttl"`
}

// AuthConfig contains JWT validation settings for the claim endpoints.
type AuthConfig struct {
	JWKSURL string `mapstructure:"jwks_url"`
	Issuer  string `mapstructure:"issuer"`
	// AdminSubjects are the JWT subjects allowed to call admin endpoints
	// (refund, pause).
	AdminSubjects []string `mapstructure:"admin_subjects"`
}

// KeyManagementConfig names the environment variables holding key material.
// Secrets never live in the YAML file itself.
type KeyManagementConfig struct {
	MasterKeyEnv    string `mapstructure:"master_key_env"`
	AuthorityKeyEnv string `mapstructure:"authority_key_env"`
	ClaimSeedEnv    string `mapstructure:"claim_seed_env"`
}

// WatcherConfig contains deposit watcher and expiry sweep settings.
type WatcherConfig struct {
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// Load loads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")
	viper.SetDefault("server.idle_timeout", "60s")
	viper.SetDefault("server.shutdown_timeout", "30s")

	// Database defaults
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.ssl_mode", "disable")
	viper.SetDefault("database.database", "escrow_coordinator")

	// Ledger defaults
	viper.SetDefault("ledger.chain_id", 1)
	viper.SetDefault("ledger.max_timeout", "8760h")

	// Escrow defaults
	viper.SetDefault("escrow.max_transfer_amount", "10000")
	viper.SetDefault("escrow.authorization_ttl", "1h")

	// Key management defaults
	viper.SetDefault("key_management.master_key_env", "ESCROW_MASTER_KEY")
	viper.SetDefault("key_management.authority_key_env", "ESCROW_AUTHORITY_KEY")
	viper.SetDefault("key_management.claim_seed_env", "ESCROW_CLAIM_SEED")

	// Watcher defaults
	viper.SetDefault("watcher.sweep_interval", "5m")

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.output_path", "stdout")
}

func validate(config *Config) error {
	if config.Database.Host == "" {
		return fmt.Errorf("database.host is required")
	}
	if config.Ledger.Address == "" {
		return fmt.Errorf("ledger.address is required")
	}
	if config.Ledger.CoordinatorAddress == "" {
		return fmt.Errorf("ledger.coordinator_address is required")
	}
	if config.Ledger.AdminAddress == "" {
		return fmt.Errorf("ledger.admin_address is required")
	}
	if config.Auth.JWKSURL == "" {
		return fmt.Errorf("auth.jwks_url is required")
	}
	return nil
}
