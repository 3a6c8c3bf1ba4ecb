package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// LoadConfig loads configuration using viper.
// CLI flags > environment (TK_ prefix) > config file > defaults.
func LoadConfig(configPath string) (*ServerConfig, error) {
	v := viper.New()

	d := DefaultServerConfig()
	v.SetDefault("server.host", d.Host)
	v.SetDefault("server.port", d.Port)
	v.SetDefault("server.max_connections", d.MaxConnections)
	v.SetDefault("server.request_timeout", d.RequestTimeout.String())
	v.SetDefault("server.max_batch_size", d.MaxBatchSize)
	v.SetDefault("server.data_dir", d.DataDir)
	v.SetDefault("server.strict", d.Strict)
	v.SetDefault("server.targets_file", "")
	v.SetDefault("database.url", "")

	v.SetEnvPrefix("TK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := validateNoCredentialsInConfig(v); err != nil {
		return nil, err
	}

	cfg := &ServerConfig{
		Host:           v.GetString("server.host"),
		Port:           v.GetInt("server.port"),
		MaxConnections: v.GetInt("server.max_connections"),
		RequestTimeout: v.GetDuration("server.request_timeout"),
		MaxBatchSize:   v.GetInt("server.max_batch_size"),
		DataDir:        v.GetString("server.data_dir"),
		Strict:         v.GetBool("server.strict"),
		TargetsFile:    v.GetString("server.targets_file"),
		DatabaseURL:    v.GetString("database.url"),
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validateConfig(cfg *ServerConfig) error {
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", cfg.Port)
	}
	if cfg.MaxConnections <= 0 {
		return fmt.Errorf("max_connections must be positive, got %d", cfg.MaxConnections)
	}
	if cfg.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive, got %v", cfg.RequestTimeout)
	}
	if cfg.MaxBatchSize <= 0 {
		return fmt.Errorf("max_batch_size must be positive, got %d", cfg.MaxBatchSize)
	}
	if cfg.DataDir == "" {
		return fmt.Errorf("data_dir must not be empty")
	}
	return nil
}

// validateNoCredentialsInConfig rejects database URLs carrying a password
// in the config file. They belong in TK_DATABASE_URL.
func validateNoCredentialsInConfig(v *viper.Viper) error {
	if !v.InConfig("database.url") {
		return nil
	}
	raw := v.GetString("database.url")
	if i := strings.Index(raw, "://"); i >= 0 {
		rest := raw[i+3:]
		if at := strings.Index(rest, "@"); at >= 0 && strings.Contains(rest[:at], ":") {
			return fmt.Errorf("database passwords not allowed in config files (use TK_DATABASE_URL environment variable)")
		}
	}
	return nil
}
