// Package config provides configuration management for the typekeeper server.
package config

import (
	"time"

	"github.com/solatis/typekeeper/internal/types"
)

// ServerConfig holds configuration for the gRPC schema service.
type ServerConfig struct {
	Host           string
	Port           int
	MaxConnections int
	RequestTimeout time.Duration
	MaxBatchSize   int
	DataDir        string
	DatabaseURL    string
	// Strict drops record fields that are neither base nor reserved.
	Strict bool
	// TargetsFile lists targets opened at startup. Optional.
	TargetsFile string
}

// DefaultServerConfig returns configuration with default values.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Host:           "0.0.0.0",
		Port:           50051,
		MaxConnections: 1000,
		RequestTimeout: 30 * time.Second,
		MaxBatchSize:   types.MaxBatchSize,
		DataDir:        "./data",
	}
}
