// Package api implements the gRPC schema service: targets are opened and
// closed, fields reserved, queries registered and events sent through it.
// Requests and responses are google.protobuf.Struct messages.
package api

import (
	"fmt"
	"log/slog"

	"github.com/solatis/typekeeper/internal/core/config"
	"github.com/solatis/typekeeper/internal/typedef"
)

// SchemaService implements SchemaServer on top of a typedef.Manager.
type SchemaService struct {
	manager *typedef.Manager
	cfg     *config.ServerConfig
	logger  *slog.Logger
}

var _ SchemaServer = (*SchemaService)(nil)

// NewSchemaService creates the service. logger may be nil.
func NewSchemaService(manager *typedef.Manager, cfg *config.ServerConfig, logger *slog.Logger) (*SchemaService, error) {
	if manager == nil {
		return nil, fmt.Errorf("manager cannot be nil")
	}
	if cfg == nil {
		return nil, fmt.Errorf("cfg cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SchemaService{
		manager: manager,
		cfg:     cfg,
		logger:  logger.With(slog.String("component", "api")),
	}, nil
}
