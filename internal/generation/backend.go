package generation

import (
	"fmt"
	"log/slog"

	"github.com/ashureev/analystai/internal/config"
)

// NewBackend builds the configured model backend and its cleanup function.
func NewBackend(cfg config.GenerationConfig, logger *slog.Logger) (Backend, func(), error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch cfg.Backend {
	case config.BackendOpenAI:
		b, err := NewOpenAIBackend(OpenAIConfig{
			BaseURL: cfg.BaseURL,
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
		})
		if err != nil {
			return nil, nil, err
		}
		return b, func() {}, nil
	case config.BackendGRPC:
		grpcCfg := DefaultGRPCConfig()
		grpcCfg.Address = cfg.GRPCAddr
		logger.Info("Connecting to generation sidecar via gRPC", "address", cfg.GRPCAddr)
		b, err := NewGRPCBackend(grpcCfg, logger)
		if err != nil {
			return nil, nil, err
		}
		return b, b.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown generation backend %q", cfg.Backend)
	}
}
