package generation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	// GeneratorService is the fully qualified name of the generation sidecar service.
	GeneratorService = "analystai.generation.v1.Generator"
	generateMethod   = "/" + GeneratorService + "/Generate"
)

var (
	errConnectionShutdown       = errors.New("connection shutdown")
	errConnectionStateUnchanged = errors.New("connection state did not change")
	errEmptySidecarResponse     = errors.New("generation sidecar returned no content")
)

// GRPCConfig configures the connection to a generation sidecar.
type GRPCConfig struct {
	Address          string
	ConnectTimeout   time.Duration
	KeepaliveTime    time.Duration
	KeepaliveTimeout time.Duration
}

// DefaultGRPCConfig returns default sidecar connection settings.
func DefaultGRPCConfig() GRPCConfig {
	return GRPCConfig{
		Address:          "localhost:50051",
		ConnectTimeout:   5 * time.Second,
		KeepaliveTime:    2 * time.Minute,
		KeepaliveTimeout: 10 * time.Second,
	}
}

// GRPCBackend forwards generation calls to a sidecar process over gRPC. Requests and
// responses are google.protobuf.Struct messages, so the sidecar can be written in any
// language without sharing generated stubs:
//
//	request:  {prompt_name, system, prompt, output_schema}
//	response: {content: "<json text>"} or {output: {...}}, optionally {error: "..."}
type GRPCBackend struct {
	conn   *grpc.ClientConn
	health healthpb.HealthClient
	addr   string
	logger *slog.Logger
}

// NewGRPCBackend connects to the sidecar and waits until the channel is ready.
func NewGRPCBackend(cfg GRPCConfig, logger *slog.Logger, extra ...grpc.DialOption) (*GRPCBackend, error) {
	if logger == nil {
		logger = slog.Default()
	}
	defaults := DefaultGRPCConfig()
	if cfg.Address == "" {
		cfg.Address = defaults.Address
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = defaults.ConnectTimeout
	}
	if cfg.KeepaliveTime <= 0 {
		cfg.KeepaliveTime = defaults.KeepaliveTime
	}
	if cfg.KeepaliveTimeout <= 0 {
		cfg.KeepaliveTimeout = defaults.KeepaliveTimeout
	}

	opts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                cfg.KeepaliveTime,
			Timeout:             cfg.KeepaliveTimeout,
			PermitWithoutStream: false,
		}),
	}
	opts = append(opts, extra...)

	conn, err := grpc.NewClient(cfg.Address, opts...)
	if err != nil {
		return nil, fmt.Errorf("create gRPC client for %s: %w", cfg.Address, err)
	}

	connectCtx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer cancel()
	if err := waitForReady(connectCtx, conn); err != nil {
		if closeErr := conn.Close(); closeErr != nil {
			logger.Warn("failed to close gRPC connection after readiness failure", "error", closeErr)
		}
		return nil, fmt.Errorf("generation sidecar at %s not ready: %w", cfg.Address, err)
	}

	logger.Info("Connected to generation sidecar", "address", cfg.Address)
	return &GRPCBackend{
		conn:   conn,
		health: healthpb.NewHealthClient(conn),
		addr:   cfg.Address,
		logger: logger,
	}, nil
}

func waitForReady(ctx context.Context, conn *grpc.ClientConn) error {
	for {
		state := conn.GetState()
		switch state {
		case connectivity.Ready:
			return nil
		case connectivity.Idle:
			conn.Connect()
		case connectivity.Shutdown:
			return errConnectionShutdown
		}

		if !conn.WaitForStateChange(ctx, state) {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%w from %s", errConnectionStateUnchanged, state)
		}
	}
}

// Name returns the backend identifier.
func (b *GRPCBackend) Name() string {
	return "grpc"
}

// Generate invokes the sidecar's Generate method once.
func (b *GRPCBackend) Generate(ctx context.Context, req BackendRequest) (string, error) {
	in, err := structpb.NewStruct(map[string]any{
		"prompt_name":   req.PromptName,
		"system":        req.System,
		"prompt":        req.Prompt,
		"output_schema": req.Schema,
	})
	if err != nil {
		return "", fmt.Errorf("encode sidecar request: %w", err)
	}

	out := &structpb.Struct{}
	if err := b.conn.Invoke(ctx, generateMethod, in, out); err != nil {
		return "", fmt.Errorf("generate via sidecar: %w", err)
	}

	fields := out.GetFields()
	if msg := fields["error"].GetStringValue(); msg != "" {
		return "", fmt.Errorf("generation sidecar: %s", msg)
	}
	if content := fields["content"].GetStringValue(); content != "" {
		return content, nil
	}
	if output := fields["output"].GetStructValue(); output != nil {
		data, err := json.Marshal(output.AsMap())
		if err != nil {
			return "", fmt.Errorf("encode sidecar output: %w", err)
		}
		return string(data), nil
	}
	return "", errEmptySidecarResponse
}

// Ping checks the sidecar through the standard gRPC health service.
func (b *GRPCBackend) Ping(ctx context.Context) error {
	resp, err := b.health.Check(ctx, &healthpb.HealthCheckRequest{Service: GeneratorService})
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return fmt.Errorf("generation sidecar status %s", resp.GetStatus())
	}
	return nil
}

// Close closes the gRPC connection.
func (b *GRPCBackend) Close() {
	if b.conn != nil {
		if err := b.conn.Close(); err != nil {
			b.logger.Warn("failed to close gRPC connection", "error", err)
		}
	}
}
