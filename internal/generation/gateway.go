package generation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ashureev/analystai/internal/domain"
)

// Backend sends one rendered prompt to a model and returns its raw text answer.
type Backend interface {
	// Name identifies the backend in logs and metrics.
	Name() string

	// Generate performs a single model call. Implementations must not retry.
	Generate(ctx context.Context, req BackendRequest) (string, error)
}

// BackendRequest is the provider-neutral form of one structured generation call.
type BackendRequest struct {
	PromptName string
	System     string
	Prompt     string
	// Schema is the JSON schema of the required output object.
	Schema map[string]any
}

// Gateway validates input, renders prompts, calls the backend and enforces the output shape.
// It holds no per-call state and is safe for concurrent use.
type Gateway struct {
	backend Backend
	logger  *slog.Logger
	metrics *Metrics
	timeout time.Duration
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) {
		g.logger = logger
	}
}

// WithMetrics records call outcomes and latency.
func WithMetrics(m *Metrics) Option {
	return func(g *Gateway) {
		g.metrics = m
	}
}

// WithTimeout bounds each backend call. Zero leaves the caller's deadline in charge.
func WithTimeout(d time.Duration) Option {
	return func(g *Gateway) {
		g.timeout = d
	}
}

// NewGateway creates a gateway over backend.
func NewGateway(backend Backend, opts ...Option) *Gateway {
	g := &Gateway{
		backend: backend,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate runs prompt against input and returns a record holding every output field.
// Invalid input yields a *domain.ValidationError without calling the backend; backend
// failures and non-conformant answers yield a *domain.GenerationError.
func (g *Gateway) Generate(ctx context.Context, prompt *Prompt, input Record) (Record, error) {
	if err := prompt.Input.Validate(input); err != nil {
		g.metrics.observe(prompt.Name, outcomeInvalidInput, 0)
		return nil, err
	}

	text, err := prompt.Render(input)
	if err != nil {
		g.metrics.observe(prompt.Name, outcomeInvalidInput, 0)
		return nil, &domain.GenerationError{Op: prompt.Name, Err: err}
	}

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	started := time.Now()
	raw, err := g.backend.Generate(ctx, BackendRequest{
		PromptName: prompt.Name,
		System:     prompt.systemMessage(),
		Prompt:     text,
		Schema:     prompt.Output.JSONSchema(),
	})
	elapsed := time.Since(started)
	if err != nil {
		g.metrics.observe(prompt.Name, outcomeBackendError, elapsed)
		g.logger.Warn("Generation backend call failed",
			"prompt", prompt.Name,
			"backend", g.backend.Name(),
			"duration", elapsed,
			"error", err)
		return nil, &domain.GenerationError{Op: prompt.Name, Err: err}
	}

	out, err := decodeOutput(raw, prompt.Output)
	if err != nil {
		g.metrics.observe(prompt.Name, outcomeMalformedOutput, elapsed)
		g.logger.Warn("Generation output did not match shape",
			"prompt", prompt.Name,
			"backend", g.backend.Name(),
			"response_length", len(raw),
			"error", err)
		return nil, &domain.GenerationError{Op: prompt.Name, Err: err}
	}

	g.metrics.observe(prompt.Name, outcomeSuccess, elapsed)
	g.logger.Debug("Generation completed",
		"prompt", prompt.Name,
		"backend", g.backend.Name(),
		"duration", elapsed)
	return out, nil
}

var errNoJSONObject = errors.New("model response contains no JSON object")

func decodeOutput(raw string, shape Shape) (Record, error) {
	obj := ExtractJSON(raw)
	if obj == "" {
		return nil, errNoJSONObject
	}

	var decoded map[string]any
	if err := json.Unmarshal([]byte(obj), &decoded); err != nil {
		return nil, fmt.Errorf("decode model response: %w", err)
	}

	out := make(Record, len(shape.Fields))
	for _, f := range shape.Fields {
		value, ok := decoded[f.Name]
		if !ok {
			return nil, fmt.Errorf("output field %q is missing", f.Name)
		}
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("output field %q is %T, want string", f.Name, value)
		}
		if strings.TrimSpace(s) == "" {
			return nil, fmt.Errorf("output field %q is empty", f.Name)
		}
		out[f.Name] = s
	}
	return out, nil
}
