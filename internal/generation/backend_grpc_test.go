package generation

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

// startSidecar serves the Generate method with respond and returns a connected backend.
func startSidecar(t *testing.T, respond func(method string, in *structpb.Struct) *structpb.Struct) (*GRPCBackend, *health.Server) {
	t.Helper()
	lis := bufconn.Listen(1024 * 1024)

	hs := health.NewServer()
	srv := grpc.NewServer(grpc.UnknownServiceHandler(func(_ any, stream grpc.ServerStream) error {
		method, _ := grpc.MethodFromServerStream(stream)
		in := &structpb.Struct{}
		if err := stream.RecvMsg(in); err != nil {
			return err
		}
		return stream.SendMsg(respond(method, in))
	}))
	healthpb.RegisterHealthServer(srv, hs)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	backend, err := NewGRPCBackend(GRPCConfig{Address: "passthrough:///bufnet"}, nil,
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}))
	require.NoError(t, err)
	t.Cleanup(backend.Close)
	return backend, hs
}

func TestGRPCBackend_GenerateContent(t *testing.T) {
	var gotMethod string
	var gotRequest map[string]any
	backend, _ := startSidecar(t, func(method string, in *structpb.Struct) *structpb.Struct {
		gotMethod = method
		gotRequest = in.AsMap()
		out, _ := structpb.NewStruct(map[string]any{"content": `{"goal":"x"}`})
		return out
	})

	content, err := backend.Generate(context.Background(), BackendRequest{
		PromptName: "requirements",
		System:     "sys",
		Prompt:     "prompt",
		Schema:     Shape{Fields: []Field{{Name: "goal"}}}.JSONSchema(),
	})
	require.NoError(t, err)
	assert.Equal(t, `{"goal":"x"}`, content)
	assert.Equal(t, generateMethod, gotMethod)
	assert.Equal(t, "requirements", gotRequest["prompt_name"])
	assert.Equal(t, "prompt", gotRequest["prompt"])
	assert.Contains(t, gotRequest, "output_schema")
}

func TestGRPCBackend_GenerateStructuredOutput(t *testing.T) {
	backend, _ := startSidecar(t, func(string, *structpb.Struct) *structpb.Struct {
		out, _ := structpb.NewStruct(map[string]any{"output": map[string]any{"goal": "x"}})
		return out
	})

	content, err := backend.Generate(context.Background(), BackendRequest{PromptName: "p"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"goal":"x"}`, content)
}

func TestGRPCBackend_GenerateErrors(t *testing.T) {
	tests := []struct {
		name string
		resp map[string]any
	}{
		{"sidecar error", map[string]any{"error": "model unavailable"}},
		{"empty", map[string]any{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend, _ := startSidecar(t, func(string, *structpb.Struct) *structpb.Struct {
				out, _ := structpb.NewStruct(tt.resp)
				return out
			})
			_, err := backend.Generate(context.Background(), BackendRequest{PromptName: "p"})
			require.Error(t, err)
		})
	}
}

func TestGRPCBackend_Ping(t *testing.T) {
	backend, hs := startSidecar(t, func(string, *structpb.Struct) *structpb.Struct {
		return &structpb.Struct{}
	})

	hs.SetServingStatus(GeneratorService, healthpb.HealthCheckResponse_SERVING)
	require.NoError(t, backend.Ping(context.Background()))

	hs.SetServingStatus(GeneratorService, healthpb.HealthCheckResponse_NOT_SERVING)
	require.Error(t, backend.Ping(context.Background()))
}
