package cli

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/easeaico/project-jobo/internal/config"
	"github.com/easeaico/project-jobo/internal/personalization"
)

func testConfig() config.Config {
	return config.Config{
		DBType:            config.DBSQLite,
		DatabaseURL:       ":memory:",
		VectorBackend:     config.VectorChromem,
		EmbeddingProvider: config.EmbeddingHash,
		LLMProvider:       config.ProviderOpenAI,
		LLMModel:          "gpt-4o-mini",
		OpenAIAPIKey:      "test-key",
		MaxTokens:         1000,
		Temperature:       0.7,
		GenerationTimeout: time.Second,
		RecencyCapacity:   50,
		RecencyTTL:        time.Hour,
		AssistantName:     "Jobo",
	}
}

func TestBootstrapEmbeddedBackends(t *testing.T) {
	a, err := bootstrap(context.Background(), testConfig())
	if err != nil {
		t.Fatalf("expected bootstrap to succeed, got %v", err)
	}
	defer a.Close()

	if a.engine == nil {
		t.Fatalf("expected engine")
	}
	if _, err := a.engine.Insights(context.Background(), "nobody"); !errors.Is(err, personalization.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestBootstrapRejectsUnknownProvider(t *testing.T) {
	cfg := testConfig()
	cfg.LLMProvider = "mystery"
	if _, err := bootstrap(context.Background(), cfg); err == nil {
		t.Fatalf("expected error for unknown provider")
	}
}

func TestBootstrapONNXRequiresBuildTag(t *testing.T) {
	cfg := testConfig()
	cfg.EmbeddingProvider = config.EmbeddingONNX
	cfg.ONNXModelPath = "/nonexistent/model.onnx"
	cfg.ONNXTokenizerPath = "/nonexistent/vocab.txt"
	if _, err := bootstrap(context.Background(), cfg); err == nil {
		t.Fatalf("expected onnx embedder construction to fail")
	}
}

func TestExecuteClosesBackendsWhenCommandFails(t *testing.T) {
	RootCmd.SetArgs([]string{"--user", "u1", "feedback"})
	t.Cleanup(func() { RootCmd.SetArgs([]string{}) })

	err := Execute(context.Background(), testConfig())
	if err == nil || !strings.Contains(err.Error(), "--id is required") {
		t.Fatalf("expected the feedback command to fail, got %v", err)
	}
	if current != nil {
		t.Fatalf("expected the app to be closed after a failed command")
	}
}

func TestExecuteRequiresUser(t *testing.T) {
	userID = ""
	RootCmd.SetArgs([]string{"insights"})
	t.Cleanup(func() { RootCmd.SetArgs([]string{}) })

	if err := Execute(context.Background(), testConfig()); err == nil || !strings.Contains(err.Error(), "--user is required") {
		t.Fatalf("expected missing user error, got %v", err)
	}
}
