package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/ollama/ollama/api"

	"github.com/askdf/askdf/pkg/controller"
	"github.com/askdf/askdf/pkg/model"
	"github.com/askdf/askdf/pkg/model/gemini"
	"github.com/askdf/askdf/pkg/model/llama"
	"github.com/askdf/askdf/pkg/model/openai"
	"github.com/askdf/askdf/pkg/sandbox"
	"github.com/askdf/askdf/pkg/server"
	"github.com/askdf/askdf/pkg/store/sqlite"
)

func main() {
	// Setup logger.
	opts := &slog.HandlerOptions{Level: slog.LevelDebug}
	logger := slog.New(slog.NewTextHandler(os.Stderr, opts))
	slog.SetDefault(logger)

	ctx := context.Background()

	addr := os.Getenv("ASKDF_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	// Initialize store.
	wd, _ := os.Getwd()
	dbPath := filepath.Join(wd, "data", "askdf.db")
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		slog.Error("Failed to create data directory", "path", filepath.Dir(dbPath), "error", err)
		os.Exit(1)
	}

	attempts, err := sqlite.New(dbPath)
	if err != nil {
		slog.Error("Failed to initialize store", "error", err)
		os.Exit(1)
	}
	defer attempts.Close()

	// Remote backend: OpenAI-compatible when ASKDF_BACKEND=openai, Gemini
	// otherwise.
	var remote model.Backend
	var lister model.Lister
	switch os.Getenv("ASKDF_BACKEND") {
	case "openai":
		apiKey := os.Getenv("OPENAI_API_KEY")
		if apiKey == "" {
			slog.Error("OPENAI_API_KEY environment variable not set")
			os.Exit(1)
		}
		remote = openai.New(apiKey, os.Getenv("OPENAI_BASE_URL"), os.Getenv("OPENAI_MODEL"))
	default:
		apiKey := os.Getenv("GEMINI_API_KEY")
		if apiKey == "" {
			slog.Error("GEMINI_API_KEY environment variable not set")
			os.Exit(1)
		}
		g, err := gemini.New(ctx, apiKey, os.Getenv("GEMINI_MODEL"))
		if err != nil {
			slog.Error("Failed to initialize Gemini backend", "error", err)
			os.Exit(1)
		}
		remote = g
		lister = g
	}

	// Local backend via a resident ollama engine. Optional: turns requesting
	// local mode fail cleanly when the engine is unreachable.
	var local model.Backend
	var lifecycle model.Lifecycle
	if client, err := api.ClientFromEnvironment(); err == nil {
		lc := llama.NewLifecycle(client, os.Getenv("ASKDF_LOCAL_MODEL"))
		local = llama.New(client, os.Getenv("ASKDF_LOCAL_MODEL"), lc)
		lifecycle = lc
	} else {
		slog.Warn("Local model disabled", "error", err)
	}

	// Initialize the script sandbox.
	session, err := sandbox.NewSession()
	if err != nil {
		slog.Error("Failed to initialize sandbox", "error", err)
		os.Exit(1)
	}
	defer session.Close()

	events := controller.NewEvents()

	ctrl, err := controller.New(controller.Config{
		Remote:   remote,
		Local:    local,
		Sandbox:  session,
		Attempts: attempts,
		Events:   events,
	})
	if err != nil {
		slog.Error("Failed to initialize controller", "error", err)
		os.Exit(1)
	}

	// Start server.
	srv := server.New(server.Config{
		Runner:    ctrl,
		Attempts:  attempts,
		Models:    lister,
		Lifecycle: lifecycle,
		Sandbox:   session,
		Events:    events,
	})
	if err := srv.Start(addr); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
}
