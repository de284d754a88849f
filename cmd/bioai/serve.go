package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/santosrai/bioai/agent"
	"github.com/santosrai/bioai/config"
	"github.com/santosrai/bioai/core"
	"github.com/santosrai/bioai/engine"
	"github.com/santosrai/bioai/eventlog"
	"github.com/santosrai/bioai/logging"
	"github.com/santosrai/bioai/model"
	"github.com/santosrai/bioai/model/anthropic"
	"github.com/santosrai/bioai/model/openai"
	"github.com/santosrai/bioai/molecular"
	"github.com/santosrai/bioai/pdb"
	"github.com/santosrai/bioai/server"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the workflow HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			return serve(cmd.Context(), settings)
		},
	}
}

func serve(ctx context.Context, settings *config.Settings) error {
	logger := logging.NewSlogLogger(
		logging.ParseLevel(settings.Log.Level),
		settings.Log.Format,
		false,
	).WithComponent("bioai").WithContext("version", version)

	completion, err := buildModel(settings)
	if err != nil {
		return err
	}

	pdbClient := pdb.New(func(o *pdb.Options) {
		o.Logger = logger.WithComponent("pdb")
	})
	analyzer := molecular.NewAnalyzer(func(o *molecular.Options) {
		o.Logger = logger.WithComponent("molecular")
	})

	registry := core.NewRegistry()
	agents := []core.Agent{
		agent.NewConversationAgent(completion, func(o *agent.ConversationOptions) {
			o.Logger = logger.WithAgent(core.AgentIDConversation)
		}),
		agent.NewSearchAgent(pdbClient, func(o *agent.SearchAgentOptions) {
			o.Logger = logger.WithAgent(core.AgentIDSearch)
		}),
		agent.NewAnalysisAgent(analyzer, func(o *agent.AnalysisAgentOptions) {
			o.Logger = logger.WithAgent(core.AgentIDAnalysis)
			o.Store = pdbClient
		}),
		agent.NewOrchestrationAgent(registry, func(o *agent.OrchestrationOptions) {
			o.Logger = logger.WithAgent(core.AgentIDOrchestration)
		}),
	}
	for _, a := range agents {
		if err := registry.Register(a); err != nil {
			return fmt.Errorf("register agent: %w", err)
		}
	}

	recorder, cleanup := buildRecorder(settings, logger)
	defer cleanup()

	eng := engine.New(registry, func(o *engine.Options) {
		o.Logger = logger.WithComponent("engine")
		o.Recorder = recorder
		o.MaxHops = settings.Workflow.MaxHops
	})

	srv := server.New(eng, func(o *server.Options) {
		o.Logger = logger.WithComponent("server")
		o.WorkflowTimeout = settings.Workflow.Timeout
	})

	httpServer := &http.Server{
		Addr:         settings.Server.Addr(),
		Handler:      srv,
		ReadTimeout:  settings.Server.ReadTimeout,
		WriteTimeout: settings.Server.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), settings.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func buildModel(settings *config.Settings) (model.Model, error) {
	switch settings.Model.Provider {
	case "openai":
		return openai.NewModel(func(o *openai.Options) {
			o.APIKey = settings.Model.APIKey
			o.BaseURL = settings.Model.BaseURL
			if settings.Model.Name != "" {
				o.Model = settings.Model.Name
			}
			o.Temperature = settings.Model.Temperature
			o.MaxTokens = int64(settings.Model.MaxTokens)
		}), nil
	case "anthropic":
		return anthropic.NewModel(func(o *anthropic.Options) {
			o.APIKey = settings.Model.APIKey
			if settings.Model.Name != "" {
				o.Model = anthropicsdk.Model(settings.Model.Name)
			}
			o.Temperature = settings.Model.Temperature
			o.MaxTokens = int64(settings.Model.MaxTokens)
		}), nil
	case "none":
		// conversation agent falls back to canned responses
		return nil, nil
	}
	return nil, fmt.Errorf("unknown model provider %q", settings.Model.Provider)
}

func buildRecorder(settings *config.Settings, logger logging.Logger) (eventlog.Recorder, func()) {
	if settings.Redis.Addr == "" {
		return eventlog.NoOpRecorder{}, func() {}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     settings.Redis.Addr,
		Password: settings.Redis.Password,
		DB:       settings.Redis.DB,
	})
	logger.Info("event recording enabled", "redis_addr", settings.Redis.Addr)

	return eventlog.NewRedisRecorder(client), func() { _ = client.Close() }
}
