package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/agentgate/agentgate/internal/browser"
	"github.com/agentgate/agentgate/internal/config"
	"github.com/agentgate/agentgate/internal/engine"
	"github.com/agentgate/agentgate/internal/eventlog"
	"github.com/agentgate/agentgate/internal/httpapi"
	"github.com/agentgate/agentgate/internal/provider"
	"github.com/agentgate/agentgate/internal/session"
	"github.com/agentgate/agentgate/internal/tools"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the agent gateway HTTP server",
	Run:   runServe,
}

func runServe(cmd *cobra.Command, args []string) {
	printHeader("🌐 AgentGate Server")

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Config error: %v\n", err)
		os.Exit(1)
	}
	if cfg.Provider.APIKey == "" {
		fmt.Println("Warning: no API key configured; model calls will fail")
	}

	if err := os.MkdirAll(filepath.Dir(cfg.EventLog.Path), 0755); err != nil {
		fmt.Printf("Event log dir error: %v\n", err)
		os.Exit(1)
	}
	evlog, err := eventlog.NewService(cfg.EventLog.Path)
	if err != nil {
		fmt.Printf("Event log error: %v\n", err)
		os.Exit(1)
	}
	defer evlog.Close()

	if cfg.EventLog.Kafka.Enabled {
		// Closed together with the service.
		evlog.SetPublisher(eventlog.NewPublisher(cfg.EventLog.Kafka.Brokers, cfg.EventLog.Kafka.Topic))
		fmt.Printf("Kafka event mirror enabled (topic %s)\n", cfg.EventLog.Kafka.Topic)
	}

	store := session.NewStore(func(id string) {
		// Reused ids must not inherit another run's log.
		_ = evlog.Clear(id)
	})

	prov := provider.NewOpenAIProvider(cfg.Provider.APIKey, cfg.Provider.APIBase, cfg.Model.Name)

	factoryOpts := tools.FactoryOptions{
		TerminalTimeoutSeconds: cfg.Tools.Terminal.TimeoutSeconds,
		SearchMaxResults:       cfg.Tools.Search.MaxResults,
	}
	var drv *browser.Driver
	if cfg.Tools.Browser.Enabled {
		drv = browser.NewDriver(browser.Config{
			Headless:            cfg.Tools.Browser.Headless,
			NavigationTimeoutMs: cfg.Tools.Browser.NavigationTimeoutMs,
		})
		defer drv.Shutdown()
		factoryOpts.Browser = drv
	}

	eng := engine.New(engine.Options{
		Store:            store,
		Provider:         prov,
		Tools:            tools.NewFactory(factoryOpts),
		EventLog:         evlog,
		Model:            cfg.Model.Name,
		MaxTokens:        cfg.Model.MaxTokens,
		Temperature:      cfg.Model.Temperature,
		MaxIterations:    cfg.Model.MaxToolIterations,
		SystemPrompt:     cfg.Model.SystemPrompt,
		CommentOnDecline: cfg.Model.CommentOnDecline,
	})

	srv := httpapi.NewServer(httpapi.Options{
		Engine:    eng,
		Store:     store,
		EventLog:  evlog,
		SafeMode:  cfg.Gateway.SafeMode,
		AuthToken: cfg.Gateway.AuthToken,
		Version:   version,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Gateway.Host, cfg.Gateway.Port)
	fmt.Printf("📡 API Server listening on http://%s (safe mode: %v)\n", addr, cfg.Gateway.SafeMode)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(addr) }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		if err != nil {
			fmt.Printf("API Server Error: %v\n", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		fmt.Println("\nShutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Shutdown error: %v\n", err)
		}
	}
}
