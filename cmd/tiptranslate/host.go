package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/entrhq/tiptranslate/pkg/config"
	"github.com/entrhq/tiptranslate/pkg/coordinator"
	"github.com/entrhq/tiptranslate/pkg/llm/openai"
	"github.com/entrhq/tiptranslate/pkg/logging"
	"github.com/entrhq/tiptranslate/pkg/popup"
	"github.com/entrhq/tiptranslate/pkg/popup/tui"
	"github.com/entrhq/tiptranslate/pkg/transport/pubsubbus"
	"github.com/entrhq/tiptranslate/pkg/transport/wsport"
)

const shutdownTimeout = 5 * time.Second

func run(ctx context.Context, cli *CLIConfig) error {
	cfg, err := config.Load(cli.ConfigFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	cli.apply(cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// A logger that failed to open its file still writes to stderr.
	logger, _ := logging.NewLogger("host")
	defer logger.Close()
	logger.SetLevel(cfg.LogLevel())

	provider, err := openai.NewProvider(cfg.LLM.APIKey,
		openai.WithModel(cfg.LLM.Model),
		openai.WithBaseURL(cfg.LLM.BaseURL),
		openai.WithMaxTokens(cfg.LLM.MaxTokens),
		openai.WithSystemPrompt(cfg.LLM.SystemPrompt),
	)
	if err != nil {
		return fmt.Errorf("failed to create LLM provider: %w", err)
	}
	logger.Infof("Using model %s at %s", provider.GetModel(), provider.GetBaseURL())

	bus, err := pubsubbus.Open(ctx, cfg.Transport.BroadcastURL, pubsubbus.WithLogger(logger.With("bus")))
	if err != nil {
		return err
	}
	defer bus.Close(context.Background())

	coord := coordinator.New(provider,
		coordinator.WithLogger(logger.With("coordinator")),
		coordinator.WithGatewayTimeout(cfg.LLM.Timeout.Std()),
	)

	ports := wsport.NewServer()
	httpServer, err := listen(cfg.Transport.Listen, ports, logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	coordDone := make(chan error, 1)
	go func() { coordDone <- coord.Run(ctx, ports, bus) }()

	select {
	case <-coord.Ready():
	case err := <-coordDone:
		cancel()
		shutdown(httpServer, ports)
		return fmt.Errorf("coordinator failed to start: %w", err)
	}

	if cli.Headless {
		fmt.Printf("tiptranslate serving ports on %s (logs: %s)\n", cfg.Transport.Listen, logger.LogPath())
		<-ctx.Done()
	} else if err := runPopup(ctx, bus, cli.Correlate, logger); err != nil {
		logger.Errorf("Popup failed: %v", err)
	}
	cancel()
	shutdown(httpServer, ports)

	runErr := <-coordDone
	stats := coord.Stats()
	logger.Infof("Coordinator stopped: %d port requests, %d popup requests, %d failures, %d ports still open",
		stats.PortRequests, stats.BroadcastRequests, stats.Failures, stats.OpenPorts)
	return runErr
}

func shutdown(httpServer *http.Server, ports *wsport.Server) {
	ctx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()
	if httpServer != nil {
		_ = httpServer.Shutdown(ctx)
	}
	_ = ports.Close()
}

// listen serves websocket ports in the background. An empty address disables
// the listener.
func listen(addr string, ports *wsport.Server, logger *logging.Logger) (*http.Server, error) {
	if addr == "" {
		return nil, nil
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle(wsport.PathPrefix, ports)
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("Port listener stopped: %v", err)
		}
	}()
	logger.Infof("Serving page agent ports on %s", ln.Addr())
	return srv, nil
}

func runPopup(ctx context.Context, bus *pubsubbus.Bus, correlate bool, logger *logging.Logger) error {
	opts := []popup.Option{popup.WithLogger(logger.With("popup"))}
	if correlate {
		opts = append(opts, popup.WithCorrelation())
	}
	client := popup.NewClient(bus, opts...)
	defer client.Close(context.Background())

	if err := client.Subscribe(ctx); err != nil {
		return err
	}
	go func() {
		if err := client.Listen(ctx); err != nil && ctx.Err() == nil {
			logger.Warnf("Popup stopped listening: %v", err)
		}
	}()

	return tui.Run(ctx, client)
}
