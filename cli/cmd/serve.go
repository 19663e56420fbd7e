package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/purplesyringa/sunwalker-conductor/blob"
	"github.com/purplesyringa/sunwalker-conductor/conf"
	"github.com/purplesyringa/sunwalker-conductor/log"
	"github.com/purplesyringa/sunwalker-conductor/metrics"
	"github.com/purplesyringa/sunwalker-conductor/relay"
	"github.com/purplesyringa/sunwalker-conductor/relay/redis"
	"github.com/purplesyringa/sunwalker-conductor/relay/webhook"
	"github.com/purplesyringa/sunwalker-conductor/session"
	"github.com/purplesyringa/sunwalker-conductor/transport"
)

// shutdownGracePeriod bounds how long serve waits for in-flight invoker
// connections to close after a termination signal.
const shutdownGracePeriod = 10 * time.Second

// ServeCommand returns the serve command: the conductor's only execution
// entrypoint, binding listen.invokers and accepting invoker connections
// until terminated.
func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the conductor daemon",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "config",
				Aliases:  []string{"c"},
				Usage:    "path to the conductor TOML configuration file",
				Required: true,
			},
		},
		Action: serveAction,
	}
}

func serveAction(c *cli.Context) error {
	cfg, err := conf.Load(c.String("config"))
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	logger := log.NewLogger()

	store := blob.NewMemoryStore()

	sink, err := buildRelaySink(cfg.Relay, logger)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	defer func() { _ = sink.Close() }()

	collector := metrics.NewCollector()
	conductor := session.NewConductor(store, sink, collector)
	server := transport.NewServer(conductor, logger, cfg.Data.Problems)

	httpServer := &http.Server{
		Addr:    cfg.Listen.Invokers,
		Handler: server.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening for invoker connections", map[string]any{"address": cfg.Listen.Invokers})
		errCh <- httpServer.ListenAndServe()
	}()

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return cli.Exit(fmt.Sprintf("conductor: shutdown error: %v", err), 1)
		}
		return nil
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return cli.Exit(fmt.Sprintf("conductor: listen error: %v", err), 1)
		}
		return nil
	}
}

func buildRelaySink(cfg conf.RelayConfig, logger *log.Logger) (relay.Sink, error) {
	var sink relay.Sink
	switch cfg.Type {
	case "", "none":
		return relay.NewNoopSink(), nil
	case "webhook":
		adapter, err := webhook.New(webhook.Config{URL: cfg.URL, Headers: cfg.Headers})
		if err != nil {
			return nil, fmt.Errorf("conductor: invalid webhook relay config: %w", err)
		}
		sink = adapter
	case "redis":
		adapter, err := redis.New(redis.Config{URL: cfg.URL, Channel: cfg.Channel})
		if err != nil {
			return nil, fmt.Errorf("conductor: invalid redis relay config: %w", err)
		}
		sink = adapter
	default:
		return nil, fmt.Errorf("conductor: unknown relay.type %q", cfg.Type)
	}
	return relay.NewBufferedSink(sink, relay.BufferedConfig{Logger: logger}), nil
}
