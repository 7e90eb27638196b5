package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/aretw0/stratum"
	"github.com/aretw0/stratum/internal/config"
	"github.com/aretw0/stratum/pkg/adapters/ident"
	syncstore "github.com/aretw0/stratum/pkg/adapters/sync"
	"github.com/aretw0/stratum/pkg/core"
)

var configPath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the engine and expose the viewer websocket endpoint",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to the YAML config file")
	rootCmd.AddCommand(serveCmd)
}

func runServe(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	level := new(slog.LevelVar)
	level.Set(parseLevel(cfg.LogLevel))
	if verbose {
		level.Set(slog.LevelDebug)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	var remote core.RemoteStore
	if cfg.Remote.URL != "" {
		client, err := syncstore.Dial(ctx, syncstore.Options{
			URL:       cfg.Remote.URL,
			Token:     cfg.Remote.Token,
			Logger:    logger,
			Reconnect: cfg.Remote.Reconnect,
		})
		if err != nil {
			// The local layer still works; start without the remote.
			logger.Warn("remote store unavailable, running local-only", "error", err)
		} else {
			remote = client
			defer client.Close()
		}
	}

	identity := ident.NewStatic(core.Identity{ID: cfg.Identity.ID, Email: cfg.Identity.Email})

	engine, err := stratum.New(
		stratum.WithLogger(logger),
		stratum.WithDataDir(cfg.DataDir),
		stratum.WithRemoteStore(remote),
		stratum.WithIdentityProvider(identity),
		stratum.WithIgnorePatterns(cfg.IgnorePatterns),
	)
	if err != nil {
		return err
	}
	defer engine.Close()

	if configPath != "" {
		err := config.Watch(ctx, configPath, logger, func(next config.Config) {
			engine.Repository().SetIgnorePatterns(next.IgnorePatterns)
			level.Set(parseLevel(next.LogLevel))
		})
		if err != nil {
			logger.Warn("config watching disabled", "error", err)
		}
	}

	mux := http.NewServeMux()
	mux.Handle("/ws", engine.Hub())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	srv := &http.Server{Addr: cfg.Listen, Handler: mux}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
