// Command shelld hosts the authentication shell for a native web view.
//
// Usage:
//
//	shelld [--config <path>] [--addr <host:port>] [--env-file <path>]
//
// The web view loads the frame address reported by the HTTP API and relays
// every message the frame posts over the websocket at /frame/messages.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/infodancer/shellauth"
	"github.com/infodancer/shellauth/channel"
	"github.com/infodancer/shellauth/config"
	"github.com/infodancer/shellauth/frame"
	_ "github.com/infodancer/shellauth/kv/all"
	"github.com/infodancer/shellauth/notify"
	"github.com/infodancer/shellauth/shell"
	"github.com/infodancer/shellauth/shellhttp"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var configPath, addr, envFile string

	flagSet := pflag.NewFlagSet("shelld", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", os.Getenv("SHELLAUTH_CONFIG"), "path to TOML configuration file")
	flagSet.StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	flagSet.StringVar(&envFile, "env-file", ".env", "environment file to load before reading SHELLAUTH_* variables")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return err
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := cfg.NewLogger(os.Stderr)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	store, err := cfg.OpenStore(logger)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	handshake, err := cfg.Handshake()
	if err != nil {
		return err
	}
	ch, err := channel.New(cfg.Origin(), logger)
	if err != nil {
		return err
	}

	frames := frame.NewRecorder()
	notifications := notify.NewQueue(notify.DefaultCapacity, logger)

	sh, err := shell.New(shell.Options{
		Handshake:   handshake,
		Store:       store,
		Channel:     ch,
		Renderer:    frames,
		Notifier:    notifications,
		Logger:      logger,
		MockPasskey: cfg.Server.MockPasskey,
	})
	if err != nil {
		return err
	}
	defer sh.Close()

	frames.OnLoaded(func(h shellauth.FrameHandle) {
		logger.Debug("frame loaded", slog.String("frame", h.ID))
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if _, err := sh.Open(ctx, shellauth.Navigation{}); err != nil {
		return err
	}

	server := shellhttp.NewServer(shellhttp.Options{
		Shell:         sh,
		Frames:        frames,
		Notifications: notifications,
		Messages:      channel.NewTransport(ch, nil, logger),
		MockPasskey:   cfg.Server.MockPasskey,
		Logger:        logger,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logger.Info("shelld listening",
		slog.String("addr", cfg.Server.Addr),
		slog.String("remote", handshake.BaseURL()),
		slog.String("trusted_origin", ch.TrustedOrigin()),
		slog.String("store", cfg.Store.Type))
	return runServer(ctx, srv)
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
