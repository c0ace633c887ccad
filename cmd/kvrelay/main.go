// Command kvrelay runs the HTTP relay described by §6: it parses flags
// (optionally layered over a YAML defaults file), opens the SQLite
// engine, and serves the bootstrap and datapath endpoints until an
// interrupt or termination signal arrives.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Ap3pp3rs94/kvrelay/internal/api"
	"github.com/Ap3pp3rs94/kvrelay/internal/config"
	"github.com/Ap3pp3rs94/kvrelay/internal/engine/sqlitekv"
	"github.com/Ap3pp3rs94/kvrelay/internal/telemetry"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cfg, err := parseFlags(args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(os.Stderr, "kvrelay:", err)
		return 2
	}

	log := telemetry.New(os.Stdout, "kvrelay", telemetry.LevelInfo)

	store, err := sqlitekv.Open(cfg.DataFile)
	if err != nil {
		log.Error(context.Background(), "engine open failed", map[string]any{"cause": err.Error()})
		return 1
	}
	defer store.Close()

	ready := func() bool { return true }

	srv := api.NewServer(api.Config{
		DatabaseID:        cfg.DatabaseID,
		AccessToken:       cfg.AccessToken,
		EphemeralTokenTTL: cfg.EphemeralTokenTTL,
	}, store, log, ready)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "kvrelay_start", map[string]any{
			"addr":        httpServer.Addr,
			"database_id": cfg.DatabaseID,
		})
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info(context.Background(), "shutdown_signal", nil)
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(context.Background(), "server_error", map[string]any{"cause": err.Error()})
			return 1
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error(context.Background(), "shutdown_error", map[string]any{"cause": err.Error()})
		return 1
	}

	log.Info(context.Background(), "kvrelay_stopped", nil)
	return 0
}

// parseFlags implements §6.3's CLI surface: flags override any value
// loaded from an optional --config YAML file, which in turn overrides
// the built-in defaults.
func parseFlags(args []string) (config.Config, error) {
	fs := flag.NewFlagSet("kvrelay", flag.ContinueOnError)

	def := config.Defaults()
	configPath := fs.String("config", "", "optional YAML file supplying defaults")
	host := fs.String("host", def.Host, "address to listen on")
	port := fs.Int("port", def.Port, "port to listen on")
	databaseID := fs.String("database-id", "", "UUID reported to clients as databaseId (required)")
	accessToken := fs.String("access-token", "", "long-lived bearer token for the bootstrap endpoint (required)")
	ttlMs := fs.Int64("ephemeral-token-ttl", def.EphemeralTokenTTLMs, "ephemeral token lifetime in milliseconds")

	if err := fs.Parse(args); err != nil {
		return config.Config{}, err
	}

	cfg := def
	if *configPath != "" {
		merged, err := config.LoadFile(*configPath, def)
		if err != nil {
			return config.Config{}, err
		}
		cfg = merged
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "host":
			cfg.Host = *host
		case "port":
			cfg.Port = *port
		case "database-id":
			cfg.DatabaseID = *databaseID
		case "access-token":
			cfg.AccessToken = *accessToken
		case "ephemeral-token-ttl":
			cfg.EphemeralTokenTTLMs = *ttlMs
			cfg.EphemeralTokenTTL = time.Duration(*ttlMs) * time.Millisecond
		}
	})

	if cfg.DataFile == "" && fs.NArg() > 0 {
		cfg.DataFile = fs.Arg(0)
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}
