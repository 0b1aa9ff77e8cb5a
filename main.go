package main

import (
	"context"
	"crypto/tls"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	_ "go.uber.org/automaxprocs"

	"parley/server/internal/chat"
	"parley/server/internal/config"
	"parley/server/internal/session"
	"parley/server/internal/store"
)

// Version is injected at build time with -ldflags.
var Version = "0.1.0-dev"

func main() {
	// A local .env is a development convenience; absence is fine.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}

	args := os.Args[1:]
	if RunCLI(args, cfg.DBPath) {
		return
	}

	// Positional arguments override the environment:
	// server [port [session_timeout_seconds]]
	if len(args) > 0 {
		p, err := strconv.Atoi(args[0])
		if err != nil || p <= 0 || p > 65535 {
			slog.Error("invalid port", "arg", args[0])
			os.Exit(1)
		}
		cfg.Port = p
	}
	if len(args) > 1 {
		secs, err := strconv.Atoi(args[1])
		if err != nil || secs <= 0 {
			slog.Error("invalid session timeout", "arg", args[1])
			os.Exit(1)
		}
		cfg.SessionTimeout = time.Duration(secs) * time.Second
	}

	// Auto-enable debug logging for dev builds; override with PARLEY_DEBUG.
	level := slog.LevelInfo
	if cfg.Debug || strings.Contains(Version, "dev") {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	slog.Info("starting server", "version", Version, "port", cfg.Port, "db", cfg.DBPath)

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		slog.Error("open store", "err", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("close store", "err", closeErr)
		}
	}()

	sessions := session.New(cfg.SessionTimeout, session.DefaultCapacity)
	promReg := prometheus.NewRegistry()
	srv := chat.NewServer(st, sessions, chat.NewMetrics(promReg))

	addr := ":" + strconv.Itoa(cfg.Port)
	var ln net.Listener
	if cfg.TLS {
		tlsConf, fingerprint, tlsErr := generateTLSConfig(365*24*time.Hour, "")
		if tlsErr != nil {
			slog.Error("generate tls config", "err", tlsErr)
			os.Exit(1)
		}
		slog.Info("tls enabled", "fingerprint", fingerprint)
		ln, err = tls.Listen("tcp", addr, tlsConf)
	} else {
		ln, err = net.Listen("tcp", addr)
	}
	if err != nil {
		slog.Error("bind", "addr", addr, "err", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	go func() {
		<-sigCh
		slog.Info("received interrupt, shutting down")
		cancel()
	}()

	go srv.RunReaper(ctx, cfg.ReapInterval)
	go RunStatsLogger(ctx, st, sessions, time.Minute)

	if cfg.APIAddr != "" {
		api := NewAPIServer(st, sessions, promReg)
		go api.Run(ctx, cfg.APIAddr)
	}

	if err := srv.Serve(ctx, ln); err != nil {
		slog.Error("server error", "err", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}
