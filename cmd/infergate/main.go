package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"infergate/internal/config"
	"infergate/internal/supervisor"
)

func main() {
	// Flags with environment variable defaults
	defaultEnvFile := "config.env"
	if v := os.Getenv("INFERGATE_ENV_FILE"); v != "" {
		defaultEnvFile = v
	}
	cfgPath := flag.String("config", "", "Optional config file (yaml/json/toml)")
	envFile := flag.String("env-file", defaultEnvFile, "Env file loaded before resolution (ignored when absent)")
	logLevel := flag.String("log-level", envOr("INFERGATE_LOG_LEVEL", "info"), "Log level: debug|info|warn|error")
	pretty := flag.Bool("pretty", false, "Human-readable console log output")
	flag.Parse()

	log := newLogger(*logLevel, *pretty)

	config.LoadEnvFile(*envFile, log)

	var fileCfg config.File
	if *cfgPath != "" {
		c, err := config.Load(*cfgPath)
		if err != nil {
			log.Fatal().Err(err).Str("path", *cfgPath).Msg("failed to load config file")
		}
		fileCfg = c
	}
	rt := config.Resolve(fileCfg, log)
	log.Info().
		Str("model", rt.ModelRepo).
		Str("model_path", rt.ModelPath).
		Str("gateway", rt.GatewayAddr).
		Str("backend", rt.BackendBaseURL).
		Bool("warmup", rt.WarmupEnabled).
		Msg("resolved runtime config")

	// Graceful shutdown (Ctrl+C / SIGTERM)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := supervisor.New(rt, log).Run(ctx); err != nil {
		log.Error().Err(err).Msg("exiting")
		os.Exit(1)
	}
}

func newLogger(level string, pretty bool) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	if pretty {
		w := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
		return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stderr).Level(lvl).With().Timestamp().Logger()
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
