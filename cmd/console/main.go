package main

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
	"gopkg.in/yaml.v3"

	"github.com/org/opsconsole/internal/action"
	"github.com/org/opsconsole/internal/console"
	"github.com/org/opsconsole/internal/crypto"
)

type logFileConfig struct {
	Path       string `yaml:"path"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

type config struct {
	ListenAddr   string        `yaml:"listen_addr"`
	TLSCertFile  string        `yaml:"tls_cert"`
	TLSKeyFile   string        `yaml:"tls_key"`
	BackendURL   string        `yaml:"backend_url"`
	BackendCA    string        `yaml:"backend_ca"`
	CookieSecret string        `yaml:"cookie_secret"` // base64
	CookieTTL    time.Duration `yaml:"cookie_ttl"`
	SecureCookie bool          `yaml:"secure_cookie"`
	RateLimit    int           `yaml:"rate_limit"`
	Bounds       action.Bounds `yaml:"bounds"`
	LogLevel     string        `yaml:"log_level"`
	LogFile      logFileConfig `yaml:"log_file"`
}

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfgFile := "console.yaml"
	if v := os.Getenv("CONSOLE_CONFIG"); v != "" {
		cfgFile = v
	}

	cfg := config{
		ListenAddr: ":8080",
		CookieTTL:  12 * time.Hour,
		Bounds:     action.DefaultBounds,
		LogLevel:   "info",
	}

	if data, err := os.ReadFile(cfgFile); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			log.Fatal().Err(err).Msg("failed to parse config")
		}
	} else {
		log.Warn().Str("file", cfgFile).Msg("config file not found, using defaults")
	}

	if v := os.Getenv("CONSOLE_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("CONSOLE_BACKEND_URL"); v != "" {
		cfg.BackendURL = v
	}
	if v := os.Getenv("CONSOLE_COOKIE_SECRET"); v != "" {
		cfg.CookieSecret = v
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.LogFile.Path != "" {
		var file io.Writer = &lumberjack.Logger{
			Filename:   cfg.LogFile.Path,
			MaxSize:    cfg.LogFile.MaxSizeMB,
			MaxBackups: cfg.LogFile.MaxBackups,
			MaxAge:     cfg.LogFile.MaxAgeDays,
			Compress:   cfg.LogFile.Compress,
		}
		log.Logger = log.Output(zerolog.MultiLevelWriter(zerolog.ConsoleWriter{Out: os.Stderr}, file))
	}

	if cfg.BackendURL == "" {
		log.Fatal().Msg("backend_url must be configured (or CONSOLE_BACKEND_URL env var)")
	}

	secret, err := cookieSecret(cfg.CookieSecret)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid cookie_secret")
	}

	srv, err := console.NewServer(console.Config{
		ListenAddr:   cfg.ListenAddr,
		TLSCertFile:  cfg.TLSCertFile,
		TLSKeyFile:   cfg.TLSKeyFile,
		BackendURL:   cfg.BackendURL,
		CACertFile:   cfg.BackendCA,
		CookieSecret: secret,
		CookieTTL:    cfg.CookieTTL,
		SecureCookie: cfg.SecureCookie,
		RateLimit:    cfg.RateLimit,
		Bounds:       cfg.Bounds,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create console")
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	log.Info().Str("addr", cfg.ListenAddr).Str("backend", cfg.BackendURL).Msg("console started")
	<-quit

	log.Info().Msg("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}
	log.Info().Msg("console stopped")
}

// cookieSecret decodes the configured secret. Without one a random secret
// is generated and sessions do not survive a restart.
func cookieSecret(encoded string) ([]byte, error) {
	if encoded == "" {
		log.Warn().Msg("no cookie_secret configured, generating one; sessions end on restart")
		return crypto.GenerateSecret()
	}
	return base64.StdEncoding.DecodeString(encoded)
}
