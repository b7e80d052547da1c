// Package app assembles a telegate process: configuration, the security
// foundation (credentials, redaction, rate limits, audit trail), module
// loading, and the dispatch wiring between them.
package app

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/telegate-io/telegate/internal/config"
	"github.com/telegate-io/telegate/internal/core"
	"github.com/telegate-io/telegate/internal/security"
)

// RunParams carries process-level inputs resolved by the CLI.
type RunParams struct {
	// ConfigPath is the resolved path to the YAML configuration file.
	ConfigPath string

	// DataDir overrides the default data directory when non-empty.
	DataDir string

	// LogLevel is one of debug, info, warn, error. Empty means info.
	LogLevel string

	// Build metadata, surfaced in the startup log line.
	Version string
	Commit  string
	Date    string
}

// Run starts the process and blocks until SIGINT or SIGTERM.
//
// The order matters: the credential store and redactor exist before the
// first log line so secrets from the config never hit the output, and
// dispatch wiring happens after LoadModules (modules have registered
// their services) but before Start (the gateway resolves the router in
// its Start).
func Run(params RunParams) error {
	cfg, err := config.Load(params.ConfigPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	creds := security.NewCredentialStore()
	creds.Set("internal_secret", cfg.Security.InternalSecret)
	if cfg.Security.CookieSecret != "" {
		creds.Set("cookie_secret", cfg.Security.CookieSecret)
	}

	redactor := security.NewRedactor()
	redactor.SyncCredentials(creds)

	logger := newLogger(params.LogLevel, redactor)
	slog.SetDefault(logger)

	dataDir := params.DataDir
	if dataDir == "" {
		dataDir = DefaultDataDir()
	}
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}

	auditFile, err := os.OpenFile(filepath.Join(dataDir, "audit.jsonl"),
		os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("opening audit log: %w", err)
	}
	defer auditFile.Close()

	auditLogger := security.NewAuditLogger(security.AuditLoggerConfig{
		Writer:   auditFile,
		Redactor: redactor,
	})

	limiter := security.NewRateLimiter(security.RateLimitConfig{
		AuthPerMin:    cfg.Security.RateLimits.AuthPerMin,
		IntentsPerMin: cfg.Security.RateLimits.IntentsPerMin,
	})

	appCtx := core.NewAppContext(logger, dataDir).WithModuleConfigs(cfg.Modules)
	appCtx.RegisterService("security.credentials", creds)
	appCtx.RegisterService("security.redactor", redactor)
	appCtx.RegisterService("security.audit", auditLogger)
	appCtx.RegisterService("security.ratelimit", limiter)
	appCtx.RegisterService("config.path", params.ConfigPath)

	application := core.NewApp(appCtx)
	if err := application.LoadModules(config.Resolve(cfg)); err != nil {
		return err
	}

	if err := wireDispatch(application, appCtx, cfg, logger, limiter); err != nil {
		application.Stop()
		return fmt.Errorf("wiring dispatch: %w", err)
	}

	if err := application.Start(); err != nil {
		return err
	}

	// Bot tokens were registered with the credential store during
	// wiring; pick them up before anything interesting gets logged.
	redactor.SyncCredentials(creds)

	logger.Info("telegate started",
		"version", params.Version,
		"commit", params.Commit,
		"config", params.ConfigPath,
		"data_dir", dataDir,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh

	logger.Info("shutting down", "signal", sig.String())
	application.Stop()
	return nil
}

// newLogger builds the process logger. Every record passes through the
// redactor so registered credentials never reach the output.
func newLogger(level string, redactor *security.Redactor) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	inner := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	return slog.New(security.NewRedactingHandler(inner, redactor))
}

// ResolveConfigPath returns the first existing config file among the
// explicit path, the working directory, the XDG config home, and
// /etc/telegate. An explicit path is returned as-is even if missing so
// the load error names what the user asked for.
func ResolveConfigPath(explicit string) string {
	if explicit != "" {
		return explicit
	}

	candidates := []string{"telegate.yaml"}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		candidates = append(candidates, filepath.Join(xdg, "telegate", "telegate.yaml"))
	} else if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "telegate", "telegate.yaml"))
	}
	candidates = append(candidates, "/etc/telegate/telegate.yaml")

	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return "telegate.yaml"
}

// DefaultDataDir returns the per-user data directory.
func DefaultDataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "telegate")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "telegate-data"
	}
	return filepath.Join(home, ".local", "share", "telegate")
}
