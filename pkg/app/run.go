// Package app provides the shared entry point for the chaingate binary and
// its service wrapper.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/flemzord/chaingate/internal/config"
	"github.com/flemzord/chaingate/internal/core"
	"github.com/flemzord/chaingate/internal/cron"
	"github.com/flemzord/chaingate/internal/security"
	"github.com/flemzord/chaingate/internal/telemetry"
	"github.com/flemzord/chaingate/internal/tool"
)

const schedulerStopTimeout = 10 * time.Second

// RunParams configures the main application loop.
type RunParams struct {
	// ConfigPath is an explicit path to the YAML configuration file.
	// If empty, config.ResolvePath is called automatically.
	ConfigPath string

	// Version, Commit, and Date are injected at build time via ldflags.
	Version string
	Commit  string
	Date    string

	// DataDir overrides data_dir from the config and the XDG default.
	DataDir string

	// LogLevel overrides log_level from the config.
	LogLevel string

	// LogOutput receives the text log. Defaults to os.Stderr.
	LogOutput io.Writer
}

// Instance is a loaded but not yet started application.
type Instance struct {
	App        *core.App
	Context    *core.AppContext
	Config     *config.Config
	ConfigPath string
	ModuleIDs  []string
	Logger     *slog.Logger

	credentials *security.CredentialStore
	redactor    *security.Redactor
	scheduler   *cron.Scheduler
	closers     []io.Closer
	started     bool
}

// Load reads the configuration, builds the shared services, and loads
// every configured module. Nothing is started.
func Load(params RunParams) (*Instance, error) {
	cfgPath := params.ConfigPath
	if cfgPath == "" {
		resolved, err := config.ResolvePath()
		if err != nil {
			return nil, err
		}
		cfgPath = resolved
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	level := params.LogLevel
	if level == "" {
		level = cfg.LogLevel
	}
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}

	dataDir := firstNonEmpty(params.DataDir, cfg.DataDir, config.DefaultDataDir())
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}

	in := &Instance{
		Config:      cfg,
		ConfigPath:  cfgPath,
		credentials: security.NewCredentialStore(),
		redactor:    security.NewRedactor(),
	}
	in.Logger = newLogger(params.LogOutput, lvl, in.redactor)

	auditLogger, auditFile, err := openAudit(cfg.Security, dataDir, in.redactor)
	if err != nil {
		return nil, err
	}
	if auditFile != nil {
		in.closers = append(in.closers, auditFile)
	}

	metrics := telemetry.NewMetrics()
	in.scheduler = cron.NewScheduler(in.Logger.With("component", "cron"))

	appCtx := core.NewAppContext(in.Logger, dataDir).WithModuleConfigs(cfg.Modules)
	appCtx.RegisterService("security.credentials", in.credentials)
	appCtx.RegisterService("security.redactor", in.redactor)
	appCtx.RegisterService("security.audit", auditLogger)
	appCtx.RegisterService("telemetry.metrics", metrics)
	appCtx.RegisterService("cron.scheduler", in.scheduler)
	appCtx.RegisterService("config.path", cfgPath)
	appCtx.RegisterService("app.version", firstNonEmpty(params.Version, "dev"))

	if cfg.Security != nil && cfg.Security.RateLimits.Enabled() {
		limiter := security.NewRateLimiter(cfg.Security.RateLimits)
		appCtx.RegisterService("security.ratelimiter", limiter)
		if err := in.scheduler.RegisterJob(&cron.RateLimitPruneJob{Limiter: limiter, Logger: in.Logger}); err != nil {
			in.close()
			return nil, err
		}
	}
	if err := metrics.RegisterGauge("audit_write_errors",
		"Audit events that could not be written.",
		func() float64 { return float64(auditLogger.WriteErrors()) }); err != nil {
		in.close()
		return nil, err
	}

	in.Context = appCtx
	in.App = core.NewApp(appCtx)
	in.ModuleIDs = config.Resolve(cfg)
	if err := in.App.LoadModules(in.ModuleIDs); err != nil {
		in.close()
		return nil, err
	}

	// Modules add their secrets to the credential store during Provision.
	in.redactor.SyncCredentials(in.credentials)
	return in, nil
}

// Start starts every module, then the scheduler.
func (in *Instance) Start() error {
	if err := in.App.Start(); err != nil {
		return err
	}
	in.redactor.SyncCredentials(in.credentials)
	in.Logger.Debug("credentials registered for redaction", "names", in.credentials.Names())
	if err := in.scheduler.Start(); err != nil {
		in.App.Stop()
		return err
	}
	in.started = true
	return nil
}

// Stop stops the scheduler, then the modules in reverse order, then
// releases files opened by Load. It is safe on an instance that was never
// started.
func (in *Instance) Stop() {
	if in.started {
		ctx, cancel := context.WithTimeout(context.Background(), schedulerStopTimeout)
		if err := in.scheduler.Stop(ctx); err != nil {
			in.Logger.Warn("scheduler stop", "error", err)
		}
		cancel()
		in.started = false
	}
	in.App.Stop()
	in.close()
}

func (in *Instance) close() {
	for _, c := range in.closers {
		if err := c.Close(); err != nil && in.Logger != nil {
			in.Logger.Warn("close failed", "error", err)
		}
	}
	in.closers = nil
}

// Tools lists the tools registered by the loaded modules.
func (in *Instance) Tools() ([]tool.Info, error) {
	reg, ok := core.ServiceAs[*tool.Registry](in.Context, "tool.registry")
	if !ok {
		return nil, errors.New("no tool registry; is agent.runtime configured?")
	}
	return reg.List(), nil
}

// Run loads configuration, starts all modules, and blocks until ctx is
// cancelled or SIGINT/SIGTERM is received.
func Run(ctx context.Context, params RunParams) error {
	in, err := Load(params)
	if err != nil {
		return err
	}
	if err := in.Start(); err != nil {
		in.close()
		return err
	}
	in.Logger.Info("chaingate started",
		"version", firstNonEmpty(params.Version, "dev"),
		"commit", params.Commit,
		"config", in.ConfigPath,
		"modules", len(in.ModuleIDs),
	)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	in.Logger.Info("shutdown requested")
	in.Stop()
	in.Logger.Info("shutdown complete")
	return nil
}

// ParseLevel maps a config log level to a slog level. Empty means info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("unknown log level %q", s)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
