package app

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/flemzord/chaingate/internal/config"
	"github.com/flemzord/chaingate/internal/security"

	// Compiled-in modules.
	_ "github.com/flemzord/chaingate/internal/gateway"
	_ "github.com/flemzord/chaingate/modules/agent/pool"
	_ "github.com/flemzord/chaingate/modules/chain/solana"
	_ "github.com/flemzord/chaingate/modules/memory/file"
	_ "github.com/flemzord/chaingate/modules/memory/sqlite"
	_ "github.com/flemzord/chaingate/modules/telemetry/otel"
)

// newLogger wraps a text handler in a redacting handler so registered
// secrets never reach the log.
func newLogger(w io.Writer, level slog.Level, redactor *security.Redactor) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	inner := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(security.NewRedactingHandler(inner, redactor))
}

// openAudit builds the audit logger. With auditing disabled it returns a
// logger without a writer and a nil file.
func openAudit(sec *config.SecurityConfig, dataDir string, redactor *security.Redactor) (*security.AuditLogger, *os.File, error) {
	if sec == nil || !sec.Audit.Enabled {
		return security.NewAuditLogger(security.AuditLoggerConfig{Redactor: redactor}), nil, nil
	}

	path := sec.Audit.Path
	if path == "" {
		path = filepath.Join(dataDir, "audit.jsonl")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, nil, fmt.Errorf("creating audit dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("opening audit log: %w", err)
	}
	return security.NewAuditLogger(security.AuditLoggerConfig{
		Writer:   f,
		Redactor: redactor,
	}), f, nil
}
