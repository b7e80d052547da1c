// Package sqlite implements the persistent store module backing
// sessions, intents, and accounts. It uses modernc.org/sqlite (pure Go,
// no CGO) with WAL mode and a single connection.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/telegate-io/telegate/internal/account"
	"github.com/telegate-io/telegate/internal/core"
	"github.com/telegate-io/telegate/internal/intent"
	"github.com/telegate-io/telegate/internal/session"

	_ "modernc.org/sqlite" // SQLite driver registration
)

func init() {
	core.RegisterModule(&Module{})
}

// Compile-time interface guards.
var (
	_ session.Store     = (*sessionStore)(nil)
	_ intent.Store      = (*intentStore)(nil)
	_ account.Store     = (*accountStore)(nil)
	_ core.Configurable = (*Module)(nil)
	_ core.Provisioner  = (*Module)(nil)
	_ core.Validator    = (*Module)(nil)
	_ core.Stopper      = (*Module)(nil)
)

// Module implements the SQLite-backed store module. All three stores
// share one database so intent completion and the origin-session write
// can commit in a single transaction.
type Module struct {
	config   Config
	db       *sql.DB
	logger   *slog.Logger
	sessions *sessionStore
	intents  *intentStore
	accounts *accountStore
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "store.sqlite",
		New: func() core.Module { return &Module{} },
	}
}

// Configure implements core.Configurable.
func (m *Module) Configure(node *yaml.Node) error {
	if err := node.Decode(&m.config); err != nil {
		return fmt.Errorf("sqlite: decode config: %w", err)
	}
	m.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.config.defaults()
	m.logger = ctx.Logger

	if m.config.Path == "" {
		m.config.Path = filepath.Join(ctx.DataDir, defaultDBFile)
	}

	if dir := filepath.Dir(m.config.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("sqlite: create directory %s: %w", dir, err)
		}
	}

	db, err := open(m.config.Path, m.config.walEnabled(), m.config.BusyTimeout)
	if err != nil {
		return err
	}

	m.db = db
	m.sessions = &sessionStore{db: db}
	m.intents = &intentStore{db: db}
	m.accounts = &accountStore{db: db}

	ctx.RegisterService("store.sessions", session.Store(m.sessions))
	ctx.RegisterService("store.intents", intent.Store(m.intents))
	ctx.RegisterService("store.accounts", account.Store(m.accounts))
	ctx.RegisterService("store.ping", m)

	m.logger.Info("sqlite store module provisioned",
		"path", m.config.Path,
		"wal", m.config.walEnabled(),
	)

	return nil
}

// Validate implements core.Validator.
func (m *Module) Validate() error {
	if err := m.config.validate(); err != nil {
		return err
	}

	if err := m.db.PingContext(context.TODO()); err != nil {
		return fmt.Errorf("sqlite: ping failed: %w", err)
	}

	return nil
}

// Stop implements core.Stopper.
func (m *Module) Stop(_ context.Context) error {
	m.logger.Info("sqlite store module stopping")
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}

// Ping reports database liveness for the gateway health endpoint.
func (m *Module) Ping() error {
	return m.db.PingContext(context.TODO())
}

// Sessions returns the session store implementation.
func (m *Module) Sessions() session.Store { return m.sessions }

// Intents returns the intent store implementation.
func (m *Module) Intents() intent.Store { return m.intents }

// Accounts returns the account store implementation.
func (m *Module) Accounts() account.Store { return m.accounts }

// open opens the database with the module's PRAGMAs applied and the
// schema migrated.
func open(path string, wal bool, busyTimeout int) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}

	// SQLite handles one writer at a time; limit pool to 1 connection
	// so PRAGMAs apply consistently.
	db.SetMaxOpenConns(1)

	ctx := context.TODO()

	if wal {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite: enable WAL: %w", err)
		}
	}

	if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout=%d", busyTimeout)); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: set busy_timeout: %w", err)
	}

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}
