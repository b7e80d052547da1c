package sqlite

import (
	"database/sql"

	"github.com/telegate-io/telegate/internal/account"
	"github.com/telegate-io/telegate/internal/intent"
	"github.com/telegate-io/telegate/internal/session"
)

// Stores bundles the three store implementations over one database.
type Stores struct {
	Sessions session.Store
	Intents  intent.Store
	Accounts account.Store
}

// Open opens a SQLite database at the given path and returns the stores
// backed by it. The caller is responsible for closing the returned
// *sql.DB when done.
//
// The database is created with WAL mode, a 5 s busy timeout, and a
// single connection (SQLite serialises writes). The schema is migrated
// automatically.
func Open(path string) (*Stores, *sql.DB, error) {
	db, err := open(path, true, defaultBusyTimeout)
	if err != nil {
		return nil, nil, err
	}
	return &Stores{
		Sessions: &sessionStore{db: db},
		Intents:  &intentStore{db: db},
		Accounts: &accountStore{db: db},
	}, db, nil
}
