package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/telegate-io/telegate/internal/account"
)

// accountStore implements account.Store backed by SQLite.
type accountStore struct {
	db *sql.DB
}

func (s *accountStore) Get(ctx context.Context, id string) (*account.Account, error) {
	var (
		rawProfile string
		rawCreated string
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT profile, created_at FROM users WHERE id = ?", id,
	).Scan(&rawProfile, &rawCreated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, account.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: get account: %w", err)
	}
	return buildAccount(id, rawProfile, rawCreated)
}

func (s *accountStore) Create(ctx context.Context, profile account.Profile) (*account.Account, error) {
	raw, err := json.Marshal(profile)
	if err != nil {
		return nil, fmt.Errorf("sqlite: marshal profile: %w", err)
	}
	acct := &account.Account{
		ID:        uuid.NewString(),
		Profile:   profile,
		CreatedAt: time.Now().UTC(),
	}
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO users (id, profile, created_at) VALUES (?, ?, ?)",
		acct.ID, string(raw), acct.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: create account: %w", err)
	}
	return acct, nil
}

func (s *accountStore) LookupExternal(ctx context.Context, platform, appID, xid string) (*account.Account, error) {
	var userID string
	err := s.db.QueryRowContext(ctx,
		"SELECT user_id FROM external_links WHERE platform = ? AND app_id = ? AND xid = ?",
		platform, appID, xid,
	).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, account.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: lookup external link: %w", err)
	}
	return s.Get(ctx, userID)
}

// LinkExternal binds the external identity to the link's user. The
// primary key on (platform, app_id, xid) arbitrates races: whoever
// inserts first wins, and a later insert for a different account is a
// conflict, not a second link.
func (s *accountStore) LinkExternal(ctx context.Context, link account.ExternalLink) error {
	if link.CreatedAt.IsZero() {
		link.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO external_links (platform, app_id, xid, user_id, created_at) VALUES (?, ?, ?, ?, ?)",
		link.Platform, link.AppID, link.XID, link.UserID,
		link.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("sqlite: link external identity: %w", err)
	}

	var bound string
	if err := s.db.QueryRowContext(ctx,
		"SELECT user_id FROM external_links WHERE platform = ? AND app_id = ? AND xid = ?",
		link.Platform, link.AppID, link.XID,
	).Scan(&bound); err != nil {
		return fmt.Errorf("sqlite: verify external link: %w", err)
	}
	if bound != link.UserID {
		return fmt.Errorf("sqlite: external identity %s already linked to another account",
			strings.Join([]string{link.Platform, link.AppID, link.XID}, "/"))
	}
	return nil
}

func buildAccount(id, rawProfile, rawCreated string) (*account.Account, error) {
	acct := &account.Account{ID: id}
	if err := json.Unmarshal([]byte(rawProfile), &acct.Profile); err != nil {
		return nil, fmt.Errorf("sqlite: unmarshal profile: %w", err)
	}
	if t, err := time.Parse(time.RFC3339Nano, rawCreated); err == nil {
		acct.CreatedAt = t
	}
	return acct, nil
}
