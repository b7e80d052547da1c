package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/telegate-io/telegate/internal/session"
)

// sessionStore implements session.Store backed by SQLite. Session
// content is stored as a JSON document.
type sessionStore struct {
	db *sql.DB
}

func (s *sessionStore) Get(ctx context.Context, id string) (*session.Session, error) {
	var (
		rawContent string
		rawUpdated string
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT content, updated_at FROM sessions WHERE id = ?", id,
	).Scan(&rawContent, &rawUpdated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, session.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: get session: %w", err)
	}
	return buildSession(id, rawContent, rawUpdated)
}

func (s *sessionStore) Put(ctx context.Context, sess *session.Session) error {
	content, err := json.Marshal(sess.Content)
	if err != nil {
		return fmt.Errorf("sqlite: marshal session content: %w", err)
	}
	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, content, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET content = excluded.content, updated_at = excluded.updated_at`,
		sess.ID, string(content), now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("sqlite: put session: %w", err)
	}
	sess.UpdatedAt = now
	return nil
}

func (s *sessionStore) Open(ctx context.Context, id string) (*session.Session, error) {
	// INSERT OR IGNORE makes the create-if-absent race safe under
	// concurrent webhook redeliveries.
	_, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO sessions (id, content, updated_at) VALUES (?, '{}', ?)",
		id, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open session: %w", err)
	}
	return s.Get(ctx, id)
}

func (s *sessionStore) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM sessions WHERE updated_at < ?",
		cutoff.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("sqlite: prune sessions: %w", err)
	}
	return res.RowsAffected()
}

func buildSession(id, rawContent, rawUpdated string) (*session.Session, error) {
	sess := &session.Session{ID: id}
	if err := json.Unmarshal([]byte(rawContent), &sess.Content); err != nil {
		return nil, fmt.Errorf("sqlite: unmarshal session content: %w", err)
	}
	if t, err := time.Parse(time.RFC3339Nano, rawUpdated); err == nil {
		sess.UpdatedAt = t
	}
	return sess, nil
}
