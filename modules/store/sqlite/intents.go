package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/telegate-io/telegate/internal/intent"
)

// intentStore implements intent.Store backed by SQLite.
type intentStore struct {
	db *sql.DB
}

func (s *intentStore) Insert(ctx context.Context, it *intent.Intent) error {
	content, err := json.Marshal(it.Content)
	if err != nil {
		return fmt.Errorf("sqlite: marshal intent content: %w", err)
	}
	if it.CreatedAt.IsZero() {
		it.CreatedAt = time.Now().UTC()
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO intents (token, action, session_id, user_id, content, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		it.Token, string(it.Action), it.SessionID, it.UserID,
		string(content), it.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("sqlite: insert intent: %w", err)
	}
	return nil
}

func (s *intentStore) Get(ctx context.Context, token string) (*intent.Intent, error) {
	return scanIntent(s.db.QueryRowContext(ctx,
		`SELECT token, action, session_id, user_id, content, created_at, completed_at
		 FROM intents WHERE token = ?`, token))
}

// CompleteTx marks the intent completed and binds the redeeming user to
// the intent's origin session, in one transaction. Either both writes
// land or neither does: a browser watching the origin session must
// never observe a completed intent whose login it cannot see.
func (s *intentStore) CompleteTx(ctx context.Context, token, userID string) (*intent.Intent, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("sqlite: begin complete: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	it, err := scanIntent(tx.QueryRowContext(ctx,
		`SELECT token, action, session_id, user_id, content, created_at, completed_at
		 FROM intents WHERE token = ?`, token))
	if err != nil {
		return nil, err
	}
	if it.Completed() {
		// Redelivery. The first completion already holds.
		return it, nil
	}

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx,
		"UPDATE intents SET user_id = ?, completed_at = ? WHERE token = ? AND completed_at IS NULL",
		userID, now.Format(time.RFC3339Nano), token,
	); err != nil {
		return nil, fmt.Errorf("sqlite: complete intent: %w", err)
	}

	var rawContent string
	err = tx.QueryRowContext(ctx,
		"SELECT content FROM sessions WHERE id = ?", it.SessionID,
	).Scan(&rawContent)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, intent.ErrSessionTerminated
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: load origin session: %w", err)
	}

	var content map[string]any
	if err := json.Unmarshal([]byte(rawContent), &content); err != nil {
		return nil, fmt.Errorf("sqlite: unmarshal origin session: %w", err)
	}
	content["logged_in_user_id"] = userID
	updated, err := json.Marshal(content)
	if err != nil {
		return nil, fmt.Errorf("sqlite: marshal origin session: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE sessions SET content = ?, updated_at = ? WHERE id = ?",
		string(updated), now.Format(time.RFC3339Nano), it.SessionID,
	); err != nil {
		return nil, fmt.Errorf("sqlite: update origin session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("sqlite: commit complete: %w", err)
	}

	it.UserID = userID
	it.CompletedAt = &now
	return it, nil
}

// DeleteExpired removes unredeemed intents created before cutoff and
// completed intents whose redemption predates it. Without the second
// clause completed rows would accumulate forever.
func (s *intentStore) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	raw := cutoff.UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM intents
		 WHERE (completed_at IS NULL AND created_at < ?)
		    OR (completed_at IS NOT NULL AND completed_at < ?)`,
		raw, raw,
	)
	if err != nil {
		return 0, fmt.Errorf("sqlite: delete expired intents: %w", err)
	}
	return res.RowsAffected()
}

// scanner covers *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanIntent(row scanner) (*intent.Intent, error) {
	var (
		it           intent.Intent
		action       string
		rawContent   string
		rawCreated   string
		rawCompleted sql.NullString
	)
	err := row.Scan(&it.Token, &action, &it.SessionID, &it.UserID, &rawContent, &rawCreated, &rawCompleted)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, intent.ErrMissingIntent
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: scan intent: %w", err)
	}
	it.Action = intent.Action(action)
	if err := json.Unmarshal([]byte(rawContent), &it.Content); err != nil {
		return nil, fmt.Errorf("sqlite: unmarshal intent content: %w", err)
	}
	if t, err := time.Parse(time.RFC3339Nano, rawCreated); err == nil {
		it.CreatedAt = t
	}
	if rawCompleted.Valid {
		if t, err := time.Parse(time.RFC3339Nano, rawCompleted.String); err == nil {
			it.CompletedAt = &t
		}
	}
	return &it, nil
}
