// Package session defines browser-session records and their
// deterministic identifiers.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrSessionNotFound is returned when no session exists for an id.
var ErrSessionNotFound = errors.New("session: not found")

// Namespace for deterministic session ids. Fixed for the lifetime of the
// deployment: changing it orphans every outstanding intent.
var sessionNamespace = uuid.MustParse("f4a482a4-63f6-4a41-8f8f-1f2b3c4d5e6f")

// Content is the mutable payload of a session.
type Content struct {
	// LoggedInUserID is the account bound to this session, if any.
	LoggedInUserID string `json:"logged_in_user_id,omitempty"`

	// Invite is the invite token accepted through this session, if any.
	Invite string `json:"invite,omitempty"`
}

// Session is a browser session record.
type Session struct {
	ID        string
	Content   Content
	UpdatedAt time.Time
}

// LoggedIn reports whether the session has a bound account.
func (s *Session) LoggedIn() bool {
	return s.Content.LoggedInUserID != ""
}

// Store persists sessions.
type Store interface {
	// Get returns the session for id, or ErrSessionNotFound.
	Get(ctx context.Context, id string) (*Session, error)

	// Put writes the session, creating or replacing it.
	Put(ctx context.Context, s *Session) error

	// Open returns the session for id, creating an empty one if absent.
	Open(ctx context.Context, id string) (*Session, error)

	// Prune deletes sessions untouched since the cutoff and returns the
	// number removed.
	Prune(ctx context.Context, cutoff time.Time) (int64, error)
}

// DeterministicID derives the session id used for Telegram-initiated
// traffic. The same (appID, xid) pair always maps to the same id, so a
// user's bot conversation and Mini App launches share one session
// without any handshake: uuid5 over "telegram-<appID>-<xid>".
func DeterministicID(appID, xid string) string {
	return uuid.NewSHA1(sessionNamespace, []byte("telegram-"+appID+"-"+xid)).String()
}
