// Package intent implements one-shot linking intents: short-lived tokens
// a web origin mints, hands to Telegram as a /start parameter, and later
// observes the completion of.
package intent

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrMissingIntent is returned when the token resolves to nothing.
	ErrMissingIntent = errors.New("intent: missing or expired")

	// ErrSessionTerminated is returned when the intent's origin session
	// no longer exists, so completing it could not be observed.
	ErrSessionTerminated = errors.New("intent: origin session terminated")
)

// Action discriminates what redeeming a token does.
type Action string

const (
	// ActionIntent links the redeeming Telegram identity to the origin
	// session's account.
	ActionIntent Action = "intent"

	// ActionInvite records invite acceptance on the origin session.
	ActionInvite Action = "invite"
)

// DefaultTTL is how long an unredeemed intent stays valid.
const DefaultTTL = 15 * time.Minute

// Intent is a single linking intent.
type Intent struct {
	Token     string
	Action    Action
	SessionID string

	// UserID is set at completion: the account that redeemed the token.
	UserID string

	// Content carries action-specific data, opaque to storage.
	Content map[string]string

	CreatedAt   time.Time
	CompletedAt *time.Time
}

// Completed reports whether the intent has been redeemed.
func (i *Intent) Completed() bool {
	return i.CompletedAt != nil
}

// Store persists intents.
type Store interface {
	// Insert writes a fresh intent.
	Insert(ctx context.Context, it *Intent) error

	// Get returns the intent for token, or ErrMissingIntent.
	Get(ctx context.Context, token string) (*Intent, error)

	// CompleteTx marks the intent completed by userID and binds userID
	// to the origin session, in one transaction. Completing an already
	// completed intent is a no-op. Returns the completed intent.
	CompleteTx(ctx context.Context, token, userID string) (*Intent, error)

	// DeleteExpired removes unredeemed intents created before the cutoff
	// and returns the number removed.
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)
}
