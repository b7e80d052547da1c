// Package account models user accounts and their links to external
// platform identities.
package account

import (
	"context"
	"errors"
	"time"
)

// ErrAccountNotFound is returned when no account exists for a lookup.
var ErrAccountNotFound = errors.New("account: not found")

// PlatformTelegram is the only external platform currently supported.
const PlatformTelegram = "telegram"

// Profile is display data captured from an external identity.
type Profile struct {
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Username  string `json:"username,omitempty"`
	PhotoURL  string `json:"photo_url,omitempty"`
	Language  string `json:"language,omitempty"`
}

// Account is a user account.
type Account struct {
	ID        string
	Profile   Profile
	CreatedAt time.Time
}

// ExternalLink binds an account to one external identity. The
// (platform, appID, xid) triple is unique across all accounts: an
// external identity belongs to at most one account per app.
type ExternalLink struct {
	Platform  string
	AppID     string
	XID       string
	UserID    string
	CreatedAt time.Time
}

// Store persists accounts and their external links.
type Store interface {
	// Get returns the account for id, or ErrAccountNotFound.
	Get(ctx context.Context, id string) (*Account, error)

	// Create writes a new account and returns it with its id set.
	Create(ctx context.Context, profile Profile) (*Account, error)

	// LookupExternal returns the account linked to the external
	// identity, or ErrAccountNotFound.
	LookupExternal(ctx context.Context, platform, appID, xid string) (*Account, error)

	// LinkExternal binds the external identity to userID. Linking an
	// identity already bound to the same account is a no-op; binding it
	// to a different account fails.
	LinkExternal(ctx context.Context, link ExternalLink) error
}
