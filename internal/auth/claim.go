// Package auth turns verified external identity claims into logged-in
// internal sessions and accounts.
package auth

import (
	"errors"

	"github.com/telegate-io/telegate/internal/account"
	"github.com/telegate-io/telegate/internal/intent"
)

var (
	// ErrAccountTooYoung rejects external accounts that fail the
	// configured minimum-age gate.
	ErrAccountTooYoung = errors.New("auth: external account too young")

	// ErrWrongValue rejects a malformed start parameter. User-facing
	// and non-retriable.
	ErrWrongValue = errors.New("auth: malformed start parameter")
)

// Claim is a verified external identity. By the time a Claim reaches the
// resolver, its credentials have already been checked.
type Claim struct {
	Platform string
	AppID    string

	// XID is the external user id. Empty for anonymous updates such as
	// channel posts.
	XID string

	Profile account.Profile
}

// Anonymous reports whether the claim carries no external identity.
func (c Claim) Anonymous() bool {
	return c.XID == ""
}

// Result is the outcome of resolving a claim.
type Result struct {
	// Authenticated is false for anonymous claims. Not an error.
	Authenticated bool

	// UserID is the internal account id the claim resolved to.
	UserID string

	// SessionID is the deterministic session bound to the claim.
	SessionID string

	// Intent is the redeemed intent, if the claim carried one.
	Intent *intent.Intent

	// Created reports whether a new account was provisioned.
	Created bool
}
