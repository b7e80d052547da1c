package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/telegate-io/telegate/internal/account"
	"github.com/telegate-io/telegate/internal/intent"
	"github.com/telegate-io/telegate/internal/session"
)

// InviteAccepter grants whatever an invite token promises. Optional:
// without one, invite redemption still records acceptance on the
// session but grants nothing.
type InviteAccepter interface {
	AcceptInvite(ctx context.Context, token, userID string) error
}

// Resolver turns verified claims into logged-in sessions.
type Resolver struct {
	sessions session.Store
	accounts account.Store
	intents  *intent.Ledger
	ageGate  *AgeGate
	inviter  InviteAccepter
	logger   *slog.Logger

	// minAge per app id; zero disables the gate for that app.
	minAge map[string]time.Duration
}

// NewResolver creates a Resolver. inviter may be nil.
func NewResolver(sessions session.Store, accounts account.Store, intents *intent.Ledger, ageGate *AgeGate, inviter InviteAccepter, minAge map[string]time.Duration, logger *slog.Logger) *Resolver {
	return &Resolver{
		sessions: sessions,
		accounts: accounts,
		intents:  intents,
		ageGate:  ageGate,
		inviter:  inviter,
		logger:   logger,
		minAge:   minAge,
	}
}

// Resolve binds the claim to an internal account and session.
//
// Anonymous claims return an unauthenticated result, not an error.
// The claim's deterministic session is opened, any start parameter is
// redeemed, the external identity is linked to an account (creating one
// on first contact), and the session's logged-in user is set. When the
// redeemed intent originated in another session, its completion also
// writes the user id back into that session so a waiting browser
// observes the login.
//
// Every mutating step is idempotent: Telegram redelivers updates, so
// Resolve must tolerate running twice for the same event.
func (r *Resolver) Resolve(ctx context.Context, appID string, claim Claim, startParam string) (*Result, error) {
	if claim.Anonymous() {
		return &Result{Authenticated: false}, nil
	}

	if r.ageGate != nil {
		xid, err := strconv.ParseInt(claim.XID, 10, 64)
		if err == nil {
			if err := r.ageGate.Check(xid, r.minAge[appID]); err != nil {
				return nil, err
			}
		}
	}

	sid := session.DeterministicID(appID, claim.XID)
	sess, err := r.sessions.Open(ctx, sid)
	if err != nil {
		return nil, fmt.Errorf("opening session: %w", err)
	}

	var redeemed *intent.Intent
	if startParam != "" {
		redeemed, err = r.redeemStartParam(ctx, sess, startParam)
		if err != nil {
			return nil, err
		}
	}

	userID, created, err := r.linkAccount(ctx, appID, claim, sess)
	if err != nil {
		return nil, err
	}

	sess.Content.LoggedInUserID = userID
	if err := r.sessions.Put(ctx, sess); err != nil {
		return nil, fmt.Errorf("persisting session: %w", err)
	}

	if redeemed != nil && !redeemed.Completed() {
		redeemed, err = r.intents.Complete(ctx, redeemed.Token, userID)
		if err != nil {
			return nil, err
		}
		if redeemed.Action == intent.ActionInvite && r.inviter != nil {
			if err := r.inviter.AcceptInvite(ctx, redeemed.Token, userID); err != nil {
				return nil, fmt.Errorf("accepting invite: %w", err)
			}
		}
	}

	r.logger.Info("identity resolved",
		"app_id", appID,
		"platform", claim.Platform,
		"user_id", userID,
		"created", created)

	return &Result{
		Authenticated: true,
		UserID:        userID,
		SessionID:     sid,
		Intent:        redeemed,
		Created:       created,
	}, nil
}

// redeemStartParam resolves the intent a start parameter names and, for
// linking intents with a logged-in origin session, adopts that user
// into the current session before any identity is finalized. The two
// sessions then converge on one account.
func (r *Resolver) redeemStartParam(ctx context.Context, sess *session.Session, param string) (*intent.Intent, error) {
	if !strings.Contains(param, "-") {
		return nil, ErrWrongValue
	}
	it, err := r.intents.Resolve(ctx, param)
	if err != nil {
		if errors.Is(err, intent.ErrWrongToken) {
			return nil, ErrWrongValue
		}
		return nil, err
	}

	switch it.Action {
	case intent.ActionIntent:
		// A completed intent never adopts the origin user again: the
		// token may have leaked, and a second identity replaying it
		// must not be logged into the first redeemer's account.
		// Same-user redelivery still converges through the existing
		// external link.
		if it.Completed() {
			break
		}
		origin, err := r.sessions.Get(ctx, it.SessionID)
		if err != nil {
			if errors.Is(err, session.ErrSessionNotFound) {
				return nil, intent.ErrSessionTerminated
			}
			return nil, fmt.Errorf("loading origin session: %w", err)
		}
		if origin.LoggedIn() {
			sess.Content.LoggedInUserID = origin.Content.LoggedInUserID
		}
	case intent.ActionInvite:
		sess.Content.Invite = it.Token
	}
	return it, nil
}

// linkAccount maps the external identity to an internal account. An
// adopted origin user wins over a pre-existing link lookup; otherwise a
// first-contact identity gets a fresh account. The uniqueness of
// (platform, appID, xid) is enforced by the store, so a racing
// duplicate login cannot fork two accounts.
func (r *Resolver) linkAccount(ctx context.Context, appID string, claim Claim, sess *session.Session) (string, bool, error) {
	link := account.ExternalLink{
		Platform: claim.Platform,
		AppID:    appID,
		XID:      claim.XID,
	}

	if sess.LoggedIn() {
		link.UserID = sess.Content.LoggedInUserID
		if err := r.accounts.LinkExternal(ctx, link); err != nil {
			return "", false, fmt.Errorf("linking external identity: %w", err)
		}
		return link.UserID, false, nil
	}

	acct, err := r.accounts.LookupExternal(ctx, claim.Platform, appID, claim.XID)
	if err == nil {
		return acct.ID, false, nil
	}
	if !errors.Is(err, account.ErrAccountNotFound) {
		return "", false, fmt.Errorf("looking up external identity: %w", err)
	}

	acct, err = r.accounts.Create(ctx, claim.Profile)
	if err != nil {
		return "", false, fmt.Errorf("creating account: %w", err)
	}
	link.UserID = acct.ID
	if err := r.accounts.LinkExternal(ctx, link); err != nil {
		return "", false, fmt.Errorf("linking external identity: %w", err)
	}
	return acct.ID, true, nil
}
