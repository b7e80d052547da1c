package intent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrWrongToken is returned for a start parameter that does not carry a
// recognizable action prefix.
var ErrWrongToken = errors.New("intent: malformed token")

// Ledger is the domain layer over intent storage: it mints tokens,
// resolves start parameters, and completes redemptions.
type Ledger struct {
	store    Store
	notifier *Notifier
	logger   *slog.Logger
	ttl      time.Duration
}

// NewLedger creates a Ledger.
func NewLedger(store Store, notifier *Notifier, logger *slog.Logger) *Ledger {
	return &Ledger{
		store:    store,
		notifier: notifier,
		logger:   logger,
		ttl:      DefaultTTL,
	}
}

// Create mints a fresh intent bound to the origin session and returns
// its wire token, "<action>-<uuid>".
func (l *Ledger) Create(ctx context.Context, action Action, sessionID string, content map[string]string) (*Intent, error) {
	it := &Intent{
		Token:     uuid.NewString(),
		Action:    action,
		SessionID: sessionID,
		Content:   content,
		CreatedAt: time.Now(),
	}
	if err := l.store.Insert(ctx, it); err != nil {
		return nil, fmt.Errorf("creating intent: %w", err)
	}
	l.logger.Debug("intent created", "action", action, "session_id", sessionID)
	return it, nil
}

// WireToken returns the token as carried in a /start parameter.
func WireToken(it *Intent) string {
	return string(it.Action) + "-" + it.Token
}

// Resolve parses a start parameter and loads the live intent it names.
// The parameter must read "intent-<token>" or "invite-<token>"; anything
// else is ErrWrongToken. Expired or unknown tokens are ErrMissingIntent.
func (l *Ledger) Resolve(ctx context.Context, param string) (*Intent, error) {
	action, token, ok := strings.Cut(param, "-")
	if !ok || token == "" {
		return nil, ErrWrongToken
	}
	switch Action(action) {
	case ActionIntent, ActionInvite:
	default:
		return nil, ErrWrongToken
	}

	it, err := l.store.Get(ctx, token)
	if err != nil {
		return nil, err
	}
	if it.Action != Action(action) {
		return nil, ErrMissingIntent
	}
	if !it.Completed() && time.Since(it.CreatedAt) > l.ttl {
		return nil, ErrMissingIntent
	}
	return it, nil
}

// Lookup loads an intent by its bare token, regardless of action.
func (l *Ledger) Lookup(ctx context.Context, token string) (*Intent, error) {
	return l.store.Get(ctx, token)
}

// Complete redeems the intent for userID. The completion and the origin
// session update commit together; watchers of the token are notified
// afterwards. Redeeming an already completed intent returns it as-is and
// notifies nobody.
func (l *Ledger) Complete(ctx context.Context, token, userID string) (*Intent, error) {
	it, err := l.store.Get(ctx, token)
	if err != nil {
		return nil, err
	}
	if it.Completed() {
		return it, nil
	}

	it, err = l.store.CompleteTx(ctx, token, userID)
	if err != nil {
		return nil, fmt.Errorf("completing intent: %w", err)
	}
	l.logger.Info("intent completed",
		"action", it.Action,
		"session_id", it.SessionID,
		"user_id", userID)
	if l.notifier != nil {
		l.notifier.Notify(token, it)
	}
	return it, nil
}

// Expire deletes unredeemed intents older than the ledger's TTL.
func (l *Ledger) Expire(ctx context.Context) (int64, error) {
	return l.store.DeleteExpired(ctx, time.Now().Add(-l.ttl))
}
