package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/telegate-io/telegate/internal/account"
	"github.com/telegate-io/telegate/internal/intent"
	"github.com/telegate-io/telegate/internal/session"
)

// --- in-memory fakes ---

type memSessions struct {
	mu       sync.Mutex
	sessions map[string]*session.Session
}

func newMemSessions() *memSessions {
	return &memSessions{sessions: make(map[string]*session.Session)}
}

func (s *memSessions) Get(_ context.Context, id string) (*session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, session.ErrSessionNotFound
	}
	cp := *sess
	return &cp, nil
}

func (s *memSessions) Put(_ context.Context, sess *session.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *sess
	cp.UpdatedAt = time.Now()
	s.sessions[sess.ID] = &cp
	return nil
}

func (s *memSessions) Open(ctx context.Context, id string) (*session.Session, error) {
	s.mu.Lock()
	if _, ok := s.sessions[id]; !ok {
		s.sessions[id] = &session.Session{ID: id, UpdatedAt: time.Now()}
	}
	s.mu.Unlock()
	return s.Get(ctx, id)
}

func (s *memSessions) Prune(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, sess := range s.sessions {
		if sess.UpdatedAt.Before(cutoff) {
			delete(s.sessions, id)
			n++
		}
	}
	return n, nil
}

type memAccounts struct {
	mu       sync.Mutex
	seq      int
	accounts map[string]*account.Account
	links    map[string]string // platform|appID|xid -> userID
}

func newMemAccounts() *memAccounts {
	return &memAccounts{
		accounts: make(map[string]*account.Account),
		links:    make(map[string]string),
	}
}

func linkKey(platform, appID, xid string) string {
	return platform + "|" + appID + "|" + xid
}

func (s *memAccounts) Get(_ context.Context, id string) (*account.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.accounts[id]
	if !ok {
		return nil, account.ErrAccountNotFound
	}
	cp := *acct
	return &cp, nil
}

func (s *memAccounts) Create(_ context.Context, profile account.Profile) (*account.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	acct := &account.Account{
		ID:        fmt.Sprintf("user-%d", s.seq),
		Profile:   profile,
		CreatedAt: time.Now(),
	}
	s.accounts[acct.ID] = acct
	return acct, nil
}

func (s *memAccounts) LookupExternal(ctx context.Context, platform, appID, xid string) (*account.Account, error) {
	s.mu.Lock()
	userID, ok := s.links[linkKey(platform, appID, xid)]
	s.mu.Unlock()
	if !ok {
		return nil, account.ErrAccountNotFound
	}
	return s.Get(ctx, userID)
}

func (s *memAccounts) LinkExternal(_ context.Context, link account.ExternalLink) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := linkKey(link.Platform, link.AppID, link.XID)
	if existing, ok := s.links[key]; ok {
		if existing != link.UserID {
			return fmt.Errorf("identity already bound to %s", existing)
		}
		return nil
	}
	s.links[key] = link.UserID
	return nil
}

type memIntents struct {
	mu       sync.Mutex
	sessions *memSessions
	intents  map[string]*intent.Intent
}

func newMemIntents(sessions *memSessions) *memIntents {
	return &memIntents{sessions: sessions, intents: make(map[string]*intent.Intent)}
}

func (s *memIntents) Insert(_ context.Context, it *intent.Intent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *it
	s.intents[it.Token] = &cp
	return nil
}

func (s *memIntents) Get(_ context.Context, token string) (*intent.Intent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.intents[token]
	if !ok {
		return nil, intent.ErrMissingIntent
	}
	cp := *it
	return &cp, nil
}

func (s *memIntents) CompleteTx(ctx context.Context, token, userID string) (*intent.Intent, error) {
	s.mu.Lock()
	it, ok := s.intents[token]
	if !ok {
		s.mu.Unlock()
		return nil, intent.ErrMissingIntent
	}
	if it.CompletedAt == nil {
		now := time.Now()
		it.UserID = userID
		it.CompletedAt = &now
	}
	cp := *it
	s.mu.Unlock()

	// Mirror the transactional origin-session write.
	origin, err := s.sessions.Get(ctx, cp.SessionID)
	if err != nil {
		return nil, intent.ErrSessionTerminated
	}
	origin.Content.LoggedInUserID = cp.UserID
	if err := s.sessions.Put(ctx, origin); err != nil {
		return nil, err
	}
	return &cp, nil
}

func (s *memIntents) DeleteExpired(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for token, it := range s.intents {
		stale := it.CompletedAt == nil && it.CreatedAt.Before(cutoff)
		done := it.CompletedAt != nil && it.CompletedAt.Before(cutoff)
		if stale || done {
			delete(s.intents, token)
			n++
		}
	}
	return n, nil
}

type fakeInviter struct {
	mu       sync.Mutex
	accepted []string
}

func (f *fakeInviter) AcceptInvite(_ context.Context, token, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accepted = append(f.accepted, token+":"+userID)
	return nil
}

// --- fixture ---

type resolverFixture struct {
	resolver *Resolver
	sessions *memSessions
	accounts *memAccounts
	ledger   *intent.Ledger
	inviter  *fakeInviter
}

func newResolverFixture(t *testing.T) *resolverFixture {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sessions := newMemSessions()
	accounts := newMemAccounts()
	ledger := intent.NewLedger(newMemIntents(sessions), intent.NewNotifier(), logger)
	inviter := &fakeInviter{}

	return &resolverFixture{
		resolver: NewResolver(sessions, accounts, ledger, NewAgeGate(nil), inviter, nil, logger),
		sessions: sessions,
		accounts: accounts,
		ledger:   ledger,
		inviter:  inviter,
	}
}

func telegramClaim(xid string) Claim {
	return Claim{
		Platform: account.PlatformTelegram,
		AppID:    "mybot",
		XID:      xid,
		Profile:  account.Profile{FirstName: "Ada", Username: "ada"},
	}
}

// --- tests ---

func TestResolve_Anonymous(t *testing.T) {
	t.Parallel()

	f := newResolverFixture(t)
	res, err := f.resolver.Resolve(context.Background(), "mybot", Claim{Platform: "telegram"}, "")
	if err != nil {
		t.Fatalf("anonymous claim must not error: %v", err)
	}
	if res.Authenticated {
		t.Fatal("anonymous claim must not authenticate")
	}
}

func TestResolve_FirstContactCreatesAccount(t *testing.T) {
	t.Parallel()

	f := newResolverFixture(t)
	ctx := context.Background()

	res, err := f.resolver.Resolve(ctx, "mybot", telegramClaim("777000"), "")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !res.Authenticated || !res.Created {
		t.Fatalf("result %+v, want authenticated + created", res)
	}
	if res.SessionID != session.DeterministicID("mybot", "777000") {
		t.Fatalf("session id %q not deterministic", res.SessionID)
	}

	acct, err := f.accounts.LookupExternal(ctx, "telegram", "mybot", "777000")
	if err != nil {
		t.Fatalf("link not written: %v", err)
	}
	if acct.ID != res.UserID {
		t.Fatalf("link points at %q, result says %q", acct.ID, res.UserID)
	}
	if acct.Profile.Username != "ada" {
		t.Fatalf("profile not captured: %+v", acct.Profile)
	}

	sess, err := f.sessions.Get(ctx, res.SessionID)
	if err != nil {
		t.Fatalf("session not written: %v", err)
	}
	if sess.Content.LoggedInUserID != res.UserID {
		t.Fatal("session not logged in")
	}
}

func TestResolve_ReturningUserReusesAccount(t *testing.T) {
	t.Parallel()

	f := newResolverFixture(t)
	ctx := context.Background()

	first, err := f.resolver.Resolve(ctx, "mybot", telegramClaim("777000"), "")
	if err != nil {
		t.Fatalf("first Resolve: %v", err)
	}
	second, err := f.resolver.Resolve(ctx, "mybot", telegramClaim("777000"), "")
	if err != nil {
		t.Fatalf("second Resolve: %v", err)
	}

	if second.UserID != first.UserID {
		t.Fatalf("returning user got new account %q, had %q", second.UserID, first.UserID)
	}
	if second.Created {
		t.Fatal("second resolve must not report creation")
	}
}

func TestResolve_IntentAdoptsOriginUser(t *testing.T) {
	t.Parallel()

	f := newResolverFixture(t)
	ctx := context.Background()

	// A web origin session already logged in as an existing account.
	acct, err := f.accounts.Create(ctx, account.Profile{FirstName: "Web"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	origin := &session.Session{ID: "web-origin"}
	origin.Content.LoggedInUserID = acct.ID
	if err := f.sessions.Put(ctx, origin); err != nil {
		t.Fatalf("Put: %v", err)
	}

	it, err := f.ledger.Create(ctx, intent.ActionIntent, "web-origin", nil)
	if err != nil {
		t.Fatalf("ledger.Create: %v", err)
	}

	// Telegram identity 777000 redeems the token; it must link to the
	// origin's account, not mint a fresh one.
	res, err := f.resolver.Resolve(ctx, "mybot", telegramClaim("777000"), intent.WireToken(it))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.UserID != acct.ID {
		t.Fatalf("redeemer bound to %q, want origin user %q", res.UserID, acct.ID)
	}
	if res.Created {
		t.Fatal("no new account should be created")
	}
	if res.Intent == nil || !res.Intent.Completed() {
		t.Fatalf("intent not completed: %+v", res.Intent)
	}

	// The external link must point at the adopted account.
	linked, err := f.accounts.LookupExternal(ctx, "telegram", "mybot", "777000")
	if err != nil {
		t.Fatalf("LookupExternal: %v", err)
	}
	if linked.ID != acct.ID {
		t.Fatalf("external identity bound to %q", linked.ID)
	}
}

func TestResolve_IntentAnonymousOriginLinksBack(t *testing.T) {
	t.Parallel()

	f := newResolverFixture(t)
	ctx := context.Background()

	// A fresh browser with no login mints an intent.
	origin := &session.Session{ID: "web-origin"}
	if err := f.sessions.Put(ctx, origin); err != nil {
		t.Fatalf("Put: %v", err)
	}
	it, err := f.ledger.Create(ctx, intent.ActionIntent, "web-origin", nil)
	if err != nil {
		t.Fatalf("ledger.Create: %v", err)
	}

	res, err := f.resolver.Resolve(ctx, "mybot", telegramClaim("777000"), intent.WireToken(it))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !res.Created {
		t.Fatal("first contact must create an account")
	}

	// Completion writes the new user into the waiting origin session.
	got, err := f.sessions.Get(ctx, "web-origin")
	if err != nil {
		t.Fatalf("Get origin: %v", err)
	}
	if got.Content.LoggedInUserID != res.UserID {
		t.Fatalf("origin session user %q, want %q", got.Content.LoggedInUserID, res.UserID)
	}
}

func TestResolve_IntentReplayIsNoop(t *testing.T) {
	t.Parallel()

	f := newResolverFixture(t)
	ctx := context.Background()

	origin := &session.Session{ID: "web-origin"}
	if err := f.sessions.Put(ctx, origin); err != nil {
		t.Fatalf("Put: %v", err)
	}
	it, err := f.ledger.Create(ctx, intent.ActionIntent, "web-origin", nil)
	if err != nil {
		t.Fatalf("ledger.Create: %v", err)
	}

	first, err := f.resolver.Resolve(ctx, "mybot", telegramClaim("777000"), intent.WireToken(it))
	if err != nil {
		t.Fatalf("first Resolve: %v", err)
	}

	// Telegram redelivers the same /start update.
	second, err := f.resolver.Resolve(ctx, "mybot", telegramClaim("777000"), intent.WireToken(it))
	if err != nil {
		t.Fatalf("replay Resolve: %v", err)
	}
	if second.UserID != first.UserID {
		t.Fatalf("replay resolved to %q, want %q", second.UserID, first.UserID)
	}
	if second.Intent.UserID != first.UserID {
		t.Fatal("replay rebound the intent")
	}
}

func TestResolve_CompletedIntentReplayByOtherUser(t *testing.T) {
	t.Parallel()

	f := newResolverFixture(t)
	ctx := context.Background()

	acct, err := f.accounts.Create(ctx, account.Profile{FirstName: "Web"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	origin := &session.Session{ID: "web-origin"}
	origin.Content.LoggedInUserID = acct.ID
	if err := f.sessions.Put(ctx, origin); err != nil {
		t.Fatalf("Put: %v", err)
	}
	it, err := f.ledger.Create(ctx, intent.ActionIntent, "web-origin", nil)
	if err != nil {
		t.Fatalf("ledger.Create: %v", err)
	}

	victim, err := f.resolver.Resolve(ctx, "mybot", telegramClaim("777000"), intent.WireToken(it))
	if err != nil {
		t.Fatalf("victim Resolve: %v", err)
	}
	if victim.UserID != acct.ID {
		t.Fatalf("victim bound to %q, want %q", victim.UserID, acct.ID)
	}

	// A different Telegram identity replays the captured token. The
	// completed intent must not log it into the victim's account.
	attacker, err := f.resolver.Resolve(ctx, "mybot", Claim{
		Platform: account.PlatformTelegram,
		AppID:    "mybot",
		XID:      "666",
		Profile:  account.Profile{FirstName: "Eve"},
	}, intent.WireToken(it))
	if err != nil {
		t.Fatalf("attacker Resolve: %v", err)
	}
	if attacker.UserID == victim.UserID {
		t.Fatalf("replayed token logged xid 666 into victim account %q", victim.UserID)
	}

	linked, err := f.accounts.LookupExternal(ctx, "telegram", "mybot", "666")
	if err != nil {
		t.Fatalf("LookupExternal: %v", err)
	}
	if linked.ID == victim.UserID {
		t.Fatal("attacker xid linked to victim account")
	}
}

func TestResolve_MalformedStartParam(t *testing.T) {
	t.Parallel()

	f := newResolverFixture(t)
	ctx := context.Background()

	for _, param := range []string{"nodash", "bogus-abc", "intent-"} {
		if _, err := f.resolver.Resolve(ctx, "mybot", telegramClaim("777000"), param); !errors.Is(err, ErrWrongValue) {
			t.Errorf("Resolve(%q) = %v, want ErrWrongValue", param, err)
		}
	}
}

func TestResolve_IntentOriginSessionGone(t *testing.T) {
	t.Parallel()

	f := newResolverFixture(t)
	ctx := context.Background()

	it, err := f.ledger.Create(ctx, intent.ActionIntent, "never-existed", nil)
	if err != nil {
		t.Fatalf("ledger.Create: %v", err)
	}

	_, err = f.resolver.Resolve(ctx, "mybot", telegramClaim("777000"), intent.WireToken(it))
	if !errors.Is(err, intent.ErrSessionTerminated) {
		t.Fatalf("expected ErrSessionTerminated, got %v", err)
	}
}

func TestResolve_InviteStashedAndAccepted(t *testing.T) {
	t.Parallel()

	f := newResolverFixture(t)
	ctx := context.Background()

	origin := &session.Session{ID: "inviter-session"}
	if err := f.sessions.Put(ctx, origin); err != nil {
		t.Fatalf("Put: %v", err)
	}
	it, err := f.ledger.Create(ctx, intent.ActionInvite, "inviter-session", map[string]string{"role": "member"})
	if err != nil {
		t.Fatalf("ledger.Create: %v", err)
	}

	res, err := f.resolver.Resolve(ctx, "mybot", telegramClaim("777000"), intent.WireToken(it))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	sess, err := f.sessions.Get(ctx, res.SessionID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if sess.Content.Invite != it.Token {
		t.Fatalf("invite token not stashed, content %+v", sess.Content)
	}

	f.inviter.mu.Lock()
	accepted := len(f.inviter.accepted)
	f.inviter.mu.Unlock()
	if accepted != 1 {
		t.Fatalf("inviter called %d times, want 1", accepted)
	}
}

func TestResolve_AgeGateRejects(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sessions := newMemSessions()
	accounts := newMemAccounts()
	ledger := intent.NewLedger(newMemIntents(sessions), intent.NewNotifier(), logger)

	gate := NewAgeGate([]ReferencePoint{
		{ID: 100, Date: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)},
	})
	resolver := NewResolver(sessions, accounts, ledger, gate, nil, map[string]time.Duration{
		"mybot": 365 * 24 * time.Hour,
	}, logger)

	// An id above every reference is estimated as registered yesterday.
	_, err := resolver.Resolve(context.Background(), "mybot", telegramClaim("999999"), "")
	if !errors.Is(err, ErrAccountTooYoung) {
		t.Fatalf("expected ErrAccountTooYoung, got %v", err)
	}

	// The same identity on an app without a minimum passes.
	if _, err := resolver.Resolve(context.Background(), "otherbot", telegramClaim("999999"), ""); err != nil {
		t.Fatalf("unrestricted app rejected: %v", err)
	}
}
