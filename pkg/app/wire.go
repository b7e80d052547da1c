package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/telegate-io/telegate/internal/account"
	"github.com/telegate-io/telegate/internal/auth"
	"github.com/telegate-io/telegate/internal/config"
	"github.com/telegate-io/telegate/internal/core"
	"github.com/telegate-io/telegate/internal/credential"
	"github.com/telegate-io/telegate/internal/cron"
	"github.com/telegate-io/telegate/internal/dispatch"
	"github.com/telegate-io/telegate/internal/intent"
	"github.com/telegate-io/telegate/internal/security"
	"github.com/telegate-io/telegate/internal/session"
)

// credentialSource is the capability the bot module exposes for wiring:
// per-app webhook credentials and per-app minimum account ages.
type credentialSource interface {
	Credentials() map[string]credential.AppConfig
	MinAges() map[string]time.Duration
}

// wireDispatch builds the verification and authentication layer on top
// of the loaded modules and publishes it as services. It runs between
// LoadModules and Start: stores are already registered, the gateway has
// not yet resolved them.
func wireDispatch(application *core.App, appCtx *core.AppContext, cfg *config.Config, logger *slog.Logger, limiter *security.RateLimiter) error {
	apps := map[string]credential.AppConfig{}
	minAges := map[string]time.Duration{}
	var replier dispatch.Replier

	if mod, ok := application.Module("bot.telegram"); ok {
		src, ok := mod.(credentialSource)
		if !ok {
			return fmt.Errorf("module bot.telegram does not expose credentials")
		}
		apps = src.Credentials()
		minAges = src.MinAges()
		if r, ok := mod.(dispatch.Replier); ok {
			replier = r
		}
	}

	// Every bot token must be known to the redactor before the first
	// webhook is logged.
	if store, ok := service[*security.CredentialStore](appCtx, "security.credentials"); ok {
		for appID, app := range apps {
			store.Set("bot_token_"+appID, app.BotToken)
		}
	}

	verifier := credential.NewVerifier(cfg.Security.InternalSecret, apps)
	appCtx.RegisterService("credential.verifier", verifier)

	sessions, ok := service[session.Store](appCtx, "store.sessions")
	if !ok {
		return fmt.Errorf("no session store registered, is store.sqlite configured?")
	}
	intents, ok := service[intent.Store](appCtx, "store.intents")
	if !ok {
		return fmt.Errorf("no intent store registered, is store.sqlite configured?")
	}
	accounts, ok := service[account.Store](appCtx, "store.accounts")
	if !ok {
		return fmt.Errorf("no account store registered, is store.sqlite configured?")
	}

	notifier := intent.NewNotifier()
	ledger := intent.NewLedger(intents, notifier, logger)
	appCtx.RegisterService("intent.notifier", notifier)
	appCtx.RegisterService("intent.ledger", ledger)

	ageGate := auth.NewAgeGate(auth.DefaultReferencePoints)
	resolver := auth.NewResolver(sessions, accounts, ledger, ageGate, nil, minAges, logger)
	appCtx.RegisterService("auth.resolver", resolver)

	cookieSecret := cfg.Security.CookieSecret
	if cookieSecret == "" {
		cookieSecret = cfg.Security.InternalSecret
	}
	appCtx.RegisterService("auth.cookies", auth.NewCookieMinter(cookieSecret))

	router := dispatch.NewRouter(verifier, resolver, replier, logger)
	for _, id := range config.Resolve(cfg) {
		mod, ok := application.Module(id)
		if !ok {
			continue
		}
		provider, ok := mod.(dispatch.HandlerProvider)
		if !ok {
			continue
		}
		for _, reg := range provider.UpdateHandlers() {
			if reg.Type == "" {
				router.HandleNotFound(reg.Handler)
				continue
			}
			router.Handle(reg.AppID, reg.Type, reg.Handler)
		}
	}
	appCtx.RegisterService("dispatch.router", router)

	sched := cron.NewScheduler(logger)
	jobs := []cron.Job{
		&cron.IntentExpiryJob{Ledger: ledger, Logger: logger},
		&cron.SessionPruneJob{Store: sessions, Logger: logger},
		&cron.RateLimitSweepJob{Limiter: limiter},
	}
	for _, j := range jobs {
		if err := sched.RegisterJob(j); err != nil {
			return fmt.Errorf("registering job %s: %w", j.Name(), err)
		}
	}
	application.AppendModule("cron.scheduler", &schedulerModule{scheduler: sched})

	return nil
}

// service resolves a named service and asserts its type.
func service[T any](appCtx *core.AppContext, name string) (T, bool) {
	var zero T
	svc, ok := appCtx.Service(name)
	if !ok {
		return zero, false
	}
	typed, ok := svc.(T)
	if !ok {
		return zero, false
	}
	return typed, true
}

// schedulerModule adapts the cron scheduler to the module lifecycle so
// it starts after the stores and stops before them.
type schedulerModule struct {
	scheduler *cron.Scheduler
}

// ModuleInfo implements core.Module.
func (m *schedulerModule) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "cron.scheduler",
		New: func() core.Module { return &schedulerModule{} },
	}
}

// Start implements core.Starter.
func (m *schedulerModule) Start() error { return m.scheduler.Start() }

// Stop implements core.Stopper.
func (m *schedulerModule) Stop(ctx context.Context) error { return m.scheduler.Stop(ctx) }
