// Package gateway provides the public HTTP surface: Telegram webhook
// ingestion, Mini App authentication, intent minting and watching, plus
// health, status, and admin endpoints. It binds to loopback by default
// and follows the module system pattern.
package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/telegate-io/telegate/internal/auth"
	"github.com/telegate-io/telegate/internal/core"
	"github.com/telegate-io/telegate/internal/credential"
	"github.com/telegate-io/telegate/internal/dispatch"
	"github.com/telegate-io/telegate/internal/intent"
	"github.com/telegate-io/telegate/internal/security"
	"github.com/telegate-io/telegate/internal/session"
)

func init() {
	core.RegisterModule(&Gateway{})
}

// DeepLinker renders the t.me links that carry an intent token into
// Telegram. The bot module provides one.
type DeepLinker interface {
	// BotLink returns the ?start= deep link for the app's bot.
	BotLink(appID, startParam string) (string, bool)

	// AppLink returns the ?startapp= Mini App link, if the app has one.
	AppLink(appID, startParam string) (string, bool)
}

// Gateway is the HTTP gateway module. It is a leaf module, nothing
// imports it.
type Gateway struct {
	config     Config
	configPath string
	appCtx     *core.AppContext
	logger     *slog.Logger
	server     *http.Server
	metrics    *Metrics
	startedAt  time.Time

	// Resolved lazily at Start() via service registry.
	router      *dispatch.Router
	resolver    *auth.Resolver
	verifier    *credential.Verifier
	cookies     *auth.CookieMinter
	ledger      *intent.Ledger
	notifier    *intent.Notifier
	sessions    session.Store
	deeplinks   DeepLinker
	audit       *security.AuditLogger
	rateLimiter *security.RateLimiter
}

// ModuleInfo implements core.Module.
func (g *Gateway) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "gateway.http",
		New: func() core.Module { return &Gateway{} },
	}
}

// Configure implements core.Configurable.
func (g *Gateway) Configure(node *yaml.Node) error {
	if err := node.Decode(&g.config); err != nil {
		return err
	}
	g.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (g *Gateway) Provision(ctx *core.AppContext) error {
	g.appCtx = ctx
	g.logger = ctx.Logger
	g.metrics = NewMetrics()
	g.configPath = g.config.ConfigPath

	ctx.RegisterService("gateway.metrics", g.metrics)
	return nil
}

// Validate implements core.Validator.
func (g *Gateway) Validate() error {
	if _, err := net.ResolveTCPAddr("tcp", g.config.Bind); err != nil {
		return errors.New("gateway: invalid bind address: " + g.config.Bind)
	}
	return nil
}

// Start implements core.Starter. It resolves dependencies from the
// service registry (lazy binding) and starts the HTTP server. The
// dispatch router is mandatory; everything else degrades gracefully.
func (g *Gateway) Start() error {
	router, ok := serviceAs[*dispatch.Router](g.appCtx, "dispatch.router")
	if !ok {
		return errors.New("gateway: dispatch.router service not available")
	}
	g.router = router

	g.resolver, _ = serviceAs[*auth.Resolver](g.appCtx, "auth.resolver")
	g.verifier, _ = serviceAs[*credential.Verifier](g.appCtx, "credential.verifier")
	g.cookies, _ = serviceAs[*auth.CookieMinter](g.appCtx, "auth.cookies")
	g.ledger, _ = serviceAs[*intent.Ledger](g.appCtx, "intent.ledger")
	g.notifier, _ = serviceAs[*intent.Notifier](g.appCtx, "intent.notifier")
	g.sessions, _ = serviceAs[session.Store](g.appCtx, "store.sessions")
	g.deeplinks, _ = serviceAs[DeepLinker](g.appCtx, "bot.deeplinks")
	g.audit, _ = serviceAs[*security.AuditLogger](g.appCtx, "security.audit")
	g.rateLimiter, _ = serviceAs[*security.RateLimiter](g.appCtx, "security.ratelimit")

	g.startedAt = time.Now()

	g.server = &http.Server{
		Addr:         g.config.Bind,
		Handler:      g.buildRouter(),
		ReadTimeout:  g.config.ReadTimeout,
		WriteTimeout: g.config.WriteTimeout,
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(context.Background(), "tcp", g.config.Bind)
	if err != nil {
		return errors.New("gateway: listen failed: " + err.Error())
	}

	go func() {
		g.logger.Info("gateway listening", "addr", g.config.Bind)
		if err := g.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			g.logger.Error("gateway serve error", "error", err)
		}
	}()

	return nil
}

// Stop implements core.Stopper. Graceful shutdown with configured timeout.
func (g *Gateway) Stop(ctx context.Context) error {
	if g.server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, g.config.ShutdownTimeout)
	defer cancel()

	g.logger.Info("gateway shutting down")
	return g.server.Shutdown(shutdownCtx)
}

// serviceAs resolves a service from the registry and asserts its type.
func serviceAs[T any](ctx *core.AppContext, name string) (T, bool) {
	var zero T
	svc, ok := ctx.Service(name)
	if !ok {
		return zero, false
	}
	typed, ok := svc.(T)
	if !ok {
		return zero, false
	}
	return typed, true
}
