package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/telegate-io/telegate/internal/core"
	"github.com/telegate-io/telegate/internal/credential"
	"github.com/telegate-io/telegate/internal/dispatch"
)

func init() {
	core.RegisterModule(&Module{})
}

// Compile-time interface guards.
var (
	_ dispatch.Replier         = (*Module)(nil)
	_ dispatch.HandlerProvider = (*Module)(nil)
	_ core.Configurable        = (*Module)(nil)
	_ core.Provisioner         = (*Module)(nil)
	_ core.Validator           = (*Module)(nil)
	_ core.Starter             = (*Module)(nil)
	_ core.Stopper             = (*Module)(nil)
)

// Module is the Telegram bot module. It owns one Bot API client per app
// and keeps the webhook registrations in sync with the derived secrets.
type Module struct {
	config  Config
	clients map[string]*Client
	logger  *slog.Logger
	appCtx  *core.AppContext
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "bot.telegram",
		New: func() core.Module { return &Module{} },
	}
}

// Configure implements core.Configurable.
func (m *Module) Configure(node *yaml.Node) error {
	if err := node.Decode(&m.config); err != nil {
		return fmt.Errorf("telegram: decode config: %w", err)
	}
	m.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.appCtx = ctx
	m.logger = ctx.Logger
	m.clients = make(map[string]*Client, len(m.config.Apps))
	for appID, app := range m.config.Apps {
		m.clients[appID] = NewClient(app.Token, m.config.APIURL)
	}

	ctx.RegisterService("bot.telegram", m)
	ctx.RegisterService("bot.deeplinks", m)
	return nil
}

// Validate implements core.Validator.
func (m *Module) Validate() error {
	return m.config.validate()
}

// Start implements core.Starter. Each app's bot is authenticated via
// getMe and its webhook registered with the secret token the gateway
// will expect.
func (m *Module) Start() error {
	verifier, ok := m.service("credential.verifier")
	if !ok {
		return errors.New("telegram: credential.verifier service not found")
	}
	v, ok := verifier.(*credential.Verifier)
	if !ok {
		return errors.New("telegram: credential.verifier has unexpected type")
	}

	ctx := context.Background()
	for appID, app := range m.config.Apps {
		client := m.clients[appID]

		user, err := client.GetMe(ctx)
		if err != nil {
			return fmt.Errorf("telegram: app %q: getMe failed (check token): %w", appID, err)
		}
		if app.BotUsername == "" {
			app.BotUsername = user.Username
			m.config.Apps[appID] = app
		}
		m.logger.Info("telegram bot authenticated",
			"app_id", appID,
			"id", user.ID,
			"username", user.Username,
		)

		secret, err := v.SecretToken(appID)
		if err != nil {
			return fmt.Errorf("telegram: app %q: deriving webhook secret: %w", appID, err)
		}
		if err := client.SetWebhook(ctx, SetWebhookRequest{
			URL:            app.WebhookURL,
			SecretToken:    secret,
			AllowedUpdates: app.AllowedUpdates,
		}); err != nil {
			return fmt.Errorf("telegram: app %q: setWebhook failed: %w", appID, err)
		}
		m.logger.Info("telegram webhook configured",
			"app_id", appID,
			"url", app.WebhookURL,
		)
	}

	return nil
}

// Stop implements core.Stopper.
func (m *Module) Stop(ctx context.Context) error {
	m.logger.Info("telegram bot module stopping")
	if !m.config.DeleteWebhookOnStop {
		return nil
	}
	for appID, client := range m.clients {
		if err := client.DeleteWebhook(ctx); err != nil {
			m.logger.Warn("telegram: failed to delete webhook on shutdown",
				"app_id", appID, "error", err)
		}
	}
	return nil
}

// SendText implements dispatch.Replier.
func (m *Module) SendText(ctx context.Context, appID string, chatID int64, text string) error {
	client, ok := m.clients[appID]
	if !ok {
		return fmt.Errorf("telegram: unknown app %q", appID)
	}
	_, err := client.SendMessage(ctx, SendMessageRequest{ChatID: chatID, Text: text})
	return err
}

// Credentials exposes per-app verification parameters for wiring the
// credential verifier. Available after Configure.
func (m *Module) Credentials() map[string]credential.AppConfig {
	out := make(map[string]credential.AppConfig, len(m.config.Apps))
	for appID, app := range m.config.Apps {
		out[appID] = credential.AppConfig{
			BotToken:       app.Token,
			SecretOverride: app.SecretOverride,
			InitDataMaxAge: app.InitDataMaxAge,
		}
	}
	return out
}

// MinAges exposes the per-app account age gates. Available after
// Configure.
func (m *Module) MinAges() map[string]time.Duration {
	out := make(map[string]time.Duration, len(m.config.Apps))
	for appID, app := range m.config.Apps {
		if app.MinAgeDays > 0 {
			out[appID] = time.Duration(app.MinAgeDays) * 24 * time.Hour
		}
	}
	return out
}

func (m *Module) service(name string) (any, bool) {
	if m.appCtx == nil {
		return nil, false
	}
	return m.appCtx.Service(name)
}
