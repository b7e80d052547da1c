package telegram

import (
	"fmt"
	"time"
)

const defaultAPIURL = "https://api.telegram.org"

// Config holds the bot module configuration: shared API settings and
// one entry per served app.
type Config struct {
	// APIURL overrides the Bot API base URL (tests, local Bot API server).
	APIURL string `yaml:"api_url"`

	// Apps maps app ids to their bot configuration.
	Apps map[string]AppConfig `yaml:"apps"`

	// DeleteWebhookOnStop removes the webhook registration at shutdown.
	DeleteWebhookOnStop bool `yaml:"delete_webhook_on_stop"`
}

// AppConfig configures one app's bot.
type AppConfig struct {
	// Token is the bot token from BotFather.
	Token string `yaml:"token"`

	// WebhookURL is the public URL Telegram delivers updates to. It
	// must route to the gateway's /telegram/webhook/{appID} endpoint.
	WebhookURL string `yaml:"webhook_url"`

	// SecretOverride replaces the derived webhook secret token.
	SecretOverride string `yaml:"secret_override"`

	// BotUsername is used for deep links. Filled from getMe when empty.
	BotUsername string `yaml:"bot_username"`

	// StartAppName is the Mini App short name for startapp deep links.
	// Empty means the app has no Mini App link.
	StartAppName string `yaml:"startapp_name"`

	// MinAgeDays rejects Telegram accounts estimated younger than this.
	// 0 disables the gate.
	MinAgeDays int `yaml:"min_age_days"`

	// InitDataMaxAge bounds init-data auth_date freshness. 0 = 24h.
	InitDataMaxAge time.Duration `yaml:"init_data_max_age"`

	// AllowedUpdates restricts which update kinds Telegram delivers.
	AllowedUpdates []string `yaml:"allowed_updates"`
}

func (c *Config) defaults() {
	if c.APIURL == "" {
		c.APIURL = defaultAPIURL
	}
}

func (c *Config) validate() error {
	if len(c.Apps) == 0 {
		return fmt.Errorf("telegram: at least one app must be configured")
	}
	for appID, app := range c.Apps {
		if app.Token == "" {
			return fmt.Errorf("telegram: app %q: token is required", appID)
		}
		if app.WebhookURL == "" {
			return fmt.Errorf("telegram: app %q: webhook_url is required", appID)
		}
		if app.MinAgeDays < 0 {
			return fmt.Errorf("telegram: app %q: min_age_days must not be negative", appID)
		}
	}
	return nil
}
