// Package credential decides whether an inbound identity claim is
// trustworthy, before any state mutation: webhook secret tokens and
// Telegram Mini App init-data signatures.
package credential

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/hex"
	"time"
)

const defaultInitDataMaxAge = 24 * time.Hour

// AppConfig holds per-app credentials.
type AppConfig struct {
	// BotToken is the Telegram bot token for this app.
	BotToken string

	// SecretOverride replaces the derived webhook secret when set.
	SecretOverride string

	// InitDataMaxAge bounds how old auth_date may be. 0 = 24h.
	InitDataMaxAge time.Duration
}

// Verifier validates webhook secret tokens and init-data signatures.
// It is pure: no storage access, safe for concurrent use.
type Verifier struct {
	internalSecret []byte
	apps           map[string]AppConfig
	now            func() time.Time
}

// NewVerifier creates a Verifier for the given apps.
func NewVerifier(internalSecret string, apps map[string]AppConfig) *Verifier {
	return &Verifier{
		internalSecret: []byte(internalSecret),
		apps:           apps,
		now:            time.Now,
	}
}

// SecretToken returns the secret token expected in the
// X-Telegram-Bot-Api-Secret-Token header for the given app:
// appId + "-" + HMAC_SHA1(internalSecret, "Telegram") in hex, unless the
// app configures an explicit override. The same value is passed to
// setWebhook so Telegram echoes it back on every delivery.
func (v *Verifier) SecretToken(appID string) (string, error) {
	app, ok := v.apps[appID]
	if !ok {
		return "", ErrUnknownApp
	}
	if app.SecretOverride != "" {
		return appID + "-" + app.SecretOverride, nil
	}
	mac := hmac.New(sha1.New, v.internalSecret)
	mac.Write([]byte("Telegram"))
	return appID + "-" + hex.EncodeToString(mac.Sum(nil)), nil
}

// VerifyWebhook checks the webhook secret header against the expected
// token for the app. It fails closed: a missing header, an unknown app,
// or any mismatch rejects the request.
func (v *Verifier) VerifyWebhook(header, appID string) error {
	if header == "" {
		return ErrNotAuthorized
	}
	expected, err := v.SecretToken(appID)
	if err != nil {
		return ErrNotAuthorized
	}
	if subtle.ConstantTimeCompare([]byte(header), []byte(expected)) != 1 {
		return ErrNotAuthorized
	}
	return nil
}

func (v *Verifier) app(appID string) (AppConfig, error) {
	app, ok := v.apps[appID]
	if !ok {
		return AppConfig{}, ErrUnknownApp
	}
	return app, nil
}
