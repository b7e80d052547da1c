package gateway

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/telegate-io/telegate/internal/credential"
	"github.com/telegate-io/telegate/internal/dispatch"
	"github.com/telegate-io/telegate/internal/security"
)

// webhookSecretHeader is set by Telegram on every delivery, echoing the
// secret_token passed to setWebhook.
const webhookSecretHeader = "X-Telegram-Bot-Api-Secret-Token"

// handleWebhook ingests one Telegram update.
//
// Only a failed secret check yields a non-2xx response. Every verified
// delivery is acknowledged with 200 regardless of what dispatch did:
// Telegram retries non-2xx responses, and a poison update must not loop
// forever. No detail about the failure leaks into the response body.
func (g *Gateway) handleWebhook() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		appID := chi.URLParam(r, "appID")
		if appID == "" {
			http.Error(w, "missing app id", http.StatusBadRequest)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "failed to read body", http.StatusBadRequest)
			return
		}
		if err := security.ValidateUpdateSize(body, 0); err != nil {
			http.Error(w, "body too large", http.StatusRequestEntityTooLarge)
			return
		}

		out := g.router.Dispatch(r.Context(), appID, r.Header.Get(webhookSecretHeader), body)
		g.metrics.RecordUpdate(appID, out.Type, string(out.State))

		if out.State == dispatch.StateErrored && errors.Is(out.Err, credential.ErrNotAuthorized) {
			g.auditEvent(security.EventWebhookRejected, appID, r)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}
}

func (g *Gateway) auditEvent(typ security.EventType, appID string, r *http.Request) {
	if g.audit == nil {
		return
	}
	g.audit.Log(security.AuditEvent{
		Type:  typ,
		AppID: appID,
		Metadata: map[string]string{
			"remote_addr": r.RemoteAddr,
			"path":        r.URL.Path,
		},
	})
}
