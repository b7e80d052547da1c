package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/telegate-io/telegate/internal/intent"
	"github.com/telegate-io/telegate/internal/security"
)

// createIntentRequest is the POST /intents body.
type createIntentRequest struct {
	AppID     string            `json:"app_id"`
	Action    string            `json:"action"`
	SessionID string            `json:"session_id"`
	Content   map[string]string `json:"content,omitempty"`
}

// createIntentResponse carries the minted token and the deep links that
// deliver it into Telegram.
type createIntentResponse struct {
	Token   string `json:"token"`
	BotLink string `json:"bot_link,omitempty"`
	AppLink string `json:"app_link,omitempty"`
}

// handleCreateIntent mints a linking intent for a browser session and
// returns the deep links a page can render.
func (g *Gateway) handleCreateIntent() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if g.ledger == nil {
			http.Error(w, "intents not available", http.StatusServiceUnavailable)
			return
		}

		var req createIntentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}
		if req.SessionID == "" {
			http.Error(w, "missing session id", http.StatusBadRequest)
			return
		}

		var action intent.Action
		switch req.Action {
		case "", string(intent.ActionIntent):
			action = intent.ActionIntent
		case string(intent.ActionInvite):
			action = intent.ActionInvite
		default:
			http.Error(w, "unknown action", http.StatusBadRequest)
			return
		}

		if g.rateLimiter != nil {
			if err := g.rateLimiter.Allow(security.LimitIntent, req.SessionID); err != nil {
				http.Error(w, "too many requests", http.StatusTooManyRequests)
				return
			}
		}

		// The browser session must exist before the bot side redeems
		// the token, or redemption reports it terminated.
		if g.sessions != nil {
			if _, err := g.sessions.Open(r.Context(), req.SessionID); err != nil {
				g.logger.Error("opening intent origin session failed", "error", err)
				http.Error(w, "internal error", http.StatusInternalServerError)
				return
			}
		}

		it, err := g.ledger.Create(r.Context(), action, req.SessionID, req.Content)
		if err != nil {
			g.logger.Error("creating intent failed", "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		g.metrics.RecordIntentCreated()
		if g.audit != nil {
			g.audit.Log(security.AuditEvent{
				Type:      security.EventIntentCreated,
				AppID:     req.AppID,
				SessionID: req.SessionID,
			})
		}

		resp := createIntentResponse{Token: it.Token}
		if g.deeplinks != nil && req.AppID != "" {
			param := intent.WireToken(it)
			if link, ok := g.deeplinks.BotLink(req.AppID, param); ok {
				resp.BotLink = link
			}
			if link, ok := g.deeplinks.AppLink(req.AppID, param); ok {
				resp.AppLink = link
			}
		}
		writeJSON(w, http.StatusCreated, resp)
	}
}
