package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/go-chi/chi/v5"

	"github.com/telegate-io/telegate/internal/intent"
)

// watchEvent is pushed to a watching browser when its intent completes.
type watchEvent struct {
	Token       string `json:"token"`
	Action      string `json:"action"`
	UserID      string `json:"user_id"`
	CompletedAt string `json:"completed_at"`
}

// handleWatchIntent upgrades to a websocket and blocks until the watched
// intent completes, the watch times out, or the client goes away. An
// intent that already completed is reported immediately, so a browser
// reconnecting after the redemption still observes it.
func (g *Gateway) handleWatchIntent() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if g.notifier == nil || g.ledger == nil {
			http.Error(w, "intents not available", http.StatusServiceUnavailable)
			return
		}
		token := chi.URLParam(r, "token")
		if token == "" {
			http.Error(w, "missing token", http.StatusBadRequest)
			return
		}

		// Subscribe before the completed check. The inverse order loses
		// completions that land between the check and the subscription.
		ch, cancel := g.notifier.Watch(token)
		defer cancel()

		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			g.logger.Debug("websocket accept failed", "error", err)
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "")
		g.metrics.WatcherConnected()
		defer g.metrics.WatcherDisconnected()

		ctx, cancelCtx := context.WithTimeout(r.Context(), g.config.WatchTimeout)
		defer cancelCtx()

		if it, err := g.ledger.Lookup(ctx, token); err == nil && it.Completed() {
			_ = wsjson.Write(ctx, conn, completionEvent(it))
			return
		}

		select {
		case it := <-ch:
			_ = wsjson.Write(ctx, conn, completionEvent(it))
		case <-ctx.Done():
		}
	}
}

func completionEvent(it *intent.Intent) watchEvent {
	ev := watchEvent{
		Token:  it.Token,
		Action: string(it.Action),
		UserID: it.UserID,
	}
	if it.CompletedAt != nil {
		ev.CompletedAt = it.CompletedAt.UTC().Format(time.RFC3339)
	}
	return ev
}
