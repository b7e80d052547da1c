package telegram

import (
	"context"
	"fmt"

	"github.com/telegate-io/telegate/internal/dispatch"
	"github.com/telegate-io/telegate/internal/intent"
	"github.com/telegate-io/telegate/pkg/update"
)

// UpdateHandlers implements dispatch.HandlerProvider: the generic
// message responder plus the terminal not-found fallback. Apps can
// shadow either by registering an app-scoped handler.
func (m *Module) UpdateHandlers() []dispatch.HandlerRegistration {
	return []dispatch.HandlerRegistration{
		{Type: update.TypeMessage, Handler: m.handleMessage},
		{Type: update.TypeCallbackQuery, Handler: m.handleCallbackQuery},
		{Type: "", Handler: m.handleUnrouted},
	}
}

// handleMessage acknowledges /start conversations. A redeemed linking
// intent gets an explicit confirmation so the user knows the browser
// side is now logged in; everything else stays silent.
func (m *Module) handleMessage(_ context.Context, req *dispatch.Request) (string, error) {
	if req.Auth != nil && req.Auth.Intent != nil {
		switch req.Auth.Intent.Action {
		case intent.ActionInvite:
			return "Invite accepted. You can head back to your browser.", nil
		default:
			return "You're connected. You can head back to your browser.", nil
		}
	}
	if req.StartParam == "" && req.Update.Message != nil && req.Update.Message.Text == "/start" {
		return "Hello! Open this bot from the website you want to link, so I know what to connect.", nil
	}
	return "", nil
}

// handleCallbackQuery answers the callback so the client clears the
// loading state on the button. No linking flow rides on callback data,
// so the payload is dropped.
func (m *Module) handleCallbackQuery(ctx context.Context, req *dispatch.Request) (string, error) {
	cq := req.Update.CallbackQuery
	if cq == nil {
		return "", nil
	}
	client, ok := m.clients[req.AppID]
	if !ok {
		return "", fmt.Errorf("telegram: unknown app %q", req.AppID)
	}
	return "", client.AnswerCallbackQuery(ctx, AnswerCallbackQueryRequest{
		CallbackQueryID: cq.ID,
	})
}

// handleUnrouted is the not-found fallback for update kinds nothing
// claims. It swallows them: Telegram must still get its 200.
func (m *Module) handleUnrouted(_ context.Context, _ *dispatch.Request) (string, error) {
	return "", nil
}
