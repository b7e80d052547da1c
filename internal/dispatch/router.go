package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/telegate-io/telegate/internal/account"
	"github.com/telegate-io/telegate/internal/auth"
	"github.com/telegate-io/telegate/internal/credential"
	"github.com/telegate-io/telegate/internal/security"
	"github.com/telegate-io/telegate/pkg/update"
)

// Router is the webhook state machine. One instance serves all apps.
type Router struct {
	verifier *credential.Verifier
	resolver *auth.Resolver
	replier  Replier
	logger   *slog.Logger
	tracer   trace.Tracer

	hooks    map[Phase][]HookFunc
	handlers map[handlerKey]HandlerFunc
	notFound HandlerFunc
}

type handlerKey struct {
	appID string
	typ   string
}

// NewRouter creates a Router. replier may be nil; diagnostics are then
// skipped.
func NewRouter(verifier *credential.Verifier, resolver *auth.Resolver, replier Replier, logger *slog.Logger) *Router {
	return &Router{
		verifier: verifier,
		resolver: resolver,
		replier:  replier,
		logger:   logger,
		tracer:   otel.Tracer("telegate/dispatch"),
		hooks:    make(map[Phase][]HookFunc),
		handlers: make(map[handlerKey]HandlerFunc),
	}
}

// Hook appends a hook to a phase. Hooks run in registration order.
func (r *Router) Hook(phase Phase, fn HookFunc) {
	r.hooks[phase] = append(r.hooks[phase], fn)
}

// Handle registers a response handler. An empty appID registers the
// generic handler for the type, used when no app-scoped one matches.
func (r *Router) Handle(appID, typ string, fn HandlerFunc) {
	r.handlers[handlerKey{appID, typ}] = fn
}

// HandleNotFound registers the terminal fallback. Without one, an
// unhandled update yields ErrMethodNotSupported.
func (r *Router) HandleNotFound(fn HandlerFunc) {
	r.notFound = fn
}

// Dispatch runs one update through the full pipeline.
//
// An Errored outcome before Verified means the caller must reject the
// request. From Verified on, errors are absorbed here: logged, answered
// with a best-effort diagnostic to the originating chat, and still
// acknowledged upstream, because Telegram retries non-2xx responses and
// a poison update must not cause a redelivery storm.
func (r *Router) Dispatch(ctx context.Context, appID, secretHeader string, body []byte) *Outcome {
	ctx, span := r.tracer.Start(ctx, "dispatch.update",
		trace.WithAttributes(attribute.String("app.id", appID)))
	defer span.End()

	out := &Outcome{State: StateReceived}

	if err := r.verifier.VerifyWebhook(secretHeader, appID); err != nil {
		r.logger.Warn("webhook verification failed", "app_id", appID)
		span.SetStatus(codes.Error, "not authorized")
		out.State = StateErrored
		out.Err = err
		return out
	}
	out.State = StateVerified

	// Depth-bomb guard before handing the body to the JSON decoder.
	if err := security.ValidateJSONDepth(body, 0); err != nil {
		return r.errored(ctx, span, out, nil, fmt.Errorf("parsing update: %w", err))
	}

	var u update.Update
	if err := json.Unmarshal(body, &u); err != nil {
		return r.errored(ctx, span, out, nil, fmt.Errorf("parsing update: %w", err))
	}

	req := &Request{AppID: appID, Update: &u, Type: u.Type()}
	out.Type = req.Type
	out.State = StateClassified
	span.SetAttributes(attribute.String("update.type", req.Type))
	if req.Type == "" {
		// Unknown shape, likely a newer Bot API. Routed, not rejected.
		r.logger.Debug("unclassified update", "app_id", appID, "update_id", u.UpdateID)
	}

	if req.Type == update.TypeMessage {
		out.State = StateAuthenticating
		if err := r.authenticate(ctx, req); err != nil {
			return r.errored(ctx, span, out, req, err)
		}
	}

	out.State = StateDispatching
	if err := r.runHooks(ctx, req); err != nil {
		return r.errored(ctx, span, out, req, err)
	}

	reply, err := r.respond(ctx, req)
	if err != nil {
		return r.errored(ctx, span, out, req, err)
	}
	if reply != "" {
		r.sendReply(ctx, req, reply)
	}

	out.Reply = reply
	out.State = StateResponded
	return out
}

// authenticate extracts the sender claim and any /start parameter from
// a message update and resolves it. Messages without a sender stay
// anonymous.
func (r *Router) authenticate(ctx context.Context, req *Request) error {
	msg := req.Update.Message
	claim := auth.Claim{Platform: account.PlatformTelegram, AppID: req.AppID}
	if msg.From != nil {
		claim.XID = fmt.Sprintf("%d", msg.From.ID)
		claim.Profile = account.Profile{
			FirstName: msg.From.FirstName,
			LastName:  msg.From.LastName,
			Username:  msg.From.Username,
			Language:  msg.From.LanguageCode,
		}
	}
	req.StartParam = StartParam(msg.Text)

	result, err := r.resolver.Resolve(ctx, req.AppID, claim, req.StartParam)
	if err != nil {
		return err
	}
	req.Auth = result
	return nil
}

func (r *Router) runHooks(ctx context.Context, req *Request) error {
	for _, fn := range r.hooks[PhaseValidate] {
		if err := fn(ctx, req); err != nil {
			req.SoftErrors = append(req.SoftErrors, err)
		}
	}
	for _, phase := range []Phase{PhaseObjects, PhaseAction} {
		for _, fn := range r.hooks[phase] {
			if err := fn(ctx, req); err != nil {
				return fmt.Errorf("%s hook: %w", phase, err)
			}
		}
	}
	return nil
}

// respond resolves the handler chain once per request: app-scoped,
// then generic, then not-found.
func (r *Router) respond(ctx context.Context, req *Request) (string, error) {
	if fn, ok := r.handlers[handlerKey{req.AppID, req.Type}]; ok {
		return fn(ctx, req)
	}
	if fn, ok := r.handlers[handlerKey{"", req.Type}]; ok {
		return fn(ctx, req)
	}
	if r.notFound != nil {
		return r.notFound(ctx, req)
	}
	return "", ErrMethodNotSupported
}

// errored finalizes a failed pipeline run. A diagnostic goes back to
// the chat when one can be recovered from the update.
func (r *Router) errored(ctx context.Context, span trace.Span, out *Outcome, req *Request, err error) *Outcome {
	out.State = StateErrored
	out.Err = err
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	appID := ""
	if req != nil {
		appID = req.AppID
	}
	r.logger.Error("update dispatch failed",
		"app_id", appID,
		"update_type", out.Type,
		"error", err)

	if req != nil {
		r.sendReply(ctx, req, diagnosticText(err))
	}
	return out
}

func (r *Router) sendReply(ctx context.Context, req *Request, text string) {
	if r.replier == nil || text == "" {
		return
	}
	chatID, ok := req.Update.ChatID()
	if !ok {
		return
	}
	if err := r.replier.SendText(ctx, req.AppID, chatID, text); err != nil {
		r.logger.Warn("sending reply failed", "app_id", req.AppID, "error", err)
	}
}

// diagnosticText maps typed failures to the short user-facing messages
// sent back into the chat.
func diagnosticText(err error) string {
	switch {
	case errors.Is(err, auth.ErrAccountTooYoung):
		return "Sorry, your Telegram account is too new to use this service."
	case errors.Is(err, auth.ErrWrongValue):
		return "That link looks malformed. Please request a new one."
	default:
		return "Something went wrong handling your message. Please try again."
	}
}

// StartParam extracts the deep-link payload from a /start command.
// Returns "" for any other text.
func StartParam(text string) string {
	const prefix = "/start "
	if !strings.HasPrefix(text, prefix) {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(text, prefix))
}
