// Package dispatch drives an inbound webhook update through
// verification, classification, authentication, and handler dispatch.
package dispatch

import (
	"context"
	"errors"

	"github.com/telegate-io/telegate/internal/auth"
	"github.com/telegate-io/telegate/pkg/update"
)

// ErrMethodNotSupported means no handler, scoped or generic, accepted
// the update and no not-found handler was registered.
var ErrMethodNotSupported = errors.New("dispatch: method not supported")

// State of an update as it moves through the pipeline.
type State string

const (
	StateReceived       State = "received"
	StateVerified       State = "verified"
	StateClassified     State = "classified"
	StateAuthenticating State = "authenticating"
	StateDispatching    State = "dispatching"
	StateResponded      State = "responded"
	StateErrored        State = "errored"
)

// Request is the per-update context threaded through hooks and handlers.
type Request struct {
	AppID      string
	Update     *update.Update
	Type       string
	StartParam string

	// Auth is set after the authenticating phase for message updates;
	// nil for every other kind.
	Auth *auth.Result

	// SoftErrors collects validate-phase findings. They do not stop the
	// pipeline.
	SoftErrors []error
}

// Outcome reports how far an update got and what came of it.
type Outcome struct {
	State State
	Type  string

	// Reply is the text a handler chose to send back, if any.
	Reply string

	// Err is set when State is Errored.
	Err error
}

// Phase names the ordered extension points between authentication and
// response.
type Phase string

const (
	// PhaseValidate collects soft errors without mutating anything.
	PhaseValidate Phase = "validate"

	// PhaseObjects fetches and prepares entities.
	PhaseObjects Phase = "objects"

	// PhaseAction is the only point where side effects beyond
	// authentication may occur. Everything reachable from here must be
	// safe to repeat, Telegram redelivers updates.
	PhaseAction Phase = "action"
)

// HookFunc runs at an extension point.
type HookFunc func(ctx context.Context, req *Request) error

// HandlerFunc produces the response for an update. The returned string,
// when non-empty, is sent back to the originating chat.
type HandlerFunc func(ctx context.Context, req *Request) (string, error)

// Replier sends a text message to a chat. The bot module provides one
// per app.
type Replier interface {
	SendText(ctx context.Context, appID string, chatID int64, text string) error
}

// HandlerProvider lets modules contribute response handlers during
// wiring. AppID is empty for generic handlers.
type HandlerProvider interface {
	UpdateHandlers() []HandlerRegistration
}

// HandlerRegistration binds a handler to an (app, update type) scope.
// An empty Type registers the not-found fallback instead.
type HandlerRegistration struct {
	AppID   string
	Type    string
	Handler HandlerFunc
}
