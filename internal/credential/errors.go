package credential

import "errors"

var (
	// ErrNotAuthorized means the webhook secret token was absent or wrong.
	ErrNotAuthorized = errors.New("credential: not authorized")

	// ErrUnknownApp means no credentials are configured for the app id.
	ErrUnknownApp = errors.New("credential: unknown app")

	// ErrMissingHash means the init data carried no hash field.
	ErrMissingHash = errors.New("credential: init data missing hash")

	// ErrBadSignature means the init data hash did not match.
	ErrBadSignature = errors.New("credential: init data signature mismatch")

	// ErrMissingAuthDate means freshness was required but auth_date absent.
	ErrMissingAuthDate = errors.New("credential: init data missing auth_date")

	// ErrStaleInitData means auth_date is older than the configured window.
	ErrStaleInitData = errors.New("credential: init data expired")
)
