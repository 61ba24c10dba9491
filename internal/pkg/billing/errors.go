package billing

import "errors"

var (
	// ErrConfiguration means the service cannot verify anything, e.g. no
	// webhook secret is configured.
	ErrConfiguration = errors.New("billing: configuration error")
	// ErrPayloadParse means the request body is not a JSON object.
	ErrPayloadParse = errors.New("billing: payload parse error")
	// ErrAuthentication means the signature is missing, malformed or wrong.
	ErrAuthentication = errors.New("billing: authentication failed")
	// ErrPersistence wraps directory and storage failures. The provider is
	// expected to retry.
	ErrPersistence = errors.New("billing: persistence failure")
)
