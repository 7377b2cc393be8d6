package provider

import "errors"

var (
	// ErrUnknownProvider is returned for provider codes that were never
	// registered.
	ErrUnknownProvider = errors.New("provider: unknown provider")

	// ErrInvalidToken is the invalid-token signal: a provider call was
	// rejected because its access token is stale or revoked. The service
	// layer recovers from it once per call via the refresh policy.
	ErrInvalidToken = errors.New("provider: invalid access token")

	// ErrUnsupportedGrant is returned when a handshake entry point is
	// invoked on a provider whose protocol does not support it (e.g. an
	// OAuth1 request-token leg on an OAuth2 provider).
	ErrUnsupportedGrant = errors.New("provider: grant type not supported")
)
