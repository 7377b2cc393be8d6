// Package metrics exposes the service's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TokenRefreshes counts access-token refresh attempts by provider and
	// outcome ("ok" or "error").
	TokenRefreshes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "plus2flickr_token_refreshes_total",
		Help: "Access token refresh attempts, by provider and outcome.",
	}, []string{"provider", "outcome"})

	// Authorizations counts completed account authorizations by provider
	// and handshake flow ("oauth1" or "oauth2").
	Authorizations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "plus2flickr_authorizations_total",
		Help: "Completed account authorizations, by provider and flow.",
	}, []string{"provider", "flow"})

	// IdentityMerges counts identities absorbed into another identity
	// during authorization.
	IdentityMerges = promauto.NewCounter(prometheus.CounterOpts{
		Name: "plus2flickr_identity_merges_total",
		Help: "Identities absorbed into another identity during authorization.",
	})
)
