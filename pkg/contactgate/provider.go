package contactgate

import (
	"context"
	"net/url"
)

type AuthorizationRequest struct {
	// FlowName is the mounted flow the request arrived on.
	FlowName string
	// Params are the caller's original query parameters. Providers are
	// expected to round-trip them via a state token so they survive the
	// redirect hop.
	Params map[string]string
}

type AuthorizationResponse struct {
	// URL of the provider's consent screen.
	URL string
	// State embedded in URL, if any.
	State string
}

type CallbackRequest struct {
	FlowName string
	// Params are the callback request's query parameters as sent by the
	// provider (code, state, error, ...).
	Params url.Values
}

// Provider is the per-provider extension point. Failures returned from
// either method are mapped through Classify and never reach the pipeline.
type Provider interface {
	AuthorizationRedirect(ctx context.Context, req *AuthorizationRequest) (*AuthorizationResponse, error)
	FetchContacts(ctx context.Context, req *CallbackRequest) (*ContactList, error)
}
