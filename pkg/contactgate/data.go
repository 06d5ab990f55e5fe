package contactgate

import (
	"context"
	"net"

	"github.com/contactgate/contactgate/pkg/qs"
	"golang.org/x/exp/errors"
)

// ErrNotAuthorized is returned by providers when the user declined the
// consent screen or the provider rejected the authorization.
var ErrNotAuthorized = errors.New("contactgate: authorization denied")

// The closed set of error kinds that may cross the trust boundary. Only
// the kind string is ever exposed to the failure redirect target.
const (
	KindNotAuthorized = "not_authorized"
	KindTimeout       = "timeout"
	KindInternalError = "internal_error"
)

type FlowError struct {
	Kind        string
	Description string
	Err         error
}

func (e *FlowError) Error() string {
	if e.Description == "" {
		return "flow error: " + e.Kind
	}
	return e.Description
}

func (e *FlowError) Unwrap() error {
	return e.Err
}

// FailureURI builds the failure redirect target from the failing
// request's query string and the originator params. The raw state token
// never reaches the failure target, and the error kind wins any key
// collision.
func (e *FlowError) FailureURI(failurePath, currentQuery string, originParams map[string]string) string {
	params := qs.Decode(currentQuery)
	delete(params, "state")
	for k, v := range originParams {
		params[k] = v
	}
	params["error_message"] = e.Kind
	return failurePath + "?" + qs.Encode(params)
}

// Classify maps a provider failure to exactly one FlowError kind. A
// *FlowError passes through unchanged; everything else becomes
// not_authorized, timeout, or internal_error.
func Classify(err error) *FlowError {
	var fe *FlowError
	if errors.As(err, &fe) {
		return fe
	}
	if errors.Is(err, ErrNotAuthorized) {
		return &FlowError{Kind: KindNotAuthorized, Description: err.Error(), Err: err}
	}
	if isTimeout(err) {
		return &FlowError{Kind: KindTimeout, Description: err.Error(), Err: err}
	}
	return &FlowError{Kind: KindInternalError, Description: err.Error(), Err: err}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// Contact is the normalized envelope for a single imported contact. How a
// provider fills it in is the provider's concern.
type Contact struct {
	ID      string `json:"id,omitempty"`
	Name    string `json:"name,omitempty"`
	Email   string `json:"email,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Picture string `json:"profile_picture,omitempty"`
}

type ContactList struct {
	Provider string     `json:"provider"`
	Contacts []*Contact `json:"contacts"`
}

type ctxKeyContacts struct{}
type ctxKeyOriginParams struct{}

func WithContacts(parent context.Context, list *ContactList) context.Context {
	return context.WithValue(parent, ctxKeyContacts{}, list)
}

func ContactsFromContext(ctx context.Context) *ContactList {
	list, _ := ctx.Value(ctxKeyContacts{}).(*ContactList)
	return list
}

func WithOriginParams(parent context.Context, params map[string]string) context.Context {
	return context.WithValue(parent, ctxKeyOriginParams{}, params)
}

func OriginParamsFromContext(ctx context.Context) map[string]string {
	params, _ := ctx.Value(ctxKeyOriginParams{}).(map[string]string)
	return params
}
