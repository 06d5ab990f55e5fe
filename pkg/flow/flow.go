// Package flow routes contacts-import requests through the OAuth
// authorization redirect round trip.
package flow

import (
	"net/http"
	"strings"
	"time"

	"cloud.google.com/go/errorreporting"
	"github.com/contactgate/contactgate/pkg/clog"
	"github.com/contactgate/contactgate/pkg/contactgate"
	"github.com/contactgate/contactgate/pkg/qs"
	"github.com/contactgate/contactgate/pkg/session"
	"github.com/contactgate/contactgate/pkg/statetoken"
	"go.opencensus.io/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/exp/errors"
)

const defaultMount = "/contacts"

type Config struct {
	// Mount is the path prefix flows live under, default "/contacts".
	Mount string
	// Providers maps each mounted flow name to its adapter.
	Providers map[string]contactgate.Provider
	// Sessions binds requests to their session scope. Required: entry and
	// callback transitions cannot run without session support.
	Sessions *session.Manager
	// ErrClient, when set, receives classified failures. Optional.
	ErrClient *errorreporting.Client
	// Next receives pass-through requests and successful callbacks.
	Next http.Handler
}

func New(cfg Config) (http.Handler, error) {
	if cfg.Sessions == nil {
		return nil, errors.New("flow: session manager is required")
	}
	if cfg.Next == nil {
		return nil, errors.New("flow: next handler is required")
	}
	if len(cfg.Providers) == 0 {
		return nil, errors.New("flow: at least one provider is required")
	}
	if cfg.Mount == "" {
		cfg.Mount = defaultMount
	}
	cfg.Mount = strings.TrimSuffix(cfg.Mount, "/")
	return &handler{Config: cfg}, nil
}

type handler struct {
	Config
}

type transition int

const (
	routePass transition = iota
	routeEntry
	routeCallback
)

type loggingResponseWriter struct {
	http.ResponseWriter
	status int
}

func (l *loggingResponseWriter) WriteHeader(status int) {
	l.status = status
	l.ResponseWriter.WriteHeader(status)
}

func (h *handler) ServeHTTP(rw http.ResponseWriter, req *http.Request) {
	name, tr := h.route(req.URL.Path)
	if tr == routePass {
		h.Next.ServeHTTP(rw, req)
		return
	}

	req = req.WithContext(clog.Context(req.Context()))
	ctx := req.Context()
	w := &loggingResponseWriter{ResponseWriter: rw}

	if span := trace.FromContext(ctx); span != nil {
		span.AddAttributes(trace.StringAttribute("flow_name", name))
	}

	startTime := time.Now()
	switch tr {
	case routeEntry:
		h.enter(w, req, name)
	case routeCallback:
		h.callback(w, req, name)
	}
	duration := time.Since(startTime)

	if w.status == 0 {
		w.status = 200
	}

	clog.Set(ctx,
		zap.String("request_path", req.URL.Path),
		zap.String("request_method", req.Method),
		zap.String("flow_name", name),
		zap.Int("response_status", w.status),
		zap.Duration("response_duration", duration),
	)
	if l := w.Header().Get("Location"); l != "" {
		clog.Set(ctx, zap.String("response_location", l))
	}
	clog.Log(ctx, "request")
}

func (h *handler) route(path string) (string, transition) {
	if !strings.HasPrefix(path, h.Mount+"/") {
		return "", routePass
	}
	rest := strings.TrimPrefix(path, h.Mount+"/")

	name := strings.TrimSuffix(rest, "/")
	if _, ok := h.Providers[name]; ok && !strings.Contains(name, "/") {
		return name, routeEntry
	}

	if i := strings.Index(rest, "/"); i > 0 {
		name = rest[:i]
		if _, ok := h.Providers[name]; ok && strings.HasPrefix(rest[i+1:], "callback") {
			return name, routeCallback
		}
	}
	return "", routePass
}

func sessionKey(name string) string {
	return "contactgate." + name + ".query_string"
}

func (h *handler) enter(w http.ResponseWriter, req *http.Request, name string) {
	ctx := req.Context()
	params := qs.Decode(req.URL.RawQuery)
	clog.Set(ctx, zap.Object("params", zapParamsMarshaler{params}))

	sess := h.Sessions.Open(w, req)
	if err := sess.Set(ctx, sessionKey(name), req.URL.RawQuery); err != nil {
		h.serverError(w, req, err)
		return
	}

	res, err := h.Providers[name].AuthorizationRedirect(ctx, &contactgate.AuthorizationRequest{
		FlowName: name,
		Params:   params,
	})
	if err != nil {
		h.failure(w, req, err, params)
		return
	}
	w.Header().Set("Referrer-Policy", "no-referrer")
	http.Redirect(w, req, res.URL, http.StatusFound)
}

func (h *handler) callback(w http.ResponseWriter, req *http.Request, name string) {
	ctx := req.Context()
	clog.Set(ctx, zap.Object("params", zapURLValuesMarshaler{req.URL.Query()}))

	sess := h.Sessions.Open(w, req)
	key := sessionKey(name)
	stored, err := sess.Get(ctx, key)
	if err != nil && !errors.Is(err, session.ErrNotFound) {
		h.serverError(w, req, err)
		return
	}
	if err == nil {
		// read-once: the value must not leak into unrelated flows
		if err := sess.Delete(ctx, key); err != nil {
			clog.Set(ctx, zap.NamedError("session_delete_error", err))
		}
	}

	// the provider's echoed state wins over the session-restored copy
	originParams := qs.Decode(stored)
	if st := req.URL.Query().Get("state"); st != "" {
		decoded, err := statetoken.Decode(st)
		switch {
		case err != nil:
			clog.Set(ctx, zap.NamedError("state_decode_error", err))
		case len(decoded) > 0:
			originParams = decoded
		}
	}

	list, err := h.Providers[name].FetchContacts(ctx, &contactgate.CallbackRequest{
		FlowName: name,
		Params:   req.URL.Query(),
	})
	if err != nil {
		h.failure(w, req, err, originParams)
		return
	}
	clog.Set(ctx, zap.Int("contact_count", len(list.Contacts)))

	ctx = contactgate.WithContacts(ctx, list)
	ctx = contactgate.WithOriginParams(ctx, originParams)
	h.Next.ServeHTTP(w, req.WithContext(ctx))
}

func (h *handler) failure(w http.ResponseWriter, req *http.Request, err error, originParams map[string]string) {
	fe := contactgate.Classify(err)
	clog.Set(req.Context(), zap.String("error_kind", fe.Kind))
	clog.Error(req.Context(), "flow failed", err)
	if h.ErrClient != nil {
		h.ErrClient.Report(errorreporting.Entry{
			Error: err,
			Req:   req,
		})
	}
	w.Header().Set("Location", fe.FailureURI(h.Mount+"/failure", req.URL.RawQuery, originParams))
	w.WriteHeader(http.StatusFound)
}

// serverError handles failures outside the classifier boundary, such as
// session storage I/O. These are not provider failures and never produce
// a failure redirect.
func (h *handler) serverError(w http.ResponseWriter, req *http.Request, err error) {
	clog.Error(req.Context(), "server error", err)
	if h.ErrClient != nil {
		h.ErrClient.Report(errorreporting.Entry{
			Error: err,
			Req:   req,
		})
	}
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusInternalServerError)
	w.Write([]byte("internal error"))
}

type zapParamsMarshaler struct {
	params map[string]string
}

func (m zapParamsMarshaler) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	for k, v := range m.params {
		enc.AddString(k, v)
	}
	return nil
}

type zapURLValuesMarshaler struct {
	values map[string][]string
}

func (m zapURLValuesMarshaler) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	for k, vs := range m.values {
		if len(vs) > 0 {
			enc.AddString(k, vs[0])
		}
	}
	return nil
}
