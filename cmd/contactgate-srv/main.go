package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"time"

	google_datastore "cloud.google.com/go/datastore"
	"cloud.google.com/go/errorreporting"
	"contrib.go.opencensus.io/exporter/stackdriver"
	"contrib.go.opencensus.io/exporter/stackdriver/propagation"
	"github.com/contactgate/contactgate/pkg/clog"
	"github.com/contactgate/contactgate/pkg/contactgate"
	"github.com/contactgate/contactgate/pkg/flow"
	"github.com/contactgate/contactgate/pkg/provider/google"
	"github.com/contactgate/contactgate/pkg/provider/outlook"
	"github.com/contactgate/contactgate/pkg/session"
	sessionstore "github.com/contactgate/contactgate/pkg/session/datastore"
	"go.opencensus.io/plugin/ochttp"
	"go.opencensus.io/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const sessionTTL = 30 * time.Minute

func main() {
	httpPort := os.Getenv("PORT")
	if httpPort == "" {
		httpPort = "8000"
	}

	exporter, err := stackdriver.NewExporter(stackdriver.Options{
		DefaultTraceAttributes: map[string]interface{}{"build_rev": os.Getenv("BUILD_REV")},
	})
	if err != nil {
		log.Fatal(err)
	}
	trace.RegisterExporter(exporter)
	trace.ApplyConfig(trace.Config{DefaultSampler: trace.AlwaysSample()})

	ctx := context.Background()
	errClient, err := errorreporting.NewClient(ctx, os.Getenv("PROJECT_ID"), errorreporting.Config{
		ServiceName:    "contactgate-srv",
		ServiceVersion: os.Getenv("BUILD_REV"),
	})
	if err != nil {
		log.Fatalf("error initializing error reporting client: %s", err)
	}

	dsClient, err := google_datastore.NewClient(ctx, os.Getenv("PROJECT_ID"))
	if err != nil {
		log.Fatalf("error initializing datastore client: %s", err)
	}
	store := sessionstore.New(dsClient, sessionTTL)

	sessions, err := session.NewManager(store, []byte(os.Getenv("SESSION_KEY_SECRET")))
	if err != nil {
		log.Fatalf("error initializing session manager: %s", err)
	}

	httpClient, err := contactgate.Config{SSLCAFile: os.Getenv("SSL_CA_FILE")}.HTTPClient()
	if err != nil {
		log.Fatalf("error initializing outbound http client: %s", err)
	}

	baseURL := os.Getenv("BASE_URL")
	providers := map[string]contactgate.Provider{
		"google": google.New(
			os.Getenv("GOOGLE_CLIENT_ID"),
			os.Getenv("GOOGLE_CLIENT_SECRET"),
			baseURL+"/contacts/google/callback",
			httpClient,
		),
		"outlook": outlook.New(
			os.Getenv("OUTLOOK_CLIENT_ID"),
			os.Getenv("OUTLOOK_CLIENT_SECRET"),
			baseURL+"/contacts/outlook/callback",
			httpClient,
		),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/cron", func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		g := &errgroup.Group{}
		g.Go(func() error {
			deleted, err := store.DeleteExpired(ctx)
			if err != nil {
				clog.Logger.Error("error deleting expired session values", zap.Error(err))
			} else if len(deleted) > 0 {
				clog.Logger.Info("deleted expired session values", zap.Strings("session_keys", deleted))
			}
			return nil
		})
		g.Wait()
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		list := contactgate.ContactsFromContext(r.Context())
		if list == nil {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(struct {
			*contactgate.ContactList
			Params map[string]string `json:"params,omitempty"`
		}{list, contactgate.OriginParamsFromContext(r.Context())})
	})

	h, err := flow.New(flow.Config{
		Providers: providers,
		Sessions:  sessions,
		ErrClient: errClient,
		Next:      mux,
	})
	if err != nil {
		log.Fatalf("error initializing contact flow: %s", err)
	}

	log.Fatal(http.ListenAndServe(":"+httpPort, &ochttp.Handler{
		Propagation: &propagation.HTTPFormat{},
		Handler:     h,
	}))
}
