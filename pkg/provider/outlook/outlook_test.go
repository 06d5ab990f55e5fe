package outlook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/contactgate/contactgate/pkg/contactgate"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/errors"
	"golang.org/x/oauth2"
)

func TestAuthorizationRedirect(t *testing.T) {
	p := New("client1", "clientSecret", "https://localhost:8080/contacts/outlook/callback", nil)
	res, err := p.AuthorizationRedirect(context.Background(), &contactgate.AuthorizationRequest{
		FlowName: "outlook",
		Params:   map[string]string{"a": "1"},
	})
	require.NoError(t, err)

	u, err := url.Parse(res.URL)
	require.NoError(t, err)
	require.Equal(t, res.State, u.Query().Get("state"))
	require.Equal(t, "client1", u.Query().Get("client_id"))
}

func TestFetchContactsDenied(t *testing.T) {
	p := New("client1", "clientSecret", "https://localhost:8080", nil)

	_, err := p.FetchContacts(context.Background(), &contactgate.CallbackRequest{
		FlowName: "outlook",
		Params:   url.Values{"error": {"access_denied"}},
	})
	require.True(t, errors.Is(err, contactgate.ErrNotAuthorized))

	_, err = p.FetchContacts(context.Background(), &contactgate.CallbackRequest{
		FlowName: "outlook",
		Params:   url.Values{},
	})
	require.True(t, errors.Is(err, contactgate.ErrNotAuthorized))
}

func TestFetchContacts(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		require.Equal(t, "code1", r.Form.Get("code"))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "token1",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	})
	mux.HandleFunc("/me/contacts", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer token1", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("page") == "2" {
			json.NewEncoder(w).Encode(graphPage{
				Value: []graphContact{{ID: "c2", DisplayName: "Grace Hopper"}},
			})
			return
		}
		json.NewEncoder(w).Encode(graphPage{
			Value: []graphContact{{
				ID:          "c1",
				DisplayName: "Ada Lovelace",
				MobilePhone: "+44 20 7946 0000",
				EmailAddresses: []struct {
					Address string `json:"address"`
				}{{Address: "ada@example.com"}},
			}},
			NextLink: srv.URL + "/me/contacts?page=2",
		})
	})

	p := &provider{
		conf: &oauth2.Config{
			ClientID:     "client1",
			ClientSecret: "clientSecret",
			Endpoint: oauth2.Endpoint{
				AuthURL:  srv.URL + "/authorize",
				TokenURL: srv.URL + "/token",
			},
			RedirectURL: "https://localhost:8080",
		},
		graphURL: srv.URL,
	}

	list, err := p.FetchContacts(context.Background(), &contactgate.CallbackRequest{
		FlowName: "outlook",
		Params:   url.Values{"code": {"code1"}},
	})
	require.NoError(t, err)
	require.Equal(t, "outlook", list.Provider)
	require.Equal(t, []*contactgate.Contact{
		{ID: "c1", Name: "Ada Lovelace", Email: "ada@example.com", Phone: "+44 20 7946 0000"},
		{ID: "c2", Name: "Grace Hopper"},
	}, list.Contacts)
}

func TestFetchContactsGraphError(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "token1",
			"token_type":   "Bearer",
		})
	})
	mux.HandleFunc("/me/contacts", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	})

	p := &provider{
		conf: &oauth2.Config{
			ClientID: "client1",
			Endpoint: oauth2.Endpoint{
				AuthURL:  srv.URL + "/authorize",
				TokenURL: srv.URL + "/token",
			},
		},
		graphURL: srv.URL,
	}

	_, err := p.FetchContacts(context.Background(), &contactgate.CallbackRequest{
		FlowName: "outlook",
		Params:   url.Values{"code": {"code1"}},
	})
	require.Error(t, err)
	require.False(t, errors.Is(err, contactgate.ErrNotAuthorized))
}
