// Package google imports contacts through the Google People API.
package google

import (
	"context"
	"net/http"

	"github.com/contactgate/contactgate/pkg/contactgate"
	"github.com/contactgate/contactgate/pkg/statetoken"
	"golang.org/x/exp/errors/fmt"
	"golang.org/x/oauth2"
	oauthgoogle "golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	people "google.golang.org/api/people/v1"
)

func New(clientID, clientSecret, redirectURL string, client *http.Client) contactgate.Provider {
	return &provider{
		conf: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     oauthgoogle.Endpoint,
			RedirectURL:  redirectURL,
			Scopes:       []string{people.ContactsReadonlyScope},
		},
		client: client,
	}
}

type provider struct {
	conf *oauth2.Config
	// client is the outbound client used for token exchange and contacts
	// retrieval, carrying any custom CA bundle.
	client *http.Client
}

const maxPageSize = 1000

func (p *provider) AuthorizationRedirect(_ context.Context, req *contactgate.AuthorizationRequest) (*contactgate.AuthorizationResponse, error) {
	state := statetoken.Encode(req.Params)
	return &contactgate.AuthorizationResponse{
		URL:   p.conf.AuthCodeURL(state),
		State: state,
	}, nil
}

func (p *provider) FetchContacts(ctx context.Context, req *contactgate.CallbackRequest) (*contactgate.ContactList, error) {
	if e := req.Params.Get("error"); e != "" {
		if e == "access_denied" {
			return nil, fmt.Errorf("google: user declined authorization: %w", contactgate.ErrNotAuthorized)
		}
		return nil, fmt.Errorf("google: authorization failed: %s", e)
	}
	code := req.Params.Get("code")
	if code == "" {
		return nil, fmt.Errorf("google: missing authorization code: %w", contactgate.ErrNotAuthorized)
	}

	if p.client != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, p.client)
	}
	tok, err := p.conf.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("google: error exchanging code: %w", err)
	}

	svc, err := people.NewService(ctx, option.WithHTTPClient(oauth2.NewClient(ctx, p.conf.TokenSource(ctx, tok))))
	if err != nil {
		return nil, fmt.Errorf("google: error creating people client: %w", err)
	}

	list := &contactgate.ContactList{Provider: "google"}
	call := svc.People.Connections.List("people/me").
		PersonFields("names,emailAddresses,phoneNumbers,photos").
		PageSize(maxPageSize)
	for {
		res, err := call.Context(ctx).Do()
		if err != nil {
			return nil, fmt.Errorf("google: error listing connections: %w", err)
		}
		for _, person := range res.Connections {
			list.Contacts = append(list.Contacts, exportContact(person))
		}
		if res.NextPageToken == "" {
			return list, nil
		}
		call = call.PageToken(res.NextPageToken)
	}
}

func exportContact(p *people.Person) *contactgate.Contact {
	c := &contactgate.Contact{ID: p.ResourceName}
	if len(p.Names) > 0 {
		c.Name = p.Names[0].DisplayName
	}
	if len(p.EmailAddresses) > 0 {
		c.Email = p.EmailAddresses[0].Value
	}
	if len(p.PhoneNumbers) > 0 {
		c.Phone = p.PhoneNumbers[0].Value
	}
	if len(p.Photos) > 0 {
		c.Picture = p.Photos[0].Url
	}
	return c
}
