// Package outlook imports contacts through the Microsoft Graph API.
package outlook

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/contactgate/contactgate/pkg/contactgate"
	"github.com/contactgate/contactgate/pkg/statetoken"
	"golang.org/x/exp/errors/fmt"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/microsoft"
)

const defaultGraphURL = "https://graph.microsoft.com/v1.0"

func New(clientID, clientSecret, redirectURL string, client *http.Client) contactgate.Provider {
	return &provider{
		conf: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     microsoft.AzureADEndpoint("common"),
			RedirectURL:  redirectURL,
			Scopes:       []string{"User.Read", "Contacts.Read"},
		},
		client:   client,
		graphURL: defaultGraphURL,
	}
}

type provider struct {
	conf     *oauth2.Config
	client   *http.Client
	graphURL string
}

func (p *provider) AuthorizationRedirect(_ context.Context, req *contactgate.AuthorizationRequest) (*contactgate.AuthorizationResponse, error) {
	state := statetoken.Encode(req.Params)
	return &contactgate.AuthorizationResponse{
		URL:   p.conf.AuthCodeURL(state),
		State: state,
	}, nil
}

type graphContact struct {
	ID             string `json:"id"`
	DisplayName    string `json:"displayName"`
	EmailAddresses []struct {
		Address string `json:"address"`
	} `json:"emailAddresses"`
	MobilePhone string `json:"mobilePhone"`
}

type graphPage struct {
	Value    []graphContact `json:"value"`
	NextLink string         `json:"@odata.nextLink"`
}

func (p *provider) FetchContacts(ctx context.Context, req *contactgate.CallbackRequest) (*contactgate.ContactList, error) {
	if e := req.Params.Get("error"); e != "" {
		if e == "access_denied" {
			return nil, fmt.Errorf("outlook: user declined authorization: %w", contactgate.ErrNotAuthorized)
		}
		return nil, fmt.Errorf("outlook: authorization failed: %s", e)
	}
	code := req.Params.Get("code")
	if code == "" {
		return nil, fmt.Errorf("outlook: missing authorization code: %w", contactgate.ErrNotAuthorized)
	}

	if p.client != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, p.client)
	}
	tok, err := p.conf.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("outlook: error exchanging code: %w", err)
	}
	client := oauth2.NewClient(ctx, p.conf.TokenSource(ctx, tok))

	list := &contactgate.ContactList{Provider: "outlook"}
	next := p.graphURL + "/me/contacts?$top=500"
	for next != "" {
		page, err := p.fetchPage(ctx, client, next)
		if err != nil {
			return nil, err
		}
		for _, gc := range page.Value {
			list.Contacts = append(list.Contacts, exportContact(gc))
		}
		next = page.NextLink
	}
	return list, nil
}

func (p *provider) fetchPage(ctx context.Context, client *http.Client, url string) (*graphPage, error) {
	req, err := http.NewRequest("GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("outlook: error building contacts request: %w", err)
	}
	res, err := client.Do(req.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("outlook: error fetching contacts: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("outlook: unexpected contacts response status: %d", res.StatusCode)
	}
	page := &graphPage{}
	if err := json.NewDecoder(res.Body).Decode(page); err != nil {
		return nil, fmt.Errorf("outlook: error decoding contacts response: %w", err)
	}
	return page, nil
}

func exportContact(gc graphContact) *contactgate.Contact {
	c := &contactgate.Contact{
		ID:    gc.ID,
		Name:  gc.DisplayName,
		Phone: gc.MobilePhone,
	}
	if len(gc.EmailAddresses) > 0 {
		c.Email = gc.EmailAddresses[0].Address
	}
	return c
}
