package contactgate

import (
	"crypto/tls"
	"crypto/x509"
	"io/ioutil"
	"net/http"

	"golang.org/x/exp/errors/fmt"
)

type Config struct {
	// SSLCAFile is a path to a PEM CA bundle used to verify provider TLS
	// endpoints in place of the system pool.
	SSLCAFile string
}

// HTTPClient returns the outbound client providers should use for token
// exchange and contacts retrieval.
func (c Config) HTTPClient() (*http.Client, error) {
	if c.SSLCAFile == "" {
		return http.DefaultClient, nil
	}
	pem, err := ioutil.ReadFile(c.SSLCAFile)
	if err != nil {
		return nil, fmt.Errorf("contactgate: error reading CA bundle %s: %w", c.SSLCAFile, err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("contactgate: no certificates found in CA bundle %s", c.SSLCAFile)
	}
	return &http.Client{
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{RootCAs: pool},
		},
	}, nil
}
