// Package statetoken round-trips caller query parameters through the
// OAuth state parameter as base64url-encoded JSON.
package statetoken

import (
	"encoding/base64"
	"encoding/json"

	"golang.org/x/exp/errors"
	"golang.org/x/exp/errors/fmt"
)

var ErrMalformed = errors.New("statetoken: malformed token")

type payload struct {
	QS map[string]string `json:"qs"`
}

func Encode(params map[string]string) string {
	data, err := json.Marshal(&payload{QS: params})
	if err != nil {
		// this should be unreachable
		panic(err)
	}
	return base64.URLEncoding.EncodeToString(data)
}

// Decode reverses Encode. A token that is not valid base64url or does not
// contain a JSON object fails with ErrMalformed; a valid token without a
// "qs" key decodes to an empty map.
func Decode(token string) (map[string]string, error) {
	data, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	var p payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if p.QS == nil {
		return map[string]string{}, nil
	}
	return p.QS, nil
}
