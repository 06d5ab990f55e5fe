package session

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"io"
	"net/http"
	"time"

	"golang.org/x/exp/errors"
)

const cookieName = "contactgate_session"

// A flow's entry/callback round trip is user-driven and fits well inside
// this window.
const idExpiry = 30 * time.Minute
const idRandom = 16

// Manager binds requests to their session scope via an HMAC-signed
// browser cookie. A request with no cookie, an expired cookie, or a
// cookie that fails verification gets a fresh session.
type Manager struct {
	store  Store
	secret []byte
}

func NewManager(store Store, secret []byte) (*Manager, error) {
	if store == nil {
		return nil, errors.New("session: store is required")
	}
	if len(secret) == 0 {
		return nil, errors.New("session: signing secret is required")
	}
	return &Manager{store: store, secret: secret}, nil
}

func (m *Manager) Open(w http.ResponseWriter, r *http.Request) *Session {
	if c, err := r.Cookie(cookieName); err == nil {
		if id, ok := m.verify(c.Value); ok {
			return &Session{id: id, store: m.store}
		}
	}
	id, value := m.issue(time.Now())
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    value,
		Secure:   true,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return &Session{id: id, store: m.store}
}

func (m *Manager) issue(now time.Time) (id, value string) {
	buf := make([]byte, 8+idRandom)
	binary.BigEndian.PutUint64(buf, uint64(now.Add(idExpiry).Unix()))
	if _, err := io.ReadFull(rand.Reader, buf[8:]); err != nil {
		// this should be unreachable
		panic(err)
	}
	h := hmac.New(sha256.New, m.secret)
	h.Write(buf)
	id = base64.RawURLEncoding.EncodeToString(buf[8:])
	value = base64.URLEncoding.EncodeToString(h.Sum(buf))
	return id, value
}

func (m *Manager) verify(value string) (string, bool) {
	msg, err := base64.URLEncoding.DecodeString(value)
	if err != nil {
		return "", false
	}
	if len(msg) != 8+idRandom+sha256.Size {
		return "", false
	}
	payload, sig := msg[:8+idRandom], msg[8+idRandom:]

	h := hmac.New(sha256.New, m.secret)
	h.Write(payload)
	if !hmac.Equal(h.Sum(nil), sig) {
		// signature mismatch
		return "", false
	}

	exp := time.Unix(int64(binary.BigEndian.Uint64(payload[:8])), 0)
	if !exp.After(time.Now()) {
		return "", false
	}
	return base64.RawURLEncoding.EncodeToString(payload[8:]), true
}
