// Package memory is an in-process session store for development and tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/contactgate/contactgate/pkg/session"
)

type entry struct {
	value      string
	expiryTime time.Time
}

type Store struct {
	mtx  sync.Mutex
	ttl  time.Duration
	data map[string]entry
}

func New(ttl time.Duration) *Store {
	return &Store{
		ttl:  ttl,
		data: make(map[string]entry),
	}
}

func (s *Store) Get(_ context.Context, sessionID, key string) (string, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	e, ok := s.data[sessionID+"/"+key]
	if !ok || time.Now().After(e.expiryTime) {
		return "", session.ErrNotFound
	}
	return e.value, nil
}

func (s *Store) Set(_ context.Context, sessionID, key, value string) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.data[sessionID+"/"+key] = entry{value: value, expiryTime: time.Now().Add(s.ttl)}
	return nil
}

func (s *Store) Delete(_ context.Context, sessionID, key string) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	delete(s.data, sessionID+"/"+key)
	return nil
}

// PurgeExpired drops expired entries and reports how many were removed.
func (s *Store) PurgeExpired() int {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	now := time.Now()
	removed := 0
	for k, e := range s.data {
		if now.After(e.expiryTime) {
			delete(s.data, k)
			removed++
		}
	}
	return removed
}

var _ session.Store = (*Store)(nil)
