// Package session provides per-user scoped key/value storage spanning the
// gap between a flow's entry request and its callback.
package session

import (
	"context"
	"time"

	"golang.org/x/exp/errors"
)

var ErrNotFound = errors.New("session: value not found")

// Store persists string values scoped to a session ID. Implementations
// decide their own concurrency discipline; within one session the flow
// only requires last-write-wins.
type Store interface {
	Get(ctx context.Context, sessionID, key string) (string, error)
	Set(ctx context.Context, sessionID, key, value string) error
	Delete(ctx context.Context, sessionID, key string) error
}

// Value is a stored entry as exposed to administrative tooling.
type Value struct {
	Key        string
	Value      string
	CreateTime time.Time
	ExpiryTime time.Time
}

// Session is the per-request handle onto one user's scope.
type Session struct {
	id    string
	store Store
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) Get(ctx context.Context, key string) (string, error) {
	return s.store.Get(ctx, s.id, key)
}

func (s *Session) Set(ctx context.Context, key, value string) error {
	return s.store.Set(ctx, s.id, key, value)
}

func (s *Session) Delete(ctx context.Context, key string) error {
	return s.store.Delete(ctx, s.id, key)
}
