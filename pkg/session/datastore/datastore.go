// Package datastore is a Cloud Datastore-backed session store.
package datastore

import (
	"context"
	"time"

	"cloud.google.com/go/datastore"
	"github.com/contactgate/contactgate/pkg/session"
	"golang.org/x/exp/errors/fmt"
)

const kindSessionValue = "SessionValue"

type sessionValue struct {
	Key        *datastore.Key `datastore:"__key__"`
	Value      string         `datastore:",noindex"`
	CreateTime time.Time
	ExpiryTime time.Time
}

type Service struct {
	db  *datastore.Client
	ttl time.Duration
}

func New(db *datastore.Client, ttl time.Duration) *Service {
	return &Service{db: db, ttl: ttl}
}

var _ session.Store = (*Service)(nil)

func valueKey(sessionID, key string) *datastore.Key {
	return datastore.NameKey(kindSessionValue, sessionID+"/"+key, nil)
}

func (s *Service) Get(ctx context.Context, sessionID, key string) (string, error) {
	res := &sessionValue{}
	if err := s.db.Get(ctx, valueKey(sessionID, key), res); err != nil {
		if err == datastore.ErrNoSuchEntity {
			return "", session.ErrNotFound
		}
		return "", fmt.Errorf("sessionstore: error fetching value %s: %w", key, err)
	}
	if time.Now().After(res.ExpiryTime) {
		return "", session.ErrNotFound
	}
	return res.Value, nil
}

func (s *Service) Set(ctx context.Context, sessionID, key, value string) error {
	now := time.Now()
	data := &sessionValue{
		Key:        valueKey(sessionID, key),
		Value:      value,
		CreateTime: now,
		ExpiryTime: now.Add(s.ttl),
	}
	if _, err := s.db.Put(ctx, data.Key, data); err != nil {
		return fmt.Errorf("sessionstore: error storing value %s: %w", key, err)
	}
	return nil
}

func (s *Service) Delete(ctx context.Context, sessionID, key string) error {
	if err := s.db.Delete(ctx, valueKey(sessionID, key)); err != nil && err != datastore.ErrNoSuchEntity {
		return fmt.Errorf("sessionstore: error deleting value %s: %w", key, err)
	}
	return nil
}

// DeleteExpired removes expired session values and returns their keys.
func (s *Service) DeleteExpired(ctx context.Context) ([]string, error) {
	var deleted []string
	q := datastore.NewQuery(kindSessionValue).Filter("ExpiryTime <", time.Now()).Limit(500).KeysOnly()
	for {
		done := len(deleted)
		keys, err := s.db.GetAll(ctx, q, nil)
		if err != nil {
			return nil, fmt.Errorf("sessionstore: error listing expired values: %w", err)
		}
		if err := s.db.DeleteMulti(ctx, keys); err != nil {
			return deleted, fmt.Errorf("sessionstore: error deleting expired values: %w", err)
		}
		for _, k := range keys {
			deleted = append(deleted, k.Name)
		}
		if len(deleted) == done {
			break
		}
	}
	return deleted, nil
}

// List returns all live session values, for the admin CLI.
func (s *Service) List(ctx context.Context) ([]*session.Value, error) {
	var values []*sessionValue
	if _, err := s.db.GetAll(ctx, datastore.NewQuery(kindSessionValue), &values); err != nil {
		return nil, fmt.Errorf("sessionstore: error listing values: %w", err)
	}
	now := time.Now()
	res := make([]*session.Value, 0, len(values))
	for _, v := range values {
		if now.After(v.ExpiryTime) {
			continue
		}
		res = append(res, v.Export())
	}
	return res, nil
}

func (v *sessionValue) Export() *session.Value {
	return &session.Value{
		Key:        v.Key.Name,
		Value:      v.Value,
		CreateTime: v.CreateTime,
		ExpiryTime: v.ExpiryTime,
	}
}
