// Package session keeps per-browser state on the server side. The browser
// only holds a signed, opaque session ID cookie; values live in a Store.
package session

import (
	"context"
	"errors"
	"maps"
	"time"
)

// ErrNotFound is returned by a Store when the session does not exist or has expired.
var ErrNotFound = errors.New("session not found")

// Store persists session values by ID.
type Store interface {
	Load(ctx context.Context, id string) (map[string]string, error)
	Save(ctx context.Context, id string, values map[string]string, ttl time.Duration) error
	Delete(ctx context.Context, id string) error
}

// Session is the state attached to a single browser. It is owned by the
// request that loaded it and must not be shared across goroutines.
type Session struct {
	id     string
	values map[string]string
	isNew  bool
	dirty  bool
}

func newSession(id string, values map[string]string, isNew bool) *Session {
	if values == nil {
		values = make(map[string]string)
	}
	return &Session{id: id, values: values, isNew: isNew}
}

// New returns an empty, unsaved session with the given ID.
func New(id string) *Session {
	return newSession(id, nil, true)
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// IsNew reports whether the session has never been persisted.
func (s *Session) IsNew() bool { return s.isNew }

// Modified reports whether the session changed since it was loaded.
func (s *Session) Modified() bool { return s.dirty }

// Get returns the value stored under key.
func (s *Session) Get(key string) (string, bool) {
	v, ok := s.values[key]
	return v, ok
}

// Set stores value under key.
func (s *Session) Set(key, value string) {
	if cur, ok := s.values[key]; ok && cur == value {
		return
	}
	s.values[key] = value
	s.dirty = true
}

// Delete removes key and reports whether it was present.
func (s *Session) Delete(key string) bool {
	if _, ok := s.values[key]; !ok {
		return false
	}
	delete(s.values, key)
	s.dirty = true
	return true
}

// Values returns a copy of all session values.
func (s *Session) Values() map[string]string {
	return maps.Clone(s.values)
}
