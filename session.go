package cookiesession

import (
	"context"
	"encoding/json"
	"maps"
	"time"
)

// Session is the key-value data carried by one session cookie.
//
// A Session is request-scoped and not safe for concurrent use.
type Session struct {
	Values map[string]Value

	// id is the envelope ID the session was decoded from, empty for a new session.
	id        string
	issuedAt  time.Time
	expiresAt time.Time
}

func newSession() *Session {
	return &Session{Values: make(map[string]Value)}
}

// Get returns the value stored under field.
func (s *Session) Get(field string) (Value, bool) {
	v, ok := s.Values[field]
	return v, ok
}

// Set stores v under field. A zero Value is stored as JSON null.
func (s *Session) Set(field string, v Value) {
	if s.Values == nil {
		s.Values = make(map[string]Value)
	}
	if v.kind == KindInvalid {
		v = Value{kind: KindJSON, raw: json.RawMessage("null")}
	}
	s.Values[field] = v
}

func (s *Session) Has(field string) bool {
	_, ok := s.Values[field]
	return ok
}

func (s *Session) Delete(field string) {
	delete(s.Values, field)
}

func (s *Session) Len() int {
	return len(s.Values)
}

// Clear removes every field.
func (s *Session) Clear() {
	clear(s.Values)
}

// Data returns a copy of the session fields.
func (s *Session) Data() map[string]Value {
	return maps.Clone(s.Values)
}

// JSON renders the session fields as a JSON object with sorted keys.
func (s *Session) JSON() string {
	if len(s.Values) == 0 {
		return "{}"
	}
	b, err := marshalText(s.Values)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// Equal reports whether s and o hold the same fields and values.
func (s *Session) Equal(o *Session) bool {
	return maps.EqualFunc(s.Values, o.Values, Value.Equal)
}

// IsNew reports whether the session was not decoded from a valid cookie.
func (s *Session) IsNew() bool {
	return s.id == ""
}

// ID returns the envelope ID of the cookie the session was decoded from.
func (s *Session) ID() string {
	return s.id
}

// IssuedAt returns when the decoded cookie was committed.
func (s *Session) IssuedAt() time.Time {
	return s.issuedAt
}

// ExpiresAt returns when the decoded cookie expires.
func (s *Session) ExpiresAt() time.Time {
	return s.expiresAt
}

// Store records revoked session envelopes. A revoked envelope decodes to an
// empty session even though its signature is still valid.
type Store interface {
	// Revoke marks the envelope id as revoked until expiresAt.
	Revoke(ctx context.Context, id string, expiresAt time.Time) error
	// IsRevoked reports whether id has been revoked and has not yet expired.
	IsRevoked(ctx context.Context, id string) (bool, error)
	// Cleanup removes expired revocations from the store.
	Cleanup(ctx context.Context) error
	// Close closes the store.
	Close() error
}
