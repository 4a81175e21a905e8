package session

import (
	"context"
	"crypto/subtle"
	"time"

	"github.com/google/uuid"

	appErrors "github.com/unclebandit/campaign-studio/internal/errors"
	"github.com/unclebandit/campaign-studio/internal/generation"
)

// Session is the per-operator state: the gate flag and the last generation.
// It lives from the first request until logout or store expiry.
type Session struct {
	ID        string              `json:"id"`
	Verified  bool                `json:"verified"`
	Topic     string              `json:"topic,omitempty"`
	Items     []generation.Result `json:"items,omitempty"`
	Flash     string              `json:"flash,omitempty"`
	CreatedAt time.Time           `json:"created_at"`
}

func New() *Session {
	return &Session{ID: uuid.NewString(), CreatedAt: time.Now()}
}

// Renew returns a copy of the session under a fresh id, keeping the
// operator's results. Used when privileges change.
func (s *Session) Renew() *Session {
	n := New()
	n.Verified = s.Verified
	n.Topic = s.Topic
	n.Items = append([]generation.Result(nil), s.Items...)
	n.Flash = s.Flash
	return n
}

// Clear drops generation results but keeps the operator signed in.
func (s *Session) Clear() {
	s.Topic = ""
	s.Items = nil
	s.Flash = ""
}

// TakeFlash returns and resets the one-shot status message.
func (s *Session) TakeFlash() string {
	f := s.Flash
	s.Flash = ""
	return f
}

// Store persists sessions. Get returns ErrSessionNotFound for unknown or
// expired ids.
type Store interface {
	Get(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id string) error
}

// Gate compares a submitted passphrase with the configured one.
type Gate struct {
	passphrase string
}

func NewGate(passphrase string) *Gate {
	return &Gate{passphrase: passphrase}
}

// Open reports whether no passphrase is configured.
func (g *Gate) Open() bool { return g.passphrase == "" }

func (g *Gate) Verify(submitted string) error {
	if g.Open() {
		return nil
	}
	if subtle.ConstantTimeCompare([]byte(submitted), []byte(g.passphrase)) != 1 {
		return appErrors.ErrInvalidPassphrase
	}
	return nil
}
