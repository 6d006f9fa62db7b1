package session

import (
	"context"
	"errors"
	"time"

	"github.com/ovoz/admin/internal/cache"
)

var ErrNotFound = errors.New("session not found")

const keyPrefix = "session:"

// Session binds a dashboard access token (by jti) to the upstream token the
// login produced.
type Session struct {
	Username      string    `json:"username"`
	UpstreamToken string    `json:"upstreamToken"`
	ExpiresAt     time.Time `json:"expiresAt"`
}

type Store struct {
	backend cache.Store
	now     func() time.Time
}

// New keeps sessions in any cache.Store; the in-process cache for a single
// replica, Redis when several share logins.
func New(backend cache.Store) *Store {
	return &Store{backend: backend, now: time.Now}
}

func (s *Store) Save(ctx context.Context, jti string, sess Session) error {
	ttl := sess.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return errors.New("session already expired")
	}

	return cache.SetJSON(ctx, s.backend, keyPrefix+jti, sess, ttl)
}

func (s *Store) Get(ctx context.Context, jti string) (Session, error) {
	sess, ok, err := cache.GetJSON[Session](ctx, s.backend, keyPrefix+jti)
	if err != nil {
		return Session{}, err
	}
	if !ok || !sess.ExpiresAt.After(s.now()) {
		return Session{}, ErrNotFound
	}

	return sess, nil
}

func (s *Store) Delete(ctx context.Context, jti string) error {
	return s.backend.Delete(ctx, keyPrefix+jti)
}
