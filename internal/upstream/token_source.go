package upstream

import (
	"context"
	"errors"
	"sync"
)

// ServiceTokenSource logs in with service credentials on first use and keeps
// the token until Invalidate is called. Background jobs and the CLI use it.
type ServiceTokenSource struct {
	client   *Client
	username string
	password string

	mu    sync.Mutex
	token string
}

func NewServiceTokenSource(c *Client, username, password string) *ServiceTokenSource {
	return &ServiceTokenSource{client: c, username: username, password: password}
}

func (s *ServiceTokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" {
		return s.token, nil
	}

	if s.username == "" {
		return "", errors.New("upstream service credentials are not configured")
	}

	tok, err := s.client.Login(ctx, s.username, s.password)
	if err != nil {
		return "", err
	}

	s.token = tok

	return tok, nil
}

func (s *ServiceTokenSource) Invalidate() {
	s.mu.Lock()
	s.token = ""
	s.mu.Unlock()
}

// Context returns ctx carrying a service token.
func (s *ServiceTokenSource) Context(ctx context.Context) (context.Context, error) {
	tok, err := s.Token(ctx)
	if err != nil {
		return nil, err
	}

	return ContextWithToken(ctx, tok), nil
}

// Do runs fn with a service token, logging in again once if the cached token
// was rejected.
func (s *ServiceTokenSource) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	authed, err := s.Context(ctx)
	if err != nil {
		return err
	}

	err = fn(authed)
	if !errors.Is(err, ErrUnauthorized) {
		return err
	}

	s.Invalidate()

	authed, err = s.Context(ctx)
	if err != nil {
		return err
	}

	return fn(authed)
}
