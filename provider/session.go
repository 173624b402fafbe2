package provider

import (
	"context"
	"fmt"
)

// Session holds the resolved provider list for one run and memoizes each
// provider's authentication result, replacing any ambient global state.
type Session struct {
	providers []TimeProvider
	authState map[string]bool
}

func NewSession(providers ...TimeProvider) *Session {
	return &Session{
		providers: providers,
		authState: make(map[string]bool),
	}
}

// Providers returns the registered providers in registration order.
func (s *Session) Providers() []TimeProvider {
	return s.providers
}

// Find returns the registered provider with the given name.
func (s *Session) Find(name string) (TimeProvider, error) {
	for _, p := range s.providers {
		if p.Name() == name {
			return p, nil
		}
	}
	return nil, fmt.Errorf("no provider named %q is registered", name)
}

// Authenticated reports whether the provider is authenticated, asking the
// backend at most once per session.
func (s *Session) Authenticated(ctx context.Context, p TimeProvider) bool {
	if state, ok := s.authState[p.Name()]; ok {
		return state
	}
	state := p.IsAuthenticated(ctx)
	s.authState[p.Name()] = state
	return state
}

// Unauthenticated returns every registered provider that is not currently
// authenticated.
func (s *Session) Unauthenticated(ctx context.Context) []TimeProvider {
	var out []TimeProvider
	for _, p := range s.providers {
		if !s.Authenticated(ctx, p) {
			out = append(out, p)
		}
	}
	return out
}

// ForgetAuth drops the memoized authentication result for a provider, e.g.
// after the operator re-entered credentials.
func (s *Session) ForgetAuth(name string) {
	delete(s.authState, name)
}
