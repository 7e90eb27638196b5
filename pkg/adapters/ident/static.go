// Package ident provides identity providers for environments without an
// interactive sign-in flow.
package ident

import (
	"context"
	"fmt"
	"sync"

	"github.com/aretw0/stratum/pkg/core"
)

// Static is an identity provider backed by one pre-provisioned account.
// SignIn reports a fresh session the first time only; SignOut re-arms it.
// The zero value is a provider with no account: SignIn always fails and
// Current always reports signed out.
type Static struct {
	mu       sync.Mutex
	identity core.Identity
	signedIn bool
	everIn   bool
}

// NewStatic creates a provider for the given account.
func NewStatic(identity core.Identity) *Static {
	return &Static{identity: identity}
}

func (s *Static) SignIn(ctx context.Context) (core.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.identity.IsZero() {
		return core.Session{}, fmt.Errorf("sign in: %w", core.ErrNotConfigured)
	}
	fresh := !s.everIn
	s.signedIn = true
	s.everIn = true
	return core.Session{Identity: s.identity, Fresh: fresh}, nil
}

func (s *Static) SignOut(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.signedIn = false
	s.everIn = false
	return nil
}

func (s *Static) Current(ctx context.Context) (core.Identity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.signedIn {
		return core.Identity{}, false
	}
	return s.identity, true
}

var _ core.IdentityProvider = (*Static)(nil)
