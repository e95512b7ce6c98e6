// Package tokens defines the access-token capability consumed by the
// insights client. Token persistence and encryption live outside this core.
package tokens

import (
	"fmt"
	"sync"
)

// AccessToken is an opaque bearer credential for one ad account.
type AccessToken string

// Provider resolves the access token for an ad account.
type Provider interface {
	GetToken(accountID string) (AccessToken, error)
}

// ErrTokenNotFound is returned when no token exists for an account.
type ErrTokenNotFound struct {
	AccountID string
}

func (e *ErrTokenNotFound) Error() string {
	return fmt.Sprintf("no access token for account %s", e.AccountID)
}

// StaticProvider serves tokens from an in-memory map; used for wiring and
// tests.
type StaticProvider struct {
	mu     sync.RWMutex
	tokens map[string]AccessToken
}

// NewStaticProvider creates a provider preloaded with the given tokens.
func NewStaticProvider(tokens map[string]AccessToken) *StaticProvider {
	copied := make(map[string]AccessToken, len(tokens))
	for k, v := range tokens {
		copied[k] = v
	}
	return &StaticProvider{tokens: copied}
}

// GetToken implements Provider.
func (p *StaticProvider) GetToken(accountID string) (AccessToken, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	token, ok := p.tokens[accountID]
	if !ok || token == "" {
		return "", &ErrTokenNotFound{AccountID: accountID}
	}
	return token, nil
}

// SetToken stores or replaces the token for an account.
func (p *StaticProvider) SetToken(accountID string, token AccessToken) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tokens[accountID] = token
}
