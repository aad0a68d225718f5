package wallet

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/singleflight"
)

// State tracks the session provider lifecycle.
type State int

const (
	StateUninitialized State = iota
	StateInitializing
	StateReady
	StateFailed
)

// Session is the authorized account pair for one wallet connection. The
// secondary address, when present, is the preferred signer for spend
// operations (a sub-account the wallet funds from the primary).
type Session struct {
	Primary      common.Address
	Secondary    common.Address
	HasSecondary bool
}

// Signer returns the address spend operations should be submitted from.
func (s *Session) Signer() common.Address {
	if s.HasSecondary {
		return s.Secondary
	}
	return s.Primary
}

// SessionProvider owns the single wallet session for the process. It is the
// only shared mutable resource in the relay; everything else is per-request.
type SessionProvider struct {
	provider Provider

	mu      sync.Mutex
	state   State
	session *Session

	connects singleflight.Group
}

// NewSessionProvider wraps the wallet provider. The zero session starts
// uninitialized; nothing touches the wallet until Connect or
// CurrentAccounts is called.
func NewSessionProvider(provider Provider) *SessionProvider {
	state := StateUninitialized
	if provider == nil {
		state = StateFailed
	}
	return &SessionProvider{provider: provider, state: state}
}

// Connect requests interactive authorization and installs a fresh session.
// Concurrent calls share one in-flight authorization: only a single prompt
// reaches the user and every caller receives the same session.
func (p *SessionProvider) Connect(ctx context.Context) (*Session, error) {
	p.mu.Lock()
	if p.state == StateFailed {
		p.mu.Unlock()
		return nil, fmt.Errorf("wallet provider unavailable")
	}
	p.state = StateInitializing
	p.mu.Unlock()

	v, err, _ := p.connects.Do("connect", func() (interface{}, error) {
		var accounts []string
		if err := p.provider.Request(ctx, &accounts, "eth_requestAccounts"); err != nil {
			if IsUserRejection(err) {
				return nil, fmt.Errorf("%w: %v", ErrUserRejected, err)
			}
			return nil, fmt.Errorf("request accounts: %w", err)
		}
		return sessionFromAccounts(accounts)
	})
	if err != nil {
		p.mu.Lock()
		p.state = StateUninitialized
		p.mu.Unlock()
		return nil, err
	}

	session := v.(*Session)
	p.mu.Lock()
	p.session = session
	p.state = StateReady
	p.mu.Unlock()
	return session, nil
}

// CurrentAccounts queries already-authorized accounts without prompting.
// Used for silent reconnection on startup; an empty slice is not an error.
func (p *SessionProvider) CurrentAccounts(ctx context.Context) ([]common.Address, error) {
	var accounts []string
	if err := p.provider.Request(ctx, &accounts, "eth_accounts"); err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	out := make([]common.Address, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, common.HexToAddress(a))
	}
	return out, nil
}

// Resume silently restores a session from already-authorized accounts.
// Returns nil without error when nothing is authorized.
func (p *SessionProvider) Resume(ctx context.Context) (*Session, error) {
	accounts, err := p.CurrentAccounts(ctx)
	if err != nil {
		return nil, err
	}
	if len(accounts) == 0 {
		return nil, nil
	}

	session := &Session{Primary: accounts[0]}
	if len(accounts) > 1 {
		session.Secondary = accounts[1]
		session.HasSecondary = true
	}

	p.mu.Lock()
	p.session = session
	p.state = StateReady
	p.mu.Unlock()
	return session, nil
}

// Session returns the current session, if connected.
func (p *SessionProvider) Session() (*Session, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StateReady || p.session == nil {
		return nil, false
	}
	return p.session, true
}

// Disconnect drops the session. Idempotent.
func (p *SessionProvider) Disconnect() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.session = nil
	if p.state == StateReady {
		p.state = StateUninitialized
	}
}

func sessionFromAccounts(accounts []string) (*Session, error) {
	if len(accounts) == 0 {
		return nil, ErrNoAccounts
	}
	session := &Session{Primary: common.HexToAddress(accounts[0])}
	if len(accounts) > 1 {
		session.Secondary = common.HexToAddress(accounts[1])
		session.HasSecondary = true
	}
	return session, nil
}
