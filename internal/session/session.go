package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopfront/client-go/internal/storage"
	"github.com/shopfront/client-go/pkg/auth"
	"github.com/shopfront/client-go/pkg/logger"
)

// State is the session lifecycle phase.
type State string

const (
	StateUninitialized State = "uninitialized"
	StateLoggedOut     State = "logged_out"
	StateLoggedIn      State = "logged_in"
)

// Store mirrors the bearer credentials and the identity decoded from them.
// The identity and the authenticated flag always move together: there is no
// state where one is set without the other.
type Store struct {
	mu       sync.Mutex
	state    State
	identity *auth.Identity
	access   string
	refresh  string
	restored bool

	records storage.Store
	log     *logger.Logger
}

// NewStore builds a session store backed by the given record store.
func NewStore(records storage.Store, log *logger.Logger) (*Store, error) {
	if records == nil {
		return nil, fmt.Errorf("record store required")
	}
	return &Store{state: StateUninitialized, records: records, log: log}, nil
}

// Restore reads the persisted credentials and rebuilds the session. It runs
// its storage read once; later calls observe the already-restored state. A
// stored credential that fails to decode is cleared and leaves the session
// logged out.
func (s *Store) Restore(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.restored {
		return nil
	}

	creds, err := s.records.LoadCredentials(ctx)
	if err != nil {
		return err
	}
	s.restored = true

	if creds == nil {
		s.setLoggedOutLocked()
		return nil
	}

	identity, decodeErr := auth.DecodeIdentity(creds.AccessToken)
	if decodeErr != nil {
		if s.log != nil {
			s.log.Warn(ctx, "stored access token no longer decodes, clearing session")
		}
		if err := s.records.ClearCredentials(ctx); err != nil {
			return err
		}
		s.setLoggedOutLocked()
		return nil
	}

	s.state = StateLoggedIn
	s.identity = identity
	s.access = creds.AccessToken
	s.refresh = creds.RefreshToken
	return nil
}

// Login persists the credential pair and derives the identity. A credential
// that fails to decode is treated as no session: credentials are cleared and
// the store lands in the logged-out state without an error.
func (s *Store) Login(ctx context.Context, accessToken, refreshToken string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	identity, decodeErr := auth.DecodeIdentity(accessToken)
	if decodeErr != nil {
		if s.log != nil {
			s.log.Warn(ctx, "access token failed to decode during login")
		}
		if err := s.records.ClearCredentials(ctx); err != nil {
			return err
		}
		s.setLoggedOutLocked()
		s.restored = true
		return nil
	}

	err := s.records.SaveCredentials(ctx, storage.Credentials{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	})
	if err != nil {
		return err
	}

	s.state = StateLoggedIn
	s.identity = identity
	s.access = accessToken
	s.refresh = refreshToken
	s.restored = true
	return nil
}

// Logout clears the credentials and identity. Purely local, no network call.
func (s *Store) Logout(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.records.ClearCredentials(ctx); err != nil {
		return err
	}
	s.setLoggedOutLocked()
	s.restored = true
	return nil
}

// ForceLogout is the credential-refresh-failure transition. Same effect as
// Logout, named separately so call sites read as the automatic transition.
func (s *Store) ForceLogout(ctx context.Context) error {
	return s.Logout(ctx)
}

// SetAccessToken replaces the access credential after a successful refresh,
// keeping the refresh credential. The new identity is derived from the new
// token.
func (s *Store) SetAccessToken(ctx context.Context, accessToken string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	identity, decodeErr := auth.DecodeIdentity(accessToken)
	if decodeErr != nil {
		return fmt.Errorf("refreshed access token failed to decode: %w", decodeErr)
	}

	err := s.records.SaveCredentials(ctx, storage.Credentials{
		AccessToken:  accessToken,
		RefreshToken: s.refresh,
	})
	if err != nil {
		return err
	}

	s.state = StateLoggedIn
	s.identity = identity
	s.access = accessToken
	return nil
}

func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Store) IsAuthenticated() bool {
	return s.State() == StateLoggedIn
}

// Identity returns a copy of the decoded identity, or nil when logged out.
func (s *Store) Identity() *auth.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.identity == nil {
		return nil
	}
	identity := *s.identity
	return &identity
}

// AccessToken returns the current access credential, empty when logged out.
func (s *Store) AccessToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.access
}

// RefreshToken returns the current refresh credential, empty when logged out.
func (s *Store) RefreshToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refresh
}

func (s *Store) setLoggedOutLocked() {
	s.state = StateLoggedOut
	s.identity = nil
	s.access = ""
	s.refresh = ""
}
