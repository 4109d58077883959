package session

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/3cgajwdsuykk/discord-multi-manager/internal/apperr"
	"github.com/3cgajwdsuykk/discord-multi-manager/internal/config"
	"github.com/3cgajwdsuykk/discord-multi-manager/internal/gateway"
)

// Registry owns the map from account identifier to live Session. It
// is the only shared mutable state in the process: lookups are safe
// under concurrent use and mutations are serialized, so concurrent
// connect/disconnect on the same account never race.
type Registry struct {
	logger *zap.Logger
	dial   gateway.Dialer
	cfg    *config.Config

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *zap.Logger, dial gateway.Dialer, cfg *config.Config) *Registry {
	return &Registry{
		logger:   logger,
		dial:     dial,
		cfg:      cfg,
		sessions: make(map[string]*Session),
	}
}

// Register authenticates the credential and adds the resulting
// session. It fails with AlreadyExists if a live session for the same
// account is present; the caller must Remove it first to replace it.
func (r *Registry) Register(ctx context.Context, credential string) (*Session, error) {
	if credential == "" {
		return nil, apperr.New(apperr.KindValidation, "credential must not be empty")
	}

	// Authenticate outside the lock: the account identity is only
	// known after a successful connect, and a slow handshake must not
	// block lookups or other accounts.
	s, err := newSession(ctx, r.logger, r.dial, credential, r.cfg.Reconnect, r.cfg.Voice)
	if err != nil {
		return nil, err
	}

	accountID := s.AccountID()

	r.mu.Lock()
	if existing, ok := r.sessions[accountID]; ok && existing.State() != StateDisconnected {
		r.mu.Unlock()
		s.Disconnect(ctx)

		return nil, apperr.Newf(apperr.KindAlreadyExists,
			"account %s already has a live session", accountID)
	}
	r.sessions[accountID] = s
	r.mu.Unlock()

	s.setOnDefunct(func() { r.drop(accountID, s) })

	r.logger.Info("account registered", zap.String("account_id", accountID))

	return s, nil
}

// Get returns the live session for an account.
func (r *Registry) Get(accountID string) (*Session, error) {
	r.mu.RLock()
	s, ok := r.sessions[accountID]
	r.mu.RUnlock()

	if !ok || s.State() == StateDisconnected {
		return nil, apperr.Newf(apperr.KindNotFound, "no session for account %s", accountID)
	}

	return s, nil
}

// Remove disconnects and removes an account's session, tearing down
// any active voice link. Removing an unknown account succeeds:
// teardown is idempotent.
func (r *Registry) Remove(ctx context.Context, accountID string) {
	r.mu.Lock()
	s, ok := r.sessions[accountID]
	delete(r.sessions, accountID)
	r.mu.Unlock()

	if ok {
		s.Disconnect(ctx)
		r.logger.Info("account removed", zap.String("account_id", accountID))
	}
}

// ListConnected returns a snapshot of all non-disconnected sessions.
func (r *Registry) ListConnected() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		if s.State() != StateDisconnected {
			out = append(out, s)
		}
	}

	return out
}

// Close disconnects every session. Called once at process shutdown.
func (r *Registry) Close(ctx context.Context) {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	for _, s := range sessions {
		s.Disconnect(ctx)
	}

	if len(sessions) > 0 {
		r.logger.Info("registry closed", zap.Int("sessions", len(sessions)))
	}
}

// drop removes a defunct session entry if it is still the registered
// one; a newer session for the account must not be displaced.
func (r *Registry) drop(accountID string, s *Session) {
	r.mu.Lock()
	if r.sessions[accountID] == s {
		delete(r.sessions, accountID)
	}
	r.mu.Unlock()

	r.logger.Warn("defunct session dropped", zap.String("account_id", accountID))
}
