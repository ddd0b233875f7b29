package sessionmock

import (
	"context"
	"sync"
	"time"

	"github.com/fitgearzzz/storefront-auth/internal/serviceerr"
	"github.com/fitgearzzz/storefront-auth/internal/session"
)

type RepositoryOption func(*Repository)

// Repository is an in-memory session.Repository for tests.
type Repository struct {
	mu       sync.Mutex
	states   map[string]session.State
	sessions map[string]session.Session

	loadStateErr, storeStateErr, deleteStateErr       error
	loadSessionErr, storeSessionErr, deleteSessionErr error
	listSessionsErr                                   error
}

func WithState(state session.State) RepositoryOption {
	return func(r *Repository) { r.states[state.ID] = state }
}

func WithSession(sess session.Session) RepositoryOption {
	return func(r *Repository) { r.sessions[sess.ID] = sess }
}

func WithLoadStateError(err error) RepositoryOption {
	return func(r *Repository) { r.loadStateErr = err }
}

func WithStoreStateError(err error) RepositoryOption {
	return func(r *Repository) { r.storeStateErr = err }
}

func WithDeleteStateError(err error) RepositoryOption {
	return func(r *Repository) { r.deleteStateErr = err }
}

func WithLoadSessionError(err error) RepositoryOption {
	return func(r *Repository) { r.loadSessionErr = err }
}

func WithStoreSessionError(err error) RepositoryOption {
	return func(r *Repository) { r.storeSessionErr = err }
}

func WithDeleteSessionError(err error) RepositoryOption {
	return func(r *Repository) { r.deleteSessionErr = err }
}

func WithListSessionsError(err error) RepositoryOption {
	return func(r *Repository) { r.listSessionsErr = err }
}

var _ = session.Repository(&Repository{})

func NewInMemRepository(opts ...RepositoryOption) *Repository {
	r := &Repository{
		states:   make(map[string]session.State),
		sessions: make(map[string]session.Session),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}

	return r
}

func (r *Repository) LoadState(_ context.Context, attemptID string) (session.State, error) {
	if r.loadStateErr != nil {
		return session.State{}, r.loadStateErr
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if state, ok := r.states[attemptID]; ok {
		return state, nil
	}

	return session.State{}, serviceerr.ErrNotFound
}

func (r *Repository) StoreState(_ context.Context, state session.State) error {
	if r.storeStateErr != nil {
		return r.storeStateErr
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.states[state.ID]; ok {
		return serviceerr.ErrConflict
	}
	r.states[state.ID] = state

	return nil
}

func (r *Repository) DeleteState(_ context.Context, attemptID string) error {
	if r.deleteStateErr != nil {
		return r.deleteStateErr
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.states[attemptID]; !ok {
		return serviceerr.ErrNotFound
	}
	delete(r.states, attemptID)

	return nil
}

func (r *Repository) DeleteExpiredStates(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, state := range r.states {
		if time.Now().After(state.Expiry) {
			delete(r.states, id)
		}
	}

	return nil
}

func (r *Repository) LoadSession(_ context.Context, sessionID string) (session.Session, error) {
	if r.loadSessionErr != nil {
		return session.Session{}, r.loadSessionErr
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[sessionID]; ok {
		return s, nil
	}

	return session.Session{}, serviceerr.ErrNotFound
}

func (r *Repository) StoreSession(_ context.Context, sess session.Session) error {
	if r.storeSessionErr != nil {
		return r.storeSessionErr
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions[sess.ID] = sess

	return nil
}

func (r *Repository) ListSessions(_ context.Context) ([]session.Session, error) {
	if r.listSessionsErr != nil {
		return nil, r.listSessionsErr
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	sessions := make([]session.Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}

	return sessions, nil
}

func (r *Repository) DeleteSession(_ context.Context, sess session.Session) error {
	if r.deleteSessionErr != nil {
		return r.deleteSessionErr
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[sess.ID]; !ok {
		return serviceerr.ErrNotFound
	}
	delete(r.sessions, sess.ID)

	return nil
}
