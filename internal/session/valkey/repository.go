// Package sessionvalkey stores sessions and pending login attempts in valkey.
// Records carry their expiry as a native TTL, so expired entries vanish
// without any sweeping.
package sessionvalkey

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/fitgearzzz/storefront-auth/internal/serviceerr"
	"github.com/fitgearzzz/storefront-auth/internal/session"
)

type ObjectType string

const (
	objectTypeSession ObjectType = "session"
	objectTypeState   ObjectType = "state"
)

var (
	ErrGetState     = errors.New("getting login attempt from store")
	ErrStoreState   = errors.New("setting login attempt into storage")
	ErrGetSession   = errors.New("getting session from store")
	ErrStoreSession = errors.New("setting session into storage")
	ErrGetSessions  = errors.New("listing sessions from store")
)

type Repository struct {
	store *store
}

var _ = session.Repository(&Repository{})

func NewRepository(valkeyClient valkey.Client, prefix string) *Repository {
	return &Repository{
		store: newStore(valkeyClient, prefix),
	}
}

func (r *Repository) LoadState(ctx context.Context, attemptID string) (session.State, error) {
	var state session.State
	if err := r.store.Get(ctx, objectTypeState, attemptID, &state); err != nil {
		return session.State{}, errors.Join(ErrGetState, err)
	}

	return state, nil
}

func (r *Repository) StoreState(ctx context.Context, state session.State) error {
	duration := time.Until(state.Expiry)
	if err := r.store.Set(ctx, objectTypeState, state.ID, state, duration); err != nil {
		return errors.Join(ErrStoreState, err)
	}

	return nil
}

// DeleteState reports a missing record as not-found: exactly one caller may
// consume a pending attempt.
func (r *Repository) DeleteState(ctx context.Context, attemptID string) error {
	existed, err := r.store.Destroy(ctx, objectTypeState, attemptID)
	if err != nil {
		return fmt.Errorf("deleting login attempt from store: %w", err)
	}
	if !existed {
		return fmt.Errorf("%w: login attempt %s", serviceerr.ErrNotFound, attemptID)
	}

	return nil
}

// DeleteExpiredStates is a no-op: attempt records expire via their TTL.
func (r *Repository) DeleteExpiredStates(_ context.Context) error {
	return nil
}

func (r *Repository) LoadSession(ctx context.Context, sessionID string) (session.Session, error) {
	var s session.Session
	if err := r.store.Get(ctx, objectTypeSession, sessionID, &s); err != nil {
		return session.Session{}, errors.Join(ErrGetSession, err)
	}

	return s, nil
}

func (r *Repository) StoreSession(ctx context.Context, s session.Session) error {
	duration := time.Until(s.Expiry)
	if err := r.store.Set(ctx, objectTypeSession, s.ID, s, duration); err != nil {
		return errors.Join(ErrStoreSession, err)
	}

	return nil
}

func (r *Repository) ListSessions(ctx context.Context) ([]session.Session, error) {
	sessions, err := getStoreObjects[session.Session](ctx, r.store, objectTypeSession)
	if err != nil {
		return nil, errors.Join(ErrGetSessions, err)
	}

	return sessions, nil
}

func (r *Repository) DeleteSession(ctx context.Context, s session.Session) error {
	if _, err := r.store.Destroy(ctx, objectTypeSession, s.ID); err != nil {
		return fmt.Errorf("deleting session from store: %w", err)
	}

	return nil
}
