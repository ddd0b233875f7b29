// Package sessionsql stores sessions and pending login attempts in
// PostgreSQL. Unlike the valkey backend nothing expires on its own here; the
// housekeeper job sweeps stale rows.
package sessionsql

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fitgearzzz/storefront-auth/internal/serviceerr"
	"github.com/fitgearzzz/storefront-auth/internal/session"
)

type Repository struct {
	db *pgxpool.Pool
}

var _ = session.Repository(&Repository{})

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{
		db: db,
	}
}

func (r *Repository) LoadState(ctx context.Context, attemptID string) (state session.State, _ error) {
	if err := r.db.QueryRow(ctx, `SELECT id, state, verifier, fingerprint, request_uri, expiry
FROM login_attempts
WHERE id = $1;`,
		attemptID,
	).
		Scan(&state.ID, &state.State, &state.PKCEVerifier, &state.Fingerprint, &state.RequestURI, &state.Expiry); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return session.State{}, fmt.Errorf("%w: login attempt %s", serviceerr.ErrNotFound, attemptID)
		}

		return session.State{}, fmt.Errorf("selecting from login_attempts: %w", err)
	}

	return state, nil
}

func (r *Repository) StoreState(ctx context.Context, state session.State) error {
	if _, err := r.db.Exec(
		ctx, `INSERT INTO login_attempts (id, state, verifier, fingerprint, request_uri, expiry)
VALUES ($1, $2, $3, $4, $5, $6);`,
		state.ID, state.State, state.PKCEVerifier, state.Fingerprint, state.RequestURI, state.Expiry,
	); err != nil {
		if err, ok := handlePgError(err); ok {
			return err
		}

		return fmt.Errorf("inserting into login_attempts: %w", err)
	}

	return nil
}

// DeleteState reports a missing row as not-found: the row delete is the latch
// that lets exactly one callback consume an attempt.
func (r *Repository) DeleteState(ctx context.Context, attemptID string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM login_attempts WHERE id = $1;`, attemptID)
	if err != nil {
		return fmt.Errorf("deleting from login_attempts: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: login attempt %s", serviceerr.ErrNotFound, attemptID)
	}

	return nil
}

func (r *Repository) DeleteExpiredStates(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM login_attempts WHERE expiry < now();`); err != nil {
		return fmt.Errorf("deleting expired login attempts: %w", err)
	}

	return nil
}

func (r *Repository) LoadSession(ctx context.Context, sessionID string) (s session.Session, _ error) {
	if err := r.db.QueryRow(
		ctx, `SELECT id, csrf_token, fingerprint, access_token, refresh_token, id_token, expiry, last_visited
FROM sessions
WHERE id = $1;`,
		sessionID,
	).
		Scan(&s.ID, &s.CSRFToken, &s.Fingerprint, &s.AccessToken, &s.RefreshToken, &s.IDToken, &s.Expiry, &s.LastVisited); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return session.Session{}, fmt.Errorf("%w: session %s", serviceerr.ErrNotFound, sessionID)
		}

		return session.Session{}, fmt.Errorf("selecting from sessions: %w", err)
	}

	return s, nil
}

func (r *Repository) StoreSession(ctx context.Context, s session.Session) error {
	if _, err := r.db.Exec(
		ctx, `INSERT INTO sessions (id, csrf_token, fingerprint, access_token, refresh_token, id_token, expiry, last_visited)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (id)
	DO UPDATE SET (csrf_token, fingerprint, access_token, refresh_token, id_token, expiry, last_visited) =
		(EXCLUDED.csrf_token, EXCLUDED.fingerprint, EXCLUDED.access_token, EXCLUDED.refresh_token, EXCLUDED.id_token, EXCLUDED.expiry, EXCLUDED.last_visited);`,
		s.ID, s.CSRFToken, s.Fingerprint, s.AccessToken, s.RefreshToken, s.IDToken, s.Expiry, s.LastVisited,
	); err != nil {
		if err, ok := handlePgError(err); ok {
			return err
		}

		return fmt.Errorf("inserting into sessions: %w", err)
	}

	return nil
}

func (r *Repository) ListSessions(ctx context.Context) ([]session.Session, error) {
	rows, err := r.db.Query(
		ctx, `SELECT id, csrf_token, fingerprint, access_token, refresh_token, id_token, expiry, last_visited
FROM sessions;`,
	)
	if err != nil {
		return nil, fmt.Errorf("selecting from sessions: %w", err)
	}
	defer rows.Close()

	var sessions []session.Session
	for rows.Next() {
		var s session.Session
		if err := rows.Scan(&s.ID, &s.CSRFToken, &s.Fingerprint, &s.AccessToken, &s.RefreshToken, &s.IDToken, &s.Expiry, &s.LastVisited); err != nil {
			return nil, fmt.Errorf("scanning session row: %w", err)
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating session rows: %w", err)
	}

	return sessions, nil
}

func (r *Repository) DeleteSession(ctx context.Context, s session.Session) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM sessions WHERE id = $1;`, s.ID); err != nil {
		return fmt.Errorf("deleting from sessions: %w", err)
	}

	return nil
}
