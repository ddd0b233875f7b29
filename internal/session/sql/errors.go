package sessionsql

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/fitgearzzz/storefront-auth/internal/serviceerr"
)

// handlePgError translates driver errors into the service taxonomy. The bool
// reports whether the error was recognised.
func handlePgError(err error) (error, bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err, false
	}

	switch pgErr.Code {
	case "23505": // unique_violation
		return fmt.Errorf("%w: %w", serviceerr.ErrConflict, err), true
	default:
		return err, false
	}
}
