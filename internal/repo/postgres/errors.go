package postgres

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/urwriter/marketplace/internal/observability"
)

// ErrUnavailable marks failures where the database could not serve the
// request at all, as opposed to rejecting it.
var ErrUnavailable = errors.New("database unavailable")

func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func isInvalidInput(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "22P02"
}

// unavailable wraps connection level failures in ErrUnavailable and returns
// every other error untouched.
func unavailable(err error) error {
	if err == nil || errors.Is(err, ErrUnavailable) {
		return err
	}
	if isUnavailable(err) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return err
}

// isUnavailable classes connection failures, missing schema and query
// deadlines as an outage. A slow database is treated like a down one, so
// job reads fall back to fixtures instead of timing out.
func isUnavailable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case strings.HasPrefix(pgErr.Code, "08"): // connection exception
			return true
		case pgErr.Code == "57P01", pgErr.Code == "57P03", pgErr.Code == "53300":
			return true
		case pgErr.Code == "42P01": // schema not migrated
			return true
		}
		return false
	}

	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	return pgconn.SafeToRetry(err)
}

// observe runs fn under the DB metrics for op. Repos built without a pool
// report ErrUnavailable without calling fn.
func observe(pool *pgxpool.Pool, prom *observability.Prom, op string, fn func() error) error {
	if pool == nil {
		return ErrUnavailable
	}
	return unavailable(prom.ObserveDB(op, fn))
}
