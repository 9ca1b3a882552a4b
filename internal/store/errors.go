package store

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// IsTransient reports whether a storage error is worth retrying with the same
// batch. Connection loss, serialization failures, deadlocks and resource
// exhaustion clear up on their own; everything else (constraint violations,
// corrupt rows, programming errors) will fail identically on every attempt
// and must stop the processor instead.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case strings.HasPrefix(pgErr.Code, "08"): // connection exceptions
			return true
		case pgErr.Code == "40001": // serialization failure
			return true
		case pgErr.Code == "40P01": // deadlock detected
			return true
		case strings.HasPrefix(pgErr.Code, "53"): // insufficient resources
			return true
		case pgErr.Code == "57P03": // cannot connect now (server starting up)
			return true
		default:
			return false
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return true
	}

	return errors.Is(err, context.DeadlineExceeded)
}
