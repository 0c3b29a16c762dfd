package repositories

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"net"

	"github.com/lib/pq"
	"go.mongodb.org/mongo-driver/mongo"
)

// ErrStoreUnavailable marks failures where the backing store could not be
// reached. Callers may retry.
var ErrStoreUnavailable = errors.New("store unavailable")

// IsUnavailable reports whether err is a transient connectivity failure.
func IsUnavailable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrStoreUnavailable) ||
		errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		// 08: connection exception, 57: operator intervention (shutdown, cancel).
		switch pqErr.Code.Class() {
		case "08", "57":
			return true
		}
		return false
	}

	if mongo.IsNetworkError(err) || mongo.IsTimeout(err) {
		return true
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}
