// Package dbutil holds small helpers shared by every Postgres-backed store
// in the medallion pipeline: classifying lib/pq errors into the transient
// vs data-integrity buckets spec §7 requires.
package dbutil

import (
	"errors"
	"net"
	"strings"

	"github.com/lib/pq"
)

// IsConnectivityError reports whether err looks like a transport-level
// failure talking to Postgres (connection refused, reset, timeout) rather
// than a query-level rejection.
func IsConnectivityError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	msg := err.Error()
	for _, needle := range []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"too many connections",
		"i/o timeout",
		"driver: bad connection",
	} {
		if strings.Contains(msg, needle) {
			return true
		}
	}
	return false
}

// IsConstraintViolation reports whether err is a Postgres constraint
// violation (unique, foreign key, check, not-null) as opposed to a
// connectivity or syntax failure.
func IsConstraintViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Class() {
		case "23": // integrity_constraint_violation
			return true
		}
	}
	return false
}
