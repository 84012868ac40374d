package dbutil

import (
	"errors"
	"net"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/require"
)

func TestIsConnectivityError_DetectsNetError(t *testing.T) {
	err := &net.OpError{Op: "dial", Err: errors.New("connection refused")}
	require.True(t, IsConnectivityError(err))
}

func TestIsConnectivityError_DetectsKnownMessages(t *testing.T) {
	require.True(t, IsConnectivityError(errors.New("dial tcp: connection refused")))
	require.True(t, IsConnectivityError(errors.New("driver: bad connection")))
}

func TestIsConnectivityError_RejectsUnrelatedError(t *testing.T) {
	require.False(t, IsConnectivityError(errors.New("syntax error near SELECT")))
}

func TestIsConstraintViolation_DetectsIntegrityClass(t *testing.T) {
	err := &pq.Error{Code: "23505"}
	require.True(t, IsConstraintViolation(err))
}

func TestIsConstraintViolation_RejectsOtherClasses(t *testing.T) {
	err := &pq.Error{Code: "42601"}
	require.False(t, IsConstraintViolation(err))
}

func TestIsConstraintViolation_RejectsNonPQError(t *testing.T) {
	require.False(t, IsConstraintViolation(errors.New("plain error")))
}
