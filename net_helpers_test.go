package corogo

import (
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDialFirstSucceedsOnFirstAddress(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	accepted := make(chan struct{})
	go func() {
		defer close(accepted)
		c, err := ln.Accept()
		if err == nil {
			_ = c.Close()
		}
	}()

	conn, err := DialFirst("tcp", ln.Addr().String(), net.Dial)
	require.NoError(t, err)
	require.NotNil(t, conn)
	_ = conn.Close()
	<-accepted
}

func TestDialFirstReturnsLastErrorWhenAllFail(t *testing.T) {
	// 127.0.0.1:1 is a well-known unassigned low port; refused immediately.
	_, err := DialFirst("tcp", "127.0.0.1:1", net.Dial)
	require.Error(t, err)
}

func TestDialFirstBadAddrFormat(t *testing.T) {
	_, err := DialFirst("tcp", "not-a-valid-addr", net.Dial)
	require.Error(t, err)
}

func TestErrNoAddressesIsDistinct(t *testing.T) {
	require.True(t, errors.Is(errNoAddresses, errNoAddresses))
	require.False(t, errors.Is(errNoAddresses, ErrSchedulerMissing))
}
