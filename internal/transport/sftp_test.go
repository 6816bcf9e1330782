package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"sync/atomic"
	"testing"

	"github.com/pkg/sftp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// memSFTP serves an in-memory filesystem and counts sessions opened on it.
type memSFTP struct {
	handlers sftp.Handlers
	dials    atomic.Int32
	fail     error
}

func newMemSFTP() *memSFTP {
	return &memSFTP{handlers: sftp.InMemHandler()}
}

func (m *memSFTP) dial(context.Context) (*sftp.Client, io.Closer, error) {
	if m.fail != nil {
		return nil, nil, m.fail
	}
	m.dials.Add(1)

	clientConn, serverConn := net.Pipe()
	server := sftp.NewRequestServer(serverConn, m.handlers)
	go server.Serve()

	client, err := sftp.NewClientPipe(clientConn, clientConn)
	if err != nil {
		server.Close()
		return nil, nil, err
	}
	return client, server, nil
}

func newTestSFTP(t *testing.T, srv *memSFTP, dir string) *SFTP {
	t.Helper()
	tr := NewSFTP(SFTPConfig{Hostname: "mem", Username: "git", Path: dir}, zap.NewNop())
	tr.dial = srv.dial
	t.Cleanup(func() { tr.Close() })
	return tr
}

func TestSFTP(t *testing.T) {
	t.Parallel()

	srv := newMemSFTP()
	tr := newTestSFTP(t, srv, "/")

	assert.Equal(t, KindSFTP, tr.Kind())
	exerciseTransport(t, tr)
	assert.Equal(t, int32(1), srv.dials.Load(), "session is reused across operations")
}

func TestSFTPReconnectsAfterClose(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	srv := newMemSFTP()
	tr := newTestSFTP(t, srv, "/")

	_, err := tr.List(ctx)
	require.NoError(t, err)
	require.NoError(t, tr.Close())
	require.NoError(t, tr.Close())

	_, err = tr.Exists(ctx, hashABCD)
	require.NoError(t, err)
	assert.Equal(t, int32(2), srv.dials.Load())
}

func TestSFTPNoConnectionUntilUsed(t *testing.T) {
	t.Parallel()

	srv := newMemSFTP()
	tr := newTestSFTP(t, srv, "/")
	require.NoError(t, tr.Close())
	assert.Zero(t, srv.dials.Load())
}

func TestSFTPDialError(t *testing.T) {
	t.Parallel()

	srv := newMemSFTP()
	srv.fail = errors.New("connection refused")
	tr := newTestSFTP(t, srv, "/")

	_, err := tr.List(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connect to mem: connection refused")
}
