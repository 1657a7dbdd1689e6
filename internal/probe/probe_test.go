package probe

import (
	"context"
	"errors"
	"net"
	"os"
	"syscall"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// fakeConn records how often it is released
type fakeConn struct {
	livenessErr error
	identityErr error
	closeCount  int
}

func (c *fakeConn) Liveness(_ context.Context) ([]LivenessRow, error) {
	if c.livenessErr != nil {
		return nil, c.livenessErr
	}
	return []LivenessRow{{Test: 1}}, nil
}

func (c *fakeConn) ServerInfo(_ context.Context) ([]ServerInfo, error) {
	if c.identityErr != nil {
		return nil, c.identityErr
	}
	return []ServerInfo{{Hostname: "db-1", Port: 3306, Database: "appdb"}}, nil
}

func (c *fakeConn) Close() error {
	c.closeCount++
	return nil
}

// fakeConnector hands out a fixed conn and records the targets it saw
type fakeConnector struct {
	conn       *fakeConn
	connectErr error
	targets    []string
	families   []Family
}

func (f *fakeConnector) Connect(_ context.Context, target string, family Family) (Conn, error) {
	f.targets = append(f.targets, target)
	f.families = append(f.families, family)
	if f.connectErr != nil {
		return nil, f.connectErr
	}
	return f.conn, nil
}

func newTestProber(t *testing.T, connector Connector, opts Options) *Prober {
	return New(connector, opts, zaptest.NewLogger(t))
}

func TestProbeSuccess(t *testing.T) {
	conn := &fakeConn{}
	connector := &fakeConnector{conn: conn}
	p := newTestProber(t, connector, Options{})

	result := p.Probe(context.Background(), "10.0.0.1", FamilyIPv4)

	require.True(t, result.Success)
	require.NotNil(t, result.Data)
	assert.Equal(t, []LivenessRow{{Test: 1}}, result.Data.Test)
	assert.Equal(t, []ServerInfo{{Hostname: "db-1", Port: 3306, Database: "appdb"}}, result.Data.ConnectionInfo)
	assert.Equal(t, []string{"10.0.0.1:3306"}, connector.targets)
	assert.Equal(t, 1, conn.closeCount)
}

func TestProbeBracketsIPv6Target(t *testing.T) {
	connector := &fakeConnector{conn: &fakeConn{}}
	p := newTestProber(t, connector, Options{})

	result := p.Probe(context.Background(), "2001:db8::1", FamilyIPv6)

	require.True(t, result.Success)
	assert.Equal(t, []string{"[2001:db8::1]:3306"}, connector.targets)
	assert.Equal(t, []Family{FamilyIPv6}, connector.families)
}

func TestProbeMissingAddress(t *testing.T) {
	connector := &fakeConnector{conn: &fakeConn{}}
	p := newTestProber(t, connector, Options{})

	result := p.Probe(context.Background(), "", FamilyIPv6)

	require.False(t, result.Success)
	require.NotNil(t, result.Failure)
	assert.Equal(t, StageResolution, result.Failure.Stage)
	assert.Contains(t, result.Failure.Message, "no address for family ipv6")
	assert.Empty(t, connector.targets)
}

func TestProbeConnectFailure(t *testing.T) {
	connector := &fakeConnector{
		connectErr: &mysql.MySQLError{Number: 1045, Message: "Access denied for user"},
	}
	p := newTestProber(t, connector, Options{})

	result := p.Probe(context.Background(), "10.0.0.1", FamilyIPv4)

	require.False(t, result.Success)
	require.NotNil(t, result.Failure)
	assert.Equal(t, StageDatabase, result.Failure.Stage)
	assert.Equal(t, uint16(1045), result.Failure.Code)
	assert.Contains(t, result.Failure.Message, "Access denied")
}

func TestProbeQueryFailureStillCloses(t *testing.T) {
	testCases := []struct {
		name string
		conn *fakeConn
	}{
		{"liveness query fails", &fakeConn{livenessErr: errors.New("server has gone away")}},
		{"identity query fails", &fakeConn{identityErr: errors.New("server has gone away")}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			connector := &fakeConnector{conn: tc.conn}
			p := newTestProber(t, connector, Options{})

			result := p.Probe(context.Background(), "10.0.0.1", FamilyIPv4)

			require.False(t, result.Success)
			require.NotNil(t, result.Failure)
			assert.Equal(t, StageDatabase, result.Failure.Stage)
			assert.Equal(t, 1, tc.conn.closeCount)
		})
	}
}

func TestProbeTransportFailure(t *testing.T) {
	connector := &fakeConnector{conn: &fakeConn{}}
	p := newTestProber(t, connector, Options{Precheck: true})
	p.dial = func(_ context.Context, network, address string) (net.Conn, error) {
		assert.Equal(t, "tcp4", network)
		return nil, &net.OpError{
			Op:  "dial",
			Net: network,
			Err: os.NewSyscallError("connect", syscall.ECONNREFUSED),
		}
	}

	result := p.Probe(context.Background(), "10.0.0.1", FamilyIPv4)

	require.False(t, result.Success)
	require.NotNil(t, result.Failure)
	assert.Equal(t, StageTransport, result.Failure.Stage)
	assert.Equal(t, "connect", result.Failure.Op)
	assert.Equal(t, int(syscall.ECONNREFUSED), result.Failure.Errno)
	// the database handshake must not be attempted
	assert.Empty(t, connector.targets)
}

func TestProbeTransportPrecheckPasses(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()

	conn := &fakeConn{}
	connector := &fakeConnector{conn: conn}
	p := newTestProber(t, connector, Options{Precheck: true})
	p.dial = func(_ context.Context, _, _ string) (net.Conn, error) {
		return client, nil
	}

	result := p.Probe(context.Background(), "10.0.0.1", FamilyIPv4)

	require.True(t, result.Success)
	assert.Equal(t, 1, conn.closeCount)
}
