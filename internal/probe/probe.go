package probe

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// dialFunc matches net.Dialer.DialContext
type dialFunc func(ctx context.Context, network, address string) (net.Conn, error)

// Options configures probe behavior
type Options struct {
	Port            int
	Precheck        bool
	PrecheckTimeout time.Duration
	QueryTimeout    time.Duration
}

// Prober attempts a database connection against a single address of one
// family, runs the two fixed diagnostic queries and returns a structured
// Result. Probe never returns an error: connectivity failure is the very
// thing being measured, so every failure is folded into the Result.
type Prober struct {
	port            int
	precheck        bool
	precheckTimeout time.Duration
	queryTimeout    time.Duration
	connector       Connector
	dial            dialFunc
	logger          *zap.Logger
}

// New creates a prober using the given connector
func New(connector Connector, opts Options, logger *zap.Logger) *Prober {
	if opts.Port == 0 {
		opts.Port = 3306
	}
	if opts.PrecheckTimeout == 0 {
		opts.PrecheckTimeout = 5 * time.Second
	}
	if opts.QueryTimeout == 0 {
		opts.QueryTimeout = 10 * time.Second
	}

	dialer := &net.Dialer{Timeout: opts.PrecheckTimeout}
	return &Prober{
		port:            opts.Port,
		precheck:        opts.Precheck,
		precheckTimeout: opts.PrecheckTimeout,
		queryTimeout:    opts.QueryTimeout,
		connector:       connector,
		dial:            dialer.DialContext,
		logger:          logger,
	}
}

// Probe tests connectivity to one address of one family
func (p *Prober) Probe(ctx context.Context, address string, family Family) Result {
	if address == "" {
		return Failed(Failure{
			Stage:   StageResolution,
			Message: fmt.Sprintf("no address for family %s", family),
		})
	}

	target := net.JoinHostPort(address, strconv.Itoa(p.port))

	if p.precheck {
		if err := p.precheckTarget(ctx, family, target); err != nil {
			p.logger.Debug("transport pre-check failed",
				zap.String("target", target),
				zap.String("family", string(family)),
				zap.Error(err))
			return Failed(classify(err, StageTransport, target))
		}
	}

	conn, err := p.connector.Connect(ctx, target, family)
	if err != nil {
		p.logger.Debug("database connect failed",
			zap.String("target", target),
			zap.String("family", string(family)),
			zap.Error(err))
		return Failed(classify(err, StageDatabase, target))
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			p.logger.Warn("failed to release probe connection",
				zap.String("target", target),
				zap.Error(cerr))
		}
	}()

	data, err := p.runDiagnostics(ctx, conn)
	if err != nil {
		return Failed(classify(err, StageDatabase, target))
	}

	return Succeeded(data)
}

// precheckTarget verifies raw TCP reachability before the database
// handshake, giving a cheaper and earlier failure signal
func (p *Prober) precheckTarget(ctx context.Context, family Family, target string) error {
	dialCtx, cancel := context.WithTimeout(ctx, p.precheckTimeout)
	defer cancel()

	conn, err := p.dial(dialCtx, family.Network(), target)
	if err != nil {
		return err
	}
	return conn.Close()
}

// runDiagnostics executes the liveness and server identity queries in
// sequence. Both must succeed.
func (p *Prober) runDiagnostics(ctx context.Context, conn Conn) (Data, error) {
	queryCtx, cancel := context.WithTimeout(ctx, p.queryTimeout)
	defer cancel()

	test, err := conn.Liveness(queryCtx)
	if err != nil {
		return Data{}, fmt.Errorf("liveness query: %w", err)
	}

	info, err := conn.ServerInfo(queryCtx)
	if err != nil {
		return Data{}, fmt.Errorf("server identity query: %w", err)
	}

	return Data{Test: test, ConnectionInfo: info}, nil
}
