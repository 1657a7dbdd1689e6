package service

import (
	"context"
	"fmt"
	"time"

	"dsprobe/internal/config"
	"dsprobe/internal/probe"
	"dsprobe/internal/resolver"

	"go.uber.org/zap"
)

// prober is satisfied by *probe.Prober
type prober interface {
	Probe(ctx context.Context, address string, family probe.Family) probe.Result
}

// Service wires the resolver and prober behind the HTTP facade. All probe
// state is owned here and passed in by the constructor; request handlers
// never touch ambient globals.
type Service struct {
	cfg      *config.Config
	resolver resolver.Resolver
	prober   prober
	pools    *probe.Pools // nil in oneshot mode
	logger   *zap.Logger
}

// New creates the diagnostic service. In pool mode the endpoint is resolved
// once here and per-family pools are built up front; in oneshot mode every
// request re-resolves and opens a fresh connection.
func New(cfg *config.Config, logger *zap.Logger) (*Service, error) {
	s := &Service{
		cfg:      cfg,
		resolver: resolver.New(logger),
		logger:   logger,
	}

	target := probe.Target{
		Username: cfg.Database.Username,
		Password: cfg.Database.Password,
		Name:     cfg.Database.Name,
	}
	opts := probe.Options{
		Port:            cfg.Database.Port,
		Precheck:        cfg.Probe.Precheck,
		PrecheckTimeout: cfg.Probe.PrecheckTimeout,
		QueryTimeout:    cfg.Probe.QueryTimeout,
	}

	switch cfg.Probe.Mode {
	case "pool":
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		addrs, err := s.resolver.Resolve(ctx, cfg.Database.Endpoint)
		if err != nil {
			return nil, fmt.Errorf("startup resolution failed: %w", err)
		}

		pools, err := probe.NewPools(target, addrs, cfg.Database.Port,
			cfg.Probe.ConnectTimeout, probe.PoolSettings{
				MaxOpenConns:    cfg.Probe.Pool.MaxOpenConns,
				MaxIdleConns:    cfg.Probe.Pool.MaxIdleConns,
				ConnMaxLifetime: cfg.Probe.Pool.ConnMaxLifetime,
			}, logger)
		if err != nil {
			return nil, err
		}

		s.pools = pools
		s.prober = probe.New(pools, opts, logger)
		logger.Info("connection pools initialized",
			zap.String("endpoint", cfg.Database.Endpoint),
			zap.String("ipv4", addrs.IPv4),
			zap.String("ipv6", addrs.IPv6))
	default:
		connector := probe.NewOneShotConnector(target, cfg.Probe.ConnectTimeout)
		s.prober = probe.New(connector, opts, logger)
	}

	return s, nil
}

// Close releases the per-family pools, if any
func (s *Service) Close() error {
	if s.pools != nil {
		return s.pools.Close()
	}
	return nil
}

// resolveAddresses returns the probe targets for this request. Pool mode
// is pinned to the startup-time resolution; oneshot mode re-resolves.
func (s *Service) resolveAddresses(ctx context.Context) (resolver.Addresses, error) {
	if s.pools != nil {
		return s.pools.Addresses(), nil
	}
	return s.resolver.Resolve(ctx, s.cfg.Database.Endpoint)
}

// FamilyReport is the outcome of a single-family connectivity test
type FamilyReport struct {
	Timestamp time.Time
	Address   string
	Result    probe.Result
}

// TestFamily probes connectivity over one address family. A resolution
// failure is returned as an error (the facade turns it into a 500); a
// probe failure is normal diagnostic data inside the report.
func (s *Service) TestFamily(ctx context.Context, family probe.Family) (*FamilyReport, error) {
	addrs, err := s.resolveAddresses(ctx)
	if err != nil {
		return nil, err
	}

	address := addrs.IPv4
	if family == probe.FamilyIPv6 {
		address = addrs.IPv6
	}

	result := s.prober.Probe(ctx, address, family)
	s.logger.Info("connectivity test completed",
		zap.String("family", string(family)),
		zap.String("address", address),
		zap.Bool("success", result.Success))

	return &FamilyReport{
		Timestamp: time.Now().UTC(),
		Address:   address,
		Result:    result,
	}, nil
}

// DualstackReport is the outcome of a dual-stack connectivity test
type DualstackReport struct {
	Timestamp time.Time
	Addresses resolver.Addresses
	Results   probe.DualstackResult
	Status    string
}

// TestDualstack probes both families concurrently and reports both
// outcomes regardless of individual success
func (s *Service) TestDualstack(ctx context.Context) (*DualstackReport, error) {
	addrs, err := s.resolveAddresses(ctx)
	if err != nil {
		return nil, err
	}

	results := probe.Dualstack(ctx, s.prober, addrs)
	status := results.Status()
	s.logger.Info("dualstack test completed",
		zap.String("status", status),
		zap.Bool("ipv4", results.IPv4.Success),
		zap.Bool("ipv6", results.IPv6.Success))

	return &DualstackReport{
		Timestamp: time.Now().UTC(),
		Addresses: addrs,
		Results:   results,
		Status:    status,
	}, nil
}

// HealthStatus represents liveness of the diagnostic service itself
type HealthStatus struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// Health reports the service's own liveness. It depends on neither the
// resolver nor the prober: the tool being up is a separate fact from the
// target being reachable.
func (s *Service) Health() HealthStatus {
	return HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
	}
}
