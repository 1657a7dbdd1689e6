package probe

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"strconv"
	"time"

	"dsprobe/internal/resolver"

	"go.uber.org/zap"
)

// PoolSettings limits the long-lived per-family pools
type PoolSettings struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Pools owns one long-lived connection pool per address family, built once
// at startup from a single up-front resolution. Probes borrow from the
// family's pool and return the connection on release. A DNS change on the
// target is not picked up without a restart; that trade-off is the point
// of this mode.
type Pools struct {
	addrs  resolver.Addresses
	ipv4   *sql.DB
	ipv6   *sql.DB
	logger *zap.Logger
}

// NewPools builds pools for every family present in addrs. Connections are
// established lazily; the first probe per family performs the handshake.
func NewPools(target Target, addrs resolver.Addresses, port int, connectTimeout time.Duration, settings PoolSettings, logger *zap.Logger) (*Pools, error) {
	p := &Pools{
		addrs:  addrs,
		logger: logger,
	}

	open := func(address string) (*sql.DB, error) {
		hostPort := net.JoinHostPort(address, strconv.Itoa(port))
		db, err := sql.Open("mysql", formatDSN(target, hostPort, connectTimeout))
		if err != nil {
			return nil, fmt.Errorf("failed to open pool for %s: %w", hostPort, err)
		}
		db.SetMaxOpenConns(settings.MaxOpenConns)
		db.SetMaxIdleConns(settings.MaxIdleConns)
		db.SetConnMaxLifetime(settings.ConnMaxLifetime)
		logger.Debug("opened connection pool",
			zap.String("target", hostPort))
		return db, nil
	}

	var err error
	if addrs.IPv4 != "" {
		if p.ipv4, err = open(addrs.IPv4); err != nil {
			return nil, err
		}
	}
	if addrs.IPv6 != "" {
		if p.ipv6, err = open(addrs.IPv6); err != nil {
			_ = p.Close()
			return nil, err
		}
	}

	return p, nil
}

// Addresses returns the startup-time resolved addresses the pools are
// pinned to
func (p *Pools) Addresses() resolver.Addresses {
	return p.addrs
}

// Connect borrows a connection from the family's pool. The target argument
// is ignored: pools are pinned to the startup-time addresses.
func (p *Pools) Connect(ctx context.Context, _ string, family Family) (Conn, error) {
	db := p.ipv4
	if family == FamilyIPv6 {
		db = p.ipv6
	}
	if db == nil {
		return nil, fmt.Errorf("no pool for family %s", family)
	}

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	return &dbConn{db: db}, nil
}

// Close tears down both pools
func (p *Pools) Close() error {
	var errs []error
	if p.ipv4 != nil {
		if err := p.ipv4.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing ipv4 pool: %w", err))
		}
	}
	if p.ipv6 != nil {
		if err := p.ipv6.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing ipv6 pool: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("errors closing pools: %v", errs)
	}
	return nil
}
