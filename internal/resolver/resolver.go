package resolver

import (
	"context"
	"errors"
	"fmt"
	"net"

	"go.uber.org/zap"
)

// ErrNoAddresses indicates that DNS resolution produced no usable address
// in either family. A single missing family is not an error: the field is
// left empty and the prober reports a per-family failure instead.
var ErrNoAddresses = errors.New("hostname resolved to no addresses")

// Addresses holds the first resolved address of each family.
// An empty field means the family had no records.
type Addresses struct {
	IPv4 string `json:"ipv4,omitempty"`
	IPv6 string `json:"ipv6,omitempty"`
}

// Resolver resolves a hostname into per-family addresses
type Resolver interface {
	Resolve(ctx context.Context, hostname string) (Addresses, error)
}

// lookupFunc matches net.Resolver.LookupIP
type lookupFunc func(ctx context.Context, network, host string) ([]net.IP, error)

type resolver struct {
	lookup lookupFunc
	logger *zap.Logger
}

// New creates a resolver backed by the system resolver.
// Lookups are performed independently per family on every call,
// no caching or TTL handling.
func New(logger *zap.Logger) Resolver {
	return &resolver{
		lookup: net.DefaultResolver.LookupIP,
		logger: logger,
	}
}

// Resolve performs independent A and AAAA lookups and returns the first
// address of each family. It fails only when both families come up empty.
func (r *resolver) Resolve(ctx context.Context, hostname string) (Addresses, error) {
	var addrs Addresses

	v4, err4 := r.lookup(ctx, "ip4", hostname)
	if err4 != nil {
		r.logger.Debug("IPv4 lookup failed",
			zap.String("hostname", hostname),
			zap.Error(err4))
	}
	if len(v4) > 0 {
		addrs.IPv4 = v4[0].String()
	}

	v6, err6 := r.lookup(ctx, "ip6", hostname)
	if err6 != nil {
		r.logger.Debug("IPv6 lookup failed",
			zap.String("hostname", hostname),
			zap.Error(err6))
	}
	if len(v6) > 0 {
		addrs.IPv6 = v6[0].String()
	}

	if addrs.IPv4 == "" && addrs.IPv6 == "" {
		err := err4
		if err == nil {
			err = err6
		}
		if err != nil {
			return Addresses{}, fmt.Errorf("%w: %s: %v", ErrNoAddresses, hostname, err)
		}
		return Addresses{}, fmt.Errorf("%w: %s", ErrNoAddresses, hostname)
	}

	return addrs, nil
}
