package probe

import (
	"context"
	"sync"

	"dsprobe/internal/resolver"
)

const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// DualstackResult always carries both family outcomes, even when one or
// both probes failed
type DualstackResult struct {
	IPv4 Result `json:"ipv4"`
	IPv6 Result `json:"ipv6"`
}

// Status reports success only if both probes succeeded
func (r DualstackResult) Status() string {
	if r.IPv4.Success && r.IPv6.Success {
		return StatusSuccess
	}
	return StatusFailed
}

// prober is satisfied by *Prober
type prober interface {
	Probe(ctx context.Context, address string, family Family) Result
}

// Dualstack fires both family probes concurrently and waits for both to
// settle. The probes are independent; neither outcome nor completion order
// affects the other, and a partial failure is a normal result, not an error.
func Dualstack(ctx context.Context, p prober, addrs resolver.Addresses) DualstackResult {
	var result DualstackResult

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		result.IPv4 = p.Probe(ctx, addrs.IPv4, FamilyIPv4)
	}()
	go func() {
		defer wg.Done()
		result.IPv6 = p.Probe(ctx, addrs.IPv6, FamilyIPv6)
	}()
	wg.Wait()

	return result
}
