package probe

import (
	"context"
	"encoding/json"
	"testing"

	"dsprobe/internal/resolver"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubProber returns a canned result per family
type stubProber struct {
	results map[Family]Result
}

func (s *stubProber) Probe(_ context.Context, _ string, family Family) Result {
	return s.results[family]
}

func TestDualstackStatusTruthTable(t *testing.T) {
	success := Succeeded(Data{Test: []LivenessRow{{Test: 1}}})
	failure := Failed(Failure{Message: "connect ETIMEDOUT"})

	testCases := []struct {
		name   string
		ipv4   Result
		ipv6   Result
		status string
	}{
		{"both succeed", success, success, StatusSuccess},
		{"ipv6 fails", success, failure, StatusFailed},
		{"ipv4 fails", failure, success, StatusFailed},
		{"both fail", failure, failure, StatusFailed},
	}

	addrs := resolver.Addresses{IPv4: "10.0.0.1", IPv6: "2001:db8::1"}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p := &stubProber{results: map[Family]Result{
				FamilyIPv4: tc.ipv4,
				FamilyIPv6: tc.ipv6,
			}}

			result := Dualstack(context.Background(), p, addrs)

			assert.Equal(t, tc.status, result.Status())
			// both fields are always populated, never short-circuited
			if tc.ipv4.Success {
				assert.NotNil(t, result.IPv4.Data)
			} else {
				assert.NotNil(t, result.IPv4.Failure)
			}
			if tc.ipv6.Success {
				assert.NotNil(t, result.IPv6.Data)
			} else {
				assert.NotNil(t, result.IPv6.Failure)
			}
		})
	}
}

func TestDualstackResultShape(t *testing.T) {
	p := &stubProber{results: map[Family]Result{
		FamilyIPv4: Succeeded(Data{Test: []LivenessRow{{Test: 1}}}),
		FamilyIPv6: Failed(Failure{Message: "connect ETIMEDOUT"}),
	}}
	addrs := resolver.Addresses{IPv4: "10.0.0.1", IPv6: "2001:db8::1"}

	result := Dualstack(context.Background(), p, addrs)
	require.Equal(t, StatusFailed, result.Status())

	raw, err := json.Marshal(result)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"ipv4": {"success": true, "data": {"test": [{"test": 1}]}},
		"ipv6": {"success": false, "error": "connect ETIMEDOUT"}
	}`, string(raw))
}

// gateProber proves the probes are launched without waiting on each other:
// the ipv4 probe blocks until the ipv6 probe has started.
type gateProber struct {
	ipv6Started chan struct{}
}

func (g *gateProber) Probe(_ context.Context, _ string, family Family) Result {
	if family == FamilyIPv4 {
		<-g.ipv6Started
	} else {
		close(g.ipv6Started)
	}
	return Succeeded(Data{Test: []LivenessRow{{Test: 1}}})
}

func TestDualstackRunsConcurrently(t *testing.T) {
	p := &gateProber{ipv6Started: make(chan struct{})}
	addrs := resolver.Addresses{IPv4: "10.0.0.1", IPv6: "2001:db8::1"}

	result := Dualstack(context.Background(), p, addrs)

	assert.Equal(t, StatusSuccess, result.Status())
}
