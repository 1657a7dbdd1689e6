package probe

import "encoding/json"

// Family identifies the address family a probe targets
type Family string

const (
	FamilyIPv4 Family = "ipv4"
	FamilyIPv6 Family = "ipv6"
)

// Network returns the network name used for raw transport checks
func (f Family) Network() string {
	if f == FamilyIPv6 {
		return "tcp6"
	}
	return "tcp4"
}

// Stage identifies where in the probe sequence a failure occurred
type Stage string

const (
	StageResolution Stage = "resolution"
	StageTransport  Stage = "transport"
	StageDatabase   Stage = "database"
)

// LivenessRow is one row of the liveness query
type LivenessRow struct {
	Test int `json:"test"`
}

// ServerInfo is one row of the server identity query
type ServerInfo struct {
	Hostname string `json:"hostname"`
	Port     int    `json:"port"`
	Database string `json:"database"`
}

// Data holds the rows returned by a successful probe
type Data struct {
	Test           []LivenessRow `json:"test"`
	ConnectionInfo []ServerInfo  `json:"connection_info,omitempty"`
}

// Failure describes a failed probe with machine-readable detail
// where available
type Failure struct {
	Message string `json:"error"`
	Stage   Stage  `json:"stage,omitempty"`
	Code    uint16 `json:"code,omitempty"`  // MySQL server error number
	Errno   int    `json:"errno,omitempty"` // OS-level errno
	Op      string `json:"op,omitempty"`    // failing operation or syscall
	Address string `json:"address,omitempty"`
}

// Result is the outcome of a single probe. Exactly one of Data or Failure
// is set; use Succeeded and Failed to construct values. A probe never
// surfaces its failure as an error to callers, the failure branch is data.
type Result struct {
	Success bool
	Data    *Data
	Failure *Failure
}

// Succeeded creates a success result
func Succeeded(data Data) Result {
	return Result{Success: true, Data: &data}
}

// Failed creates a failure result
func Failed(f Failure) Result {
	return Result{Success: false, Failure: &f}
}

// MarshalJSON flattens the outcome into the wire shape:
// {"success":true,"data":{...}} or {"success":false,"error":"...",...}
func (r Result) MarshalJSON() ([]byte, error) {
	if r.Success {
		return json.Marshal(struct {
			Success bool  `json:"success"`
			Data    *Data `json:"data,omitempty"`
		}{true, r.Data})
	}

	out := struct {
		Success bool `json:"success"`
		*Failure
	}{Success: false, Failure: r.Failure}
	if out.Failure == nil {
		out.Failure = &Failure{}
	}
	return json.Marshal(out)
}
