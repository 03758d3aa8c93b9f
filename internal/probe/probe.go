package probe

import (
	"context"
	"net/http"
	"time"

	"github.com/hamed0406/homelabmon/internal/domain"
)

// DefaultTimeout applies when a Request carries no timeout.
const DefaultTimeout = 8 * time.Second

// Grace is how long past its timeout a probe may run before it is abandoned.
var Grace = 500 * time.Millisecond

// Role says which endpoint of a target a probe hit.
type Role string

const (
	Local  Role = "local"
	Remote Role = "remote"
)

// ErrorCategory classifies why a probe failed. Empty means no failure.
type ErrorCategory string

const (
	CategoryNone              ErrorCategory = ""
	CategoryTimeout           ErrorCategory = "timeout"
	CategoryConnectionRefused ErrorCategory = "connection_refused"
	CategoryDNS               ErrorCategory = "dns_failure"
	CategoryProtocol          ErrorCategory = "protocol_error"
	CategoryServerError       ErrorCategory = "server_error"
	CategoryUnreachable       ErrorCategory = "unreachable"
)

// Resolution records how the fallback resolver arrived at an outcome.
type Resolution string

const (
	LocalSuccess  Resolution = "local_success"
	RemoteSuccess Resolution = "remote_success"
	BothFailed    Resolution = "both_failed"
	LocalFailed   Resolution = "local_failed" // no remote configured
)

// Outcome is the unified result of a single probe.
//
// StatusCode is the HTTP status when one was received; 0 for transport
// errors and for non-HTTP probes.
type Outcome struct {
	At         time.Time        `json:"at"`
	Kind       domain.CheckKind `json:"kind"`
	Role       Role             `json:"role"`
	Address    string           `json:"address"`
	Reachable  bool             `json:"reachable"`
	StatusCode int              `json:"status_code,omitempty"`
	Latency    time.Duration    `json:"latency"`
	Category   ErrorCategory    `json:"category,omitempty"`
	Message    string           `json:"message,omitempty"`
	Resolution Resolution       `json:"resolution,omitempty"`
}

// LatencyMS is the latency in milliseconds, as logged and displayed.
func (o Outcome) LatencyMS() float64 {
	return float64(o.Latency) / float64(time.Millisecond)
}

// Request describes one probe attempt. Address is a URL for HTTP probes and
// host:port for TCP probes.
type Request struct {
	Role    Role
	Address string
	Headers http.Header
	Timeout time.Duration
}

// Prober performs a single check. Implementations never return errors:
// every failure is reported through the Outcome.
type Prober interface {
	Probe(ctx context.Context, req Request) Outcome
}

// Bounded runs fn under a timeout and abandons it if it has not returned by
// timeout+Grace, or as soon as parent is cancelled.
func Bounded(parent context.Context, timeout time.Duration, fn func(ctx context.Context) Outcome) Outcome {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	done := make(chan Outcome, 1)
	go func() { done <- fn(ctx) }()

	guard := time.NewTimer(timeout + Grace)
	defer guard.Stop()

	select {
	case out := <-done:
		return out
	case <-guard.C:
		return Outcome{Category: CategoryTimeout, Message: "probe abandoned after " + (timeout + Grace).String()}
	case <-parent.Done():
		return Outcome{Category: CategoryTimeout, Message: "probe cancelled: " + parent.Err().Error()}
	}
}
