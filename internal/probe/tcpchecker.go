package probe

import (
	"context"
	"net"
	"time"

	"github.com/hamed0406/homelabmon/internal/domain"
)

// TCPProber succeeds when a connection completes; no data is exchanged.
type TCPProber struct {
	Dialer *net.Dialer
}

func NewTCPProber() *TCPProber {
	return &TCPProber{Dialer: &net.Dialer{}}
}

func (p *TCPProber) Probe(ctx context.Context, req Request) Outcome {
	start := time.Now()
	out := Bounded(ctx, req.Timeout, func(ctx context.Context) Outcome {
		conn, err := p.Dialer.DialContext(ctx, "tcp", req.Address)
		if err != nil {
			return Outcome{Category: Categorize(err), Message: Describe(err)}
		}
		_ = conn.Close()
		return Outcome{Reachable: true, Message: "connected"}
	})
	out.At = time.Now()
	out.Kind = domain.KindTCP
	out.Role = req.Role
	out.Address = req.Address
	out.Latency = time.Since(start)
	return out
}
