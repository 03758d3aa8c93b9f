package probe

import (
	"context"
	"crypto/tls"
	"io"
	"net/http"
	"time"

	"github.com/hamed0406/homelabmon/internal/domain"
)

type HTTPProber struct {
	Client *http.Client
	// Insecure retries requests that failed certificate trust checks.
	// nil disables the fallback.
	Insecure *http.Client
}

func NewHTTPProber(tlsFallback bool) *HTTPProber {
	h := &HTTPProber{Client: &http.Client{}}
	if tlsFallback {
		tr := http.DefaultTransport.(*http.Transport).Clone()
		tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in fallback for self-signed home-lab certs
		h.Insecure = &http.Client{Transport: tr}
	}
	return h
}

func (h *HTTPProber) Probe(ctx context.Context, req Request) Outcome {
	start := time.Now()
	out := Bounded(ctx, req.Timeout, func(ctx context.Context) Outcome {
		out, err := h.get(ctx, h.Client, req)
		if err != nil && h.Insecure != nil && isTrustError(err) {
			retry, rerr := h.get(ctx, h.Insecure, req)
			if rerr == nil {
				retry.Message += " (tls unverified)"
			}
			return retry
		}
		return out
	})
	out.At = time.Now()
	out.Kind = domain.KindHTTP
	out.Role = req.Role
	out.Address = req.Address
	out.Latency = time.Since(start)
	return out
}

func (h *HTTPProber) get(ctx context.Context, c *http.Client, req Request) (Outcome, error) {
	r, err := http.NewRequestWithContext(ctx, http.MethodGet, req.Address, nil)
	if err != nil {
		return Outcome{Category: CategoryProtocol, Message: err.Error()}, err
	}
	for k, vs := range req.Headers {
		for _, v := range vs {
			r.Header.Add(k, v)
		}
	}

	resp, err := c.Do(r)
	if err != nil {
		return Outcome{Category: Categorize(err), Message: Describe(err)}, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	out := Outcome{StatusCode: resp.StatusCode, Message: resp.Status}
	if Reachable(resp.StatusCode) {
		out.Reachable = true
	} else {
		out.Category = CategoryServerError
	}
	return out, nil
}

// Reachable reports whether an HTTP status proves the service is answering.
// Client errors count: the process is alive even if it rejected the request.
func Reachable(status int) bool {
	return status >= 200 && status < 500
}
