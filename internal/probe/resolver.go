package probe

import (
	"context"
	"net/http"

	"github.com/hamed0406/homelabmon/internal/domain"
)

// Resolver applies the local-first policy to an HTTP target: the remote
// endpoint is only probed after the local one failed, never concurrently.
type Resolver struct {
	Prober Prober
}

func NewResolver(p Prober) *Resolver {
	return &Resolver{Prober: p}
}

func (r *Resolver) Resolve(ctx context.Context, t domain.Target) Outcome {
	headers := AuthHeaders(t.Auth)

	local := r.Prober.Probe(ctx, Request{Role: Local, Address: t.LocalURL(), Headers: headers, Timeout: t.Timeout})
	if local.Reachable {
		local.Resolution = LocalSuccess
		return local
	}
	if !t.HasRemote() || ctx.Err() != nil {
		local.Resolution = LocalFailed
		return local
	}

	remote := r.Prober.Probe(ctx, Request{Role: Remote, Address: t.RemoteURL(), Headers: headers, Timeout: t.Timeout})
	if remote.Reachable {
		remote.Resolution = RemoteSuccess
		return remote
	}
	remote.Resolution = BothFailed
	remote.Message = "local=" + local.Message + "; remote=" + remote.Message
	remote.Latency += local.Latency
	return remote
}

// AuthHeaders builds the request headers the home-lab services expect.
func AuthHeaders(a domain.Auth) http.Header {
	h := http.Header{}
	if a.APIKey != "" {
		h.Set("X-Api-Key", a.APIKey)
	}
	if a.Token != "" {
		h.Set("Authorization", "Bearer "+a.Token)
		h.Set("X-Plex-Token", a.Token)
	}
	return h
}
