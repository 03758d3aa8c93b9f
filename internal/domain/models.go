package domain

import (
	"fmt"
	"strings"
	"time"
)

type TargetID string

// CheckKind selects the check chain a target runs through.
type CheckKind string

const (
	KindHTTP    CheckKind = "http"
	KindTCP     CheckKind = "tcp"
	KindTorrent CheckKind = "torrent"
	KindMetrics CheckKind = "metrics"
)

func ParseCheckKind(s string) (CheckKind, error) {
	switch k := CheckKind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindHTTP, KindTCP, KindTorrent, KindMetrics:
		return k, nil
	case "":
		return KindHTTP, nil
	default:
		return "", fmt.Errorf("unknown check kind %q", s)
	}
}

// Auth carries the credentials a target's probe sends.
type Auth struct {
	APIKey   string `json:"-"`
	Token    string `json:"-"`
	Username string `json:"-"`
	Password string `json:"-"`
}

// Target is one monitored entity. Local is a URL for http and torrent
// targets, host:port for tcp, and a procfs mount point for metrics.
// Remote is only meaningful for http targets.
type Target struct {
	ID       TargetID      `json:"id"`
	Kind     CheckKind     `json:"kind"`
	Local    string        `json:"local"`
	Remote   string        `json:"remote,omitempty"`
	Path     string        `json:"path,omitempty"`
	Interval time.Duration `json:"interval"`
	Timeout  time.Duration `json:"timeout"`
	Auth     Auth          `json:"-"`
}

// HasRemote reports whether a fallback endpoint is configured.
func (t Target) HasRemote() bool {
	return t.Kind == KindHTTP && strings.TrimSpace(t.Remote) != ""
}

// LocalURL and RemoteURL join the base endpoint with the probe path.
func (t Target) LocalURL() string  { return joinPath(t.Local, t.Path) }
func (t Target) RemoteURL() string { return joinPath(t.Remote, t.Path) }

func joinPath(base, path string) string {
	if base == "" {
		return ""
	}
	base = strings.TrimRight(base, "/")
	if path == "" {
		return base
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return base + path
}

// TorrentItem is one active transfer, flattened from the torrent client listing.
type TorrentItem struct {
	Name       string        `json:"name"`
	Progress   float64       `json:"progress"` // 0..1
	Rate       int64         `json:"rate"`     // download bytes/s
	UploadRate int64         `json:"upload_rate"`
	State      string        `json:"state"`
	ETA        time.Duration `json:"eta"`
	Ratio      float64       `json:"ratio"`
}

type HostMetrics struct {
	CPUPercent float64   `json:"cpu_pct"`
	MemPercent float64   `json:"mem_pct"`
	NetRxRate  float64   `json:"net_rx_rate"` // bytes/s
	NetTxRate  float64   `json:"net_tx_rate"` // bytes/s
	SampledAt  time.Time `json:"sampled_at"`
}
