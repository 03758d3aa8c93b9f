// Package torrent fetches and normalises the transfer list of a qBittorrent
// Web API.
package torrent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/hamed0406/homelabmon/internal/domain"
	"github.com/hamed0406/homelabmon/internal/probe"
)

// UnknownETA marks items the client reports no estimate for.
const UnknownETA = time.Duration(-1)

// qBittorrent reports "infinite" ETAs as 8640000 seconds (100 days).
const infiniteETA = 8640000

// SessionTTL is how long a login cookie is reused before logging in again.
// The server-side default session timeout is one hour.
var SessionTTL = 30 * time.Minute

type Client struct {
	BaseURL  string
	Username string
	Password string
	Timeout  time.Duration
	// HideCompleted drops finished items that are only seeding.
	HideCompleted bool

	HTTP     *http.Client
	Logger   *zap.Logger
	sessions *cache.Cache
}

func NewClient(t domain.Target, hideCompleted bool, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		BaseURL:       strings.TrimRight(t.Local, "/"),
		Username:      t.Auth.Username,
		Password:      t.Auth.Password,
		Timeout:       t.Timeout,
		HideCompleted: hideCompleted,
		HTTP:          &http.Client{},
		Logger:        logger,
		sessions:      cache.New(SessionTTL, 2*SessionTTL),
	}
}

type rawItem struct {
	Name     *string `json:"name"`
	Progress float64 `json:"progress"`
	DLSpeed  int64   `json:"dlspeed"`
	UPSpeed  int64   `json:"upspeed"`
	State    *string `json:"state"`
	ETA      *int64  `json:"eta"`
	Ratio    float64 `json:"ratio"`
}

// fetchError carries the outcome fields of a failed step.
type fetchError struct {
	category probe.ErrorCategory
	status   int
	msg      string
}

func (e *fetchError) Error() string { return e.msg }

// Fetch returns the current transfer list. On any failure it returns an
// empty list and an unreachable outcome.
func (c *Client) Fetch(ctx context.Context) ([]domain.TorrentItem, probe.Outcome) {
	start := time.Now()
	var items []domain.TorrentItem

	out := probe.Bounded(ctx, c.Timeout, func(ctx context.Context) probe.Outcome {
		got, status, err := c.fetch(ctx)
		if err != nil {
			var fe *fetchError
			if !errors.As(err, &fe) {
				return probe.Outcome{Category: probe.Categorize(err), Message: probe.Describe(err)}
			}
			return probe.Outcome{StatusCode: fe.status, Category: fe.category, Message: fe.msg}
		}
		items = got
		return probe.Outcome{Reachable: true, StatusCode: status, Message: fmt.Sprintf("%d torrents", len(got))}
	})
	out.At = time.Now()
	out.Kind = domain.KindTorrent
	out.Role = probe.Local
	out.Address = c.BaseURL
	out.Latency = time.Since(start)

	// items is only safe to read when fn returned before the deadline.
	if !out.Reachable {
		return []domain.TorrentItem{}, out
	}
	return items, out
}

func (c *Client) fetch(ctx context.Context) ([]domain.TorrentItem, int, error) {
	sid, err := c.session(ctx, false)
	if err != nil {
		return nil, 0, err
	}
	resp, err := c.list(ctx, sid)
	if err != nil {
		return nil, 0, err
	}
	if resp.StatusCode == http.StatusForbidden {
		drain(resp)
		c.Logger.Debug("torrent_session_expired", zap.String("url", c.BaseURL))
		if sid, err = c.session(ctx, true); err != nil {
			return nil, 0, err
		}
		if resp, err = c.list(ctx, sid); err != nil {
			return nil, 0, err
		}
	}
	defer drain(resp)

	if resp.StatusCode != http.StatusOK {
		return nil, resp.StatusCode, statusError("torrents/info", resp.StatusCode)
	}

	var raw []rawItem
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, resp.StatusCode, &fetchError{category: probe.CategoryProtocol, status: resp.StatusCode, msg: "decode torrents/info: " + err.Error()}
	}
	return c.normalize(raw), resp.StatusCode, nil
}

func (c *Client) list(ctx context.Context, sid string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/api/v2/torrents/info", nil)
	if err != nil {
		return nil, &fetchError{category: probe.CategoryProtocol, msg: err.Error()}
	}
	if sid != "" {
		req.AddCookie(&http.Cookie{Name: "SID", Value: sid})
	}
	return c.HTTP.Do(req)
}

// session returns a cached SID, logging in when there is none or force is set.
func (c *Client) session(ctx context.Context, force bool) (string, error) {
	key := c.BaseURL + "|" + c.Username
	if !force {
		if v, ok := c.sessions.Get(key); ok {
			return v.(string), nil
		}
	}
	c.sessions.Delete(key)

	form := url.Values{"username": {c.Username}, "password": {c.Password}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/v2/auth/login", strings.NewReader(form.Encode()))
	if err != nil {
		return "", &fetchError{category: probe.CategoryProtocol, msg: err.Error()}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	// qBittorrent rejects logins whose Referer/Origin does not match the host.
	req.Header.Set("Referer", c.BaseURL)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", err
	}
	defer drain(resp)
	if resp.StatusCode != http.StatusOK {
		return "", statusError("login", resp.StatusCode)
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<10))
	if strings.TrimSpace(string(body)) == "Fails." {
		return "", &fetchError{category: probe.CategoryProtocol, status: resp.StatusCode, msg: "login rejected"}
	}

	var sid string
	for _, ck := range resp.Cookies() {
		if ck.Name == "SID" {
			sid = ck.Value
		}
	}
	// Auth-bypassed clients (local subnet whitelist) answer without a cookie.
	c.sessions.Set(key, sid, cache.DefaultExpiration)
	return sid, nil
}

func (c *Client) normalize(raw []rawItem) []domain.TorrentItem {
	out := make([]domain.TorrentItem, 0, len(raw))
	for _, r := range raw {
		it := domain.TorrentItem{
			Name:       "Unknown",
			Progress:   clamp01(r.Progress),
			Rate:       max(r.DLSpeed, 0),
			UploadRate: max(r.UPSpeed, 0),
			State:      "unknown",
			ETA:        UnknownETA,
			Ratio:      r.Ratio,
		}
		if r.Name != nil {
			it.Name = *r.Name
		}
		if r.State != nil {
			it.State = *r.State
		}
		if r.ETA != nil && *r.ETA >= 0 && *r.ETA < infiniteETA {
			it.ETA = time.Duration(*r.ETA) * time.Second
		}
		if c.HideCompleted && Seeding(it) {
			continue
		}
		out = append(out, it)
	}
	return out
}

// Seeding reports a finished item that is only uploading.
func Seeding(it domain.TorrentItem) bool {
	return it.Progress >= 1 && (it.State == "uploading" || it.State == "stalledUP")
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

func statusError(step string, status int) *fetchError {
	cat := probe.CategoryProtocol
	if status >= 500 {
		cat = probe.CategoryServerError
	}
	return &fetchError{category: cat, status: status, msg: fmt.Sprintf("%s: HTTP %d", step, status)}
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}
