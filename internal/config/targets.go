package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/hamed0406/homelabmon/internal/domain"
)

// TargetSpec is one target as written in the environment or targets file.
// The *_env fields name environment variables holding the secret.
type TargetSpec struct {
	ID       string `yaml:"id"`
	Kind     string `yaml:"kind"`
	Local    string `yaml:"local"`
	Remote   string `yaml:"remote"`
	Path     string `yaml:"path"`
	Port     int    `yaml:"port"`
	Interval string `yaml:"interval"`
	Timeout  string `yaml:"timeout"`

	APIKey      string `yaml:"api_key"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Token       string `yaml:"token"`
	TokenEnv    string `yaml:"token_env"`
	Username    string `yaml:"username"`
	UsernameEnv string `yaml:"username_env"`
	Password    string `yaml:"password"`
	PasswordEnv string `yaml:"password_env"`
}

type targetsFile struct {
	Targets []TargetSpec `yaml:"targets"`
}

// ConfigurationError reports a target that was excluded from scheduling.
type ConfigurationError struct {
	TargetID string
	Field    string
	Reason   string
}

func (e *ConfigurationError) Error() string {
	if e.TargetID == "" {
		return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("config: target %q: %s: %s", e.TargetID, e.Field, e.Reason)
}

// ConfigurationErrors unpacks the combined error returned by Targets.
func ConfigurationErrors(err error) []*ConfigurationError {
	var out []*ConfigurationError
	for _, e := range multierr.Errors(err) {
		var ce *ConfigurationError
		if errors.As(e, &ce) {
			out = append(out, ce)
		}
	}
	return out
}

func builtinTargets() []TargetSpec {
	return []TargetSpec{
		{
			ID: "sonarr", Kind: "http", Path: "/api/v3/system/status",
			Local:  getenv("SONARR_URL", "http://localhost:8989"),
			Remote: os.Getenv("SONARR_REMOTE_URL"),
			APIKey: os.Getenv("SONARR_API_KEY"),
		},
		{
			ID: "radarr", Kind: "http", Path: "/api/v3/system/status",
			Local:  getenv("RADARR_URL", "http://localhost:7878"),
			Remote: os.Getenv("RADARR_REMOTE_URL"),
			APIKey: os.Getenv("RADARR_API_KEY"),
		},
		{
			ID: "plex", Kind: "http", Path: "/identity",
			Local:  getenv("PLEX_URL", "http://localhost:32400"),
			Remote: os.Getenv("PLEX_REMOTE_URL"),
			Token:  os.Getenv("PLEX_TOKEN"),
		},
		{
			ID: "homeassistant", Kind: "http", Path: "/api/",
			Local:  getenv("HOMEASSISTANT_URL", "http://localhost:8123"),
			Remote: os.Getenv("HOMEASSISTANT_REMOTE_URL"),
			Token:  os.Getenv("HOMEASSISTANT_TOKEN"),
		},
		{
			ID: "prowlarr", Kind: "http", Path: "/api/v1/system/status",
			Local:  getenv("PROWLARR_URL", "http://localhost:9696"),
			Remote: os.Getenv("PROWLARR_REMOTE_URL"),
			APIKey: os.Getenv("PROWLARR_API_KEY"),
		},
		{
			ID: "ssh", Kind: "tcp",
			Local: getenv("SSH_URL", "localhost"),
			Port:  max(1, envInt("SSH_PORT", 22, 0)),
		},
		{
			ID: "qbittorrent", Kind: "torrent",
			Local:    getenv("QBITTORRENT_URL", "http://localhost:8080"),
			Username: getenv("QBITTORRENT_USERNAME", "admin"),
			Password: getenv("QBITTORRENT_PASSWORD", "adminadmin"),
		},
		{ID: "localhost", Kind: "metrics", Local: "/proc"},
	}
}

func getenv(name, def string) string {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		return v
	}
	return def
}

// LoadTargetsFile reads a YAML targets file.
func LoadTargetsFile(path string) ([]TargetSpec, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f targetsFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return f.Targets, nil
}

// Targets normalises and validates the configured targets. Malformed
// entries are left out and reported as ConfigurationErrors combined into
// the returned error; the remaining targets are always usable.
func (c Config) Targets() ([]domain.Target, error) {
	specs := c.builtin
	var errs error
	if c.TargetsFile != "" {
		fromFile, err := LoadTargetsFile(c.TargetsFile)
		if err != nil {
			errs = multierr.Append(errs, &ConfigurationError{Field: "targets_file", Reason: err.Error() + " (using built-in targets)"})
		} else {
			specs = fromFile
		}
	}

	seen := make(map[domain.TargetID]bool, len(specs))
	out := make([]domain.Target, 0, len(specs))
	for i, s := range specs {
		t, err := c.target(s)
		if err != nil {
			if err.TargetID == "" {
				err.TargetID = fmt.Sprintf("#%d", i)
			}
			errs = multierr.Append(errs, err)
			continue
		}
		if seen[t.ID] {
			errs = multierr.Append(errs, &ConfigurationError{TargetID: string(t.ID), Field: "id", Reason: "duplicate"})
			continue
		}
		seen[t.ID] = true
		out = append(out, t)
	}
	return out, errs
}

func (c Config) target(s TargetSpec) (domain.Target, *ConfigurationError) {
	id := strings.TrimSpace(s.ID)
	fail := func(field, reason string) (domain.Target, *ConfigurationError) {
		return domain.Target{}, &ConfigurationError{TargetID: id, Field: field, Reason: reason}
	}
	if id == "" {
		return fail("id", "missing")
	}
	kind, err := domain.ParseCheckKind(s.Kind)
	if err != nil {
		return fail("kind", err.Error())
	}

	t := domain.Target{
		ID:   domain.TargetID(id),
		Kind: kind,
		Path: strings.TrimSpace(s.Path),
		Auth: domain.Auth{
			APIKey:   secret(s.APIKey, s.APIKeyEnv),
			Token:    secret(s.Token, s.TokenEnv),
			Username: secret(s.Username, s.UsernameEnv),
			Password: secret(s.Password, s.PasswordEnv),
		},
	}

	if kind != domain.KindHTTP && strings.TrimSpace(s.Remote) != "" {
		return fail("remote", "only http targets have a remote endpoint")
	}

	switch kind {
	case domain.KindHTTP, domain.KindTorrent:
		local, ok := normalizeURL(s.Local)
		if !ok {
			return fail("local", fmt.Sprintf("invalid URL %q", s.Local))
		}
		t.Local = local
		if r := strings.TrimSpace(s.Remote); r != "" {
			remote, ok := normalizeURL(r)
			if !ok {
				return fail("remote", fmt.Sprintf("invalid URL %q", s.Remote))
			}
			t.Remote = remote
		}
	case domain.KindTCP:
		addr, ok := tcpAddress(s.Local, s.Port)
		if !ok {
			return fail("local", fmt.Sprintf("invalid host:port %q (port %d)", s.Local, s.Port))
		}
		t.Local = addr
	case domain.KindMetrics:
		t.Local = strings.TrimSpace(s.Local)
		if t.Local == "" {
			t.Local = "/proc"
		}
	}

	interval, err := parseDuration(s.Interval, c.defaultInterval(kind))
	if err != nil {
		return fail("interval", err.Error())
	}
	timeout, err := parseDuration(s.Timeout, c.ProbeTimeout)
	if err != nil {
		return fail("timeout", err.Error())
	}
	t.Interval, t.Timeout = interval, timeout
	return t, nil
}

func (c Config) defaultInterval(k domain.CheckKind) time.Duration {
	switch k {
	case domain.KindTorrent:
		return c.RefreshTorrents
	case domain.KindMetrics:
		return c.RefreshMetrics
	}
	return c.RefreshServices
}

func parseDuration(s string, def time.Duration) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("must be positive, got %s", s)
	}
	return d, nil
}

func secret(value, envName string) string {
	if envName != "" {
		if v := os.Getenv(envName); v != "" {
			return v
		}
	}
	return value
}

// normalizeURL adds a missing scheme and accepts only http(s) URLs with a host.
func normalizeURL(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", false
	}
	if !strings.Contains(s, "://") {
		s = "http://" + s
	}
	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return "", false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	return strings.TrimRight(u.String(), "/"), true
}

// tcpAddress accepts "host", "host:port" or a URL and returns host:port.
// An explicit port wins over one embedded in the host.
func tcpAddress(raw string, port int) (string, bool) {
	s := strings.TrimSpace(raw)
	if strings.Contains(s, "://") {
		u, err := url.Parse(s)
		if err != nil {
			return "", false
		}
		s = u.Host
	}
	host := s
	if h, p, err := net.SplitHostPort(s); err == nil {
		host = h
		if port == 0 {
			port, _ = strconv.Atoi(p)
		}
	}
	if host == "" || port < 1 || port > 65535 {
		return "", false
	}
	return net.JoinHostPort(host, strconv.Itoa(port)), true
}
