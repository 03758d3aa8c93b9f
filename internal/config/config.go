package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	LogDir   string // logs directory
	LogLevel string // debug|info|warn|error

	// StatusAddr enables the local status API when set, e.g. "127.0.0.1:8090".
	StatusAddr     string
	AllowedOrigins []string // CORS; empty allows any origin
	PublicAPIKeys  []string
	AdminAPIKeys   []string
	PublicRPM      int
	PublicBurst    int
	AdminRPM       int
	AdminBurst     int

	SlackWebhookURL string
	AlertCooldown   time.Duration
	AlertOnRecovery bool

	UptimeWindow          time.Duration // 0 = lifetime uptime
	ProbeTimeout          time.Duration
	ProbeGrace            time.Duration
	TLSInsecureFallback   bool
	TorrentsHideCompleted bool

	RefreshServices time.Duration
	RefreshTorrents time.Duration
	RefreshMetrics  time.Duration

	// TargetsFile replaces the built-in target list when set.
	TargetsFile string
	builtin     []TargetSpec
}

func FromEnv() Config {
	logDir := os.Getenv("LOG_DIR")
	if logDir == "" {
		logDir = "logs"
	}
	logLevel := strings.ToLower(strings.TrimSpace(os.Getenv("LOG_LEVEL")))
	switch logLevel {
	case "debug", "info", "warn", "error":
	default:
		logLevel = "info"
	}

	cfg := Config{
		LogDir:   logDir,
		LogLevel: logLevel,

		StatusAddr:     strings.TrimSpace(os.Getenv("STATUS_ADDR")),
		AllowedOrigins: splitList(os.Getenv("ALLOWED_ORIGINS")),
		PublicAPIKeys:  splitList(os.Getenv("PUBLIC_API_KEYS")),
		AdminAPIKeys:   splitList(os.Getenv("ADMIN_API_KEYS")),
		PublicRPM:      envInt("PUBLIC_RPM", 60, 1),
		PublicBurst:    envInt("PUBLIC_BURST", 10, 1),
		AdminRPM:       envInt("ADMIN_RPM", 30, 1),
		AdminBurst:     envInt("ADMIN_BURST", 5, 1),

		SlackWebhookURL: strings.TrimSpace(os.Getenv("SLACK_WEBHOOK_URL")),
		AlertCooldown:   time.Duration(envInt("ALERT_COOLDOWN_SECONDS", 300, 0)) * time.Second,
		AlertOnRecovery: envBool("ALERT_ON_RECOVERY", true),

		UptimeWindow:          envDuration("UPTIME_WINDOW", 0),
		ProbeTimeout:          time.Duration(envInt("PROBE_TIMEOUT_SECONDS", 8, 1)) * time.Second,
		ProbeGrace:            time.Duration(envInt("PROBE_GRACE_MS", 500, 0)) * time.Millisecond,
		TLSInsecureFallback:   envBool("TLS_INSECURE_FALLBACK", true),
		TorrentsHideCompleted: envBool("TORRENTS_HIDE_COMPLETED", true),

		RefreshServices: time.Duration(max(2, envInt("REFRESH_SERVICES_SECONDS", 5, 0))) * time.Second,
		RefreshTorrents: time.Duration(max(2, envInt("REFRESH_TORRENTS_SECONDS", 3, 0))) * time.Second,
		RefreshMetrics:  time.Duration(max(1, envInt("REFRESH_METRICS_SECONDS", 1, 0))) * time.Second,

		TargetsFile: strings.TrimSpace(os.Getenv("TARGETS_FILE")),
	}
	cfg.builtin = builtinTargets()
	return cfg
}

// envInt returns def when the variable is unset, not a number or below floor.
func envInt(name string, def, floor int) int {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < floor {
		return def
	}
	return n
}

func envBool(name string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// envDuration accepts Go durations ("24h") or plain seconds.
func envDuration(name string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil && d >= 0 {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil && n >= 0 {
		return time.Duration(n) * time.Second
	}
	return def
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
