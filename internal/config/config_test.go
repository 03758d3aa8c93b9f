package config

import (
	"testing"
	"time"
)

func TestFromEnv_ParsesAndDefaults(t *testing.T) {
	t.Setenv("STATUS_ADDR", ":9090")
	t.Setenv("LOG_DIR", "./_testlogs")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("PUBLIC_API_KEYS", "pub_a, pub_b,")
	t.Setenv("ADMIN_API_KEYS", "adm_x")
	t.Setenv("PUBLIC_RPM", "111")
	t.Setenv("PUBLIC_BURST", "22")
	t.Setenv("ADMIN_RPM", "33")
	t.Setenv("ADMIN_BURST", "44")
	t.Setenv("ALERT_COOLDOWN_SECONDS", "60")
	t.Setenv("ALERT_ON_RECOVERY", "false")
	t.Setenv("UPTIME_WINDOW", "24h")
	t.Setenv("PROBE_TIMEOUT_SECONDS", "3")
	t.Setenv("TLS_INSECURE_FALLBACK", "0")

	cfg := FromEnv()

	if cfg.StatusAddr != ":9090" || cfg.LogDir != "./_testlogs" || cfg.LogLevel != "debug" {
		t.Fatalf("addr/logdir/level wrong: %+v", cfg)
	}
	if len(cfg.PublicAPIKeys) != 2 || cfg.PublicAPIKeys[1] != "pub_b" {
		t.Fatalf("public keys wrong: %+v", cfg.PublicAPIKeys)
	}
	if len(cfg.AdminAPIKeys) != 1 || cfg.AdminAPIKeys[0] != "adm_x" {
		t.Fatalf("admin keys wrong: %+v", cfg.AdminAPIKeys)
	}
	if cfg.PublicRPM != 111 || cfg.PublicBurst != 22 || cfg.AdminRPM != 33 || cfg.AdminBurst != 44 {
		t.Fatalf("rate limits wrong: %+v", cfg)
	}
	if cfg.AlertCooldown != time.Minute || cfg.AlertOnRecovery {
		t.Fatalf("alert settings wrong: %+v", cfg)
	}
	if cfg.UptimeWindow != 24*time.Hour || cfg.ProbeTimeout != 3*time.Second || cfg.TLSInsecureFallback {
		t.Fatalf("probe settings wrong: %+v", cfg)
	}
}

func TestFromEnv_RefreshMinimums(t *testing.T) {
	t.Setenv("REFRESH_SERVICES_SECONDS", "1")
	t.Setenv("REFRESH_TORRENTS_SECONDS", "0")
	t.Setenv("REFRESH_METRICS_SECONDS", "nope")

	cfg := FromEnv()
	if cfg.RefreshServices != 2*time.Second {
		t.Fatalf("services refresh = %s", cfg.RefreshServices)
	}
	if cfg.RefreshTorrents != 2*time.Second {
		t.Fatalf("torrents refresh = %s", cfg.RefreshTorrents)
	}
	if cfg.RefreshMetrics != time.Second {
		t.Fatalf("metrics refresh = %s", cfg.RefreshMetrics)
	}
}

func TestFromEnv_Defaults(t *testing.T) {
	for _, k := range []string{"LOG_DIR", "LOG_LEVEL", "PROBE_TIMEOUT_SECONDS", "UPTIME_WINDOW", "REFRESH_SERVICES_SECONDS"} {
		t.Setenv(k, "")
	}
	cfg := FromEnv()
	if cfg.LogDir != "logs" || cfg.LogLevel != "info" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.ProbeTimeout != 8*time.Second || cfg.UptimeWindow != 0 || cfg.RefreshServices != 5*time.Second {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if !cfg.TLSInsecureFallback || !cfg.TorrentsHideCompleted {
		t.Fatal("fallback and torrent filter default on")
	}
}
