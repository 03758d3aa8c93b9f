// cmd/preflight/main.go
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/hamed0406/homelabmon/internal/config"
	"github.com/hamed0406/homelabmon/internal/domain"
)

func main() {
	fail := func(msg string) {
		fmt.Fprintln(os.Stderr, "✖", msg)
		os.Exit(1)
	}
	warn := func(msg string) { fmt.Fprintln(os.Stderr, "⚠", msg) }
	ok := func(msg string) { fmt.Println("✔", msg) }

	cfg := config.FromEnv()

	if cfg.StatusAddr == "" {
		ok("STATUS_ADDR empty; status API disabled")
	} else {
		ok("STATUS_ADDR=" + cfg.StatusAddr)
		if len(cfg.AdminAPIKeys) == 0 {
			warn("ADMIN_API_KEYS is empty; anyone who can reach STATUS_ADDR can trigger polls.")
		}
		if len(cfg.PublicAPIKeys) == 0 && len(cfg.AdminAPIKeys) == 0 {
			warn("no API keys configured; snapshot is readable without a key.")
		}
		for name, v := range map[string]string{
			"ADMIN_API_KEYS":  os.Getenv("ADMIN_API_KEYS"),
			"PUBLIC_API_KEYS": os.Getenv("PUBLIC_API_KEYS"),
		} {
			if strings.Contains(v, " ") {
				warn(name + " contains spaces; use comma-separated with no spaces, e.g. key1,key2")
			}
		}
	}

	if cfg.SlackWebhookURL == "" {
		warn("SLACK_WEBHOOK_URL empty; state-change alerts disabled.")
	} else {
		ok("SLACK_WEBHOOK_URL present")
	}

	if cfg.TargetsFile != "" {
		ok("TARGETS_FILE=" + cfg.TargetsFile)
	}

	targets, err := cfg.Targets()
	for _, ce := range config.ConfigurationErrors(err) {
		fmt.Fprintln(os.Stderr, "✖", ce.Error())
	}
	for _, t := range targets {
		line := fmt.Sprintf("%-14s %-8s every %-4s %s", t.ID, t.Kind, t.Interval, t.Local)
		if t.HasRemote() {
			line += " (fallback " + t.Remote + ")"
		}
		ok(line)
		if missing := missingAuth(t); missing != "" {
			warn(string(t.ID) + ": " + missing + " not set; the service may answer 401 (still counted as reachable)")
		}
	}
	if len(targets) == 0 {
		fail("no schedulable targets")
	}

	ok(fmt.Sprintf("preflight passed (%d targets)", len(targets)))
}

func missingAuth(t domain.Target) string {
	switch t.ID {
	case "sonarr", "radarr", "prowlarr":
		if t.Auth.APIKey == "" {
			return strings.ToUpper(string(t.ID)) + "_API_KEY"
		}
	case "plex", "homeassistant":
		if t.Auth.Token == "" {
			return strings.ToUpper(string(t.ID)) + "_TOKEN"
		}
	}
	return ""
}
