// cmd/preflight/main.go
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/hamed0406/dynaprobe/internal/config"
	"github.com/hamed0406/dynaprobe/internal/domain"
)

func main() {
	fail := func(msg string) {
		fmt.Fprintln(os.Stderr, "✖", msg)
		os.Exit(1)
	}
	warn := func(msg string) { fmt.Fprintln(os.Stderr, "⚠", msg) }
	ok := func(msg string) { fmt.Println("✔", msg) }

	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		fail(err.Error())
	}
	if err := cfg.Validate(); err != nil {
		fail(err.Error())
	}
	ok(fmt.Sprintf("PROBE_MODE=%s target=%s region=%s", cfg.Mode, cfg.Target(), cfg.Region))

	if cfg.Endpoint != "" {
		ok("DYNAMODB_ENDPOINT=" + cfg.Endpoint)
	}

	// A loop that sleeps longer than the health window reports unhealthy
	// between every pair of probes.
	if cfg.Interval >= domain.HealthWindow {
		warn(fmt.Sprintf("TEST_INTERVAL=%s is not below the %s health window; /health will flap to 503.",
			cfg.Interval, domain.HealthWindow))
	}
	if worst := cfg.ConnectTimeout + cfg.ReadTimeout; worst+cfg.Interval >= domain.HealthWindow {
		warn(fmt.Sprintf("a hanging attempt (%s) plus TEST_INTERVAL can exceed the health window.", worst))
	}

	if raw := os.Getenv("ADMIN_API_KEYS"); strings.Contains(strings.TrimSpace(raw), " ") {
		warn("ADMIN_API_KEYS contains spaces; use comma-separated with no spaces, e.g. key1,key2")
	}
	if len(cfg.AdminAPIKeys) == 0 {
		warn("ADMIN_API_KEYS empty; /test is open to anyone who can reach the server.")
	} else {
		ok(fmt.Sprintf("ADMIN_API_KEYS: %d key(s)", len(cfg.AdminAPIKeys)))
	}

	if cfg.SlackWebhook == "" {
		warn("SLACK_WEBHOOK_URL empty; health alerts are disabled.")
	} else {
		ok("SLACK_WEBHOOK_URL present")
	}

	ok("ADDR=" + cfg.Addr)
	ok("preflight passed")
}
