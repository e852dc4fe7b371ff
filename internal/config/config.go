package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Probe modes, mirrored from the probe package to keep config dependency-free.
const (
	ModeScan       = "scan"
	ModeListTables = "list-tables"
)

type Config struct {
	Addr     string // status server bind address, e.g. ":80"
	LogDir   string // empty: stdout only
	LogLevel string

	Mode           string // scan | list-tables
	TableName      string
	Region         string
	Endpoint       string // DynamoDB endpoint override, e.g. http://localhost:8000
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	Interval       time.Duration // sleep between probes

	AdminAPIKeys []string // protect /test; empty leaves it open
	TestRPM      int      // per-IP requests per minute on /test; 0 disables
	TestBurst    int
	TrustProxy   bool // key the /test limit on X-Forwarded-For

	SlackWebhook    string
	AlertCooldown   time.Duration
	AlertPoll       time.Duration
	AlertOnRecovery bool
}

// Default is the configuration with no file and no environment.
func Default() Config {
	return Config{
		Addr:            ":80",
		LogLevel:        "info",
		Mode:            ModeScan,
		TableName:       "MyTestTable",
		Region:          "us-east-1",
		ConnectTimeout:  5 * time.Second,
		ReadTimeout:     5 * time.Second,
		Interval:        5 * time.Second,
		TestRPM:         30,
		TestBurst:       5,
		AlertCooldown:   5 * time.Minute,
		AlertPoll:       10 * time.Second,
		AlertOnRecovery: true,
	}
}

// FromEnv applies environment overrides to the defaults.
func FromEnv() Config {
	cfg := Default()
	applyEnv(&cfg)
	return cfg
}

// fileConfig is the YAML layout. Durations are in seconds, matching the
// environment keys.
type fileConfig struct {
	Addr              string   `yaml:"addr"`
	LogDir            string   `yaml:"log_dir"`
	LogLevel          string   `yaml:"log_level"`
	Mode              string   `yaml:"probe_mode"`
	TableName         string   `yaml:"table_name"`
	Region            string   `yaml:"region"`
	Endpoint          string   `yaml:"dynamodb_endpoint"`
	ConnectionTimeout float64  `yaml:"connection_timeout"`
	ReadTimeout       float64  `yaml:"read_timeout"`
	TestInterval      int      `yaml:"test_interval"`
	AdminAPIKeys      []string `yaml:"admin_api_keys"`
	TestRPM           *int     `yaml:"test_rpm"`
	TestBurst         *int     `yaml:"test_burst"`
	TrustProxyHeaders *bool    `yaml:"trust_proxy_headers"`
	SlackWebhook      string   `yaml:"slack_webhook_url"`
	AlertCooldownSec  int      `yaml:"alert_cooldown_sec"`
	AlertPollSec      int      `yaml:"alert_poll_sec"`
	AlertOnRecovery   *bool    `yaml:"alert_on_recovery"`
}

// Load reads an optional YAML file, then applies environment overrides.
// An empty path or a missing file means environment and defaults only.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		content, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return Config{}, fmt.Errorf("read config: %w", err)
		default:
			var fc fileConfig
			if err := yaml.Unmarshal(content, &fc); err != nil {
				return Config{}, fmt.Errorf("parse config: %w", err)
			}
			fc.apply(&cfg)
		}
	}

	applyEnv(&cfg)
	return cfg, nil
}

func (fc fileConfig) apply(cfg *Config) {
	setString(&cfg.Addr, fc.Addr)
	setString(&cfg.LogDir, fc.LogDir)
	setString(&cfg.LogLevel, fc.LogLevel)
	setString(&cfg.Mode, fc.Mode)
	setString(&cfg.TableName, fc.TableName)
	setString(&cfg.Region, fc.Region)
	setString(&cfg.Endpoint, fc.Endpoint)
	setString(&cfg.SlackWebhook, fc.SlackWebhook)
	if fc.ConnectionTimeout > 0 {
		cfg.ConnectTimeout = seconds(fc.ConnectionTimeout)
	}
	if fc.ReadTimeout > 0 {
		cfg.ReadTimeout = seconds(fc.ReadTimeout)
	}
	if fc.TestInterval > 0 {
		cfg.Interval = time.Duration(fc.TestInterval) * time.Second
	}
	if len(fc.AdminAPIKeys) > 0 {
		cfg.AdminAPIKeys = fc.AdminAPIKeys
	}
	if fc.TestRPM != nil && *fc.TestRPM >= 0 {
		cfg.TestRPM = *fc.TestRPM
	}
	if fc.TestBurst != nil && *fc.TestBurst > 0 {
		cfg.TestBurst = *fc.TestBurst
	}
	if fc.TrustProxyHeaders != nil {
		cfg.TrustProxy = *fc.TrustProxyHeaders
	}
	if fc.AlertCooldownSec > 0 {
		cfg.AlertCooldown = time.Duration(fc.AlertCooldownSec) * time.Second
	}
	if fc.AlertPollSec > 0 {
		cfg.AlertPoll = time.Duration(fc.AlertPollSec) * time.Second
	}
	if fc.AlertOnRecovery != nil {
		cfg.AlertOnRecovery = *fc.AlertOnRecovery
	}
}

// applyEnv overrides cfg from the environment. Unparsable or out-of-range
// numbers keep the current value.
func applyEnv(cfg *Config) {
	setString(&cfg.Addr, os.Getenv("ADDR"))
	setString(&cfg.LogDir, os.Getenv("LOG_DIR"))
	setString(&cfg.LogLevel, os.Getenv("LOG_LEVEL"))
	setString(&cfg.Mode, strings.ToLower(strings.TrimSpace(os.Getenv("PROBE_MODE"))))
	setString(&cfg.TableName, os.Getenv("TABLE_NAME"))
	setString(&cfg.Region, os.Getenv("AWS_REGION"))
	setString(&cfg.Endpoint, os.Getenv("DYNAMODB_ENDPOINT"))
	setString(&cfg.SlackWebhook, os.Getenv("SLACK_WEBHOOK_URL"))

	if v := os.Getenv("CONNECTION_TIMEOUT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			cfg.ConnectTimeout = seconds(f)
		}
	}
	if v := os.Getenv("READ_TIMEOUT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			cfg.ReadTimeout = seconds(f)
		}
	}
	if v := os.Getenv("TEST_INTERVAL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.Interval = time.Duration(n) * time.Second
		}
	}

	if keys := splitCSV(os.Getenv("ADMIN_API_KEYS")); len(keys) > 0 {
		cfg.AdminAPIKeys = keys
	}
	if v := os.Getenv("TEST_RPM"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.TestRPM = n
		}
	}
	if v := os.Getenv("TEST_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.TestBurst = n
		}
	}

	if v := os.Getenv("TRUST_PROXY_HEADERS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.TrustProxy = b
		}
	}

	if v := os.Getenv("ALERT_COOLDOWN_SEC"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.AlertCooldown = time.Duration(n) * time.Second
		}
	}
	if v := os.Getenv("ALERT_POLL_SEC"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.AlertPoll = time.Duration(n) * time.Second
		}
	}
	if v := os.Getenv("ALERT_ON_RECOVERY"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.AlertOnRecovery = b
		}
	}
}

// Validate rejects configurations the service cannot run with.
func (c Config) Validate() error {
	switch c.Mode {
	case ModeScan:
		if c.TableName == "" {
			return errors.New("TABLE_NAME is required in scan mode")
		}
	case ModeListTables:
	default:
		return fmt.Errorf("unknown PROBE_MODE %q (want %q or %q)", c.Mode, ModeScan, ModeListTables)
	}
	if c.Region == "" {
		return errors.New("AWS_REGION is empty")
	}
	return nil
}

// Target names what is probed: the table, or the table listing.
func (c Config) Target() string {
	if c.Mode == ModeListTables {
		return "ListTables"
	}
	return c.TableName
}

func setString(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

func seconds(f float64) time.Duration {
	return time.Duration(f * float64(time.Second))
}

func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
