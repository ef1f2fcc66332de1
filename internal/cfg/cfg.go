package cfg

import (
	"errors"
	"flag"
	"fmt"
	"strings"
)

// Config holds triageq application settings. It implements the go-core
// cfg.Registerable and cfg.Validatable interfaces.
type Config struct {
	DrainSeconds          int
	ShutdownBudgetSeconds int
	APIPort               int
	RulesPath             string
	PatientClass          string
	CORSOrigins           string
	ControlToken          string
	Seed                  uint64
	SlackWebhookURL       string
	NATSURL               string
	NATSSubject           string
}

// RegisterFlags binds Config fields to the given FlagSet with defaults inline
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.IntVar(&c.DrainSeconds, "drain-seconds", 10, "seconds to wait for in-flight requests to drain before shutdown (1..300)")
	fs.IntVar(&c.ShutdownBudgetSeconds, "shutdown-budget-seconds", 30, "total seconds for component shutdown after drain (1..300)")
	fs.IntVar(&c.APIPort, "http-port", 5000, "API listen TCP port (1..65535)")
	fs.StringVar(&c.RulesPath, "rules-path", "configs/triage_rules.json", "triage rule file (JSON or YAML)")
	fs.StringVar(&c.PatientClass, "patient-class", "adult", "threshold table in the rule file to classify against")
	fs.StringVar(&c.CORSOrigins, "cors-origins", "*", "comma separated origins allowed to call the API")
	fs.StringVar(&c.ControlToken, "control-token", "", "bearer token required to change the simulated profile (empty = open)")
	fs.Uint64Var(&c.Seed, "seed", 0, "random seed for sensor jitter and noise (0 = time based)")
	fs.StringVar(&c.SlackWebhookURL, "slack-webhook-url", "", "Slack webhook URL for escalation notifications")
	fs.StringVar(&c.NATSURL, "nats-url", "", "NATS server URL to stream snapshots to (empty = disabled)")
	fs.StringVar(&c.NATSSubject, "nats-subject", "triageq.vitals", "NATS subject for streamed snapshots")
}

// Validate checks all configuration fields for correctness.
// It returns an error if any field is invalid, or nil if all fields are valid.
func (c *Config) Validate() error {
	var errs []error

	// Drain and shutdown budgets
	if c.DrainSeconds <= 0 || c.DrainSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid DRAIN_SECONDS %d (must be 1..300)", c.DrainSeconds))
	}
	if c.ShutdownBudgetSeconds <= 0 || c.ShutdownBudgetSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid SHUTDOWN_BUDGET_SECONDS %d (must be 1..300)", c.ShutdownBudgetSeconds))
	}

	// Shutdown budget must be greater than drain time
	if c.ShutdownBudgetSeconds <= c.DrainSeconds {
		errs = append(errs, fmt.Errorf("SHUTDOWN_BUDGET_SECONDS %d must be greater than DRAIN_SECONDS %d", c.ShutdownBudgetSeconds, c.DrainSeconds))
	}

	// API port must be valid TCP port number
	if c.APIPort <= 0 || c.APIPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP_PORT %d (must be 1..65535)", c.APIPort))
	}

	// The engine cannot start without a rule file
	if strings.TrimSpace(c.RulesPath) == "" {
		errs = append(errs, errors.New("RULES_PATH is required"))
	}
	if strings.TrimSpace(c.PatientClass) == "" {
		errs = append(errs, errors.New("PATIENT_CLASS is required"))
	}

	if len(c.AllowedOrigins()) == 0 {
		errs = append(errs, errors.New("CORS_ORIGINS must list at least one origin"))
	}

	// Streaming needs somewhere to publish
	if c.NATSURL != "" && strings.TrimSpace(c.NATSSubject) == "" {
		errs = append(errs, errors.New("NATS_SUBJECT is required when NATS_URL is set"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// AllowedOrigins splits CORSOrigins into trimmed, non-empty entries.
func (c *Config) AllowedOrigins() []string {
	var out []string
	for _, o := range strings.Split(c.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
