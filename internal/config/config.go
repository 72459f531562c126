// Package config is the ambient settings loader for the receipt pipeline.
// No teacher source exists under src/pkg/config despite every cmd/ entry
// point and pkg/echo-middleware/config.go importing
// "expense-tracker/src/pkg/config" — this package is authored fresh from
// that call-site contract: GetPackageName(), CheckIfEnvVarsPresent(...),
// InitializeConfig(path), DefaultValueConfig()/Cfg package variable, all in
// the teacher's tl.ApplyDefaults idiom (see pkg/echo-middleware/config.go).
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	tl "github.com/tuumbleweed/tintlog/logger"
	"github.com/tuumbleweed/tintlog/palette"

	"receiptcore/internal/cliutil"
)

// Config is the top-level settings struct every package in the pipeline
// reads from, populated from a JSON file at InitializeConfig time and
// overlaid with DefaultValueConfig for any field left unset.
type Config struct {
	Address string `json:"address,omitempty"`
	Port    int    `json:"port,omitempty"`

	OpenAIAPIKey string `json:"openai_api_key,omitempty"`
	OpenAIModel  string `json:"openai_model,omitempty"`
	LLMProvider  string `json:"llm_provider,omitempty"`

	AWSRegion string `json:"aws_region,omitempty"`

	DatabasePath string `json:"database_path,omitempty"`

	RateLimitMaxRequests   int `json:"rate_limit_max_requests,omitempty"`
	RateLimitWindowSeconds int `json:"rate_limit_window_seconds,omitempty"`

	NotifySender     string `json:"notify_sender,omitempty"`
	NotifyFromEmail  string `json:"notify_from_email,omitempty"`
	NotifyToEmail    string `json:"notify_to_email,omitempty"`
	MailgunDomain    string `json:"mailgun_domain,omitempty"`
	SendgridFromName string `json:"sendgrid_from_name,omitempty"`

	ArtifactsDir string `json:"artifacts_dir,omitempty"`
}

// DefaultValueConfig mirrors pkg/echo-middleware/config.go's
// DefaultValueConfig: safe, no-external-dependency defaults the pipeline
// can run integration tests against.
func DefaultValueConfig() Config {
	return Config{
		Address: "127.0.0.1",
		Port:    8401,

		OpenAIModel: "gpt-4o-mini",
		LLMProvider: "openai",

		AWSRegion: "us-west-2",

		DatabasePath: "./data/receipts.db",

		RateLimitMaxRequests:   15,
		RateLimitWindowSeconds: 60,

		NotifySender: "ses",

		ArtifactsDir: "./out",
	}
}

// Cfg holds the process-wide configuration; usable with its zero-configured
// defaults before InitializeConfig runs, matching the teacher's "create
// config with default values before config gets initialized" comment.
var Cfg Config = DefaultValueConfig()

// GetPackageName identifies this settings package in log lines, mirroring
// the teacher's config.GetPackageName() call sites.
func GetPackageName() string { return "receiptcore" }

// CheckIfEnvVarsPresent logs a warning for each named environment variable
// that is unset or blank, and exits(1) if any were missing — generalized
// from pkg/util/flag.go's RequiredFlag/EnsureFlags pair to environment
// variables instead of CLI flags.
func CheckIfEnvVarsPresent(names ...string) {
	missing := false
	for _, name := range names {
		if strings.TrimSpace(os.Getenv(name)) == "" {
			tl.Log(tl.Warning, palette.YellowBold, "%s environment variable is %s", name, "required")
			missing = true
		}
	}
	if missing {
		os.Exit(1)
	}
}

// InitializeConfig loads path as JSON into Cfg, replacing any field left
// unset in the loaded file with DefaultValueConfig's value, exactly as
// pkg/echo-middleware/config.go's InitializeConfig does for its own
// sub-config. A missing or unreadable file is not fatal: the process keeps
// running on defaults, logged at Warning level.
func InitializeConfig(path string) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		tl.Log(tl.Info, palette.Purple, "%s config is %s, keeping %s", GetPackageName(), "not provided", "default configuration")
		return
	}

	data, readErr := os.ReadFile(trimmed)
	if readErr != nil {
		tl.Log(tl.Warning, palette.YellowBold, "%s config file %s at '%s', keeping %s", GetPackageName(), "not found", trimmed, "default configuration")
		return
	}

	var loaded Config
	if err := json.Unmarshal(data, &loaded); err != nil {
		tl.Log(tl.Warning, palette.YellowBold, "%s config file at '%s' %s: %s", GetPackageName(), trimmed, "failed to parse", err)
		return
	}

	defaultConfig := DefaultValueConfig()
	Cfg = loaded

	tl.ApplyDefaults(&Cfg, defaultConfig, func(field string, defVal any) {
		tl.Log(
			tl.Info, palette.Purple,
			"%s field is %s in %s configuration. Using default value: %v",
			field, "missing", GetPackageName(), tl.PrettyForStderr(defVal),
		)
	})

	Cfg.RateLimitMaxRequests = cliutil.Clamp(Cfg.RateLimitMaxRequests, 1, 10000)
	Cfg.RateLimitWindowSeconds = cliutil.Clamp(Cfg.RateLimitWindowSeconds, 1, 86400)

	tl.Log(tl.Info, palette.Green, "%s config was %s, using %s", GetPackageName(), "provided", "local configuration")
	tl.LogJSON(tl.Verbose, palette.CyanDim, fmt.Sprintf("%s configuration", GetPackageName()), Cfg)
}
