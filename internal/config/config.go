// Package config handles configuration loading from a yaml file and
// environment variables, env taking precedence.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration values for the application.
type Config struct {
	// Database connection string
	DatabaseURL string

	// HTTP server port for the controller
	HTTPPort int

	// URL of the controller (e.g., "http://localhost:6161")
	ControllerURL string

	// Workflow name; also keys the run-level lock
	Workflow string

	// Fixed trigger cadence, UTC wall clock
	ScheduleInterval time.Duration

	// Hard wall-clock ceiling over provisioning + execution
	RunTimeout time.Duration

	// Dispatch queue polling
	PollInterval time.Duration
	MaxBackoff   time.Duration

	// Repository the runner checks out and publishes results to
	RepoURL    string
	RepoBranch string

	// Runner workspace and caches
	WorkDir     string
	CacheDir    string
	ArtifactDir string

	// Execution backend: "exec", "docker" or "kubernetes"
	Runtime      string
	RuntimeImage string

	// Pinned interpreter for the exec backend
	Interpreter    string
	RuntimeVersion string

	// Dependency manifest, relative to the workspace
	Manifest string

	// Command the job executor invokes
	Command []string

	// Files at the workspace root
	ResultFile      string
	LogFile         string
	CredentialsFile string

	// Result publisher identity and message
	BotName       string
	BotEmail      string
	CommitMessage string

	// Bounded retry-with-rebase attempts on push conflict
	PublishAttempts int

	// Operator auth: sha256 hex of the accepted bearer token
	OperatorTokenHash string

	// Controller rate limiting (requests/sec, 0 = unlimited)
	RateLimit      float64
	RateLimitBurst int

	// OTLP collector endpoint
	OTELEndpoint string

	// Kubernetes runtime settings
	KubernetesNamespace      string
	KubernetesServiceAccount string
	KubernetesCPULimit       string
	KubernetesMemoryLimit    string

	// Secrets, injected via environment only (never the config file)
	SerperAPIKey string
	GSheetName   string
	GSheetCreds  string
}

// envBindings maps config keys to the environment variables that override them.
var envBindings = map[string]string{
	"database_url":         "DATABASE_URL",
	"http_port":            "PORT",
	"controller_url":       "CONTROLLER_URL",
	"workflow":             "WORKFLOW",
	"schedule_interval":    "SCHEDULE_INTERVAL",
	"run_timeout":          "RUN_TIMEOUT",
	"poll_interval":        "POLL_INTERVAL",
	"max_backoff":          "MAX_BACKOFF",
	"repo_url":             "REPO_URL",
	"repo_branch":          "REPO_BRANCH",
	"work_dir":             "RUNTIME_WORKDIR",
	"cache_dir":            "CACHE_DIR",
	"artifact_dir":         "ARTIFACT_DIR",
	"runtime":              "RUNTIME",
	"runtime_image":        "RUNTIME_IMAGE",
	"interpreter":          "INTERPRETER",
	"runtime_version":      "RUNTIME_VERSION",
	"operator_token_hash":  "OPERATOR_TOKEN_HASH",
	"otel_endpoint":        "OTEL_EXPORTER_OTLP_ENDPOINT",
	"kubernetes_namespace": "KUBERNETES_NAMESPACE",
	// Executor secrets, same names the workflow consumed historically
	"serper_api_key": "SERPER_API_KEY",
	"gsheet_name":    "GSHEET_NAME",
	"gsheet_creds":   "GSHEET_CREDS",
}

// Load reads configuration from an optional yaml file and the environment.
// Environment variables override file values; defaults fill the rest.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("http_port", 6161)
	v.SetDefault("controller_url", "http://localhost:6161")
	v.SetDefault("workflow", "lead-discovery")
	v.SetDefault("schedule_interval", 5*time.Hour)
	v.SetDefault("run_timeout", 60*time.Minute)
	v.SetDefault("poll_interval", 1*time.Second)
	v.SetDefault("max_backoff", 30*time.Second)
	v.SetDefault("repo_branch", "main")
	v.SetDefault("work_dir", "")
	v.SetDefault("cache_dir", "")
	v.SetDefault("artifact_dir", "")
	v.SetDefault("runtime", "exec")
	v.SetDefault("runtime_image", "python:3.11-slim")
	v.SetDefault("interpreter", "python3")
	v.SetDefault("runtime_version", "3.11")
	v.SetDefault("manifest", "requirements.txt")
	v.SetDefault("command", []string{"python3", "discover_sites.py"})
	v.SetDefault("result_file", "search_phrases.json")
	v.SetDefault("log_file", "lead_discovery.log")
	v.SetDefault("credentials_file", "credentials.json")
	v.SetDefault("bot_name", "leadrunner-bot")
	v.SetDefault("bot_email", "leadrunner-bot@users.noreply.github.com")
	v.SetDefault("commit_message", "Update search phrase queue")
	v.SetDefault("publish_attempts", 3)
	v.SetDefault("rate_limit", 5.0)
	v.SetDefault("rate_limit_burst", 10)
	v.SetDefault("otel_endpoint", "localhost:4317")
	v.SetDefault("kubernetes_namespace", "default")

	for key, env := range envBindings {
		v.BindEnv(key, env)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	cfg := &Config{
		DatabaseURL:              v.GetString("database_url"),
		HTTPPort:                 v.GetInt("http_port"),
		ControllerURL:            v.GetString("controller_url"),
		Workflow:                 v.GetString("workflow"),
		ScheduleInterval:         v.GetDuration("schedule_interval"),
		RunTimeout:               v.GetDuration("run_timeout"),
		PollInterval:             v.GetDuration("poll_interval"),
		MaxBackoff:               v.GetDuration("max_backoff"),
		RepoURL:                  v.GetString("repo_url"),
		RepoBranch:               v.GetString("repo_branch"),
		WorkDir:                  v.GetString("work_dir"),
		CacheDir:                 v.GetString("cache_dir"),
		ArtifactDir:              v.GetString("artifact_dir"),
		Runtime:                  v.GetString("runtime"),
		RuntimeImage:             v.GetString("runtime_image"),
		Interpreter:              v.GetString("interpreter"),
		RuntimeVersion:           v.GetString("runtime_version"),
		Manifest:                 v.GetString("manifest"),
		Command:                  v.GetStringSlice("command"),
		ResultFile:               v.GetString("result_file"),
		LogFile:                  v.GetString("log_file"),
		CredentialsFile:          v.GetString("credentials_file"),
		BotName:                  v.GetString("bot_name"),
		BotEmail:                 v.GetString("bot_email"),
		CommitMessage:            v.GetString("commit_message"),
		PublishAttempts:          v.GetInt("publish_attempts"),
		OperatorTokenHash:        v.GetString("operator_token_hash"),
		RateLimit:                v.GetFloat64("rate_limit"),
		RateLimitBurst:           v.GetInt("rate_limit_burst"),
		OTELEndpoint:             v.GetString("otel_endpoint"),
		KubernetesNamespace:      v.GetString("kubernetes_namespace"),
		KubernetesServiceAccount: v.GetString("kubernetes_service_account"),
		KubernetesCPULimit:       v.GetString("kubernetes_cpu_limit"),
		KubernetesMemoryLimit:    v.GetString("kubernetes_memory_limit"),
		SerperAPIKey:             v.GetString("serper_api_key"),
		GSheetName:               v.GetString("gsheet_name"),
		GSheetCreds:              v.GetString("gsheet_creds"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("database_url is required (env: DATABASE_URL)")
	}

	switch cfg.Runtime {
	case "exec", "docker", "kubernetes":
	default:
		return nil, fmt.Errorf("invalid runtime %q: must be exec, docker or kubernetes", cfg.Runtime)
	}

	return cfg, nil
}
