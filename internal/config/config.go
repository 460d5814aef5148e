package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	EnvGitHubToken     = "GITHUB_ACCESS_TOKEN"
	EnvCopyrightOwner  = "COPYRIGHT_OWNER"
	EnvUpstreamContact = "UPSTREAM_CONTACT"
	EnvAskalonoPath    = "ASKALONO_PATH"

	DefaultAskalonoPath = "/root/.cargo/bin/askalono"
)

type Config struct {
	GitHubToken     string
	CopyrightOwner  string
	UpstreamContact string

	AskalonoPath string
	ReusePath    string
	WorkDir      string

	ProposalBranch    string
	CommitAuthorName  string
	CommitAuthorEmail string

	ScanTimeout time.Duration
	GitTimeout  time.Duration
	GitRetries  int

	SPDXTextURL string

	DatabaseURL    string
	S3Endpoint     string
	S3AccessKey    string
	S3SecretKey    string
	S3UseSSL       bool
	ManifestBucket string
}

// MissingError lists required environment variables that are unset.
type MissingError struct {
	Vars []string
}

func (e *MissingError) Error() string {
	return "environment variables missing - [" + strings.Join(e.Vars, ", ") + "]"
}

func getBool(key, def string) bool {
	v := os.Getenv(key)
	if v == "" {
		v = def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false
	}
	return b
}

func getInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func getString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// Load reads the configuration from the environment. All missing required
// variables are reported together.
func Load() (Config, error) {
	cfg := Config{
		GitHubToken:       os.Getenv(EnvGitHubToken),
		CopyrightOwner:    os.Getenv(EnvCopyrightOwner),
		UpstreamContact:   os.Getenv(EnvUpstreamContact),
		AskalonoPath:      getString(EnvAskalonoPath, DefaultAskalonoPath),
		ReusePath:         getString("REUSE_PATH", "/usr/local/bin/reuse"),
		WorkDir:           getString("WORK_DIR", "repositories"),
		ProposalBranch:    getString("PROPOSAL_BRANCH", "reuse-metadata-proposal"),
		CommitAuthorName:  getString("COMMIT_AUTHOR_NAME", "REUSE Assistant"),
		CommitAuthorEmail: getString("COMMIT_AUTHOR_EMAIL", "reuse-assistant@users.noreply.github.com"),
		ScanTimeout:       getDuration("SCAN_TIMEOUT", 10*time.Minute),
		GitTimeout:        getDuration("GIT_TIMEOUT", 5*time.Minute),
		GitRetries:        getInt("GIT_RETRIES", 3),
		SPDXTextURL:       getString("SPDX_TEXT_URL", "https://raw.githubusercontent.com/spdx/license-list-data/main/text"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		S3Endpoint:        os.Getenv("S3_ENDPOINT"),
		S3AccessKey:       os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey:       os.Getenv("S3_SECRET_KEY"),
		S3UseSSL:          getBool("S3_USE_SSL", "false"),
		ManifestBucket:    os.Getenv("MANIFEST_BUCKET"),
	}
	if cfg.GitRetries < 1 {
		cfg.GitRetries = 1
	}

	var missing []string
	for _, kv := range []struct{ key, val string }{
		{EnvGitHubToken, cfg.GitHubToken},
		{EnvCopyrightOwner, cfg.CopyrightOwner},
		{EnvUpstreamContact, cfg.UpstreamContact},
	} {
		if kv.val == "" {
			missing = append(missing, kv.key)
		}
	}
	if len(missing) > 0 {
		return cfg, &MissingError{Vars: missing}
	}
	if cfg.S3Endpoint != "" && cfg.ManifestBucket == "" {
		return cfg, errors.New("MANIFEST_BUCKET is required when S3_ENDPOINT is set")
	}
	return cfg, nil
}

// AskalonoPath is the scanner binary from the environment, for commands that
// do not need the full configuration.
func AskalonoPath() string {
	return getString(EnvAskalonoPath, DefaultAskalonoPath)
}

// ArchiveEnabled reports whether manifests should be copied to object storage.
func (c Config) ArchiveEnabled() bool { return c.S3Endpoint != "" }

// HistoryEnabled reports whether runs are recorded in Postgres.
func (c Config) HistoryEnabled() bool { return c.DatabaseURL != "" }
