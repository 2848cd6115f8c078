// Package config assembles run settings from defaults, an optional YAML file,
// a .env file, environment variables and finally command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/lucky845/gtipsync/internal/host/github"
	"github.com/lucky845/gtipsync/internal/logger"
	"github.com/lucky845/gtipsync/internal/model"
	"github.com/lucky845/gtipsync/internal/platform"
	"github.com/lucky845/gtipsync/internal/probe"
	"github.com/lucky845/gtipsync/internal/publish"
)

type Mode string

const (
	ModeInteractive Mode = "interactive"
	ModeUnattended  Mode = "unattended"
)

type Config struct {
	Mode           Mode          `yaml:"mode" validate:"omitempty,oneof=interactive unattended"`
	Version        string        `yaml:"version" validate:"required"`
	AllowUnpinned  bool          `yaml:"allow_unpinned"`
	DownloadBase   string        `yaml:"download_base" validate:"required,url"`
	WorkDir        string        `yaml:"work_dir"`
	SessionTimeout time.Duration `yaml:"session_timeout" validate:"gt=0"`
	Elevate        bool          `yaml:"elevate"`
	Launcher       string        `yaml:"launcher" validate:"omitempty,oneof=pty pipe"`
	DryRun         bool          `yaml:"-"`

	Gist   Gist          `yaml:"gist"`
	Verify Verify        `yaml:"verify"`
	Log    logger.Config `yaml:"log"`

	path string
}

type Gist struct {
	ID       string `yaml:"id"`
	Username string `yaml:"username"`
	FileName string `yaml:"file_name" validate:"required"`
	APIBase  string `yaml:"api_base" validate:"required,url"`
	Token    string `yaml:"-"` // environment only
}

type Verify struct {
	ArchiveSHA256  string `yaml:"archive_sha256" validate:"omitempty,hexadecimal,len=64"`
	ChecksumURL    string `yaml:"checksum_url" validate:"omitempty,url"`
	MinisignPubKey string `yaml:"minisign_pubkey" validate:"required_with=MinisignSigURL"`
	MinisignSigURL string `yaml:"minisign_sig_url" validate:"omitempty,url"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Version:        platform.PinnedVersion,
		DownloadBase:   platform.DefaultBaseURL,
		SessionTimeout: probe.DefaultTimeout,
		Gist: Gist{
			FileName: publish.DefaultFileName,
			APIBase:  github.DefaultAPIBase,
		},
		Log: logger.DefaultConfig(),
	}
}

// DefaultPath is GTIPSYNC_CONFIG or <user config dir>/gtipsync/config.yaml.
func DefaultPath() string {
	if p := strings.TrimSpace(os.Getenv("GTIPSYNC_CONFIG")); p != "" {
		return p
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(".config", "gtipsync", "config.yaml")
	}
	return filepath.Join(dir, "gtipsync", "config.yaml")
}

// Load reads the config file at path (a missing file is only an error when path
// was given explicitly), then envFile, then the environment.
func Load(path, envFile string) (*Config, error) {
	cfg := Default()

	explicit := strings.TrimSpace(path) != ""
	if !explicit {
		path = DefaultPath()
	}
	cfg.path = path

	// #nosec G304 -- config path chosen by the operator
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := validateDocument(data); err != nil {
			return nil, fmt.Errorf("config file %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %q: %w", path, err)
		}
	case os.IsNotExist(err) && !explicit:
	default:
		return nil, fmt.Errorf("read config file %q: %w", path, err)
	}

	if err := loadEnvFile(envFile); err != nil {
		return nil, err
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadEnvFile never overrides variables that are already set.
func loadEnvFile(envFile string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return fmt.Errorf("load env file %q: %w", envFile, err)
		}
		return nil
	}
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return fmt.Errorf("load .env: %w", err)
		}
	}
	return nil
}

func (c *Config) applyEnv() error {
	setString(&c.Gist.Token, github.TokenFromEnv())
	setString(&c.Gist.ID, firstEnv("GTIPSYNC_GIST_ID", "GIST_ID"))
	setString(&c.Gist.Username, firstEnv("GTIPSYNC_GITHUB_USERNAME", "GITHUB_USERNAME"))
	setString(&c.Gist.FileName, firstEnv("GTIPSYNC_GIST_FILE"))
	setString(&c.Gist.APIBase, firstEnv("GTIPSYNC_API_BASE"))

	if m := firstEnv("GTIPSYNC_MODE"); m != "" {
		c.Mode = Mode(strings.ToLower(m))
	}
	setString(&c.Version, firstEnv("GTIPSYNC_VERSION"))
	setString(&c.DownloadBase, firstEnv("GTIPSYNC_DOWNLOAD_BASE"))
	setString(&c.WorkDir, firstEnv("GTIPSYNC_WORK_DIR"))
	setString(&c.Launcher, firstEnv("GTIPSYNC_LAUNCHER"))
	if v := firstEnv("GTIPSYNC_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("GTIPSYNC_TIMEOUT=%q: %w", v, err)
		}
		c.SessionTimeout = d
	}
	if err := envBool("GTIPSYNC_ELEVATE", &c.Elevate); err != nil {
		return err
	}
	return envBool("GTIPSYNC_ALLOW_UNPINNED", &c.AllowUnpinned)
}

func envBool(key string, dst *bool) error {
	v := firstEnv(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s=%q: %w", key, v, err)
	}
	*dst = b
	return nil
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return v
		}
	}
	return ""
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// Path is the config file that was consulted.
func (c *Config) Path() string { return c.path }

// Validate checks the merged settings.
func (c *Config) Validate() error {
	err := validator.New(validator.WithRequiredStructEnabled()).Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: failed %q", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
}

// ResolveMode fills in Mode when unset: interactive only for a terminal
// outside CI.
func (c *Config) ResolveMode(stdin *os.File) Mode {
	if c.Mode == "" {
		c.Mode = DetectMode(stdin != nil && term.IsTerminal(int(stdin.Fd())), os.Getenv("CI"))
	}
	return c.Mode
}

func DetectMode(stdinIsTerminal bool, ci string) Mode {
	if stdinIsTerminal && strings.TrimSpace(ci) == "" {
		return ModeInteractive
	}
	return ModeUnattended
}

// Credential is the gist credential carried by the config.
func (c *Config) Credential() model.RemoteCredential {
	return model.RemoteCredential{
		Token:      c.Gist.Token,
		DocumentID: c.Gist.ID,
		Username:   c.Gist.Username,
	}
}
