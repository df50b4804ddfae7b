package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the release parameters for a single packaging run.
// It is constructed once at process start and treated as read-only afterwards.
type Config struct {
	// PackageName is the name of the library being packaged, e.g. "dcmtrans".
	PackageName string `yaml:"package_name"`
	// VersionTag is the release tag baked into the source locator and archive name.
	VersionTag string `yaml:"version_tag"`
	// RepositoryURL is the source repository the build step fetches from.
	RepositoryURL string `yaml:"repository_url"`
	// SecretFile is the path to a file holding the repository access token.
	// The token is injected into the locator and never logged.
	SecretFile string `yaml:"secret_file"`
	// OutputDir is where the final archive and manifest are written.
	OutputDir string `yaml:"output_dir"`
	// BuildDir is the transient directory holding build artifacts before archiving.
	BuildDir string `yaml:"build_dir"`
	// BuildTool is the executable invoked to produce the wheel artifact.
	BuildTool string `yaml:"build_tool"`
	// BuildTimeout optionally bounds the external build subprocess.
	// Zero leaves the build wait bounded only by the process lifetime.
	BuildTimeout time.Duration `yaml:"build_timeout"`
}

const (
	// DefaultConfigFilename is the default filename for packaging settings.
	DefaultConfigFilename = "dcmtrans-packager.yaml"

	// DefaultOutputDir is where archives land unless configured otherwise.
	DefaultOutputDir = "dist"

	// DefaultBuildDir holds build artifacts before they are archived.
	DefaultBuildDir = "dist/build"

	// DefaultSecretFilename is the conventional location of the repository token.
	DefaultSecretFilename = "git_secret"

	// DefaultBuildTool produces the wheel artifact.
	DefaultBuildTool = "pip"

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errPackageNameRequired is returned when the package name is missing.
	errPackageNameRequired = errors.New("package name must be provided")
	// errPackageNameInvalid is returned when the package name contains path separators.
	errPackageNameInvalid = errors.New("package name must not contain path separators")
	// errVersionTagRequired is returned when the version tag is missing.
	errVersionTagRequired = errors.New("version tag must be provided")
	// errRepositoryRequired is returned when the repository URL is missing.
	errRepositoryRequired = errors.New("repository URL must be provided")
)

// Load reads configuration from the provided path and validates essential fields.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the configuration to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions: the file may name the secret's location.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks the provided settings for required fields and fills in defaults.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if cfg.PackageName == "" {
		return errPackageNameRequired
	}

	if strings.ContainsAny(cfg.PackageName, `/\`) {
		return fmt.Errorf("%q: %w", cfg.PackageName, errPackageNameInvalid)
	}

	if cfg.VersionTag == "" {
		return errVersionTagRequired
	}

	if cfg.RepositoryURL == "" {
		return errRepositoryRequired
	}

	if _, err := url.ParseRequestURI(cfg.RepositoryURL); err != nil {
		return fmt.Errorf("invalid repository URL: %w", err)
	}

	// Fill in defaults for everything the file may omit.
	if cfg.OutputDir == "" {
		cfg.OutputDir = DefaultOutputDir
	}

	if cfg.BuildDir == "" {
		cfg.BuildDir = DefaultBuildDir
	}

	if cfg.BuildTool == "" {
		cfg.BuildTool = DefaultBuildTool
	}

	if cfg.SecretFile == "" {
		cfg.SecretFile = DefaultSecretFilename
	}

	// BuildTimeout is left as provided: zero means an unbounded build wait.

	return nil
}

// ArchiveFilename returns the name of the final release archive.
func (c *Config) ArchiveFilename() string {
	return fmt.Sprintf("%s-%s.zip", c.PackageName, c.VersionTag)
}

// ManifestFilename returns the name of the release manifest written next to the archive.
func (c *Config) ManifestFilename() string {
	return fmt.Sprintf("%s-%s-manifest.yaml", c.PackageName, c.VersionTag)
}
