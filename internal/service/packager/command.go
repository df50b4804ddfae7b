package packager

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/oshokin/dcmtrans-packager/internal/archive"
	"github.com/oshokin/dcmtrans-packager/internal/config"
	"github.com/oshokin/dcmtrans-packager/internal/logger"
	"github.com/oshokin/dcmtrans-packager/internal/repository/artifact"
	"github.com/oshokin/dcmtrans-packager/internal/service/builder"
)

// Options contains inputs for the packager entry point. Non-empty values
// override whatever the settings file holds.
type Options struct {
	// ConfigPath is an optional path to persist release settings.
	ConfigPath string
	// PackageName is the name of the library being released.
	PackageName string
	// VersionTag is the release tag to build and archive.
	VersionTag string
	// RepositoryURL is the source repository the build fetches from.
	RepositoryURL string
	// SecretFile is the path to the repository access token file.
	SecretFile string
	// OutputDir overrides where the archive and manifest are written.
	OutputDir string
	// BuildDir overrides the transient build artifact directory.
	BuildDir string
	// BuildTool overrides the executable producing the wheel artifact.
	BuildTool string
}

// Error taxonomy of the packaging run. Every failure is terminal: the run
// aborts at the first failing step, nothing is retried.
var (
	// ErrDirectoryCreation reports a failure to prepare the output or build directory.
	ErrDirectoryCreation = errors.New("unable to prepare directory")
	// ErrStaleArtifactRemoval reports a failure to delete a stale or duplicate artifact.
	ErrStaleArtifactRemoval = errors.New("unable to remove artifact")
	// ErrArchiveCreation reports a failure to produce the final archive.
	ErrArchiveCreation = errors.New("unable to create archive")
)

// errPackagerRunning indicates another packaging run holds the marker.
var errPackagerRunning = errors.New("another packaging run is in progress")

// packager drives one release through the five workflow steps.
// It is unexported—callers should use Run, which encapsulates setup and validation.
type packager struct {
	// cfg holds the immutable release descriptor for this run.
	cfg *config.Config
	// cfgFilename is the path where configuration is saved.
	cfgFilename string
	// store lists and mutates the build directory deterministically.
	store artifact.Store
}

// Run executes the packaging workflow.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "dcmtrans-packager")

	cfg, err := resolveConfig(opts)
	if err != nil {
		return err
	}

	pkg, err := newPackager(ctx, opts.ConfigPath, cfg)
	if err != nil {
		return fmt.Errorf("initialize packager: %w", err)
	}

	defer pkg.cleanup(ctx)

	if err = pkg.Run(ctx); err != nil {
		return fmt.Errorf("packager failed: %w", err)
	}

	logger.Info(ctx, "Packager completed successfully")

	return nil
}

// resolveConfig merges the settings file (when present) with CLI overrides
// into the run's immutable configuration.
func resolveConfig(opts *Options) (*config.Config, error) {
	cfg := &config.Config{}

	path := opts.ConfigPath
	if path == "" {
		path = config.DefaultConfigFilename
	}

	if _, err := os.Stat(path); err == nil {
		loaded, loadErr := config.Load(path)
		if loadErr != nil {
			return nil, loadErr
		}

		cfg = loaded
	} else if !errors.Is(err, os.ErrNotExist) {
		// An unreadable settings file must not silently degrade to defaults.
		return nil, fmt.Errorf("stat settings: %w", err)
	}

	applyOverrides(cfg, opts)

	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyOverrides copies non-empty option values over the loaded settings.
func applyOverrides(cfg *config.Config, opts *Options) {
	if opts.PackageName != "" {
		cfg.PackageName = opts.PackageName
	}

	if opts.VersionTag != "" {
		cfg.VersionTag = opts.VersionTag
	}

	if opts.RepositoryURL != "" {
		cfg.RepositoryURL = opts.RepositoryURL
	}

	if opts.SecretFile != "" {
		cfg.SecretFile = opts.SecretFile
	}

	if opts.OutputDir != "" {
		cfg.OutputDir = opts.OutputDir
	}

	if opts.BuildDir != "" {
		cfg.BuildDir = opts.BuildDir
	}

	if opts.BuildTool != "" {
		cfg.BuildTool = opts.BuildTool
	}
}

// newPackager creates a new packager instance, refusing to start while
// another run is in flight, and persists the effective settings.
func newPackager(ctx context.Context, configFilename string, cfg *config.Config) (*packager, error) {
	if IsPackagerRunningNow(ctx) {
		return nil, errPackagerRunning
	}

	if err := writeMarker(); err != nil {
		return nil, err
	}

	if err := config.Save(configFilename, cfg); err != nil {
		// Release the marker: the caller only cleans up after a successful setup.
		_ = os.Remove(MarkerFilename)

		return nil, fmt.Errorf("save settings: %w", err)
	}

	return &packager{
		cfg:         cfg,
		cfgFilename: configFilename,
		store:       artifact.NewFileStore(cfg.BuildDir),
	}, nil
}

// Run executes the five workflow steps in strict sequence,
// aborting at the first failure.
func (p *packager) Run(ctx context.Context) error {
	if err := p.prepareDirectories(ctx); err != nil {
		return err
	}

	if err := p.purgeStaleArtifacts(ctx); err != nil {
		return err
	}

	if err := builder.Run(ctx, p.cfg); err != nil {
		return err
	}

	if err := p.pruneDuplicates(ctx); err != nil {
		return err
	}

	if err := p.createArchive(ctx); err != nil {
		return err
	}

	return p.writeManifest(ctx)
}

// prepareDirectories ensures the output and build directories exist.
// Creation is idempotent; any other filesystem error is fatal.
func (p *packager) prepareDirectories(ctx context.Context) error {
	for _, dir := range []string{p.cfg.OutputDir, p.cfg.BuildDir} {
		if err := os.MkdirAll(dir, artifactDirMode); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrDirectoryCreation, dir, err)
		}
	}

	logger.InfoKV(ctx, "Prepared directories",
		"output_dir", p.cfg.OutputDir,
		"build_dir", p.cfg.BuildDir)

	return nil
}

// purgeStaleArtifacts deletes every file under the build directory whose
// name contains the package name, so leftovers from earlier runs cannot be
// confused with the current build's output.
func (p *packager) purgeStaleArtifacts(ctx context.Context) error {
	files, err := p.store.Files(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStaleArtifactRemoval, err)
	}

	for _, relPath := range files {
		if !strings.Contains(filepath.Base(relPath), p.cfg.PackageName) {
			continue
		}

		if err = p.store.Remove(ctx, relPath); err != nil {
			return fmt.Errorf("%w: %w", ErrStaleArtifactRemoval, err)
		}

		logger.InfoKV(ctx, "Removed stale artifact", "path", relPath)
	}

	return nil
}

// pruneDuplicates walks the name-sorted top-level listing once, keeping a
// "last seen prefix" cursor. When two neighbouring entries share a prefix
// (the part of the name before the first dash), the earlier entry is
// deleted: per prefix, the last entry in sort order survives.
func (p *packager) pruneDuplicates(ctx context.Context) error {
	entries, err := p.store.List(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStaleArtifactRemoval, err)
	}

	var lastName, lastPrefix string

	for _, entry := range entries {
		if entry.IsDir {
			continue
		}

		prefix := artifact.Prefix(entry.Name)
		if lastName != "" && prefix == lastPrefix {
			if err = p.store.Remove(ctx, lastName); err != nil {
				return fmt.Errorf("%w: %w", ErrStaleArtifactRemoval, err)
			}

			logger.InfoKV(ctx, "Pruned duplicate artifact", "path", lastName)
		}

		lastName, lastPrefix = entry.Name, prefix
	}

	return nil
}

// createArchive zips the pruned build directory into the output directory.
func (p *packager) createArchive(ctx context.Context) error {
	archivePath := filepath.Join(p.cfg.OutputDir, p.cfg.ArchiveFilename())

	if err := archive.CreateZip(archivePath, p.cfg.BuildDir); err != nil {
		return fmt.Errorf("%w: %w", ErrArchiveCreation, err)
	}

	logger.InfoKV(ctx, "Created release archive", "path", archivePath)

	return nil
}

// writeManifest records checksums of every packaged artifact next to the archive.
func (p *packager) writeManifest(ctx context.Context) error {
	files, err := p.store.Files(ctx)
	if err != nil {
		return fmt.Errorf("list packaged artifacts: %w", err)
	}

	manifest := NewManifest(p.cfg)

	for _, relPath := range files {
		checksum, sumErr := GetFileChecksum(filepath.Join(p.store.Root(), filepath.FromSlash(relPath)))
		if sumErr != nil {
			return sumErr
		}

		manifest.Files[relPath] = checksum
	}

	manifestPath := filepath.Join(p.cfg.OutputDir, p.cfg.ManifestFilename())
	if err = manifest.Save(manifestPath); err != nil {
		return err
	}

	logger.InfoKV(ctx, "Saved release manifest", "path", manifestPath, "artifacts", len(manifest.Files))

	return nil
}

// cleanup releases the run marker. Best effort, the marker also expires.
func (p *packager) cleanup(ctx context.Context) {
	if err := os.Remove(MarkerFilename); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.WarnKV(ctx, "Unable to remove run marker", "error", err)
	}
}
