package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestValidate checks required fields, format validations and default filling.
func TestValidate(t *testing.T) {
	t.Parallel()

	// Missing package name.
	cfg := new(Config)

	err := Validate(cfg)
	require.Error(t, err)

	// Package name with a path separator.
	cfg = &Config{
		PackageName:   "dcm/trans",
		VersionTag:    "0.2.3",
		RepositoryURL: "https://example.com/r/dcmtrans.git",
	}

	err = Validate(cfg)
	require.Error(t, err)

	// Missing version tag.
	cfg = &Config{
		PackageName:   "dcmtrans",
		RepositoryURL: "https://example.com/r/dcmtrans.git",
	}

	err = Validate(cfg)
	require.Error(t, err)

	// Bad repository URL.
	cfg = &Config{
		PackageName:   "dcmtrans",
		VersionTag:    "0.2.3",
		RepositoryURL: "not a url",
	}

	err = Validate(cfg)
	require.Error(t, err)

	// Okay; defaults are filled in.
	cfg = &Config{
		PackageName:   "dcmtrans",
		VersionTag:    "0.2.3",
		RepositoryURL: "https://example.com/r/dcmtrans.git",
	}

	err = Validate(cfg)
	require.NoError(t, err)
	require.Equal(t, DefaultOutputDir, cfg.OutputDir)
	require.Equal(t, DefaultBuildDir, cfg.BuildDir)
	require.Equal(t, DefaultBuildTool, cfg.BuildTool)
	require.Equal(t, DefaultSecretFilename, cfg.SecretFile)
}

// TestValidateKeepsZeroBuildTimeout pins that a zero build timeout is not
// coerced to a bound: zero means the build wait is unbounded.
func TestValidateKeepsZeroBuildTimeout(t *testing.T) {
	t.Parallel()

	cfg := &Config{
		PackageName:   "dcmtrans",
		VersionTag:    "0.2.3",
		RepositoryURL: "https://example.com/r/dcmtrans.git",
	}

	require.NoError(t, Validate(cfg))
	require.Zero(t, cfg.BuildTimeout)

	cfg.BuildTimeout = time.Minute
	require.NoError(t, Validate(cfg))
	require.Equal(t, time.Minute, cfg.BuildTimeout)
}

// TestSaveLoadRoundtrip ensures settings are persisted and loaded back correctly.
func TestSaveLoadRoundtrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "settings.yaml")

	cfg := &Config{
		PackageName:   "dcmtrans",
		VersionTag:    "0.2.3",
		RepositoryURL: "https://example.com/r/dcmtrans.git",
		SecretFile:    filepath.Join(dir, "git_secret"),
	}

	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg.PackageName, loaded.PackageName)
	require.Equal(t, cfg.VersionTag, loaded.VersionTag)
	require.Equal(t, cfg.RepositoryURL, loaded.RepositoryURL)
	require.Equal(t, cfg.SecretFile, loaded.SecretFile)

	// File exists.
	_, err = os.Stat(path)
	require.NoError(t, err)
}

// TestArchiveNaming pins the archive and manifest naming convention.
func TestArchiveNaming(t *testing.T) {
	t.Parallel()

	cfg := &Config{
		PackageName: "dcmtrans",
		VersionTag:  "0.2.3",
	}

	require.Equal(t, "dcmtrans-0.2.3.zip", cfg.ArchiveFilename())
	require.Equal(t, "dcmtrans-0.2.3-manifest.yaml", cfg.ManifestFilename())
}
