package packager

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/dcmtrans-packager/internal/config"
	"github.com/oshokin/dcmtrans-packager/internal/repository/artifact"
)

// newTestPackager builds a packager around temp directories without
// touching the run marker or the settings file.
func newTestPackager(t *testing.T) *packager {
	t.Helper()

	root := t.TempDir()
	cfg := &config.Config{
		PackageName:   "dcmtrans",
		VersionTag:    "0.2.3",
		RepositoryURL: "https://example.com/r/dcmtrans.git",
		OutputDir:     filepath.Join(root, "dist"),
		BuildDir:      filepath.Join(root, "dist", "build"),
		BuildTimeout:  time.Minute,
	}
	require.NoError(t, config.Validate(cfg))

	return &packager{
		cfg:   cfg,
		store: artifact.NewFileStore(cfg.BuildDir),
	}
}

// touch creates an empty file, making parent directories as needed.
func touch(t *testing.T, path string) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("artifact"), 0o644))
}

// TestPrepareDirectoriesIdempotent verifies that preparing directories twice
// produces no error and both directories exist afterwards.
func TestPrepareDirectoriesIdempotent(t *testing.T) {
	t.Parallel()

	pkg := newTestPackager(t)
	ctx := context.Background()

	require.NoError(t, pkg.prepareDirectories(ctx))
	require.NoError(t, pkg.prepareDirectories(ctx))

	for _, dir := range []string{pkg.cfg.OutputDir, pkg.cfg.BuildDir} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		require.True(t, info.IsDir())
	}
}

// TestPurgeStaleArtifacts removes files matching the package name anywhere
// under the build directory and keeps everything else.
func TestPurgeStaleArtifacts(t *testing.T) {
	t.Parallel()

	pkg := newTestPackager(t)
	ctx := context.Background()

	touch(t, filepath.Join(pkg.cfg.BuildDir, "dcmtrans-0.2.1-py3-none-any.whl"))
	touch(t, filepath.Join(pkg.cfg.BuildDir, "nested", "dcmtrans-0.2.0-py3-none-any.whl"))
	touch(t, filepath.Join(pkg.cfg.BuildDir, "unrelated-1.0.0.whl"))

	require.NoError(t, pkg.purgeStaleArtifacts(ctx))

	files, err := pkg.store.Files(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"unrelated-1.0.0.whl"}, files)
}

// TestPruneDuplicatesKeepsLastInSortOrder pins the tie-break: of two wheels
// sharing the "dcmtrans" prefix, the lexicographically later one survives.
func TestPruneDuplicatesKeepsLastInSortOrder(t *testing.T) {
	t.Parallel()

	pkg := newTestPackager(t)
	ctx := context.Background()

	touch(t, filepath.Join(pkg.cfg.BuildDir, "dcmtrans-0.2.2-py3-none-any.whl"))
	touch(t, filepath.Join(pkg.cfg.BuildDir, "dcmtrans-0.2.3-py3-none-any.whl"))
	touch(t, filepath.Join(pkg.cfg.BuildDir, "unrelated-1.0.0.whl"))

	require.NoError(t, pkg.pruneDuplicates(ctx))

	files, err := pkg.store.Files(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"dcmtrans-0.2.3-py3-none-any.whl", "unrelated-1.0.0.whl"}, files)
}

// TestPruneDuplicatesManyPerPrefix keeps exactly one survivor per prefix.
func TestPruneDuplicatesManyPerPrefix(t *testing.T) {
	t.Parallel()

	pkg := newTestPackager(t)
	ctx := context.Background()

	for _, name := range []string{
		"dcmtrans-0.1.0-py3-none-any.whl",
		"dcmtrans-0.2.2-py3-none-any.whl",
		"dcmtrans-0.2.3-py3-none-any.whl",
		"numpy-1.24.0-cp311-abi3-any.whl",
		"numpy-1.26.0-cp311-abi3-any.whl",
	} {
		touch(t, filepath.Join(pkg.cfg.BuildDir, name))
	}

	require.NoError(t, pkg.pruneDuplicates(ctx))

	files, err := pkg.store.Files(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{
		"dcmtrans-0.2.3-py3-none-any.whl",
		"numpy-1.26.0-cp311-abi3-any.whl",
	}, files)
}

// TestPruneDuplicatesSkipsDirectories leaves nested directories alone.
func TestPruneDuplicatesSkipsDirectories(t *testing.T) {
	t.Parallel()

	pkg := newTestPackager(t)
	ctx := context.Background()

	touch(t, filepath.Join(pkg.cfg.BuildDir, "dcmtrans-0.2.3-py3-none-any.whl"))
	touch(t, filepath.Join(pkg.cfg.BuildDir, "dcmtrans-extras", "readme.txt"))

	require.NoError(t, pkg.pruneDuplicates(ctx))

	files, err := pkg.store.Files(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"dcmtrans-0.2.3-py3-none-any.whl", "dcmtrans-extras/readme.txt"}, files)
}

// TestManifestRoundtrip writes a manifest and checks checksum behavior.
func TestManifestRoundtrip(t *testing.T) {
	t.Parallel()

	pkg := newTestPackager(t)

	wheel := filepath.Join(pkg.cfg.BuildDir, "dcmtrans-0.2.3-py3-none-any.whl")
	touch(t, wheel)

	checksum, err := GetFileChecksum(wheel)
	require.NoError(t, err)
	require.NotEmpty(t, checksum)

	// Identical content yields an identical checksum.
	again, err := GetFileChecksum(wheel)
	require.NoError(t, err)
	require.Equal(t, checksum, again)

	manifest := NewManifest(pkg.cfg)
	manifest.Files["dcmtrans-0.2.3-py3-none-any.whl"] = checksum

	path := filepath.Join(t.TempDir(), pkg.cfg.ManifestFilename())
	require.NoError(t, manifest.Save(path))

	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(contents), "dcmtrans-0.2.3-py3-none-any.whl")
	require.Contains(t, string(contents), "dcmtrans-0.2.3.zip")
}

// TestResolveConfigOverrides merges CLI overrides over a settings file.
func TestResolveConfigOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "settings.yaml")

	stored := &config.Config{
		PackageName:   "dcmtrans",
		VersionTag:    "0.2.2",
		RepositoryURL: "https://example.com/r/dcmtrans.git",
	}
	require.NoError(t, config.Save(path, stored))

	cfg, err := resolveConfig(&Options{
		ConfigPath: path,
		VersionTag: "0.2.3",
	})
	require.NoError(t, err)
	require.Equal(t, "dcmtrans", cfg.PackageName)
	require.Equal(t, "0.2.3", cfg.VersionTag)
}

// TestResolveConfigKeepsStoredSecretFile ensures a secret_file from the
// settings file survives when no override is passed.
func TestResolveConfigKeepsStoredSecretFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "settings.yaml")
	secretPath := filepath.Join(dir, "team-token")

	stored := &config.Config{
		PackageName:   "dcmtrans",
		VersionTag:    "0.2.3",
		RepositoryURL: "https://example.com/r/dcmtrans.git",
		SecretFile:    secretPath,
	}
	require.NoError(t, config.Save(path, stored))

	cfg, err := resolveConfig(&Options{ConfigPath: path})
	require.NoError(t, err)
	require.Equal(t, secretPath, cfg.SecretFile)
}

// TestResolveConfigUnreadableSettings fails the run when the settings file
// exists but cannot be inspected, instead of degrading to defaults.
func TestResolveConfigUnreadableSettings(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	// A regular file in the path's parent position makes Stat fail with
	// an error that is not ErrNotExist.
	parent := filepath.Join(dir, "settings.yaml")
	require.NoError(t, os.WriteFile(parent, []byte("package_name: dcmtrans"), 0o600))

	_, err := resolveConfig(&Options{
		ConfigPath: filepath.Join(parent, "nested.yaml"),
	})
	require.Error(t, err)
	require.NotErrorIs(t, err, os.ErrNotExist)
}

// TestNewPackagerReleasesMarkerOnSaveFailure ensures a failed settings save
// does not leave the run marker behind.
func TestNewPackagerReleasesMarkerOnSaveFailure(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	cfg := &config.Config{
		PackageName:   "dcmtrans",
		VersionTag:    "0.2.3",
		RepositoryURL: "https://example.com/r/dcmtrans.git",
	}
	require.NoError(t, config.Validate(cfg))

	// Saving over a directory fails after the marker has been written.
	settingsDir := filepath.Join(dir, "settings.yaml")
	require.NoError(t, os.Mkdir(settingsDir, 0o755))

	_, err := newPackager(context.Background(), settingsDir, cfg)
	require.Error(t, err)

	_, err = os.Stat(MarkerFilename)
	require.ErrorIs(t, err, os.ErrNotExist)
}
