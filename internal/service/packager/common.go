package packager

import (
	"context"
	"crypto"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/mitchellh/go-ps"
	"gopkg.in/yaml.v3"

	"github.com/oshokin/dcmtrans-packager/internal/config"
	"github.com/oshokin/dcmtrans-packager/internal/logger"
	"github.com/oshokin/dcmtrans-packager/internal/version"

	// Ensure SHA512 available for checksum calculation.
	_ "crypto/sha512"
)

var errHashUnavailable = errors.New("hash function unavailable")

const (
	// MarkerFilename marks that a packaging run is in progress to avoid parallel execution.
	MarkerFilename = "dcmtrans-packager-marker.bin"

	// artifactDirMode is used when preparing the output and build directories.
	artifactDirMode os.FileMode = 0o755

	// checksumFunction is used to calculate artifact hashes for the manifest.
	checksumFunction crypto.Hash = crypto.SHA512

	// basePackagerExecutable is the binary name; platform helpers append the extension.
	basePackagerExecutable = "dcmtrans-packager"

	// markerLifetime is the period after which a stale run marker is ignored.
	// It exceeds the longest allowed build so a live run is never mistaken for a dead one.
	markerLifetime = 30 * time.Minute

	// defaultMapCapacity is the default initial capacity for maps.
	defaultMapCapacity = 16
)

// Manifest describes one published release: the archive it produced and the
// checksums of every artifact packaged into it.
type Manifest struct {
	// PackageName is the released library.
	PackageName string `yaml:"package"`
	// VersionTag is the released version.
	VersionTag string `yaml:"version"`
	// PackagerVersion records which packager build produced the release.
	PackagerVersion string `yaml:"packager_version"`
	// Archive is the file name of the release archive.
	Archive string `yaml:"archive"`
	// Files maps archived paths to their base64-encoded checksums.
	Files map[string]string `yaml:"files"`
}

// NewManifest produces a Manifest initialized from the release configuration.
func NewManifest(cfg *config.Config) *Manifest {
	return &Manifest{
		PackageName:     cfg.PackageName,
		VersionTag:      cfg.VersionTag,
		PackagerVersion: version.Short(),
		Archive:         cfg.ArchiveFilename(),
		Files:           make(map[string]string, defaultMapCapacity),
	}
}

// Save writes the manifest to the provided path in YAML format.
func (m *Manifest) Save(path string) error {
	contents, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}

	if err = os.WriteFile(filepath.Clean(path), contents, config.DefaultFilePermissions); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}

	return nil
}

// GetFileChecksum returns the base64-encoded checksum of a file.
func GetFileChecksum(path string) (string, error) {
	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}

	if !checksumFunction.Available() {
		return "", fmt.Errorf("checksum calculation not possible: %w", errHashUnavailable)
	}

	hasher := checksumFunction.New()
	if _, err = hasher.Write(contents); err != nil {
		return "", fmt.Errorf("calculate checksum: %w", err)
	}

	return base64.StdEncoding.EncodeToString(hasher.Sum(nil)), nil
}

// writeMarker creates the run marker file.
func writeMarker() error {
	marker, err := os.Create(MarkerFilename)
	if err != nil {
		return fmt.Errorf("create run marker: %w", err)
	}

	if err = marker.Close(); err != nil {
		return fmt.Errorf("close run marker: %w", err)
	}

	return nil
}

// IsPackagerRunningNow checks presence of the run marker and attempts recovery if it looks stale.
func IsPackagerRunningNow(ctx context.Context) bool {
	logger.Debug(ctx, "Checking for the presence of a run marker")

	fileInfo, err := os.Stat(MarkerFilename)
	if err == nil {
		if time.Since(fileInfo.ModTime()) <= markerLifetime {
			return true
		}

		logger.Info(ctx, "The run marker is too old, attempting cleanup")

		if err = terminateProcessByName(packagerExecutable()); err != nil {
			return true
		}

		if err = os.Remove(MarkerFilename); err != nil {
			return true
		}

		return false
	}

	if errors.Is(err, os.ErrNotExist) {
		return false
	}

	logger.Infof(ctx, "Unable to read run marker: %v", err)

	return false
}

// terminateProcessByName tries to kill processes with the provided executable name.
func terminateProcessByName(processName string) error {
	processList, err := ps.Processes()
	if err != nil {
		return err
	}

	thisProcessID := os.Getpid()

	for _, process := range processList {
		if process.Pid() == thisProcessID {
			continue
		}

		if process.Executable() != processName {
			continue
		}

		var runningProcess *os.Process

		runningProcess, err = os.FindProcess(process.Pid())
		if err != nil {
			return err
		}

		if err = runningProcess.Kill(); err != nil {
			return err
		}
	}

	return nil
}

// getExecutableExtension returns ".exe" on Windows and "" elsewhere.
func getExecutableExtension() string {
	if strings.Contains(strings.ToLower(runtime.GOOS), "windows") {
		return ".exe"
	}

	return ""
}

func packagerExecutable() string {
	return basePackagerExecutable + getExecutableExtension()
}
