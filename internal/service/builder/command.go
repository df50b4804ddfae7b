package builder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"

	"github.com/oshokin/dcmtrans-packager/internal/config"
	"github.com/oshokin/dcmtrans-packager/internal/logger"
)

// lfsSkipSmudge disables the LFS checkout filter so the build fetch does not
// pull large binary blobs it has no use for.
const lfsSkipSmudge = "GIT_LFS_SKIP_SMUDGE=1"

// BuildError reports a failed build subprocess. It carries the captured
// combined output with the credential already redacted.
type BuildError struct {
	// ExitCode is the subprocess exit status, or -1 when it could not start.
	ExitCode int
	// Output is the redacted combined stdout and stderr of the subprocess.
	Output string
	// cause is the underlying exec error.
	cause error
}

// Error renders the failure without exposing the captured output,
// which may be large; callers log Output separately.
func (e *BuildError) Error() string {
	return fmt.Sprintf("build step failed with exit code %d: %v", e.ExitCode, e.cause)
}

// Unwrap exposes the underlying exec error for errors.Is/As checks.
func (e *BuildError) Unwrap() error {
	return e.cause
}

// Run invokes the external build tool against the authenticated source
// locator, producing wheel artifacts in the build directory. It blocks
// until the subprocess finishes, bounded by the configured build timeout.
// A non-zero exit returns *BuildError.
func Run(ctx context.Context, cfg *config.Config) error {
	locator, secret, err := Locator(cfg)
	if err != nil {
		return err
	}

	// A zero timeout leaves the wait bounded only by the caller's context.
	if cfg.BuildTimeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, cfg.BuildTimeout)
		defer cancel()
	}

	//nolint:gosec // The build tool and its arguments come from validated configuration.
	cmd := exec.CommandContext(ctx, cfg.BuildTool,
		"wheel", "--no-deps", "--wheel-dir", cfg.BuildDir, locator)
	cmd.Env = append(os.Environ(), lfsSkipSmudge)

	logger.InfoKV(ctx, "Running build step",
		"tool", cfg.BuildTool,
		"locator", Redact(locator, secret),
		"build_dir", cfg.BuildDir)

	output, err := cmd.CombinedOutput()
	if err != nil {
		buildErr := &BuildError{
			ExitCode: -1,
			Output:   Redact(string(output), secret),
			cause:    err,
		}

		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			buildErr.ExitCode = exitErr.ExitCode()
		}

		return buildErr
	}

	logger.DebugKV(ctx, "Build step finished", "output", Redact(string(output), secret))

	return nil
}
