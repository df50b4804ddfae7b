package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/dcmtrans-packager/internal/config"
	"github.com/oshokin/dcmtrans-packager/internal/logger"
	"github.com/oshokin/dcmtrans-packager/internal/service/packager"
	"github.com/oshokin/dcmtrans-packager/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// repositoryURL of the source repository to build from.
	repositoryURL string
	// secretFile holding the repository access token.
	secretFile string
	// outputDir where the archive and manifest are written.
	outputDir string
	// buildDir holding build artifacts before archiving.
	buildDir string
	// buildTool producing the wheel artifact.
	buildTool string
	// logLevel for console output.
	logLevel string

	// rootCmd represents the base command for packaging a release.
	rootCmd = &cobra.Command{
		Use:   "dcmtrans-packager [package-name] [version-tag]",
		Short: "Build and archive a release of the dcmtrans library.",
		Long: `Produces a single distributable archive for a release of the dcmtrans library.

The run prepares the output and build directories, purges stale artifacts,
invokes the external wheel build against the configured repository (with LFS
smudging disabled), prunes duplicate build outputs by name prefix, and zips
the survivors into <package>-<version>.zip next to a checksum manifest.
Package name and version tag can come from arguments or the settings file;
arguments take precedence. The run is strictly sequential and aborts at the
first failing step.`,
		Args: cobra.MaximumNArgs(2),
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			if lvl, ok := logger.ParseLogLevel(logLevel); ok {
				logger.SetLevel(lvl)
			}
		},
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			// Positional arguments override the settings file.
			var packageName, versionTag string
			if len(args) > 0 {
				packageName = args[0]
			}

			if len(args) > 1 {
				versionTag = args[1]
			}

			options := &packager.Options{
				ConfigPath:    configPath,
				PackageName:   packageName,
				VersionTag:    versionTag,
				RepositoryURL: repositoryURL,
				SecretFile:    secretFile,
				OutputDir:     outputDir,
				BuildDir:      buildDir,
				BuildTool:     buildTool,
			}

			return packager.Run(ctx, options)
		},
	}
)

// Execute runs the dcmtrans-packager CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.Flags().StringVarP(&repositoryURL, "repository", "r", "", "source repository URL to build from")
	// Default stays empty so a secret_file from the settings file survives;
	// validation falls back to the conventional git_secret location.
	rootCmd.Flags().StringVarP(&secretFile, "secret-file", "s", "", "path to the repository token file")
	rootCmd.Flags().StringVarP(&outputDir, "output-dir", "o", "", "directory for the archive and manifest")
	rootCmd.Flags().StringVarP(&buildDir, "build-dir", "b", "", "transient directory for build artifacts")
	rootCmd.Flags().StringVarP(&buildTool, "build-tool", "t", "", "executable producing the wheel artifact")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "info", "logging level (debug, info, warn, error)")
}
