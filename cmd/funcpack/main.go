package main

import (
	"errors"
	"os"

	"github.com/artpar/funcpack/internal/builder"
	"github.com/artpar/funcpack/internal/journal"
	"github.com/artpar/funcpack/internal/manifest"
)

// Version information (set by build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// =============================================================================
// Exit Codes
// =============================================================================

const (
	ExitSuccess           = 0
	ExitConfigError       = 1
	ExitValidationError   = 2
	ExitEnvironmentError  = 3
	ExitBuildError        = 4
	ExitVerificationError = 5
	ExitJournalError      = 6
	ExitPublishError      = 7
)

func main() {
	os.Exit(run())
}

func run() int {
	if err := newRootCmd().Execute(); err != nil {
		return exitCode(err)
	}
	return ExitSuccess
}

// exitCode maps a pipeline error to the process exit code.
func exitCode(err error) int {
	switch {
	case errors.Is(err, builder.ErrMissingHandler),
		errors.Is(err, manifest.ErrNoHandler),
		errors.Is(err, manifest.ErrNoDependencies),
		errors.Is(err, manifest.ErrNoImage),
		errors.Is(err, manifest.ErrUnpinnedDependency):
		return ExitValidationError
	case errors.Is(err, builder.ErrEnvironmentUnavailable):
		return ExitEnvironmentError
	case errors.Is(err, builder.ErrDependencyInstall),
		errors.Is(err, builder.ErrStageCopy),
		errors.Is(err, builder.ErrPackaging):
		return ExitBuildError
	case errors.Is(err, builder.ErrVerificationFailed):
		return ExitVerificationError
	case errors.Is(err, journal.ErrNotFound),
		errors.Is(err, journal.ErrConnectionFailed),
		errors.Is(err, journal.ErrMigrationFailed):
		return ExitJournalError
	case errors.Is(err, errPublish):
		return ExitPublishError
	default:
		return ExitConfigError
	}
}
