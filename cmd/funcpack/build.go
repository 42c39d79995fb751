package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/artpar/funcpack/internal/builder"
	"github.com/artpar/funcpack/internal/buildenv"
	"github.com/artpar/funcpack/internal/journal"
)

func newBuildCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "build",
		Short: "Run the full build pipeline",
		Long: `Clean the staging area, validate the handler, install the pinned
dependencies inside the build container, stage the handler, package the
archive, and verify it.`,
		RunE: runBuild,
	}
}

func runBuild(cmd *cobra.Command, args []string) error {
	a, err := setup()
	if err != nil {
		return err
	}

	env, err := buildenv.NewClient(a.cfg.Docker.Host)
	if err != nil {
		return fmt.Errorf("%w: %v", builder.ErrEnvironmentUnavailable, err)
	}
	defer env.Close()

	b, err := builder.New(a.workdir, a.manifest, env, builder.Options{
		StagingDir:   a.cfg.Build.StagingDir,
		Timeout:      a.cfg.Build.Timeout,
		StrictVerify: a.cfg.Build.StrictVerify,
	}, a.logger)
	if err != nil {
		return err
	}

	// A termination signal tears down the build container before exit.
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	build, buildErr := b.Run(ctx)
	a.recordBuild(build, buildErr)
	if buildErr != nil {
		return buildErr
	}

	fmt.Fprintf(cmd.OutOrStdout(), "archive %s (sha256 %s)\n", build.ArchivePath, build.Digest)
	return nil
}

// recordBuild writes the outcome to the journal. Journal trouble must not
// flip the result of a finished build, so failures only log.
func (a *app) recordBuild(build *builder.Build, buildErr error) {
	if !a.cfg.Journal.Enabled || build == nil {
		return
	}

	j, err := a.openJournal()
	if err != nil {
		a.logger.Warn("could not open build journal", "error", err)
		return
	}
	defer j.Close()

	entry := journal.Entry{
		ID:          build.ID,
		StartedAt:   build.StartedAt.UTC(),
		Status:      string(build.Status),
		Handler:     build.Handler,
		ArchivePath: build.ArchivePath,
		Digest:      build.Digest,
		DurationMS:  build.Duration.Milliseconds(),
	}
	if buildErr != nil {
		entry.Error = buildErr.Error()
	}

	if err := j.Record(context.Background(), entry); err != nil {
		a.logger.Warn("could not record build", "build_id", build.ID, "error", err)
	}
}
