package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/artpar/funcpack/internal/journal"
	"github.com/artpar/funcpack/internal/manifest"
)

var (
	cfgFile      string
	workdir      string
	manifestPath string
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "funcpack",
		Short: "Build deployment archives for Python serverless functions",
		Long: `funcpack installs a pinned dependency set inside a container that
matches the target runtime, stages the handler file, and zips the result
into a deployment archive.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "path to config file")
	root.PersistentFlags().StringVarP(&workdir, "workdir", "w", ".", "working directory the build operates on")
	root.PersistentFlags().StringVarP(&manifestPath, "manifest", "m", "funcpack.yaml", "build manifest, relative to the working directory")

	root.AddCommand(
		newBuildCmd(),
		newCleanCmd(),
		newVerifyCmd(),
		newHistoryCmd(),
		newPublishCmd(),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and exit",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "funcpack %s (built %s)\n", Version, BuildTime)
		},
	}
}

// =============================================================================
// Shared Command Setup
// =============================================================================

// app bundles the loaded config, logger, manifest, and resolved working
// directory that every build-family command needs.
type app struct {
	cfg      *Config
	logger   *slog.Logger
	manifest *manifest.Manifest
	workdir  string
}

func setup() (*app, error) {
	cfg, err := LoadConfig(cfgFile)
	if err != nil {
		return nil, err
	}
	logger := SetupLogger(cfg)

	abs, err := filepath.Abs(workdir)
	if err != nil {
		return nil, fmt.Errorf("resolve working directory: %w", err)
	}

	mPath := manifestPath
	if !filepath.IsAbs(mPath) {
		mPath = filepath.Join(abs, mPath)
	}
	m, err := manifest.Load(mPath)
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:      cfg,
		logger:   logger,
		manifest: m,
		workdir:  abs,
	}, nil
}

func (a *app) stagingPath() string {
	return filepath.Join(a.workdir, a.cfg.Build.StagingDir)
}

func (a *app) archivePath() string {
	return filepath.Join(a.workdir, a.manifest.Output)
}

// journalDSN resolves the journal path relative to the working directory
// so each project keeps its own history.
func (a *app) journalDSN() string {
	dsn := a.cfg.Journal.DSN
	if !filepath.IsAbs(dsn) {
		dsn = filepath.Join(a.workdir, dsn)
	}
	return dsn
}

func (a *app) openJournal() (*journal.Journal, error) {
	dsn := a.journalDSN()
	if err := os.MkdirAll(filepath.Dir(dsn), 0755); err != nil {
		return nil, fmt.Errorf("create journal directory: %w", err)
	}
	return journal.Open(dsn)
}
