// Package builder orchestrates deployment-archive builds: clean, validate,
// install dependencies in an isolated environment, stage the handler,
// package, verify.
package builder

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/artpar/funcpack/internal/archive"
	"github.com/artpar/funcpack/internal/buildenv"
	"github.com/artpar/funcpack/internal/manifest"
)

// =============================================================================
// Types
// =============================================================================

// Step identifies one stage of the build pipeline.
type Step string

const (
	StepClean     Step = "clean"
	StepValidate  Step = "validate"
	StepProvision Step = "provision"
	StepInstall   Step = "install"
	StepStage     Step = "stage"
	StepPackage   Step = "package"
	StepVerify    Step = "verify"
)

// Status is the terminal state of a build.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Environment provisions the isolated build containers. Satisfied by
// *buildenv.Client; tests substitute a fake.
type Environment interface {
	Ping(ctx context.Context) error
	EnsureImage(ctx context.Context, image string) error
	Run(ctx context.Context, spec buildenv.RunSpec) (*buildenv.RunResult, error)
}

// Options tune a build without changing what it produces.
type Options struct {
	// StagingDir is where dependencies and the handler are assembled,
	// relative to the working directory.
	StagingDir string

	// Timeout bounds the in-container dependency install. Zero means
	// no bound.
	Timeout time.Duration

	// StrictVerify makes a missing required file fail the build.
	// When false the miss is only logged.
	StrictVerify bool
}

// Build records the outcome of one pipeline run.
type Build struct {
	ID          string
	StartedAt   time.Time
	Duration    time.Duration
	Status      Status
	Handler     string
	ArchivePath string
	Digest      string // sha256 of the archive, hex
}

// Builder runs the pipeline for one working directory. A working
// directory is owned by a single build at a time; callers serialize.
type Builder struct {
	workdir  string
	manifest *manifest.Manifest
	env      Environment
	opts     Options
	logger   *slog.Logger
}

// containerWorkdir is where the working directory is mounted inside the
// build container. It matches the Lambda task root.
const containerWorkdir = "/var/task"

// DefaultStagingDir is used when Options.StagingDir is empty.
const DefaultStagingDir = "package"

// New creates a Builder. The working directory must exist; it is threaded
// explicitly rather than taken from the process CWD.
func New(workdir string, m *manifest.Manifest, env Environment, opts Options, logger *slog.Logger) (*Builder, error) {
	abs, err := filepath.Abs(workdir)
	if err != nil {
		return nil, fmt.Errorf("resolve working directory: %w", err)
	}
	if info, err := os.Stat(abs); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("working directory %s is not a directory", abs)
	}
	if opts.StagingDir == "" {
		opts.StagingDir = DefaultStagingDir
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{
		workdir:  abs,
		manifest: m,
		env:      env,
		opts:     opts,
		logger:   logger,
	}, nil
}

func (b *Builder) stagingPath() string {
	return filepath.Join(b.workdir, b.opts.StagingDir)
}

func (b *Builder) archivePath() string {
	return filepath.Join(b.workdir, b.manifest.Output)
}

// =============================================================================
// Pipeline
// =============================================================================

// Run executes the full pipeline. The first failing step aborts the rest;
// no partial archive is ever left at the output path.
func (b *Builder) Run(ctx context.Context) (*Build, error) {
	build := &Build{
		ID:          uuid.New().String(),
		StartedAt:   time.Now(),
		Status:      StatusFailed,
		Handler:     b.manifest.Handler,
		ArchivePath: b.archivePath(),
	}

	steps := []struct {
		step Step
		fn   func(context.Context, *Build) error
	}{
		{StepClean, b.clean},
		{StepValidate, b.validate},
		{StepProvision, b.provision},
		{StepInstall, b.install},
		{StepStage, b.stage},
		{StepPackage, b.pack},
		{StepVerify, b.verify},
	}

	for _, s := range steps {
		b.logger.Info("build step", "build_id", build.ID, "step", string(s.step))
		if err := s.fn(ctx, build); err != nil {
			build.Duration = time.Since(build.StartedAt)
			b.logger.Error("build failed",
				"build_id", build.ID,
				"step", string(s.step),
				"error", err,
			)
			return build, err
		}
	}

	build.Status = StatusSucceeded
	build.Duration = time.Since(build.StartedAt)
	b.logger.Info("build succeeded",
		"build_id", build.ID,
		"archive", build.ArchivePath,
		"sha256", build.Digest,
		"duration", build.Duration,
	)
	return build, nil
}

// clean removes the staging directory and any previous archive so the
// staging area is never reused across builds.
func (b *Builder) clean(ctx context.Context, build *Build) error {
	if err := os.RemoveAll(b.stagingPath()); err != nil {
		return NewStepError(StepClean, b.stagingPath(), err.Error(), err)
	}
	if err := os.Remove(b.archivePath()); err != nil && !os.IsNotExist(err) {
		return NewStepError(StepClean, b.archivePath(), err.Error(), err)
	}
	return nil
}

// validate checks the handler exists before any environment is spun up.
func (b *Builder) validate(ctx context.Context, build *Build) error {
	handler := filepath.Join(b.workdir, b.manifest.Handler)
	info, err := os.Stat(handler)
	if err != nil {
		if os.IsNotExist(err) {
			return NewStepError(StepValidate, b.workdir,
				fmt.Sprintf("%s not found in %s", b.manifest.Handler, b.workdir), ErrMissingHandler)
		}
		return NewStepError(StepValidate, handler, err.Error(), err)
	}
	if info.IsDir() {
		return NewStepError(StepValidate, handler, "handler is a directory", ErrMissingHandler)
	}
	return nil
}

// provision confirms the isolation mechanism is usable and the build
// image is available.
func (b *Builder) provision(ctx context.Context, build *Build) error {
	if err := b.env.Ping(ctx); err != nil {
		return NewStepError(StepProvision, "", err.Error(), ErrEnvironmentUnavailable)
	}
	if err := b.env.EnsureImage(ctx, b.manifest.Image); err != nil {
		return NewStepError(StepProvision, b.manifest.Image, err.Error(), ErrEnvironmentUnavailable)
	}
	return nil
}

// install runs the package manager inside the build container, targeting
// the staging directory through the mounted working directory.
func (b *Builder) install(ctx context.Context, build *Build) error {
	if b.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.opts.Timeout)
		defer cancel()
	}

	command := append(
		[]string{"pip", "install", "--no-cache-dir", "--target", b.opts.StagingDir},
		b.manifest.Requirements()...,
	)

	result, err := b.env.Run(ctx, buildenv.RunSpec{
		Name:       "funcpack-build-" + shortID(build.ID),
		Image:      b.manifest.Image,
		Command:    command,
		WorkingDir: containerWorkdir,
		Mounts: []buildenv.BindMount{
			{Source: b.workdir, Target: containerWorkdir},
		},
		Labels: map[string]string{"funcpack.build-id": build.ID},
	})
	if err != nil {
		msg := err.Error()
		if result != nil && result.Stderr != "" {
			msg = msg + ": " + lastLines(result.Stderr, 5)
		}
		return NewStepError(StepInstall, b.stagingPath(), msg, ErrDependencyInstall)
	}
	return nil
}

// stage copies the handler into the staging directory.
func (b *Builder) stage(ctx context.Context, build *Build) error {
	src := filepath.Join(b.workdir, b.manifest.Handler)
	dst := filepath.Join(b.stagingPath(), filepath.Base(b.manifest.Handler))

	if err := os.MkdirAll(b.stagingPath(), 0755); err != nil {
		return NewStepError(StepStage, b.stagingPath(), err.Error(), ErrStageCopy)
	}
	if err := copyFile(src, dst); err != nil {
		return NewStepError(StepStage, dst, err.Error(), ErrStageCopy)
	}
	return nil
}

// pack compresses the staging directory into the output archive and
// records its digest.
func (b *Builder) pack(ctx context.Context, build *Build) error {
	out := b.archivePath()
	if err := os.MkdirAll(filepath.Dir(out), 0755); err != nil {
		return NewStepError(StepPackage, out, err.Error(), ErrPackaging)
	}
	if err := archive.Create(out, b.stagingPath()); err != nil {
		return NewStepError(StepPackage, out, err.Error(), ErrPackaging)
	}

	digest, err := archive.Digest(out)
	if err != nil {
		return NewStepError(StepPackage, out, err.Error(), ErrPackaging)
	}
	build.Digest = digest
	return nil
}

// verify confirms the archive exists and, when the manifest asks for it,
// that specific files made it in (the binary-compatibility probe).
func (b *Builder) verify(ctx context.Context, build *Build) error {
	return Verify(b.archivePath(), b.manifest.RequiredFiles, b.opts.StrictVerify, b.logger)
}

// Verify checks an archive on disk. Exported so the verification step can
// run on its own against an existing artifact.
func Verify(path string, requiredFiles []string, strict bool, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	if _, err := os.Stat(path); err != nil {
		return NewStepError(StepVerify, path, "archive does not exist", ErrVerificationFailed)
	}

	for _, name := range requiredFiles {
		found, err := archive.Contains(path, name)
		if err != nil {
			return NewStepError(StepVerify, path, err.Error(), ErrVerificationFailed)
		}
		if !found {
			if strict {
				return NewStepError(StepVerify, path,
					fmt.Sprintf("required file %s missing from archive", name), ErrVerificationFailed)
			}
			logger.Warn("required file missing from archive", "archive", path, "file", name)
		}
	}
	return nil
}

// =============================================================================
// Helpers
// =============================================================================

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	return out.Close()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, " | ")
}
