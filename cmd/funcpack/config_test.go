package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artpar/funcpack/internal/builder"
	"github.com/artpar/funcpack/internal/manifest"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, env := range os.Environ() {
		if strings.HasPrefix(env, "FUNCPACK_") {
			key := strings.SplitN(env, "=", 2)[0]
			t.Setenv(key, "")
		}
	}
}

// =============================================================================
// Config Loading Tests
// =============================================================================

func TestLoadConfig_DefaultValues(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "", cfg.Docker.Host)
	assert.Equal(t, "package", cfg.Build.StagingDir)
	assert.Equal(t, 10*time.Minute, cfg.Build.Timeout)
	assert.True(t, cfg.Build.StrictVerify)
	assert.True(t, cfg.Journal.Enabled)
	assert.Equal(t, filepath.Join(".funcpack", "builds.db"), filepath.FromSlash(cfg.Journal.DSN))
	assert.Equal(t, "us-east-1", cfg.Publish.Region)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
}

func TestLoadConfig_FromFile(t *testing.T) {
	clearEnv(t)

	configContent := `
docker:
  host: "tcp://127.0.0.1:2375"

build:
  staging_dir: "stage"
  timeout: 3m
  strict_verify: false

journal:
  enabled: false

publish:
  bucket: "deploy-bucket"
  key_prefix: "lambda"
  region: "eu-west-1"

log:
  level: "debug"
  format: "json"
`
	tmpFile := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(tmpFile, []byte(configContent), 0644))

	cfg, err := LoadConfig(tmpFile)
	require.NoError(t, err)

	assert.Equal(t, "tcp://127.0.0.1:2375", cfg.Docker.Host)
	assert.Equal(t, "stage", cfg.Build.StagingDir)
	assert.Equal(t, 3*time.Minute, cfg.Build.Timeout)
	assert.False(t, cfg.Build.StrictVerify)
	assert.False(t, cfg.Journal.Enabled)
	assert.Equal(t, "deploy-bucket", cfg.Publish.Bucket)
	assert.Equal(t, "eu-west-1", cfg.Publish.Region)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	clearEnv(t)
	t.Setenv("FUNCPACK_BUILD_TIMEOUT", "5m")
	t.Setenv("FUNCPACK_PUBLISH_BUCKET", "env-bucket")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, 5*time.Minute, cfg.Build.Timeout)
	assert.Equal(t, "env-bucket", cfg.Publish.Bucket)
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "package", cfg.Build.StagingDir)
}

// =============================================================================
// Exit Code Tests
// =============================================================================

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"missing handler", builder.ErrMissingHandler, ExitValidationError},
		{"unpinned dependency", manifest.ErrUnpinnedDependency, ExitValidationError},
		{"environment unavailable", builder.ErrEnvironmentUnavailable, ExitEnvironmentError},
		{"install failure", builder.ErrDependencyInstall, ExitBuildError},
		{"stage failure", builder.ErrStageCopy, ExitBuildError},
		{"packaging failure", builder.ErrPackaging, ExitBuildError},
		{"verification failure", builder.ErrVerificationFailed, ExitVerificationError},
		{"publish failure", errPublish, ExitPublishError},
		{"unknown", os.ErrPermission, ExitConfigError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}

func TestExitCode_WrappedStepError(t *testing.T) {
	err := builder.NewStepError(builder.StepVerify, "out.zip", "archive does not exist", builder.ErrVerificationFailed)
	assert.Equal(t, ExitVerificationError, exitCode(err))
}
