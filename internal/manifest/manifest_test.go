package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Parsing Tests
// =============================================================================

func TestParse_FullManifest(t *testing.T) {
	m, err := Parse([]byte(`
handler: handler.py
dependencies:
  - pandas==2.2.2
  - jinja2==3.1.4
output: dist/function.zip
image: public.ecr.aws/sam/build-python3.12:latest
required_files:
  - pandas/_libs/interval.cpython-312-x86_64-linux-gnu.so
`))
	require.NoError(t, err)

	assert.Equal(t, "handler.py", m.Handler)
	assert.Equal(t, "dist/function.zip", m.Output)
	assert.Equal(t, "public.ecr.aws/sam/build-python3.12:latest", m.Image)
	require.Len(t, m.Dependencies, 2)
	assert.Equal(t, Dependency{Name: "pandas", Version: "2.2.2"}, m.Dependencies[0])
	assert.Equal(t, []string{"pandas==2.2.2", "jinja2==3.1.4"}, m.Requirements())
	assert.Equal(t, []string{"pandas/_libs/interval.cpython-312-x86_64-linux-gnu.so"}, m.RequiredFiles)
}

func TestParse_Defaults(t *testing.T) {
	m, err := Parse([]byte(`
handler: handler.py
dependencies:
  - requests==2.32.3
`))
	require.NoError(t, err)

	assert.Equal(t, DefaultOutput, m.Output)
	assert.Equal(t, DefaultImage, m.Image)
	assert.Empty(t, m.RequiredFiles)
}

func TestParse_RejectsUnpinnedDependencies(t *testing.T) {
	tests := []struct {
		name string
		req  string
	}{
		{"no version", "pandas"},
		{"range pin", "pandas>=2.0"},
		{"compatible release", "pandas~=2.2"},
		{"wildcard", "pandas==2.*"},
		{"empty version", "pandas=="},
		{"empty name", "==2.2.2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte("handler: handler.py\ndependencies:\n  - \"" + tt.req + "\"\n"))
			assert.ErrorIs(t, err, ErrUnpinnedDependency)
		})
	}
}

func TestParse_RejectsMissingFields(t *testing.T) {
	_, err := Parse([]byte("dependencies:\n  - requests==2.32.3\n"))
	assert.ErrorIs(t, err, ErrNoHandler)

	_, err = Parse([]byte("handler: handler.py\n"))
	assert.ErrorIs(t, err, ErrNoDependencies)
}

func TestParse_InvalidYAML(t *testing.T) {
	_, err := Parse([]byte("handler: [unclosed"))
	assert.Error(t, err)
}

// =============================================================================
// File Loading Tests
// =============================================================================

func TestLoad_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "funcpack.yaml")
	require.NoError(t, os.WriteFile(path, []byte("handler: handler.py\ndependencies:\n  - jinja2==3.1.4\n"), 0644))

	m, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "handler.py", m.Handler)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
