// Package manifest loads and validates the build manifest that describes
// what goes into a deployment archive.
package manifest

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// Errors
// =============================================================================

var (
	ErrNoHandler          = errors.New("manifest does not name a handler file")
	ErrNoDependencies     = errors.New("manifest does not list any dependencies")
	ErrUnpinnedDependency = errors.New("dependency is not pinned to an exact version")
	ErrNoImage            = errors.New("manifest does not name a build image")
)

// =============================================================================
// Types
// =============================================================================

// Dependency is a single third-party library pinned to an exact version.
type Dependency struct {
	Name    string
	Version string
}

// Requirement returns the dependency in package-manager requirement form.
func (d Dependency) Requirement() string {
	return d.Name + "==" + d.Version
}

func (d Dependency) String() string {
	return d.Requirement()
}

// Manifest describes one deployment archive build.
type Manifest struct {
	// Handler is the entry-point source file, relative to the working
	// directory.
	Handler string `yaml:"handler"`

	// Dependencies are the third-party libraries installed into the
	// staging directory. Every entry must be pinned (name==version).
	Dependencies []Dependency `yaml:"-"`

	// Output is the archive path, relative to the working directory.
	Output string `yaml:"output"`

	// Image is the container image the dependencies are installed in.
	// It must match the target runtime's interpreter and OS libraries.
	Image string `yaml:"image"`

	// RequiredFiles are archive paths whose presence the verification
	// step confirms, e.g. a compiled extension proving the build
	// variant matches the target processor and OS.
	RequiredFiles []string `yaml:"required_files"`
}

// rawManifest mirrors Manifest but keeps dependencies as the raw
// requirement strings they are written as in YAML.
type rawManifest struct {
	Handler       string   `yaml:"handler"`
	Dependencies  []string `yaml:"dependencies"`
	Output        string   `yaml:"output"`
	Image         string   `yaml:"image"`
	RequiredFiles []string `yaml:"required_files"`
}

// =============================================================================
// Loading
// =============================================================================

// Defaults applied when the manifest omits optional fields.
const (
	DefaultOutput = "out.zip"
	DefaultImage  = "public.ecr.aws/sam/build-python3.12:latest"
)

// Load reads and validates a manifest file.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest %s: %w", path, err)
	}
	return Parse(data)
}

// Parse validates manifest YAML.
func Parse(data []byte) (*Manifest, error) {
	var raw rawManifest
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}

	m := &Manifest{
		Handler:       raw.Handler,
		Output:        raw.Output,
		Image:         raw.Image,
		RequiredFiles: raw.RequiredFiles,
	}
	if m.Output == "" {
		m.Output = DefaultOutput
	}
	if m.Image == "" {
		m.Image = DefaultImage
	}

	for _, req := range raw.Dependencies {
		dep, err := parseDependency(req)
		if err != nil {
			return nil, err
		}
		m.Dependencies = append(m.Dependencies, dep)
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// Validate checks the manifest invariants.
func (m *Manifest) Validate() error {
	if strings.TrimSpace(m.Handler) == "" {
		return ErrNoHandler
	}
	if len(m.Dependencies) == 0 {
		return ErrNoDependencies
	}
	if strings.TrimSpace(m.Image) == "" {
		return ErrNoImage
	}
	return nil
}

// Requirements returns all dependencies in requirement form, in manifest
// order.
func (m *Manifest) Requirements() []string {
	reqs := make([]string, len(m.Dependencies))
	for i, d := range m.Dependencies {
		reqs[i] = d.Requirement()
	}
	return reqs
}

// parseDependency parses a pinned requirement of the form name==version.
// Unpinned entries are rejected so builds stay reproducible.
func parseDependency(req string) (Dependency, error) {
	req = strings.TrimSpace(req)
	name, version, found := strings.Cut(req, "==")
	name = strings.TrimSpace(name)
	version = strings.TrimSpace(version)
	if !found || name == "" || version == "" {
		return Dependency{}, fmt.Errorf("%q: %w", req, ErrUnpinnedDependency)
	}
	if strings.ContainsAny(version, "<>=*") {
		return Dependency{}, fmt.Errorf("%q: %w", req, ErrUnpinnedDependency)
	}
	return Dependency{Name: name, Version: version}, nil
}
