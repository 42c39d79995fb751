package buildenv

// =============================================================================
// Run Types
// =============================================================================

// BindMount maps a host directory into the build container.
type BindMount struct {
	Source   string // absolute host path
	Target   string // container path
	ReadOnly bool
}

// RunSpec describes one synchronous container run.
type RunSpec struct {
	Name       string
	Image      string
	Command    []string
	WorkingDir string
	Env        map[string]string
	Labels     map[string]string
	Mounts     []BindMount
}

// RunResult holds the outcome of a completed container run.
type RunResult struct {
	ExitCode int64
	Stdout   string
	Stderr   string
}
