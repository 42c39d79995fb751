// Package buildenv provisions disposable Docker containers that match the
// target runtime, used to install dependencies with the right binary
// variant.
package buildenv

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	specs "github.com/opencontainers/image-spec/specs-go/v1"
)

// api is the slice of the Docker SDK the build environment needs. Tests
// substitute a fake.
type api interface {
	Ping(ctx context.Context) (types.Ping, error)
	ImageInspectWithRaw(ctx context.Context, imageName string) (types.ImageInspect, []byte, error)
	ImagePull(ctx context.Context, ref string, opts image.PullOptions) (io.ReadCloser, error)
	ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *specs.Platform, containerName string) (container.CreateResponse, error)
	ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error
	ContainerWait(ctx context.Context, containerID string, condition container.WaitCondition) (<-chan container.WaitResponse, <-chan error)
	ContainerLogs(ctx context.Context, containerID string, options container.LogsOptions) (io.ReadCloser, error)
	ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error
	Close() error
}

// =============================================================================
// Client
// =============================================================================

// Client runs build commands in disposable containers.
type Client struct {
	cli api
}

// NewClient creates a new build environment client.
// If host is empty, it uses the default Docker host from environment.
// On macOS with Docker Desktop, it automatically detects the correct socket.
func NewClient(host string) (*Client, error) {
	var opts []client.Opt
	opts = append(opts, client.FromEnv)
	opts = append(opts, client.WithAPIVersionNegotiation())

	if host != "" {
		opts = append(opts, client.WithHost(host))
	}

	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, NewEnvError("NewClient", "", "", "failed to create client", ErrConnectionFailed)
	}

	// Try to ping with default settings
	ctx := context.Background()
	if _, pingErr := cli.Ping(ctx); pingErr != nil {
		// If default socket fails, try Docker Desktop socket on macOS
		homeDir, _ := os.UserHomeDir()
		dockerDesktopSocket := "unix://" + homeDir + "/.docker/run/docker.sock"

		cli2, err2 := client.NewClientWithOpts(
			client.WithHost(dockerDesktopSocket),
			client.WithAPIVersionNegotiation(),
		)
		if err2 == nil {
			if _, pingErr2 := cli2.Ping(ctx); pingErr2 == nil {
				cli.Close()
				return &Client{cli: cli2}, nil
			}
			cli2.Close()
		}
	}

	return &Client{cli: cli}, nil
}

// Ping checks if the Docker daemon is reachable.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.cli.Ping(ctx)
	if err != nil {
		return NewEnvError("Ping", "", "", fmt.Sprintf("failed to ping docker: %v", err), ErrConnectionFailed)
	}
	return nil
}

// Close closes the underlying client connection.
func (c *Client) Close() error {
	return c.cli.Close()
}

// =============================================================================
// Image Operations
// =============================================================================

// EnsureImage makes the image available locally, pulling it if absent.
func (c *Client) EnsureImage(ctx context.Context, imageName string) error {
	_, _, err := c.cli.ImageInspectWithRaw(ctx, imageName)
	if err == nil {
		return nil
	}
	if !client.IsErrNotFound(err) {
		return NewEnvError("EnsureImage", "image", imageName, err.Error(), err)
	}

	reader, err := c.cli.ImagePull(ctx, imageName, image.PullOptions{})
	if err != nil {
		errStr := err.Error()
		if strings.Contains(errStr, "not found") ||
			strings.Contains(errStr, "manifest unknown") ||
			strings.Contains(errStr, "repository does not exist") ||
			strings.Contains(errStr, "pull access denied") {
			return NewEnvError("EnsureImage", "image", imageName, "image not found", ErrImageNotFound)
		}
		return NewEnvError("EnsureImage", "image", imageName, err.Error(), ErrImagePullFailed)
	}
	defer reader.Close()

	// Drain the reader to complete the pull
	if _, err := io.Copy(io.Discard, reader); err != nil {
		return NewEnvError("EnsureImage", "image", imageName, err.Error(), ErrImagePullFailed)
	}

	return nil
}

// =============================================================================
// Container Operations
// =============================================================================

// Run creates a container from spec, starts it, waits for it to exit, and
// removes it. Removal happens on every path, including context
// cancellation, so no build container outlives its run. A non-zero exit
// returns ErrCommandFailed together with the captured output.
func (c *Client) Run(ctx context.Context, spec RunSpec) (*RunResult, error) {
	config := &container.Config{
		Image:      spec.Image,
		Cmd:        spec.Command,
		WorkingDir: spec.WorkingDir,
		Labels:     spec.Labels,
	}
	for k, v := range spec.Env {
		config.Env = append(config.Env, fmt.Sprintf("%s=%s", k, v))
	}

	hostConfig := &container.HostConfig{}
	for _, m := range spec.Mounts {
		hostConfig.Mounts = append(hostConfig.Mounts, mount.Mount{
			Type:     mount.TypeBind,
			Source:   m.Source,
			Target:   m.Target,
			ReadOnly: m.ReadOnly,
		})
	}

	resp, err := c.cli.ContainerCreate(ctx, config, hostConfig, nil, nil, spec.Name)
	if err != nil {
		return nil, NewEnvError("Run", "container", spec.Name, err.Error(), err)
	}
	defer func() {
		// Teardown uses a fresh context: the run context may already be
		// cancelled.
		_ = c.cli.ContainerRemove(context.Background(), resp.ID, container.RemoveOptions{Force: true, RemoveVolumes: true})
	}()

	if err := c.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return nil, NewEnvError("Run", "container", resp.ID, err.Error(), err)
	}

	status, err := c.waitForExit(ctx, resp.ID)
	if err != nil {
		return nil, err
	}

	stdout, stderr := c.fetchLogs(resp.ID)
	result := &RunResult{
		ExitCode: status.StatusCode,
		Stdout:   stdout,
		Stderr:   stderr,
	}

	if status.StatusCode != 0 {
		return result, NewEnvError("Run", "container", resp.ID,
			fmt.Sprintf("exited with status %d", status.StatusCode), ErrCommandFailed)
	}
	return result, nil
}

func (c *Client) waitForExit(ctx context.Context, containerID string) (*container.WaitResponse, error) {
	statusCh, errCh := c.cli.ContainerWait(ctx, containerID, container.WaitConditionNotRunning)
	select {
	case status := <-statusCh:
		if status.Error != nil {
			return nil, NewEnvError("Run", "container", containerID, status.Error.Message, ErrCommandFailed)
		}
		return &status, nil
	case err := <-errCh:
		return nil, NewEnvError("Run", "container", containerID, err.Error(), err)
	case <-ctx.Done():
		return nil, NewEnvError("Run", "container", containerID, ctx.Err().Error(), ErrTimeout)
	}
}

// fetchLogs captures whatever output the container produced. Log capture
// is best effort; a failure here must not mask the run outcome.
func (c *Client) fetchLogs(containerID string) (stdout, stderr string) {
	logs, err := c.cli.ContainerLogs(context.Background(), containerID, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
	})
	if err != nil {
		return "", ""
	}
	defer logs.Close()

	var stdoutBuf, stderrBuf bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdoutBuf, &stderrBuf, logs); err != nil {
		return "", ""
	}
	return stdoutBuf.String(), stderrBuf.String()
}
