package sandbox

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/client"
	"go.uber.org/zap"

	"github.com/kandev/agentrun/internal/common/logger"
)

// DockerBackend runs sandboxed function code inside a throwaway container
// per invocation, bind-mounting the pool entry's directory so the
// dependency tree installed at entry-creation time is reused without a
// reinstall. Grounded on the teacher's internal/agent/docker.Client:
// ContainerCreate/Start/Attach followed by a forced ContainerRemove (no
// AutoRemove), and the same 8-byte-header
// demultiplexing of Docker's combined stdout/stderr stream.
type DockerBackend struct {
	cli   *client.Client
	image string
	log   *logger.Logger
}

// NewDockerBackend builds a DockerBackend talking to dockerHost, running
// sandboxed code inside image (expected to carry a Node.js runtime).
func NewDockerBackend(dockerHost, image string, log *logger.Logger) (*DockerBackend, error) {
	opts := []client.Opt{client.WithAPIVersionNegotiation()}
	if dockerHost != "" {
		opts = append(opts, client.WithHost(dockerHost))
	}
	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}
	return &DockerBackend{cli: cli, image: image, log: log.WithFields(zap.String("component", "sandbox-docker-backend"))}, nil
}

func (b *DockerBackend) CreateEntry(ctx context.Context, dir string, kind ModuleKind, deps map[string]string, userCode string) error {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create sandbox dir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, entryFilename), []byte(renderEntryFile(kind, userCode)), 0o600); err != nil {
		return fmt.Errorf("write entry file: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "package.json"), []byte(packageJSON(kind, deps)), 0o600); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	if len(deps) == 0 {
		return nil
	}

	id, err := b.runOneShot(ctx, dir, []string{"npm", "install", "--no-audit", "--no-fund", "--omit=dev"}, 2*time.Minute)
	if err != nil {
		return err
	}
	defer b.cli.ContainerRemove(context.Background(), id, container.RemoveOptions{Force: true})
	return nil
}

func (b *DockerBackend) Run(ctx context.Context, dir string, argsJSON []byte, timeout, killGrace time.Duration, outputCap int64) ([]byte, error) {
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	id, err := b.create(runCtx, dir, []string{"node", entryFilename}, true)
	if err != nil {
		return nil, err
	}
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), killGrace+time.Second)
		defer stopCancel()
		_ = b.cli.ContainerRemove(stopCtx, id, container.RemoveOptions{Force: true})
	}()

	attach, err := b.cli.ContainerAttach(runCtx, id, container.AttachOptions{Stream: true, Stdin: true, Stdout: true, Stderr: true})
	if err != nil {
		return nil, fmt.Errorf("attach sandbox container: %w", err)
	}
	defer attach.Close()

	if err := b.cli.ContainerStart(runCtx, id, container.StartOptions{}); err != nil {
		return nil, fmt.Errorf("start sandbox container: %w", err)
	}

	if _, err := attach.Conn.Write(argsJSON); err != nil {
		b.log.Warn("sandbox: write args to container failed", zap.Error(err))
	}
	attach.CloseWrite()

	out := newCappedWriter(outputCap)
	demultiplex(attach.Reader, out)

	statusCh, errCh := b.cli.ContainerWait(runCtx, id, container.WaitConditionNotRunning)
	var exitCode int64
	select {
	case err := <-errCh:
		if err != nil && runCtx.Err() == nil {
			return nil, fmt.Errorf("sandbox container wait: %w", err)
		}
	case st := <-statusCh:
		exitCode = st.StatusCode
	}

	if out.Overflowed() {
		_ = b.cli.ContainerKill(context.Background(), id, "SIGKILL")
		return nil, ErrOutputTooLarge
	}
	if runCtx.Err() != nil {
		_ = b.cli.ContainerKill(context.Background(), id, "SIGKILL")
		return nil, ErrTimeout
	}
	if exitCode != 0 {
		return nil, fmt.Errorf("sandbox container exited %d: %s", exitCode, truncateTail(out.Bytes(), 2048))
	}
	return out.Bytes(), nil
}

func (b *DockerBackend) Destroy(dir string) error {
	return os.RemoveAll(dir)
}

func (b *DockerBackend) create(ctx context.Context, dir string, cmd []string, attachStdio bool) (string, error) {
	cfg := &container.Config{
		Image:        b.image,
		Cmd:          cmd,
		WorkingDir:   "/sandbox",
		OpenStdin:    attachStdio,
		AttachStdin:  attachStdio,
		AttachStdout: true,
		AttachStderr: true,
		Tty:          false,
	}
	hostCfg := &container.HostConfig{
		Mounts: []mount.Mount{{Type: mount.TypeBind, Source: dir, Target: "/sandbox"}},
		NetworkMode: container.NetworkMode("none"),
	}
	resp, err := b.cli.ContainerCreate(ctx, cfg, hostCfg, nil, nil, "")
	if err != nil {
		return "", fmt.Errorf("create sandbox container: %w", err)
	}
	return resp.ID, nil
}

// runOneShot creates, starts and waits for a setup command (e.g. npm
// install) to finish, returning its container id for the caller to remove.
func (b *DockerBackend) runOneShot(ctx context.Context, dir string, cmd []string, timeout time.Duration) (string, error) {
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	id, err := b.create(runCtx, dir, cmd, false)
	if err != nil {
		return "", err
	}
	if err := b.cli.ContainerStart(runCtx, id, container.StartOptions{}); err != nil {
		return id, fmt.Errorf("start setup container: %w", err)
	}
	statusCh, errCh := b.cli.ContainerWait(runCtx, id, container.WaitConditionNotRunning)
	select {
	case err := <-errCh:
		if err != nil {
			return id, fmt.Errorf("wait for setup container: %w", err)
		}
	case st := <-statusCh:
		if st.StatusCode != 0 {
			return id, fmt.Errorf("dependency install failed with exit %d", st.StatusCode)
		}
	}
	return id, nil
}

// demultiplex reads Docker's multiplexed stdout/stderr stream (an 8-byte
// header per frame: type byte, 3 reserved, big-endian uint32 size) and
// writes both stream types to out, mirroring the teacher's
// demultiplexStream.
func demultiplex(r io.Reader, out io.Writer) {
	header := make([]byte, 8)
	for {
		if _, err := io.ReadFull(r, header); err != nil {
			return
		}
		streamType := header[0]
		size := binary.BigEndian.Uint32(header[4:8])
		if size == 0 {
			continue
		}
		data := make([]byte, size)
		if _, err := io.ReadFull(r, data); err != nil {
			return
		}
		if streamType == 1 || streamType == 2 {
			_, _ = out.Write(data)
		}
	}
}
