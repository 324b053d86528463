package courier

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/monoco-io/fabric/pkg/atomicfile"
	"github.com/monoco-io/fabric/pkg/log"
)

const (
	// ServiceStartTimeout bounds how long Start waits for /health
	ServiceStartTimeout = 30 * time.Second

	// SigtermTimeout is the grace period before SIGKILL
	SigtermTimeout = 10 * time.Second
)

// DaemonState is the coarse lifecycle state of the courier process
type DaemonState string

const (
	StateStopped  DaemonState = "stopped"
	StateStarting DaemonState = "starting"
	StateRunning  DaemonState = "running"
	StateStopping DaemonState = "stopping"
	StateError    DaemonState = "error"
)

// runtimeState is persisted next to the pid file so Status can find
// the API
type runtimeState struct {
	Host      string    `json:"host"`
	Port      int       `json:"port"`
	PID       int       `json:"pid"`
	StartedAt time.Time `json:"started_at"`
}

// Controller manages the courier daemon process: spawn, health
// polling, signal-based shutdown, and status reporting. The control
// directory holds run/, log/, and courier/ state.
type Controller struct {
	ctrlDir string
	addr    string
	logger  zerolog.Logger
}

// NewController creates a controller rooted at ctrlDir managing a
// courier bound to addr
func NewController(ctrlDir, addr string) *Controller {
	if addr == "" {
		addr = DefaultAddr
	}
	return &Controller{
		ctrlDir: ctrlDir,
		addr:    addr,
		logger:  log.WithComponent("daemon"),
	}
}

func (c *Controller) pidFile() string   { return filepath.Join(c.ctrlDir, "run", "courier.pid") }
func (c *Controller) stateFile() string { return filepath.Join(c.ctrlDir, "run", "courier.json") }
func (c *Controller) logFile() string   { return filepath.Join(c.ctrlDir, "log", "courier.log") }

// Start launches the courier. In foreground mode the caller is
// expected to run the server itself; detached mode re-executes the
// current binary with serveArgs in a new process group and waits for
// /health.
func (c *Controller) Start(foreground bool, serveArgs []string) error {
	if state := c.Status(); state == StateRunning || state == StateStarting {
		return fmt.Errorf("courier already running")
	}

	for _, dir := range []string{"run", "log", "courier"} {
		if err := os.MkdirAll(filepath.Join(c.ctrlDir, dir), 0755); err != nil {
			return fmt.Errorf("failed to create control directory: %w", err)
		}
	}

	if foreground {
		return c.writeState(os.Getpid())
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to resolve executable: %w", err)
	}

	logOut, err := os.OpenFile(c.logFile(), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open daemon log: %w", err)
	}
	defer logOut.Close()

	cmd := exec.Command(exe, serveArgs...)
	cmd.Stdout = logOut
	cmd.Stderr = logOut
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to spawn courier: %w", err)
	}

	if err := c.writeState(cmd.Process.Pid); err != nil {
		return err
	}
	c.logger.Info().Int("pid", cmd.Process.Pid).Msg("Courier spawned")

	return c.waitHealthy()
}

// writeState persists the pid and runtime-state files
func (c *Controller) writeState(pid int) error {
	if err := atomicfile.WriteFile(c.pidFile(), []byte(strconv.Itoa(pid)), 0644); err != nil {
		return fmt.Errorf("failed to write pid file: %w", err)
	}

	host, portStr, _ := splitAddr(c.addr)
	port, _ := strconv.Atoi(portStr)
	state := runtimeState{
		Host:      host,
		Port:      port,
		PID:       pid,
		StartedAt: time.Now().UTC(),
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode runtime state: %w", err)
	}
	if err := atomicfile.WriteFile(c.stateFile(), data, 0644); err != nil {
		return fmt.Errorf("failed to write runtime state: %w", err)
	}
	return nil
}

// splitAddr separates host and port, tolerating a bare host
func splitAddr(addr string) (string, string, error) {
	for i := len(addr) - 1; i >= 0; i-- {
		if addr[i] == ':' {
			return addr[:i], addr[i+1:], nil
		}
	}
	return addr, "", fmt.Errorf("no port in address")
}

// waitHealthy polls /health until the API answers or the start
// timeout elapses
func (c *Controller) waitHealthy() error {
	client := NewClient(c.addr)
	deadline := time.Now().Add(ServiceStartTimeout)

	for time.Now().Before(deadline) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_, err := client.Health(ctx)
		cancel()
		if err == nil {
			c.logger.Info().Str("addr", c.addr).Msg("Courier healthy")
			return nil
		}
		time.Sleep(500 * time.Millisecond)
	}
	return fmt.Errorf("courier did not become healthy within %s", ServiceStartTimeout)
}

// Stop terminates the daemon: SIGTERM, then SIGKILL after the grace
// period when wait is set
func (c *Controller) Stop(wait bool) error {
	pid, err := c.readPID()
	if err != nil {
		return fmt.Errorf("courier not running")
	}

	if err := syscall.Kill(pid, syscall.SIGTERM); err != nil {
		c.cleanup()
		return fmt.Errorf("failed to signal courier: %w", err)
	}
	c.logger.Info().Int("pid", pid).Msg("SIGTERM sent")

	if !wait {
		return nil
	}

	deadline := time.Now().Add(SigtermTimeout)
	for time.Now().Before(deadline) {
		if !processAlive(pid) {
			c.cleanup()
			return nil
		}
		time.Sleep(200 * time.Millisecond)
	}

	c.logger.Warn().Int("pid", pid).Msg("Grace period elapsed, sending SIGKILL")
	syscall.Kill(pid, syscall.SIGKILL)
	c.cleanup()
	return nil
}

// Kill terminates the daemon unconditionally
func (c *Controller) Kill() error {
	pid, err := c.readPID()
	if err != nil {
		return fmt.Errorf("courier not running")
	}
	syscall.Kill(pid, syscall.SIGKILL)
	c.cleanup()
	return nil
}

// Restart stops (or kills, when force) and starts the daemon again
func (c *Controller) Restart(force bool, serveArgs []string) error {
	if force {
		c.Kill()
	} else if err := c.Stop(true); err != nil {
		c.logger.Debug().Err(err).Msg("Stop before restart")
	}
	return c.Start(false, serveArgs)
}

// Status cross-checks pid-file liveness against the health endpoint
func (c *Controller) Status() DaemonState {
	pid, err := c.readPID()
	if err != nil {
		return StateStopped
	}
	if !processAlive(pid) {
		return StateError
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := NewClient(c.addr).Health(ctx); err != nil {
		return StateStarting
	}
	return StateRunning
}

// readPID loads the pid file
func (c *Controller) readPID() (int, error) {
	data, err := os.ReadFile(c.pidFile())
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(string(data))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("corrupt pid file")
	}
	return pid, nil
}

// cleanup removes the pid and state files
func (c *Controller) cleanup() {
	os.Remove(c.pidFile())
	os.Remove(c.stateFile())
}

// processAlive reports whether pid exists (signal 0 probe)
func processAlive(pid int) bool {
	return syscall.Kill(pid, 0) == nil
}
