package tunnel

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"tunnelctl/internal/config"
	"tunnelctl/pkg/logging"
)

const sshSubsystem = "ssh-forwarding"

// For mocking in tests
var sshCommand = "ssh"

// readyMarker is the diagnostic line OpenSSH emits once tunnelling has been
// established. The readiness heuristic is coupled to this exact phrasing, so
// any drift in a future OpenSSH version is a one-place change here.
const readyMarker = "Entering interactive session."

const (
	// Ask the client to time out after 5 seconds.
	connectTimeoutSeconds = 5
	// Send periodic keepalive messages to the server to keep the connection
	// from being closed due to inactivity.
	serverAliveIntervalSeconds = 30
)

// lineSeverity is the observability classification of a single ssh stderr
// line. It never influences control flow; the process exit code is the
// authoritative failure signal.
type lineSeverity int

const (
	severityDebug lineSeverity = iota
	severityInfo
	severityError
)

// classifyLine translates OpenSSH log output to a log severity. Debug
// chatter and the benign host-key-addition warning stay at debug level;
// messages that usually explain a failed tunnel are raised to error level so
// operators can spot the cause without rerunning with -v.
func classifyLine(line string) lineSeverity {
	switch {
	case strings.HasPrefix(line, "debug1:"):
		return severityDebug
	case strings.HasPrefix(line, "Warning: Permanently added"):
		return severityDebug
	case strings.Contains(line, "Permission denied"):
		return severityError
	case strings.Contains(line, "Network is unreachable"):
		return severityError
	case strings.Contains(line, "Connection timed out"):
		return severityError
	default:
		return severityInfo
	}
}

// SSHForwarding is the process-backed tunnel variant. It owns an OpenSSH
// child process from spawn through readiness detection through exit, and it
// owns the logic to forcibly terminate it. The child's stderr is consumed
// exactly once, by the readiness loop; afterwards the handle is retained
// solely for waiting and killing.
type SSHForwarding struct {
	config config.SSHForwardingConfig
	cmd    *exec.Cmd
	state  State
}

// NewSSHForwarding returns an unstarted tunnel for the given configuration.
// The configuration is assumed to be fully populated; see
// config.SSHForwardingConfig.Validate.
func NewSSHForwarding(cfg config.SSHForwardingConfig) *SSHForwarding {
	return &SSHForwarding{
		config: cfg,
		state:  StateUnstarted,
	}
}

// State reports where the tunnel is in its lifecycle.
func (f *SSHForwarding) State() State {
	return f.state
}

// buildArgs constructs the ssh argument list deterministically from the
// configuration. Argument order matters to downstream tooling that inspects
// the spawned command line, so keep it stable.
func (f *SSHForwarding) buildArgs() []string {
	return []string{
		// Disable pseudo-terminal allocation
		"-T",
		// Be verbose so we can pick up signals about status of the tunnel
		"-v",
		// This is necessary unless we also ask for the public key from users
		"-o", "StrictHostKeyChecking no",
		"-o", fmt.Sprintf("ConnectTimeout=%d", connectTimeoutSeconds),
		"-o", fmt.Sprintf("ServerAliveInterval=%d", serverAliveIntervalSeconds),
		// Pass the private key
		"-i", f.config.PrivateKeyPath,
		// Do not execute a remote command. Just forward the ports.
		"-N",
		// Port forwarding stanza
		"-L", fmt.Sprintf("%d:%s:%d", f.config.LocalPort, f.config.ForwardHost, f.config.ForwardPort),
		f.config.SSHEndpoint,
	}
}

// Prepare spawns the ssh process with its stderr captured and blocks until
// OpenSSH reports that the tunnel is ready to serve requests. If stderr
// closes before the ready marker appears, Prepare logs a warning and still
// returns success: the exit-code check in Serve is the authoritative failure
// signal, and treating an early close as fatal here would produce false
// negatives for transports that signal readiness through another channel.
func (f *SSHForwarding) Prepare(ctx context.Context) error {
	if f.state != StateUnstarted {
		return &StartupError{Err: fmt.Errorf("prepare called in state %s, expected %s", f.state, StateUnstarted)}
	}

	logging.Info(sshSubsystem, "ssh forwarding local port %d to remote host %s:%d",
		f.config.LocalPort, f.config.ForwardHost, f.config.ForwardPort)

	logging.Debug(sshSubsystem, "spawning ssh tunnel")
	cmd := exec.CommandContext(ctx, sshCommand, f.buildArgs()...)
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return &StartupError{Err: fmt.Errorf("capturing ssh stderr: %w", err)}
	}
	if err := cmd.Start(); err != nil {
		return &StartupError{Err: fmt.Errorf("spawning ssh: %w", err)}
	}
	f.cmd = cmd
	f.state = StateStarting

	// Read stderr of ssh until we find a signal message that the ports are
	// open and we are ready to serve requests.
	logging.Debug(sshSubsystem, "listening on ssh tunnel stderr")
	return f.awaitReady(stderr)
}

// awaitReady consumes the diagnostic stream line by line until the ready
// marker appears or the stream closes. Only the marker ends the loop early;
// line classification is observability only.
func (f *SSHForwarding) awaitReady(stderr io.Reader) error {
	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		line := scanner.Text()

		// OpenSSH will enter an interactive session after tunnelling has
		// been successful.
		if strings.Contains(line, readyMarker) {
			logging.Debug(sshSubsystem, "ssh tunnel is listening & ready for serving requests")
			f.state = StateReady
			return nil
		}

		// Otherwise apply a little bit of intelligence to translate OpenSSH
		// log messages to appropriate log levels.
		switch classifyLine(line) {
		case severityDebug:
			logging.Debug(sshSubsystem, "ssh: %s", line)
		case severityError:
			logging.Error(sshSubsystem, nil, "ssh: %s", line)
		default:
			logging.Info(sshSubsystem, "ssh: %s", line)
		}
	}
	if err := scanner.Err(); err != nil {
		return &StartupError{Err: fmt.Errorf("reading ssh stderr: %w", err)}
	}

	// This function's job was just to launch the ssh tunnel and wait until
	// it is ready to serve traffic. If stderr closes unexpectedly we treat
	// this as a probably-erroneous form of success and rely on the later
	// exit code checking in Serve to report a failure.
	logging.Warn(sshSubsystem, "unexpected end of output from ssh tunnel")
	f.state = StateReady
	return nil
}

// Serve blocks until the ssh process terminates on its own. There is no
// internal timeout; cancellation of ctx (wired through the spawned command)
// is the only external way to end it early.
func (f *SSHForwarding) Serve(ctx context.Context) error {
	if f.state != StateReady {
		return &StartupError{Err: fmt.Errorf("serve called in state %s, expected %s", f.state, StateReady)}
	}
	f.state = StateServing

	logging.Debug(sshSubsystem, "awaiting ssh tunnel process")
	err := f.cmd.Wait()
	f.state = StateTerminated

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			logging.Error(sshSubsystem, err, "network tunnel ssh exited with non-zero code")
			return &ExitError{Status: exitErr.ProcessState.String()}
		}
		return fmt.Errorf("awaiting ssh tunnel process: %w", err)
	}

	return nil
}

// Cleanup kills the ssh process if one was ever spawned. A process that has
// already exited is not an error; any other termination failure is reported
// as a *CleanupError. Calling Cleanup without a spawned process, or calling
// it twice, is a no-op.
func (f *SSHForwarding) Cleanup() error {
	if f.state == StateCleanedUp {
		return nil
	}

	if f.cmd != nil && f.cmd.Process != nil {
		if err := f.cmd.Process.Kill(); err != nil {
			// ErrProcessDone means the process has already exited, in which
			// case there is nothing left to clean up.
			if !errors.Is(err, os.ErrProcessDone) {
				return &CleanupError{Err: err}
			}
		} else if f.state != StateTerminated {
			// Reap the killed child so it does not linger as a zombie. Serve
			// already waited if it ran to completion.
			_ = f.cmd.Wait()
		}
	}

	f.state = StateCleanedUp
	return nil
}
