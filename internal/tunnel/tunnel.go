// Package tunnel manages the lifecycle of a network tunnel that forwards a
// local TCP port to a remote destination through an external transport
// process.
//
// A tunnel goes through three ordered operations: Prepare establishes the
// underlying mechanism and returns once it can accept traffic, Serve blocks
// until the mechanism terminates on its own, and Cleanup tears everything
// down. RunAndCleanup drives the three in sequence and guarantees Cleanup
// runs on every path, so a spawned child process is never leaked as a zombie.
package tunnel

import (
	"context"
	"fmt"
	"io"
)

// State tracks where a tunnel instance is in its lifecycle. Transitions only
// move forward; a tunnel instance is created once per invocation and
// discarded after Cleanup, never reused.
type State int

const (
	// StateUnstarted means no transport process has been spawned yet.
	StateUnstarted State = iota
	// StateStarting means the process is spawned and we are awaiting its
	// readiness signal.
	StateStarting
	// StateReady means readiness was detected and the tunnel is about to
	// serve.
	StateReady
	// StateServing means we are blocked awaiting process exit.
	StateServing
	// StateTerminated means the process exited or was killed.
	StateTerminated
	// StateCleanedUp is terminal; all resources are released.
	StateCleanedUp
)

// String makes State satisfy the fmt.Stringer interface.
func (s State) String() string {
	switch s {
	case StateUnstarted:
		return "Unstarted"
	case StateStarting:
		return "Starting"
	case StateReady:
		return "Ready"
	case StateServing:
		return "Serving"
	case StateTerminated:
		return "Terminated"
	case StateCleanedUp:
		return "CleanedUp"
	default:
		return "Unknown"
	}
}

// NetworkTunnel is the lifecycle contract every tunnel variant must satisfy.
// The three operations are strictly sequential per instance; none of them is
// ever invoked concurrently with another.
type NetworkTunnel interface {
	// Prepare sets up the tunnel. Once it returns successfully the tunnel is
	// able to accept downstream traffic without erroring; it must not block
	// past the point of readiness. Returns a *StartupError if the underlying
	// mechanism cannot be established.
	Prepare(ctx context.Context) error
	// Serve is a long-running call that blocks until the tunnel's underlying
	// mechanism terminates on its own. It returns nil only on a clean exit
	// and a *ExitError carrying the raw exit status otherwise.
	Serve(ctx context.Context) error
	// Cleanup is a best-effort unconditional teardown of all resources
	// acquired by Prepare/Serve. It must be safe to call even if Prepare
	// partially failed or was never called, and it is idempotent.
	Cleanup() error
}

// ReadyToken is the literal written to the readiness writer once the tunnel
// has been prepared. The external orchestrator blocks on this token and
// assumes requests may arrive the instant it observes it.
const ReadyToken = "READY"

// RunAndCleanup drives a tunnel from Prepare through Serve and makes sure
// Cleanup runs regardless of the outcome. Child processes that are not waited
// on can end up as zombies on some operating systems, so Cleanup must happen
// on every path, including failures.
//
// The READY token is written to readySignal after Prepare returns and before
// Serve is invoked. The current workflow assumes that
//  1. after Prepare is called, the tunnel is able to accept requests from
//     clients without sending errors back to clients, and
//  2. the tunnel processes client requests immediately after Serve is called.
//
// If either assumption becomes invalid for a new tunnel type, the READY logic
// needs to move to a separate task that signals only after the tunnel is
// verified to be working.
//
// Return priority: a Prepare/Serve error wins over a Cleanup error; a Cleanup
// error is returned only when everything else succeeded.
func RunAndCleanup(ctx context.Context, t NetworkTunnel, readySignal io.Writer) (err error) {
	// Deferred so the termination attempt happens on every exit path,
	// including a panic out of Prepare or Serve.
	defer func() {
		cleanupErr := t.Cleanup()
		if err == nil {
			err = cleanupErr
		}
	}()

	err = t.Prepare(ctx)

	fmt.Fprintln(readySignal, ReadyToken)

	if err == nil {
		err = t.Serve(ctx)
	}
	return err
}
