package tunnel

import "fmt"

// StartupError indicates the tunnel's underlying mechanism could not be
// established: the transport process failed to spawn, or the lifecycle was
// driven out of order. It aborts the sequence before Serve.
type StartupError struct {
	Err error
}

func (e *StartupError) Error() string {
	return fmt.Sprintf("tunnel startup failed: %v", e.Err)
}

func (e *StartupError) Unwrap() error {
	return e.Err
}

// ExitError indicates the transport process terminated with a non-success
// status during Serve. Status carries the raw exit status rendering for
// diagnostics.
type ExitError struct {
	Status string
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("network tunnel exited with non-zero status: %s", e.Status)
}

// CleanupError indicates terminating the transport process failed for a
// reason other than the process having already exited.
type CleanupError struct {
	Err error
}

func (e *CleanupError) Error() string {
	return fmt.Sprintf("tunnel cleanup failed: %v", e.Err)
}

func (e *CleanupError) Unwrap() error {
	return e.Err
}
