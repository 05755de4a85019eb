package launch

// Handle is what a launcher returns for a spawned component, regardless
// of whether it runs as a subprocess or in-process.
type Handle interface {
	// Stop requests graceful termination and blocks until it completes
	// or the launcher's own timeout forces a hard kill. Idempotent.
	Stop() error

	// Wait blocks until the component has fully terminated, however it
	// got there (Stop, a heartbeat timeout, a signal, a panic).
	Wait() error
}
