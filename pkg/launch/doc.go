/*
Package launch implements the process-level half of a Component's
"fork-or-suppress" start decision (spec §4.3 step 2, §9 "Process-level
dispatch"). It offers two interchangeable ways to bring a Component up:

  - Process: re-exec the current binary into a hidden "run-component"
    subcommand, passing the component's kind and its ComponentConfig
    serialized as JSON. Grounded on the teacher's
    test/framework/process.go subprocess wrapper — SIGTERM-then-timeout-
    then-SIGKILL stop, stdout/stderr capture into a LogBuffer, PID
    tracking — generalized from a test harness into a real launcher.
  - Suppressed: look the kind up in pkg/registry and run the Component
    directly in the caller's process via a goroutine. No process is
    spawned; this is what a session uses for components that don't need
    OS-level isolation (and what tests use almost exclusively).

Both return the same Handle interface, so pkg/session does not need to
know which launch strategy backs a given component descriptor.
*/
package launch
