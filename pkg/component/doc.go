/*
Package component implements the framework's single building block: a
generic, message-driven executor that hosts stateful work stages, wires
them together with bridges, routes bulks of items to the worker
registered for their state, and advances items through the state graph.

A Component has no business logic of its own. Concrete stages (see
pkg/stages, pkg/worker) are Components constructed with a particular set
of registered inputs, outputs, and state workers; the scheduler,
stagers, and agent are all just named instances of this one type.

# Lifecycle

Construct records configuration only; it acquires no locks, starts no
goroutines, and opens no bridge connections. Whether a Component runs
in-process or in a spawned child is decided outside this package, by
pkg/launch; in either case Start runs initializeCommon followed by
initializeChild (there is no separate parent-side initialization).
Apart from the stopped channel that New allocates, no channel, callback
lock, or goroutine used by a Component exists before Start runs — this
mirrors the teacher domain's fork-then-
initialize discipline even though Go's runtime has no fork-inherits-locks
hazard of its own; keeping the same ordering keeps parent and child
construction identical and keeps the pattern transferable to a real
os.StartProcess-based launch.

# Concurrency

Every user-supplied callback — a state worker, a subscriber callback, or
a timed callback — runs under the component's single callback mutex
(see mutex.go), so user code is effectively single-threaded inside one
component while components run fully in parallel with each other. The
event loop itself never blocks indefinitely: its only suspension points
are a bounded queue Pop and, inside callback invocation, whatever the
user code itself does.
*/
package component
