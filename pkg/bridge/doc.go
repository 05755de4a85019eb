/*
Package bridge implements the two communication primitives a component
graph is built from: Queue (point-to-point, load-balanced, at-most-once
per receiver) and PubSub (topic fan-out, with the first-subscriber race
the framework's contract allows).

Both come in two transports, selected by the scheme of a
types.BridgeAddress's AddrIn/AddrOut strings:

  - "mem://<name>" is an in-process bridge: a registry keyed by name
    holds the channel-backed implementation directly, so components
    forked in the same process share it with no serialization. This is
    the model for unit tests and for a session running every component
    as a goroutine rather than a subprocess.
  - "ws://host:port/path" is a wire bridge: producers and consumers are
    separate processes (typically launched by pkg/launch) that dial a
    Server over gorilla/websocket and exchange JSON-framed messages.

Components never choose a transport themselves; they ask for whichever
Queue or PubSub a ComponentConfig.Bridges entry names, and the scheme
determines which implementation answers.

# First-subscriber race

PubSub fan-out only reaches subscribers registered at the moment of
Publish. A publish that lands before any Subscribe call is simply lost to
every would-be subscriber — this mirrors the framework's own pub/sub
contract, not a bug in either transport. Local and wire implementations
both increment metrics.SubscriberFirstMissTotal when a publish finds zero
subscribers, so a session can detect (in tests or in production) how
often a component started late enough to miss state it needed.
*/
package bridge
