/*
Package worker provides the Worker specialization of component.Component
(spec §2, §4.5): a component constructed so Advance panics if it is ever
asked to assign a state, rather than relying on convention to keep a
worker stage from mutating item state directly. Concrete worker stages
register their StateWorker callbacks the same way a full Component does;
only the advance-time state-assignment guard differs. The example stages
in pkg/stages are full Components, not Workers, since they pass a state
to Advance.
*/
package worker
