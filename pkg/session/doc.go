/*
Package session implements the framework's root context (spec §2): it
loads a session configuration document, starts the session-wide
log/state/control pub/sub bridges and any data queues components
reference, then spawns the configured components in declared order —
leaves first, as the spec requires ("log/state/control pub/sub, then
data queues, then workers").

Configuration loading follows the teacher's cmd/warren/apply.go
convention of decoding a YAML document with gopkg.in/yaml.v3; unlike
that one-shot CLI resource file, a session config additionally passes
unrecognised top-level keys through verbatim (spec §6, "additional keys
are passed through to components verbatim") rather than rejecting them.

mongodb_url is carried as an opaque string and never dialed — database
persistence of sessions/pilots/units is an external collaborator, out of
scope per spec §1.
*/
package session
