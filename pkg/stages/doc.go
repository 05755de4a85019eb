/*
Package stages hosts minimal, intentionally thin component.Component
specializations that give the runtime something concrete to drive in
tests and in the binaries (cmd/pilot, cmd/pilot-agent) that import this
package to register them. They are not a
scheduling or staging policy implementation — that remains an external
collaborator's responsibility (spec §1 Non-goals) — only enough wiring
to demonstrate a real state-graph hop through the framework:

  - Scheduler consumes SCHEDULING, advances to SCHEDULED.
  - Stager consumes STAGING_INPUT or STAGING_OUTPUT and advances to the
    paired STAGED_INPUT/STAGED_OUTPUT state.

Both register themselves under pkg/registry so a session configuration
file can name them as a component descriptor's kind.
*/
package stages
