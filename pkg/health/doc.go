/*
Package health implements the hysteresis bookkeeping behind a component's
heartbeat monitor: has this component's heart sent a heartbeat recently
enough, and if not, for how many consecutive samples running.

Status.Sample is called on an idler tick (one per Config.Interval); a gap
since the last Seen call exceeding Config.Timeout counts as a miss, and
Dead latches once ConsecutiveMisses reaches Config.Retries. The framework
default (ConfigFromComponent) uses Retries: 1 — one missed window is
enough to call a component's heart dead and trigger self-termination.

This package holds only the counting logic; pkg/component owns the idler
goroutine that calls Sample and the decision of what self-termination
means for a running component.
*/
package health
