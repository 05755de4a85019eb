/*
Package metrics defines and registers the Prometheus instrumentation for a
pilot session: component population, item throughput by state, worker
timing, queue depth, and heartbeat liveness. All metrics are registered at
package init via prometheus.MustRegister and exposed through Handler for
wiring into a session's admin HTTP surface.

# Catalog

	pilot_components_total{kind}                 gauge
	pilot_items_advanced_total{type,state}        counter
	pilot_items_failed_total{component}           counter
	pilot_items_canceled_total{component}         counter
	pilot_work_duration_seconds{component,state}  histogram
	pilot_queue_depth{queue}                      gauge
	pilot_heartbeat_age_seconds{component}        gauge
	pilot_heartbeat_timeouts_total{component}     counter
	pilot_pubsub_first_subscriber_miss_total{channel} counter

# Usage

	timer := metrics.NewTimer()
	err := worker.Work(item)
	timer.ObserveDurationVec(metrics.WorkDuration, componentUID, string(item.State))

health.go layers a separate liveness registry on top of these counters: a
component's start-up and heartbeat-check code calls RegisterComponent or
UpdateComponent as its status changes, and the admin surface serves the
aggregate via HealthHandler/LivenessHandler.
*/
package metrics
