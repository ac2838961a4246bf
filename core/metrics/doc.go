// Package metrics defines the recorders the scheduler reports finished runs
// to. Implementations such as the Prometheus and InfluxDB sinks live in
// infra/metrics and register themselves with RegisterMetricsSink; the
// factory helpers return a MultiSink when several sinks are configured.
package metrics
