// Package metrics records run, stage, plan and arch metrics.
//
// Components receive a Recorder through their constructors and default to
// NoopRecorder, so nothing checks for nil. When a metrics file is configured
// the CLI injects a PrometheusRecorder and, at the end of the run, writes the
// registry in the Prometheus text format for a node exporter textfile
// collector to pick up:
//
//	reg := prom.NewRegistry()
//	rec := metrics.NewPrometheusRecorder(reg)
//	svc := build.NewService(cfg, build.WithRecorder(rec))
//	...
//	_ = metrics.WriteTextfile(reg, "/var/lib/node_exporter/libforge.prom")
package metrics
