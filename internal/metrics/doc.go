// Package metrics provides observability hooks for sitebuild tasks and the dev server.
//
// Components receive a Recorder through dependency injection and default to
// NoopRecorder, so no nil checks are needed at call sites:
//
//	runner := taskgraph.NewRunner(graph, taskgraph.WithRecorder(recorder))
//
// PrometheusRecorder backs the dev server's /metrics endpoint.
package metrics
