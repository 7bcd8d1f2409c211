package metrics

import "time"

// ResultLabel enumerates task result categories for counters.
type ResultLabel string

const (
	ResultSuccess  ResultLabel = "success"
	ResultFailed   ResultLabel = "failed"
	ResultSkipped  ResultLabel = "skipped"
	ResultCanceled ResultLabel = "canceled"
)

// Recorder defines observability hooks for task, reload and cache metrics.
type Recorder interface {
	ObserveTaskDuration(task string, d time.Duration)
	IncTaskResult(task string, result ResultLabel)
	IncReloadBroadcast(kind string)
	SetReloadClients(n int)
	IncImageCache(hit bool)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveTaskDuration(string, time.Duration) {}
func (NoopRecorder) IncTaskResult(string, ResultLabel)         {}
func (NoopRecorder) IncReloadBroadcast(string)                 {}
func (NoopRecorder) SetReloadClients(int)                      {}
func (NoopRecorder) IncImageCache(bool)                        {}
