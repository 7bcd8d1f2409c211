package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyTask       = "task"
	KeyRunID      = "run_id"
	KeyStep       = "step"
	KeyArea       = "area"
	KeyPath       = "path"
	KeyPort       = "port"
	KeyCount      = "count"
	KeyDurationMS = "duration_ms"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func Task(name string) slog.Attr      { return slog.String(KeyTask, name) }
func RunID(id string) slog.Attr       { return slog.String(KeyRunID, id) }
func Step(name string) slog.Attr      { return slog.String(KeyStep, name) }
func Area(name string) slog.Attr      { return slog.String(KeyArea, name) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func Port(p int) slog.Attr            { return slog.Int(KeyPort, p) }
func Count(n int) slog.Attr           { return slog.Int(KeyCount, n) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
