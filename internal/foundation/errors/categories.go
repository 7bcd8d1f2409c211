package errors

import (
	"log/slog"
	"maps"
	"slices"
)

// ErrorCategory groups errors by the part of the build that produced them.
type ErrorCategory string

const (
	// CategoryConfig covers task graph definitions and resolved configuration.
	CategoryConfig     ErrorCategory = "config"
	CategoryValidation ErrorCategory = "validation"

	// Build inputs and outputs.
	CategoryData       ErrorCategory = "data"
	CategoryFileSystem ErrorCategory = "filesystem"
	CategoryTransform  ErrorCategory = "transform"
	CategoryTask       ErrorCategory = "task"

	CategoryServer   ErrorCategory = "server"
	CategoryInternal ErrorCategory = "internal"
)

// exitCodes maps categories to process exit codes; anything unlisted exits 1.
var exitCodes = map[ErrorCategory]int{
	CategoryValidation: 2,
	CategoryConfig:     7,
	CategoryInternal:   10,
	CategoryData:       11,
	CategoryFileSystem: 11,
	CategoryTransform:  11,
	CategoryTask:       11,
	CategoryServer:     12,
}

// ExitCode returns the process exit code for the category.
func (c ErrorCategory) ExitCode() int {
	if code, ok := exitCodes[c]; ok {
		return code
	}
	return 1
}

// ErrorSeverity says whether an error stops the run.
type ErrorSeverity string

const (
	SeverityFatal   ErrorSeverity = "fatal"   // aborts the run
	SeverityError   ErrorSeverity = "error"   // fails the current task
	SeverityWarning ErrorSeverity = "warning" // logged, the task still completes
)

// Level is the slog level used when logging an error of this severity.
func (s ErrorSeverity) Level() slog.Level {
	if s == SeverityWarning {
		return slog.LevelWarn
	}
	return slog.LevelError
}

// ErrorContext carries structured details such as the offending path or task.
type ErrorContext map[string]any

// Set adds or updates a context value.
func (c ErrorContext) Set(key string, value any) ErrorContext {
	if c == nil {
		c = make(ErrorContext)
	}
	c[key] = value
	return c
}

// GetString retrieves a string context value.
func (c ErrorContext) GetString(key string) (string, bool) {
	s, ok := c[key].(string)
	return s, ok
}

// Merge returns a new context with other taking precedence.
func (c ErrorContext) Merge(other ErrorContext) ErrorContext {
	out := make(ErrorContext, len(c)+len(other))
	maps.Copy(out, c)
	maps.Copy(out, other)
	return out
}

// Keys returns the context keys in sorted order.
func (c ErrorContext) Keys() []string {
	return slices.Sorted(maps.Keys(c))
}

// Attrs renders the context as slog attributes in key order.
func (c ErrorContext) Attrs() []slog.Attr {
	attrs := make([]slog.Attr, 0, len(c))
	for _, k := range c.Keys() {
		attrs = append(attrs, slog.Any(k, c[k]))
	}
	return attrs
}
