package errors

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
)

// CLIErrorAdapter reports a run's final error and picks the exit code.
type CLIErrorAdapter struct {
	verbose bool
	logger  *slog.Logger
	stderr  io.Writer
}

// NewCLIErrorAdapter creates an adapter writing to stderr. A nil logger uses slog.Default.
func NewCLIErrorAdapter(verbose bool, logger *slog.Logger) *CLIErrorAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CLIErrorAdapter{
		verbose: verbose,
		logger:  logger,
		stderr:  os.Stderr,
	}
}

// ExitCodeFor returns 0 for nil, the category's code for classified errors and 1 otherwise.
func (a *CLIErrorAdapter) ExitCodeFor(err error) int {
	if err == nil {
		return 0
	}
	if classified, ok := AsClassified(err); ok {
		return classified.Category().ExitCode()
	}
	return 1
}

// FormatError renders the one-line message printed to stderr.
func (a *CLIErrorAdapter) FormatError(err error) string {
	if err == nil {
		return ""
	}
	classified, ok := AsClassified(err)
	switch {
	case !ok:
		return fmt.Sprintf("Error: %v", err)
	case a.verbose:
		return err.Error()
	case classified.Category() == CategoryInternal:
		return "Internal error occurred (use -v for details)"
	default:
		return "Error: " + classified.Message()
	}
}

// Report logs err, prints it to stderr and returns the exit code.
func (a *CLIErrorAdapter) Report(err error) int {
	if err == nil {
		return 0
	}
	a.log(err)
	_, _ = fmt.Fprintln(a.stderr, a.FormatError(err))
	return a.ExitCodeFor(err)
}

func (a *CLIErrorAdapter) log(err error) {
	classified, ok := AsClassified(err)
	if !ok {
		a.logger.Error("Unclassified error", "error", err)
		return
	}
	if !a.verbose && !classified.IsFatal() {
		return
	}
	attrs := append([]slog.Attr{slog.String("category", string(classified.Category()))}, classified.Context().Attrs()...)
	if cause := classified.Cause(); cause != nil {
		attrs = append(attrs, slog.String("cause", cause.Error()))
	}
	a.logger.LogAttrs(context.Background(), classified.Severity().Level(), classified.Message(), attrs...)
}
