// Package errors provides the classified errors used across sitebuild.
//
// A ClassifiedError carries a category, which picks the process exit code, and a
// severity. Warning severity marks soft transformation failures that are logged while
// the task still completes.
//
//	err := errors.WrapError(parseErr, errors.CategoryData, "parse data file").
//		WithPath(path).
//		Build()
package errors
