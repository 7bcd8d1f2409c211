package errors

// ErrorBuilder constructs a ClassifiedError.
type ErrorBuilder struct {
	err ClassifiedError
}

// NewError starts an error-severity builder.
func NewError(category ErrorCategory, message string) *ErrorBuilder {
	return &ErrorBuilder{err: ClassifiedError{
		category: category,
		severity: SeverityError,
		message:  message,
		context:  make(ErrorContext),
	}}
}

// WrapError starts a builder around cause.
func WrapError(cause error, category ErrorCategory, message string) *ErrorBuilder {
	b := NewError(category, message)
	b.err.cause = cause
	return b
}

// WithContext adds a context key-value pair.
func (b *ErrorBuilder) WithContext(key string, value any) *ErrorBuilder {
	b.err.context = b.err.context.Set(key, value)
	return b
}

// WithPath records the file or directory the error concerns.
func (b *ErrorBuilder) WithPath(path string) *ErrorBuilder {
	return b.WithContext("path", path)
}

// WithTask records the task the error was raised in.
func (b *ErrorBuilder) WithTask(name string) *ErrorBuilder {
	return b.WithContext("task", name)
}

// Fatal marks the error as aborting the run.
func (b *ErrorBuilder) Fatal() *ErrorBuilder {
	b.err.severity = SeverityFatal
	return b
}

// Warning marks the error as soft.
func (b *ErrorBuilder) Warning() *ErrorBuilder {
	b.err.severity = SeverityWarning
	return b
}

// Build returns the error. The builder must not be reused afterwards.
func (b *ErrorBuilder) Build() *ClassifiedError {
	out := b.err
	return &out
}

// ConfigError is a fatal configuration error, such as a malformed task graph.
func ConfigError(message string) *ErrorBuilder {
	return NewError(CategoryConfig, message).Fatal()
}

// ValidationError is a fatal input error, such as an unknown task name.
func ValidationError(message string) *ErrorBuilder {
	return NewError(CategoryValidation, message).Fatal()
}

// DataError reports a malformed data document.
func DataError(message string) *ErrorBuilder {
	return NewError(CategoryData, message)
}

// TransformError reports a soft transformation failure.
func TransformError(message string) *ErrorBuilder {
	return NewError(CategoryTransform, message).Warning()
}

// ServerError reports a dev server lifecycle failure.
func ServerError(message string) *ErrorBuilder {
	return NewError(CategoryServer, message).Fatal()
}
