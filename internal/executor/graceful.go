package executor

// GracefulWarn logs a warning when logger is non-nil. Components that accept
// an optional logger use it so a missing logger never turns into a panic.
func GracefulWarn(logger Logger, format string, args ...interface{}) {
	if logger != nil {
		logger.Warnf(format, args...)
	}
}
