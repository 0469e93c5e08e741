// Package logger builds zap loggers and carries request-scoped loggers in a
// context. There is no package-level logger; callers own the instance.
package logger
