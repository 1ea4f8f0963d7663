// Package util provides shared logging and statistics helpers.
package util

import (
	"fmt"

	"github.com/pterm/pterm"
)

func init() {
	pterm.DefaultLogger.ShowTime = true
	pterm.DefaultLogger.TimeFormat = "02 Jan 15:04:05"
	pterm.DefaultLogger.MaxWidth = 1000
}

// Leveled logging functions backed by pterm's default logger, which writes
// to stderr. The logger is read on every call so EnableDebug applies at once.

func LogDebug(format string, args ...any) { logf(pterm.DefaultLogger.Debug, format, args) }

func LogInfo(format string, args ...any) { logf(pterm.DefaultLogger.Info, format, args) }

// LogSuccess logs at info level; pterm's logger has no success level.
func LogSuccess(format string, args ...any) { logf(pterm.DefaultLogger.Info, format, args) }

func LogWarning(format string, args ...any) { logf(pterm.DefaultLogger.Warn, format, args) }

func LogError(format string, args ...any) { logf(pterm.DefaultLogger.Error, format, args) }

func logf(emit func(string, ...[]pterm.LoggerArgument), format string, args []any) {
	emit(fmt.Sprintf(format, args...))
}

// EnableDebug configures the logger to show debug messages.
func EnableDebug() {
	pterm.DefaultLogger.Level = pterm.LogLevelDebug
}

// DebugEnabled reports whether debug messages are shown.
func DebugEnabled() bool {
	l := pterm.DefaultLogger.Level
	return l == pterm.LogLevelTrace || l == pterm.LogLevelDebug
}
