package util

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mitchellh/colorstring"
)

// LogLevel represents the severity of a log message
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l LogLevel) name() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARNING"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

var (
	currentLogLevel = LevelInfo
	useColors       = true
	fileSink        io.Writer
)

// SetFileLog directs structured log lines to w in addition to the console.
// Pass nil to disable the file sink.
func SetFileLog(w io.Writer) {
	fileSink = w
}

func writeFileLog(level LogLevel, format string, args ...interface{}) {
	if fileSink == nil {
		return
	}
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintf(fileSink, "%s - %s - %s\n", time.Now().Format("2006-01-02 15:04:05,000"), level.name(), msg)
}

// SetLogLevel sets the minimum log level to display
func SetLogLevel(level LogLevel) {
	currentLogLevel = level
}

// SetVerbose enables verbose (debug) logging
func SetVerbose(verbose bool) {
	if verbose {
		currentLogLevel = LevelDebug
	}
}

// SetQuiet enables quiet mode (errors only)
func SetQuiet(quiet bool) {
	if quiet {
		currentLogLevel = LevelError
	}
}

// IsQuiet reports whether quiet mode (errors only) is in effect
func IsQuiet() bool {
	return currentLogLevel >= LevelError
}

// SetColors enables or disables colored output
func SetColors(enabled bool) {
	useColors = enabled
}

func colorize(color string, text string) string {
	if !useColors {
		return text
	}
	reset := "\033[0m"
	return color + text + reset
}

// DebugLog logs debug messages
func DebugLog(format string, args ...interface{}) {
	writeFileLog(LevelDebug, format, args...)
	if currentLogLevel <= LevelDebug {
		gray := "\033[90m"
		msg := fmt.Sprintf(format, args...)
		fmt.Fprintf(os.Stderr, "%s [DEBUG] %s\n", colorize(gray, timestamp()), msg)
	}
}

// InfoLog logs informational messages
func InfoLog(format string, args ...interface{}) {
	writeFileLog(LevelInfo, format, args...)
	if currentLogLevel <= LevelInfo {
		cyan := "\033[36m"
		msg := fmt.Sprintf(format, args...)
		fmt.Fprintf(os.Stderr, "%s [INFO]  %s\n", colorize(cyan, timestamp()), msg)
	}
}

// WarnLog logs warning messages
func WarnLog(format string, args ...interface{}) {
	writeFileLog(LevelWarn, format, args...)
	if currentLogLevel <= LevelWarn {
		yellow := "\033[33m"
		msg := fmt.Sprintf(format, args...)
		fmt.Fprintf(os.Stderr, "%s [WARN]  %s\n", colorize(yellow, timestamp()), msg)
	}
}

// ErrorLog logs error messages
func ErrorLog(format string, args ...interface{}) {
	writeFileLog(LevelError, format, args...)
	if currentLogLevel <= LevelError {
		red := "\033[31m"
		msg := fmt.Sprintf(format, args...)
		fmt.Fprintf(os.Stderr, "%s [ERROR] %s\n", colorize(red, timestamp()), msg)
	}
}

// SuccessLog logs success messages (always shown unless quiet)
func SuccessLog(format string, args ...interface{}) {
	writeFileLog(LevelInfo, format, args...)
	if currentLogLevel <= LevelInfo {
		green := "\033[32m"
		msg := fmt.Sprintf(format, args...)
		fmt.Fprintf(os.Stderr, "%s [OK]    %s\n", colorize(green, timestamp()), msg)
	}
}

// banner renders msg wrapped in a colorstring color token, or plain text
// with useColors disabled (colorstring.Color strips [tokens] either way, so
// this never leaks raw "[cyan]"-style text to a non-color sink).
func banner(color, msg string) string {
	if !useColors {
		return msg
	}
	return colorstring.Color(fmt.Sprintf("[%s]==> %s[reset]", color, msg))
}

// BannerStart prints the run-starting banner (bold cyan).
func BannerStart(format string, args ...interface{}) {
	writeFileLog(LevelInfo, format, args...)
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintf(os.Stderr, "%s\n", banner("bold_cyan", msg))
}

// BannerFinish prints the run-finished banner (bold green).
func BannerFinish(format string, args ...interface{}) {
	writeFileLog(LevelInfo, format, args...)
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintf(os.Stderr, "%s\n", banner("bold_green", msg))
}

// BannerWarn prints a warning banner (bold yellow).
func BannerWarn(format string, args ...interface{}) {
	writeFileLog(LevelWarn, format, args...)
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintf(os.Stderr, "%s\n", banner("bold_yellow", msg))
}

func timestamp() string {
	return time.Now().Format("15:04:05")
}
