package util

import (
	"github.com/mattn/go-isatty"
)

// IsTerminal reports whether fd refers to an interactive terminal: the
// signal log.go and the scheduler's progress bar use to decide whether
// ANSI color codes and a live progress display are appropriate.
func IsTerminal(fd uintptr) bool {
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
