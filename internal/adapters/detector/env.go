// Package detector picks how transaction progress is shown.
package detector

import (
	"os"

	"golang.org/x/term"
)

// OutputMode represents how progress is rendered.
type OutputMode int

const (
	// ModeAuto leaves the choice to the caller.
	ModeAuto OutputMode = iota
	// ModeProgress redraws a single status line on the terminal.
	ModeProgress
	// ModeLinear writes one log line per event.
	ModeLinear
)

// DetectEnvironment returns the recommended output mode for f. CI and
// non-terminal outputs get linear logs.
func DetectEnvironment(f *os.File) OutputMode {
	ci := os.Getenv("CI")
	if ci == "true" || ci == "1" {
		return ModeLinear
	}
	if f == nil || !term.IsTerminal(int(f.Fd())) { //nolint:gosec // Fd fits in int
		return ModeLinear
	}
	return ModeProgress
}

// ResolveMode applies a user override to the detected mode.
// userFlag should be one of: "auto", "progress", "linear", "ci", or empty.
func ResolveMode(detected OutputMode, userFlag string) OutputMode {
	switch userFlag {
	case "progress":
		return ModeProgress
	case "linear", "ci":
		return ModeLinear
	default:
		return detected
	}
}
