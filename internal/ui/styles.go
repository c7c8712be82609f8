package ui

import "fmt"

// ANSI256 color codes for CLI output.
const (
	colorAccent = 74  // blue
	colorOK     = 114 // green
	colorWarn   = 215 // orange
	colorMuted  = 245 // medium gray
)

var noColor bool

// RenderAccent returns s in the accent (blue) color.
func RenderAccent(s string) string {
	if noColor {
		return s
	}
	return fmt.Sprintf("\x1b[38;5;%dm%s\x1b[0m", colorAccent, s)
}

// RenderOK returns s in green, used for open/healthy states.
func RenderOK(s string) string {
	if noColor {
		return s
	}
	return fmt.Sprintf("\x1b[38;5;%dm%s\x1b[0m", colorOK, s)
}

// RenderWarn returns s in orange, used for postponed and failing states.
func RenderWarn(s string) string {
	if noColor {
		return s
	}
	return fmt.Sprintf("\x1b[38;5;%dm%s\x1b[0m", colorWarn, s)
}

// RenderMuted returns s in the muted (gray) color.
func RenderMuted(s string) string {
	if noColor {
		return s
	}
	return fmt.Sprintf("\x1b[38;5;%dm%s\x1b[0m", colorMuted, s)
}

// RenderStatus colors a card status by its state.
func RenderStatus(status string) string {
	switch status {
	case "open":
		return RenderOK(status)
	case "postponed":
		return RenderWarn(status)
	case "closed", "draft":
		return RenderMuted(status)
	}
	return status
}

// ForceNoColor disables color output globally.
func ForceNoColor() {
	noColor = true
}
