// Package output renders command output as styled text, markdown or JSON.
package output

import "strings"

// OutputMode selects how command output is rendered.
type OutputMode string //nolint:revive // output.OutputMode reads better at call sites than output.Type

// Output modes.
const (
	ModeAuto     OutputMode = "auto" // TTY=text, non-TTY=markdown
	ModeText     OutputMode = "text"
	ModeMarkdown OutputMode = "markdown"
	ModeJSON     OutputMode = "json"
)

// Modes lists the accepted mode names.
func Modes() []string {
	return []string{string(ModeAuto), string(ModeText), string(ModeMarkdown), string(ModeJSON)}
}

// Mode parses a mode name. Unknown or empty names map to ModeAuto.
func Mode(s string) OutputMode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "text":
		return ModeText
	case "markdown", "md":
		return ModeMarkdown
	case "json":
		return ModeJSON
	default:
		return ModeAuto
	}
}

// Valid reports whether s names a known mode.
func Valid(s string) bool {
	if s == "" {
		return true
	}
	for _, m := range Modes() {
		if strings.EqualFold(s, m) {
			return true
		}
	}
	return strings.EqualFold(s, "md")
}
