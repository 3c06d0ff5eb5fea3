// Package screen defines what the app's router needs from a screen.
package screen

import (
	tea "charm.land/bubbletea/v2"

	"github.com/abhisek/lessonloop/internal/ui/layout"
)

// Screen is one full-window view of the chat app.
type Screen interface {
	// Init returns an initial command when the screen is first pushed.
	Init() tea.Cmd

	// Update handles messages and returns updated screen + command.
	Update(msg tea.Msg) (Screen, tea.Cmd)

	// View renders the screen content (excluding header/footer).
	View(width, height int) string

	// Title returns the screen name for the header.
	Title() string
}

// KeyHintProvider is implemented by screens with their own footer hints.
type KeyHintProvider interface {
	KeyHints() []layout.KeyHint
}

// StatusProvider is implemented by screens that show a status, such as the
// learner's score, on the right of the header.
type StatusProvider interface {
	Status() string
}

// EscapeHandler is implemented by screens that consume Esc themselves, for
// example to cancel an in-flight request, instead of being popped.
type EscapeHandler interface {
	HandlesEscape() bool
}
