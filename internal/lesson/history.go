package lesson

import (
	"strings"
	"unicode/utf8"
)

// TrailingUserMessage returns the last message when it was written by the
// learner.
func TrailingUserMessage(history []Message) (Message, bool) {
	if len(history) == 0 {
		return Message{}, false
	}
	last := history[len(history)-1]
	if last.Role != RoleUser || strings.TrimSpace(last.Content) == "" {
		return Message{}, false
	}
	return last, true
}

// Recent returns at most the last n messages. n <= 0 means all.
func Recent(history []Message, n int) []Message {
	if n <= 0 || len(history) <= n {
		return history
	}
	return history[len(history)-n:]
}

// FormatHistory renders the last n messages as "Learner:"/"Tutor:" lines.
func FormatHistory(history []Message, n int) string {
	recent := Recent(history, n)
	if len(recent) == 0 {
		return "None"
	}
	var b strings.Builder
	for _, m := range recent {
		switch m.Role {
		case RoleUser:
			b.WriteString("Learner: ")
		case RoleAssistant:
			b.WriteString("Tutor: ")
		default:
			b.WriteString("System: ")
		}
		b.WriteString(strings.TrimSpace(m.Content))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// Excerpt cuts text to at most max runes, preferring a word boundary.
func Excerpt(text string, max int) string {
	text = strings.TrimSpace(text)
	if max <= 0 || utf8.RuneCountInString(text) <= max {
		return text
	}
	runes := []rune(text)
	cut := string(runes[:max])
	if i := strings.LastIndexAny(cut, " \n\t"); i > max/2 {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, " \n\t") + "..."
}
