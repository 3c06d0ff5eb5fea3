package prompt

import (
	"fmt"
	"strings"
)

// NumberedList formats items as "1. item" lines. When max > 0 only the last
// max items are kept. Returns "None" if there are no items.
func NumberedList(items []string, max int) string {
	if len(items) == 0 {
		return "None"
	}

	if max > 0 && len(items) > max {
		items = items[len(items)-max:]
	}

	var b strings.Builder
	for i, it := range items {
		fmt.Fprintf(&b, "%d. %s\n", i+1, it)
	}
	return strings.TrimRight(b.String(), "\n")
}

// LetteredList formats options as "A) option" lines, or "" when empty.
func LetteredList(options []string) string {
	var b strings.Builder
	for i, o := range options {
		fmt.Fprintf(&b, "%s) %s\n", Letter(i), o)
	}
	return strings.TrimRight(b.String(), "\n")
}

// Letter returns the option label for index i: A, B, ... Z, then AA, AB.
func Letter(i int) string {
	if i < 26 {
		return string(rune('A' + i))
	}
	return Letter(i/26-1) + string(rune('A'+i%26))
}
