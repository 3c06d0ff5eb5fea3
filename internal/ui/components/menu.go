package components

import (
	"strings"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/abhisek/lessonloop/internal/ui/theme"
)

// MenuItem is one entry of a menu. Items with a Heading are section
// titles and cannot be selected.
type MenuItem struct {
	Label    string
	Detail   string
	Heading  bool
	Action   func() tea.Cmd
	Disabled bool
}

func (i MenuItem) selectable() bool {
	return !i.Disabled && !i.Heading
}

// Menu is a vertical navigation menu.
type Menu struct {
	Items    []MenuItem
	Selected int
}

// NewMenu creates a new menu with the given items.
func NewMenu(items []MenuItem) Menu {
	selected := 0
	for i, item := range items {
		if item.selectable() {
			selected = i
			break
		}
	}
	return Menu{
		Items:    items,
		Selected: selected,
	}
}

// Init returns nil (no initial command).
func (m Menu) Init() tea.Cmd {
	return nil
}

// Update handles keyboard navigation.
func (m Menu) Update(msg tea.Msg) (Menu, tea.Cmd) {
	kmsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch kmsg.String() {
	case "up", "k":
		for i := m.Selected - 1; i >= 0; i-- {
			if m.Items[i].selectable() {
				m.Selected = i
				break
			}
		}
	case "down", "j":
		for i := m.Selected + 1; i < len(m.Items); i++ {
			if m.Items[i].selectable() {
				m.Selected = i
				break
			}
		}
	case "enter":
		if m.Selected >= 0 && m.Selected < len(m.Items) {
			item := m.Items[m.Selected]
			if item.Action != nil && item.selectable() {
				return m, item.Action()
			}
		}
	}

	return m, nil
}

// View renders the menu, scrolled so the selection stays within height
// lines. height <= 0 shows every item.
func (m Menu) View(height int) string {
	start := 0
	if height > 0 && m.Selected >= height {
		start = m.Selected - height + 1
	}

	var b strings.Builder
	for i := start; i < len(m.Items); i++ {
		if height > 0 && i-start >= height {
			break
		}
		item := m.Items[i]
		switch {
		case item.Heading:
			b.WriteString(theme.Title.Align(lipgloss.Left).Render(item.Label))
		case i == m.Selected:
			b.WriteString(theme.Selected.Render("  ▸ " + item.Label))
		case item.Disabled:
			b.WriteString(theme.Hint.Render("    " + item.Label))
		default:
			b.WriteString(theme.Unselected.Render("    " + item.Label))
		}
		if item.Detail != "" && !item.Heading {
			b.WriteString(theme.Hint.Render("  " + item.Detail))
		}
		b.WriteString("\n")
	}
	return b.String()
}
