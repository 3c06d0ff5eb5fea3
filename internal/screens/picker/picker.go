// Package picker lists the catalog's lessons and opens the chosen one.
package picker

import (
	"fmt"

	tea "charm.land/bubbletea/v2"

	"github.com/abhisek/lessonloop/internal/exposition"
	"github.com/abhisek/lessonloop/internal/lesson"
	"github.com/abhisek/lessonloop/internal/router"
	"github.com/abhisek/lessonloop/internal/screen"
	"github.com/abhisek/lessonloop/internal/screens/lessonchat"
	"github.com/abhisek/lessonloop/internal/ui/components"
	"github.com/abhisek/lessonloop/internal/ui/layout"
	"github.com/abhisek/lessonloop/internal/ui/theme"
)

// Screen is the lesson menu.
type Screen struct {
	engine lessonchat.Engine
	userID string
	menu   components.Menu
}

var _ screen.Screen = (*Screen)(nil)
var _ screen.KeyHintProvider = (*Screen)(nil)

// New builds the menu from every lesson of the catalog.
func New(catalog *exposition.Catalog, engine lessonchat.Engine, userID string) *Screen {
	s := &Screen{engine: engine, userID: userID}

	var items []components.MenuItem
	for _, syl := range catalog.Syllabi {
		items = append(items, components.MenuItem{Label: syl.Title, Heading: true})
		for mi, mod := range syl.Modules {
			for li, l := range mod.Lessons {
				key := lesson.Key{
					UserID: userID,
					Ref:    lesson.Ref{SyllabusID: syl.ID, ModuleIndex: mi, LessonIndex: li},
				}
				title := l.Title
				items = append(items, components.MenuItem{
					Label:  fmt.Sprintf("%d.%d  %s", mi+1, li+1, l.Title),
					Detail: mod.Title,
					Action: func() tea.Cmd {
						return router.Push(lessonchat.New(engine, key, title))
					},
				})
			}
		}
	}
	s.menu = components.NewMenu(items)
	return s
}

func (s *Screen) Init() tea.Cmd {
	return nil
}

func (s *Screen) Title() string {
	return "Lessons"
}

func (s *Screen) KeyHints() []layout.KeyHint {
	return []layout.KeyHint{
		{Key: "↑↓", Description: "Navigate"},
		{Key: "Enter", Description: "Open"},
		{Key: "Ctrl+C", Description: "Quit"},
	}
}

func (s *Screen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	var cmd tea.Cmd
	s.menu, cmd = s.menu.Update(msg)
	return s, cmd
}

func (s *Screen) View(width, height int) string {
	intro := theme.Subtitle.Render("Learning as " + s.userID + ". Pick a lesson to chat with your tutor.")
	return intro + "\n\n" + s.menu.View(height-3)
}
