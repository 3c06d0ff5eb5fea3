package lessonchat

import (
	"strings"
	"time"

	"charm.land/lipgloss/v2"

	"github.com/abhisek/lessonloop/internal/lesson"
	"github.com/abhisek/lessonloop/internal/ui/components"
	"github.com/abhisek/lessonloop/internal/ui/layout"
	"github.com/abhisek/lessonloop/internal/ui/theme"
)

var timeNow = time.Now

func (s *Screen) View(width, height int) string {
	s.input.SetWidth(width - 4)

	var footer strings.Builder
	if s.session != nil {
		if sum := s.session.Summary(); sum.Attempts > 0 {
			footer.WriteString(components.NewProgressBar("Score", sum.AverageScore, true, min(width-2, 48)).View())
			footer.WriteString("\n")
		}
	}
	switch {
	case s.errMsg != "":
		footer.WriteString(theme.ErrorText.Render(layout.Wrap("Error: "+s.errMsg, width-2)))
		footer.WriteString("\n")
	case s.busy:
		footer.WriteString(theme.Hint.Render("Tutor is thinking..."))
		footer.WriteString("\n")
	}
	footer.WriteString(s.input.View())
	bottom := footer.String()

	room := height - lipgloss.Height(bottom) - 1
	transcript := tail(s.renderTranscript(width-2), room)
	return lipgloss.JoinVertical(lipgloss.Left, transcript, "", bottom)
}

func (s *Screen) renderTranscript(width int) string {
	if len(s.history) == 0 {
		return theme.Hint.Render("Say hello to start the lesson.")
	}
	blocks := make([]string, 0, len(s.history))
	for _, m := range s.history {
		blocks = append(blocks, renderMessage(m, width))
	}
	return strings.Join(blocks, "\n\n")
}

func renderMessage(m lesson.Message, width int) string {
	if m.Role == lesson.RoleUser {
		return theme.LearnerName.Render("You") + "\n" + theme.Body.Render(layout.Wrap(m.Content, width))
	}

	name := theme.TutorName.Render("Tutor")
	switch m.Kind {
	case lesson.KindExercisePrompt, lesson.KindAssessmentPrompt:
		return name + "\n" + theme.TaskCard.Render(layout.Wrap(m.Content, width-4))
	case lesson.KindFeedback:
		mark := theme.Incorrect.Render("✗")
		if correct, _ := m.Metadata["is_correct"].(bool); correct {
			mark = theme.Correct.Render("✓")
		}
		return name + " " + mark + "\n" + theme.Body.Render(layout.Wrap(m.Content, width))
	case lesson.KindError:
		return name + "\n" + theme.ErrorText.Render(layout.Wrap(m.Content, width))
	default:
		return name + "\n" + theme.Body.Render(layout.Wrap(m.Content, width))
	}
}

// tail keeps the last n lines of s.
func tail(s string, n int) string {
	if n <= 0 {
		return ""
	}
	lines := strings.Split(s, "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
