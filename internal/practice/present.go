package practice

import (
	"fmt"
	"strings"

	"github.com/abhisek/lessonloop/internal/lesson"
	"github.com/abhisek/lessonloop/internal/prompt"
)

// PresentExercise renders an exercise as the tutor message that shows it.
func PresentExercise(ex lesson.Exercise) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Exercise (%s)\n\n", typeLabel(ex.Type))
	b.WriteString(ex.Instructions)

	if len(ex.Items) > 0 {
		b.WriteString("\n\nItems:\n")
		b.WriteString(prompt.NumberedList(ex.Items, 0))
	}
	if len(ex.Options) > 0 {
		b.WriteString("\n\nOptions:\n")
		b.WriteString(prompt.LetteredList(ex.Options))
	}

	b.WriteString("\n\n")
	b.WriteString(HowToAnswer(ex.Type))
	return b.String()
}

// PresentQuestion renders an assessment question.
func PresentQuestion(q lesson.AssessmentQuestion) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Quiz question (%s)\n\n", typeLabel(q.Type))
	b.WriteString(q.Question)

	if len(q.Options) > 0 {
		b.WriteString("\n\nOptions:\n")
		b.WriteString(prompt.LetteredList(q.Options))
	}

	b.WriteString("\n\n")
	b.WriteString(HowToAnswer(q.Type))
	return b.String()
}

// HowToAnswer tells the learner how to reply for an item type.
func HowToAnswer(itemType string) string {
	switch itemType {
	case lesson.TypeMultipleChoice:
		return "Reply with the letter or the text of your choice."
	case lesson.TypeTrueFalse:
		return "Reply with True or False."
	case lesson.TypeOrdering:
		return "Reply with the item numbers in the right order, for example: 2, 1, 3."
	case lesson.TypeFillBlank:
		return "Reply with the word or phrase that fills the blank."
	default:
		return "Type your answer in your next message."
	}
}

func typeLabel(t string) string {
	if t == "" {
		return "open answer"
	}
	return strings.ReplaceAll(t, "_", " ")
}
