package lesson

import (
	"fmt"
	"slices"
	"strings"
)

// TaskKind distinguishes exercises from assessment questions.
type TaskKind string

const (
	TaskExercise   TaskKind = "exercise"
	TaskAssessment TaskKind = "assessment"
)

// Exercise types the generators ask for. The set is open: unknown types are
// presented as free-text answers.
const (
	TypeShortAnswer    = "short_answer"
	TypeOrdering       = "ordering"
	TypeMultipleChoice = "multiple_choice"
	TypeFillBlank      = "fill_blank"
	TypeTrueFalse      = "true_false"
)

// Exercise is a generated practice item.
type Exercise struct {
	ID            string   `json:"id"`
	Type          string   `json:"type"`
	Instructions  string   `json:"instructions"`
	Items         []string `json:"items,omitempty"`
	Options       []string `json:"options,omitempty"`
	CorrectAnswer string   `json:"correct_answer,omitempty"`
	CorrectOrder  []string `json:"correct_order,omitempty"`
	Hints         []string `json:"hints,omitempty"`
	Explanation   string   `json:"explanation,omitempty"`
}

// AssessmentQuestion is a generated quiz question.
type AssessmentQuestion struct {
	ID            string   `json:"id"`
	Type          string   `json:"type"`
	Question      string   `json:"question"`
	Options       []string `json:"options,omitempty"`
	CorrectAnswer string   `json:"correct_answer,omitempty"`
	Explanation   string   `json:"explanation,omitempty"`
}

// Task is the single item awaiting an answer. Exactly one of Exercise and
// Assessment is set, matching Kind.
type Task struct {
	Kind       TaskKind            `json:"kind"`
	Exercise   *Exercise           `json:"exercise,omitempty"`
	Assessment *AssessmentQuestion `json:"assessment,omitempty"`
}

// ExerciseTask wraps an exercise as a task.
func ExerciseTask(ex Exercise) *Task {
	return &Task{Kind: TaskExercise, Exercise: &ex}
}

// AssessmentTask wraps an assessment question as a task.
func AssessmentTask(q AssessmentQuestion) *Task {
	return &Task{Kind: TaskAssessment, Assessment: &q}
}

// ID returns the id of the wrapped item.
func (t *Task) ID() string {
	switch {
	case t == nil:
		return ""
	case t.Exercise != nil:
		return t.Exercise.ID
	case t.Assessment != nil:
		return t.Assessment.ID
	}
	return ""
}

// Type returns the item type, e.g. "multiple_choice".
func (t *Task) Type() string {
	switch {
	case t == nil:
		return ""
	case t.Exercise != nil:
		return t.Exercise.Type
	case t.Assessment != nil:
		return t.Assessment.Type
	}
	return ""
}

// Text returns the instructions or question text.
func (t *Task) Text() string {
	switch {
	case t == nil:
		return ""
	case t.Exercise != nil:
		return t.Exercise.Instructions
	case t.Assessment != nil:
		return t.Assessment.Question
	}
	return ""
}

// Options returns the answer options, if any.
func (t *Task) Options() []string {
	switch {
	case t == nil:
		return nil
	case t.Exercise != nil:
		return t.Exercise.Options
	case t.Assessment != nil:
		return t.Assessment.Options
	}
	return nil
}

// ExpectedAnswer describes the correct answer when the generator supplied
// one, or "" when unknown.
func (t *Task) ExpectedAnswer() string {
	switch {
	case t == nil:
		return ""
	case t.Exercise != nil:
		if len(t.Exercise.CorrectOrder) > 0 {
			return strings.Join(t.Exercise.CorrectOrder, " -> ")
		}
		return t.Exercise.CorrectAnswer
	case t.Assessment != nil:
		return t.Assessment.CorrectAnswer
	}
	return ""
}

// Summary is a one-line description used in prompts.
func (t *Task) Summary() string {
	if t == nil {
		return "None"
	}
	return fmt.Sprintf("%s %s (%s): %s", t.Kind, t.ID(), t.Type(), Excerpt(t.Text(), 80))
}

func (t *Task) clone() *Task {
	if t == nil {
		return nil
	}
	out := &Task{Kind: t.Kind}
	if t.Exercise != nil {
		ex := *t.Exercise
		ex.Items = slices.Clone(ex.Items)
		ex.Options = slices.Clone(ex.Options)
		ex.CorrectOrder = slices.Clone(ex.CorrectOrder)
		ex.Hints = slices.Clone(ex.Hints)
		out.Exercise = &ex
	}
	if t.Assessment != nil {
		q := *t.Assessment
		q.Options = slices.Clone(q.Options)
		out.Assessment = &q
	}
	return out
}

// IDSet is an append-only, insertion-ordered set of issued item ids.
type IDSet []string

// Has reports whether id was already issued.
func (s IDSet) Has(id string) bool {
	return slices.Contains(s, id)
}

// Add returns the set with id appended. Adding an existing id is a no-op.
func (s IDSet) Add(id string) IDSet {
	if s.Has(id) {
		return s
	}
	return append(s, id)
}
