package practice

import (
	"fmt"
	"slices"
	"strings"

	"github.com/abhisek/lessonloop/internal/lesson"
)

// Candidate is the view of a generated item the validators check. Both
// exercises and assessment questions convert to it.
type Candidate struct {
	Type          string
	Text          string
	Options       []string
	Items         []string
	CorrectAnswer string
	CorrectOrder  []string
}

func exerciseCandidate(ex *lesson.Exercise) Candidate {
	return Candidate{
		Type:          ex.Type,
		Text:          ex.Instructions,
		Options:       ex.Options,
		Items:         ex.Items,
		CorrectAnswer: ex.CorrectAnswer,
		CorrectOrder:  ex.CorrectOrder,
	}
}

func questionCandidate(q *lesson.AssessmentQuestion) Candidate {
	return Candidate{
		Type:          q.Type,
		Text:          q.Question,
		Options:       q.Options,
		CorrectAnswer: q.CorrectAnswer,
	}
}

// Validator checks a generated item before it is shown to the learner.
// Implementations should be stateless and safe for concurrent use.
type Validator interface {
	// Name returns a short identifier used in logs, e.g. "structural".
	Name() string

	// Validate returns nil if the item passes.
	Validate(c Candidate) *ValidationError
}

// ValidationError describes why an item was rejected.
type ValidationError struct {
	Validator string // Name of the validator that failed
	Message   string // Human-readable description of the failure
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validator %q: %s", e.Validator, e.Message)
}

// StructuralValidator checks that the item has text and a type, within
// length limits.
type StructuralValidator struct{}

func (v *StructuralValidator) Name() string { return "structural" }

func (v *StructuralValidator) Validate(c Candidate) *ValidationError {
	if strings.TrimSpace(c.Text) == "" {
		return &ValidationError{Validator: v.Name(), Message: "item text is empty"}
	}
	if len(c.Text) > 2000 {
		return &ValidationError{Validator: v.Name(), Message: "item text exceeds 2000 characters"}
	}
	if c.Type == "" {
		return &ValidationError{Validator: v.Name(), Message: "type is empty"}
	}
	return nil
}

// ChoiceValidator checks multiple-choice and true/false items: enough
// distinct options, and a correct answer that names one of them.
type ChoiceValidator struct{}

func (v *ChoiceValidator) Name() string { return "choice" }

func (v *ChoiceValidator) Validate(c Candidate) *ValidationError {
	switch c.Type {
	case lesson.TypeMultipleChoice:
		if len(c.Options) < 2 || len(c.Options) > 8 {
			return &ValidationError{Validator: v.Name(), Message: "multiple_choice needs 2 to 8 options"}
		}
	case lesson.TypeTrueFalse:
		if len(c.Options) != 2 {
			return &ValidationError{Validator: v.Name(), Message: "true_false needs exactly 2 options"}
		}
	default:
		return nil
	}

	seen := make(map[string]bool, len(c.Options))
	for _, o := range c.Options {
		key := strings.ToLower(strings.TrimSpace(o))
		if key == "" {
			return &ValidationError{Validator: v.Name(), Message: "empty option"}
		}
		if seen[key] {
			return &ValidationError{Validator: v.Name(), Message: fmt.Sprintf("duplicate option %q", o)}
		}
		seen[key] = true
	}

	if c.CorrectAnswer != "" && MatchOption(c.Options, c.CorrectAnswer) < 0 {
		return &ValidationError{Validator: v.Name(), Message: "correct_answer does not match any option"}
	}
	return nil
}

// OrderingValidator checks that an ordering item has items to order and
// that a given correct order is a permutation of them.
type OrderingValidator struct{}

func (v *OrderingValidator) Name() string { return "ordering" }

func (v *OrderingValidator) Validate(c Candidate) *ValidationError {
	if c.Type != lesson.TypeOrdering {
		return nil
	}
	if len(c.Items) < 2 {
		return &ValidationError{Validator: v.Name(), Message: "ordering needs at least 2 items"}
	}
	if len(c.CorrectOrder) == 0 {
		return nil
	}
	if len(c.CorrectOrder) != len(c.Items) {
		return &ValidationError{Validator: v.Name(), Message: "correct_order length differs from items"}
	}
	want := slices.Clone(c.Items)
	got := slices.Clone(c.CorrectOrder)
	slices.Sort(want)
	slices.Sort(got)
	if !slices.Equal(want, got) {
		return &ValidationError{Validator: v.Name(), Message: "correct_order is not a permutation of items"}
	}
	return nil
}

// MatchOption returns the index of the option answer refers to, either by
// its text (case-insensitive) or by its letter ("B", "b)", "(b)"). It
// returns -1 when nothing matches.
func MatchOption(options []string, answer string) int {
	a := strings.ToLower(strings.TrimSpace(answer))
	for i, o := range options {
		if strings.ToLower(strings.TrimSpace(o)) == a {
			return i
		}
	}
	a = strings.Trim(a, "()., ")
	if len(a) == 1 && a[0] >= 'a' && a[0] <= 'z' {
		if i := int(a[0] - 'a'); i < len(options) {
			return i
		}
	}
	return -1
}

func normalizeType(t string) string {
	t = strings.ToLower(strings.TrimSpace(t))
	t = strings.NewReplacer(" ", "_", "-", "_").Replace(t)
	switch t {
	case "mcq", "multiple_choice_question", "multiplechoice":
		return lesson.TypeMultipleChoice
	case "true_or_false", "truefalse", "boolean":
		return lesson.TypeTrueFalse
	case "fill_in_the_blank", "fill_in_blank", "cloze":
		return lesson.TypeFillBlank
	case "open", "open_ended", "free_text":
		return lesson.TypeShortAnswer
	}
	return t
}

func normalizeExercise(ex *lesson.Exercise) {
	ex.ID = strings.TrimSpace(ex.ID)
	ex.Type = normalizeType(ex.Type)
	ex.Instructions = strings.TrimSpace(ex.Instructions)
	if ex.Type == lesson.TypeTrueFalse && len(ex.Options) == 0 {
		ex.Options = []string{"True", "False"}
	}
}

func normalizeQuestion(q *lesson.AssessmentQuestion) {
	q.ID = strings.TrimSpace(q.ID)
	q.Type = normalizeType(q.Type)
	q.Question = strings.TrimSpace(q.Question)
	if q.Type == lesson.TypeTrueFalse && len(q.Options) == 0 {
		q.Options = []string{"True", "False"}
	}
}
