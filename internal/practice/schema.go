package practice

import "github.com/abhisek/lessonloop/internal/llm"

var stringList = map[string]any{
	"type":  "array",
	"items": map[string]any{"type": "string"},
}

// ExerciseSchema defines the JSON the model returns for an exercise.
var ExerciseSchema = &llm.Schema{
	Name:        "lesson-exercise",
	Description: "A single practice exercise",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"id": map[string]any{
				"type":        "string",
				"description": "Short unique id, e.g. ex_nouns_3",
			},
			"type": map[string]any{
				"type":        "string",
				"description": "short_answer, multiple_choice, true_false, fill_blank or ordering",
			},
			"instructions": map[string]any{
				"type":        "string",
				"description": "What the learner must do, self-contained",
			},
			"items":          stringList,
			"options":        stringList,
			"correct_answer": map[string]any{"type": "string"},
			"correct_order":  stringList,
			"hints":          stringList,
			"explanation": map[string]any{
				"type":        "string",
				"description": "Why the correct answer is correct",
			},
		},
		"required": []any{"type", "instructions"},
	},
}

// AssessmentSchema defines the JSON the model returns for a quiz question.
var AssessmentSchema = &llm.Schema{
	Name:        "lesson-assessment-question",
	Description: "A single assessment question",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"id": map[string]any{
				"type":        "string",
				"description": "Short unique id, e.g. aq_nouns_2",
			},
			"type": map[string]any{
				"type":        "string",
				"description": "multiple_choice, true_false or short_answer",
			},
			"question":       map[string]any{"type": "string"},
			"options":        stringList,
			"correct_answer": map[string]any{"type": "string"},
			"explanation":    map[string]any{"type": "string"},
		},
		"required": []any{"type", "question"},
	},
}
