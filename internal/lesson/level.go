package lesson

// Knowledge levels, lowest first.
const (
	LevelBeginner      = "beginner"
	LevelEarlyLearner  = "early_learner"
	LevelGoodKnowledge = "good_knowledge"
	LevelAdvanced      = "advanced"
)

// LevelForScore maps a weighted percentage (0-100) to a knowledge level.
func LevelForScore(pct float64) string {
	switch {
	case pct >= 85:
		return LevelAdvanced
	case pct >= 65:
		return LevelGoodKnowledge
	case pct >= 35:
		return LevelEarlyLearner
	default:
		return LevelBeginner
	}
}

// Summary aggregates the evaluated attempts of a session.
type Summary struct {
	Attempts     int     `json:"attempts"`
	Correct      int     `json:"correct"`
	Exercises    int     `json:"exercises"`
	Assessments  int     `json:"assessments"`
	AverageScore float64 `json:"average_score"`
	Level        string  `json:"level"`
}

// Summary computes attempt counts and the knowledge level implied by the
// average score. With no attempts the level is beginner.
func (s Session) Summary() Summary {
	var sum Summary
	var total float64
	for _, r := range s.Responses {
		sum.Attempts++
		if r.Evaluation.IsCorrect {
			sum.Correct++
		}
		switch r.Kind {
		case TaskExercise:
			sum.Exercises++
		case TaskAssessment:
			sum.Assessments++
		}
		total += r.Evaluation.Score
	}
	if sum.Attempts > 0 {
		sum.AverageScore = total / float64(sum.Attempts)
	}
	sum.Level = LevelForScore(sum.AverageScore * 100)
	return sum
}
