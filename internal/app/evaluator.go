package app

import (
	"math"

	"quiz-session-service/internal/domain"
)

// Evaluate scores one question against the selected labels.
//
// Single-choice: full credit iff exactly one label is selected and it is
// the correct one. Multi-choice: proportional credit with a penalty of
// 1/totalCorrect per incorrectly selected label, floored at zero.
func Evaluate(q domain.Question, selected []string) domain.Evaluation {
	eval := domain.Evaluation{
		TotalCorrect:     q.Correct.Count(),
		IsMultipleChoice: q.Correct.Multiple(),
	}
	if !q.Correct.Defined() {
		return eval
	}

	for _, label := range selected {
		if q.Correct.Contains(label) {
			eval.CorrectCount++
		} else {
			eval.IncorrectCount++
		}
	}

	if !eval.IsMultipleChoice {
		if len(selected) == 1 && eval.CorrectCount == 1 {
			eval.PartialScore = 1
			eval.IsCorrect = true
		}
		return eval
	}

	total := float64(eval.TotalCorrect)
	raw := float64(eval.CorrectCount) / total
	penalized := raw - float64(eval.IncorrectCount)/total
	if penalized < 0 {
		penalized = 0
	}
	if penalized > raw {
		penalized = raw
	}
	eval.PartialScore = penalized
	eval.IsCorrect = eval.CorrectCount == eval.TotalCorrect && eval.IncorrectCount == 0
	return eval
}

// Score aggregates earned points over all scorable questions. Questions
// without a defined answer key are excluded from numerator and denominator
// alike, and a quiz with no scorable questions reports 0%, not NaN.
func Score(questions []domain.Question, selections map[string][]string) domain.ScoreResult {
	result := domain.ScoreResult{
		Breakdown: make([]domain.QuestionScore, 0, len(questions)),
	}
	for _, q := range questions {
		if !q.Scorable() {
			continue
		}
		selected := selections[q.ID]
		eval := Evaluate(q, selected)
		earned := eval.PartialScore * float64(q.Points)
		result.Score += earned
		result.Total += q.Points
		result.Breakdown = append(result.Breakdown, domain.QuestionScore{
			QuestionID:   q.ID,
			Selected:     append([]string(nil), selected...),
			Correct:      q.Correct.Labels(),
			EarnedPoints: earned,
			FullScore:    q.Points,
			IsCorrect:    eval.IsCorrect,
		})
	}
	if result.Total > 0 {
		result.Percentage = int(math.Round(result.Score / float64(result.Total) * 100))
	}
	return result
}
