package score

import (
	"github.com/shopspring/decimal"

	"github.com/victornm/coursequiz/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// Compute scores answers against questions. answers[i] is the option selected for
// questions[i]; missing or unanswered entries count as incorrect.
// The percentage is rounded half up.
func Compute(questions []domain.Question, answers []int) domain.Result {
	res := domain.Result{Total: len(questions)}

	for i, q := range questions {
		if i < len(answers) && answers[i] != domain.Unanswered && answers[i] == q.CorrectIndex {
			res.Correct++
		}
	}

	if res.Total > 0 {
		res.ScorePercent = int(decimal.NewFromInt(int64(res.Correct)).
			Mul(hundred).
			Div(decimal.NewFromInt(int64(res.Total))).
			Round(0).
			IntPart())
	}

	res.TotalMarks = res.Correct * domain.PointsPerQuestion
	res.Passed = res.ScorePercent >= domain.PassPercent
	return res
}
