package score_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/victornm/coursequiz/internal/domain"
	"github.com/victornm/coursequiz/internal/question"
	"github.com/victornm/coursequiz/internal/score"
)

func TestCompute(t *testing.T) {
	qs := question.Synthetic("m1", 0, domain.QuestionsPerQuiz)

	tests := map[string]struct {
		answers []int
		want    domain.Result
	}{
		"all correct should score 100 and pass": {
			answers: answersWithCorrect(50),
			want:    domain.Result{Correct: 50, Total: 50, ScorePercent: 100, TotalMarks: 100, Passed: true},
		},
		"35 correct should reach the pass threshold": {
			answers: answersWithCorrect(35),
			want:    domain.Result{Correct: 35, Total: 50, ScorePercent: 70, TotalMarks: 70, Passed: true},
		},
		"34 correct should fail": {
			answers: answersWithCorrect(34),
			want:    domain.Result{Correct: 34, Total: 50, ScorePercent: 68, TotalMarks: 68, Passed: false},
		},
		"20 correct should score 40": {
			answers: answersWithCorrect(20),
			want:    domain.Result{Correct: 20, Total: 50, ScorePercent: 40, TotalMarks: 40, Passed: false},
		},
		"no answers should count every question as incorrect": {
			answers: unanswered(50),
			want:    domain.Result{Correct: 0, Total: 50, ScorePercent: 0, TotalMarks: 0, Passed: false},
		},
		"short answer list should count missing entries as incorrect": {
			answers: []int{0, 0, 0},
			want:    domain.Result{Correct: 3, Total: 50, ScorePercent: 6, TotalMarks: 6, Passed: false},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, score.Compute(qs, tt.answers))
		})
	}
}

func TestCompute_RoundsHalfUp(t *testing.T) {
	qs := question.Synthetic("m1", 0, 8)

	// 1/8 = 12.5% and 3/8 = 37.5%
	assert.Equal(t, 13, score.Compute(qs, []int{0, 1, 1, 1, 1, 1, 1, 1}).ScorePercent)
	assert.Equal(t, 38, score.Compute(qs, []int{0, 0, 0, 1, 1, 1, 1, 1}).ScorePercent)
}

func TestCompute_NoQuestions(t *testing.T) {
	assert.Equal(t, domain.Result{}, score.Compute(nil, []int{0}))
}

// answersWithCorrect answers the synthetic question set, correct option 0, with n correct answers
// and the rest wrong.
func answersWithCorrect(n int) []int {
	a := make([]int, domain.QuestionsPerQuiz)
	for i := range a {
		if i >= n {
			a[i] = 1
		}
	}
	return a
}

func unanswered(n int) []int {
	a := make([]int, n)
	for i := range a {
		a[i] = domain.Unanswered
	}
	return a
}
