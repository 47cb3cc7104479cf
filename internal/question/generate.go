package question

import (
	"fmt"

	"github.com/victornm/coursequiz/internal/domain"
)

// Synthetic returns n placeholder questions numbered from from+1. The first option is
// always the correct one.
func Synthetic(moduleID string, from, n int) []domain.Question {
	qs := make([]domain.Question, 0, n)
	for i := 0; i < n; i++ {
		k := from + i + 1
		qs = append(qs, domain.Question{
			QuestionID: fmt.Sprintf("%s-synthetic-%02d", moduleID, k),
			ModuleID:   moduleID,
			Prompt:     fmt.Sprintf("Question %d: Which statement best describes key concept %d of this module?", k, k),
			Options: []string{
				fmt.Sprintf("Key concept %d as presented in the module", k),
				"A concept from an unrelated module",
				"A common misconception about the topic",
				"None of the above",
			},
			CorrectIndex: 0,
			Explanation:  fmt.Sprintf("Key concept %d is presented in this module exactly as the first option states.", k),
			Points:       domain.PointsPerQuestion,
			Synthetic:    true,
		})
	}
	return qs
}

// Sample returns n sample questions for seeding a module, numbered from from+1.
// The correct option rotates through the four positions.
func Sample(moduleID string, from, n int) []domain.Question {
	qs := make([]domain.Question, 0, n)
	for i := 0; i < n; i++ {
		k := from + i + 1
		correct := k % domain.OptionsPerQuestion

		opts := make([]string, domain.OptionsPerQuestion)
		for j := range opts {
			if j == correct {
				opts[j] = fmt.Sprintf("The defining property of topic %d", k)
			} else {
				opts[j] = fmt.Sprintf("Distractor %c for topic %d", 'A'+rune(j), k)
			}
		}

		qs = append(qs, domain.Question{
			ModuleID:     moduleID,
			Prompt:       fmt.Sprintf("Module %s, question %d: what characterizes topic %d?", moduleID, k, k),
			Options:      opts,
			CorrectIndex: correct,
			Explanation:  fmt.Sprintf("Topic %d is characterized by its defining property, option %d.", k, correct+1),
			Points:       domain.PointsPerQuestion,
		})
	}
	return qs
}
