package catalog

import "majorcompass/internal/model"

// ActiveQuestions returns the questions that apply to answers, in catalog order.
// Unconditional questions are always present; a conditional one is present only
// while its controlling answer equals one of its trigger values. Answers of
// questions that drop out are left in place.
func ActiveQuestions(questions []model.QuestionDefinition, answers model.AnswerSet) []model.QuestionDefinition {
	active := make([]model.QuestionDefinition, 0, len(questions))
	for _, q := range questions {
		if q.Condition == nil || q.Condition.Matches(answers) {
			active = append(active, q)
		}
	}
	return active
}
