package model

import "fmt"

// QuestionType defines how a supplementary question is answered
type QuestionType string

const (
	QuestionTypeScale  QuestionType = "scale"  // Likert 1-5, auto-advances
	QuestionTypeSingle QuestionType = "single" // One option, auto-advances
	QuestionTypeMulti  QuestionType = "multi"  // Up to MaxSelections options
	QuestionTypeRank   QuestionType = "rank"   // Options ranked 1..MaxRank
	QuestionTypeText   QuestionType = "text"   // Free text, optional
)

// Area groups supplementary questions by what they measure
type Area string

const (
	AreaValues     Area = "values"
	AreaDecision   Area = "decision"
	AreaEfficacy   Area = "efficacy"
	AreaPreference Area = "preference"
	AreaRoleModel  Area = "rolemodel"
	AreaRanking    Area = "ranking"
)

// Condition gates a question on the answer of an earlier one
type Condition struct {
	DependsOn     string        `json:"dependsOn" yaml:"depends_on"`
	TriggerValues []AnswerValue `json:"triggerValues" yaml:"trigger_values"`
}

// Matches reports whether the controlling answer activates the question.
func (c *Condition) Matches(answers AnswerSet) bool {
	v, ok := answers[c.DependsOn]
	if !ok || v.IsZero() {
		return false
	}
	for _, t := range c.TriggerValues {
		if v.Equal(t) {
			return true
		}
	}
	return false
}

// QuestionDefinition is an immutable catalog entry of the supplementary survey
type QuestionDefinition struct {
	ID            string       `json:"id" yaml:"id"`
	Area          Area         `json:"area" yaml:"area"`
	Type          QuestionType `json:"type" yaml:"type"`
	Prompt        string       `json:"prompt" yaml:"prompt"`
	Options       []string     `json:"options,omitempty" yaml:"options"`
	Condition     *Condition   `json:"condition,omitempty" yaml:"condition"`
	MaxSelections int          `json:"maxSelections,omitempty" yaml:"max_selections"` // multi only
	MaxRank       int          `json:"maxRank,omitempty" yaml:"max_rank"`             // rank only
	ScaleMin      int          `json:"scaleMin,omitempty" yaml:"scale_min"`           // scale only
	ScaleMax      int          `json:"scaleMax,omitempty" yaml:"scale_max"`           // scale only
}

// AutoAdvances reports whether recording an answer moves on by itself.
func (q *QuestionDefinition) AutoAdvances() bool {
	return q.Type == QuestionTypeScale || q.Type == QuestionTypeSingle
}

// Optional reports whether the question may be left unanswered.
func (q *QuestionDefinition) Optional() bool {
	return q.Type == QuestionTypeText
}

func (q *QuestionDefinition) hasOption(opt string) bool {
	for _, o := range q.Options {
		if o == opt {
			return true
		}
	}
	return false
}

// Validate checks that v is an acceptable answer for q.
func (q *QuestionDefinition) Validate(v AnswerValue) error {
	switch q.Type {
	case QuestionTypeScale:
		if v.Kind != KindNumber {
			return fmt.Errorf("%w: %s expects a number", ErrInvalidAnswer, q.ID)
		}
		if v.Num < float64(q.ScaleMin) || v.Num > float64(q.ScaleMax) {
			return fmt.Errorf("%w: %s out of range %d-%d", ErrInvalidAnswer, q.ID, q.ScaleMin, q.ScaleMax)
		}
	case QuestionTypeSingle:
		if v.Kind != KindText || !q.hasOption(v.Text) {
			return fmt.Errorf("%w: %s expects one of its options", ErrInvalidAnswer, q.ID)
		}
	case QuestionTypeMulti:
		if v.Kind != KindList {
			return fmt.Errorf("%w: %s expects a list", ErrInvalidAnswer, q.ID)
		}
		if q.MaxSelections > 0 && len(v.List) > q.MaxSelections {
			return fmt.Errorf("%w: %s allows at most %d selections", ErrInvalidAnswer, q.ID, q.MaxSelections)
		}
		seen := make(map[string]bool, len(v.List))
		for _, item := range v.List {
			if !q.hasOption(item) || seen[item] {
				return fmt.Errorf("%w: %s has unknown or repeated option %q", ErrInvalidAnswer, q.ID, item)
			}
			seen[item] = true
		}
	case QuestionTypeRank:
		if v.Kind != KindRanking {
			return fmt.Errorf("%w: %s expects a ranking", ErrInvalidAnswer, q.ID)
		}
		if q.MaxRank > 0 && len(v.Ranks) > q.MaxRank {
			return fmt.Errorf("%w: %s ranks at most %d options", ErrInvalidAnswer, q.ID, q.MaxRank)
		}
		for opt := range v.Ranks {
			if !q.hasOption(opt) {
				return fmt.Errorf("%w: %s has unknown option %q", ErrInvalidAnswer, q.ID, opt)
			}
		}
		if !RanksContiguous(v.Ranks) {
			return fmt.Errorf("%w: %s ranks must be 1..%d without gaps", ErrInvalidAnswer, q.ID, len(v.Ranks))
		}
	case QuestionTypeText:
		if v.Kind != KindText {
			return fmt.Errorf("%w: %s expects text", ErrInvalidAnswer, q.ID)
		}
		if len(v.Text) > MaxTextAnswerLen {
			return fmt.Errorf("%w: %s is longer than %d bytes", ErrInvalidAnswer, q.ID, MaxTextAnswerLen)
		}
	default:
		return fmt.Errorf("%w: unknown question type %q", ErrInvalidAnswer, q.Type)
	}
	return nil
}

// MaxTextAnswerLen caps free-text answers
const MaxTextAnswerLen = 2000
