// Package scoring derives result metrics from raw answers. Every function is
// total: missing or mistyped answers count as zero or neutral.
package scoring

import (
	"strings"

	"majorcompass/internal/model"
)

// Decision thresholds on the 1-5 mean of the decision block
const (
	DecidedThreshold   = 4.0
	ExploringThreshold = 2.5
)

var valueItems = struct {
	achievement, autonomy, creativity, stability, altruism, wealth, recognition []string
}{
	achievement: []string{"v01", "v02"},
	autonomy:    []string{"v03", "v04"},
	creativity:  []string{"v05", "v06"},
	stability:   []string{"v07", "v08", "v09"},
	altruism:    []string{"v10", "v11"},
	wealth:      []string{"v12", "v13"},
	recognition: []string{"v14", "v15", "v16"},
}

var decisionItems = []string{"d01", "d02", "d03", "d04"}

const decisionFactors = "d05"

var efficacyItems = []struct {
	id  string
	dim model.Dimension
}{
	{"e01", model.Realistic},
	{"e02", model.Investigative},
	{"e03", model.Artistic},
	{"e04", model.Social},
	{"e05", model.Enterprising},
	{"e06", model.Conventional},
}

var preferenceDetailItems = []string{"p01a", "p02a", "p04a"}

const (
	roleModelGate   = "r01"
	roleModelText   = "r02"
	roleModelTraits = "r03"
	valueRankItem   = "k01"
)

// Supplementary holds everything derived from the supplementary answers
type Supplementary struct {
	ValueScores    model.ValueScores
	CareerDecision model.CareerDecision
	SelfEfficacy   map[model.Dimension]float64
	Preferences    model.Preferences
	RoleModel      *model.RoleModel
	ValueRanking   map[string]int
}

// ScoreSupplementary runs every supplementary aggregate over answers
func ScoreSupplementary(answers model.AnswerSet) Supplementary {
	return Supplementary{
		ValueScores:    ValueScores(answers),
		CareerDecision: CareerDecision(answers),
		SelfEfficacy:   SelfEfficacy(answers),
		Preferences:    Preferences(answers),
		RoleModel:      RoleModel(answers),
		ValueRanking:   ValueRanking(answers),
	}
}

func numeric(v model.AnswerValue) float64 {
	switch v.Kind {
	case model.KindNumber:
		return v.Num
	case model.KindNone, model.KindText, model.KindList, model.KindRanking:
		return 0
	}
	return 0
}

func text(v model.AnswerValue) string {
	switch v.Kind {
	case model.KindText:
		return strings.TrimSpace(v.Text)
	case model.KindNone, model.KindNumber, model.KindList, model.KindRanking:
		return ""
	}
	return ""
}

func list(v model.AnswerValue) []string {
	switch v.Kind {
	case model.KindList:
		return append([]string{}, v.List...)
	case model.KindNone, model.KindNumber, model.KindText, model.KindRanking:
		return nil
	}
	return nil
}

func ranking(v model.AnswerValue) map[string]int {
	switch v.Kind {
	case model.KindRanking:
		out := make(map[string]int, len(v.Ranks))
		for k, r := range v.Ranks {
			out[k] = r
		}
		return out
	case model.KindNone, model.KindNumber, model.KindText, model.KindList:
		return nil
	}
	return nil
}

// mean divides by len(ids) regardless of how many are answered
func mean(answers model.AnswerSet, ids []string) float64 {
	if len(ids) == 0 {
		return 0
	}
	var sum float64
	for _, id := range ids {
		sum += numeric(answers[id])
	}
	return sum / float64(len(ids))
}

// ValueScores computes the seven work-value means
func ValueScores(answers model.AnswerSet) model.ValueScores {
	return model.ValueScores{
		Achievement: mean(answers, valueItems.achievement),
		Autonomy:    mean(answers, valueItems.autonomy),
		Creativity:  mean(answers, valueItems.creativity),
		Stability:   mean(answers, valueItems.stability),
		Altruism:    mean(answers, valueItems.altruism),
		Wealth:      mean(answers, valueItems.wealth),
		Recognition: mean(answers, valueItems.recognition),
	}
}

// DecisionStatus classifies a decision-block mean
func DecisionStatus(m float64) model.DecisionStatus {
	switch {
	case m >= DecidedThreshold:
		return model.DecisionDecided
	case m >= ExploringThreshold:
		return model.DecisionExploring
	default:
		return model.DecisionUndecided
	}
}

// CareerDecision classifies the decision block and attaches blocking factors
func CareerDecision(answers model.AnswerSet) model.CareerDecision {
	m := mean(answers, decisionItems)
	return model.CareerDecision{
		Status:     DecisionStatus(m),
		Confidence: m,
		Factors:    list(answers[decisionFactors]),
	}
}

// SelfEfficacy maps each answered efficacy item onto its dimension
func SelfEfficacy(answers model.AnswerSet) map[model.Dimension]float64 {
	out := make(map[model.Dimension]float64, len(efficacyItems))
	for _, it := range efficacyItems {
		v, ok := answers[it.id]
		if !ok || v.Kind != model.KindNumber {
			continue
		}
		out[it.dim] = v.Num
	}
	return out
}

// Preferences passes the preference answers through and collects non-empty details
func Preferences(answers model.AnswerSet) model.Preferences {
	p := model.Preferences{
		StudyStyle:   text(answers["p01"]),
		Environment:  text(answers["p02"]),
		ChoiceFactor: text(answers["p03"]),
		CareerGoal:   text(answers["p04"]),
	}
	for _, id := range preferenceDetailItems {
		if d := text(answers[id]); d != "" {
			p.Details = append(p.Details, d)
		}
	}
	return p
}

// RoleModel returns nil unless the gate question was answered "Yes"
func RoleModel(answers model.AnswerSet) *model.RoleModel {
	if text(answers[roleModelGate]) != "Yes" {
		return nil
	}
	return &model.RoleModel{
		Description: text(answers[roleModelText]),
		Traits:      list(answers[roleModelTraits]),
	}
}

// ValueRanking returns the ranked values, or nil when unanswered
func ValueRanking(answers model.AnswerSet) map[string]int {
	r := ranking(answers[valueRankItem])
	if len(r) == 0 {
		return nil
	}
	return r
}
