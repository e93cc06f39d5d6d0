package scoring

import (
	"sort"
	"strings"

	"majorcompass/internal/model"
)

// RIASEC sums the chosen side's weights over every answered item. The vector
// is not normalized.
func RIASEC(items []model.PrimaryItem, answers map[string]model.Side) model.RIASECScores {
	var total model.RIASECScores
	for i := range items {
		side, ok := answers[items[i].ID]
		if !ok {
			continue
		}
		total.Add(items[i].Weights(side))
	}
	return total
}

// Normalize scales every dimension by the largest one, or by 1 when all are zero
func Normalize(s model.RIASECScores) model.RIASECScores {
	div := s.Max()
	if div == 0 {
		div = 1
	}
	var out model.RIASECScores
	for _, d := range model.Dimensions {
		out.Set(d, s.Get(d)/div)
	}
	return out
}

// Ranked orders dimensions by score, ties broken by R-I-A-S-E-C order
func Ranked(s model.RIASECScores) []model.Dimension {
	dims := model.Dimensions
	out := dims[:]
	sort.SliceStable(out, func(i, j int) bool {
		return s.Get(out[i]) > s.Get(out[j])
	})
	return out
}

// HollandCode is the three strongest dimensions
func HollandCode(s model.RIASECScores) string {
	var b strings.Builder
	for _, d := range Ranked(s)[:3] {
		b.WriteString(string(d))
	}
	return b.String()
}
