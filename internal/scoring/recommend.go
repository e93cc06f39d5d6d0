package scoring

import (
	"math"
	"sort"

	"majorcompass/internal/model"
)

// profile positions weigh 3, 2, 1
var profileWeights = []float64{3, 2, 1}

const preferredClusterBonus = 0.05

// Fit scores how well a major's profile matches a normalized RIASEC vector, 0-1
func Fit(major model.Major, normalized model.RIASECScores) float64 {
	var sum, max float64
	for i, d := range major.Profile {
		if i >= len(profileWeights) {
			break
		}
		sum += profileWeights[i] * normalized.Get(d)
		max += profileWeights[i]
	}
	if max == 0 {
		return 0
	}
	return sum / max
}

// RecommendMajors ranks majors across clusters and returns the best n.
// Majors in the preferred cluster get a small bonus.
func RecommendMajors(clusters []model.Cluster, scores model.RIASECScores, preferred string, n int) []model.MajorMatch {
	norm := Normalize(scores)
	var out []model.MajorMatch
	for _, c := range clusters {
		for _, m := range c.Majors {
			fit := Fit(m, norm)
			if c.ID == preferred {
				fit = math.Min(1, fit+preferredClusterBonus)
			}
			out = append(out, model.MajorMatch{
				MajorID:   m.ID,
				Name:      m.Name,
				ClusterID: c.ID,
				Fit:       math.Round(fit*1000) / 1000,
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Fit != out[j].Fit {
			return out[i].Fit > out[j].Fit
		}
		return out[i].MajorID < out[j].MajorID
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
