package model

import "time"

// DashboardStats aggregates stored results for the admin dashboard
type DashboardStats struct {
	TotalResults int     `json:"totalResults"`
	SkippedCount int     `json:"skippedCount"`
	SkipRate     float64 `json:"skipRate"` // 0-1

	// Decision status -> count
	DecisionDistribution map[DecisionStatus]int `json:"decisionDistribution"`

	// Means over records that carry the block
	MeanRIASEC      RIASECScores `json:"meanRiasec"`
	MeanValueScores ValueScores  `json:"meanValueScores"`

	TopHollandCodes []CodeCount    `json:"topHollandCodes"`
	ClusterCounts   map[string]int `json:"clusterCounts"`

	GeneratedAt time.Time `json:"generatedAt"`
}

// CodeCount is a Holland code with how many results carry it
type CodeCount struct {
	Code  string `json:"code"`
	Count int64  `json:"count"`
}
