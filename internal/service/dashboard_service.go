package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"majorcompass/internal/cache"
	"majorcompass/internal/logger"
	"majorcompass/internal/model"
)

const topHollandCodes = 5

// DashboardService aggregates stored results for the admin dashboard
type DashboardService struct {
	results   *ResultService
	holland   cache.HollandCache
	dashboard cache.DashboardCache
	listMax   int
	now       func() time.Time
}

// NewDashboardService creates a new dashboard service
func NewDashboardService(results *ResultService, holland cache.HollandCache, dashboard cache.DashboardCache, listMax int) *DashboardService {
	if listMax <= 0 {
		listMax = 500
	}
	return &DashboardService{
		results:   results,
		holland:   holland,
		dashboard: dashboard,
		listMax:   listMax,
		now:       time.Now,
	}
}

// Stats returns the cached aggregate, recomputing it when the cache is empty
func (s *DashboardService) Stats(ctx context.Context) (*model.DashboardStats, error) {
	cached, err := s.dashboard.Get(ctx)
	if err != nil {
		logger.Log.Warn("dashboard cache read failed", zap.Error(err))
	}
	if cached != nil {
		return cached, nil
	}

	records, err := s.results.List(ctx, s.listMax)
	if err != nil {
		return nil, fmt.Errorf("failed to load results: %w", err)
	}
	stats := Aggregate(records)
	stats.GeneratedAt = s.now().UTC()

	// the Redis counters cover every result ever saved, not just the listed window
	if top, err := s.holland.GetTop(ctx, topHollandCodes); err == nil && len(top) > 0 {
		stats.TopHollandCodes = top
	}
	if clusters, err := s.holland.ClusterCounts(ctx); err == nil && len(clusters) > 0 {
		stats.ClusterCounts = clusters
	}

	if err := s.dashboard.Set(ctx, stats); err != nil {
		logger.Log.Warn("dashboard cache write failed", zap.Error(err))
	}
	return stats, nil
}

// Aggregate computes dashboard statistics over records. Supplementary means
// ignore skipped records; the RIASEC mean covers every record with scores.
func Aggregate(records []*model.ResultRecord) *model.DashboardStats {
	stats := &model.DashboardStats{
		TotalResults:         len(records),
		DecisionDistribution: map[model.DecisionStatus]int{},
		TopHollandCodes:      []model.CodeCount{},
		ClusterCounts:        map[string]int{},
	}

	var riasecN, valuesN int
	codes := map[string]int64{}
	for _, rec := range records {
		if rec.Cluster != "" {
			stats.ClusterCounts[rec.Cluster]++
		}
		if rec.HollandCode != "" {
			codes[rec.HollandCode]++
		}
		if rec.RIASEC != nil {
			stats.MeanRIASEC.Add(*rec.RIASEC)
			riasecN++
		}
		if rec.SupplementarySkipped {
			stats.SkippedCount++
			continue
		}
		if rec.CareerDecision.Status != "" {
			stats.DecisionDistribution[rec.CareerDecision.Status]++
		}
		addValues(&stats.MeanValueScores, rec.ValueScores)
		valuesN++
	}

	if stats.TotalResults > 0 {
		stats.SkipRate = round3(float64(stats.SkippedCount) / float64(stats.TotalResults))
	}
	if riasecN > 0 {
		for _, d := range model.Dimensions {
			stats.MeanRIASEC.Set(d, round3(stats.MeanRIASEC.Get(d)/float64(riasecN)))
		}
	}
	if valuesN > 0 {
		scaleValues(&stats.MeanValueScores, 1/float64(valuesN))
	}

	for code, n := range codes {
		stats.TopHollandCodes = append(stats.TopHollandCodes, model.CodeCount{Code: code, Count: n})
	}
	sort.Slice(stats.TopHollandCodes, func(i, j int) bool {
		a, b := stats.TopHollandCodes[i], stats.TopHollandCodes[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Code < b.Code
	})
	if len(stats.TopHollandCodes) > topHollandCodes {
		stats.TopHollandCodes = stats.TopHollandCodes[:topHollandCodes]
	}
	return stats
}

func addValues(dst *model.ValueScores, v model.ValueScores) {
	dst.Achievement += v.Achievement
	dst.Autonomy += v.Autonomy
	dst.Creativity += v.Creativity
	dst.Stability += v.Stability
	dst.Altruism += v.Altruism
	dst.Wealth += v.Wealth
	dst.Recognition += v.Recognition
}

func scaleValues(v *model.ValueScores, f float64) {
	v.Achievement = round3(v.Achievement * f)
	v.Autonomy = round3(v.Autonomy * f)
	v.Creativity = round3(v.Creativity * f)
	v.Stability = round3(v.Stability * f)
	v.Altruism = round3(v.Altruism * f)
	v.Wealth = round3(v.Wealth * f)
	v.Recognition = round3(v.Recognition * f)
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
