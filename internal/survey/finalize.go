package survey

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"majorcompass/internal/logger"
	"majorcompass/internal/model"
	"majorcompass/internal/scoring"
)

// finalize scores, persists and completes the session. On failure nothing
// but LastError changes, so the call can be repeated; each attempt draws a
// fresh code.
func (e *Engine) finalize(ctx context.Context, skipped bool) error {
	rec := e.buildRecord(skipped)

	code, err := e.results.NewCode(ctx)
	if err == nil {
		rec.Code = code
		err = e.results.Save(ctx, rec)
	}
	if err != nil {
		e.lastError = "Your result could not be saved. Please try again."
		logger.Log.Error("finalize failed",
			zap.String("session", e.id),
			zap.Bool("skipped", skipped),
			zap.Error(err),
		)
		return fmt.Errorf("%w: %v", ErrFinalize, err)
	}

	e.result = rec
	e.phase = model.PhaseComplete
	e.lastError = ""
	e.dirty = false
	if err := e.snapshots.Delete(ctx, e.id); err != nil {
		logger.Log.Warn("failed to delete snapshot after finalize", zap.String("session", e.id), zap.Error(err))
	}
	logger.Log.Info("session finalized",
		zap.String("session", e.id),
		zap.String("code", rec.Code),
		zap.String("holland", rec.HollandCode),
	)
	return nil
}

// scoredAnswers keeps only answers of currently active questions
func (e *Engine) scoredAnswers() model.AnswerSet {
	out := model.AnswerSet{}
	for _, q := range e.Active() {
		if v, ok := e.answers[q.ID]; ok {
			out[q.ID] = v
		}
	}
	return out
}

func (e *Engine) buildRecord(skipped bool) *model.ResultRecord {
	now := e.now().UTC()
	rec := &model.ResultRecord{
		Cluster:              e.cluster,
		SupplementarySkipped: skipped,
		Device:               e.device,
		CreatedAt:            now,
		ExpiresAt:            now.Add(model.RetentionPeriod),
		Answers:              model.AnswerSet{},
		SelfEfficacy:         map[model.Dimension]float64{},
	}
	if !e.identity.Empty() {
		id := *e.identity
		rec.Identity = &id
		rec.StudentID = id.StudentID
	}

	if e.primaryScores != nil {
		scores := *e.primaryScores
		rec.RIASEC = &scores
		rec.HollandCode = scoring.HollandCode(scores)
		rec.Recommendations = scoring.RecommendMajors(e.cat.Clusters, scores, e.cluster, e.recommend)
	}

	if skipped {
		return rec
	}

	s := scoring.ScoreSupplementary(e.scoredAnswers())
	rec.Answers = e.answers.Clone()
	rec.ValueScores = s.ValueScores
	rec.CareerDecision = s.CareerDecision
	rec.SelfEfficacy = s.SelfEfficacy
	rec.Preferences = s.Preferences
	rec.RoleModel = s.RoleModel
	rec.ValueRanking = s.ValueRanking
	return rec
}
