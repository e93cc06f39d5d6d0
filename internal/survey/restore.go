package survey

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"majorcompass/internal/catalog"
	"majorcompass/internal/logger"
	"majorcompass/internal/model"
)

// Restore loads the saved snapshot for this session. A snapshot that fails to
// decode or does not fit the catalog is deleted and the engine stays at intro.
// It reports whether state was restored.
func (e *Engine) Restore(ctx context.Context) bool {
	snap, err := e.snapshots.Load(ctx, e.id)
	if err != nil {
		if errors.Is(err, model.ErrCorruptSnapshot) {
			e.discard(ctx, err)
		} else {
			logger.Log.Warn("snapshot load failed", zap.String("session", e.id), zap.Error(err))
		}
		return false
	}
	if snap == nil {
		return false
	}
	if err := ValidateSnapshot(e.cat, snap); err != nil {
		e.discard(ctx, err)
		return false
	}

	e.phase = snap.Phase
	e.cluster = snap.Cluster
	e.currentIndex = snap.CurrentIndex
	e.primaryIndex = snap.PrimaryIndex
	e.answers = snap.Answers.Clone()
	e.primaryAnswers = make(map[string]model.Side, len(snap.PrimaryAnswers))
	for k, v := range snap.PrimaryAnswers {
		e.primaryAnswers[k] = v
	}
	if snap.PrimaryScores != nil {
		s := *snap.PrimaryScores
		e.primaryScores = &s
	}
	if snap.Identity != nil {
		e.identity = snap.Identity
	}
	if snap.Device != (model.DeviceInfo{}) {
		e.device = snap.Device
	}
	e.dirty = false
	return true
}

func (e *Engine) discard(ctx context.Context, reason error) {
	logger.Log.Warn("discarding resume snapshot", zap.String("session", e.id), zap.Error(reason))
	e.clear()
	if err := e.snapshots.Delete(ctx, e.id); err != nil {
		logger.Log.Warn("failed to delete snapshot", zap.String("session", e.id), zap.Error(err))
	}
}

// ValidateSnapshot checks a snapshot against the catalog it will be resumed with
func ValidateSnapshot(cat *catalog.Catalog, snap *model.Snapshot) error {
	if !snap.Phase.Valid() || snap.Phase == model.PhaseComplete {
		return fmt.Errorf("%w: unresumable phase %q", model.ErrCorruptSnapshot, snap.Phase)
	}
	if snap.PrimaryIndex < 0 || snap.PrimaryIndex >= cat.ItemCount() {
		return fmt.Errorf("%w: primary index %d outside item bank of %d", model.ErrCorruptSnapshot, snap.PrimaryIndex, cat.ItemCount())
	}
	if snap.Cluster != "" {
		if _, ok := cat.Cluster(snap.Cluster); !ok {
			return fmt.Errorf("%w: unknown cluster %q", model.ErrCorruptSnapshot, snap.Cluster)
		}
	}
	for id, side := range snap.PrimaryAnswers {
		if !side.Valid() {
			return fmt.Errorf("%w: item %s has side %q", model.ErrCorruptSnapshot, id, side)
		}
	}

	switch snap.Phase {
	case model.PhaseMajorPreview:
		if snap.Cluster == "" {
			return fmt.Errorf("%w: preview without a cluster", model.ErrCorruptSnapshot)
		}
	case model.PhasePrimaryResult:
		if snap.PrimaryScores == nil {
			return fmt.Errorf("%w: primary result without scores", model.ErrCorruptSnapshot)
		}
	case model.PhaseSupplementary:
		if snap.PrimaryScores == nil {
			return fmt.Errorf("%w: supplementary without primary scores", model.ErrCorruptSnapshot)
		}
		active := cat.Active(snap.Answers)
		if snap.CurrentIndex < 0 || snap.CurrentIndex >= len(active) {
			return fmt.Errorf("%w: current index %d outside %d active questions", model.ErrCorruptSnapshot, snap.CurrentIndex, len(active))
		}
	}
	return nil
}
