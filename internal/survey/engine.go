// Package survey implements the assessment session engine: phase transitions,
// navigation over the active supplementary questions, finalization and resume.
//
// An Engine is single-caller; callers serialize access to it.
package survey

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"majorcompass/internal/catalog"
	"majorcompass/internal/logger"
	"majorcompass/internal/model"
	"majorcompass/internal/scoring"
)

var (
	ErrInvalidAction = errors.New("action not allowed in current state")
	ErrNotAnswered   = errors.New("current question has no answer")
	ErrFinalize      = errors.New("failed to finalize result")
)

// Options configures a new Engine
type Options struct {
	Catalog        *catalog.Catalog
	Results        ResultStore
	Snapshots      SnapshotStore
	RecommendCount int
	Now            func() time.Time
}

// Engine owns one assessment session
type Engine struct {
	id        string
	cat       *catalog.Catalog
	results   ResultStore
	snapshots SnapshotStore
	recommend int
	now       func() time.Time

	phase          model.Phase
	cluster        string
	currentIndex   int
	primaryIndex   int
	answers        model.AnswerSet
	primaryAnswers map[string]model.Side
	primaryScores  *model.RIASECScores
	result         *model.ResultRecord
	identity       *model.Identity
	device         model.DeviceInfo
	lastError      string
	dirty          bool
}

// NewEngine creates an engine at intro
func NewEngine(id string, opts Options) *Engine {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	e := &Engine{
		id:        id,
		cat:       opts.Catalog,
		results:   opts.Results,
		snapshots: opts.Snapshots,
		recommend: opts.RecommendCount,
		now:       opts.Now,
	}
	e.clear()
	return e
}

func (e *Engine) clear() {
	e.phase = model.PhaseIntro
	e.cluster = ""
	e.currentIndex = 0
	e.primaryIndex = 0
	e.answers = model.AnswerSet{}
	e.primaryAnswers = map[string]model.Side{}
	e.primaryScores = nil
	e.result = nil
	e.lastError = ""
	e.dirty = false
}

// ID returns the session id
func (e *Engine) ID() string { return e.id }

// Phase returns the current phase
func (e *Engine) Phase() model.Phase { return e.phase }

// Result returns the finalized record, or nil before completion
func (e *Engine) Result() *model.ResultRecord { return e.result }

// Answers returns a copy of the supplementary answers
func (e *Engine) Answers() model.AnswerSet { return e.answers.Clone() }

// CurrentIndex is the position in the active supplementary sequence
func (e *Engine) CurrentIndex() int { return e.currentIndex }

// PrimaryIndex is the position in the item bank
func (e *Engine) PrimaryIndex() int { return e.primaryIndex }

// LastError is the message of the last failed finalization, if any
func (e *Engine) LastError() string { return e.lastError }

// Dirty reports whether state changed since the last snapshot write
func (e *Engine) Dirty() bool { return e.dirty }

// SetIdentity attaches the handoff identity and device metadata
func (e *Engine) SetIdentity(id *model.Identity, device model.DeviceInfo) {
	e.identity = id
	e.device = device
	e.dirty = true
}

// Active returns the active supplementary sequence for the current answers
func (e *Engine) Active() []model.QuestionDefinition {
	return e.cat.Active(e.answers)
}

// CurrentQuestion returns the question at the current index, or nil outside supplementary
func (e *Engine) CurrentQuestion() *model.QuestionDefinition {
	if e.phase != model.PhaseSupplementary {
		return nil
	}
	active := e.Active()
	if e.currentIndex < 0 || e.currentIndex >= len(active) {
		return nil
	}
	q := active[e.currentIndex]
	return &q
}

// CurrentItem returns the primary item being answered, or nil outside the instrument
func (e *Engine) CurrentItem() *model.PrimaryItem {
	if e.phase != model.PhasePrimaryInstrument {
		return nil
	}
	if e.primaryIndex < 0 || e.primaryIndex >= len(e.cat.Items) {
		return nil
	}
	return &e.cat.Items[e.primaryIndex]
}

// Ready reports whether the current phase has the data it needs to render
func (e *Engine) Ready() bool {
	switch e.phase {
	case model.PhaseIntro, model.PhaseInterestSelection:
		return true
	case model.PhaseMajorPreview:
		_, ok := e.cat.Cluster(e.cluster)
		return ok
	case model.PhasePrimaryInstrument:
		return e.CurrentItem() != nil
	case model.PhasePrimaryResult:
		return e.primaryScores != nil
	case model.PhaseSupplementary:
		return e.CurrentQuestion() != nil
	case model.PhaseComplete:
		return e.result != nil
	}
	return false
}

func (e *Engine) requirePhase(want model.Phase) error {
	if e.phase != want {
		return fmt.Errorf("%w: phase is %s, want %s", ErrInvalidAction, e.phase, want)
	}
	return nil
}

// Start leaves intro for cluster selection
func (e *Engine) Start(ctx context.Context) error {
	if err := e.requirePhase(model.PhaseIntro); err != nil {
		return err
	}
	e.phase = model.PhaseInterestSelection
	e.changed(ctx)
	return nil
}

// SelectCluster records the chosen interest cluster and shows its majors
func (e *Engine) SelectCluster(ctx context.Context, clusterID string) error {
	if err := e.requirePhase(model.PhaseInterestSelection); err != nil {
		return err
	}
	if _, ok := e.cat.Cluster(clusterID); !ok {
		return fmt.Errorf("%w: unknown cluster %q", ErrInvalidAction, clusterID)
	}
	e.cluster = clusterID
	e.phase = model.PhaseMajorPreview
	e.changed(ctx)
	return nil
}

// StartPreview begins the primary instrument at its first item
func (e *Engine) StartPreview(ctx context.Context) error {
	if err := e.requirePhase(model.PhaseMajorPreview); err != nil {
		return err
	}
	e.phase = model.PhasePrimaryInstrument
	e.primaryIndex = 0
	e.changed(ctx)
	return nil
}

// AnswerPrimaryItem records side for the current item and moves on.
// The last item computes the RIASEC scores and shows them.
func (e *Engine) AnswerPrimaryItem(ctx context.Context, side model.Side) error {
	if err := e.requirePhase(model.PhasePrimaryInstrument); err != nil {
		return err
	}
	if !side.Valid() {
		return fmt.Errorf("%w: side must be A or B", ErrInvalidAction)
	}
	item := e.CurrentItem()
	if item == nil {
		return fmt.Errorf("%w: no current item", ErrInvalidAction)
	}

	e.primaryAnswers[item.ID] = side
	if e.primaryIndex < len(e.cat.Items)-1 {
		e.primaryIndex++
	} else {
		scores := scoring.RIASEC(e.cat.Items, e.primaryAnswers)
		e.primaryScores = &scores
		e.phase = model.PhasePrimaryResult
	}
	e.changed(ctx)
	return nil
}

// EnterSupplementary starts a fresh session directly at the supplementary survey
// using primary scores supplied from outside.
func (e *Engine) EnterSupplementary(ctx context.Context, scores model.RIASECScores) error {
	if err := e.requirePhase(model.PhaseIntro); err != nil {
		return err
	}
	e.primaryScores = &scores
	e.phase = model.PhaseSupplementary
	e.currentIndex = 0
	e.changed(ctx)
	return nil
}

// AnswerSupplementaryItem validates and records v for the current question.
// Scale and single-choice answers advance on their own; advanced reports whether
// that happened. On the last question the advance finalizes.
func (e *Engine) AnswerSupplementaryItem(ctx context.Context, v model.AnswerValue) (advanced bool, err error) {
	if err := e.requirePhase(model.PhaseSupplementary); err != nil {
		return false, err
	}
	q := e.CurrentQuestion()
	if q == nil {
		return false, fmt.Errorf("%w: no current question", ErrInvalidAction)
	}
	if err := q.Validate(v); err != nil {
		return false, err
	}

	e.answers[q.ID] = v
	e.changed(ctx)

	if !q.AutoAdvances() {
		return false, nil
	}
	if err := e.GoNext(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// ToggleSelection adds or removes option from the current multi-choice answer
func (e *Engine) ToggleSelection(ctx context.Context, option string) error {
	q, err := e.currentOfType(model.QuestionTypeMulti)
	if err != nil {
		return err
	}
	var current []string
	if v, ok := e.answers[q.ID]; ok && v.Kind == model.KindList {
		current = v.List
	}
	next, ok := model.ToggleSelection(current, option, q.MaxSelections)
	if !ok {
		return fmt.Errorf("%w: at most %d selections", ErrInvalidAction, q.MaxSelections)
	}
	return e.record(ctx, q, model.List(next...))
}

// ToggleRank ranks option next or unranks it, keeping ranks contiguous
func (e *Engine) ToggleRank(ctx context.Context, option string) error {
	q, err := e.currentOfType(model.QuestionTypeRank)
	if err != nil {
		return err
	}
	var current map[string]int
	if v, ok := e.answers[q.ID]; ok && v.Kind == model.KindRanking {
		current = v.Ranks
	}
	next, ok := model.ToggleRank(current, option, q.MaxRank)
	if !ok {
		return fmt.Errorf("%w: at most %d ranked options", ErrInvalidAction, q.MaxRank)
	}
	return e.record(ctx, q, model.Ranking(next))
}

func (e *Engine) currentOfType(t model.QuestionType) (*model.QuestionDefinition, error) {
	if err := e.requirePhase(model.PhaseSupplementary); err != nil {
		return nil, err
	}
	q := e.CurrentQuestion()
	if q == nil || q.Type != t {
		return nil, fmt.Errorf("%w: current question is not %s", ErrInvalidAction, t)
	}
	return q, nil
}

// record stores v, or removes the answer when v is an empty selection
func (e *Engine) record(ctx context.Context, q *model.QuestionDefinition, v model.AnswerValue) error {
	empty := (v.Kind == model.KindList && len(v.List) == 0) || (v.Kind == model.KindRanking && len(v.Ranks) == 0)
	if empty {
		delete(e.answers, q.ID)
	} else {
		if err := q.Validate(v); err != nil {
			return err
		}
		e.answers[q.ID] = v
	}
	e.changed(ctx)
	return nil
}

func (e *Engine) answered(q *model.QuestionDefinition) bool {
	v, ok := e.answers[q.ID]
	if !ok {
		return false
	}
	switch v.Kind {
	case model.KindNone:
		return false
	case model.KindNumber:
		return true
	case model.KindText:
		return v.Text != ""
	case model.KindList:
		return len(v.List) > 0
	case model.KindRanking:
		return len(v.Ranks) > 0
	}
	return false
}

// CanGoNext reports whether GoNext would be accepted from the current question
func (e *Engine) CanGoNext() bool {
	q := e.CurrentQuestion()
	return q != nil && (q.Optional() || e.answered(q))
}

// GoNext advances: intro starts, preview starts the instrument, the primary
// result opens the supplementary survey, and the supplementary survey moves
// to the next active question or finalizes after the last one.
func (e *Engine) GoNext(ctx context.Context) error {
	switch e.phase {
	case model.PhaseIntro:
		return e.Start(ctx)
	case model.PhaseMajorPreview:
		return e.StartPreview(ctx)
	case model.PhasePrimaryResult:
		e.phase = model.PhaseSupplementary
		e.currentIndex = 0
		e.changed(ctx)
		return nil
	case model.PhaseSupplementary:
		q := e.CurrentQuestion()
		if q == nil {
			return fmt.Errorf("%w: no current question", ErrInvalidAction)
		}
		if !q.Optional() && !e.answered(q) {
			return fmt.Errorf("%w: %s", ErrNotAnswered, q.ID)
		}
		if e.currentIndex < len(e.Active())-1 {
			e.currentIndex++
			e.changed(ctx)
			return nil
		}
		return e.finalize(ctx, false)
	}
	return fmt.Errorf("%w: cannot advance from %s", ErrInvalidAction, e.phase)
}

// GoPrevious steps back one question or item. Answers are never touched.
func (e *Engine) GoPrevious(ctx context.Context) error {
	switch e.phase {
	case model.PhaseSupplementary:
		if e.currentIndex == 0 {
			return fmt.Errorf("%w: already at the first question", ErrInvalidAction)
		}
		e.currentIndex--
	case model.PhasePrimaryInstrument:
		if e.primaryIndex == 0 {
			return fmt.Errorf("%w: already at the first item", ErrInvalidAction)
		}
		e.primaryIndex--
	default:
		return fmt.Errorf("%w: cannot go back from %s", ErrInvalidAction, e.phase)
	}
	e.changed(ctx)
	return nil
}

// SkipSupplementary finalizes straight from the primary result with empty supplementary fields
func (e *Engine) SkipSupplementary(ctx context.Context) error {
	if err := e.requirePhase(model.PhasePrimaryResult); err != nil {
		return err
	}
	return e.finalize(ctx, true)
}

// Reset discards all progress and returns to intro. Identity and device are
// kept, and the saved snapshot is replaced by an intro snapshot so the
// session stays resumable under the same id.
func (e *Engine) Reset(ctx context.Context) {
	e.clear()
	e.changed(ctx)
}

// changed writes a snapshot after a state change. A failed write leaves the
// engine dirty for the autosave loop.
func (e *Engine) changed(ctx context.Context) {
	e.dirty = true
	if err := e.SaveSnapshot(ctx); err != nil {
		logger.Log.Warn("snapshot write failed", zap.String("session", e.id), zap.Error(err))
	}
}

// SaveSnapshot writes the current state if it changed since the last write
func (e *Engine) SaveSnapshot(ctx context.Context) error {
	if !e.dirty || e.phase == model.PhaseComplete {
		return nil
	}
	if err := e.snapshots.Save(ctx, e.Snapshot()); err != nil {
		return err
	}
	e.dirty = false
	return nil
}

// Snapshot serializes the resumable state
func (e *Engine) Snapshot() *model.Snapshot {
	primary := make(map[string]model.Side, len(e.primaryAnswers))
	for k, v := range e.primaryAnswers {
		primary[k] = v
	}
	var scores *model.RIASECScores
	if e.primaryScores != nil {
		s := *e.primaryScores
		scores = &s
	}
	return &model.Snapshot{
		SessionID:      e.id,
		Answers:        e.answers.Clone(),
		CurrentIndex:   e.currentIndex,
		Phase:          e.phase,
		PrimaryIndex:   e.primaryIndex,
		PrimaryAnswers: primary,
		PrimaryScores:  scores,
		Cluster:        e.cluster,
		Identity:       e.identity,
		Device:         e.device,
		SavedAt:        e.now().UTC(),
	}
}
