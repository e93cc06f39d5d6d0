package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"majorcompass/internal/catalog"
	"majorcompass/internal/config"
	"majorcompass/internal/logger"
	"majorcompass/internal/metrics"
	"majorcompass/internal/model"
	"majorcompass/internal/survey"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrUnknownAction   = errors.New("unknown action")
	ErrMissingValue    = errors.New("action requires a value")
)

// Session actions accepted by Apply
const (
	ActionNext              = "next"
	ActionPrevious          = "previous"
	ActionSelectCluster     = "select_cluster"
	ActionStartPreview      = "start_preview"
	ActionAnswerPrimary     = "answer_primary"
	ActionAnswer            = "answer"
	ActionToggleSelection   = "toggle_selection"
	ActionToggleRank        = "toggle_rank"
	ActionSkipSupplementary = "skip_supplementary"
	ActionReset             = "reset"
)

// SessionAction is one user action against a session
type SessionAction struct {
	Action  string             `json:"action"`
	Cluster string             `json:"cluster,omitempty"`
	Side    model.Side         `json:"side,omitempty"`
	Value   *model.AnswerValue `json:"value,omitempty"`
	Option  string             `json:"option,omitempty"`
}

// SessionView is the engine view plus client timing hints
type SessionView struct {
	*survey.View
	AdvanceDelayMs int64 `json:"advanceDelayMs"`
	Advanced       bool  `json:"advanced,omitempty"`
}

type session struct {
	mu            sync.Mutex
	engine        *survey.Engine
	lastSeen      time.Time
	notReadySince time.Time
	evicted       bool
}

// SessionService keeps live survey engines in memory, one mutex per session
type SessionService struct {
	cat         *catalog.Catalog
	results     survey.ResultStore
	snapshots   survey.SnapshotStore
	cfg         config.SurveyConfig
	recommend   int
	broadcaster Broadcaster
	now         func() time.Time

	mu       sync.Mutex
	sessions map[string]*session
}

// NewSessionService creates a new session service
func NewSessionService(
	cat *catalog.Catalog,
	results survey.ResultStore,
	snapshots survey.SnapshotStore,
	cfg config.SurveyConfig,
	recommend int,
) *SessionService {
	return &SessionService{
		cat:       cat,
		results:   results,
		snapshots: snapshots,
		cfg:       cfg,
		recommend: recommend,
		now:       time.Now,
		sessions:  make(map[string]*session),
	}
}

// SetBroadcaster sets the broadcaster for WebSocket events
func (s *SessionService) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

// SetClock replaces the time source for idle and watchdog checks
func (s *SessionService) SetClock(now func() time.Time) {
	s.now = now
}

func (s *SessionService) newEngine(id string) *survey.Engine {
	return survey.NewEngine(id, survey.Options{
		Catalog:        s.cat,
		Results:        s.results,
		Snapshots:      s.snapshots,
		RecommendCount: s.recommend,
		Now:            s.now,
	})
}

func (s *SessionService) view(e *survey.Engine) *SessionView {
	return &SessionView{
		View:           e.View(),
		AdvanceDelayMs: s.cfg.AdvanceDelay.Milliseconds(),
	}
}

// Create starts a new session. With primary scores the session enters the
// supplementary survey directly.
func (s *SessionService) Create(ctx context.Context, id *model.Identity, device model.DeviceInfo, primary *model.RIASECScores) (*SessionView, error) {
	e := s.newEngine(uuid.New().String())
	e.SetIdentity(id, device)
	if primary != nil {
		if err := e.EnterSupplementary(ctx, *primary); err != nil {
			return nil, fmt.Errorf("failed to enter supplementary: %w", err)
		}
	} else if err := e.SaveSnapshot(ctx); err != nil {
		logger.Log.Warn("initial snapshot failed", zap.String("session", e.ID()), zap.Error(err))
	}

	sess := &session{engine: e, lastSeen: s.now()}
	s.mu.Lock()
	s.sessions[e.ID()] = sess
	n := len(s.sessions)
	s.mu.Unlock()
	metrics.ActiveSessions.Set(float64(n))

	logger.Log.Info("session created",
		zap.String("session", e.ID()),
		zap.Bool("identified", !id.Empty()),
		zap.Bool("resumed_primary", primary != nil),
	)
	return s.view(e), nil
}

// Get returns the current view, restoring the session from its snapshot when
// it is not in memory.
func (s *SessionService) Get(ctx context.Context, id string) (*SessionView, error) {
	sess, err := s.acquire(ctx, id)
	if err != nil {
		return nil, err
	}
	defer sess.mu.Unlock()
	return s.view(sess.engine), nil
}

// Apply runs one action. The returned view reflects the state after the
// action even when err is non-nil.
func (s *SessionService) Apply(ctx context.Context, id string, action SessionAction) (*SessionView, error) {
	sess, err := s.acquire(ctx, id)
	if err != nil {
		return nil, err
	}
	defer sess.mu.Unlock()

	e := sess.engine
	advanced := false
	switch action.Action {
	case ActionNext:
		err = e.GoNext(ctx)
	case ActionPrevious:
		err = e.GoPrevious(ctx)
	case ActionSelectCluster:
		err = e.SelectCluster(ctx, action.Cluster)
	case ActionStartPreview:
		err = e.StartPreview(ctx)
	case ActionAnswerPrimary:
		err = e.AnswerPrimaryItem(ctx, action.Side)
	case ActionAnswer:
		if action.Value == nil {
			err = ErrMissingValue
			break
		}
		advanced, err = e.AnswerSupplementaryItem(ctx, *action.Value)
	case ActionToggleSelection:
		err = e.ToggleSelection(ctx, action.Option)
	case ActionToggleRank:
		err = e.ToggleRank(ctx, action.Option)
	case ActionSkipSupplementary:
		err = e.SkipSupplementary(ctx)
	case ActionReset:
		e.Reset(ctx)
		metrics.SessionsReset.WithLabelValues("user").Inc()
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownAction, action.Action)
	}

	s.checkReady(ctx, sess)
	v := s.view(e)
	v.Advanced = advanced
	return v, err
}

// acquire returns the session locked
func (s *SessionService) acquire(ctx context.Context, id string) (*session, error) {
	for {
		s.mu.Lock()
		sess, ok := s.sessions[id]
		s.mu.Unlock()

		if !ok {
			var err error
			sess, err = s.restore(ctx, id)
			if err != nil {
				return nil, err
			}
		}

		sess.mu.Lock()
		if sess.evicted {
			sess.mu.Unlock()
			continue
		}
		sess.lastSeen = s.now()
		s.checkReady(ctx, sess)
		return sess, nil
	}
}

func (s *SessionService) restore(ctx context.Context, id string) (*session, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrSessionNotFound
	}
	snap, err := s.snapshots.Load(ctx, id)
	if err != nil && !errors.Is(err, model.ErrCorruptSnapshot) {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}
	if snap == nil && err == nil {
		return nil, ErrSessionNotFound
	}

	// a corrupt or invalid snapshot is discarded and the session restarts at intro
	e := s.newEngine(id)
	if e.Restore(ctx) {
		logger.Log.Info("session restored", zap.String("session", id), zap.String("phase", string(e.Phase())))
	} else {
		metrics.SessionsReset.WithLabelValues("invalid_snapshot").Inc()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.sessions[id]; ok {
		return existing, nil
	}
	sess := &session{engine: e, lastSeen: s.now()}
	s.sessions[id] = sess
	metrics.ActiveSessions.Set(float64(len(s.sessions)))
	return sess, nil
}

// checkReady resets a session that has had nothing to render for longer
// than the watchdog window. Caller holds sess.mu.
func (s *SessionService) checkReady(ctx context.Context, sess *session) {
	if sess.engine.Ready() {
		sess.notReadySince = time.Time{}
		return
	}
	now := s.now()
	if sess.notReadySince.IsZero() {
		sess.notReadySince = now
		return
	}
	if now.Sub(sess.notReadySince) < s.cfg.WatchdogWindow {
		return
	}

	id := sess.engine.ID()
	logger.Log.Warn("session stuck without renderable data, resetting",
		zap.String("session", id),
		zap.String("phase", string(sess.engine.Phase())),
	)
	sess.engine.Reset(ctx)
	sess.notReadySince = time.Time{}
	metrics.SessionsReset.WithLabelValues("watchdog").Inc()
	if s.broadcaster != nil {
		s.broadcaster.BroadcastToAdmins(EventSessionReset, map[string]string{
			"sessionId": id,
			"reason":    "watchdog",
		})
	}
}

// Run autosaves dirty sessions, applies the watchdog and evicts idle sessions
// until ctx is cancelled, then flushes once more.
func (s *SessionService) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.AutosaveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// ctx is already cancelled; the final flush gets its own deadline
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			s.Flush(flushCtx)
			cancel()
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

func (s *SessionService) all() []*session {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess)
	}
	return out
}

// Sweep runs one autosave pass
func (s *SessionService) Sweep(ctx context.Context) {
	now := s.now()
	var evict []string

	for _, sess := range s.all() {
		sess.mu.Lock()
		if sess.evicted {
			sess.mu.Unlock()
			continue
		}
		s.checkReady(ctx, sess)
		if err := sess.engine.SaveSnapshot(ctx); err != nil {
			logger.Log.Warn("autosave failed", zap.String("session", sess.engine.ID()), zap.Error(err))
		}
		// a session whose snapshot could not be written stays in memory
		saved := !sess.engine.Dirty() || sess.engine.Phase() == model.PhaseComplete
		if now.Sub(sess.lastSeen) >= s.cfg.IdleEviction && saved {
			sess.evicted = true
			evict = append(evict, sess.engine.ID())
		}
		sess.mu.Unlock()
	}

	if len(evict) == 0 {
		return
	}
	s.mu.Lock()
	for _, id := range evict {
		delete(s.sessions, id)
	}
	n := len(s.sessions)
	s.mu.Unlock()
	metrics.ActiveSessions.Set(float64(n))
	logger.Log.Debug("evicted idle sessions", zap.Int("count", len(evict)))
}

// Flush writes every dirty session's snapshot
func (s *SessionService) Flush(ctx context.Context) {
	for _, sess := range s.all() {
		sess.mu.Lock()
		if err := sess.engine.SaveSnapshot(ctx); err != nil {
			logger.Log.Warn("flush failed", zap.String("session", sess.engine.ID()), zap.Error(err))
		}
		sess.mu.Unlock()
	}
}

// Len returns how many sessions are held in memory
func (s *SessionService) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
