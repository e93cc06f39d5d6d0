package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"majorcompass/internal/cache"
	"majorcompass/internal/catalog"
	"majorcompass/internal/config"
	"majorcompass/internal/model"
	"majorcompass/internal/survey"
)

type memResultStore struct {
	mu      sync.Mutex
	n       int
	fail    bool
	records map[string]*model.ResultRecord
}

func (m *memResultStore) NewCode(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.n++
	return fmt.Sprintf("TEST%04d", m.n), nil
}

func (m *memResultStore) Save(ctx context.Context, rec *model.ResultRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("stores unavailable")
	}
	if m.records == nil {
		m.records = map[string]*model.ResultRecord{}
	}
	m.records[rec.Code] = rec
	return nil
}

func smallCatalog(t *testing.T, questions []model.QuestionDefinition) *catalog.Catalog {
	t.Helper()
	items := []model.PrimaryItem{
		{ID: "q1", A: model.ItemSide{Text: "Fix an engine", Weights: model.RIASECScores{R: 1}}, B: model.ItemSide{Text: "Run a test", Weights: model.RIASECScores{I: 1}}},
		{ID: "q2", A: model.ItemSide{Text: "Paint", Weights: model.RIASECScores{A: 1}}, B: model.ItemSide{Text: "Teach", Weights: model.RIASECScores{S: 1}}},
	}
	clusters := []model.Cluster{
		{ID: "eng", Name: "Engineering", Majors: []model.Major{{ID: "mech", Name: "Mechanical", Profile: []model.Dimension{"R", "I", "C"}}}},
	}
	c, err := catalog.New(questions, items, clusters)
	require.NoError(t, err)
	return c
}

type sessionFixture struct {
	mr      *miniredis.Miniredis
	results *memResultStore
	svc     *SessionService
	now     time.Time
	mu      sync.Mutex
}

func (f *sessionFixture) clock() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *sessionFixture) advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func newSessionFixture(t *testing.T, cat *catalog.Catalog) *sessionFixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	f := &sessionFixture{mr: mr, results: &memResultStore{}, now: baseTime}
	f.svc = NewSessionService(cat, f.results, cache.NewSnapshotCache(client, time.Hour), config.DefaultSurveyConfig(), 3)
	f.svc.SetClock(f.clock)
	return f
}

func defaultQuestions() []model.QuestionDefinition {
	return []model.QuestionDefinition{
		{ID: "s1", Type: model.QuestionTypeScale},
		{ID: "t1", Type: model.QuestionTypeText},
	}
}

func apply(t *testing.T, svc *SessionService, id string, a SessionAction) *SessionView {
	t.Helper()
	v, err := svc.Apply(context.Background(), id, a)
	require.NoError(t, err, a.Action)
	return v
}

func TestSessionService_FullFlow(t *testing.T) {
	f := newSessionFixture(t, smallCatalog(t, defaultQuestions()))
	ctx := context.Background()

	v, err := f.svc.Create(ctx, &model.Identity{StudentID: "20240001"}, model.DeviceInfo{}, nil)
	require.NoError(t, err)
	assert.Equal(t, model.PhaseIntro, v.Phase)
	assert.Equal(t, int64(300), v.AdvanceDelayMs)
	id := v.SessionID

	apply(t, f.svc, id, SessionAction{Action: ActionNext})
	apply(t, f.svc, id, SessionAction{Action: ActionSelectCluster, Cluster: "eng"})
	v = apply(t, f.svc, id, SessionAction{Action: ActionStartPreview})
	require.NotNil(t, v.Item)
	assert.Equal(t, "q1", v.Item.ID)

	apply(t, f.svc, id, SessionAction{Action: ActionAnswerPrimary, Side: model.SideA})
	v = apply(t, f.svc, id, SessionAction{Action: ActionAnswerPrimary, Side: model.SideB})
	require.Equal(t, model.PhasePrimaryResult, v.Phase)
	require.NotNil(t, v.PrimaryResult)

	apply(t, f.svc, id, SessionAction{Action: ActionNext})
	four := model.Number(4)
	v = apply(t, f.svc, id, SessionAction{Action: ActionAnswer, Value: &four})
	assert.True(t, v.Advanced)
	require.NotNil(t, v.Question)
	assert.Equal(t, "t1", v.Question.ID)

	v = apply(t, f.svc, id, SessionAction{Action: ActionNext})
	require.Equal(t, model.PhaseComplete, v.Phase)
	require.NotNil(t, v.Result)
	assert.Equal(t, "20240001", v.Result.StudentID)
	assert.Contains(t, f.results.records, v.Result.Code)
	assert.False(t, f.mr.Exists("snapshot:"+id), "snapshot is removed after finalize")
}

func TestSessionService_ActionErrors(t *testing.T) {
	f := newSessionFixture(t, smallCatalog(t, defaultQuestions()))
	ctx := context.Background()
	v, err := f.svc.Create(ctx, nil, model.DeviceInfo{}, nil)
	require.NoError(t, err)

	_, err = f.svc.Apply(ctx, v.SessionID, SessionAction{Action: "fly"})
	assert.ErrorIs(t, err, ErrUnknownAction)

	got, err := f.svc.Apply(ctx, v.SessionID, SessionAction{Action: ActionPrevious})
	assert.ErrorIs(t, err, survey.ErrInvalidAction)
	require.NotNil(t, got)
	assert.Equal(t, model.PhaseIntro, got.Phase)

	_, err = f.svc.Apply(ctx, v.SessionID, SessionAction{Action: ActionAnswer})
	assert.ErrorIs(t, err, ErrMissingValue)
}

func TestSessionService_FinalizeFailureIsRetryable(t *testing.T) {
	f := newSessionFixture(t, smallCatalog(t, defaultQuestions()))
	ctx := context.Background()
	scores := model.RIASECScores{R: 3, I: 2}

	v, err := f.svc.Create(ctx, nil, model.DeviceInfo{}, &scores)
	require.NoError(t, err)
	id := v.SessionID
	require.Equal(t, model.PhaseSupplementary, v.Phase)

	three := model.Number(3)
	apply(t, f.svc, id, SessionAction{Action: ActionAnswer, Value: &three})

	f.results.fail = true
	v, err = f.svc.Apply(ctx, id, SessionAction{Action: ActionNext})
	assert.ErrorIs(t, err, survey.ErrFinalize)
	assert.Equal(t, model.PhaseSupplementary, v.Phase)
	assert.NotEmpty(t, v.LastError)

	f.results.fail = false
	v = apply(t, f.svc, id, SessionAction{Action: ActionNext})
	assert.Equal(t, model.PhaseComplete, v.Phase)
	assert.Empty(t, v.LastError)
}

func TestSessionService_UnknownSession(t *testing.T) {
	f := newSessionFixture(t, smallCatalog(t, defaultQuestions()))
	ctx := context.Background()

	_, err := f.svc.Get(ctx, "not-a-uuid")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	_, err = f.svc.Get(ctx, uuid.New().String())
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessionService_EvictAndRestore(t *testing.T) {
	f := newSessionFixture(t, smallCatalog(t, defaultQuestions()))
	ctx := context.Background()

	v, err := f.svc.Create(ctx, nil, model.DeviceInfo{}, nil)
	require.NoError(t, err)
	id := v.SessionID
	apply(t, f.svc, id, SessionAction{Action: ActionNext})
	apply(t, f.svc, id, SessionAction{Action: ActionSelectCluster, Cluster: "eng"})
	apply(t, f.svc, id, SessionAction{Action: ActionStartPreview})
	apply(t, f.svc, id, SessionAction{Action: ActionAnswerPrimary, Side: model.SideB})

	f.svc.Sweep(ctx)
	assert.Equal(t, 1, f.svc.Len())

	f.advance(31 * time.Minute)
	f.svc.Sweep(ctx)
	assert.Equal(t, 0, f.svc.Len())

	v, err = f.svc.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.PhasePrimaryInstrument, v.Phase)
	require.NotNil(t, v.Item)
	assert.Equal(t, 1, v.Item.Index)
	assert.Equal(t, 1, f.svc.Len())
}

func TestSessionService_ResetSessionSurvivesEviction(t *testing.T) {
	f := newSessionFixture(t, smallCatalog(t, defaultQuestions()))
	ctx := context.Background()

	v, err := f.svc.Create(ctx, &model.Identity{StudentID: "20240005"}, model.DeviceInfo{}, nil)
	require.NoError(t, err)
	id := v.SessionID
	apply(t, f.svc, id, SessionAction{Action: ActionNext})
	v = apply(t, f.svc, id, SessionAction{Action: ActionReset})
	require.Equal(t, model.PhaseIntro, v.Phase)
	assert.True(t, f.mr.Exists("snapshot:"+id))

	f.advance(31 * time.Minute)
	f.svc.Sweep(ctx)
	require.Equal(t, 0, f.svc.Len())

	v, err = f.svc.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.PhaseIntro, v.Phase)
	require.NotNil(t, v.Identity)
	assert.Equal(t, "20240005", v.Identity.StudentID)
}

func TestSessionService_CorruptSnapshotRestartsAtIntro(t *testing.T) {
	f := newSessionFixture(t, smallCatalog(t, defaultQuestions()))
	id := uuid.New().String()
	require.NoError(t, f.mr.Set("snapshot:"+id, `{"phase":`))

	v, err := f.svc.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, model.PhaseIntro, v.Phase)
	assert.False(t, f.mr.Exists("snapshot:"+id))
}

func TestSessionService_OutOfRangeSnapshotRestartsAtIntro(t *testing.T) {
	f := newSessionFixture(t, smallCatalog(t, defaultQuestions()))
	id := uuid.New().String()
	require.NoError(t, f.mr.Set("snapshot:"+id,
		`{"sessionId":"`+id+`","phase":"primary_instrument","cluster":"eng","primaryIndex":2,"currentIndex":0,"answers":{},"primaryAnswers":{}}`))

	v, err := f.svc.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, model.PhaseIntro, v.Phase)
}

func TestSessionService_WatchdogResetsStuckSession(t *testing.T) {
	// no supplementary questions: entering supplementary leaves nothing to render
	f := newSessionFixture(t, smallCatalog(t, nil))
	ctx := context.Background()
	scores := model.RIASECScores{S: 2}

	v, err := f.svc.Create(ctx, nil, model.DeviceInfo{}, &scores)
	require.NoError(t, err)
	assert.False(t, v.Ready)

	v, err = f.svc.Get(ctx, v.SessionID)
	require.NoError(t, err)
	assert.Equal(t, model.PhaseSupplementary, v.Phase)

	f.advance(2 * time.Second)
	v, err = f.svc.Get(ctx, v.SessionID)
	require.NoError(t, err)
	assert.Equal(t, model.PhaseSupplementary, v.Phase)

	f.advance(2 * time.Second)
	v, err = f.svc.Get(ctx, v.SessionID)
	require.NoError(t, err)
	assert.Equal(t, model.PhaseIntro, v.Phase)
	assert.True(t, v.Ready)
}

func TestSessionService_RunStopsOnCancel(t *testing.T) {
	f := newSessionFixture(t, smallCatalog(t, defaultQuestions()))
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		f.svc.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
