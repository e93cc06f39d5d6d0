package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"majorcompass/internal/cache"
	"majorcompass/internal/identity"
	"majorcompass/internal/logger"
	"majorcompass/internal/metrics"
	"majorcompass/internal/model"
	"majorcompass/internal/repository"
)

var (
	ErrInvalidCode      = errors.New("invalid result code")
	ErrInvalidStudentID = errors.New("invalid student id")
	ErrCodeExhausted    = errors.New("could not allocate a unique result code")
	ErrStoreUnavailable = errors.New("no result store accepted the record")
)

const (
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeLength   = 8
)

var codePattern = regexp.MustCompile(`^[A-Z0-9]{6,}$`)

// ResultService persists results to MongoDB and falls back to Redis when
// MongoDB is unavailable. It satisfies survey.ResultStore.
type ResultService struct {
	remote       repository.ResultRepo
	local        cache.ResultCache
	holland      cache.HollandCache
	dashboard    cache.DashboardCache
	broadcaster  Broadcaster
	codeAttempts int
	now          func() time.Time
}

// NewResultService creates a new result service
func NewResultService(
	remote repository.ResultRepo,
	local cache.ResultCache,
	holland cache.HollandCache,
	dashboard cache.DashboardCache,
	codeAttempts int,
) *ResultService {
	if codeAttempts <= 0 {
		codeAttempts = 10
	}
	return &ResultService{
		remote:       remote,
		local:        local,
		holland:      holland,
		dashboard:    dashboard,
		codeAttempts: codeAttempts,
		now:          time.Now,
	}
}

// SetBroadcaster sets the broadcaster for WebSocket events
func (s *ResultService) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

// SetClock replaces the time source used for expiry checks
func (s *ResultService) SetClock(now func() time.Time) {
	s.now = now
}

// NormalizeCode upper-cases and validates an externally supplied code
func NormalizeCode(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if !codePattern.MatchString(code) {
		return "", ErrInvalidCode
	}
	return code, nil
}

func randomCode() (string, error) {
	max := big.NewInt(int64(len(codeAlphabet)))
	var sb strings.Builder
	sb.Grow(codeLength)
	for i := 0; i < codeLength; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		sb.WriteByte(codeAlphabet[n.Int64()])
	}
	return sb.String(), nil
}

// NewCode draws random codes until one is unused in both stores.
// A store that cannot be reached does not veto a code.
func (s *ResultService) NewCode(ctx context.Context) (string, error) {
	for attempt := 0; attempt < s.codeAttempts; attempt++ {
		code, err := randomCode()
		if err != nil {
			return "", fmt.Errorf("failed to generate code: %w", err)
		}

		taken, err := s.remote.Exists(ctx, code)
		if err != nil {
			logger.Log.Warn("remote code check failed", zap.Error(err))
		}
		if taken {
			continue
		}
		taken, err = s.local.Exists(ctx, code)
		if err != nil {
			logger.Log.Warn("local code check failed", zap.Error(err))
		}
		if taken {
			continue
		}
		return code, nil
	}
	return "", ErrCodeExhausted
}

// Save writes rec to MongoDB, or to Redis when MongoDB rejects it for any
// reason other than a code collision.
func (s *ResultService) Save(ctx context.Context, rec *model.ResultRecord) error {
	if rec == nil || rec.Code == "" {
		return fmt.Errorf("failed to save result: %w", ErrInvalidCode)
	}

	store := "remote"
	err := s.remote.Create(ctx, rec)
	if errors.Is(err, repository.ErrDuplicateCode) {
		return fmt.Errorf("failed to save result: %w", err)
	}
	if err != nil {
		logger.Log.Warn("remote save failed, using local store", zap.String("code", rec.Code), zap.Error(err))
		metrics.StoreFallback.WithLabelValues("save").Inc()
		store = "local"
		if localErr := s.local.Set(ctx, rec); localErr != nil {
			return fmt.Errorf("failed to save result: %w", errors.Join(ErrStoreUnavailable, err, localErr))
		}
	}
	metrics.ResultsSaved.WithLabelValues(store).Inc()

	s.afterSave(ctx, rec)
	return nil
}

// afterSave updates the dashboard counters; failures here never fail the save
func (s *ResultService) afterSave(ctx context.Context, rec *model.ResultRecord) {
	if err := s.holland.Record(ctx, rec.HollandCode, rec.Cluster); err != nil {
		logger.Log.Warn("failed to record holland code", zap.String("code", rec.Code), zap.Error(err))
	}
	if err := s.dashboard.Invalidate(ctx); err != nil {
		logger.Log.Warn("failed to invalidate dashboard", zap.Error(err))
	}
	if s.broadcaster != nil {
		s.broadcaster.BroadcastToAdmins(EventResultCreated, model.ResultCreatedEvent{
			Code:                 rec.Code,
			HollandCode:          rec.HollandCode,
			Cluster:              rec.Cluster,
			DecisionStatus:       rec.CareerDecision.Status,
			SupplementarySkipped: rec.SupplementarySkipped,
			CreatedAt:            rec.CreatedAt,
		})
	}
}

// GetByCode returns the record for code, or nil when it does not exist or has expired
func (s *ResultService) GetByCode(ctx context.Context, code string) (*model.ResultRecord, error) {
	code, err := NormalizeCode(code)
	if err != nil {
		return nil, err
	}

	rec, remoteErr := s.remote.GetByCode(ctx, code)
	if remoteErr != nil {
		logger.Log.Warn("remote lookup failed, using local store", zap.String("code", code), zap.Error(remoteErr))
		metrics.StoreFallback.WithLabelValues("get").Inc()
	}
	if rec != nil {
		return s.live(ctx, rec, true), nil
	}

	rec, err = s.local.Get(ctx, code)
	if err != nil {
		if remoteErr != nil {
			return nil, fmt.Errorf("failed to get result: %w", errors.Join(remoteErr, err))
		}
		return nil, fmt.Errorf("failed to get result: %w", err)
	}
	if rec == nil {
		return nil, nil
	}
	return s.live(ctx, rec, false), nil
}

// GetByStudentID returns the newest live record for a student
func (s *ResultService) GetByStudentID(ctx context.Context, studentID string) (*model.ResultRecord, error) {
	if !identity.ValidStudentID(studentID) {
		return nil, ErrInvalidStudentID
	}

	rec, remoteErr := s.remote.GetLatestByStudentID(ctx, studentID)
	if remoteErr != nil {
		logger.Log.Warn("remote lookup failed, using local store", zap.Error(remoteErr))
		metrics.StoreFallback.WithLabelValues("get_by_student").Inc()
	}
	if rec != nil {
		if live := s.live(ctx, rec, true); live != nil {
			return live, nil
		}
	}

	rec, err := s.local.GetByStudentID(ctx, studentID)
	if err != nil {
		if remoteErr != nil {
			return nil, fmt.Errorf("failed to get result: %w", errors.Join(remoteErr, err))
		}
		return nil, fmt.Errorf("failed to get result: %w", err)
	}
	if rec == nil {
		return nil, nil
	}
	return s.live(ctx, rec, false), nil
}

// List returns up to limit live records, newest first. Records saved locally
// during a remote outage are merged in, so they stay visible after recovery.
func (s *ResultService) List(ctx context.Context, limit int) ([]*model.ResultRecord, error) {
	if limit <= 0 {
		return []*model.ResultRecord{}, nil
	}

	remoteRecs, remoteErr := s.remote.List(ctx, limit)
	if remoteErr != nil {
		logger.Log.Warn("remote list failed, using local store", zap.Error(remoteErr))
		metrics.StoreFallback.WithLabelValues("list").Inc()
	}
	localRecs, localErr := s.local.List(ctx, limit)
	if localErr != nil {
		if remoteErr != nil {
			return nil, fmt.Errorf("failed to list results: %w", errors.Join(remoteErr, localErr))
		}
		logger.Log.Warn("local list failed", zap.Error(localErr))
	}

	seen := make(map[string]struct{}, len(remoteRecs)+len(localRecs))
	out := make([]*model.ResultRecord, 0, len(remoteRecs)+len(localRecs))
	collect := func(recs []*model.ResultRecord, remote bool) {
		for _, rec := range recs {
			if _, dup := seen[rec.Code]; dup {
				continue
			}
			seen[rec.Code] = struct{}{}
			if live := s.live(ctx, rec, remote); live != nil {
				out = append(out, live)
			}
		}
	}
	collect(remoteRecs, true)
	collect(localRecs, false)

	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// live returns rec unless it has expired, in which case the entry is deleted
// from the store it was read from and nil is returned.
func (s *ResultService) live(ctx context.Context, rec *model.ResultRecord, remote bool) *model.ResultRecord {
	if !rec.Expired(s.now()) {
		return rec
	}
	var err error
	if remote {
		err = s.remote.Delete(ctx, rec.Code)
	} else {
		err = s.local.Delete(ctx, rec)
	}
	if err != nil {
		logger.Log.Warn("failed to delete expired result", zap.String("code", rec.Code), zap.Bool("remote", remote), zap.Error(err))
	}
	return nil
}
