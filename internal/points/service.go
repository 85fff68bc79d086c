// Package points keeps user reward balances. Commenting earns points and
// downloading a report spends them.
package points

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/dennis1984/BYWebApp/internal/apperr"
	"github.com/dennis1984/BYWebApp/internal/metrics"
	"github.com/dennis1984/BYWebApp/internal/storage/models"
	"github.com/dennis1984/BYWebApp/internal/storage/sqlite"
	"github.com/dennis1984/BYWebApp/pkg/logger"
)

var ErrInsufficientPoints = errors.New("insufficient points")

// Record action codes.
const (
	ActionComment  = 1
	ActionDownload = 2
)

const (
	CommentReward = 20
	DownloadCost  = 10
)

type KV interface {
	GetJSON(ctx context.Context, key string, dest any) (bool, error)
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	ReplaceList(ctx context.Context, key string, values []any, ttl time.Duration) error
	RangeList(ctx context.Context, key string) ([]string, bool, error)
	Generation(ctx context.Context, name string) (int64, error)
	BumpGeneration(ctx context.Context, name string) (int64, error)
}

type Store interface {
	GetScore(ctx context.Context, userID int64) (*models.Score, error)
	AddScore(ctx context.Context, userID int64, action int, delta int64) (*models.Score, error)
	ListScoreRecords(ctx context.Context, userID int64) ([]*models.ScoreRecord, error)
}

type Service struct {
	kv    KV
	store Store
	ttl   time.Duration
	log   *zap.Logger
}

func NewService(kv KV, store Store, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Service{
		kv:    kv,
		store: store,
		ttl:   ttl,
		log:   logger.Named("points"),
	}
}

func balanceKey(userID int64) string {
	return "score:user:" + strconv.FormatInt(userID, 10)
}

// historyKey carries the generation so a list built before an Apply is
// never read after it.
func historyKey(userID, gen int64) string {
	return fmt.Sprintf("%s:records:%d", balanceKey(userID), gen)
}

func scoreGeneration(userID int64) string {
	return "score:" + strconv.FormatInt(userID, 10)
}

// cachedScore is a balance stamped with the user's score generation at the
// time it was read from the store.
type cachedScore struct {
	Generation int64         `json:"generation"`
	Score      *models.Score `json:"score"`
}

// generation reads the user's score generation. It must be read before the
// store so that a concurrent Apply makes the result stale. ok is false when
// Redis is unavailable.
func (s *Service) generation(ctx context.Context, userID int64) (int64, bool) {
	name := scoreGeneration(userID)
	gen, err := s.kv.Generation(ctx, name)
	if err != nil {
		s.cacheFailure("generation", name, err)
		return 0, false
	}
	return gen, true
}

// Balance returns the user's current points. Users who never earned any
// have a zero balance.
func (s *Service) Balance(ctx context.Context, userID int64) (int64, error) {
	if userID <= 0 {
		return 0, apperr.InvalidInput("user_id", "must be positive, got %d", userID)
	}

	key := balanceKey(userID)
	gen, cacheable := s.generation(ctx, userID)
	if cacheable {
		var cached cachedScore
		ok, err := s.kv.GetJSON(ctx, key, &cached)
		switch {
		case err != nil:
			s.cacheFailure("get", key, err)
			cacheable = false
		case ok && cached.Generation == gen && cached.Score != nil:
			metrics.CacheHits.WithLabelValues("score").Inc()
			return cached.Score.Score, nil
		}
	}
	metrics.CacheMisses.WithLabelValues("score").Inc()

	score, err := s.store.GetScore(ctx, userID)
	if errors.Is(err, apperr.ErrNotFound) {
		score = &models.Score{UserID: userID}
	} else if err != nil {
		return 0, apperr.Store("get score", err)
	}

	if cacheable {
		if err := s.kv.SetJSON(ctx, key, cachedScore{Generation: gen, Score: score}, s.ttl); err != nil {
			s.cacheFailure("set", key, err)
		}
	}
	return score.Score, nil
}

// Apply records action for the user and returns the new balance. A
// download the balance cannot cover fails with ErrInsufficientPoints and
// changes nothing.
func (s *Service) Apply(ctx context.Context, userID int64, action models.ScoreAction) (int64, error) {
	if userID <= 0 {
		return 0, apperr.InvalidInput("user_id", "must be positive, got %d", userID)
	}

	var (
		code  int
		delta int64
	)
	switch action {
	case models.ScoreActionComment:
		code, delta = ActionComment, CommentReward
	case models.ScoreActionDownload:
		code, delta = ActionDownload, -DownloadCost
	default:
		return 0, apperr.InvalidInput("action", "unknown action %q", action)
	}

	score, err := s.store.AddScore(ctx, userID, code, delta)
	if errors.Is(err, sqlite.ErrNegativeBalance) {
		metrics.PointsApplied.WithLabelValues(string(action), "insufficient").Inc()
		return 0, fmt.Errorf("user %d cannot %s: %w", userID, action, ErrInsufficientPoints)
	}
	if err != nil {
		metrics.PointsApplied.WithLabelValues(string(action), "error").Inc()
		return 0, apperr.Store("add score", err)
	}
	metrics.PointsApplied.WithLabelValues(string(action), "success").Inc()

	s.invalidate(ctx, userID)

	s.log.Debug("Points applied",
		zap.Int64("user_id", userID),
		zap.String("action", string(action)),
		zap.Int64("balance", score.Score),
	)
	return score.Score, nil
}

// History returns the user's records, newest first.
func (s *Service) History(ctx context.Context, userID int64) ([]*models.ScoreRecord, error) {
	if userID <= 0 {
		return nil, apperr.InvalidInput("user_id", "must be positive, got %d", userID)
	}

	gen, cacheable := s.generation(ctx, userID)
	key := historyKey(userID, gen)
	if cacheable {
		values, ok, err := s.kv.RangeList(ctx, key)
		if err != nil {
			s.cacheFailure("range", key, err)
			cacheable = false
		} else if ok {
			records, err := decodeRecords(values)
			if err == nil {
				metrics.CacheHits.WithLabelValues("score_records").Inc()
				return records, nil
			}
			s.cacheFailure("decode", key, err)
		}
	}
	metrics.CacheMisses.WithLabelValues("score_records").Inc()

	records, err := s.store.ListScoreRecords(ctx, userID)
	if err != nil {
		return nil, apperr.Store("list score records", err)
	}

	encoded := make([]any, 0, len(records))
	for _, r := range records {
		data, err := json.Marshal(r)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal score record: %w", err)
		}
		encoded = append(encoded, string(data))
	}
	if cacheable {
		if err := s.kv.ReplaceList(ctx, key, encoded, s.ttl); err != nil {
			s.cacheFailure("replace", key, err)
		}
	}
	return records, nil
}

// invalidate moves the user to a new score generation, then drops the
// entries of the old one. Entries written late under the old generation
// are never read again.
func (s *Service) invalidate(ctx context.Context, userID int64) {
	name := scoreGeneration(userID)
	gen, err := s.kv.BumpGeneration(ctx, name)
	if err != nil {
		s.cacheFailure("bump", name, err)
		if err := s.kv.Del(ctx, balanceKey(userID)); err != nil {
			s.cacheFailure("del", balanceKey(userID), err)
		}
		return
	}
	if err := s.kv.Del(ctx, balanceKey(userID), historyKey(userID, gen-1)); err != nil {
		s.cacheFailure("del", balanceKey(userID), err)
	}
}

func decodeRecords(values []string) ([]*models.ScoreRecord, error) {
	records := make([]*models.ScoreRecord, 0, len(values))
	for _, v := range values {
		var r models.ScoreRecord
		if err := json.Unmarshal([]byte(v), &r); err != nil {
			return nil, fmt.Errorf("failed to unmarshal score record: %w", err)
		}
		records = append(records, &r)
	}
	return records, nil
}

func (s *Service) cacheFailure(op, key string, err error) {
	metrics.CacheErrors.WithLabelValues(op).Inc()
	s.log.Warn("Cache store failure, using relational store",
		zap.String("op", op),
		zap.String("key", key),
		zap.Error(err),
	)
}
