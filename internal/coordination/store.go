package coordination

import (
	"context"
	"crypto/tls"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// NewRedisClient builds the shared redis client for the coordination store.
func NewRedisClient(redisURL string, tlsInsecure bool) (*redis.Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	if tlsInsecure {
		if opt.TLSConfig == nil {
			opt.TLSConfig = &tls.Config{}
		}
		opt.TLSConfig.InsecureSkipVerify = true
	}
	return redis.NewClient(opt), nil
}

// Store keeps the hub's shared state in Redis so schedules and goal progress
// survive restarts and are shared across worker processes.
type Store struct {
	rdb    redis.UniversalClient
	minGap time.Duration
}

func NewStore(rdb redis.UniversalClient, minGap time.Duration) *Store {
	return &Store{rdb: rdb, minGap: minGap}
}

func gapKey(leadID uuid.UUID, channel string) string {
	return fmt.Sprintf("coord:gap:%s:%s", leadID, channel)
}

func goalsKey(campaignID, leadID uuid.UUID) string {
	return fmt.Sprintf("coord:goals:%s:%s", campaignID, leadID)
}

// ClaimSendSlot atomically claims the channel's send slot for a lead. A false
// return means another dispatch happened within the minimum gap. Adaptive
// replies never call this; they bypass the gap entirely.
func (s *Store) ClaimSendSlot(ctx context.Context, leadID uuid.UUID, channel string) (bool, error) {
	if s.minGap <= 0 {
		return true, nil
	}
	return s.rdb.SetNX(ctx, gapKey(leadID, channel), time.Now().UnixMilli(), s.minGap).Result()
}

// IncrementGoal adds delta to a goal counter for (campaign, lead) and returns
// the merged value. Increments are additive so concurrent channels never
// clobber one another.
func (s *Store) IncrementGoal(ctx context.Context, campaignID, leadID uuid.UUID, goal string, delta int) (int, error) {
	v, err := s.rdb.HIncrBy(ctx, goalsKey(campaignID, leadID), goal, int64(delta)).Result()
	if err != nil {
		return 0, err
	}
	return int(v), nil
}

// GoalProgress returns every goal counter for (campaign, lead).
func (s *Store) GoalProgress(ctx context.Context, campaignID, leadID uuid.UUID) (map[string]int, error) {
	raw, err := s.rdb.HGetAll(ctx, goalsKey(campaignID, leadID)).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[string]int, len(raw))
	for goal, v := range raw {
		if n, err := strconv.Atoi(v); err == nil {
			out[goal] = n
		}
	}
	return out, nil
}

// ClearGoals drops the goal counters once a (campaign, lead) pair completes.
func (s *Store) ClearGoals(ctx context.Context, campaignID, leadID uuid.UUID) error {
	return s.rdb.Del(ctx, goalsKey(campaignID, leadID)).Err()
}
