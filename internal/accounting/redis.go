package accounting

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"payment-gateway/internal/entities"
	internalErrors "payment-gateway/internal/errors"

	"github.com/go-redis/redis/v8"
	"github.com/goccy/go-json"
)

const processedKey = "payments:processed"

// RedisLedger keeps every acknowledged dispatch in a sorted set scored by
// requestedAt in milliseconds, so range summaries are a score scan.
type RedisLedger struct {
	rc        *redis.Client
	batchSize int64
}

func NewRedisLedger(rc *redis.Client) *RedisLedger {
	return &RedisLedger{
		rc:        rc,
		batchSize: 10000,
	}
}

func (l *RedisLedger) Record(ctx context.Context, d entities.Dispatch) error {
	member, err := json.Marshal(d)
	if err != nil {
		return err
	}

	err = l.rc.ZAddNX(ctx, processedKey, &redis.Z{
		Score:  float64(d.RequestedAt.UnixMilli()),
		Member: member,
	}).Err()
	if err != nil {
		return &internalErrors.TransportError{Op: "ZADD", Target: processedKey, Err: err}
	}

	return nil
}

func (l *RedisLedger) Summary(ctx context.Context, from, to time.Time) (*entities.PaymentsSummary, error) {
	minScore, maxScore := "-inf", "+inf"
	if !from.IsZero() {
		minScore = strconv.FormatInt(from.UnixMilli(), 10)
	}
	if !to.IsZero() {
		maxScore = strconv.FormatInt(to.UnixMilli(), 10)
	}

	summary := &entities.PaymentsSummary{}
	var offset int64

	for {
		members, err := l.rc.ZRangeByScore(ctx, processedKey, &redis.ZRangeBy{
			Min:    minScore,
			Max:    maxScore,
			Offset: offset,
			Count:  l.batchSize,
		}).Result()
		if err != nil {
			return nil, &internalErrors.TransportError{Op: "ZRANGEBYSCORE", Target: processedKey, Err: err}
		}

		for _, member := range members {
			var d entities.Dispatch
			if err := json.Unmarshal([]byte(member), &d); err != nil {
				slog.Warn("skipping unreadable ledger entry", "error", err)
				continue
			}
			summary.Add(d)
		}

		offset += int64(len(members))
		if int64(len(members)) < l.batchSize {
			break
		}
	}

	return summary, nil
}

func (l *RedisLedger) Clear(ctx context.Context) error {
	return l.rc.Del(ctx, processedKey).Err()
}
