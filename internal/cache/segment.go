package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/emrgen/qda/internal/coding"
	"github.com/emrgen/qda/internal/compress"
)

const (
	segmentHitCounter  = "coding:segments:hits"
	segmentMissCounter = "coding:segments:misses"
)

func segmentsKey(id string) string {
	return "coding:segments:" + id
}

// SegmentCache keeps the render segments of a source.
type SegmentCache interface {
	// GetSegments returns the cached segments and whether they were present.
	GetSegments(ctx context.Context, sourceID uuid.UUID) ([]coding.Segment, bool, error)
	// SetSegments stores the segments of a source.
	SetSegments(ctx context.Context, sourceID uuid.UUID, segments []coding.Segment) error
	// Invalidate drops the segments of the given sources.
	Invalidate(ctx context.Context, sourceIDs ...uuid.UUID) error
}

var _ SegmentCache = (*RedisSegmentCache)(nil)

type RedisSegmentCache struct {
	client  *redis.Client
	encoder compress.Compress
	ttl     time.Duration
}

func NewRedisSegmentCache(client *redis.Client, encoder compress.Compress, ttl time.Duration) *RedisSegmentCache {
	return &RedisSegmentCache{client: client, encoder: encoder, ttl: ttl}
}

func (r *RedisSegmentCache) GetSegments(ctx context.Context, sourceID uuid.UUID) ([]coding.Segment, bool, error) {
	res := r.client.Get(ctx, segmentsKey(sourceID.String()))
	if res.Err() != nil {
		if errors.Is(res.Err(), redis.Nil) {
			r.client.Incr(ctx, segmentMissCounter)
			return nil, false, nil
		}
		return nil, false, res.Err()
	}

	buf, err := res.Bytes()
	if err != nil {
		return nil, false, err
	}

	data, err := r.encoder.Decode(buf)
	if err != nil {
		// written with another codec, recompute
		logrus.Warnf("dropping undecodable segments of source %s: %v", sourceID, err)
		return nil, false, r.Invalidate(ctx, sourceID)
	}

	var segments []coding.Segment
	if err := json.Unmarshal(data, &segments); err != nil {
		return nil, false, err
	}

	r.client.Incr(ctx, segmentHitCounter)

	return segments, true, nil
}

func (r *RedisSegmentCache) SetSegments(ctx context.Context, sourceID uuid.UUID, segments []coding.Segment) error {
	marshal, err := json.Marshal(segments)
	if err != nil {
		return err
	}

	data, err := r.encoder.Encode(marshal)
	if err != nil {
		return err
	}

	return r.client.Set(ctx, segmentsKey(sourceID.String()), data, r.ttl).Err()
}

func (r *RedisSegmentCache) Invalidate(ctx context.Context, sourceIDs ...uuid.UUID) error {
	if len(sourceIDs) == 0 {
		return nil
	}

	keys := make([]string, len(sourceIDs))
	for i, id := range sourceIDs {
		keys[i] = segmentsKey(id.String())
	}

	return r.client.Del(ctx, keys...).Err()
}

// Stats returns the hit and miss counters.
func (r *RedisSegmentCache) Stats(ctx context.Context) (hits, misses int64, err error) {
	values, err := r.client.MGet(ctx, segmentHitCounter, segmentMissCounter).Result()
	if err != nil {
		return 0, 0, err
	}

	parse := func(v any) int64 {
		s, ok := v.(string)
		if !ok {
			return 0
		}
		n, _ := strconv.ParseInt(s, 10, 64)
		return n
	}

	return parse(values[0]), parse(values[1]), nil
}

// NopSegmentCache never holds anything.
type NopSegmentCache struct{}

var _ SegmentCache = NopSegmentCache{}

func (NopSegmentCache) GetSegments(context.Context, uuid.UUID) ([]coding.Segment, bool, error) {
	return nil, false, nil
}

func (NopSegmentCache) SetSegments(context.Context, uuid.UUID, []coding.Segment) error {
	return nil
}

func (NopSegmentCache) Invalidate(context.Context, ...uuid.UUID) error {
	return nil
}
