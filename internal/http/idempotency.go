package http

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
	"golang.org/x/xerrors"
)

const (
	idempotencyHeader  = "Idempotency-Key"
	idempotencyPending = "pending"
	maxIdempotencyKey  = 128
)

type replay struct {
	// found is set when the key was already claimed.
	found bool
	// logID is zero while the first request is still in flight.
	logID int64
}

// claimIdempotencyKey reserves key for this request. When the key was
// already used the earlier outcome is returned instead.
func (s *Server) claimIdempotencyKey(ctx context.Context, key string) (replay, error) {
	ok, err := s.redis.SetNX(ctx, idempotencyKey(key), idempotencyPending, s.cfg.IdempotencyTTL).Result()
	if err != nil {
		return replay{}, err
	}
	if ok {
		return replay{}, nil
	}

	value, err := s.redis.Get(ctx, idempotencyKey(key)).Result()
	if err == redis.Nil {
		// Expired between the two calls; treat as in flight rather than retry.
		return replay{found: true}, nil
	}
	if err != nil {
		return replay{}, err
	}
	if value == idempotencyPending {
		return replay{found: true}, nil
	}
	logID, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return replay{}, xerrors.Errorf("parse stored log id %q: %w", value, err)
	}
	return replay{found: true, logID: logID}, nil
}

func (s *Server) completeIdempotencyKey(ctx context.Context, key string, logID int64) error {
	return s.redis.Set(ctx, idempotencyKey(key), strconv.FormatInt(logID, 10), s.cfg.IdempotencyTTL).Err()
}

func (s *Server) releaseIdempotencyKey(ctx context.Context, key string) error {
	return s.redis.Del(ctx, idempotencyKey(key)).Err()
}

func idempotencyKey(key string) string {
	return fmt.Sprintf("idempotency:usage:%s", key)
}
