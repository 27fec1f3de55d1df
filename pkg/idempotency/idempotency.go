// Package idempotency remembers the outcome of requests carrying an
// Idempotency-Key so a retried request replays the first response instead of
// repeating its side effects.
package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Header is the request header carrying the key.
const Header = "Idempotency-Key"

var (
	// ErrInProgress indicates another request holding the same key has not
	// finished yet.
	ErrInProgress = errors.New("a request with this idempotency key is in progress")
	// ErrKeyReused indicates the key was first used with a different request.
	ErrKeyReused = errors.New("idempotency key was used with a different request")
)

// Response is a recorded HTTP response. A zero Status marks a claim whose
// response is not recorded yet.
type Response struct {
	Fingerprint string `json:"fingerprint"`
	Status      int    `json:"status"`
	Body        []byte `json:"body"`
}

// Store claims keys and records responses.
type Store interface {
	// Claim reserves key for the request identified by fingerprint. When the
	// key already holds a completed response it is returned with
	// claimed=false. A key still being processed yields ErrInProgress and a
	// key claimed with another fingerprint yields ErrKeyReused.
	Claim(ctx context.Context, key, fingerprint string) (resp Response, claimed bool, err error)
	// Complete records the response for a claimed key.
	Complete(ctx context.Context, key string, resp Response) error
	// Release drops a claim so the request can be retried.
	Release(ctx context.Context, key string) error
}

// RedisStore keeps keys in Redis with a TTL.
type RedisStore struct {
	rdb    redis.UniversalClient
	ttl    time.Duration
	prefix string
}

// NewRedisStore returns a Redis backed Store.
func NewRedisStore(rdb redis.UniversalClient, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl, prefix: "idempotency:"}
}

// Claim implements Store.
func (s *RedisStore) Claim(ctx context.Context, key, fingerprint string) (Response, bool, error) {
	k := s.prefix + key
	marker, err := json.Marshal(Response{Fingerprint: fingerprint})
	if err != nil {
		return Response{}, false, fmt.Errorf("encode claim: %w", err)
	}
	// Two attempts cover a key expiring between SETNX and GET.
	for attempt := 0; attempt < 2; attempt++ {
		ok, err := s.rdb.SetNX(ctx, k, marker, s.ttl).Result()
		if err != nil {
			return Response{}, false, fmt.Errorf("claim key: %w", err)
		}
		if ok {
			return Response{}, true, nil
		}

		val, err := s.rdb.Get(ctx, k).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return Response{}, false, fmt.Errorf("read key: %w", err)
		}
		var resp Response
		if err := json.Unmarshal([]byte(val), &resp); err != nil {
			return Response{}, false, fmt.Errorf("decode response: %w", err)
		}
		return settled(resp, fingerprint)
	}
	return Response{}, false, ErrInProgress
}

// Complete implements Store.
func (s *RedisStore) Complete(ctx context.Context, key string, resp Response) error {
	b, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("encode response: %w", err)
	}
	return s.rdb.Set(ctx, s.prefix+key, b, s.ttl).Err()
}

// Release implements Store.
func (s *RedisStore) Release(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, s.prefix+key).Err()
}

// MemoryStore is a process-local Store.
type MemoryStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]entry
}

type entry struct {
	resp    Response
	expires time.Time
}

// NewMemoryStore returns an in-memory Store.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{ttl: ttl, now: time.Now, entries: make(map[string]entry)}
}

// Claim implements Store.
func (s *MemoryStore) Claim(ctx context.Context, key, fingerprint string) (Response, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if e, ok := s.entries[key]; ok && now.Before(e.expires) {
		return settled(e.resp, fingerprint)
	}
	s.entries[key] = entry{resp: Response{Fingerprint: fingerprint}, expires: now.Add(s.ttl)}
	return Response{}, true, nil
}

// Complete implements Store.
func (s *MemoryStore) Complete(ctx context.Context, key string, resp Response) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = entry{resp: resp, expires: s.now().Add(s.ttl)}
	return nil
}

// Release implements Store.
func (s *MemoryStore) Release(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

// settled reports the outcome of claiming a key that already holds resp.
func settled(resp Response, fingerprint string) (Response, bool, error) {
	switch {
	case resp.Fingerprint != fingerprint:
		return Response{}, false, ErrKeyReused
	case resp.Status == 0:
		return Response{}, false, ErrInProgress
	}
	return resp, false, nil
}
