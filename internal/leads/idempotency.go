package leads

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	idempotencyKeyPrefix = "leads:idempotency:"

	// MaxIdempotencyKeyLength bounds the Idempotency-Key header.
	MaxIdempotencyKeyLength = 128

	defaultIdempotencyTTL = 24 * time.Hour
	defaultPendingTTL     = time.Minute
	pendingMargin         = 30 * time.Second
)

// ClaimState is the outcome of claiming an idempotency key.
type ClaimState int

const (
	// ClaimAcquired means the caller owns the key and must Complete or Release it.
	ClaimAcquired ClaimState = iota
	// ClaimInFlight means another request holds the key and has not finished.
	ClaimInFlight
	// ClaimCompleted means the key already has a stored response.
	ClaimCompleted
	// ClaimMismatch means the key was first used with a different submission.
	ClaimMismatch
)

// Claim is returned by IdempotencyStore.Claim. Response is set only for ClaimCompleted.
type Claim struct {
	State    ClaimState
	Response []byte
}

// IdempotencyStore remembers the response of a completed submission per client
// key. The fingerprint ties a key to the submission it was first used with.
type IdempotencyStore interface {
	Claim(ctx context.Context, key, fingerprint string) (Claim, error)
	Complete(ctx context.Context, key, fingerprint string, response []byte) error
	Release(ctx context.Context, key string) error
}

// PendingTTL sizes the in-flight marker so it outlives one full pipeline run.
func PendingTTL(storeTimeout, mailTimeout time.Duration) time.Duration {
	ttl := storeTimeout + mailTimeout + pendingMargin
	if ttl < defaultPendingTTL {
		return defaultPendingTTL
	}
	return ttl
}

// Fingerprint hashes the submitted fields, so a JSON and a form body carrying
// the same values match.
func Fingerprint(sub Submission) string {
	h := sha256.New()
	for _, field := range []string{sub.Name, sub.Email, sub.Phone, sub.Message, sub.Type} {
		h.Write([]byte(field))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// idempotencyRecord is the Redis value for one key.
type idempotencyRecord struct {
	Fingerprint string `json:"fingerprint"`
	Pending     bool   `json:"pending,omitempty"`
	Response    []byte `json:"response,omitempty"`
}

// RedisIdempotencyStore keeps claims in Redis so replicas share them.
type RedisIdempotencyStore struct {
	redis      *redis.Client
	ttl        time.Duration
	pendingTTL time.Duration
}

// NewRedisIdempotencyStore returns nil when client is nil. Non-positive
// durations fall back to the defaults.
func NewRedisIdempotencyStore(client *redis.Client, ttl, pendingTTL time.Duration) *RedisIdempotencyStore {
	if client == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = defaultIdempotencyTTL
	}
	if pendingTTL <= 0 {
		pendingTTL = defaultPendingTTL
	}
	return &RedisIdempotencyStore{redis: client, ttl: ttl, pendingTTL: pendingTTL}
}

func (s *RedisIdempotencyStore) Claim(ctx context.Context, key, fingerprint string) (Claim, error) {
	redisKey := idempotencyKeyPrefix + key
	marker, err := json.Marshal(idempotencyRecord{Fingerprint: fingerprint, Pending: true})
	if err != nil {
		return Claim{}, fmt.Errorf("leads: encode idempotency marker: %w", err)
	}
	for attempt := 0; attempt < 2; attempt++ {
		ok, err := s.redis.SetNX(ctx, redisKey, marker, s.pendingTTL).Result()
		if err != nil {
			return Claim{}, fmt.Errorf("leads: claim idempotency key: %w", err)
		}
		if ok {
			return Claim{State: ClaimAcquired}, nil
		}
		val, err := s.redis.Get(ctx, redisKey).Bytes()
		if errors.Is(err, redis.Nil) {
			// expired between SETNX and GET
			continue
		}
		if err != nil {
			return Claim{}, fmt.Errorf("leads: read idempotency key: %w", err)
		}
		var rec idempotencyRecord
		if err := json.Unmarshal(val, &rec); err != nil {
			return Claim{}, fmt.Errorf("leads: decode idempotency key: %w", err)
		}
		return rec.claim(fingerprint), nil
	}
	return Claim{State: ClaimInFlight}, nil
}

func (s *RedisIdempotencyStore) Complete(ctx context.Context, key, fingerprint string, response []byte) error {
	val, err := json.Marshal(idempotencyRecord{Fingerprint: fingerprint, Response: response})
	if err != nil {
		return fmt.Errorf("leads: encode idempotent response: %w", err)
	}
	if err := s.redis.Set(ctx, idempotencyKeyPrefix+key, val, s.ttl).Err(); err != nil {
		return fmt.Errorf("leads: store idempotent response: %w", err)
	}
	return nil
}

func (s *RedisIdempotencyStore) Release(ctx context.Context, key string) error {
	if err := s.redis.Del(ctx, idempotencyKeyPrefix+key).Err(); err != nil {
		return fmt.Errorf("leads: release idempotency key: %w", err)
	}
	return nil
}

func (r idempotencyRecord) claim(fingerprint string) Claim {
	switch {
	case r.Fingerprint != fingerprint:
		return Claim{State: ClaimMismatch}
	case r.Pending:
		return Claim{State: ClaimInFlight}
	default:
		return Claim{State: ClaimCompleted, Response: append([]byte(nil), r.Response...)}
	}
}

type idempotencyEntry struct {
	record  idempotencyRecord
	expires time.Time
}

// MemoryIdempotencyStore is the single-process fallback used when Redis is not configured.
type MemoryIdempotencyStore struct {
	mu         sync.Mutex
	entries    map[string]idempotencyEntry
	ttl        time.Duration
	pendingTTL time.Duration
	now        func() time.Time
}

func NewMemoryIdempotencyStore(ttl, pendingTTL time.Duration) *MemoryIdempotencyStore {
	if ttl <= 0 {
		ttl = defaultIdempotencyTTL
	}
	if pendingTTL <= 0 {
		pendingTTL = defaultPendingTTL
	}
	return &MemoryIdempotencyStore{
		entries:    make(map[string]idempotencyEntry),
		ttl:        ttl,
		pendingTTL: pendingTTL,
		now:        time.Now,
	}
}

func (s *MemoryIdempotencyStore) Claim(ctx context.Context, key, fingerprint string) (Claim, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.sweep(now)
	if entry, ok := s.entries[key]; ok {
		return entry.record.claim(fingerprint), nil
	}
	s.entries[key] = idempotencyEntry{
		record:  idempotencyRecord{Fingerprint: fingerprint, Pending: true},
		expires: now.Add(s.pendingTTL),
	}
	return Claim{State: ClaimAcquired}, nil
}

func (s *MemoryIdempotencyStore) Complete(ctx context.Context, key, fingerprint string, response []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = idempotencyEntry{
		record:  idempotencyRecord{Fingerprint: fingerprint, Response: append([]byte(nil), response...)},
		expires: s.now().Add(s.ttl),
	}
	return nil
}

func (s *MemoryIdempotencyStore) Release(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

func (s *MemoryIdempotencyStore) sweep(now time.Time) {
	for key, entry := range s.entries {
		if !now.Before(entry.expires) {
			delete(s.entries, key)
		}
	}
}

var (
	_ IdempotencyStore = (*RedisIdempotencyStore)(nil)
	_ IdempotencyStore = (*MemoryIdempotencyStore)(nil)
)
