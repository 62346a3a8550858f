package leads

import (
	"context"
	"crypto/subtle"
	"sync"
)

// Store is the append-only system of record for leads.
type Store interface {
	// Append writes one six-column row and returns the number of cells written.
	Append(ctx context.Context, lead Lead) (int64, error)
	// List returns every stored row, header excluded, when secret matches the
	// configured admin secret.
	List(ctx context.Context, secret string) ([]Record, error)
}

// authorize compares the provided secret against the configured one in
// constant time. An unset admin secret rejects everything.
func authorize(configured, provided string) error {
	if configured == "" || provided == "" {
		return &Error{Kind: KindAuth, Op: "list", Err: ErrUnauthorized}
	}
	if subtle.ConstantTimeCompare([]byte(configured), []byte(provided)) != 1 {
		return &Error{Kind: KindAuth, Op: "list", Err: ErrUnauthorized}
	}
	return nil
}

// MemoryStore keeps rows in process memory. Used for local development and tests.
type MemoryStore struct {
	mu          sync.RWMutex
	rows        []Record
	adminSecret string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(adminSecret string) *MemoryStore {
	return &MemoryStore{adminSecret: adminSecret}
}

// Append stores the lead as a row.
func (s *MemoryStore) Append(ctx context.Context, lead Lead) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, tag(KindStore, "append", err)
	}
	s.mu.Lock()
	s.rows = append(s.rows, lead.Record())
	s.mu.Unlock()
	return int64(len(lead.Row())), nil
}

// List returns a copy of every stored row.
func (s *MemoryStore) List(ctx context.Context, secret string) ([]Record, error) {
	if err := authorize(s.adminSecret, secret); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Record, len(s.rows))
	copy(out, s.rows)
	return out, nil
}

// Len returns the number of stored rows.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows)
}

// unconfiguredStore stands in for the real store when credentials are
// missing, so the process still starts and each call reports why it failed.
type unconfiguredStore struct {
	err         error
	adminSecret string
}

// NewUnconfiguredStore returns a Store whose calls fail with cause.
func NewUnconfiguredStore(cause error, adminSecret string) Store {
	return &unconfiguredStore{err: cause, adminSecret: adminSecret}
}

func (s *unconfiguredStore) Append(context.Context, Lead) (int64, error) {
	return 0, &Error{Kind: KindStore, Op: "append", Err: s.err}
}

func (s *unconfiguredStore) List(_ context.Context, secret string) ([]Record, error) {
	if err := authorize(s.adminSecret, secret); err != nil {
		return nil, err
	}
	return nil, &Error{Kind: KindStore, Op: "list", Err: s.err}
}
