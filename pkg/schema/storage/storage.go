// Package storage provides an in-memory implementation of
// [schema.SchemaStoragePort], grounded on the teacher's backend.Service
// port-and-factory pattern. The port itself is declared in pkg/schema,
// alongside [schema.SchemaBuilder.BuildWithStorage], the consumer that
// uses it.
package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/hodei/authzcore/pkg/schema"
)

// StorageError is the structured error type this package produces.
type StorageError struct {
	Kind   string
	Reason string
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("schema storage error (%s): %s", e.Kind, e.Reason)
}

// StorageError kinds.
const (
	ErrNotFound   = "NotFound"
	ErrAlreadySet = "AlreadySet"
)

var _ schema.SchemaStoragePort = (*InMemoryStorage)(nil)

// InMemoryStorage implements [schema.SchemaStoragePort] over a guarded
// map, the reference implementation used in tests and single-process
// deployments.
type InMemoryStorage struct {
	mu     sync.RWMutex
	byHash map[string]*schema.Schema
	latest string
}

// NewInMemoryStorage constructs an empty InMemoryStorage.
func NewInMemoryStorage() *InMemoryStorage {
	return &InMemoryStorage{byHash: make(map[string]*schema.Schema)}
}

// Put stores s, indexed by its content hash, and marks it as the latest
// schema.
func (s *InMemoryStorage) Put(ctx context.Context, sc *schema.Schema) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byHash[sc.ContentHash] = sc
	s.latest = sc.ContentHash
	return nil
}

// Get retrieves the schema with the given content hash.
func (s *InMemoryStorage) Get(ctx context.Context, contentHash string) (*schema.Schema, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sc, ok := s.byHash[contentHash]
	if !ok {
		return nil, &StorageError{Kind: ErrNotFound, Reason: fmt.Sprintf("no schema with content hash %q", contentHash)}
	}
	return sc, nil
}

// Latest retrieves the most recently Put schema.
func (s *InMemoryStorage) Latest(ctx context.Context) (*schema.Schema, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.latest == "" {
		return nil, &StorageError{Kind: ErrNotFound, Reason: "no schema has been stored yet"}
	}
	return s.byHash[s.latest], nil
}
