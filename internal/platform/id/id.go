package id

import (
	"strconv"
	"sync"

	"github.com/google/uuid"
)

// Generator creates opaque identifiers.
type Generator interface {
	New() string
}

// UUID issues random (v4) identifiers. Record ids double as remote document
// ids, so they must be unique across devices without coordination.
type UUID struct{}

func (UUID) New() string {
	return uuid.NewString()
}

// Sequence is a deterministic generator for tests.
type Sequence struct {
	Prefix string

	mu   sync.Mutex
	next int
}

func (s *Sequence) New() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	return s.Prefix + strconv.Itoa(s.next)
}
