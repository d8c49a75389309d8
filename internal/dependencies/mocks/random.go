package mocks

import (
	"sync"

	"github.com/mcoot/partytasks/internal/dependencies/random"
)

// MockRandom is a mock implementation of Random for testing.
// Queued values are consumed in order; an exhausted queue yields zero values,
// so an unqueued room code draw comes back empty and is rejected as malformed.
type MockRandom struct {
	mu      sync.Mutex
	ints    []int
	strings []string
	drawn   []string
}

// Ensure MockRandom implements Random
var _ random.Random = (*MockRandom)(nil)

// NewMockRandom creates a new MockRandom
func NewMockRandom() *MockRandom {
	return &MockRandom{}
}

// Intn returns the next queued result clamped to [0, n), or 0 if none remaining
func (r *MockRandom) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.ints) == 0 || n <= 0 {
		return 0
	}
	result := r.ints[0]
	r.ints = r.ints[1:]
	if result >= n {
		result = n - 1
	}
	return result
}

// String returns the next queued result, or empty string if none remaining
func (r *MockRandom) String(length int, alphabet string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.strings) == 0 {
		return ""
	}
	result := r.strings[0]
	r.strings = r.strings[1:]
	r.drawn = append(r.drawn, result)
	return result
}

// QueueIntn adds values to the Intn result queue
func (r *MockRandom) QueueIntn(values ...int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ints = append(r.ints, values...)
}

// QueueString adds values to the String result queue
func (r *MockRandom) QueueString(values ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.strings = append(r.strings, values...)
}

// StringsDrawn returns every String result handed out so far
func (r *MockRandom) StringsDrawn() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.drawn...)
}

// Reset clears all queued results
func (r *MockRandom) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ints = nil
	r.strings = nil
	r.drawn = nil
}
