package progress

import (
	"maps"
	"sync"

	"permit-engine/internal/model"
)

// Board accumulates progress summaries for the case list currently on
// screen. Every Reset starts a new generation; merges tagged with an older
// generation are refused so a slow run cannot overwrite a newer list.
type Board struct {
	mu         sync.RWMutex
	generation uint64
	results    map[string]model.ProgressSummary
	onMerge    func(generation uint64, partial map[string]model.ProgressSummary)
}

// NewBoard returns an empty board. onMerge, when set, is called after every
// accepted merge with the merged partial results.
func NewBoard(onMerge func(generation uint64, partial map[string]model.ProgressSummary)) *Board {
	return &Board{results: map[string]model.ProgressSummary{}, onMerge: onMerge}
}

// Reset discards all results and returns the new generation.
func (b *Board) Reset() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.generation++
	b.results = map[string]model.ProgressSummary{}
	return b.generation
}

func (b *Board) Generation() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.generation
}

// Merge adds partial results produced for generation. It reports false and
// leaves the board untouched when generation is stale.
func (b *Board) Merge(generation uint64, partial map[string]model.ProgressSummary) bool {
	b.mu.Lock()
	if generation != b.generation {
		b.mu.Unlock()
		return false
	}
	maps.Copy(b.results, partial)
	b.mu.Unlock()

	if b.onMerge != nil {
		b.onMerge(generation, partial)
	}
	return true
}

func (b *Board) Get(caseID string) (model.ProgressSummary, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	s, ok := b.results[caseID]
	return s, ok
}

func (b *Board) Snapshot() map[string]model.ProgressSummary {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return maps.Clone(b.results)
}
