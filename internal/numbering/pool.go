package numbering

import (
	"slices"
	"sync"
)

// PoolState is a copy of one category's pool.
type PoolState struct {
	Highest  int
	Released []int
}

// Pool hands out per-category sequences, reusing the smallest released
// sequence before minting a new one.
type Pool struct {
	mu       sync.Mutex
	highest  map[Category]int
	released map[Category][]int // sorted ascending, no duplicates
}

func NewPool() *Pool {
	return &Pool{
		highest:  make(map[Category]int),
		released: make(map[Category][]int),
	}
}

// Allocate returns the smallest released sequence for cat, or mints the next one.
func (p *Pool) Allocate(cat Category) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	if free := p.released[cat]; len(free) > 0 {
		seq := free[0]
		p.released[cat] = slices.Delete(free, 0, 1)
		return seq
	}

	p.highest[cat]++
	return p.highest[cat]
}

// Release makes seq reusable in cat. Sequences this pool never minted are
// ignored.
func (p *Pool) Release(cat Category, seq int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if seq < 1 || seq > p.highest[cat] {
		return
	}

	free := p.released[cat]
	i, found := slices.BinarySearch(free, seq)
	if found {
		return
	}
	p.released[cat] = slices.Insert(free, i, seq)
}

// Claim marks seq as held again, undoing a Release. Claiming past the
// highest minted sequence mints up to it and frees the skipped ones.
func (p *Pool) Claim(cat Category, seq int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if seq < 1 {
		return
	}

	free := p.released[cat]
	if i, found := slices.BinarySearch(free, seq); found {
		p.released[cat] = slices.Delete(free, i, i+1)
		return
	}

	for skipped := p.highest[cat] + 1; skipped < seq; skipped++ {
		p.released[cat] = append(p.released[cat], skipped)
	}
	if seq > p.highest[cat] {
		p.highest[cat] = seq
	}
}

// Bootstrap rebuilds the pool from the sequences currently held by patients.
// Every gap below the highest held sequence becomes reusable.
func (p *Pool) Bootstrap(existing map[Category][]int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.highest = make(map[Category]int)
	p.released = make(map[Category][]int)

	for cat, seqs := range existing {
		held := make(map[int]struct{}, len(seqs))
		highest := 0
		for _, seq := range seqs {
			if seq < 1 {
				continue
			}
			held[seq] = struct{}{}
			if seq > highest {
				highest = seq
			}
		}

		var gaps []int
		for seq := 1; seq < highest; seq++ {
			if _, ok := held[seq]; !ok {
				gaps = append(gaps, seq)
			}
		}

		p.highest[cat] = highest
		if len(gaps) > 0 {
			p.released[cat] = gaps
		}
	}
}

func (p *Pool) Snapshot() map[Category]PoolState {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make(map[Category]PoolState, len(Categories))
	for _, cat := range Categories {
		out[cat] = PoolState{
			Highest:  p.highest[cat],
			Released: slices.Clone(p.released[cat]),
		}
	}
	return out
}
