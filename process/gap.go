package process

import (
	"sync"

	"raichain/block"
	"raichain/primitives"
)

// gapCache parks blocks that referenced a predecessor or source hash this
// node hasn't seen yet, keyed by that missing hash (spec §4.4.2
// "GAP_PREVIOUS/GAP_RECEIVE_SOURCE/GAP_REWARD_SOURCE ... queued in a gap
// cache keyed by the missing hash and released when that hash appears").
type gapCache struct {
	mu      sync.Mutex
	waiting map[primitives.Hash][]*block.Block
}

func newGapCache() *gapCache {
	return &gapCache{waiting: make(map[primitives.Hash][]*block.Block)}
}

// Park records b as waiting on missing.
func (g *gapCache) Park(missing primitives.Hash, b *block.Block) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.waiting[missing] = append(g.waiting[missing], b)
}

// Release removes and returns every block that was waiting on hash.
func (g *gapCache) Release(hash primitives.Hash) []*block.Block {
	g.mu.Lock()
	defer g.mu.Unlock()
	blocks := g.waiting[hash]
	delete(g.waiting, hash)
	return blocks
}

// releaseGapsFor re-admits every block that was waiting on hash after a
// successful APPEND makes that hash available.
func (p *Processor) releaseGapsFor(hash primitives.Hash) {
	for _, b := range p.gap.Release(hash) {
		p.admit.Offer(b)
	}
}
