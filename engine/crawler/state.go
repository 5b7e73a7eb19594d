package crawler

import "github.com/WessleyAI/orggraph/engine/domain"

// frontierItem is one pending (name, depth) pair.
type frontierItem struct {
	name  string
	depth int
}

// frontier is a FIFO queue. Duplicate names are allowed; dedup happens on
// identifiers, not names.
type frontier struct {
	items []frontierItem
	head  int
}

func (f *frontier) push(name string, depth int) {
	f.items = append(f.items, frontierItem{name: name, depth: depth})
}

func (f *frontier) pop() (frontierItem, bool) {
	if f.head >= len(f.items) {
		return frontierItem{}, false
	}
	item := f.items[f.head]
	f.items[f.head] = frontierItem{}
	f.head++
	if f.head == len(f.items) {
		f.items = f.items[:0]
		f.head = 0
	}
	return item, true
}

func (f *frontier) len() int { return len(f.items) - f.head }

// crawlState is the whole mutable state of one Explore call. It is owned by
// that call and never shared.
type crawlState struct {
	runID         string
	maxDepth      int
	queue         frontier
	explored      domain.IdentifierSet
	relationships domain.RelationshipMap
	entities      []domain.OrganizationRecord
	stats         Stats
}

func newCrawlState(runID string, seeds []string, maxDepth int) *crawlState {
	st := &crawlState{
		runID:         runID,
		maxDepth:      maxDepth,
		explored:      make(domain.IdentifierSet),
		relationships: make(domain.RelationshipMap),
	}
	for _, s := range seeds {
		st.queue.push(s, 0)
	}
	return st
}

func (st *crawlState) result() *Result {
	return &Result{
		RunID:         st.runID,
		Entities:      st.entities,
		Relationships: st.relationships,
		Stats:         st.stats,
	}
}
