package engine

import (
	"container/heap"

	"github.com/quentel/availsim/automaton"
)

// pending is one scheduled transition firing. Entries are invalidated
// lazily: cancelling marks the entry and the pop loop skips it, which
// avoids rebalancing the heap on every guard toggle.
type pending struct {
	time      float64
	seq       int64
	aut       *automaton.Automaton
	tr        *automaton.Transition
	cancelled bool
	index     int
}

// eventHeap is a min-heap of pending firings keyed by (time, seq). The
// sequence number makes simultaneous events pop in scheduling order, so
// runs are deterministic for a fixed seed.
type eventHeap []*pending

func (h eventHeap) Len() int { return len(h) }

func (h eventHeap) Less(i, j int) bool {
	if h[i].time != h[j].time {
		return h[i].time < h[j].time
	}
	return h[i].seq < h[j].seq
}

func (h eventHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *eventHeap) Push(x any) {
	p := x.(*pending)
	p.index = len(*h)
	*h = append(*h, p)
}

func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	p := old[n-1]
	old[n-1] = nil // clear the slot so the backing array releases the entry
	p.index = -1
	*h = old[:n-1]
	return p
}

// peekValid returns the earliest non-cancelled entry without removing
// it, or nil when the heap has drained. Cancelled entries reaching the
// top are discarded on the way.
func (h *eventHeap) peekValid() *pending {
	for h.Len() > 0 {
		if !(*h)[0].cancelled {
			return (*h)[0]
		}
		heap.Pop(h)
	}
	return nil
}

// popValid removes and returns the earliest non-cancelled entry, or nil
// when the heap has drained.
func (h *eventHeap) popValid() *pending {
	for h.Len() > 0 {
		p := heap.Pop(h).(*pending)
		if !p.cancelled {
			return p
		}
	}
	return nil
}
