// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package flowtable

import "time"

// expiryItem is one entry in the expiry index: the oldest-lastSeen flow
// sits at the root, giving O(log n) pressure eviction and expiry sweeps as
// called for in spec.md §4.1/§9.
type expiryItem struct {
	key      string
	lastSeen time.Time
	index    int
}

// expiryIndex is a container/heap min-heap ordered by lastSeen, with a
// side table (Table.itemOf) kept in sync via Swap/Push/Pop so any item can
// be located and fixed or removed in O(log n).
type expiryIndex []*expiryItem

func (h expiryIndex) Len() int { return len(h) }

func (h expiryIndex) Less(i, j int) bool { return h[i].lastSeen.Before(h[j].lastSeen) }

func (h expiryIndex) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *expiryIndex) Push(x any) {
	item := x.(*expiryItem)
	item.index = len(*h)
	*h = append(*h, item)
}

func (h *expiryIndex) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}
