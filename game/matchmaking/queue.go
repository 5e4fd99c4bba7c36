package matchmaking

import (
	"slices"
	"sync"
	"time"
)

// WaitingEntry is a participant waiting for an opponent in a stake tier.
type WaitingEntry struct {
	UserID   string    `json:"userId"`
	TierID   int       `json:"tierId"`
	ConnID   string    `json:"connId"`
	JoinedAt time.Time `json:"joinedAt"`
}

// Verdict is a pairing callback's decision about one candidate pair.
type Verdict int

const (
	// Paired means a session was created; both entries leave the queue.
	Paired Verdict = iota
	// Rejected keeps both entries queued in their original order and stops the sweep.
	Rejected
	// DropFirst removes the older entry, e.g. because its connection is gone.
	DropFirst
	// DropSecond removes the newer entry.
	DropSecond
	// DropBoth removes both entries.
	DropBoth
)

// PairFunc decides what happens to the two oldest entries of a tier. It is
// called without the queue lock held.
type PairFunc func(a, b WaitingEntry) Verdict

// Queue holds one FIFO per stake tier.
type Queue struct {
	tiers map[int][]WaitingEntry
	mu    sync.Mutex
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{tiers: make(map[int][]WaitingEntry)}
}

// Join appends e to its tier after removing any earlier entry of the same user.
func (q *Queue) Join(e WaitingEntry) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.removeLocked(func(w WaitingEntry) bool { return w.UserID == e.UserID })
	if e.JoinedAt.IsZero() {
		e.JoinedAt = time.Now()
	}
	q.tiers[e.TierID] = append(q.tiers[e.TierID], e)
}

// Cancel removes userID from whichever tier it waits in.
func (q *Queue) Cancel(userID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.removeLocked(func(w WaitingEntry) bool { return w.UserID == userID })
}

// CancelConn removes every entry made from connID.
func (q *Queue) CancelConn(connID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.removeLocked(func(w WaitingEntry) bool { return w.ConnID == connID })
}

func (q *Queue) removeLocked(match func(WaitingEntry) bool) bool {
	removed := false
	for tier, entries := range q.tiers {
		kept := slices.DeleteFunc(entries, match)
		if len(kept) != len(entries) {
			removed = true
		}
		if len(kept) == 0 {
			delete(q.tiers, tier)
		} else {
			q.tiers[tier] = kept
		}
	}
	return removed
}

// Waiting returns the entries of a tier, oldest first.
func (q *Queue) Waiting(tier int) []WaitingEntry {
	q.mu.Lock()
	defer q.mu.Unlock()
	return slices.Clone(q.tiers[tier])
}

// Len is the number of waiting participants over all tiers.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	for _, entries := range q.tiers {
		n += len(entries)
	}
	return n
}

// Sweep pairs the two oldest entries of tier until fewer than two remain or
// pair rejects a pair. It returns how many pairs were made.
func (q *Queue) Sweep(tier int, pair PairFunc) int {
	made := 0
	for {
		a, b, ok := q.popPair(tier)
		if !ok {
			return made
		}

		switch pair(a, b) {
		case Paired:
			made++
		case Rejected:
			q.requeue(tier, a, b)
			return made
		case DropFirst:
			q.requeue(tier, b)
		case DropSecond:
			q.requeue(tier, a)
		case DropBoth:
		}
	}
}

func (q *Queue) popPair(tier int) (WaitingEntry, WaitingEntry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	entries := q.tiers[tier]
	if len(entries) < 2 {
		return WaitingEntry{}, WaitingEntry{}, false
	}
	a, b := entries[0], entries[1]
	rest := slices.Clone(entries[2:])
	if len(rest) == 0 {
		delete(q.tiers, tier)
	} else {
		q.tiers[tier] = rest
	}
	return a, b, true
}

// requeue puts entries back at the head of tier, skipping users that joined
// again while the pair was being decided.
func (q *Queue) requeue(tier int, entries ...WaitingEntry) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var head []WaitingEntry
	for _, e := range entries {
		if !q.containsLocked(e.UserID) {
			head = append(head, e)
		}
	}
	if len(head) == 0 {
		return
	}
	q.tiers[tier] = append(head, q.tiers[tier]...)
}

func (q *Queue) containsLocked(userID string) bool {
	for _, entries := range q.tiers {
		for _, e := range entries {
			if e.UserID == userID {
				return true
			}
		}
	}
	return false
}
