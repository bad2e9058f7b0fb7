// Package queue implements the in-memory priority queue engine that decides
// the order in which waiting patients are seen. Queues are partitioned per
// department; within a department entries are served by priority class
// (EMERGENCY ahead of URGENT ahead of NORMAL), then arrival time, then token,
// which makes the order a strict total order.
package queue

import (
	"container/heap"
	"sort"
	"sync"

	"github.com/triagewell/hospital-queue/internal/domain/entities"
	apperrors "github.com/triagewell/hospital-queue/pkg/errors"
)

// Engine holds one priority heap per department plus a token index across
// departments. All operations are short critical sections behind one mutex,
// so concurrent callers observe a linearizable history per department.
type Engine struct {
	mu          sync.Mutex
	departments map[string]*entryHeap
	tokens      map[string]string // token -> department code
}

// NewEngine creates an empty queue engine
func NewEngine() *Engine {
	return &Engine{
		departments: make(map[string]*entryHeap),
		tokens:      make(map[string]string),
	}
}

// Enqueue inserts a new waiting entry. The token must not already be queued
// in any department.
func (e *Engine) Enqueue(entry *entities.QueueEntry) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.tokens[entry.Token]; exists {
		return apperrors.NewDuplicateTokenError(entry.Token)
	}

	h := e.departments[entry.Department]
	if h == nil {
		h = &entryHeap{index: make(map[string]int)}
		e.departments[entry.Department] = h
	}

	heap.Push(h, entry)
	e.tokens[entry.Token] = entry.Department
	return nil
}

// Peek returns the highest-priority waiting entry for a department without
// removing it. The second return is false when the queue is empty; an empty
// queue is not an error for a read.
func (e *Engine) Peek(department string) (*entities.QueueEntry, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	h := e.departments[department]
	if h == nil || h.Len() == 0 {
		return nil, false
	}
	return h.entries[0], true
}

// DequeueNext removes and returns the highest-priority entry for a department
func (e *Engine) DequeueNext(department string) (*entities.QueueEntry, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	h := e.departments[department]
	if h == nil || h.Len() == 0 {
		return nil, apperrors.NewEmptyQueueError(department)
	}

	entry := heap.Pop(h).(*entities.QueueEntry)
	delete(e.tokens, entry.Token)
	return entry, nil
}

// Promote re-ranks a waiting entry to a new priority class. The original
// arrival time is preserved so fairness within the new class is first-in
// first-out. Returns the entry's position before and after the re-rank.
func (e *Engine) Promote(token string, newClass entities.PriorityClass) (before, after int, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	dept, ok := e.tokens[token]
	if !ok {
		return 0, 0, apperrors.NewNotWaitingError(token)
	}

	h := e.departments[dept]
	i := h.index[token]
	before = h.positionLocked(token)
	h.entries[i].Priority = newClass
	heap.Fix(h, i)
	after = h.positionLocked(token)
	return before, after, nil
}

// Remove deletes a waiting entry, returning it together with the queue
// position it held. Used for cancellations.
func (e *Engine) Remove(token string) (*entities.QueueEntry, int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	dept, ok := e.tokens[token]
	if !ok {
		return nil, 0, apperrors.NewNotWaitingError(token)
	}

	h := e.departments[dept]
	pos := h.positionLocked(token)
	entry := heap.Remove(h, h.index[token]).(*entities.QueueEntry)
	delete(e.tokens, token)
	return entry, pos, nil
}

// Depth returns the number of waiting entries for a department
func (e *Engine) Depth(department string) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	h := e.departments[department]
	if h == nil {
		return 0
	}
	return h.Len()
}

// Position returns the 1-based serving position of a waiting token, or 0 if
// the token is not queued.
func (e *Engine) Position(token string) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	dept, ok := e.tokens[token]
	if !ok {
		return 0
	}
	return e.departments[dept].positionLocked(token)
}

// Snapshot returns the department's waiting entries in serving order. The
// returned slice is a copy; repeated calls without intervening mutation
// return identical results.
func (e *Engine) Snapshot(department string) []*entities.QueueEntry {
	e.mu.Lock()
	defer e.mu.Unlock()

	h := e.departments[department]
	if h == nil || h.Len() == 0 {
		return nil
	}

	out := make([]*entities.QueueEntry, len(h.entries))
	for i, entry := range h.entries {
		clone := *entry
		out[i] = &clone
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// entryHeap is a binary heap of queue entries for one department, with a
// token -> slot index so promote and remove stay O(log n).
type entryHeap struct {
	entries []*entities.QueueEntry
	index   map[string]int
}

func (h *entryHeap) Len() int { return len(h.entries) }

func (h *entryHeap) Less(i, j int) bool { return h.entries[i].Before(h.entries[j]) }

func (h *entryHeap) Swap(i, j int) {
	h.entries[i], h.entries[j] = h.entries[j], h.entries[i]
	h.index[h.entries[i].Token] = i
	h.index[h.entries[j].Token] = j
}

func (h *entryHeap) Push(x interface{}) {
	entry := x.(*entities.QueueEntry)
	h.index[entry.Token] = len(h.entries)
	h.entries = append(h.entries, entry)
}

func (h *entryHeap) Pop() interface{} {
	n := len(h.entries)
	entry := h.entries[n-1]
	h.entries[n-1] = nil
	h.entries = h.entries[:n-1]
	delete(h.index, entry.Token)
	return entry
}

// positionLocked computes the 1-based serving position of a token by counting
// entries that order ahead of it. Heap layout is only partially ordered, so a
// linear scan is needed; queues are small enough that this is fine for the
// audit trail's position fields.
func (h *entryHeap) positionLocked(token string) int {
	i, ok := h.index[token]
	if !ok {
		return 0
	}
	target := h.entries[i]
	pos := 1
	for _, entry := range h.entries {
		if entry.Token != token && entry.Before(target) {
			pos++
		}
	}
	return pos
}
