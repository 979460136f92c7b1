package findings

import (
	"errors"
	"sync"
)

// ErrNotFound is returned by log actions for an unknown finding ID.
var ErrNotFound = errors.New("finding not found")

// DefaultCapacity bounds a log when no capacity is configured.
const DefaultCapacity = 200

// Log holds the findings of one view, newest first. It is append-on-analysis
// and mutated only by user actions. Once full, the oldest entries are evicted.
type Log struct {
	mu       sync.RWMutex
	capacity int
	items    []Finding
	evicted  int
}

// NewLog creates a log holding at most capacity findings.
func NewLog(capacity int) *Log {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Log{capacity: capacity}
}

// Add prepends a batch, keeping the batch order, and evicts from the tail.
func (l *Log) Add(batch []Finding) {
	if len(batch) == 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	merged := make([]Finding, 0, len(batch)+len(l.items))
	merged = append(merged, batch...)
	merged = append(merged, l.items...)
	if len(merged) > l.capacity {
		l.evicted += len(merged) - l.capacity
		merged = merged[:l.capacity]
	}
	l.items = merged
}

// List returns a copy, newest first.
func (l *Log) List() []Finding {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Finding, len(l.items))
	copy(out, l.items)
	return out
}

// Len is the number of retained findings.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.items)
}

// Evicted counts findings dropped by the capacity bound.
func (l *Log) Evicted() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.evicted
}

// ActiveCount counts findings that still need attention.
func (l *Log) ActiveCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	n := 0
	for _, f := range l.items {
		if f.Active() {
			n++
		}
	}
	return n
}

// Resolve marks a finding resolved.
func (l *Log) Resolve(id string) (Finding, error) { return l.setStatus(id, StatusResolved) }

// Dispatch marks a finding as handed to staff on the floor.
func (l *Log) Dispatch(id string) (Finding, error) { return l.setStatus(id, StatusDispatched) }

// MarkFalseAlarm closes a finding the operator judged wrong.
func (l *Log) MarkFalseAlarm(id string) (Finding, error) { return l.setStatus(id, StatusFalseAlarm) }

// Dismiss removes a finding from the log.
func (l *Log) Dismiss(id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, f := range l.items {
		if f.ID == id {
			l.items = append(l.items[:i:i], l.items[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

// ReportIDs is the set of reports the retained findings point at.
func (l *Log) ReportIDs() map[string]struct{} {
	l.mu.RLock()
	defer l.mu.RUnlock()
	ids := make(map[string]struct{}, len(l.items))
	for _, f := range l.items {
		ids[f.ReportID] = struct{}{}
	}
	return ids
}

func (l *Log) setStatus(id string, s Status) (Finding, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.items {
		if l.items[i].ID == id {
			l.items[i].Status = s
			return l.items[i], nil
		}
	}
	return Finding{}, ErrNotFound
}
