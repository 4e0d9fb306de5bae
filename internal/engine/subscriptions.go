package engine

import "sync"

// subscriptionTable is the process-scoped table of subscribed symbols
// with explicit reference counting: one reference per active or
// monitoring card on the symbol. Counting makes subscribe/unsubscribe
// idempotent and testable in isolation.
type subscriptionTable struct {
	mu   sync.Mutex
	refs map[string]int
}

func newSubscriptionTable() *subscriptionTable {
	return &subscriptionTable{refs: make(map[string]int)}
}

// add increments the reference count for a symbol and reports whether
// this was the first reference, i.e. a feed subscribe is needed.
func (t *subscriptionTable) add(symbol string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.refs[symbol]++
	return t.refs[symbol] == 1
}

// remove decrements the reference count and reports whether the last
// reference was dropped, i.e. a feed unsubscribe is needed. Removing
// an unknown symbol is a no-op.
func (t *subscriptionTable) remove(symbol string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	n, ok := t.refs[symbol]
	if !ok {
		return false
	}
	if n <= 1 {
		delete(t.refs, symbol)
		return true
	}
	t.refs[symbol] = n - 1
	return false
}

// count returns the current reference count for a symbol.
func (t *subscriptionTable) count(symbol string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.refs[symbol]
}

// symbols returns the currently subscribed symbols.
func (t *subscriptionTable) symbols() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]string, 0, len(t.refs))
	for s := range t.refs {
		out = append(out, s)
	}
	return out
}
