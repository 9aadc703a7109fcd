package poller

// Tracker remembers the request ids a poller has delivered to its target.
// It is owned by a single poll loop and is not safe for concurrent use.
// The set is never pruned: the Runtime API hands out each request id once
// per function lifetime.
type Tracker struct {
	ids map[string]struct{}
}

// NewTracker returns an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{ids: make(map[string]struct{})}
}

// Seen reports whether requestID was already delivered.
func (t *Tracker) Seen(requestID string) bool {
	_, ok := t.ids[requestID]
	return ok
}

// MarkDispatched records requestID as delivered.
func (t *Tracker) MarkDispatched(requestID string) {
	t.ids[requestID] = struct{}{}
}

// Len returns the number of delivered request ids.
func (t *Tracker) Len() int {
	return len(t.ids)
}
