package ratelimit

import (
	"sync"
	"time"
)

// Gate throttles one class of action per subject. A successful acquire sets a
// fixed deadline of now + cooldown; until that deadline passes every further
// acquire for the subject is denied and the deadline stays untouched. There is
// no queueing and no sliding window.
//
// State is process-local and resets on restart. The gate is abuse mitigation,
// not a correctness guarantee.
type Gate struct {
	mu        sync.Mutex
	deadlines map[int64]time.Time
	now       func() time.Time
}

// New constructs an empty gate.
func New() *Gate {
	return &Gate{
		deadlines: make(map[int64]time.Time),
		now:       time.Now,
	}
}

// TryAcquire reports whether subjectID may act now. Denied attempts have no
// side effect.
func (g *Gate) TryAcquire(subjectID int64, cooldown time.Duration) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if deadline, ok := g.deadlines[subjectID]; ok && now.Before(deadline) {
		return false
	}
	g.deadlines[subjectID] = now.Add(cooldown)
	return true
}
