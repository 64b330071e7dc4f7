package ratelimit

import (
	"sync"
	"testing"
	"time"
)

func newTestGate(base time.Time) (*Gate, *time.Time) {
	g := New()
	current := base
	g.now = func() time.Time { return current }
	return g, &current
}

func TestFixedWindow(t *testing.T) {
	base := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)
	g, current := newTestGate(base)

	if !g.TryAcquire(1, time.Second) {
		t.Fatalf("first acquire should be allowed")
	}
	*current = base.Add(500 * time.Millisecond)
	if g.TryAcquire(1, time.Second) {
		t.Fatalf("second acquire within 1s should be denied")
	}
	*current = base.Add(1100 * time.Millisecond)
	if !g.TryAcquire(1, time.Second) {
		t.Fatalf("acquire after 1.1s should be allowed")
	}
}

func TestDenialLeavesDeadlineUntouched(t *testing.T) {
	base := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)
	g, current := newTestGate(base)

	g.TryAcquire(1, 5*time.Second)

	// A denied attempt must not extend the window.
	*current = base.Add(4 * time.Second)
	if g.TryAcquire(1, 5*time.Second) {
		t.Fatalf("acquire inside window should be denied")
	}
	*current = base.Add(5 * time.Second)
	if !g.TryAcquire(1, 5*time.Second) {
		t.Fatalf("original deadline should still apply after a denial")
	}
}

func TestSubjectsAreIndependent(t *testing.T) {
	base := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)
	g, _ := newTestGate(base)

	if !g.TryAcquire(1, time.Second) {
		t.Fatalf("subject 1 first acquire should pass")
	}
	if !g.TryAcquire(2, time.Second) {
		t.Fatalf("subject 2 must not be affected by subject 1's deadline")
	}
	if g.TryAcquire(1, time.Second) || g.TryAcquire(2, time.Second) {
		t.Fatalf("both subjects should now be inside their windows")
	}
}

func TestGatesAreIndependent(t *testing.T) {
	base := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)
	submit, _ := newTestGate(base)
	raters, _ := newTestGate(base)

	if !submit.TryAcquire(1, time.Second) {
		t.Fatalf("submit gate first acquire should pass")
	}
	// The same subject on a different action class has its own deadline.
	if !raters.TryAcquire(1, 5*time.Second) {
		t.Fatalf("raters gate must not share deadlines with submit gate")
	}
}

func TestConcurrentAcquire(t *testing.T) {
	g := New()

	const workers = 32
	var wg sync.WaitGroup
	allowed := make(chan bool, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			allowed <- g.TryAcquire(42, time.Minute)
		}()
	}
	wg.Wait()
	close(allowed)

	granted := 0
	for ok := range allowed {
		if ok {
			granted++
		}
	}
	if granted != 1 {
		t.Fatalf("exactly one concurrent acquire should win, got %d", granted)
	}
}
