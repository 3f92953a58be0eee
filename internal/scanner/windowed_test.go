package scanner

import (
	"testing"
	"time"
)

func TestWindowedEvictsEveryStaleFrontEntry(t *testing.T) {
	w := NewWindowed[int](10 * time.Minute)
	base := time.Unix(0, 0)

	w.Push(base, 1)
	w.Push(base.Add(1*time.Minute), 2)
	w.Push(base.Add(5*time.Minute), 3)
	w.Push(base.Add(12*time.Minute), 4)

	// cutoff = base+12m - 10m = base+2m; both base (t) and base+1m are
	// older than cutoff and must both be evicted, leaving exactly two
	// entries (base+5m, base+12m) — see DESIGN.md's Open Questions for
	// why this is two, not three.
	items := w.Items()
	if len(items) != 2 {
		t.Fatalf("expected 2 remaining entries, got %d: %+v", len(items), items)
	}
	if items[0].Value != 3 || items[1].Value != 4 {
		t.Fatalf("unexpected surviving values: %+v", items)
	}
}

func TestWindowedInvariantHoldsAfterEveryPush(t *testing.T) {
	w := NewWindowed[int](time.Minute)
	base := time.Unix(0, 0)

	for i := 0; i < 20; i++ {
		at := base.Add(time.Duration(i) * 10 * time.Second)
		w.Push(at, i)
		for _, item := range w.Items() {
			if at.Sub(item.At) > w.window {
				t.Fatalf("invariant violated: entry at %v survives past window at push time %v", item.At, at)
			}
		}
	}
}

func TestWindowedEmptyAfterNoPush(t *testing.T) {
	w := NewWindowed[string](time.Minute)
	if w.Len() != 0 {
		t.Fatalf("expected empty deque, got len=%d", w.Len())
	}
}
