package ring_test

import (
	"testing"

	"github.com/XavierBriggs/fortuna/services/live-sync/internal/ring"
	"github.com/google/go-cmp/cmp"
)

func TestBuffer_PushWithinCapacity(t *testing.T) {
	b := ring.New[int](3)

	b.Push(1)
	b.Push(2)

	if b.Len() != 2 {
		t.Errorf("Len() = %d, want 2", b.Len())
	}
	if diff := cmp.Diff([]int{1, 2}, b.Items()); diff != "" {
		t.Errorf("Items() mismatch (-want +got):\n%s", diff)
	}
}

func TestBuffer_EvictsOldestFirst(t *testing.T) {
	b := ring.New[int](3)

	for i := 1; i <= 5; i++ {
		b.Push(i)
	}

	if b.Len() != 3 {
		t.Errorf("Len() = %d, want capacity 3", b.Len())
	}
	if diff := cmp.Diff([]int{3, 4, 5}, b.Items()); diff != "" {
		t.Errorf("Items() mismatch (-want +got):\n%s", diff)
	}
}

func TestBuffer_Last(t *testing.T) {
	b := ring.New[string](2)

	if _, ok := b.Last(); ok {
		t.Error("Last() on empty buffer should report not ok")
	}

	b.Push("a")
	b.Push("b")
	b.Push("c")

	last, ok := b.Last()
	if !ok || last != "c" {
		t.Errorf("Last() = %q, %v, want \"c\", true", last, ok)
	}
}

func TestBuffer_NeverExceedsCapacity(t *testing.T) {
	b := ring.New[int](500)

	for i := 0; i < 1200; i++ {
		b.Push(i)
	}

	if b.Len() != 500 {
		t.Errorf("Len() = %d, want 500", b.Len())
	}
	items := b.Items()
	if items[0] != 700 || items[len(items)-1] != 1199 {
		t.Errorf("Items() range = [%d, %d], want [700, 1199]", items[0], items[len(items)-1])
	}
}
