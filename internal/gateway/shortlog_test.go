package gateway

import "testing"

func TestShortIdLogSequentialSlots(t *testing.T) {
	l := NewShortIdLog(4)
	for i := 0; i < 4; i++ {
		if slot := l.Add(uint64(100+i), "alice"); slot != i {
			t.Fatalf("Add #%d returned slot %d", i, slot)
		}
	}
}

func TestShortIdLogWrapsAround(t *testing.T) {
	l := NewShortIdLog(4)
	for i := 0; i < 4; i++ {
		l.Add(uint64(100+i), "alice")
	}

	if slot := l.Add(200, "bob"); slot != 0 {
		t.Fatalf("wrap-around slot = %d, want 0", slot)
	}
	e, ok := l.At(0)
	if !ok || e.ID != 200 || e.Author != "bob" {
		t.Fatalf("slot 0 = %+v after wrap", e)
	}
	// The evicted entry is gone; the rest survive.
	if _, ok := l.FindID(100); ok {
		t.Fatal("evicted id still resolvable")
	}
	if slot, ok := l.FindID(103); !ok || slot != 3 {
		t.Fatalf("FindID(103) = %d,%v", slot, ok)
	}
}

func TestShortIdLogAtBounds(t *testing.T) {
	l := NewShortIdLog(4)
	l.Add(5, "alice")

	if _, ok := l.At(-1); ok {
		t.Fatal("negative slot resolved")
	}
	if _, ok := l.At(4); ok {
		t.Fatal("out-of-range slot resolved")
	}
	if _, ok := l.At(1); ok {
		t.Fatal("empty slot resolved")
	}
}

func TestShortIdLogNilSafe(t *testing.T) {
	var l *ShortIdLog
	if _, ok := l.At(0); ok {
		t.Fatal("nil log resolved a slot")
	}
	if _, ok := l.FindID(1); ok {
		t.Fatal("nil log resolved an id")
	}
}

func TestShortIdLogDefaultCapacity(t *testing.T) {
	if got := NewShortIdLog(0).Capacity(); got != ShortLogLength {
		t.Fatalf("default capacity = %d, want %d", got, ShortLogLength)
	}
}
