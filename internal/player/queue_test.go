package player

import (
	"errors"
	"testing"
)

func items(titles ...string) []*Item {
	out := make([]*Item, len(titles))
	for i, t := range titles {
		out[i] = &Item{Title: t}
	}
	return out
}

func fill(q *Queue, titles ...string) {
	for _, item := range items(titles...) {
		q.Append(item)
	}
}

func titlesOf(items []*Item) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = item.Title
	}
	return out
}

func assertOrder(t *testing.T, q *Queue, want ...string) {
	t.Helper()
	got := titlesOf(q.Snapshot())
	if len(got) != len(want) {
		t.Fatalf("queue order: got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("queue order: got %v, want %v", got, want)
		}
	}
}

func TestQueueAppendAndPop(t *testing.T) {
	t.Parallel()

	q := NewQueue()
	fill(q, "a", "b", "c")

	first, err := q.PopFront()
	if err != nil {
		t.Fatal(err)
	}
	if first.Title != "a" {
		t.Errorf("popped %q, want a", first.Title)
	}
	assertOrder(t, q, "b", "c")
}

func TestQueuePopEmpty(t *testing.T) {
	t.Parallel()

	q := NewQueue()
	if _, err := q.PopFront(); !errors.Is(err, ErrEmptyQueue) {
		t.Fatalf("expected ErrEmptyQueue, got %v", err)
	}
}

func TestQueuePrepend(t *testing.T) {
	t.Parallel()

	q := NewQueue()
	fill(q, "a", "b")
	q.Prepend(&Item{Title: "urgent"})
	assertOrder(t, q, "urgent", "a", "b")
}

func TestQueueRemoveAt(t *testing.T) {
	t.Parallel()

	q := NewQueue()
	fill(q, "a", "b", "c")

	item, err := q.RemoveAt(2)
	if err != nil {
		t.Fatal(err)
	}
	if item.Title != "b" {
		t.Errorf("removed %q, want b", item.Title)
	}
	assertOrder(t, q, "a", "c")
}

func TestQueueRemoveAtOutOfRange(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		pos  int
	}{
		{"zero", 0},
		{"negative", -1},
		{"past end", 4},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			q := NewQueue()
			fill(q, "a", "b", "c")

			var oor *OutOfRangeError
			if _, err := q.RemoveAt(tt.pos); !errors.As(err, &oor) {
				t.Fatalf("expected OutOfRangeError, got %v", err)
			}
			assertOrder(t, q, "a", "b", "c")
		})
	}
}

func TestQueueRemoveRange(t *testing.T) {
	t.Parallel()

	q := NewQueue()
	fill(q, "a", "b", "c", "d", "e")

	removed, err := q.RemoveRange(2, 4)
	if err != nil {
		t.Fatal(err)
	}
	if got := titlesOf(removed); len(got) != 3 || got[0] != "b" || got[2] != "d" {
		t.Errorf("removed %v, want [b c d]", got)
	}
	assertOrder(t, q, "a", "e")
}

func TestQueueRemoveRangeReversedBounds(t *testing.T) {
	t.Parallel()

	q := NewQueue()
	fill(q, "a", "b", "c", "d")

	removed, err := q.RemoveRange(3, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(removed) != 3 {
		t.Errorf("removed %d items, want 3", len(removed))
	}
	assertOrder(t, q, "d")
}

func TestQueueRemoveRangePartlyOutOfRangeLeavesQueueUntouched(t *testing.T) {
	t.Parallel()

	q := NewQueue()
	fill(q, "a", "b", "c")

	var oor *OutOfRangeError
	if _, err := q.RemoveRange(2, 9); !errors.As(err, &oor) {
		t.Fatalf("expected OutOfRangeError, got %v", err)
	}
	assertOrder(t, q, "a", "b", "c")
}

func TestQueueClear(t *testing.T) {
	t.Parallel()

	q := NewQueue()
	fill(q, "a", "b")
	if n := q.Clear(); n != 2 {
		t.Errorf("cleared %d, want 2", n)
	}
	if q.Len() != 0 {
		t.Errorf("length after clear: %d", q.Len())
	}
}

func TestQueueSnapshotIsACopy(t *testing.T) {
	t.Parallel()

	q := NewQueue()
	fill(q, "a", "b")

	snap := q.Snapshot()
	snap[0] = &Item{Title: "mutated"}
	assertOrder(t, q, "a", "b")
}

func TestParsePosition(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		token   string
		length  int
		want    int
		invalid bool
	}{
		{"first keyword", "first", 5, 1, false},
		{"last keyword", "last", 5, 5, false},
		{"numeric", "3", 5, 3, false},
		{"numeric out of range parses fine", "9", 5, 9, false},
		{"garbage", "banana", 5, 0, true},
		{"empty", "", 5, 0, true},
		{"float", "2.5", 5, 0, true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ParsePosition(tt.token, tt.length)
			if tt.invalid {
				var bad *InvalidPositionError
				if !errors.As(err, &bad) {
					t.Fatalf("expected InvalidPositionError, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}
}
