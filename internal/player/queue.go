package player

import (
	"strconv"
	"time"
)

// Item is one queued piece of media. The Locator is an opaque handle the
// stream resolver turns into a playable URL at play time, never at enqueue
// time.
type Item struct {
	Title       string
	Duration    time.Duration
	Live        bool
	Locator     string
	SourceURL   string
	ChannelID   string // channel the request came from, replied into as the queue unrolls
	RequestedBy string
}

// Queue is the ordered sequence of pending items. It does no locking of its
// own: every access path runs under the owning guild's guard.
type Queue struct {
	items []*Item
}

// NewQueue returns an empty queue.
func NewQueue() *Queue {
	return &Queue{}
}

// Len returns the number of pending items.
func (q *Queue) Len() int {
	return len(q.items)
}

// Append adds an item to the back of the queue.
func (q *Queue) Append(item *Item) {
	q.items = append(q.items, item)
}

// Prepend adds an item to the front of the queue ("play next").
func (q *Queue) Prepend(item *Item) {
	q.items = append([]*Item{item}, q.items...)
}

// PopFront removes and returns the first item.
func (q *Queue) PopFront() (*Item, error) {
	if len(q.items) == 0 {
		return nil, ErrEmptyQueue
	}
	item := q.items[0]
	q.items = q.items[1:]
	return item, nil
}

// RemoveAt removes the item at a 1-based position, validated against the
// queue length at call time.
func (q *Queue) RemoveAt(pos int) (*Item, error) {
	if pos < 1 || pos > len(q.items) {
		return nil, &OutOfRangeError{Pos: pos, Length: len(q.items)}
	}
	item := q.items[pos-1]
	q.items = append(q.items[:pos-1], q.items[pos:]...)
	return item, nil
}

// RemoveRange removes the inclusive 1-based range [a,b]. The bounds may
// arrive in either order; both must be inside the queue or nothing is
// removed.
func (q *Queue) RemoveRange(a, b int) ([]*Item, error) {
	if a > b {
		a, b = b, a
	}
	if a < 1 || b > len(q.items) {
		pos := a
		if b > len(q.items) {
			pos = b
		}
		return nil, &OutOfRangeError{Pos: pos, Length: len(q.items)}
	}
	removed := make([]*Item, b-a+1)
	copy(removed, q.items[a-1:b])
	q.items = append(q.items[:a-1], q.items[b:]...)
	return removed, nil
}

// Clear drops every pending item and returns how many were dropped.
func (q *Queue) Clear() int {
	n := len(q.items)
	q.items = nil
	return n
}

// Snapshot returns a copy of the current ordering for display.
func (q *Queue) Snapshot() []*Item {
	out := make([]*Item, len(q.items))
	copy(out, q.items)
	return out
}

// ParsePosition turns a user-supplied position token into a 1-based index.
// "first" is 1, "last" is the current length, anything else must parse as an
// integer. Range validation stays with the queue operation itself so it runs
// against the length at call time.
func ParsePosition(token string, length int) (int, error) {
	switch token {
	case "first":
		return 1, nil
	case "last":
		return length, nil
	}
	pos, err := strconv.Atoi(token)
	if err != nil {
		return 0, &InvalidPositionError{Token: token}
	}
	return pos, nil
}
