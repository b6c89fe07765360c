package gateway

// ShortLogLength is the default number of recent items addressable by
// short id in user commands.
const ShortLogLength = 256

// LogEntry pairs a remote item id with its author's handle.
type LogEntry struct {
	ID     uint64
	Author string
}

// ShortIdLog is a fixed-capacity circular log of recently rendered items.
// Slots are assigned by a monotonically increasing sequence number mod the
// capacity; old entries are overwritten, never individually freed.
type ShortIdLog struct {
	entries []LogEntry
	next    int
}

// NewShortIdLog creates a log with the given capacity (ShortLogLength when
// non-positive).
func NewShortIdLog(capacity int) *ShortIdLog {
	if capacity <= 0 {
		capacity = ShortLogLength
	}
	return &ShortIdLog{entries: make([]LogEntry, capacity)}
}

// Capacity returns the number of slots.
func (l *ShortIdLog) Capacity() int {
	return len(l.entries)
}

// Add stores the item in the next slot, evicting the previous occupant,
// and returns the slot index.
func (l *ShortIdLog) Add(id uint64, author string) int {
	slot := l.next
	l.entries[slot] = LogEntry{ID: id, Author: author}
	l.next = (l.next + 1) % len(l.entries)
	return slot
}

// At returns the entry at slot. The second return is false when the slot
// index is out of range or the slot has never been populated.
func (l *ShortIdLog) At(slot int) (LogEntry, bool) {
	if l == nil || slot < 0 || slot >= len(l.entries) {
		return LogEntry{}, false
	}
	e := l.entries[slot]
	if e.ID == 0 {
		return LogEntry{}, false
	}
	return e, true
}

// FindID returns the slot currently holding the given remote id. Used to
// render "[origin->reply]" back-references when an item replies to
// something still in the log.
func (l *ShortIdLog) FindID(id uint64) (int, bool) {
	if l == nil || id == 0 {
		return 0, false
	}
	for i, e := range l.entries {
		if e.ID == id {
			return i, true
		}
	}
	return 0, false
}
