package gateway

import (
	"strings"
	"time"
)

// Contact is one roster entry. LastID/LastTime track the most recent item
// seen from this author and only ever advance, so short-hand replies can
// target "the last thing X said".
type Contact struct {
	Handle      string
	DisplayName string
	LastID      uint64
	LastTime    time.Time
}

// Roster is the set of known contacts for one session. It is owned by the
// session and guarded by the session lock; handles are matched
// case-insensitively.
type Roster struct {
	contacts map[string]*Contact
}

// NewRoster creates an empty roster.
func NewRoster() *Roster {
	return &Roster{contacts: make(map[string]*Contact)}
}

func rosterKey(handle string) string {
	return strings.ToLower(handle)
}

// Get returns the contact for handle, or nil.
func (r *Roster) Get(handle string) *Contact {
	return r.contacts[rosterKey(handle)]
}

// Has reports whether handle is a live roster entry.
func (r *Roster) Has(handle string) bool {
	return r.Get(handle) != nil
}

// Add inserts a contact, or returns the existing one.
func (r *Roster) Add(handle, displayName string) *Contact {
	if c := r.Get(handle); c != nil {
		if displayName != "" {
			c.DisplayName = displayName
		}
		return c
	}
	c := &Contact{Handle: handle, DisplayName: displayName}
	r.contacts[rosterKey(handle)] = c
	return c
}

// Remove deletes the contact for handle.
func (r *Roster) Remove(handle string) {
	delete(r.contacts, rosterKey(handle))
}

// Touch advances the high-water mark of an existing contact. Ids never
// move backwards; unknown handles are ignored.
func (r *Roster) Touch(handle string, id uint64, at time.Time) {
	c := r.Get(handle)
	if c == nil {
		return
	}
	if id > c.LastID {
		c.LastID = id
		c.LastTime = at
	}
}

// All returns every contact, in no particular order.
func (r *Roster) All() []*Contact {
	out := make([]*Contact, 0, len(r.contacts))
	for _, c := range r.contacts {
		out = append(out, c)
	}
	return out
}

// Len returns the number of contacts.
func (r *Roster) Len() int {
	return len(r.contacts)
}
