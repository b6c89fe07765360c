package gateway

import (
	"fmt"
	"strings"

	"github.com/avlott/birdfeed/internal/config"
)

// deliverer is the presentation strategy for merged timeline items.
// Chosen once per session from the configured mode; delivery code never
// branches on the mode again.
type deliverer interface {
	deliverItem(s *Session, it *Item)
}

func chooseDeliverer(cfg *config.Config) deliverer {
	if cfg.AggregateMode() {
		return roomDeliverer{}
	}
	return contactDeliverer{}
}

// roomDeliverer presents the timeline as one room with every followed
// account as a member.
type roomDeliverer struct{}

func (roomDeliverer) deliverItem(s *Session, it *Item) {
	if s.room == nil {
		s.initRoom()
	}
	if !s.selfInRoom {
		s.room.AddMember(s.user)
		s.selfInRoom = true
	}
	text := s.formatItem(it, "")
	if strings.EqualFold(it.Author, s.user) {
		s.room.Log("You: " + text)
		return
	}
	s.addContact(it.Author, it.AuthorName)
	s.room.Message(it.Author, text, it.CreatedAt)
}

// contactDeliverer presents each author as a separate conversation, or
// funnels everything through the service buddy in single-conversation
// mode.
type contactDeliverer struct{}

func (contactDeliverer) deliverItem(s *Session, it *Item) {
	if strings.EqualFold(it.Author, s.user) {
		s.snk.Log("You said: " + s.formatItem(it, ""))
		return
	}
	from := it.Author
	prefix := ""
	if s.cfg.SingleConversation {
		from = s.serviceBuddy()
		prefix = "<" + it.Author + "> "
	} else {
		s.addContact(it.Author, it.AuthorName)
	}
	s.snk.DirectMessage(from, s.formatItem(it, prefix), it.CreatedAt)
}

// formatItem renders an item for display. The short-id tag, when ids are
// shown, goes first; the caller's author prefix sits between the tag and
// the text. A reply whose target is still in the log gets the two-id form
// so the user can see what it answers.
func (s *Session) formatItem(it *Item, prefix string) string {
	if s.shortLog == nil {
		return prefix + it.Text
	}
	slot := s.shortLog.Add(it.ID, it.Author)
	if it.ReplyTo != 0 {
		if ref, ok := s.shortLog.FindID(it.ReplyTo); ok {
			return fmt.Sprintf("[%02d->%02d] %s%s", slot, ref, prefix, it.Text)
		}
	}
	return fmt.Sprintf("[%02d] %s%s", slot, prefix, it.Text)
}
