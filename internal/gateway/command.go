package gateway

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/avlott/birdfeed/internal/transport"
)

// HandleUserMessage processes a line the user sent to a contact. Messages
// to the service buddy are command input (or the handshake PIN); messages
// to any other contact are direct messages to that account.
func (s *Session) HandleUserMessage(to, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.EqualFold(to, s.serviceBuddy()) {
		if s.handshake != nil && s.handshake.state == AwaitingVerifier {
			s.submitVerifierLocked(text)
			return
		}
		s.handleCommandLocked(text)
		return
	}
	s.sendDirectMessage(to, text)
}

// HandleRoomMessage processes a line the user typed into the timeline
// room.
func (s *Session) HandleRoomMessage(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handleCommandLocked(text)
}

// splitCommand splits a line into its verb and the remainder.
func splitCommand(text string) (verb, rest string) {
	text = strings.TrimSpace(text)
	if i := strings.IndexAny(text, " \t"); i >= 0 {
		return text[:i], strings.TrimSpace(text[i+1:])
	}
	return text, ""
}

// handleCommandLocked interprets one input line. With commands disabled
// every line, whatever it looks like, is posted literally.
func (s *Session) handleCommandLocked(text string) {
	if !s.cfg.Commands {
		s.postMessage(text, 0)
		return
	}

	verb, rest := splitCommand(text)
	switch strings.ToLower(verb) {
	case "undo":
		s.cmdUndo(rest)
	case "follow":
		s.cmdFollow(rest)
	case "unfollow":
		s.cmdUnfollow(rest)
	case "rt", "retweet":
		s.cmdRetweet(rest)
	case "reply":
		s.cmdReply(rest)
	case "post":
		s.postMessage(rest, 0)
	default:
		s.cmdImplicit(text)
	}
}

// cmdUndo deletes a status: the argument when given, otherwise the last
// action this session performed.
func (s *Session) cmdUndo(arg string) {
	var id uint64
	if arg == "" {
		id = s.lastSelfPost
	} else {
		id = s.resolveItemRef(arg)
	}
	if id == 0 {
		s.userMsg("Could not undo last action")
		return
	}
	s.lastSelfPost = 0
	s.post(fmt.Sprintf("%s%d.xml", endpointStatusDestroy, id), nil)
}

func (s *Session) cmdFollow(arg string) {
	if arg == "" {
		s.userMsg("Usage: follow <user>")
		return
	}
	handle := strings.TrimPrefix(arg, "@")
	s.addContact(handle, "")
	s.post(endpointFriendshipCreate, transport.Params{{Key: "screen_name", Value: handle}})
}

func (s *Session) cmdUnfollow(arg string) {
	if arg == "" {
		s.userMsg("Usage: unfollow <user>")
		return
	}
	handle := strings.TrimPrefix(arg, "@")
	s.removeContact(handle)
	s.post(endpointFriendshipDelete, transport.Params{{Key: "screen_name", Value: handle}})
}

func (s *Session) cmdRetweet(arg string) {
	if arg == "" {
		s.userMsg("Usage: rt <id or user>")
		return
	}
	id := s.resolveItemRef(arg)
	if id == 0 {
		s.userMsg(fmt.Sprintf("User `%s' does not exist or didn't post any statuses recently", arg))
		return
	}
	s.lastSelfPost = 0
	s.post(fmt.Sprintf("%s%d.xml", endpointStatusRetweet, id), nil)
}

func (s *Session) cmdReply(arg string) {
	ref, rest := splitCommand(arg)
	if ref == "" || rest == "" {
		s.userMsg("Usage: reply <id or user> <message>")
		return
	}
	id := s.resolveItemRef(ref)
	author := ""
	if id != 0 {
		author = s.authorOfItem(id)
	}
	if author == "" {
		s.userMsg(fmt.Sprintf("User `%s' does not exist or didn't post any statuses recently", ref))
		return
	}
	s.postMessage("@"+author+" "+rest, id)
}

// cmdImplicit handles a line with no recognized verb. A leading
// "<contact>:" or "<contact>," addresses that contact's most recent item
// as a reply, provided the item is recent enough to still be a plausible
// conversation.
func (s *Session) cmdImplicit(text string) {
	target, rest, ok := splitAddressed(text)
	if ok {
		if c := s.roster.Get(target); c != nil && c.LastID != 0 {
			window := time.Duration(s.cfg.AutoReplyTimeout) * time.Second
			if s.cfg.AutoReplyTimeout <= 0 || nowFunc().Sub(c.LastTime) <= window {
				s.postMessage("@"+c.Handle+" "+rest, c.LastID)
				return
			}
		}
	}
	s.postMessage(text, 0)
}

// splitAddressed recognizes the "<name>: text" and "<name>, text"
// addressing forms.
func splitAddressed(text string) (target, rest string, ok bool) {
	i := strings.IndexAny(text, " \t")
	if i <= 1 {
		return "", "", false
	}
	head := text[:i]
	sep := head[len(head)-1]
	if sep != ':' && sep != ',' {
		return "", "", false
	}
	return head[:len(head)-1], strings.TrimSpace(text[i+1:]), true
}

// resolveItemRef maps a user-supplied reference to a remote item id.
// Accepted forms, in order: "#N" short-id slot, a contact handle (their
// most recent item), a bare short-id number, a full numeric id.
func (s *Session) resolveItemRef(ref string) uint64 {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return 0
	}

	if strings.HasPrefix(ref, "#") {
		if slot, err := strconv.Atoi(ref[1:]); err == nil {
			if e, ok := s.shortLog.At(slot); ok {
				return e.ID
			}
		}
		return 0
	}

	if c := s.roster.Get(strings.TrimPrefix(ref, "@")); c != nil {
		return c.LastID
	}

	n, err := strconv.ParseUint(ref, 10, 64)
	if err != nil {
		return 0
	}
	if s.shortLog != nil && n < uint64(s.shortLog.Capacity()) {
		if e, ok := s.shortLog.At(int(n)); ok {
			return e.ID
		}
		return 0
	}
	return n
}

// authorOfItem looks up the author recorded for an item id, consulting
// the short-id log first and the roster's high-water marks second. Only
// handles still on the roster count; replying to someone since unfollowed
// is refused.
func (s *Session) authorOfItem(id uint64) string {
	if s.shortLog != nil {
		if slot, ok := s.shortLog.FindID(id); ok {
			if e, ok := s.shortLog.At(slot); ok && s.roster.Has(e.Author) {
				return e.Author
			}
		}
	}
	for _, c := range s.roster.All() {
		if c.LastID == id {
			return c.Handle
		}
	}
	return ""
}

// checkLength enforces the configured message length, counting runes the
// way the remote service does.
func (s *Session) checkLength(text string) bool {
	if s.cfg.MessageLength <= 0 {
		return true
	}
	n := utf8.RuneCountInString(text)
	if n > s.cfg.MessageLength {
		s.userMsg(fmt.Sprintf("Maximum message length exceeded: %d > %d", n, s.cfg.MessageLength))
		return false
	}
	return true
}

// postMessage publishes a status. The last self-post id is cleared before
// the call goes out so a crossed undo can never delete the wrong item; the
// completion handler repopulates it from the confirmed id.
func (s *Session) postMessage(text string, inReplyTo uint64) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	if !s.checkLength(text) {
		return
	}
	params := transport.Params{{Key: "status", Value: text}}
	if inReplyTo != 0 {
		params = append(params, transport.Param{Key: "in_reply_to_status_id", Value: strconv.FormatUint(inReplyTo, 10)})
	}
	s.lastSelfPost = 0
	s.post(endpointStatusUpdate, params)
}

// sendDirectMessage sends a private message to another account.
func (s *Session) sendDirectMessage(to, text string) {
	if !s.checkLength(text) {
		return
	}
	params := transport.Params{
		{Key: "screen_name", Value: strings.TrimPrefix(to, "@")},
		{Key: "text", Value: text},
	}
	if err := s.tr.Do(s.ctx, http.MethodPost, endpointDirectMessageNew, params, s.onDirectMessage); err != nil {
		s.snk.Error("Could not send message: connection failed")
	}
}

func (s *Session) onDirectMessage(status int, body []byte) {
	if !s.registry.Contains(s) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if status != 200 {
		s.snk.Error("Could not send message: " + remoteError(status, body))
		return
	}
	s.failures = 0
}
