package gateway

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/avlott/birdfeed/internal/transport"
)

const (
	// firstCursor starts friend-id pagination; a zero cursor ends it.
	firstCursor = int64(-1)

	// The reverse-lookup endpoint accepts at most this many ids per call.
	lookupBatchSize = 100
)

// fetchFriendIDs requests one page of followed-account ids. Called with
// s.mu held.
func (s *Session) fetchFriendIDs(cursor int64) {
	params := transport.Params{{Key: "cursor", Value: strconv.FormatInt(cursor, 10)}}
	err := s.tr.Do(s.ctx, http.MethodGet, endpointFriendIDs, params, s.onFriendIDs)
	if err != nil {
		s.snk.Error("Could not retrieve friends: connection failed")
		s.logoutLocked()
	}
}

// onFriendIDs handles one id page. Any failure here is fatal; without a
// complete roster the contact list would be silently wrong.
func (s *Session) onFriendIDs(status int, body []byte) {
	if !s.registry.Contains(s) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if status == 401 {
		s.snk.Error("Authentication failure")
		s.logoutLocked()
		return
	}
	if status != 200 {
		s.snk.Error("Could not retrieve friends: " + remoteError(status, body))
		s.logoutLocked()
		return
	}

	if s.cfg.AggregateMode() && s.room == nil {
		s.initRoom()
	}

	ids, nextCursor := parseIDPage(body)
	s.friendQueue = append(s.friendQueue, ids...)

	if nextCursor != 0 {
		s.fetchFriendIDs(nextCursor)
		return
	}
	s.lookupFriends()
}

// lookupFriends resolves the next batch of queued ids to handles. When
// the queue drains, the roster is complete and startup continues.
func (s *Session) lookupFriends() {
	if len(s.friendQueue) == 0 {
		s.haveFriends = true
		s.loginFinish()
		return
	}

	n := len(s.friendQueue)
	if n > lookupBatchSize {
		n = lookupBatchSize
	}
	batch := s.friendQueue[:n]
	s.friendQueue = s.friendQueue[n:]

	params := transport.Params{{Key: "user_id", Value: strings.Join(batch, ",")}}
	err := s.tr.Do(s.ctx, http.MethodPost, endpointUsersLookup, params, s.onUsersLookup)
	if err != nil {
		s.snk.Error("Could not retrieve friends: connection failed")
		s.logoutLocked()
	}
}

func (s *Session) onUsersLookup(status int, body []byte) {
	if !s.registry.Contains(s) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if status == 401 {
		s.snk.Error("Authentication failure")
		s.logoutLocked()
		return
	}
	if status != 200 {
		s.snk.Error("Could not retrieve friends: " + remoteError(status, body))
		s.logoutLocked()
		return
	}

	for _, u := range parseUserList(body) {
		s.addContact(u.ScreenName, u.Name)
	}
	s.lookupFriends()
}
