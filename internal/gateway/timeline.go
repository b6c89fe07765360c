package gateway

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/avlott/birdfeed/internal/transport"
)

// FetchCycle runs one poll of the home timeline and, when enabled, the
// mentions feed. While a cycle is outstanding further cycles are no-ops.
func (s *Session) FetchCycle() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetchCycleLocked()
}

func (s *Session) fetchCycleLocked() {
	if s.fetching {
		return
	}
	s.fetching = true
	s.gotHome = false
	s.gotMentions = false
	s.homeItems = nil
	s.mentionItems = nil

	s.fetchFeed(endpointHomeTimeline, s.onHomeTimeline)
	if s.cfg.FetchMentions {
		s.fetchFeed(endpointMentions, s.onMentions)
	}
}

// fetchFeed issues one feed request. Requests past the watermark only,
// except on the very first cycle where the server default applies.
func (s *Session) fetchFeed(endpoint string, cb transport.Callback) {
	params := transport.Params{{Key: "include_entities", Value: "true"}}
	if s.watermark > 0 {
		params = append(params, transport.Param{Key: "since_id", Value: strconv.FormatUint(s.watermark, 10)})
	}
	if err := s.tr.Do(s.ctx, http.MethodGet, endpoint, params, cb); err != nil {
		s.failures++
		if s.failures >= failureThreshold {
			s.snk.Error(fmt.Sprintf("Could not retrieve %s: connection failed", endpoint))
		}
		s.markFeedDone(endpoint)
		s.flushLocked()
	}
}

func (s *Session) markFeedDone(endpoint string) {
	switch endpoint {
	case endpointHomeTimeline:
		s.gotHome = true
	case endpointMentions:
		s.gotMentions = true
	}
}

func (s *Session) onHomeTimeline(status int, body []byte) {
	s.onFeed(endpointHomeTimeline, status, body)
}

func (s *Session) onMentions(status int, body []byte) {
	s.onFeed(endpointMentions, status, body)
}

// onFeed handles one feed completion. A failed feed still counts toward
// the join barrier so one broken endpoint cannot stall the other's
// delivery forever.
func (s *Session) onFeed(endpoint string, status int, body []byte) {
	if !s.registry.Contains(s) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case status == 200:
		s.failures = 0
		s.markConnected()
		items := parseFeed(body)
		if endpoint == endpointMentions {
			s.mentionItems = items
		} else {
			s.homeItems = items
		}
	case status == 401:
		s.snk.Error("Authentication failure")
		s.logoutLocked()
		return
	default:
		s.failures++
		if s.failures >= failureThreshold {
			s.snk.Error(fmt.Sprintf("Could not retrieve %s: %s", endpoint, remoteError(status, body)))
		}
	}

	s.markFeedDone(endpoint)
	s.flushLocked()
}

// flushLocked is the join barrier: it delivers nothing until every feed of
// the cycle has reported in, then merges and delivers once.
func (s *Session) flushLocked() {
	if !s.gotHome {
		return
	}
	if s.cfg.FetchMentions && !s.gotMentions {
		return
	}

	merged := mergeTimelines(s.homeItems, s.mentionItems, s.cfg.ShowOldMentions)

	var lastID uint64
	for _, it := range merged {
		if it.Author == "" || it.Text == "" {
			continue
		}
		// The same item can appear in both feeds; the sorted merge puts
		// duplicates next to each other.
		if it.ID != 0 && it.ID == lastID {
			continue
		}
		lastID = it.ID
		s.deliver.deliverItem(s, it)
		s.roster.Touch(it.Author, it.ID, it.CreatedAt)
		if it.ID > s.watermark {
			s.watermark = it.ID
		}
	}

	s.fetching = false
	s.gotHome = false
	s.gotMentions = false
	s.homeItems = nil
	s.mentionItems = nil
}

// mergeTimelines combines the home and mentions results into one ascending
// stream. Unless old mentions are wanted, mentions older than the oldest
// home item are dropped so backlog mentions do not replay on every login.
func mergeTimelines(home, mentions []*Item, showOldMentions bool) []*Item {
	var merged []*Item
	for _, it := range home {
		merged = insertSorted(merged, it)
	}

	if !showOldMentions && len(merged) > 0 {
		// Strictly older by creation time only; a mention sharing the
		// oldest home item's timestamp still gets through.
		oldest := merged[0]
		kept := mentions[:0:0]
		for _, it := range mentions {
			if !it.CreatedAt.Before(oldest.CreatedAt) {
				kept = append(kept, it)
			}
		}
		mentions = kept
	}
	for _, it := range mentions {
		merged = insertSorted(merged, it)
	}
	return merged
}

// insertSorted inserts it into the ascending list, after any equal
// elements, so delivery order is stable for equal keys.
func insertSorted(list []*Item, it *Item) []*Item {
	i := len(list)
	for i > 0 && itemLess(it, list[i-1]) {
		i--
	}
	list = append(list, nil)
	copy(list[i+1:], list[i:])
	list[i] = it
	return list
}

// itemLess orders items by creation time, then by id for identical
// timestamps, so a merge of the same inputs is always the same stream.
func itemLess(a, b *Item) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}
