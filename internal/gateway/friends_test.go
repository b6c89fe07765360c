package gateway

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/avlott/birdfeed/internal/config"
)

func idPageXML(nextCursor int64, ids ...int) string {
	var b strings.Builder
	b.WriteString("<id_list><ids>")
	for _, id := range ids {
		fmt.Fprintf(&b, "<id>%d</id>", id)
	}
	fmt.Fprintf(&b, "</ids><next_cursor>%d</next_cursor></id_list>", nextCursor)
	return b.String()
}

func userListXML(handles ...string) string {
	var b strings.Builder
	b.WriteString("<users>")
	for _, h := range handles {
		fmt.Fprintf(&b, "<user><screen_name>%s</screen_name><name>%s</name></user>", h, strings.ToUpper(h[:1])+h[1:])
	}
	b.WriteString("</users>")
	return b.String()
}

func TestFriendResolutionPaginatesAndBatches(t *testing.T) {
	env := newTestEnv(t, nil)
	if err := env.s.Login(context.Background()); err != nil {
		t.Fatalf("Login: %v", err)
	}

	// Two cursor pages totalling 150 ids.
	first := env.tr.next(t, endpointFriendIDs)
	if got := first.params.Get("cursor"); got != "-1" {
		t.Fatalf("first cursor = %q, want -1", got)
	}
	page1 := make([]int, 80)
	for i := range page1 {
		page1[i] = 1000 + i
	}
	first.cb(200, []byte(idPageXML(7, page1...)))

	second := env.tr.next(t, endpointFriendIDs)
	if got := second.params.Get("cursor"); got != "7" {
		t.Fatalf("second cursor = %q, want 7", got)
	}
	page2 := make([]int, 70)
	for i := range page2 {
		page2[i] = 2000 + i
	}
	second.cb(200, []byte(idPageXML(0, page2...)))

	// 150 ids means two lookup calls: 100 then 50.
	lookup1 := env.tr.next(t, endpointUsersLookup)
	if n := len(strings.Split(lookup1.params.Get("user_id"), ",")); n != 100 {
		t.Fatalf("first lookup carries %d ids, want 100", n)
	}
	lookup1.cb(200, []byte(userListXML("alice", "bob")))

	lookup2 := env.tr.next(t, endpointUsersLookup)
	if n := len(strings.Split(lookup2.params.Get("user_id"), ",")); n != 50 {
		t.Fatalf("second lookup carries %d ids, want 50", n)
	}
	lookup2.cb(200, []byte(userListXML("carol")))

	for _, h := range []string{"alice", "bob", "carol"} {
		if !env.snk.HasContact(h) {
			t.Fatalf("%s missing from contacts", h)
		}
	}
	// Roster complete: the fetch loop starts.
	if n := env.tr.pendingCount(endpointHomeTimeline); n != 1 {
		t.Fatal("fetch cycle did not start after friend resolution")
	}
}

func TestFriendLookupRecordsDisplayNames(t *testing.T) {
	env := newTestEnv(t, nil)
	if err := env.s.Login(context.Background()); err != nil {
		t.Fatalf("Login: %v", err)
	}

	env.tr.complete(t, endpointFriendIDs, 200, idPageXML(0, 1, 2))
	env.tr.complete(t, endpointUsersLookup, 200, userListXML("alice"))

	if got := env.snk.ContactName("alice"); got != "Alice" {
		t.Fatalf("display name = %q, want Alice", got)
	}
}

func TestFriendResolutionAuthFailureIsFatal(t *testing.T) {
	env := newTestEnv(t, nil)
	if err := env.s.Login(context.Background()); err != nil {
		t.Fatalf("Login: %v", err)
	}

	env.tr.complete(t, endpointFriendIDs, 401, "")

	if env.reg.Contains(env.s) {
		t.Fatal("session survived a 401 during friend resolution")
	}
}

func TestFriendResolutionServerErrorIsFatal(t *testing.T) {
	env := newTestEnv(t, nil)
	if err := env.s.Login(context.Background()); err != nil {
		t.Fatalf("Login: %v", err)
	}

	env.tr.complete(t, endpointFriendIDs, 503, "<error>over capacity</error>")

	if env.reg.Contains(env.s) {
		t.Fatal("session survived a failed friend-id page")
	}
	found := false
	for _, e := range env.snk.Errors() {
		if strings.Contains(e, "over capacity") {
			found = true
		}
	}
	if !found {
		t.Fatalf("errors = %v, want the server message surfaced", env.snk.Errors())
	}
}

func TestSingleConversationSkipsFriendResolution(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.Config) {
		cfg.Mode = config.ModeIndividual
		cfg.SingleConversation = true
	})
	if err := env.s.Login(context.Background()); err != nil {
		t.Fatalf("Login: %v", err)
	}

	if n := env.tr.issuedCount(endpointFriendIDs); n != 0 {
		t.Fatal("friend ids requested in single-conversation mode")
	}
	if n := env.tr.pendingCount(endpointHomeTimeline); n != 1 {
		t.Fatal("fetch cycle did not start")
	}
}

func TestEmptyFriendListStillStartsFetching(t *testing.T) {
	env := newTestEnv(t, nil)
	if err := env.s.Login(context.Background()); err != nil {
		t.Fatalf("Login: %v", err)
	}

	env.tr.complete(t, endpointFriendIDs, 200, idPageXML(0))
	if n := env.tr.pendingCount(endpointHomeTimeline); n != 1 {
		t.Fatal("fetch cycle did not start with an empty roster")
	}
}
