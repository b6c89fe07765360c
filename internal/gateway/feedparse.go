package gateway

import (
	"fmt"
	"html"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/avlott/birdfeed/internal/markup"
)

// feedTimeFormat matches the remote service's created_at field.
const feedTimeFormat = "Mon Jan 02 15:04:05 -0700 2006"

// Item is one feed entry. Items are ephemeral: parsed from a response,
// consumed by the merger, then discarded.
type Item struct {
	ID         uint64
	Author     string // author handle
	AuthorName string // author display name
	Text       string
	CreatedAt  time.Time
	ReplyTo    uint64 // id of the item this replies to, or zero
}

// userInfo is a name/handle pair from a reverse-lookup response.
type userInfo struct {
	ScreenName string
	Name       string
}

// parseFeed extracts the feed items from a timeline response body.
// Malformed bodies yield nil; malformed fields within an item are left at
// their zero values rather than failing the whole response.
func parseFeed(body []byte) []*Item {
	root, err := markup.Parse(body)
	if err != nil {
		return nil
	}
	var items []*Item
	for _, child := range root.Children() {
		if strings.EqualFold(child.Name(), "status") {
			items = append(items, parseItem(child))
		}
	}
	return items
}

// parseItem fills an Item from a status node.
func parseItem(node *markup.Node) *Item {
	it := &Item{}
	var retweeted *markup.Node
	for _, child := range node.Children() {
		switch strings.ToLower(child.Name()) {
		case "text":
			it.Text = stripMarkup(child.Text())
		case "retweeted_status":
			retweeted = child
		case "created_at":
			if t, err := time.Parse(feedTimeFormat, child.Text()); err == nil {
				it.CreatedAt = t
			}
		case "user":
			it.Author, it.AuthorName = parseUser(child)
		case "id":
			it.ID, _ = strconv.ParseUint(child.Text(), 10, 64)
		case "in_reply_to_status_id":
			it.ReplyTo, _ = strconv.ParseUint(child.Text(), 10, 64)
		}
	}

	if retweeted != nil {
		// The embedded original may be untruncated where the wrapper is
		// not; prefer it.
		if orig := parseItem(retweeted); orig.Author != "" && orig.Text != "" {
			it.Text = fmt.Sprintf("RT @%s: %s", orig.Author, orig.Text)
		}
	} else {
		expandURLEntities(node, it)
	}
	return it
}

// expandURLEntities annotates shortened URLs in the item text with their
// display form: "https://t.co/x <example.com/page>".
func expandURLEntities(node *markup.Node, it *Item) {
	urls := node.FindPath("entities/urls")
	for _, u := range urls.Children() {
		short := u.Find("url").Text()
		display := u.Find("display_url").Text()
		if short == "" || display == "" {
			continue
		}
		idx := strings.Index(it.Text, short)
		if idx < 0 {
			continue
		}
		end := idx + len(short)
		it.Text = it.Text[:end] + " <" + display + ">" + it.Text[end:]
	}
}

// parseUser extracts (handle, display name) from a user node.
func parseUser(node *markup.Node) (screenName, name string) {
	for _, child := range node.Children() {
		switch strings.ToLower(child.Name()) {
		case "screen_name":
			screenName = child.Text()
		case "name":
			name = child.Text()
		}
	}
	return screenName, name
}

// parseIDPage extracts one page of friend ids and the pagination cursor.
// A missing or malformed cursor reads as zero, which ends pagination.
func parseIDPage(body []byte) (ids []string, nextCursor int64) {
	root, err := markup.Parse(body)
	if err != nil {
		return nil, 0
	}
	for _, child := range root.Children() {
		switch strings.ToLower(child.Name()) {
		case "ids":
			for _, idNode := range child.Children() {
				if strings.EqualFold(idNode.Name(), "id") && idNode.Text() != "" {
					ids = append(ids, idNode.Text())
				}
			}
		case "next_cursor":
			nextCursor, _ = strconv.ParseInt(child.Text(), 10, 64)
		}
	}
	return ids, nextCursor
}

// parseUserList extracts the users from a reverse-lookup response.
func parseUserList(body []byte) []userInfo {
	root, err := markup.Parse(body)
	if err != nil {
		return nil
	}
	var users []userInfo
	for _, child := range root.Children() {
		if !strings.EqualFold(child.Name(), "user") {
			continue
		}
		screenName, name := parseUser(child)
		if screenName != "" {
			users = append(users, userInfo{ScreenName: screenName, Name: name})
		}
	}
	return users
}

// parseConfirmedID extracts the id of the status a successful mutating
// call created, or zero.
func parseConfirmedID(body []byte) uint64 {
	root, err := markup.Parse(body)
	if err != nil {
		return 0
	}
	node := root
	if !strings.EqualFold(root.Name(), "status") {
		node = root.Find("status")
	}
	id, _ := strconv.ParseUint(node.Find("id").Text(), 10, 64)
	return id
}

// remoteError formats a non-success response for the user: the status
// line, plus the remote error body when one is present.
func remoteError(status int, body []byte) string {
	if status == 0 {
		return "connection failed"
	}
	statusLine := fmt.Sprintf("%d %s", status, http.StatusText(status))
	if root, err := markup.Parse(body); err == nil {
		errNode := root.Find("error")
		if errNode == nil && strings.EqualFold(root.Name(), "error") {
			errNode = root
		}
		if text := errNode.Text(); text != "" {
			return fmt.Sprintf("%s (%s)", statusLine, text)
		}
	}
	return statusLine
}

// stripMarkup removes tags and unescapes entities in feed text.
func stripMarkup(s string) string {
	if strings.ContainsRune(s, '<') {
		var b strings.Builder
		inTag := false
		for _, r := range s {
			switch {
			case r == '<':
				inTag = true
			case r == '>':
				inTag = false
			case !inTag:
				b.WriteRune(r)
			}
		}
		s = b.String()
	}
	if strings.ContainsRune(s, '&') {
		s = html.UnescapeString(s)
	}
	return s
}
