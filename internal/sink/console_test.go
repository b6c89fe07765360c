package sink

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestConsoleOutput(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf)

	at := time.Date(2025, 8, 27, 10, 30, 0, 0, time.UTC)
	c.AddContact("alice", "Alice A.")
	c.DirectMessage("alice", "hello", at)
	c.Error("boom")
	c.Log("note")

	out := buf.String()
	for _, want := range []string{
		"alice (Alice A.)",
		"[10:30] <alice> hello",
		"! boom",
		"- note",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestConsoleRoom(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf)

	room := c.EnsureRoom("example/timeline")
	room.AddMember("bob")
	room.Message("bob", "hi", time.Date(2025, 8, 27, 10, 30, 0, 0, time.UTC))
	room.Close()

	out := buf.String()
	for _, want := range []string{
		"room example/timeline opened",
		"bob joined example/timeline",
		"<bob> hi",
		"room example/timeline closed",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
