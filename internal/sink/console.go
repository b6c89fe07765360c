package sink

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// Console is a Sink that renders everything as plain lines on a writer.
// It backs the CLI when no chat platform is configured.
type Console struct {
	mu  sync.Mutex
	out io.Writer
}

// NewConsole creates a Console sink. A nil writer defaults to os.Stdout.
func NewConsole(out io.Writer) *Console {
	if out == nil {
		out = os.Stdout
	}
	return &Console{out: out}
}

func (c *Console) printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, format+"\n", args...)
}

func (c *Console) AddContact(handle, displayName string) {
	if displayName != "" {
		c.printf("* %s (%s) added", handle, displayName)
	} else {
		c.printf("* %s added", handle)
	}
}

func (c *Console) RenameContact(handle, displayName string) {
	c.printf("* %s is now known as %s", handle, displayName)
}

func (c *Console) SetPresence(handle string, online bool) {
	state := "offline"
	if online {
		state = "online"
	}
	c.printf("* %s is %s", handle, state)
}

func (c *Console) EnsureRoom(topic string) Room {
	c.printf("* room %s opened", topic)
	return &consoleRoom{console: c, topic: topic}
}

func (c *Console) DirectMessage(from, text string, at time.Time) {
	c.printf("[%s] <%s> %s", at.Format("15:04"), from, text)
}

func (c *Console) Error(msg string) {
	c.printf("! %s", msg)
}

func (c *Console) Log(msg string) {
	c.printf("- %s", msg)
}

// consoleRoom renders room traffic with the room topic as a prefix.
type consoleRoom struct {
	console *Console
	topic   string
}

func (r *consoleRoom) AddMember(handle string) {
	r.console.printf("* %s joined %s", handle, r.topic)
}

func (r *consoleRoom) Message(author, text string, at time.Time) {
	r.console.printf("[%s] %s <%s> %s", at.Format("15:04"), r.topic, author, text)
}

func (r *consoleRoom) Log(msg string) {
	r.console.printf("%s - %s", r.topic, msg)
}

func (r *consoleRoom) Close() {
	r.console.printf("* room %s closed", r.topic)
}
