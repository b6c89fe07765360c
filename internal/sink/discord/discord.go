// Package discord implements the presentation sink on a Discord channel
// using the Gateway WebSocket.
package discord

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/avlott/birdfeed/internal/sink"
)

// session abstracts the discordgo.Session methods we use, enabling test mocks.
type session interface {
	Open() error
	Close() error
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	AddHandler(handler interface{}) func()
}

// realSession wraps *discordgo.Session to implement the session interface.
type realSession struct {
	s *discordgo.Session
}

func (r *realSession) Open() error  { return r.s.Open() }
func (r *realSession) Close() error { return r.s.Close() }
func (r *realSession) ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	return r.s.ChannelMessageSend(channelID, content, options...)
}
func (r *realSession) AddHandler(handler interface{}) func() {
	return r.s.AddHandler(handler)
}

// Sink renders the gateway's buddy-list and room traffic into a single
// Discord channel. Contacts become bold author prefixes; the timeline room
// becomes the channel itself.
type Sink struct {
	sess      session
	botToken  string
	channelID string

	mu            sync.Mutex
	connected     bool
	contacts      map[string]string
	removeHandler func()
}

// Opts holds parameters for creating a Discord Sink.
type Opts struct {
	BotToken  string // Discord bot token
	ChannelID string // channel all traffic is rendered into
	// For testing: inject a mock session instead of the real Discord API.
	Session session
}

// New creates a Discord Sink.
func New(opts Opts) (*Sink, error) {
	if opts.Session == nil && opts.BotToken == "" {
		return nil, fmt.Errorf("discord: bot token is required")
	}
	if opts.ChannelID == "" {
		return nil, fmt.Errorf("discord: channel ID is required")
	}
	return &Sink{
		sess:      opts.Session,
		botToken:  opts.BotToken,
		channelID: opts.ChannelID,
		contacts:  make(map[string]string),
	}, nil
}

// Connect opens the Discord Gateway connection.
func (d *Sink) Connect() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.connected {
		return nil
	}
	if d.sess == nil {
		dg, err := discordgo.New("Bot " + d.botToken)
		if err != nil {
			return fmt.Errorf("discord: create session: %w", err)
		}
		dg.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentsDirectMessages | discordgo.IntentMessageContent
		d.sess = &realSession{s: dg}
	}
	if err := d.sess.Open(); err != nil {
		return fmt.Errorf("discord: open gateway: %w", err)
	}
	d.connected = true
	return nil
}

// Listen registers a handler for inbound messages. Channel messages from
// the configured channel arrive with direct=false; DMs to the bot arrive
// with direct=true. Bot traffic (our own echoes included) is filtered.
// Must be called after Connect.
func (d *Sink) Listen(fn func(author, text string, direct bool)) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.connected {
		return fmt.Errorf("discord: not connected")
	}
	d.removeHandler = d.sess.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageCreate) {
		d.handleMessage(m, fn)
	})
	return nil
}

// handleMessage routes one MessageCreate event into the Listen callback.
func (d *Sink) handleMessage(m *discordgo.MessageCreate, fn func(author, text string, direct bool)) {
	if m.Author == nil || m.Author.Bot {
		return
	}
	if m.GuildID == "" {
		fn(m.Author.Username, m.Content, true)
		return
	}
	if m.ChannelID == d.channelID {
		fn(m.Author.Username, m.Content, false)
	}
}

// Close shuts down the gateway connection.
func (d *Sink) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.connected {
		return nil
	}
	if d.removeHandler != nil {
		d.removeHandler()
		d.removeHandler = nil
	}
	d.connected = false
	return d.sess.Close()
}

// send posts a line to the configured channel, logging failures.
func (d *Sink) send(content string) {
	if _, err := d.sess.ChannelMessageSend(d.channelID, content); err != nil {
		log.Printf("discord: send: %v", err)
	}
}

func (d *Sink) AddContact(handle, displayName string) {
	d.mu.Lock()
	_, known := d.contacts[handle]
	d.contacts[handle] = displayName
	d.mu.Unlock()
	if known {
		return
	}
	if displayName != "" {
		d.send(fmt.Sprintf("_now following **%s** (%s)_", handle, displayName))
	}
}

func (d *Sink) RenameContact(handle, displayName string) {
	d.mu.Lock()
	d.contacts[handle] = displayName
	d.mu.Unlock()
}

func (d *Sink) SetPresence(handle string, online bool) {
	// Discord has no per-contact presence we can drive; nothing to render.
}

func (d *Sink) EnsureRoom(topic string) sink.Room {
	return &channelRoom{sink: d, topic: topic}
}

func (d *Sink) DirectMessage(from, text string, at time.Time) {
	d.send(fmt.Sprintf("**<%s>** %s", from, text))
}

func (d *Sink) Error(msg string) {
	d.send(":warning: " + msg)
}

func (d *Sink) Log(msg string) {
	d.send("_" + msg + "_")
}

// channelRoom maps the aggregate timeline room onto the configured channel.
type channelRoom struct {
	sink  *Sink
	topic string
}

func (r *channelRoom) AddMember(handle string) {
	// Membership is implicit in a Discord channel.
}

func (r *channelRoom) Message(author, text string, at time.Time) {
	r.sink.send(fmt.Sprintf("**<%s>** %s", author, text))
}

func (r *channelRoom) Log(msg string) {
	r.sink.send("_" + msg + "_")
}

func (r *channelRoom) Close() {
}
