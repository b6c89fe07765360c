package sink

import (
	"sync"
	"time"
)

// Recorder implements Sink for testing. It records every call so tests can
// assert on the exact presentation traffic a session produced.
type Recorder struct {
	mu       sync.Mutex
	contacts map[string]string // handle -> display name
	presence map[string]bool
	rooms    map[string]*RecordedRoom
	directs  []RecordedMessage
	errors   []string
	logs     []string
}

// RecordedMessage is one direct or room message seen by the Recorder.
type RecordedMessage struct {
	From string
	Text string
	At   time.Time
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{
		contacts: make(map[string]string),
		presence: make(map[string]bool),
		rooms:    make(map[string]*RecordedRoom),
	}
}

func (r *Recorder) AddContact(handle, displayName string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.contacts[handle] = displayName
}

func (r *Recorder) RenameContact(handle, displayName string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.contacts[handle] = displayName
}

func (r *Recorder) SetPresence(handle string, online bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.presence[handle] = online
}

func (r *Recorder) EnsureRoom(topic string) Room {
	r.mu.Lock()
	defer r.mu.Unlock()
	if room, ok := r.rooms[topic]; ok {
		return room
	}
	room := &RecordedRoom{Topic: topic}
	r.rooms[topic] = room
	return room
}

func (r *Recorder) DirectMessage(from, text string, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.directs = append(r.directs, RecordedMessage{From: from, Text: text, At: at})
}

func (r *Recorder) Error(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, msg)
}

func (r *Recorder) Log(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = append(r.logs, msg)
}

// HasContact reports whether handle was added.
func (r *Recorder) HasContact(handle string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.contacts[handle]
	return ok
}

// ContactName returns the recorded display name for handle.
func (r *Recorder) ContactName(handle string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.contacts[handle]
}

// Directs returns a copy of the recorded direct messages.
func (r *Recorder) Directs() []RecordedMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]RecordedMessage(nil), r.directs...)
}

// Errors returns a copy of the recorded error messages.
func (r *Recorder) Errors() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.errors...)
}

// Logs returns a copy of the recorded log messages.
func (r *Recorder) Logs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.logs...)
}

// Room returns the recorded room for topic, or nil.
func (r *Recorder) Room(topic string) *RecordedRoom {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rooms[topic]
}

// Rooms returns all recorded rooms.
func (r *Recorder) Rooms() []*RecordedRoom {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*RecordedRoom, 0, len(r.rooms))
	for _, room := range r.rooms {
		out = append(out, room)
	}
	return out
}

// RecordedRoom implements Room, recording members and messages.
type RecordedRoom struct {
	mu       sync.Mutex
	Topic    string
	members  []string
	messages []RecordedMessage
	logs     []string
	closed   bool
}

func (r *RecordedRoom) AddMember(handle string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.members = append(r.members, handle)
}

func (r *RecordedRoom) Message(author, text string, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, RecordedMessage{From: author, Text: text, At: at})
}

func (r *RecordedRoom) Log(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = append(r.logs, msg)
}

func (r *RecordedRoom) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
}

// Members returns a copy of the joined handles.
func (r *RecordedRoom) Members() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.members...)
}

// Messages returns a copy of the room messages.
func (r *RecordedRoom) Messages() []RecordedMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]RecordedMessage(nil), r.messages...)
}

// SystemLogs returns a copy of the room log lines.
func (r *RecordedRoom) SystemLogs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.logs...)
}

// Closed reports whether the room was closed.
func (r *RecordedRoom) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}
