// Package sink defines the presentation primitives of the host chat
// gateway: a buddy list, direct messages, and chat rooms.
package sink

import "time"

// Sink is the presentation surface a gateway session renders into.
// Implementations must tolerate repeated AddContact calls for the same
// handle.
type Sink interface {
	// AddContact adds a roster entry, or updates its display name.
	AddContact(handle, displayName string)

	// RenameContact updates the display name of an existing entry.
	RenameContact(handle, displayName string)

	// SetPresence marks a contact online or offline.
	SetPresence(handle string, online bool)

	// EnsureRoom returns the chat room with the given topic, creating it
	// if needed.
	EnsureRoom(topic string) Room

	// DirectMessage renders an incoming message from a contact.
	DirectMessage(from, text string, at time.Time)

	// Error surfaces an error message to the user.
	Error(msg string)

	// Log surfaces an informational message to the user.
	Log(msg string)
}

// Room is a chat-room handle returned by Sink.EnsureRoom.
type Room interface {
	// AddMember joins a contact (or the user) to the room.
	AddMember(handle string)

	// Message renders a message from author into the room.
	Message(author, text string, at time.Time)

	// Log renders a system line into the room (used for self-authored
	// items and command feedback).
	Log(msg string)

	// Close tears the room down.
	Close()
}
