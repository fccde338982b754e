// Package buffer provides the mutable accumulators the thread run engine
// folds streamed events into: a single-slot text message buffer and a
// multi-slot tool call buffer.
//
// Both buffers are small explicit state machines. Calling an operation in
// the wrong state is a protocol fault: it indicates a desynchronization
// between sender and receiver and is surfaced as a typed error, never
// swallowed. The buffers are single-writer; they are driven only by one
// thread's event loop and need no internal locking.
package buffer

import (
	"strings"

	ai "github.com/spetersoncode/strand"
)

// Text accumulates one in-flight streamed text message at a time.
type Text struct {
	clock ai.Clock

	active    bool
	messageID string
	user      ai.Role
	content   strings.Builder
}

// NewText creates an inactive text buffer. A nil clock means time.Now.
func NewText(clock ai.Clock) *Text {
	return &Text{clock: clock}
}

// Active reports whether a message is currently accumulating.
func (b *Text) Active() bool {
	return b.active
}

// Content returns the content accumulated so far, or "" when inactive.
// Readers use it to render a streaming message before it completes.
func (b *Text) Content() string {
	if !b.active {
		return ""
	}
	return b.content.String()
}

// MessageID returns the id of the accumulating message, or "" when inactive.
func (b *Text) MessageID() string {
	if !b.active {
		return ""
	}
	return b.messageID
}

// Start begins accumulating a new message. Starting while a message is
// already active is a protocol fault.
func (b *Text) Start(messageID string, user ai.Role) error {
	if b.active {
		return &ErrMessageActive{ActiveID: b.messageID, NewID: messageID}
	}
	b.active = true
	b.messageID = messageID
	b.user = user
	b.content.Reset()
	return nil
}

// Append adds a content delta to the active message. Appending while
// inactive is a protocol fault and does not mutate the buffer.
func (b *Text) Append(delta string) error {
	if !b.active {
		return &ErrNoActiveMessage{Op: "Append"}
	}
	b.content.WriteString(delta)
	return nil
}

// Complete finalizes the active message, deactivates the buffer and returns
// the finished ChatMessage. The buffer is immediately reusable for the next
// message. Completing while inactive is a protocol fault.
func (b *Text) Complete() (ai.ChatMessage, error) {
	if !b.active {
		return ai.ChatMessage{}, &ErrNoActiveMessage{Op: "Complete"}
	}
	msg := ai.ChatMessage{
		ID:        b.messageID,
		User:      b.user,
		Type:      ai.MessageTypeText,
		Text:      b.content.String(),
		CreatedAt: b.clock.Now(),
	}
	b.reset()
	return msg, nil
}

// Reset discards any accumulating message and returns the buffer to its
// inactive state.
func (b *Text) Reset() {
	b.reset()
}

func (b *Text) reset() {
	b.active = false
	b.messageID = ""
	b.user = ""
	b.content.Reset()
}
