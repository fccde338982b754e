package buffer

import (
	"strings"

	ai "github.com/spetersoncode/strand"
)

// toolCallSlot tracks one in-flight tool call.
type toolCallSlot struct {
	info      ai.ToolCallInfo
	args      strings.Builder
	completed bool // arguments transmission finished
	hasResult bool
}

// ToolCalls accumulates zero or more concurrently in-flight tool calls,
// addressed independently by call id. No ordering is implied between calls
// with different ids. SetResult may legally arrive before Complete: the
// result can race ahead of the end-of-arguments signal.
//
// Calls remain queryable after completion and result until explicitly
// removed; removal is the caller's responsibility.
type ToolCalls struct {
	clock ai.Clock
	calls map[string]*toolCallSlot
}

// NewToolCalls creates an empty tool call buffer. A nil clock means time.Now.
func NewToolCalls(clock ai.Clock) *ToolCalls {
	return &ToolCalls{
		clock: clock,
		calls: make(map[string]*toolCallSlot),
	}
}

// Start begins tracking a new tool call. Starting an id that is already
// tracked is a protocol fault.
func (b *ToolCalls) Start(callID, name, parentMessageID string) error {
	if _, exists := b.calls[callID]; exists {
		return &ErrToolCallActive{ID: callID}
	}
	b.calls[callID] = &toolCallSlot{
		info: ai.ToolCallInfo{
			ID:              callID,
			Name:            name,
			ParentMessageID: parentMessageID,
			Status:          ai.ToolCallPending,
			StartedAt:       b.clock.Now(),
		},
	}
	return nil
}

// AppendArgs adds an argument delta to the identified call. Appending to an
// unknown id is a protocol fault.
func (b *ToolCalls) AppendArgs(callID, delta string) error {
	slot, ok := b.calls[callID]
	if !ok {
		return &ErrUnknownToolCall{ID: callID, Op: "AppendArgs"}
	}
	slot.args.WriteString(delta)
	return nil
}

// Complete marks the identified call's arguments as fully transmitted and
// returns its current info. Completing an unknown id is a protocol fault.
func (b *ToolCalls) Complete(callID string) (ai.ToolCallInfo, error) {
	slot, ok := b.calls[callID]
	if !ok {
		return ai.ToolCallInfo{}, &ErrUnknownToolCall{ID: callID, Op: "Complete"}
	}
	slot.completed = true
	return b.snapshot(slot), nil
}

// SetResult records the identified call's result, marks it completed and
// returns its info. Setting a result on an unknown id is a protocol fault.
// SetResult before Complete and after Complete both yield the same final
// result.
func (b *ToolCalls) SetResult(callID, result string) (ai.ToolCallInfo, error) {
	slot, ok := b.calls[callID]
	if !ok {
		return ai.ToolCallInfo{}, &ErrUnknownToolCall{ID: callID, Op: "SetResult"}
	}
	slot.info.Result = result
	slot.info.HasResult = true
	slot.hasResult = true
	slot.info.Status = ai.ToolCallCompleted
	slot.info.CompletedAt = b.clock.Now()
	return b.snapshot(slot), nil
}

// SetStatus updates the lifecycle status of a tracked call, for callers that
// execute tools locally. Unknown ids are a protocol fault.
func (b *ToolCalls) SetStatus(callID string, status ai.ToolCallStatus) (ai.ToolCallInfo, error) {
	slot, ok := b.calls[callID]
	if !ok {
		return ai.ToolCallInfo{}, &ErrUnknownToolCall{ID: callID, Op: "SetStatus"}
	}
	slot.info.Status = status
	return b.snapshot(slot), nil
}

// Get returns the identified call's current info, or false if untracked.
func (b *ToolCalls) Get(callID string) (ai.ToolCallInfo, bool) {
	slot, ok := b.calls[callID]
	if !ok {
		return ai.ToolCallInfo{}, false
	}
	return b.snapshot(slot), true
}

// Remove stops tracking the identified call and returns its final info, or
// false if untracked.
func (b *ToolCalls) Remove(callID string) (ai.ToolCallInfo, bool) {
	slot, ok := b.calls[callID]
	if !ok {
		return ai.ToolCallInfo{}, false
	}
	delete(b.calls, callID)
	return b.snapshot(slot), true
}

// Active reports whether the identified call is currently tracked.
func (b *ToolCalls) Active(callID string) bool {
	_, ok := b.calls[callID]
	return ok
}

// Completed reports whether the identified call's arguments are complete.
func (b *ToolCalls) Completed(callID string) bool {
	slot, ok := b.calls[callID]
	return ok && slot.completed
}

// HasResult reports whether the identified call has received a result.
func (b *ToolCalls) HasResult(callID string) bool {
	slot, ok := b.calls[callID]
	return ok && slot.hasResult
}

// Len returns the number of tracked calls.
func (b *ToolCalls) Len() int {
	return len(b.calls)
}

// IDs returns the ids of all tracked calls, in no particular order.
func (b *ToolCalls) IDs() []string {
	ids := make([]string, 0, len(b.calls))
	for id := range b.calls {
		ids = append(ids, id)
	}
	return ids
}

// Reset discards all tracked calls.
func (b *ToolCalls) Reset() {
	b.calls = make(map[string]*toolCallSlot)
}

// snapshot materializes a slot's info with the accumulated arguments.
func (b *ToolCalls) snapshot(slot *toolCallSlot) ai.ToolCallInfo {
	info := slot.info
	info.Arguments = slot.args.String()
	return info
}
