// Package thread implements the AG-UI run engine: the state machine that
// drives one conversation thread through a run, folding the decoded event
// stream into messages, tool calls and the agent state object.
//
// A thread is single-writer. Its event loop applies each event's full
// effect atomically with respect to readers; multiple threads (different
// rooms or servers) are fully independent and share no mutable state.
package thread

import (
	"context"
	"sync"

	ai "github.com/spetersoncode/strand"
	"github.com/spetersoncode/strand/buffer"
	"github.com/spetersoncode/strand/event"
	"github.com/spetersoncode/strand/state"
	"github.com/spetersoncode/strand/tool"
	"github.com/spetersoncode/strand/transport"
)

// Runner opens an AG-UI run stream. *transport.Client implements it; tests
// inject fakes.
type Runner interface {
	RunAgent(ctx context.Context, roomID, threadID, runID string, req transport.RunRequest) <-chan transport.StreamEvent
}

// RunInput describes one run request.
type RunInput struct {
	// RunID identifies the run; generated when empty.
	RunID string
	// Message is the user's message for this run.
	Message string
	// InitialState optionally seeds the state object before the run.
	InitialState map[string]any
}

// Thread owns one conversation thread: its message list, state object, and
// the buffers that accumulate in-flight text and tool calls. The thread
// creates and owns all three for its own lifetime; Reset clears them
// atomically.
type Thread struct {
	id     string
	roomID string

	runner   Runner
	registry *tool.Registry
	clock    ai.Clock

	mu       sync.Mutex
	messages []ai.ChatMessage
	text     *buffer.Text
	tools    *buffer.ToolCalls
	state    *state.Store
	status   ai.RunStatus
	runID    string
	errMsg   string

	updates chan Update
}

// Option configures a Thread.
type Option func(*Thread)

// WithClock injects the clock used for message timestamps.
func WithClock(clock ai.Clock) Option {
	return func(t *Thread) {
		t.clock = clock
	}
}

// New creates an idle thread for one room. The registry may be nil when the
// host executes no tools locally.
func New(threadID, roomID string, runner Runner, registry *tool.Registry, opts ...Option) *Thread {
	t := &Thread{
		id:       threadID,
		roomID:   roomID,
		runner:   runner,
		registry: registry,
		status:   ai.RunIdle,
		updates:  make(chan Update, 100),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.text = buffer.NewText(t.clock)
	t.tools = buffer.NewToolCalls(t.clock)
	t.state = state.New()
	return t
}

// ID returns the thread id.
func (t *Thread) ID() string { return t.id }

// RoomID returns the room this thread belongs to.
func (t *Thread) RoomID() string { return t.roomID }

// Updates returns the change notification stream for reactive UI binding.
func (t *Thread) Updates() <-chan Update { return t.updates }

// Status returns the current run status.
func (t *Thread) Status() ai.RunStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// RunID returns the id of the current or most recent run.
func (t *Thread) RunID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.runID
}

// ErrorMessage returns the recorded error for an errored run, or "".
func (t *Thread) ErrorMessage() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.errMsg
}

// Messages returns a snapshot of the thread's message list.
func (t *Thread) Messages() []ai.ChatMessage {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]ai.ChatMessage, len(t.messages))
	copy(out, t.messages)
	return out
}

// State returns a deep copy of the thread's state object.
func (t *Thread) State() map[string]any {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state.Snapshot()
}

// ToolCall returns the tracked tool call with the given id.
func (t *Thread) ToolCall(callID string) (ai.ToolCallInfo, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.tools.Get(callID)
}

// RemoveToolCall stops tracking a tool call. The thread never auto-evicts
// completed calls; removal is the consumer's responsibility.
func (t *Thread) RemoveToolCall(callID string) (ai.ToolCallInfo, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.tools.Remove(callID)
}

// Reset clears the message list, state object, both buffers and the run
// status back to their initial idle values. It is used when a UI discards a
// thread's working state without disposing the whole session.
func (t *Thread) Reset() {
	t.mu.Lock()
	t.messages = nil
	t.text.Reset()
	t.tools.Reset()
	t.state.Reset()
	t.status = ai.RunIdle
	t.runID = ""
	t.errMsg = ""
	t.mu.Unlock()
	t.notify(UpdateStatus)
	t.notify(UpdateMessages)
	t.notify(UpdateState)
}

// Run issues a run request and processes its event stream to completion.
//
// The user message is appended to the message list, the run transitions
// idle to running, and events are applied strictly in stream-delivery
// order. Run blocks until the run reaches a terminal state and returns nil
// for a successful run (including a silent stream close, which is treated
// as success), a RunFailedError for an explicit backend RUN_ERROR, a
// ProtocolError for a buffer state fault, or the transport/context error
// otherwise. Cancelling ctx aborts the underlying request; buffer state
// already applied is not rolled back.
func (t *Thread) Run(ctx context.Context, input RunInput) error {
	t.mu.Lock()
	if t.status == ai.RunRunning {
		t.mu.Unlock()
		return ErrRunInProgress
	}
	runID := input.RunID
	if runID == "" {
		runID = ai.GenerateRunID()
	}
	t.runID = runID
	t.status = ai.RunRunning
	t.errMsg = ""
	if input.InitialState != nil {
		t.state.SetSnapshot(input.InitialState)
	}
	t.messages = append(t.messages, ai.ChatMessage{
		ID:        ai.GenerateMessageID(),
		User:      ai.RoleUser,
		Type:      ai.MessageTypeText,
		Text:      input.Message,
		CreatedAt: t.clock.Now(),
	})
	t.mu.Unlock()
	t.notify(UpdateStatus)
	t.notify(UpdateMessages)

	req := transport.RunRequest{Message: input.Message, State: input.InitialState}
	stream := t.runner.RunAgent(ctx, t.roomID, t.id, runID, req)

	for item := range stream {
		if item.Err != nil {
			t.failRun(item.Err.Error())
			return item.Err
		}
		if err := t.processEvent(ctx, item.Event); err != nil {
			t.failRun(err.Error())
			return err
		}
		if done, err := t.terminal(item.Event); done {
			// Drain so the transport goroutine can exit.
			for range stream {
			}
			return err
		}
	}

	// End of stream without an explicit terminal event: treat silent close
	// as success. Flush any pending text first.
	t.mu.Lock()
	if t.status == ai.RunRunning {
		t.flushPendingTextLocked()
		t.status = ai.RunFinished
	}
	t.mu.Unlock()
	t.notify(UpdateStatus)
	return nil
}

// terminal reports whether ev ended the run, and with what result.
func (t *Thread) terminal(ev event.Event) (bool, error) {
	switch ev.Type {
	case event.RunFinished:
		return true, nil
	case event.RunError:
		return true, &RunFailedError{Message: ev.Message, Code: ev.Code}
	default:
		return false, nil
	}
}

// failRun records a terminal failure outside the normal event flow.
func (t *Thread) failRun(msg string) {
	t.mu.Lock()
	t.flushPendingTextLocked()
	t.status = ai.RunErrored
	t.errMsg = msg
	t.mu.Unlock()
	t.notify(UpdateStatus)
}

// processEvent applies one event. Buffer state faults are returned as
// ProtocolError; they indicate sender/receiver desynchronization and
// terminate the run.
func (t *Thread) processEvent(ctx context.Context, ev event.Event) error {
	t.mu.Lock()

	switch ev.Type {
	case event.RunStarted, event.StepStarted, event.StepFinished:
		// Informational only at this layer.
		t.mu.Unlock()

	case event.TextMessageStart:
		if err := t.text.Start(ev.MessageID, ai.RoleAssistant); err != nil {
			t.mu.Unlock()
			return &ProtocolError{Err: err}
		}
		// A streaming placeholder goes into the list immediately; identity
		// by id lets later events replace it in place.
		t.upsertMessageLocked(ai.ChatMessage{
			ID:          ev.MessageID,
			User:        ai.RoleAssistant,
			Type:        ai.MessageTypeText,
			IsStreaming: true,
		})
		t.mu.Unlock()
		t.notify(UpdateMessages)

	case event.TextMessageContent:
		// Content for a closed message is dropped, not faulted: duplicate
		// or out-of-order deltas must not kill a healthy run.
		if !t.text.Active() {
			t.mu.Unlock()
			return nil
		}
		if err := t.text.Append(ev.Delta); err != nil {
			t.mu.Unlock()
			return &ProtocolError{Err: err}
		}
		t.refreshStreamingLocked()
		t.mu.Unlock()
		t.notify(UpdateMessages)

	case event.TextMessageEnd:
		if !t.text.Active() {
			t.mu.Unlock()
			return nil
		}
		msg, err := t.text.Complete()
		if err != nil {
			t.mu.Unlock()
			return &ProtocolError{Err: err}
		}
		t.upsertMessageLocked(msg)
		t.mu.Unlock()
		t.notify(UpdateMessages)

	case event.ToolCallStart:
		if err := t.tools.Start(ev.ToolCallID, ev.ToolCallName, ev.ParentMessageID); err != nil {
			t.mu.Unlock()
			return &ProtocolError{Err: err}
		}
		t.mu.Unlock()
		t.notify(UpdateToolCalls)

	case event.ToolCallArgs:
		if !t.tools.Active(ev.ToolCallID) {
			t.mu.Unlock()
			return nil
		}
		if err := t.tools.AppendArgs(ev.ToolCallID, ev.Delta); err != nil {
			t.mu.Unlock()
			return &ProtocolError{Err: err}
		}
		t.mu.Unlock()
		t.notify(UpdateToolCalls)

	case event.ToolCallEnd:
		if !t.tools.Active(ev.ToolCallID) {
			t.mu.Unlock()
			return nil
		}
		info, err := t.tools.Complete(ev.ToolCallID)
		if err != nil {
			t.mu.Unlock()
			return &ProtocolError{Err: err}
		}
		t.mu.Unlock()
		t.notify(UpdateToolCalls)
		// Local execution must not block event processing.
		go t.dispatchToolCall(ctx, info)

	case event.ToolCallResult:
		if !t.tools.Active(ev.ToolCallID) {
			t.mu.Unlock()
			return nil
		}
		if _, err := t.tools.SetResult(ev.ToolCallID, ev.Content); err != nil {
			t.mu.Unlock()
			return &ProtocolError{Err: err}
		}
		t.mu.Unlock()
		t.notify(UpdateToolCalls)

	case event.StateSnapshot:
		t.state.SetSnapshot(ev.Snapshot)
		t.mu.Unlock()
		t.notify(UpdateState)

	case event.StateDelta:
		t.state.Apply(ev.Patch)
		t.mu.Unlock()
		t.notify(UpdateState)

	case event.ActivitySnapshot, event.ActivityDelta:
		// Reserved for UI-facing activity indicators outside this core.
		t.mu.Unlock()

	case event.MessagesSnapshot:
		t.messages = snapshotToMessages(ev.Messages, t.clock)
		t.mu.Unlock()
		t.notify(UpdateMessages)

	case event.RunFinished:
		t.flushPendingTextLocked()
		t.status = ai.RunFinished
		t.mu.Unlock()
		t.notify(UpdateStatus)

	case event.RunError:
		t.flushPendingTextLocked()
		t.status = ai.RunErrored
		t.errMsg = ev.Message
		t.mu.Unlock()
		t.notify(UpdateStatus)

	default:
		// Custom and Unknown events are deliberate no-ops; a new wire event
		// type must not disturb existing state.
		t.mu.Unlock()
	}

	return nil
}

// dispatchToolCall executes a completed call through the registry and feeds
// a produced result back into the buffer if the call is still tracked.
func (t *Thread) dispatchToolCall(ctx context.Context, info ai.ToolCallInfo) {
	if t.registry == nil {
		return
	}

	t.mu.Lock()
	if t.tools.Active(info.ID) && !t.tools.HasResult(info.ID) {
		_, _ = t.tools.SetStatus(info.ID, ai.ToolCallExecuting)
	}
	t.mu.Unlock()
	t.notify(UpdateToolCalls)

	result, ok, err := t.registry.Execute(ctx, info)

	t.mu.Lock()
	// A call that already has a result is final; a result streamed by the
	// backend wins over the local execution outcome.
	if !t.tools.Active(info.ID) || t.tools.HasResult(info.ID) {
		t.mu.Unlock()
		return
	}
	switch {
	case err != nil:
		_, _ = t.tools.SetStatus(info.ID, ai.ToolCallFailed)
	case ok:
		_, _ = t.tools.SetResult(info.ID, result)
	default:
		// Unregistered or fire-and-forget: back to pending, the backend may
		// still deliver a TOOL_CALL_RESULT.
		_, _ = t.tools.SetStatus(info.ID, ai.ToolCallPending)
	}
	t.mu.Unlock()
	t.notify(UpdateToolCalls)
}

// flushPendingTextLocked finalizes any accumulating text message as if a
// TEXT_MESSAGE_END had arrived. Partial content survives terminal events
// and silent stream closure.
func (t *Thread) flushPendingTextLocked() {
	if !t.text.Active() {
		return
	}
	msg, err := t.text.Complete()
	if err != nil {
		return
	}
	t.upsertMessageLocked(msg)
}

// refreshStreamingLocked updates the in-place streaming message with the
// buffer's accumulated content.
func (t *Thread) refreshStreamingLocked() {
	id := t.text.MessageID()
	for i := range t.messages {
		if t.messages[i].ID == id {
			t.messages[i].Text = t.text.Content()
			return
		}
	}
}

// upsertMessageLocked replaces the message with the same id, or appends.
func (t *Thread) upsertMessageLocked(msg ai.ChatMessage) {
	for i := range t.messages {
		if t.messages[i].ID == msg.ID {
			t.messages[i] = msg
			return
		}
	}
	t.messages = append(t.messages, msg)
}

// snapshotToMessages converts parsed MESSAGES_SNAPSHOT entries into chat
// messages. Entries already survived defensive parsing in the event model.
func snapshotToMessages(msgs []event.Message, clock ai.Clock) []ai.ChatMessage {
	out := make([]ai.ChatMessage, 0, len(msgs))
	for _, m := range msgs {
		cm := ai.ChatMessage{
			ID:        m.ID,
			User:      ai.ParseRole(m.Role),
			Type:      ai.MessageTypeText,
			Text:      m.Content,
			CreatedAt: clock.Now(),
		}
		if len(m.ToolCalls) > 0 {
			cm.ToolCalls = make([]ai.ToolCallInfo, 0, len(m.ToolCalls))
			for _, c := range m.ToolCalls {
				cm.ToolCalls = append(cm.ToolCalls, ai.ToolCallInfo{
					ID:        c.ID,
					Name:      c.Name,
					Arguments: c.Arguments,
					Status:    ai.ToolCallCompleted,
				})
			}
			if m.Content == "" {
				cm.Type = ai.MessageTypeToolCall
			}
		}
		out = append(out, cm)
	}
	return out
}
