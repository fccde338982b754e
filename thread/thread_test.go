package thread

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ai "github.com/spetersoncode/strand"
	"github.com/spetersoncode/strand/event"
	"github.com/spetersoncode/strand/sse"
	"github.com/spetersoncode/strand/tool"
	"github.com/spetersoncode/strand/transport"
)

// fakeRunner replays a scripted event stream, optionally ending with an
// error item, and records the request it received.
type fakeRunner struct {
	events []event.Event
	err    error

	roomID   string
	threadID string
	runID    string
	req      transport.RunRequest
}

func (f *fakeRunner) RunAgent(ctx context.Context, roomID, threadID, runID string, req transport.RunRequest) <-chan transport.StreamEvent {
	f.roomID = roomID
	f.threadID = threadID
	f.runID = runID
	f.req = req

	ch := make(chan transport.StreamEvent, len(f.events)+1)
	for _, ev := range f.events {
		ch <- transport.StreamEvent{Event: ev}
	}
	if f.err != nil {
		ch <- transport.StreamEvent{Err: f.err}
	}
	close(ch)
	return ch
}

// blockingRunner holds the stream open until released.
type blockingRunner struct {
	release chan struct{}
}

func (b *blockingRunner) RunAgent(ctx context.Context, roomID, threadID, runID string, req transport.RunRequest) <-chan transport.StreamEvent {
	ch := make(chan transport.StreamEvent)
	go func() {
		<-b.release
		close(ch)
	}()
	return ch
}

func TestThreadRunFullScenario(t *testing.T) {
	runner := &fakeRunner{events: []event.Event{
		{Type: event.RunStarted, ThreadID: "t1", RunID: "r1"},
		{Type: event.TextMessageStart, MessageID: "m1"},
		{Type: event.TextMessageContent, MessageID: "m1", Delta: "Hello"},
		{Type: event.TextMessageContent, MessageID: "m1", Delta: ", world"},
		{Type: event.TextMessageEnd, MessageID: "m1"},
		{Type: event.StateSnapshot, Snapshot: map[string]any{"count": 1}},
		{Type: event.StateDelta, Patch: []event.PatchOp{{Op: "replace", Path: "/count", Value: 2}}},
		{Type: event.RunFinished},
	}}
	th := New("t1", "room1", runner, nil)

	err := th.Run(context.Background(), RunInput{RunID: "r1", Message: "hi there"})
	require.NoError(t, err)

	assert.Equal(t, ai.RunFinished, th.Status())
	assert.Equal(t, "r1", th.RunID())
	assert.Equal(t, "", th.ErrorMessage())

	msgs := th.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, ai.RoleUser, msgs[0].User)
	assert.Equal(t, "hi there", msgs[0].Text)
	assert.Equal(t, "m1", msgs[1].ID)
	assert.Equal(t, ai.RoleAssistant, msgs[1].User)
	assert.Equal(t, "Hello, world", msgs[1].Text)
	assert.False(t, msgs[1].IsStreaming)

	st := th.State()
	assert.Equal(t, 2, st["count"])

	assert.Equal(t, "room1", runner.roomID)
	assert.Equal(t, "t1", runner.threadID)
	assert.Equal(t, "r1", runner.runID)
	assert.Equal(t, "hi there", runner.req.Message)
}

func TestThreadRunGeneratesRunID(t *testing.T) {
	runner := &fakeRunner{events: []event.Event{{Type: event.RunFinished}}}
	th := New("t1", "room1", runner, nil)

	require.NoError(t, th.Run(context.Background(), RunInput{Message: "hi"}))
	assert.NotEmpty(t, th.RunID())
	assert.Equal(t, th.RunID(), runner.runID)
}

func TestThreadSilentCloseFlushesText(t *testing.T) {
	runner := &fakeRunner{events: []event.Event{
		{Type: event.RunStarted},
		{Type: event.TextMessageStart, MessageID: "m1"},
		{Type: event.TextMessageContent, MessageID: "m1", Delta: "partial answer"},
		// Stream closes without TEXT_MESSAGE_END or RUN_FINISHED.
	}}
	th := New("t1", "room1", runner, nil)

	err := th.Run(context.Background(), RunInput{Message: "hi"})
	require.NoError(t, err)
	assert.Equal(t, ai.RunFinished, th.Status())

	msgs := th.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "partial answer", msgs[1].Text)
	assert.False(t, msgs[1].IsStreaming)
}

func TestThreadRunError(t *testing.T) {
	runner := &fakeRunner{events: []event.Event{
		{Type: event.RunStarted},
		{Type: event.RunError, Message: "model overloaded", Code: "E503"},
	}}
	th := New("t1", "room1", runner, nil)

	err := th.Run(context.Background(), RunInput{Message: "hi"})
	var failed *RunFailedError
	require.ErrorAs(t, err, &failed)
	assert.Equal(t, "model overloaded", failed.Message)
	assert.Equal(t, "E503", failed.Code)

	assert.Equal(t, ai.RunErrored, th.Status())
	assert.Equal(t, "model overloaded", th.ErrorMessage())
}

func TestThreadStreamError(t *testing.T) {
	cause := errors.New("connection reset")
	runner := &fakeRunner{
		events: []event.Event{{Type: event.RunStarted}},
		err:    cause,
	}
	th := New("t1", "room1", runner, nil)

	err := th.Run(context.Background(), RunInput{Message: "hi"})
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, ai.RunErrored, th.Status())
	assert.Equal(t, "connection reset", th.ErrorMessage())
}

func TestThreadRunInProgress(t *testing.T) {
	runner := &blockingRunner{release: make(chan struct{})}
	th := New("t1", "room1", runner, nil)

	done := make(chan error, 1)
	go func() {
		done <- th.Run(context.Background(), RunInput{Message: "first"})
	}()

	require.Eventually(t, func() bool {
		return th.Status() == ai.RunRunning
	}, time.Second, 5*time.Millisecond)

	err := th.Run(context.Background(), RunInput{Message: "second"})
	assert.ErrorIs(t, err, ErrRunInProgress)

	close(runner.release)
	require.NoError(t, <-done)

	// A finished thread accepts the next run.
	runner2 := &fakeRunner{events: []event.Event{{Type: event.RunFinished}}}
	th2 := New("t2", "room1", runner2, nil)
	require.NoError(t, th2.Run(context.Background(), RunInput{Message: "one"}))
	require.NoError(t, th2.Run(context.Background(), RunInput{Message: "two"}))
}

func TestThreadProtocolFault(t *testing.T) {
	runner := &fakeRunner{events: []event.Event{
		{Type: event.TextMessageStart, MessageID: "m1"},
		{Type: event.TextMessageStart, MessageID: "m2"},
	}}
	th := New("t1", "room1", runner, nil)

	err := th.Run(context.Background(), RunInput{Message: "hi"})
	var proto *ProtocolError
	require.ErrorAs(t, err, &proto)
	assert.Equal(t, ai.RunErrored, th.Status())
}

func TestThreadDroppedEvents(t *testing.T) {
	t.Run("content without active message", func(t *testing.T) {
		runner := &fakeRunner{events: []event.Event{
			{Type: event.TextMessageContent, MessageID: "m1", Delta: "stray"},
			{Type: event.RunFinished},
		}}
		th := New("t1", "room1", runner, nil)

		require.NoError(t, th.Run(context.Background(), RunInput{Message: "hi"}))
		msgs := th.Messages()
		require.Len(t, msgs, 1) // only the user message
	})

	t.Run("args for unknown tool call", func(t *testing.T) {
		runner := &fakeRunner{events: []event.Event{
			{Type: event.ToolCallArgs, ToolCallID: "ghost", Delta: "{}"},
			{Type: event.ToolCallResult, ToolCallID: "ghost", Content: "x"},
			{Type: event.ToolCallEnd, ToolCallID: "ghost"},
			{Type: event.RunFinished},
		}}
		th := New("t1", "room1", runner, nil)

		require.NoError(t, th.Run(context.Background(), RunInput{Message: "hi"}))
		_, ok := th.ToolCall("ghost")
		assert.False(t, ok)
	})

	t.Run("unknown event type ignored", func(t *testing.T) {
		runner := &fakeRunner{events: []event.Event{
			{Type: event.Unknown, RawType: "SHINY_NEW_EVENT"},
			{Type: event.Custom, Name: "ping"},
			{Type: event.RunFinished},
		}}
		th := New("t1", "room1", runner, nil)
		require.NoError(t, th.Run(context.Background(), RunInput{Message: "hi"}))
		assert.Equal(t, ai.RunFinished, th.Status())
	})
}

func TestThreadToolCallFromStream(t *testing.T) {
	runner := &fakeRunner{events: []event.Event{
		{Type: event.ToolCallStart, ToolCallID: "c1", ToolCallName: "search", ParentMessageID: "m1"},
		{Type: event.ToolCallArgs, ToolCallID: "c1", Delta: `{"q":"go"}`},
		{Type: event.ToolCallEnd, ToolCallID: "c1"},
		{Type: event.ToolCallResult, ToolCallID: "c1", Content: "3 results"},
		{Type: event.RunFinished},
	}}
	th := New("t1", "room1", runner, nil)

	require.NoError(t, th.Run(context.Background(), RunInput{Message: "hi"}))

	info, ok := th.ToolCall("c1")
	require.True(t, ok)
	assert.Equal(t, "search", info.Name)
	assert.Equal(t, `{"q":"go"}`, info.Arguments)
	assert.Equal(t, "3 results", info.Result)
	assert.True(t, info.HasResult)
	assert.Equal(t, ai.ToolCallCompleted, info.Status)

	// Calls stay tracked until explicitly removed.
	_, ok = th.RemoveToolCall("c1")
	require.True(t, ok)
	_, ok = th.ToolCall("c1")
	assert.False(t, ok)
}

func TestThreadToolCallLocalExecution(t *testing.T) {
	registry := tool.NewRegistry()
	registry.MustRegister("current_time", func(ctx context.Context, call ai.ToolCallInfo) (string, error) {
		return "12:00", nil
	})

	runner := &fakeRunner{events: []event.Event{
		{Type: event.ToolCallStart, ToolCallID: "c1", ToolCallName: "current_time"},
		{Type: event.ToolCallEnd, ToolCallID: "c1"},
		{Type: event.RunFinished},
	}}
	th := New("t1", "room1", runner, registry)

	require.NoError(t, th.Run(context.Background(), RunInput{Message: "what time is it"}))

	// Dispatch runs on its own goroutine; the result lands slightly after Run
	// returns.
	require.Eventually(t, func() bool {
		info, ok := th.ToolCall("c1")
		return ok && info.HasResult && info.Result == "12:00"
	}, 2*time.Second, 10*time.Millisecond)

	info, _ := th.ToolCall("c1")
	assert.Equal(t, ai.ToolCallCompleted, info.Status)
}

func TestThreadToolCallLocalFailure(t *testing.T) {
	registry := tool.NewRegistry()
	registry.MustRegister("flaky", func(ctx context.Context, call ai.ToolCallInfo) (string, error) {
		return "", errors.New("no backend")
	})

	runner := &fakeRunner{events: []event.Event{
		{Type: event.ToolCallStart, ToolCallID: "c1", ToolCallName: "flaky"},
		{Type: event.ToolCallEnd, ToolCallID: "c1"},
		{Type: event.RunFinished},
	}}
	th := New("t1", "room1", runner, registry)

	require.NoError(t, th.Run(context.Background(), RunInput{Message: "hi"}))

	require.Eventually(t, func() bool {
		info, ok := th.ToolCall("c1")
		return ok && info.Status == ai.ToolCallFailed
	}, 2*time.Second, 10*time.Millisecond)
}

func TestThreadBackendResultWinsOverLocalExecution(t *testing.T) {
	release := make(chan struct{})
	done := make(chan struct{})
	registry := tool.NewRegistry()
	registry.MustRegister("lookup", func(ctx context.Context, call ai.ToolCallInfo) (string, error) {
		defer close(done)
		<-release
		return "", errors.New("late local failure")
	})

	runner := &fakeRunner{events: []event.Event{
		{Type: event.ToolCallStart, ToolCallID: "c1", ToolCallName: "lookup"},
		{Type: event.ToolCallEnd, ToolCallID: "c1"},
		{Type: event.ToolCallResult, ToolCallID: "c1", Content: "backend answer"},
		{Type: event.RunFinished},
	}}
	th := New("t1", "room1", runner, registry)

	require.NoError(t, th.Run(context.Background(), RunInput{Message: "hi"}))

	info, ok := th.ToolCall("c1")
	require.True(t, ok)
	assert.Equal(t, ai.ToolCallCompleted, info.Status)
	assert.Equal(t, "backend answer", info.Result)

	// The local executor finishes after the backend result has landed; its
	// failure must not demote the completed call.
	close(release)
	<-done
	time.Sleep(50 * time.Millisecond)

	info, ok = th.ToolCall("c1")
	require.True(t, ok)
	assert.Equal(t, ai.ToolCallCompleted, info.Status)
	assert.True(t, info.HasResult)
	assert.Equal(t, "backend answer", info.Result)
}

func TestThreadToolCallUnregisteredStaysPending(t *testing.T) {
	registry := tool.NewRegistry()

	runner := &fakeRunner{events: []event.Event{
		{Type: event.ToolCallStart, ToolCallID: "c1", ToolCallName: "server_side_tool"},
		{Type: event.ToolCallEnd, ToolCallID: "c1"},
		{Type: event.RunFinished},
	}}
	th := New("t1", "room1", runner, registry)

	require.NoError(t, th.Run(context.Background(), RunInput{Message: "hi"}))

	require.Eventually(t, func() bool {
		info, ok := th.ToolCall("c1")
		return ok && info.Status == ai.ToolCallPending
	}, 2*time.Second, 10*time.Millisecond)
}

func TestThreadMessagesSnapshot(t *testing.T) {
	runner := &fakeRunner{events: []event.Event{
		{Type: event.MessagesSnapshot, Messages: []event.Message{
			{ID: "m1", Role: "user", Content: "earlier question"},
			{ID: "m2", Role: "assistant", Content: "earlier answer"},
			{ID: "m3", Role: "assistant", ToolCalls: []event.MessageToolCall{
				{ID: "c9", Name: "search", Arguments: `{"q":1}`},
			}},
		}},
		{Type: event.RunFinished},
	}}
	th := New("t1", "room1", runner, nil)

	require.NoError(t, th.Run(context.Background(), RunInput{Message: "hi"}))

	msgs := th.Messages()
	require.Len(t, msgs, 3) // snapshot replaces the whole list
	assert.Equal(t, ai.RoleUser, msgs[0].User)
	assert.Equal(t, "earlier answer", msgs[1].Text)
	assert.Equal(t, ai.MessageTypeToolCall, msgs[2].Type)
	require.Len(t, msgs[2].ToolCalls, 1)
	assert.Equal(t, "c9", msgs[2].ToolCalls[0].ID)
}

func TestThreadInitialState(t *testing.T) {
	runner := &fakeRunner{events: []event.Event{{Type: event.RunFinished}}}
	th := New("t1", "room1", runner, nil)

	require.NoError(t, th.Run(context.Background(), RunInput{
		Message:      "hi",
		InitialState: map[string]any{"lang": "no"},
	}))

	assert.Equal(t, "no", th.State()["lang"])
	assert.Equal(t, map[string]any{"lang": "no"}, runner.req.State)
}

func TestThreadReset(t *testing.T) {
	runner := &fakeRunner{events: []event.Event{
		{Type: event.TextMessageStart, MessageID: "m1"},
		{Type: event.TextMessageContent, MessageID: "m1", Delta: "hello"},
		{Type: event.TextMessageEnd, MessageID: "m1"},
		{Type: event.StateSnapshot, Snapshot: map[string]any{"a": 1}},
		{Type: event.ToolCallStart, ToolCallID: "c1", ToolCallName: "search"},
		{Type: event.RunFinished},
	}}
	th := New("t1", "room1", runner, nil)
	require.NoError(t, th.Run(context.Background(), RunInput{Message: "hi"}))

	th.Reset()

	assert.Equal(t, ai.RunIdle, th.Status())
	assert.Equal(t, "", th.RunID())
	assert.Empty(t, th.Messages())
	assert.Empty(t, th.State())
	_, ok := th.ToolCall("c1")
	assert.False(t, ok)
}

func TestThreadUpdates(t *testing.T) {
	runner := &fakeRunner{events: []event.Event{
		{Type: event.TextMessageStart, MessageID: "m1"},
		{Type: event.TextMessageContent, MessageID: "m1", Delta: "hi"},
		{Type: event.TextMessageEnd, MessageID: "m1"},
		{Type: event.RunFinished},
	}}
	th := New("t1", "room1", runner, nil)

	require.NoError(t, th.Run(context.Background(), RunInput{Message: "hello"}))

	// Drain the buffered notifications and check both kinds showed up.
	seen := map[UpdateKind]bool{}
	for {
		select {
		case u := <-th.Updates():
			seen[u.Kind] = true
		default:
			assert.True(t, seen[UpdateMessages])
			assert.True(t, seen[UpdateStatus])
			return
		}
	}
}

func TestThreadStreamingMessageVisible(t *testing.T) {
	release := make(chan struct{})
	ch := make(chan transport.StreamEvent)
	runner := runnerFunc(func(ctx context.Context, roomID, threadID, runID string, req transport.RunRequest) <-chan transport.StreamEvent {
		return ch
	})
	th := New("t1", "room1", runner, nil)

	done := make(chan error, 1)
	go func() {
		done <- th.Run(context.Background(), RunInput{Message: "hi"})
	}()
	go func() {
		ch <- transport.StreamEvent{Event: event.Event{Type: event.TextMessageStart, MessageID: "m1"}}
		ch <- transport.StreamEvent{Event: event.Event{Type: event.TextMessageContent, MessageID: "m1", Delta: "par"}}
		ch <- transport.StreamEvent{Event: event.Event{Type: event.TextMessageContent, MessageID: "m1", Delta: "tial"}}
		<-release
		ch <- transport.StreamEvent{Event: event.Event{Type: event.TextMessageEnd, MessageID: "m1"}}
		ch <- transport.StreamEvent{Event: event.Event{Type: event.RunFinished}}
		close(ch)
	}()

	// Mid-stream the partial message is visible and flagged as streaming.
	require.Eventually(t, func() bool {
		msgs := th.Messages()
		return len(msgs) == 2 && msgs[1].Text == "partial"
	}, 2*time.Second, 5*time.Millisecond)
	msgs := th.Messages()
	assert.True(t, msgs[1].IsStreaming)

	close(release)
	require.NoError(t, <-done)
	msgs = th.Messages()
	assert.False(t, msgs[1].IsStreaming)
	assert.Equal(t, "partial", msgs[1].Text)
}

func TestThreadEndToEndFromWire(t *testing.T) {
	raw := "data: {\"type\":\"RUN_STARTED\",\"thread_id\":\"t\",\"run_id\":\"r\"}\n\n" +
		"data: {\"type\":\"TEXT_MESSAGE_START\",\"message_id\":\"m1\"}\n\n" +
		"data: {\"type\":\"TEXT_MESSAGE_CONTENT\",\"message_id\":\"m1\",\"delta\":\"Hi\"}\n\n" +
		"data: {\"type\":\"TEXT_MESSAGE_END\",\"message_id\":\"m1\"}\n\n" +
		"data: {\"type\":\"RUN_FINISHED\",\"thread_id\":\"t\",\"run_id\":\"r\"}\n\n"

	var decoded int
	runner := runnerFunc(func(ctx context.Context, roomID, threadID, runID string, req transport.RunRequest) <-chan transport.StreamEvent {
		ch := make(chan transport.StreamEvent)
		go func() {
			defer close(ch)
			dec := sse.NewDecoder(strings.NewReader(raw))
			for {
				ev, err := dec.Next()
				if err != nil {
					return
				}
				decoded++
				ch <- transport.StreamEvent{Event: ev}
			}
		}()
		return ch
	})
	th := New("t", "room1", runner, nil)

	require.NoError(t, th.Run(context.Background(), RunInput{RunID: "r", Message: "hello"}))

	assert.Equal(t, 5, decoded)
	assert.Equal(t, ai.RunFinished, th.Status())
	msgs := th.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "m1", msgs[1].ID)
	assert.Equal(t, "Hi", msgs[1].Text)
}

// runnerFunc adapts a function to the Runner interface.
type runnerFunc func(ctx context.Context, roomID, threadID, runID string, req transport.RunRequest) <-chan transport.StreamEvent

func (f runnerFunc) RunAgent(ctx context.Context, roomID, threadID, runID string, req transport.RunRequest) <-chan transport.StreamEvent {
	return f(ctx, roomID, threadID, runID, req)
}
