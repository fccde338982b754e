package event

import "encoding/json"

// Decode unmarshals a single JSON envelope and decodes it into an Event.
// The only possible error is malformed JSON; once the envelope parses as an
// object, decoding always succeeds (see DecodeObject).
func Decode(data []byte) (Event, error) {
	var obj map[string]any
	if err := json.Unmarshal(data, &obj); err != nil {
		return Event{}, err
	}
	return DecodeObject(obj), nil
}

// DecodeObject decodes a parsed JSON envelope into an Event. It never
// fails: unknown type strings produce an Unknown event preserving the raw
// envelope, and missing fields within a known variant default to zero
// values rather than raising.
func DecodeObject(obj map[string]any) Event {
	typ, _ := obj["type"].(string)

	switch Type(typ) {
	case RunStarted:
		return Event{
			Type:     RunStarted,
			ThreadID: str(obj, "thread_id", "threadId"),
			RunID:    str(obj, "run_id", "runId"),
		}
	case RunFinished:
		return Event{
			Type:     RunFinished,
			ThreadID: str(obj, "thread_id", "threadId"),
			RunID:    str(obj, "run_id", "runId"),
			Result:   obj["result"],
		}
	case RunError:
		return Event{
			Type:     RunError,
			ThreadID: str(obj, "thread_id", "threadId"),
			RunID:    str(obj, "run_id", "runId"),
			Message:  str(obj, "message"),
			Code:     str(obj, "code"),
		}
	case StepStarted, StepFinished:
		return Event{
			Type:     Type(typ),
			StepName: str(obj, "step_name", "stepName"),
		}
	case TextMessageStart:
		return Event{
			Type:      TextMessageStart,
			MessageID: str(obj, "message_id", "messageId"),
		}
	case TextMessageContent:
		return Event{
			Type:      TextMessageContent,
			MessageID: str(obj, "message_id", "messageId"),
			Delta:     str(obj, "delta"),
		}
	case TextMessageEnd:
		return Event{
			Type:      TextMessageEnd,
			MessageID: str(obj, "message_id", "messageId"),
		}
	case ToolCallStart:
		return Event{
			Type:            ToolCallStart,
			ToolCallID:      str(obj, "tool_call_id", "toolCallId"),
			ToolCallName:    str(obj, "tool_call_name", "toolCallName"),
			ParentMessageID: str(obj, "parent_message_id", "parentMessageId"),
		}
	case ToolCallArgs:
		return Event{
			Type:       ToolCallArgs,
			ToolCallID: str(obj, "tool_call_id", "toolCallId"),
			Delta:      str(obj, "delta"),
		}
	case ToolCallEnd:
		return Event{
			Type:       ToolCallEnd,
			ToolCallID: str(obj, "tool_call_id", "toolCallId"),
		}
	case ToolCallResult:
		return Event{
			Type:       ToolCallResult,
			MessageID:  str(obj, "message_id", "messageId"),
			ToolCallID: str(obj, "tool_call_id", "toolCallId"),
			Content:    str(obj, "content"),
		}
	case StateSnapshot:
		return Event{
			Type:     StateSnapshot,
			Snapshot: objField(obj, "snapshot"),
		}
	case StateDelta:
		return Event{
			Type:  StateDelta,
			Patch: patchOps(obj["delta"]),
		}
	case ActivitySnapshot:
		return Event{
			Type:         ActivitySnapshot,
			MessageID:    str(obj, "message_id", "messageId"),
			ActivityType: str(obj, "activity_type", "activityType"),
			Content:      str(obj, "content"),
		}
	case ActivityDelta:
		return Event{
			Type:         ActivityDelta,
			MessageID:    str(obj, "message_id", "messageId"),
			ActivityType: str(obj, "activity_type", "activityType"),
			Patch:        patchOps(obj["patch"]),
		}
	case MessagesSnapshot:
		return Event{
			Type:     MessagesSnapshot,
			Messages: snapshotMessages(obj["messages"]),
		}
	case Custom:
		return Event{
			Type: Custom,
			Name: str(obj, "name"),
			Data: obj["data"],
		}
	default:
		return Event{
			Type:    Unknown,
			RawType: typ,
			Raw:     obj,
		}
	}
}

// str extracts a string field, trying each key in order and defaulting to
// "" for missing or wrong-typed values. Alternate keys let the decoder
// accept both snake_case and camelCase payloads.
func str(obj map[string]any, keys ...string) string {
	for _, key := range keys {
		if s, ok := obj[key].(string); ok {
			return s
		}
	}
	return ""
}

// objField extracts an object field, defaulting to an empty map.
func objField(obj map[string]any, key string) map[string]any {
	if m, ok := obj[key].(map[string]any); ok {
		return m
	}
	return map[string]any{}
}

// patchOps extracts a JSON-Patch array, skipping malformed entries.
func patchOps(v any) []PatchOp {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	ops := make([]PatchOp, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		ops = append(ops, PatchOp{
			Op:    str(m, "op"),
			Path:  str(m, "path"),
			Value: m["value"],
		})
	}
	return ops
}

// snapshotMessages parses MESSAGES_SNAPSHOT entries defensively. An entry
// that is not an object or lacks a string id is skipped, not fatal.
func snapshotMessages(v any) []Message {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	msgs := make([]Message, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		id := str(m, "id")
		if id == "" {
			continue
		}
		msg := Message{
			ID:      id,
			Role:    str(m, "role"),
			Content: str(m, "content"),
		}
		if calls, ok := m["toolCalls"].([]any); ok {
			for _, c := range calls {
				cm, ok := c.(map[string]any)
				if !ok {
					continue
				}
				call := MessageToolCall{ID: str(cm, "id")}
				if fn, ok := cm["function"].(map[string]any); ok {
					call.Name = str(fn, "name")
					call.Arguments = str(fn, "arguments")
				} else {
					call.Name = str(cm, "name")
					call.Arguments = str(cm, "arguments")
				}
				msg.ToolCalls = append(msg.ToolCalls, call)
			}
		}
		msgs = append(msgs, msg)
	}
	return msgs
}
