// Package event defines the AG-UI wire event model: the closed set of event
// variants an agent backend may emit over SSE, plus a permissive decoder.
//
// Decoding never fails a stream. Unknown type strings decode to an Unknown
// event carrying the raw envelope, and missing fields within a known variant
// default to their zero values. Backend payloads are allowed to omit
// optional detail.
package event

// Type identifies the kind of event, using the AG-UI wire vocabulary.
type Type string

// Run lifecycle events.
const (
	RunStarted  Type = "RUN_STARTED"
	RunFinished Type = "RUN_FINISHED"
	RunError    Type = "RUN_ERROR"
)

// Step lifecycle events. Informational at the thread layer.
const (
	StepStarted  Type = "STEP_STARTED"
	StepFinished Type = "STEP_FINISHED"
)

// Text message lifecycle events.
const (
	TextMessageStart   Type = "TEXT_MESSAGE_START"
	TextMessageContent Type = "TEXT_MESSAGE_CONTENT"
	TextMessageEnd     Type = "TEXT_MESSAGE_END"
)

// Tool call lifecycle events.
const (
	ToolCallStart  Type = "TOOL_CALL_START"
	ToolCallArgs   Type = "TOOL_CALL_ARGS"
	ToolCallEnd    Type = "TOOL_CALL_END"
	ToolCallResult Type = "TOOL_CALL_RESULT"
)

// State and activity events.
const (
	StateSnapshot    Type = "STATE_SNAPSHOT"
	StateDelta       Type = "STATE_DELTA"
	ActivitySnapshot Type = "ACTIVITY_SNAPSHOT"
	ActivityDelta    Type = "ACTIVITY_DELTA"
	MessagesSnapshot Type = "MESSAGES_SNAPSHOT"
)

// Extension events.
const (
	Custom Type = "CUSTOM"
	// Unknown is the fallback for type strings outside the vocabulary.
	// The raw envelope is preserved on the event.
	Unknown Type = "UNKNOWN"
)

// PatchOp is one JSON-Patch-style operation from a STATE_DELTA or
// ACTIVITY_DELTA payload. Only add, replace and remove are applied by the
// state projector; move, copy and test are ignored.
type PatchOp struct {
	Op    string `json:"op"`
	Path  string `json:"path"`
	Value any    `json:"value,omitempty"`
}

// Message is one entry of a MESSAGES_SNAPSHOT payload after defensive
// parsing: id and role are normalized, tool calls flattened.
type Message struct {
	ID        string
	Role      string
	Content   string
	ToolCalls []MessageToolCall
}

// MessageToolCall is a tool call attached to a snapshot message.
type MessageToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// Event represents one decoded AG-UI event. A single struct with a Type
// discriminator models the closed variant set; each variant populates only
// the fields relevant to it. Events are immutable once decoded.
type Event struct {
	// Type identifies the variant.
	Type Type

	// ThreadID and RunID correlate run lifecycle events.
	ThreadID string
	RunID    string

	// Result carries the optional RUN_FINISHED result payload.
	Result any

	// Message and Code describe a RUN_ERROR.
	Message string
	Code    string

	// StepName identifies STEP_STARTED / STEP_FINISHED events.
	StepName string

	// MessageID correlates text message events, and identifies the
	// result-bearing message for TOOL_CALL_RESULT and activity events.
	MessageID string

	// Delta carries streamed content for TEXT_MESSAGE_CONTENT and
	// TOOL_CALL_ARGS events.
	Delta string

	// ToolCallID, ToolCallName and ParentMessageID describe tool call events.
	ToolCallID      string
	ToolCallName    string
	ParentMessageID string

	// Content is the result payload of a TOOL_CALL_RESULT.
	Content string

	// Snapshot is the full state object of a STATE_SNAPSHOT.
	Snapshot map[string]any

	// Patch lists the operations of a STATE_DELTA or ACTIVITY_DELTA.
	Patch []PatchOp

	// ActivityType classifies ACTIVITY_SNAPSHOT / ACTIVITY_DELTA events.
	ActivityType string

	// Messages holds the parsed entries of a MESSAGES_SNAPSHOT.
	Messages []Message

	// Name and Data carry a CUSTOM event's payload.
	Name string
	Data any

	// RawType is the wire type string for Unknown events.
	RawType string
	// Raw preserves the full envelope for Unknown events.
	Raw map[string]any
}
