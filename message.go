package strand

import (
	"time"

	"github.com/google/uuid"
)

// Role represents the role of a message sender in a conversation.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// ParseRole converts a wire role string to a Role.
// Unrecognized strings default to RoleAssistant: snapshot payloads are
// allowed to carry roles this client does not model.
func ParseRole(s string) Role {
	switch s {
	case string(RoleUser):
		return RoleUser
	case string(RoleAssistant):
		return RoleAssistant
	case string(RoleSystem):
		return RoleSystem
	default:
		return RoleAssistant
	}
}

// MessageType classifies how a ChatMessage should be presented.
type MessageType string

const (
	MessageTypeText     MessageType = "text"
	MessageTypeError    MessageType = "error"
	MessageTypeToolCall MessageType = "toolCall"
	MessageTypeGenUI    MessageType = "genUi"
	MessageTypeLoading  MessageType = "loading"
)

// ToolCallStatus tracks a tool call through its lifecycle.
type ToolCallStatus string

const (
	ToolCallPending   ToolCallStatus = "pending"
	ToolCallExecuting ToolCallStatus = "executing"
	ToolCallCompleted ToolCallStatus = "completed"
	ToolCallFailed    ToolCallStatus = "failed"
)

// ToolCallInfo describes one tool call as observed from the event stream.
type ToolCallInfo struct {
	// ID uniquely identifies the call within its run.
	ID string `json:"id"`
	// Name is the tool name to invoke.
	Name string `json:"name"`
	// ParentMessageID links the call to the assistant message that issued it,
	// when the backend provides that linkage.
	ParentMessageID string `json:"parentMessageId,omitempty"`
	// Arguments is the accumulated raw argument string, expected to be JSON text.
	Arguments string `json:"arguments,omitempty"`
	// Status is the call's lifecycle state.
	Status ToolCallStatus `json:"status"`
	// Result is the tool's result content, if one has been received.
	Result string `json:"result,omitempty"`
	// HasResult distinguishes an empty result from no result.
	HasResult bool `json:"hasResult,omitempty"`
	// StartedAt is when the call was first observed.
	StartedAt time.Time `json:"startedAt,omitzero"`
	// CompletedAt is when the call received its result.
	CompletedAt time.Time `json:"completedAt,omitzero"`
}

// ChatMessage represents a single message in a conversation.
//
// Identity is the ID alone: two messages with the same ID are the same
// logical message regardless of content, which is what lets a streaming
// message be replaced in place as deltas arrive.
type ChatMessage struct {
	// ID is the stable unique identifier for the message.
	ID string `json:"id"`
	// User is the role of the sender.
	User Role `json:"user"`
	// Type classifies the message for presentation.
	Type MessageType `json:"type"`
	// Text is the message content, when present.
	Text string `json:"text,omitempty"`
	// IsStreaming is true while Text is still accumulating.
	IsStreaming bool `json:"isStreaming,omitempty"`
	// ThinkingText holds model reasoning shown separately from Text.
	ThinkingText string `json:"thinkingText,omitempty"`
	// IsThinkingStreaming is true while ThinkingText is still accumulating.
	IsThinkingStreaming bool `json:"isThinkingStreaming,omitempty"`
	// ToolCalls lists tool calls attached to this message.
	ToolCalls []ToolCallInfo `json:"toolCalls,omitempty"`
	// ErrorMessage carries the error description for error messages.
	ErrorMessage string `json:"errorMessage,omitempty"`
	// CreatedAt is when the message was finalized.
	CreatedAt time.Time `json:"createdAt,omitzero"`
}

// Equal reports whether two messages are the same logical message.
// Equality is defined by ID alone.
func (m ChatMessage) Equal(other ChatMessage) bool {
	return m.ID == other.ID
}

// GenerateMessageID creates a unique message identifier.
func GenerateMessageID() string {
	return "msg-" + uuid.New().String()
}

// GenerateRunID creates a unique run identifier.
func GenerateRunID() string {
	return "run-" + uuid.New().String()
}

// GenerateThreadID creates a unique thread identifier.
func GenerateThreadID() string {
	return "thread-" + uuid.New().String()
}

// RunStatus is the lifecycle state of a thread's current run.
type RunStatus string

const (
	// RunIdle means no run has started or the thread has been reset.
	RunIdle RunStatus = "idle"
	// RunRunning means a run is in flight and events are being processed.
	RunRunning RunStatus = "running"
	// RunFinished means the run completed successfully.
	RunFinished RunStatus = "finished"
	// RunErrored means the run terminated with a backend or transport error.
	RunErrored RunStatus = "error"
)
