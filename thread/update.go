package thread

// UpdateKind identifies what part of the thread's state changed.
type UpdateKind string

const (
	// UpdateMessages fires when the message list changed, including
	// in-place mutation of a streaming message.
	UpdateMessages UpdateKind = "messages"

	// UpdateState fires when the state object changed.
	UpdateState UpdateKind = "state"

	// UpdateStatus fires when the run status changed.
	UpdateStatus UpdateKind = "status"

	// UpdateToolCalls fires when a tool call started, progressed or
	// received a result.
	UpdateToolCalls UpdateKind = "toolCalls"
)

// Update is a change notification for reactive UI binding. Updates carry no
// payload; consumers read the thread's accessors, which always reflect the
// latest state. Notifications may be dropped when the consumer lags, but
// the underlying state mutations are never reordered or lost.
type Update struct {
	Kind UpdateKind
}

// notify emits an update without blocking. A full channel drops the
// notification; the consumer observes the change on its next read.
func (t *Thread) notify(kind UpdateKind) {
	if t.updates == nil {
		return
	}
	select {
	case t.updates <- Update{Kind: kind}:
	default:
	}
}
