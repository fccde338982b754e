package main

import (
	"strings"

	aguievents "github.com/ag-ui-protocol/ag-ui/sdks/community/go/pkg/core/events"
)

// script drives one canned run: lifecycle events, a streamed text reply, a
// demo tool call, and state updates. Lifecycle, text and tool events go
// through the AG-UI SDK constructors; state events are written raw because
// the SDK does not construct them.
func script(s *streamer, threadID, runID string, input RunRequest) {
	s.event(aguievents.NewRunStartedEvent(threadID, runID))
	s.event(aguievents.NewStepStartedEvent("respond"))

	s.rawf(`{"type":"STATE_SNAPSHOT","snapshot":{"turns":1,"last_message":"%s"}}`,
		jsonEscape(input.Message))

	// Stream the reply word by word.
	messageID := aguievents.GenerateMessageID()
	s.event(aguievents.NewTextMessageStartEvent(messageID, aguievents.WithRole("assistant")))
	reply := "You said: " + input.Message
	for _, word := range strings.SplitAfter(reply, " ") {
		s.event(aguievents.NewTextMessageContentEvent(messageID, word))
	}
	s.event(aguievents.NewTextMessageEndEvent(messageID))

	// A local tool call the client may execute.
	if strings.Contains(strings.ToLower(input.Message), "time") {
		callID := "call-" + runID
		s.event(aguievents.NewToolCallStartEvent(callID, "current_time"))
		s.event(aguievents.NewToolCallArgsEvent(callID, `{"timezone":`))
		s.event(aguievents.NewToolCallArgsEvent(callID, `"UTC"}`))
		s.event(aguievents.NewToolCallEndEvent(callID))
	}

	s.rawf(`{"type":"STATE_DELTA","delta":[{"op":"replace","path":"/turns","value":2},{"op":"add","path":"/meta/run_id","value":"%s"}]}`,
		jsonEscape(runID))

	s.event(aguievents.NewStepFinishedEvent("respond"))
	s.event(aguievents.NewRunFinishedEvent(threadID, runID))
}
