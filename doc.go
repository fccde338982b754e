// Package strand is a client engine for the AG-UI (Agentic Generative UI)
// streaming protocol. It consumes Server-Sent-Events streams from an agent
// backend, decodes them into typed events, and folds the event sequence into
// conversation state: messages, streaming text, tool-call lifecycles, and an
// arbitrary JSON state object.
//
// # Packages
//
// The root package holds the shared data types ([ChatMessage],
// [ToolCallInfo], [RunStatus]) and the categorized error type used by the
// transport layer. Behavior lives in subpackages:
//
//   - [github.com/spetersoncode/strand/event]: the wire event model with
//     permissive decoding (unknown event types never fail a stream)
//   - [github.com/spetersoncode/strand/sse]: the SSE record decoder
//   - [github.com/spetersoncode/strand/buffer]: accumulators for in-flight
//     text messages and concurrent tool calls
//   - [github.com/spetersoncode/strand/state]: snapshot/delta projection of
//     the agent state object (JSON-Patch subset)
//   - [github.com/spetersoncode/strand/tool]: the name-to-executor registry
//     for locally executed tools
//   - [github.com/spetersoncode/strand/thread]: the run engine that drives
//     one conversation thread through a run
//   - [github.com/spetersoncode/strand/transport]: the authenticated
//     HTTP/SSE client with retry and single-flight credential refresh
//   - [github.com/spetersoncode/strand/session]: the multi-server,
//     multi-room session registry with LRU and inactivity eviction
//
// # Basic Usage
//
// Run a prompt against an AG-UI backend and read the resulting messages:
//
//	client := transport.New(transport.Config{BaseURL: "https://agent.example.com"})
//	th := thread.New("thread-1", "lobby", client, tool.NewRegistry())
//
//	if err := th.Run(ctx, thread.RunInput{Message: "hello"}); err != nil {
//	    log.Fatal(err)
//	}
//	for _, msg := range th.Messages() {
//	    fmt.Println(msg.Text)
//	}
package strand
