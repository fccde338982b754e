// Command aguitail runs a single prompt against an AG-UI backend and tails
// the resulting run: streamed text is printed as it arrives, followed by
// the final message list and state object.
//
// Configuration is via environment variables (a .env file is honored):
//
//	AGUI_BASE_URL - Backend base URL (default: http://localhost:8080)
//	AGUI_TOKEN    - Optional bearer token
//	AGUI_ROOM     - Room id (default: lobby)
//
// Usage:
//
//	go run ./cmd/aguitail "what time is it?"
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	ai "github.com/spetersoncode/strand"
	"github.com/spetersoncode/strand/thread"
	"github.com/spetersoncode/strand/tool"
	"github.com/spetersoncode/strand/transport"
)

func main() {
	godotenv.Load()

	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: aguitail <message>")
		os.Exit(2)
	}
	message := strings.Join(os.Args[1:], " ")

	baseURL := envOrDefault("AGUI_BASE_URL", "http://localhost:8080")
	room := envOrDefault("AGUI_ROOM", "lobby")

	headers := map[string]string{}
	if token := os.Getenv("AGUI_TOKEN"); token != "" {
		headers["Authorization"] = "Bearer " + token
	}

	client := transport.New(transport.Config{
		BaseURL: baseURL,
		Headers: headers,
	})

	registry := tool.NewRegistry()
	registry.MustRegister("current_time", func(ctx context.Context, call ai.ToolCallInfo) (string, error) {
		return time.Now().UTC().Format(time.RFC3339), nil
	}, tool.WithDescription("Report the current UTC time"))

	th := thread.New(ai.GenerateThreadID(), room, client, registry)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	// Tail streamed text as it accumulates.
	done := make(chan struct{})
	go tailUpdates(th, done)

	err := th.Run(ctx, thread.RunInput{Message: message})
	close(done)
	fmt.Println()

	if err != nil {
		slog.Error("run failed", "error", err, "status", th.Status())
		os.Exit(1)
	}

	fmt.Println("--- messages ---")
	for _, msg := range th.Messages() {
		fmt.Printf("[%s] %s\n", msg.User, msg.Text)
	}
	if state := th.State(); len(state) > 0 {
		raw, _ := json.MarshalIndent(state, "", "  ")
		fmt.Println("--- state ---")
		fmt.Println(string(raw))
	}
}

// tailUpdates prints streaming assistant text as the thread mutates it.
func tailUpdates(th *thread.Thread, done <-chan struct{}) {
	var printed int
	for {
		select {
		case <-done:
			return
		case u := <-th.Updates():
			if u.Kind != thread.UpdateMessages {
				continue
			}
			msgs := th.Messages()
			if len(msgs) == 0 {
				continue
			}
			last := msgs[len(msgs)-1]
			if last.User != ai.RoleAssistant {
				continue
			}
			if len(last.Text) > printed {
				fmt.Print(last.Text[printed:])
				printed = len(last.Text)
			}
		}
	}
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
