package tool

import (
	"context"
	"encoding/json"

	ai "github.com/spetersoncode/strand"
)

// Handler is a function that executes a tool call and returns a result.
// The context supports cancellation and timeout.
// The call carries the tool name, id, and accumulated arguments as a JSON
// string. Returns the result content string, or an error if execution failed.
type Handler func(ctx context.Context, call ai.ToolCallInfo) (string, error)

// TypedHandler is a function that executes a tool call with typed arguments.
// The args parameter is automatically unmarshaled from the call's JSON
// arguments.
type TypedHandler[T any] func(ctx context.Context, args T) (string, error)

// Typed wraps a TypedHandler into a Handler, unmarshaling the call's
// arguments into T before invoking fn. Empty arguments decode to T's zero
// value.
func Typed[T any](fn TypedHandler[T]) Handler {
	return func(ctx context.Context, call ai.ToolCallInfo) (string, error) {
		var args T
		if call.Arguments != "" {
			if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
				return "", &ErrInvalidArguments{Name: call.Name, Err: err}
			}
		}
		return fn(ctx, args)
	}
}
