package tool

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ai "github.com/spetersoncode/strand"
)

func echoHandler(ctx context.Context, call ai.ToolCallInfo) (string, error) {
	return call.Arguments, nil
}

func TestRegistryRegister(t *testing.T) {
	t.Run("register and query", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.Register("echo", echoHandler, WithDescription("echoes arguments")))

		assert.True(t, r.Has("echo"))
		assert.Equal(t, "echoes arguments", r.Description("echo"))
		assert.Equal(t, []string{"echo"}, r.Names())
		assert.Equal(t, 1, r.Len())
	})

	t.Run("duplicate name", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.Register("echo", echoHandler))

		err := r.Register("echo", echoHandler)
		var dup *ErrToolAlreadyRegistered
		require.ErrorAs(t, err, &dup)
		assert.Equal(t, "echo", dup.Name)
	})

	t.Run("unregister then reregister", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.Register("echo", echoHandler))

		assert.True(t, r.Unregister("echo"))
		assert.False(t, r.Unregister("echo"))
		require.NoError(t, r.Register("echo", echoHandler))
	})

	t.Run("must register panics on duplicate", func(t *testing.T) {
		r := NewRegistry()
		r.MustRegister("echo", echoHandler)
		assert.Panics(t, func() {
			r.MustRegister("echo", echoHandler)
		})
	})
}

func TestRegistryExecute(t *testing.T) {
	t.Run("registered tool", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.Register("echo", echoHandler))

		result, ok, err := r.Execute(context.Background(), ai.ToolCallInfo{Name: "echo", Arguments: `{"x":1}`})
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, `{"x":1}`, result)
	})

	t.Run("unregistered tool is not an error", func(t *testing.T) {
		r := NewRegistry()
		result, ok, err := r.Execute(context.Background(), ai.ToolCallInfo{Name: "missing"})
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, "", result)
	})

	t.Run("handler error wrapped", func(t *testing.T) {
		r := NewRegistry()
		cause := errors.New("backend down")
		require.NoError(t, r.Register("flaky", func(ctx context.Context, call ai.ToolCallInfo) (string, error) {
			return "", cause
		}))

		_, ok, err := r.Execute(context.Background(), ai.ToolCallInfo{Name: "flaky"})
		assert.False(t, ok)
		var exec *ErrToolExecution
		require.ErrorAs(t, err, &exec)
		assert.Equal(t, "flaky", exec.Name)
		assert.ErrorIs(t, err, cause)
	})

	t.Run("fire and forget returns immediately", func(t *testing.T) {
		r := NewRegistry()
		var wg sync.WaitGroup
		wg.Add(1)
		require.NoError(t, r.Register("notify", func(ctx context.Context, call ai.ToolCallInfo) (string, error) {
			defer wg.Done()
			return "ignored", nil
		}, FireAndForget()))

		result, ok, err := r.Execute(context.Background(), ai.ToolCallInfo{Name: "notify"})
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, "", result)
		wg.Wait()
	})

	t.Run("fire and forget panic recovered", func(t *testing.T) {
		r := NewRegistry()
		done := make(chan struct{})
		require.NoError(t, r.Register("explode", func(ctx context.Context, call ai.ToolCallInfo) (string, error) {
			defer close(done)
			panic("boom")
		}, FireAndForget()))

		_, _, err := r.Execute(context.Background(), ai.ToolCallInfo{Name: "explode"})
		require.NoError(t, err)
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("handler never ran")
		}
	})
}

func TestRegistryExecuteOrDefault(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("echo", echoHandler))

	result, err := r.ExecuteOrDefault(context.Background(), ai.ToolCallInfo{Name: "echo", Arguments: "hi"}, "fallback")
	require.NoError(t, err)
	assert.Equal(t, "hi", result)

	result, err = r.ExecuteOrDefault(context.Background(), ai.ToolCallInfo{Name: "missing"}, "fallback")
	require.NoError(t, err)
	assert.Equal(t, "fallback", result)
}

func TestTypedHandler(t *testing.T) {
	type weatherArgs struct {
		City string `json:"city"`
	}

	t.Run("arguments unmarshaled", func(t *testing.T) {
		h := Typed(func(ctx context.Context, args weatherArgs) (string, error) {
			return "sunny in " + args.City, nil
		})
		result, err := h(context.Background(), ai.ToolCallInfo{Name: "weather", Arguments: `{"city":"Oslo"}`})
		require.NoError(t, err)
		assert.Equal(t, "sunny in Oslo", result)
	})

	t.Run("empty arguments decode to zero value", func(t *testing.T) {
		h := Typed(func(ctx context.Context, args weatherArgs) (string, error) {
			return args.City, nil
		})
		result, err := h(context.Background(), ai.ToolCallInfo{Name: "weather"})
		require.NoError(t, err)
		assert.Equal(t, "", result)
	})

	t.Run("invalid arguments", func(t *testing.T) {
		h := Typed(func(ctx context.Context, args weatherArgs) (string, error) {
			return "", nil
		})
		_, err := h(context.Background(), ai.ToolCallInfo{Name: "weather", Arguments: "{broken"})
		var invalid *ErrInvalidArguments
		require.ErrorAs(t, err, &invalid)
		assert.Equal(t, "weather", invalid.Name)
	})
}
