// Package state projects agent state updates onto an arbitrary JSON object.
//
// The backend sends state either as full snapshots or as JSON-Patch-style
// deltas. Only the add, replace and remove operations are applied; move,
// copy and test are a deliberately scoped-out subset and are silently
// ignored.
package state

import (
	"strings"

	"github.com/spetersoncode/strand/event"
)

// Patch operation names from RFC 6902. Only the first three are applied.
const (
	OpAdd     = "add"
	OpReplace = "replace"
	OpRemove  = "remove"
)

// Store holds one thread's state object. It is single-writer: only the
// owning thread's event loop mutates it.
type Store struct {
	data map[string]any
}

// New creates an empty store.
func New() *Store {
	return &Store{data: map[string]any{}}
}

// SetSnapshot replaces the entire state object with a deep copy of snapshot.
func (s *Store) SetSnapshot(snapshot map[string]any) {
	s.data = deepCopyMap(snapshot)
}

// Apply applies patch operations in order. add and replace set the value at
// a slash-delimited path, creating intermediate maps as needed; remove
// deletes the value at a path and is a no-op when any part of the path does
// not exist. Unsupported operations are ignored.
func (s *Store) Apply(ops []event.PatchOp) {
	for _, op := range ops {
		switch op.Op {
		case OpAdd, OpReplace:
			s.set(op.Path, op.Value)
		case OpRemove:
			s.remove(op.Path)
		}
	}
}

// Get returns the value at a slash-delimited path, or false if absent.
func (s *Store) Get(path string) (any, bool) {
	keys := splitPath(path)
	if len(keys) == 0 {
		return nil, false
	}
	current := s.data
	for i, key := range keys {
		v, ok := current[key]
		if !ok {
			return nil, false
		}
		if i == len(keys)-1 {
			return v, true
		}
		current, ok = v.(map[string]any)
		if !ok {
			return nil, false
		}
	}
	return nil, false
}

// Snapshot returns a deep copy of the state object for readers.
func (s *Store) Snapshot() map[string]any {
	return deepCopyMap(s.data)
}

// Len returns the number of top-level keys.
func (s *Store) Len() int {
	return len(s.data)
}

// Reset clears the state object.
func (s *Store) Reset() {
	s.data = map[string]any{}
}

// set walks the path, creating intermediate maps as needed, and sets the
// leaf value. A non-map intermediate value is overwritten with a map.
func (s *Store) set(path string, value any) {
	keys := splitPath(path)
	if len(keys) == 0 {
		return
	}
	current := s.data
	for _, key := range keys[:len(keys)-1] {
		next, ok := current[key].(map[string]any)
		if !ok {
			next = map[string]any{}
			current[key] = next
		}
		current = next
	}
	current[keys[len(keys)-1]] = value
}

// remove deletes the value at path. Missing paths, even partway through,
// are a no-op.
func (s *Store) remove(path string) {
	keys := splitPath(path)
	if len(keys) == 0 {
		return
	}
	current := s.data
	for _, key := range keys[:len(keys)-1] {
		next, ok := current[key].(map[string]any)
		if !ok {
			return
		}
		current = next
	}
	delete(current, keys[len(keys)-1])
}

// splitPath splits a JSON-Pointer-style path into keys, dropping empty
// segments from leading or doubled slashes.
func splitPath(path string) []string {
	parts := strings.Split(path, "/")
	keys := parts[:0]
	for _, p := range parts {
		if p != "" {
			keys = append(keys, p)
		}
	}
	return keys
}

// deepCopyMap recursively copies a JSON-like map. Slices and nested maps
// are copied; scalar values are shared (they are immutable once decoded).
func deepCopyMap(src map[string]any) map[string]any {
	dst := make(map[string]any, len(src))
	for k, v := range src {
		dst[k] = deepCopyValue(v)
	}
	return dst
}

func deepCopyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return deepCopyMap(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = deepCopyValue(item)
		}
		return out
	default:
		return v
	}
}
