package store

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryClient is an in-process Client backed by a nested map. It
// serves tests and deployments that run without a configured database,
// where losing the tree on restart is acceptable.
type MemoryClient struct {
	mu   sync.Mutex
	root map[string]any
}

func NewMemoryClient() *MemoryClient {
	return &MemoryClient{root: make(map[string]any)}
}

func splitPath(path string) []string {
	raw := strings.Split(strings.Trim(path, "/"), "/")
	parts := raw[:0]
	for _, p := range raw {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

// toJSONValue round-trips v through encoding/json so the tree only
// ever holds maps, slices, and primitives, never caller-owned structs.
func toJSONValue(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// lookup walks the tree. Callers hold mu.
func (m *MemoryClient) lookup(parts []string) (any, bool) {
	var cur any = m.root
	for _, p := range parts {
		node, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = node[p]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// setValue writes v at parts, creating parent objects as needed.
// Callers hold mu.
func (m *MemoryClient) setValue(parts []string, v any) {
	parent := m.root
	for _, p := range parts[:len(parts)-1] {
		child, ok := parent[p].(map[string]any)
		if !ok {
			child = make(map[string]any)
			parent[p] = child
		}
		parent = child
	}
	parent[parts[len(parts)-1]] = v
}

func (m *MemoryClient) Get(ctx context.Context, path string, dest any) error {
	m.mu.Lock()
	v, ok := m.lookup(splitPath(path))
	var data []byte
	var err error
	if ok && v != nil {
		data, err = json.Marshal(v)
	}
	m.mu.Unlock()
	if err != nil {
		return &StoreError{Op: "get", Path: path, Err: err}
	}
	if data == nil {
		return ErrNotFound
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return &StoreError{Op: "get", Path: path, Err: err}
	}
	return nil
}

func (m *MemoryClient) GetLast(ctx context.Context, path string, n int, dest any) error {
	if n <= 0 {
		return nil
	}
	m.mu.Lock()
	v, ok := m.lookup(splitPath(path))
	node, isMap := v.(map[string]any)
	var data []byte
	var err error
	if ok && isMap {
		keys := make([]string, 0, len(node))
		for k := range node {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		if len(keys) > n {
			keys = keys[len(keys)-n:]
		}
		tail := make(map[string]any, len(keys))
		for _, k := range keys {
			tail[k] = node[k]
		}
		data, err = json.Marshal(tail)
	}
	m.mu.Unlock()
	if err != nil {
		return &StoreError{Op: "getLast", Path: path, Err: err}
	}
	if data == nil {
		return nil
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return &StoreError{Op: "getLast", Path: path, Err: err}
	}
	return nil
}

func (m *MemoryClient) Set(ctx context.Context, path string, value any) error {
	jv, err := toJSONValue(value)
	if err != nil {
		return &StoreError{Op: "set", Path: path, Err: err}
	}
	parts := splitPath(path)
	if len(parts) == 0 {
		return &StoreError{Op: "set", Path: path, Err: errInvalidPath}
	}
	m.mu.Lock()
	m.setValue(parts, jv)
	m.mu.Unlock()
	return nil
}

func (m *MemoryClient) Update(ctx context.Context, path string, children map[string]any) error {
	parts := splitPath(path)
	if len(parts) == 0 {
		return &StoreError{Op: "update", Path: path, Err: errInvalidPath}
	}
	converted := make(map[string]any, len(children))
	for k, v := range children {
		jv, err := toJSONValue(v)
		if err != nil {
			return &StoreError{Op: "update", Path: path, Err: err}
		}
		converted[k] = jv
	}
	m.mu.Lock()
	for k, jv := range converted {
		m.setValue(append(parts[:len(parts):len(parts)], k), jv)
	}
	m.mu.Unlock()
	return nil
}

func (m *MemoryClient) Push(ctx context.Context, path string, value any) (string, error) {
	jv, err := toJSONValue(value)
	if err != nil {
		return "", &StoreError{Op: "push", Path: path, Err: err}
	}
	parts := splitPath(path)
	if len(parts) == 0 {
		return "", &StoreError{Op: "push", Path: path, Err: errInvalidPath}
	}
	key := pushKey(time.Now())
	m.mu.Lock()
	m.setValue(append(parts, key), jv)
	m.mu.Unlock()
	return key, nil
}

func (m *MemoryClient) Transact(ctx context.Context, path string, fn func(current json.RawMessage) (any, error)) error {
	parts := splitPath(path)
	if len(parts) == 0 {
		return &StoreError{Op: "transact", Path: path, Err: errInvalidPath}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var current json.RawMessage
	if v, ok := m.lookup(parts); ok && v != nil {
		data, err := json.Marshal(v)
		if err != nil {
			return &StoreError{Op: "transact", Path: path, Err: err}
		}
		current = data
	}
	next, err := fn(current)
	if err != nil {
		return err
	}
	jv, err := toJSONValue(next)
	if err != nil {
		return &StoreError{Op: "transact", Path: path, Err: err}
	}
	m.setValue(parts, jv)
	return nil
}

func (m *MemoryClient) Delete(ctx context.Context, path string) error {
	parts := splitPath(path)
	if len(parts) == 0 {
		return &StoreError{Op: "delete", Path: path, Err: errInvalidPath}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	parent := m.root
	for _, p := range parts[:len(parts)-1] {
		child, ok := parent[p].(map[string]any)
		if !ok {
			return nil
		}
		parent = child
	}
	delete(parent, parts[len(parts)-1])
	return nil
}
