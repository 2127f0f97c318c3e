package bt

import (
	"sort"
	"strings"
	"sync"
)

// Blackboard is the per-runner key/value store shared by the nodes of one
// cloned tree. It is never shared between runners. Namespace returns views
// over the same storage whose keys are prefixed with "ns/".
type Blackboard struct {
	data   *blackboardData
	prefix string
}

type blackboardData struct {
	mu     sync.RWMutex
	values map[string]any
}

func NewBlackboard() *Blackboard {
	return &Blackboard{data: &blackboardData{values: make(map[string]any)}}
}

// Namespace returns a view whose keys live under ns. Views nest.
func (b *Blackboard) Namespace(ns string) *Blackboard {
	ns = strings.Trim(ns, "/")
	if ns == "" {
		return b
	}
	return &Blackboard{data: b.data, prefix: b.prefix + ns + "/"}
}

// Get retrieves a value by key. Returns (nil, false) if absent.
func (b *Blackboard) Get(key string) (any, bool) {
	b.data.mu.RLock()
	defer b.data.mu.RUnlock()
	v, ok := b.data.values[b.prefix+key]
	return v, ok
}

func (b *Blackboard) Set(key string, value any) {
	b.data.mu.Lock()
	b.data.values[b.prefix+key] = value
	b.data.mu.Unlock()
}

func (b *Blackboard) Delete(key string) {
	b.data.mu.Lock()
	delete(b.data.values, b.prefix+key)
	b.data.mu.Unlock()
}

// GetBool reports the value under key and whether it is a bool.
func (b *Blackboard) GetBool(key string) (bool, bool) {
	v, ok := b.Get(key)
	if !ok {
		return false, false
	}
	bv, ok := v.(bool)
	return bv, ok
}

// IsNull reports whether key is absent or holds nil.
func (b *Blackboard) IsNull(key string) bool {
	v, ok := b.Get(key)
	return !ok || v == nil
}

// Keys returns the sorted keys visible in this view, without its prefix.
func (b *Blackboard) Keys() []string {
	b.data.mu.RLock()
	keys := make([]string, 0, len(b.data.values))
	for k := range b.data.values {
		if rest, ok := strings.CutPrefix(k, b.prefix); ok {
			keys = append(keys, rest)
		}
	}
	b.data.mu.RUnlock()
	sort.Strings(keys)
	return keys
}
