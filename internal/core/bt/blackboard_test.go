package bt

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBlackboardBasics(t *testing.T) {
	bb := NewBlackboard()
	_, ok := bb.Get("missing")
	assert.False(t, ok)
	assert.True(t, bb.IsNull("missing"))

	bb.Set("flag", true)
	bb.Set("target", nil)
	v, ok := bb.GetBool("flag")
	assert.True(t, ok)
	assert.True(t, v)
	assert.True(t, bb.IsNull("target"))

	bb.Set("count", 3)
	_, ok = bb.GetBool("count")
	assert.False(t, ok)

	bb.Delete("flag")
	assert.Equal(t, []string{"count", "target"}, bb.Keys())
}

func TestBlackboardNamespaces(t *testing.T) {
	bb := NewBlackboard()
	combat := bb.Namespace("combat")
	combat.Set("target", "orc")
	combat.Namespace("/melee/").Set("range", 2)

	v, ok := bb.Get("combat/target")
	assert.True(t, ok)
	assert.Equal(t, "orc", v)
	assert.Equal(t, []string{"melee/range", "target"}, combat.Keys())
	assert.Equal(t, []string{"combat/melee/range", "combat/target"}, bb.Keys())
	assert.Same(t, bb, bb.Namespace(""))

	_, ok = combat.Get("combat/target")
	assert.False(t, ok)
}

func TestBlackboardConcurrentAccess(t *testing.T) {
	bb := NewBlackboard()
	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ns := bb.Namespace(string(rune('a' + i)))
			for j := range 100 {
				ns.Set("k", j)
				_, _ = ns.Get("k")
			}
		}()
	}
	wg.Wait()
	assert.Len(t, bb.Keys(), 8)
}
