package bt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTagHashIsStable(t *testing.T) {
	assert.Equal(t, TagHash("attack"), TagHash("attack"))
	assert.NotEqual(t, TagHash("attack"), TagHash("defend"))
	assert.Equal(t, TagHash("attack"), NewSetTagCooldown("attack", time.Second, false).Hash())
}

func TestCooldownRestart(t *testing.T) {
	clock := newFakeClock()
	cd := NewCooldownHandler(clock.Now)
	tag := TagHash("attack")

	assert.False(t, cd.IsActive(tag))
	assert.Zero(t, cd.Remaining(tag))

	cd.SetCooldown(tag, SetCooldownParams{Duration: 5 * time.Second})
	assert.True(t, cd.IsActive(tag))
	assert.Equal(t, 5*time.Second, cd.Remaining(tag))

	clock.Advance(2 * time.Second)
	assert.Equal(t, 3*time.Second, cd.Remaining(tag))

	cd.SetCooldown(tag, SetCooldownParams{Duration: 5 * time.Second})
	assert.Equal(t, 5*time.Second, cd.Remaining(tag), "restart replaces the remaining time")

	clock.Advance(5 * time.Second)
	assert.False(t, cd.IsActive(tag))
	assert.Zero(t, cd.Len(), "lapsed entries are dropped when queried")
}

func TestCooldownAddToExisting(t *testing.T) {
	clock := newFakeClock()
	cd := NewCooldownHandler(clock.Now)
	tag := TagHash("attack")
	add := SetCooldownParams{Duration: 5 * time.Second, AddToExistingDuration: true}

	cd.SetCooldown(tag, add)
	assert.Equal(t, 5*time.Second, cd.Remaining(tag), "nothing active to extend")

	clock.Advance(2 * time.Second)
	cd.SetCooldown(tag, add)
	assert.Equal(t, 8*time.Second, cd.Remaining(tag))

	clock.Advance(10 * time.Second)
	cd.SetCooldown(tag, add)
	assert.Equal(t, 5*time.Second, cd.Remaining(tag), "lapsed cooldowns start over")
}

func TestCooldownClearAndNonPositive(t *testing.T) {
	clock := newFakeClock()
	cd := NewCooldownHandler(clock.Now)
	tag := TagHash("dodge")

	cd.SetCooldown(tag, SetCooldownParams{Duration: time.Second})
	cd.Clear(tag)
	assert.False(t, cd.IsActive(tag))

	cd.SetCooldown(tag, SetCooldownParams{Duration: time.Second})
	cd.SetCooldown(tag, SetCooldownParams{Duration: 0})
	assert.False(t, cd.IsActive(tag), "zero duration clears the cooldown")
	assert.Zero(t, cd.Len())
}

func TestCooldownTagsAreIndependent(t *testing.T) {
	clock := newFakeClock()
	cd := NewCooldownHandler(clock.Now)
	cd.SetCooldown(TagHash("a"), SetCooldownParams{Duration: time.Second})
	assert.True(t, cd.IsActive(TagHash("a")))
	assert.False(t, cd.IsActive(TagHash("b")))
}
