package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/crm/internal/clock"
)

func newChannel() (*Channel, *clock.Fake) {
	c := clock.NewFake(time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC))
	return New(c, 3*time.Second), c
}

func TestPost_ExpiresAfterTTL(t *testing.T) {
	ch, c := newChannel()
	ch.Post(Success, "Company updated")

	n, ok := ch.Current()
	require.True(t, ok)
	assert.Equal(t, Success, n.Kind)
	assert.Equal(t, "Company updated", n.Message)

	c.Advance(2999 * time.Millisecond)
	_, ok = ch.Current()
	assert.True(t, ok)

	c.Advance(time.Millisecond)
	_, ok = ch.Current()
	assert.False(t, ok)
}

func TestPost_ClearedByNavigation(t *testing.T) {
	ch, _ := newChannel()
	ch.Post(Error, "Save failed")
	ch.Navigate()

	_, ok := ch.Current()
	assert.False(t, ok)
}

func TestFlash_SurvivesExactlyOneMount(t *testing.T) {
	ch, c := newChannel()
	ch.Flash(Success, "Company deleted")

	_, ok := ch.Current()
	assert.False(t, ok, "flash is for the next view")

	c.Advance(5 * time.Second) // slow navigation does not eat the TTL
	ch.Navigate()
	n, ok := ch.Current()
	require.True(t, ok, "visible right after navigating back to the list")
	assert.Equal(t, "Company deleted", n.Message)

	ch.Navigate()
	_, ok = ch.Current()
	assert.False(t, ok, "gone on the following navigation")
}

func TestFlash_ExpiresWithoutFurtherNavigation(t *testing.T) {
	ch, c := newChannel()
	ch.Flash(Success, "Company deleted")
	ch.Navigate()

	c.Advance(3 * time.Second)
	_, ok := ch.Current()
	assert.False(t, ok)
}

func TestSingleSlot(t *testing.T) {
	ch, c := newChannel()
	ch.Post(Success, "first")
	c.Advance(2 * time.Second)
	ch.Post(Error, "second")

	n, ok := ch.Current()
	require.True(t, ok)
	assert.Equal(t, "second", n.Message)

	c.Advance(2 * time.Second)
	_, ok = ch.Current()
	assert.True(t, ok, "replacement has its own TTL")
	assert.Equal(t, time.Second, ch.ExpiresIn())
}

func TestSeqChangesWithSlot(t *testing.T) {
	ch, _ := newChannel()
	s0 := ch.Seq()
	ch.Post(Success, "a")
	s1 := ch.Seq()
	ch.Dismiss()
	s2 := ch.Seq()

	assert.NotEqual(t, s0, s1)
	assert.NotEqual(t, s1, s2)
	assert.Equal(t, time.Duration(0), ch.ExpiresIn())
}
