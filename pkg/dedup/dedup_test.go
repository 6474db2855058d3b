package dedup

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShouldProcessDropsRedeliveryWithinTTL(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	d := New(time.Minute, 10).WithClock(func() time.Time { return now })

	payload := []byte(`{"temp":24.5}`)
	require.True(t, d.ShouldProcessPayload(payload))
	assert.False(t, d.ShouldProcessPayload(payload))

	now = now.Add(61 * time.Second)
	assert.True(t, d.ShouldProcessPayload(payload), "expired id must pass again")
}

func TestEmptyIDAlwaysPasses(t *testing.T) {
	d := New(time.Minute, 10)
	assert.True(t, d.ShouldProcess(""))
	assert.True(t, d.ShouldProcess(""))

	var nilDeduper *Deduper
	assert.True(t, nilDeduper.ShouldProcess("x"))
}

func TestCapEvictsOldest(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	d := New(time.Hour, 2).WithClock(func() time.Time { return now })

	require.True(t, d.ShouldProcess("a"))
	now = now.Add(time.Second)
	require.True(t, d.ShouldProcess("b"))
	now = now.Add(time.Second)
	require.True(t, d.ShouldProcess("c"))

	assert.Equal(t, 2, d.Len())
	assert.True(t, d.ShouldProcess("a"), "oldest id should have been evicted")
}

func TestPayloadKeyIsStable(t *testing.T) {
	assert.Equal(t, PayloadKey([]byte("x")), PayloadKey([]byte("x")))
	assert.NotEqual(t, PayloadKey([]byte("x")), PayloadKey([]byte("y")))
}
