package compose

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snapshotFor(phase Phase) Snapshot {
	s := NewState("story-1", 1, time.Now())
	return Snapshot{Phase: phase, Validation: Evaluate(s), State: s}
}

func TestChannel_LatestBeforePublish(t *testing.T) {
	ch := NewChannel()

	_, ok := ch.Latest()
	assert.False(t, ok)
}

func TestChannel_SubscribeReceivesLatestImmediately(t *testing.T) {
	ch := NewChannel()
	ch.Publish(snapshotFor(PhasePlotOutline))

	var got []Snapshot
	ch.Subscribe(func(s Snapshot) { got = append(got, s) })

	require.Len(t, got, 1)
	assert.Equal(t, PhasePlotOutline, got[0].Phase)
}

func TestChannel_PublishFansOutInOrder(t *testing.T) {
	ch := NewChannel()

	var order []string
	ch.Subscribe(func(Snapshot) { order = append(order, "first") })
	ch.Subscribe(func(Snapshot) { order = append(order, "second") })

	ch.Publish(snapshotFor(PhasePlotOutline))

	assert.Equal(t, []string{"first", "second"}, order)

	latest, ok := ch.Latest()
	require.True(t, ok)
	assert.Equal(t, PhasePlotOutline, latest.Phase)
}

func TestChannel_CancelStopsDelivery(t *testing.T) {
	ch := NewChannel()

	var count int
	cancel := ch.Subscribe(func(Snapshot) { count++ })

	ch.Publish(snapshotFor(PhasePlotOutline))
	require.Equal(t, 1, count)

	cancel()
	ch.Publish(snapshotFor(PhaseChapterDetail))
	assert.Equal(t, 1, count, "cancelled subscriber must not receive")

	// Cancelling twice is harmless.
	cancel()
}

func TestChannel_LatestIsReplaced(t *testing.T) {
	ch := NewChannel()

	ch.Publish(snapshotFor(PhasePlotOutline))
	ch.Publish(snapshotFor(PhaseChapterDetail))

	latest, ok := ch.Latest()
	require.True(t, ok)
	assert.Equal(t, PhaseChapterDetail, latest.Phase)
}
