package progress

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCount(t *testing.T) {
	counters := Count("pending", "ready", "running", "succeeded", "failed", "cancelled", "collecting")
	assert.Equal(t, Counters{Total: 7, Pending: 1, Active: 3, Succeeded: 1, Failed: 1, Cancelled: 1}, counters)
}

func TestTracker(t *testing.T) {
	var seen []Counters
	ctx, tracker := WithNewTracker(context.Background(), "r1", "h2o", func(c Counters) {
		seen = append(seen, c)
	})
	tracker.Reset(Count("pending", "pending"))
	UpdateCtx(ctx, Transition("pending", "ready"))
	UpdateCtx(ctx, Transition("ready", "running"))
	UpdateCtx(ctx, Transition("running", "succeeded"))
	assert.Equal(t, Counters{Total: 2, Pending: 1, Succeeded: 1}, tracker.Snapshot())
	assert.Len(t, seen, 4)

	UpdateCtx(context.Background(), Transition("pending", "ready"))
	assert.Equal(t, 1, tracker.Snapshot().Pending)
}
