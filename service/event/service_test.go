package event

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/chemflow/internal/logging"
	"github.com/viant/chemflow/service/messaging"
)

func TestService(t *testing.T) {
	ctx := context.Background()
	srv, err := New(ctx, messaging.VendorMemory, WithLogger(logging.Discard()))
	require.NoError(t, err)
	defer srv.Close()

	var mux sync.Mutex
	var received []*Event
	srv.Subscribe(ctx, func(e *Event) error {
		mux.Lock()
		defer mux.Unlock()
		received = append(received, e)
		return nil
	})

	require.NoError(t, srv.Publish(ctx, NewRunEvent(TypeRunSubmitted, "r1", "h2o")))
	require.NoError(t, srv.Publish(ctx, NewJobEvent("r1", "h2o", "gs", "j1", "pending", "ready", "dependencies succeeded", 0)))

	assert.Eventually(t, func() bool {
		mux.Lock()
		defer mux.Unlock()
		return len(received) == 2
	}, time.Second, 5*time.Millisecond)
	mux.Lock()
	defer mux.Unlock()
	assert.Equal(t, TypeRunSubmitted, received[0].Type)
	assert.Equal(t, "ready", received[1].To)
	assert.NotEmpty(t, received[1].ID)
}

func TestNew_UnsupportedVendor(t *testing.T) {
	_, err := New(context.Background(), "kafka")
	assert.Error(t, err)
}
