package mq

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryKeepsRecentMessages(t *testing.T) {
	ctx := context.Background()
	broker := NewMemory()

	total := retainedPerChannel + 40
	for i := 0; i < total; i++ {
		_, err := broker.Publish(ctx, "notifications", []byte(strconv.Itoa(i)), nil)
		require.NoError(t, err)
	}
	_, err := broker.Publish(ctx, "other", []byte("x"), nil)
	require.NoError(t, err)

	published := broker.Published("notifications")
	require.Len(t, published, retainedPerChannel)
	assert.Equal(t, "40", string(published[0].Data))
	assert.Equal(t, strconv.Itoa(total-1), string(published[len(published)-1].Data))
	assert.Len(t, broker.Published("other"), 1)
}
