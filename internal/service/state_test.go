// internal/service/state_test.go
package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IlyaZolotarev/wordcard/internal/model"
)

func signalled(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

func TestNotifier(t *testing.T) {
	t.Run("every subscriber is signalled", func(t *testing.T) {
		var n notifier
		first, cancelFirst := n.Subscribe()
		second, cancelSecond := n.Subscribe()
		defer cancelFirst()
		defer cancelSecond()

		n.Notify()
		assert.True(t, signalled(first))
		assert.True(t, signalled(second))
	})

	t.Run("pending signals coalesce", func(t *testing.T) {
		var n notifier
		ch, cancel := n.Subscribe()
		defer cancel()

		n.Notify()
		n.Notify()
		n.Notify()

		assert.True(t, signalled(ch))
		// The undrained signals collapsed into the single buffered one.
		assert.False(t, signalled(ch))
	})

	t.Run("cancel stops delivery", func(t *testing.T) {
		var n notifier
		ch, cancel := n.Subscribe()
		kept, cancelKept := n.Subscribe()
		defer cancelKept()

		cancel()
		cancel() // repeated cancel is harmless

		n.Notify()
		assert.False(t, signalled(ch))
		assert.True(t, signalled(kept))
	})
}

func TestGateway_SubscribeSignalsListChanges(t *testing.T) {
	ctx := context.Background()
	gw := setupLocalGateway(t)

	ch, cancel := gw.Subscribe()

	_, err := gw.CreateCategory(ctx, &model.CreateCategoryRequest{Name: "Words"})
	require.NoError(t, err)
	assert.True(t, signalled(ch))

	cancel()
	gw.ResetCardList()
	assert.False(t, signalled(ch))
}
