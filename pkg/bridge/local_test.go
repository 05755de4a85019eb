package bridge

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLocalQueue_LoadBalancesAcrossReceivers(t *testing.T) {
	q := newLocalQueue(t.Name())
	ctx := context.Background()

	const n = 20
	for i := 0; i < n; i++ {
		require.NoError(t, q.Push(ctx, []byte{byte(i)}))
	}

	received := make([]int, 2)
	var mu sync.Mutex
	var wg sync.WaitGroup
	for r := 0; r < 2; r++ {
		r := r
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < n/2; i++ {
				ctx, cancel := context.WithTimeout(ctx, time.Second)
				_, err := q.Pop(ctx)
				cancel()
				require.NoError(t, err)
				mu.Lock()
				received[r]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Equal(t, n, received[0]+received[1])
}

func TestLocalQueue_PopBlocksUntilContextCanceled(t *testing.T) {
	q := newLocalQueue(t.Name())
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := q.Pop(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLocalPubSub_FansOutToAllSubscribers(t *testing.T) {
	p := newLocalPubSub(t.Name())

	sub1 := p.Subscribe()
	sub2 := p.Subscribe()
	defer sub1.Unsubscribe()
	defer sub2.Unsubscribe()

	require.NoError(t, p.Publish(context.Background(), []byte("hello")))

	require.Equal(t, []byte("hello"), <-sub1.C)
	require.Equal(t, []byte("hello"), <-sub2.C)
}

func TestLocalPubSub_UnsubscribeStopsDelivery(t *testing.T) {
	p := newLocalPubSub(t.Name())

	sub := p.Subscribe()
	sub.Unsubscribe()

	require.NoError(t, p.Publish(context.Background(), []byte("late")))

	_, ok := <-sub.C
	require.False(t, ok)
}

func TestLocalPubSub_PublishBeforeSubscribeIsLost(t *testing.T) {
	p := newLocalPubSub(t.Name())

	require.NoError(t, p.Publish(context.Background(), []byte("missed")))

	sub := p.Subscribe()
	defer sub.Unsubscribe()

	require.NoError(t, p.Publish(context.Background(), []byte("seen")))
	require.Equal(t, []byte("seen"), <-sub.C)
}

func TestLocalRegistry_SameNameSharesInstance(t *testing.T) {
	a := localQueues.get("shared-" + t.Name())
	b := localQueues.get("shared-" + t.Name())
	require.Same(t, a, b)
}
