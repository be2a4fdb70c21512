package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestBus_PublishMatchesKind(t *testing.T) {
	b := NewBus()

	var carts, all []Event
	b.Subscribe(KindGuestCartUpdated, func(e Event) { carts = append(carts, e) })
	b.Subscribe("", func(e Event) { all = append(all, e) })

	b.Publish(GuestCartUpdated{Partition: "p1", Count: 3})
	b.Publish(ProfileUpdated{Partition: "p1", UserID: "u1"})

	require.Len(t, carts, 1)
	assert.Equal(t, 3, carts[0].(GuestCartUpdated).Count)
	assert.Len(t, all, 2)
}

func TestBus_Unsubscribe(t *testing.T) {
	b := NewBus()

	calls := 0
	unsubscribe := b.Subscribe(KindLoggedOut, func(Event) { calls++ })

	b.Publish(LoggedOut{Partition: "p1"})
	unsubscribe()
	unsubscribe()
	b.Publish(LoggedOut{Partition: "p1"})

	assert.Equal(t, 1, calls)
}

func TestBus_UnsubscribeInsideHandler(t *testing.T) {
	b := NewBus()

	calls := 0
	var unsubscribe func()
	unsubscribe = b.Subscribe(KindLoggedIn, func(Event) {
		calls++
		unsubscribe()
	})

	b.Publish(LoggedIn{Partition: "p1"})
	b.Publish(LoggedIn{Partition: "p1"})

	assert.Equal(t, 1, calls)
}

func TestOn_Typed(t *testing.T) {
	b := NewBus()

	var got []int
	On(b, func(e GuestWishlistUpdated) { got = append(got, e.Count) })

	b.Publish(GuestWishlistUpdated{Partition: "p1", Count: 2})
	b.Publish(GuestCartUpdated{Partition: "p1", Count: 7})
	b.Publish(GuestWishlistUpdated{Partition: "p1", Count: 1})

	assert.Equal(t, []int{2, 1}, got)
}

func TestBus_StreamFiltersPartition(t *testing.T) {
	b := NewBus()
	ctx, cancel := context.WithCancel(context.Background())

	ch := b.Stream(ctx, "p1", 4)

	b.Publish(CartUpdated{Partition: "p2", Count: 9})
	b.Publish(CartUpdated{Partition: "p1", Count: 1})

	select {
	case e := <-ch:
		assert.Equal(t, CartUpdated{Partition: "p1", Count: 1}, e)
	case <-time.After(time.Second):
		t.Fatal("no event received")
	}

	cancel()

	// Channel is closed once the context is done.
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-ch:
			return !ok
		default:
			return false
		}
	}, time.Second, 10*time.Millisecond)

	// Publishing after close must not panic.
	b.Publish(CartUpdated{Partition: "p1", Count: 2})
}

func TestBus_StreamDropsWhenFull(t *testing.T) {
	b := NewBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := b.Stream(ctx, "p1", 1)
	b.Publish(CartUpdated{Partition: "p1", Count: 1})
	b.Publish(CartUpdated{Partition: "p1", Count: 2})

	e := <-ch
	assert.Equal(t, 1, e.(CartUpdated).Count)
	select {
	case e := <-ch:
		t.Fatalf("unexpected event %v", e)
	default:
	}
}
