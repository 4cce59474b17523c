package events

import (
	"testing"
	"time"

	"notification-engine/internal/common/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_FanOut(t *testing.T) {
	bus := NewBus(logger.NewTestLogger(t))
	a, unsubA := bus.Subscribe(4)
	b, unsubB := bus.Subscribe(4)
	defer unsubA()
	defer unsubB()

	bus.Publish(AggregateChanged{Type: TypeRefreshed, UserID: "u1", Total: 3, Unread: 2})

	for _, ch := range []<-chan AggregateChanged{a, b} {
		select {
		case e := <-ch:
			assert.Equal(t, TypeRefreshed, e.Type)
			assert.Equal(t, 2, e.Unread)
			assert.False(t, e.At.IsZero())
		case <-time.After(time.Second):
			t.Fatal("event not delivered")
		}
	}
}

func TestBus_FullSubscriberDoesNotBlock(t *testing.T) {
	bus := NewBus(logger.NewTestLogger(t))
	ch, unsub := bus.Subscribe(1)
	defer unsub()

	bus.Publish(AggregateChanged{Type: TypeMarkedRead, UserID: "u1"})
	bus.Publish(AggregateChanged{Type: TypeDeleted, UserID: "u1"})

	e := <-ch
	assert.Equal(t, TypeMarkedRead, e.Type)
	select {
	case extra := <-ch:
		t.Fatalf("unexpected event %v", extra.Type)
	default:
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus(logger.NewTestLogger(t))
	ch, unsub := bus.Subscribe(0)
	require.Equal(t, 1, bus.Subscribers())

	unsub()
	unsub()
	assert.Equal(t, 0, bus.Subscribers())

	_, open := <-ch
	assert.False(t, open)

	bus.Publish(AggregateChanged{Type: TypeRefreshed})
}
