package event_bus

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventBus_Publish(t *testing.T) {
	t.Run("should deliver typed payloads in subscription order", func(t *testing.T) {
		// given
		bus := NewEventBus()
		var received []int
		SubscribeTyped(bus, TimeEntryCreated, func(e EventT[TimeEntryCreatedData]) error {
			received = append(received, e.Data.Id)
			return nil
		})
		SubscribeTyped(bus, TimeEntryCreated, func(e EventT[TimeEntryCreatedData]) error {
			received = append(received, e.Data.Id*10)
			return nil
		})

		// when
		err := bus.Publish(NewEvent(context.Background(), TimeEntryCreated, TimeEntryCreatedData{Id: 7, Date: time.Now()}))

		// then
		require.NoError(t, err)
		assert.Equal(t, []int{7, 70}, received)
	})

	t.Run("should ignore payloads of another type", func(t *testing.T) {
		bus := NewEventBus()
		called := false
		SubscribeTyped(bus, TimeEntryCreated, func(e EventT[TimeEntryCreatedData]) error {
			called = true
			return nil
		})

		err := bus.Publish(NewEvent(context.Background(), TimeEntryCreated, "not a payload"))

		assert.NoError(t, err)
		assert.False(t, called)
	})

	t.Run("should collect handler errors and recover panics", func(t *testing.T) {
		// given
		bus := NewEventBus()
		failure := errors.New("boom")
		secondCalled := false
		bus.Subscribe(TimeEntryCreated, func(e Event) error { return failure })
		bus.Subscribe(TimeEntryCreated, func(e Event) error { panic("bad handler") })
		bus.Subscribe(TimeEntryCreated, func(e Event) error {
			secondCalled = true
			return nil
		})

		// when
		err := bus.Publish(NewEvent(context.Background(), TimeEntryCreated, nil))

		// then
		require.Error(t, err)
		assert.ErrorIs(t, err, failure)
		assert.Contains(t, err.Error(), "2 handler(s) failed")
		assert.True(t, secondCalled)
	})

	t.Run("should stop delivering after unsubscribe", func(t *testing.T) {
		bus := NewEventBus()
		calls := 0
		unsubscribe := bus.Subscribe(TimeEntryCreated, func(e Event) error {
			calls++
			return nil
		})

		require.NoError(t, bus.Publish(NewEvent(context.Background(), TimeEntryCreated, nil)))
		unsubscribe()
		require.NoError(t, bus.Publish(NewEvent(context.Background(), TimeEntryCreated, nil)))

		assert.Equal(t, 1, calls)
	})

	t.Run("should refuse to publish with a cancelled context", func(t *testing.T) {
		bus := NewEventBus()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := bus.Publish(NewEvent(ctx, TimeEntryCreated, nil))

		assert.ErrorIs(t, err, context.Canceled)
	})
}
