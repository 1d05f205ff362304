package event

import (
	"errors"
	"testing"
	"time"

	"github.com/creativeprojects/mailstate/lib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeclareChannelTwice(t *testing.T) {
	hub := NewHub()
	require.NoError(t, hub.DeclareChannel("loaded"))
	assert.True(t, hub.HasChannel("loaded"))

	err := hub.DeclareChannel("added", "loaded")
	assert.ErrorIs(t, err, lib.ErrChannelExists)
	// nothing declared when one of the names fails
	assert.False(t, hub.HasChannel("added"))
}

func TestDeclareOperation(t *testing.T) {
	hub := NewHub()
	require.NoError(t, hub.DeclareOperation("added"))

	for _, channel := range []string{"added", "addedError", "addedFailed"} {
		assert.Truef(t, hub.HasChannel(channel), "channel %q", channel)
	}
	assert.Equal(t, Channels{Done: "moved", Error: "movedError", Failed: "movedFailed"}, Operation("moved"))
}

func TestSubscribeErrors(t *testing.T) {
	hub := NewHub()
	require.NoError(t, hub.DeclareChannel("loaded"))
	observer := Func(func(string, any) {})

	assert.ErrorIs(t, hub.Subscribe("unknown", observer), lib.ErrUnknownChannel)
	assert.ErrorIs(t, hub.Subscribe("loaded", nil), lib.ErrMissingArgument)

	require.NoError(t, hub.Subscribe("loaded", observer))
	assert.ErrorIs(t, hub.Subscribe("loaded", observer), lib.ErrDuplicateObserver)
	assert.ErrorIs(t, hub.SubscribeOnce("loaded", observer), lib.ErrDuplicateObserver)

	// another function is another identity
	assert.NoError(t, hub.Subscribe("loaded", Func(func(string, any) {})))
	assert.Equal(t, 2, hub.Count("loaded"))
}

func TestUnsubscribeErrors(t *testing.T) {
	hub := NewHub()
	require.NoError(t, hub.DeclareChannel("loaded"))
	observer := Func(func(string, any) {})

	assert.ErrorIs(t, hub.Unsubscribe("unknown", observer), lib.ErrUnknownChannel)
	assert.ErrorIs(t, hub.Unsubscribe("loaded", observer), lib.ErrObserverNotFound)

	require.NoError(t, hub.Subscribe("loaded", observer))
	require.NoError(t, hub.Unsubscribe("loaded", observer))
	assert.Equal(t, 0, hub.Count("loaded"))
}

func TestPublishUnknownChannel(t *testing.T) {
	hub := NewHub()
	assert.ErrorIs(t, hub.Publish("loaded", nil), lib.ErrUnknownChannel)
	assert.Panics(t, func() {
		hub.MustPublish("loaded", nil)
	})
}

func TestPublishInOrder(t *testing.T) {
	hub := NewHub()
	require.NoError(t, hub.DeclareChannel("loaded"))

	calls := make([]int, 0)
	for i := 1; i <= 3; i++ {
		index := i
		require.NoError(t, hub.Subscribe("loaded", Func(func(channel string, payload any) {
			assert.Equal(t, "loaded", channel)
			assert.Equal(t, "payload", payload)
			calls = append(calls, index)
		})))
	}
	require.NoError(t, hub.Publish("loaded", "payload"))
	assert.Equal(t, []int{1, 2, 3}, calls)
}

func TestSubscribeOnce(t *testing.T) {
	hub := NewHub()
	require.NoError(t, hub.DeclareChannel("loaded"))

	count := 0
	observer := Func(func(string, any) { count++ })
	require.NoError(t, hub.SubscribeOnce("loaded", observer))

	require.NoError(t, hub.Publish("loaded", nil))
	require.NoError(t, hub.Publish("loaded", nil))
	assert.Equal(t, 1, count)
	assert.Equal(t, 0, hub.Count("loaded"))
	assert.ErrorIs(t, hub.Unsubscribe("loaded", observer), lib.ErrObserverNotFound)
}

func TestSubscribeDuringPublish(t *testing.T) {
	hub := NewHub()
	require.NoError(t, hub.DeclareChannel("loaded"))

	late := 0
	lateObserver := Func(func(string, any) { late++ })
	require.NoError(t, hub.Subscribe("loaded", Func(func(string, any) {
		if hub.Count("loaded") == 1 {
			require.NoError(t, hub.Subscribe("loaded", lateObserver))
		}
	})))

	require.NoError(t, hub.Publish("loaded", nil))
	assert.Equal(t, 0, late)

	require.NoError(t, hub.Publish("loaded", nil))
	assert.Equal(t, 1, late)
}

func TestRecorder(t *testing.T) {
	hub := NewHub()
	require.NoError(t, hub.DeclareChannel("loaded"))
	recorder := NewRecorder(10)
	require.NoError(t, hub.Subscribe("loaded", recorder))

	require.NoError(t, hub.Publish("loaded", 42))
	assert.Equal(t, 1, recorder.Len())

	event, err := recorder.Next(time.Second)
	require.NoError(t, err)
	assert.Equal(t, Event{Channel: "loaded", Payload: 42}, event)

	_, err = recorder.Next(10 * time.Millisecond)
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestAwait(t *testing.T) {
	hub := NewHub()
	require.NoError(t, hub.DeclareOperation("added"))
	rejection := errors.New("duplicate folder name")
	network := errors.New("connection reset")

	testCases := []struct {
		name      string
		channel   string
		payload   any
		expectErr error
	}{
		{"done", "added", "folder", nil},
		{"error", "addedError", rejection, rejection},
		{"failed", "addedFailed", network, network},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			payload, err := Await(hub, "added", time.Second, func() error {
				go func() {
					_ = hub.Publish(testCase.channel, testCase.payload)
				}()
				return nil
			})
			if testCase.expectErr != nil {
				assert.ErrorIs(t, err, testCase.expectErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, testCase.payload, payload)
		})
	}
	// every temporary observer is gone
	assert.Equal(t, 0, hub.Count("added"))
	assert.Equal(t, 0, hub.Count("addedError"))
	assert.Equal(t, 0, hub.Count("addedFailed"))
}

func TestAwaitSynchronousOutcome(t *testing.T) {
	hub := NewHub()
	require.NoError(t, hub.DeclareOperation("loaded"))

	payload, err := Await(hub, "loaded", time.Second, func() error {
		return hub.Publish("loaded", "snapshot")
	})
	require.NoError(t, err)
	assert.Equal(t, "snapshot", payload)
}

func TestAwaitTimeout(t *testing.T) {
	hub := NewHub()
	require.NoError(t, hub.DeclareOperation("loaded"))

	_, err := Await(hub, "loaded", 10*time.Millisecond, func() error { return nil })
	assert.ErrorIs(t, err, ErrTimeout)

	startErr := errors.New("bad argument")
	_, err = Await(hub, "loaded", time.Second, func() error { return startErr })
	assert.ErrorIs(t, err, startErr)
}
