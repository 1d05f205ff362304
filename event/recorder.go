package event

import (
	"errors"
	"fmt"
	"time"
)

var ErrTimeout = errors.New("timeout waiting for event")

// Event is a delivery captured by a Recorder
type Event struct {
	Channel string
	Payload any
}

// Recorder buffers every delivery on a Go channel.
type Recorder struct {
	C chan Event
}

func NewRecorder(size int) *Recorder {
	return &Recorder{
		C: make(chan Event, size),
	}
}

func (r *Recorder) Notify(channel string, payload any) {
	r.C <- Event{Channel: channel, Payload: payload}
}

// Next waits for the next delivery
func (r *Recorder) Next(timeout time.Duration) (Event, error) {
	select {
	case event := <-r.C:
		return event, nil
	case <-time.After(timeout):
		return Event{}, ErrTimeout
	}
}

// Len returns the number of deliveries waiting in the buffer
func (r *Recorder) Len() int {
	return len(r.C)
}

// Await subscribes to the channel triple of an operation, runs start and waits for the first
// outcome. A payload from the Error or Failed channel is returned as an error.
func Await(hub *Hub, operation string, timeout time.Duration, start func() error) (any, error) {
	channels := Operation(operation)
	outcome := make(chan Event, 1)
	observer := Func(func(channel string, payload any) {
		select {
		case outcome <- Event{Channel: channel, Payload: payload}:
		default:
		}
	})
	subscribed := make([]string, 0, 3)
	defer func() {
		for _, channel := range subscribed {
			_ = hub.Unsubscribe(channel, observer)
		}
	}()
	for _, channel := range []string{channels.Done, channels.Error, channels.Failed} {
		if err := hub.Subscribe(channel, observer); err != nil {
			return nil, err
		}
		subscribed = append(subscribed, channel)
	}

	if err := start(); err != nil {
		return nil, err
	}

	var event Event
	select {
	case event = <-outcome:
	case <-time.After(timeout):
		return nil, fmt.Errorf("%w %q", ErrTimeout, operation)
	}

	switch event.Channel {
	case channels.Done:
		return event.Payload, nil
	case channels.Failed:
		return nil, fmt.Errorf("%s failed: %w", operation, asError(event.Payload))
	default:
		return nil, asError(event.Payload)
	}
}

func asError(payload any) error {
	if err, ok := payload.(error); ok {
		return err
	}
	return fmt.Errorf("%v", payload)
}
