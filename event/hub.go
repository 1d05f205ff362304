// Package event is a publish/subscribe hub with named, pre-declared channels.
package event

import (
	"fmt"
	"sync"

	"github.com/creativeprojects/mailstate/lib"
)

const (
	errorSuffix  = "Error"
	failedSuffix = "Failed"
)

// Observer receives the payloads published on the channels it subscribed to.
// The observer value is its identity: it must be comparable (a pointer is a good choice).
type Observer interface {
	Notify(channel string, payload any)
}

// FuncObserver gives an identity to a plain function
type FuncObserver struct {
	fn func(channel string, payload any)
}

// Func wraps fn into an Observer. Each call returns a new identity.
func Func(fn func(channel string, payload any)) *FuncObserver {
	return &FuncObserver{fn: fn}
}

func (o *FuncObserver) Notify(channel string, payload any) {
	o.fn(channel, payload)
}

type registration struct {
	observer Observer
	once     bool
}

// Channels names the three outcomes of an asynchronous operation
type Channels struct {
	Done   string
	Error  string
	Failed string
}

// Operation returns the channel triple of an operation
func Operation(name string) Channels {
	return Channels{
		Done:   name,
		Error:  name + errorSuffix,
		Failed: name + failedSuffix,
	}
}

type Hub struct {
	mu       sync.Mutex
	channels map[string][]registration
}

func NewHub() *Hub {
	return &Hub{
		channels: make(map[string][]registration),
	}
}

// DeclareChannel declares new channels. It fails if any of them already exists.
func (h *Hub) DeclareChannel(names ...string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, name := range names {
		if _, ok := h.channels[name]; ok {
			return fmt.Errorf("%w: %q", lib.ErrChannelExists, name)
		}
	}
	for _, name := range names {
		h.channels[name] = make([]registration, 0)
	}
	return nil
}

// DeclareOperation declares the channel triple of each operation
func (h *Hub) DeclareOperation(names ...string) error {
	for _, name := range names {
		channels := Operation(name)
		err := h.DeclareChannel(channels.Done, channels.Error, channels.Failed)
		if err != nil {
			return err
		}
	}
	return nil
}

// HasChannel returns true when the channel was declared
func (h *Hub) HasChannel(name string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	_, ok := h.channels[name]
	return ok
}

func (h *Hub) Subscribe(channel string, observer Observer) error {
	return h.subscribe(channel, observer, false)
}

// SubscribeOnce registers an observer that is removed right before its first delivery
func (h *Hub) SubscribeOnce(channel string, observer Observer) error {
	return h.subscribe(channel, observer, true)
}

func (h *Hub) subscribe(channel string, observer Observer, once bool) error {
	if observer == nil {
		return fmt.Errorf("%w: observer", lib.ErrMissingArgument)
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	registrations, ok := h.channels[channel]
	if !ok {
		return fmt.Errorf("%w: %q", lib.ErrUnknownChannel, channel)
	}
	if indexOf(registrations, observer) >= 0 {
		return fmt.Errorf("%w: %q", lib.ErrDuplicateObserver, channel)
	}
	h.channels[channel] = append(registrations, registration{observer: observer, once: once})
	return nil
}

func (h *Hub) Unsubscribe(channel string, observer Observer) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	registrations, ok := h.channels[channel]
	if !ok {
		return fmt.Errorf("%w: %q", lib.ErrUnknownChannel, channel)
	}
	index := indexOf(registrations, observer)
	if index < 0 {
		return fmt.Errorf("%w: %q", lib.ErrObserverNotFound, channel)
	}
	h.channels[channel] = remove(registrations, index)
	return nil
}

// Publish delivers payload synchronously to every observer registered when Publish is called,
// in subscription order. Observers subscribing during the delivery wait for the next one.
func (h *Hub) Publish(channel string, payload any) error {
	h.mu.Lock()
	registrations, ok := h.channels[channel]
	if !ok {
		h.mu.Unlock()
		return fmt.Errorf("%w: %q", lib.ErrUnknownChannel, channel)
	}
	observers := make([]Observer, len(registrations))
	kept := make([]registration, 0, len(registrations))
	for i, registration := range registrations {
		observers[i] = registration.observer
		if !registration.once {
			kept = append(kept, registration)
		}
	}
	h.channels[channel] = kept
	h.mu.Unlock()

	for _, observer := range observers {
		observer.Notify(channel, payload)
	}
	return nil
}

// MustPublish is for components publishing on channels they declared themselves:
// a failure there is a bug in the component.
func (h *Hub) MustPublish(channel string, payload any) {
	if err := h.Publish(channel, payload); err != nil {
		panic(err)
	}
}

// Count returns the number of observers on a channel
func (h *Hub) Count(channel string) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.channels[channel])
}

func indexOf(registrations []registration, observer Observer) int {
	for i, registration := range registrations {
		if registration.observer == observer {
			return i
		}
	}
	return -1
}

func remove(registrations []registration, index int) []registration {
	output := make([]registration, 0, len(registrations)-1)
	output = append(output, registrations[:index]...)
	return append(output, registrations[index+1:]...)
}
