// Package events allows for the registering and receiving of events.
package events

import (
	"fmt"
	"sync"
)

// Since a message will be dropped if the websocket receiver is not ready to
// receive, this arbitrary buffer should give the receiver enough time to not
// lose a message. Websocket send could take long.
const messageBuffer = 100

// Events maintains a mapping of unique id and channels so goroutines
// can register and receive events.
type Events struct {
	subscribers map[string]chan string
	mu          sync.RWMutex
}

// New constructs an events for registering and receiving events.
func New() *Events {
	return &Events{
		subscribers: make(map[string]chan string),
	}
}

// Shutdown closes and removes all channels that were provided by
// the call to Acquire.
func (evt *Events) Shutdown() {
	evt.mu.Lock()
	defer evt.mu.Unlock()

	for id, ch := range evt.subscribers {
		delete(evt.subscribers, id)
		close(ch)
	}
}

// Acquire takes a unique id and returns a channel that can be used
// to receive events.
func (evt *Events) Acquire(id string) chan string {
	evt.mu.Lock()
	defer evt.mu.Unlock()

	ch, exists := evt.subscribers[id]
	if exists {
		return ch
	}

	evt.subscribers[id] = make(chan string, messageBuffer)
	return evt.subscribers[id]
}

// Release closes and removes the channel that was provided by
// the call to Acquire.
func (evt *Events) Release(id string) error {
	evt.mu.Lock()
	defer evt.mu.Unlock()

	ch, exists := evt.subscribers[id]
	if !exists {
		return fmt.Errorf("id %q does not exist", id)
	}

	delete(evt.subscribers, id)
	close(ch)
	return nil
}

// Send formats a message and signals it to every registered channel. Send
// will not block waiting for a receiver on any given channel. The signature
// matches the event handler used by the ledger state so the node can hand
// it straight through.
func (evt *Events) Send(v string, args ...any) {
	evt.mu.RLock()
	defer evt.mu.RUnlock()

	s := fmt.Sprintf(v, args...)

	for _, ch := range evt.subscribers {
		select {
		case ch <- s:
		default:
		}
	}
}
