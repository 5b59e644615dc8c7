// Package notifier fans out change notifications to long-lived SSE clients.
package notifier

import "sync"

// Topic names what changed. Listeners re-fetch the matching resource.
type Topic string

// Topics published by the server.
const (
	TopicCells  Topic = "cells"
	TopicSchema Topic = "schema"
)

// Notifier publishes topics to every subscribed listener.
type Notifier struct {
	mu        sync.RWMutex
	listeners map[chan Topic]struct{}
}

// New creates a new Notifier instance.
func New() *Notifier {
	return &Notifier{
		listeners: make(map[chan Topic]struct{}),
	}
}

// Subscribe returns a channel that receives published topics.
// The caller must call Unsubscribe when done to prevent goroutine leaks.
func (n *Notifier) Subscribe() chan Topic {
	ch := make(chan Topic, 4)
	n.mu.Lock()
	n.listeners[ch] = struct{}{}
	n.mu.Unlock()
	return ch
}

// Unsubscribe removes a listener channel and closes it.
func (n *Notifier) Unsubscribe(ch chan Topic) {
	n.mu.Lock()
	delete(n.listeners, ch)
	n.mu.Unlock()
	close(ch)
}

// Listeners returns the number of subscribed listeners.
func (n *Notifier) Listeners() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.listeners)
}

// Publish sends t to all listeners without blocking. A listener whose
// buffer is full misses the topic; it still sees the next one.
func (n *Notifier) Publish(t Topic) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	for ch := range n.listeners {
		select {
		case ch <- t:
		default:
		}
	}
}
