// Package websocket provides the connection hub behind the realtime router.
// Clients subscribe to named topics (rooms, personal channels) and receive
// pre-encoded frames broadcast to those topics.
package websocket

import (
	"sync"
)

// Client represents a single WebSocket connection.
type Client struct {
	ID   string
	Send chan []byte
}

// NewClient allocates a client with a buffered outbound queue.
func NewClient(id string, buffer int) *Client {
	return &Client{ID: id, Send: make(chan []byte, buffer)}
}

// Hub is the central connection manager that tracks clients and their topic
// subscriptions. All operations are thread-safe via sync.RWMutex.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{} // topic -> set of clients
	all     map[*Client]map[string]struct{} // client -> its topics
	dropped uint64
}

// NewHub creates a new Hub ready to manage WebSocket clients.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]map[*Client]struct{}),
		all:     make(map[*Client]map[string]struct{}),
	}
}

// Register adds a client to the hub and subscribes it to its initial topics.
func (h *Hub) Register(client *Client, topics ...string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.all[client]; !ok {
		h.all[client] = make(map[string]struct{})
	}
	h.subscribeLocked(client, topics)
}

// Unregister removes a client from the hub, all topic subscriptions, and
// closes the client's Send channel. It is safe to call more than once.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	topics, ok := h.all[client]
	if !ok {
		return
	}
	for topic := range topics {
		h.removeLocked(topic, client)
	}
	delete(h.all, client)
	close(client.Send)
}

// Subscribe adds topics to an already-registered client. Unknown clients are
// ignored.
func (h *Hub) Subscribe(client *Client, topics ...string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.all[client]; !ok {
		return
	}
	h.subscribeLocked(client, topics)
}

func (h *Hub) subscribeLocked(client *Client, topics []string) {
	for _, topic := range topics {
		if h.clients[topic] == nil {
			h.clients[topic] = make(map[*Client]struct{})
		}
		h.clients[topic][client] = struct{}{}
		h.all[client][topic] = struct{}{}
	}
}

// Unsubscribe removes topics from an already-registered client.
func (h *Hub) Unsubscribe(client *Client, topics ...string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	own, ok := h.all[client]
	if !ok {
		return
	}
	for _, topic := range topics {
		h.removeLocked(topic, client)
		delete(own, topic)
	}
}

func (h *Hub) removeLocked(topic string, client *Client) {
	if subscribers, ok := h.clients[topic]; ok {
		delete(subscribers, client)
		if len(subscribers) == 0 {
			delete(h.clients, topic)
		}
	}
}

// Broadcast sends data to every subscriber of topic except the given client
// (nil excludes nobody). It returns the number of clients the frame was
// queued for.
func (h *Hub) Broadcast(topic string, data []byte, except *Client) int {
	return h.BroadcastTopics([]string{topic}, data, except)
}

// BroadcastTopics sends data once to each client subscribed to any of the
// topics. A client in several of the topics still receives a single copy.
func (h *Hub) BroadcastTopics(topics []string, data []byte, except *Client) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	seen := make(map[*Client]struct{})
	sent := 0
	for _, topic := range topics {
		for client := range h.clients[topic] {
			if client == except {
				continue
			}
			if _, dup := seen[client]; dup {
				continue
			}
			seen[client] = struct{}{}
			if h.trySendLocked(client, data) {
				sent++
			}
		}
	}
	return sent
}

// SendTo queues data for one client. It returns false if the client is not
// registered or its buffer is full.
func (h *Hub) SendTo(client *Client, data []byte) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.all[client]; !ok {
		return false
	}
	return h.trySendLocked(client, data)
}

func (h *Hub) trySendLocked(client *Client, data []byte) bool {
	select {
	case client.Send <- data:
		return true
	default:
		// Client buffer full; skip to avoid blocking.
		h.dropped++
		return false
	}
}

// Subscribed reports whether client is subscribed to topic.
func (h *Hub) Subscribed(client *Client, topic string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[topic][client]
	return ok
}

// ClientCount returns the total number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.all)
}

// TopicCount returns the number of clients subscribed to a specific topic.
func (h *Hub) TopicCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[topic])
}

// Dropped returns how many frames were discarded because a client's buffer
// was full.
func (h *Hub) Dropped() uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.dropped
}
