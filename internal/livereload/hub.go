// Package livereload pushes reload signals to development browsers over server-sent events.
package livereload

import (
	"bufio"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/sitebuild/internal/logfields"
	"git.home.luguber.info/inful/sitebuild/internal/metrics"
)

// Kind selects how clients react to an event.
type Kind string

const (
	// KindReload reloads the whole page.
	KindReload Kind = "reload"
	// KindCSS refreshes stylesheets in place without reloading.
	KindCSS Kind = "css"
)

// HeartbeatInterval is how often idle connections receive an SSE comment.
const HeartbeatInterval = 30 * time.Second

// Event is the payload sent to clients.
type Event struct {
	ID   string `json:"id"`
	Kind Kind   `json:"kind"`
	Task string `json:"task,omitempty"`
}

// Broadcaster is implemented by Hub; consumers depend on it so tests can count broadcasts.
type Broadcaster interface {
	Broadcast(kind Kind, task string)
}

// Hub tracks connected SSE clients.
type Hub struct {
	mu       sync.RWMutex
	nextID   int
	clients  map[int]*client
	recorder metrics.Recorder
	closed   bool
	sent     int
}

type client struct {
	id   int
	ch   chan Event
	done chan struct{}
}

// NewHub creates a hub. A nil recorder disables metrics.
func NewHub(rec metrics.Recorder) *Hub {
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}
	return &Hub{clients: map[int]*client{}, recorder: rec}
}

// ServeHTTP implements the SSE endpoint.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	closed := h.closed
	h.mu.RUnlock()
	if closed {
		http.Error(w, "livereload shutting down", http.StatusServiceUnavailable)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "stream unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	c := &client{ch: make(chan Event, 8), done: make(chan struct{})}
	h.mu.Lock()
	c.id = h.nextID
	h.nextID++
	h.clients[c.id] = c
	n := len(h.clients)
	h.mu.Unlock()
	h.recorder.SetReloadClients(n)
	defer h.removeClient(c.id)

	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(": connected\n\n"); err != nil {
		return
	}
	if err := bw.Flush(); err != nil {
		return
	}
	flusher.Flush()

	hb := time.NewTicker(HeartbeatInterval)
	defer hb.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-c.done:
			return
		case <-hb.C:
			if _, err := bw.WriteString(": ping\n\n"); err != nil {
				slog.Debug("livereload ping write", logfields.Error(err))
				return
			}
		case ev := <-c.ch:
			payload, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			if _, err := bw.WriteString("id: " + ev.ID + "\ndata: " + string(payload) + "\n\n"); err != nil {
				slog.Debug("livereload broadcast write", logfields.Error(err))
				return
			}
		}
		if err := bw.Flush(); err != nil {
			return
		}
		flusher.Flush()
	}
}

func (h *Hub) removeClient(id int) {
	h.mu.Lock()
	c, ok := h.clients[id]
	if ok {
		delete(h.clients, id)
		close(c.done)
	}
	n := len(h.clients)
	h.mu.Unlock()
	if ok {
		h.recorder.SetReloadClients(n)
	}
}

// Broadcast sends an event to every client, dropping clients whose buffers are full.
func (h *Hub) Broadcast(kind Kind, task string) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.sent++
	ev := Event{ID: uuid.NewString(), Kind: kind, Task: task}
	snapshot := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		snapshot = append(snapshot, c)
	}
	h.mu.Unlock()

	dropped := 0
	for _, c := range snapshot {
		select {
		case c.ch <- ev:
		default:
			dropped++
			h.removeClient(c.id)
		}
	}
	h.recorder.IncReloadBroadcast(string(kind))
	slog.Debug("livereload broadcast",
		slog.String("kind", string(kind)),
		logfields.Task(task),
		slog.Int("clients", len(snapshot)),
		slog.Int("dropped", dropped))
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcasts returns how many broadcasts have been sent since creation.
func (h *Hub) Broadcasts() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.sent
}

// Shutdown disconnects all clients and ignores later broadcasts.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	clients := h.clients
	h.clients = map[int]*client{}
	h.mu.Unlock()
	for _, c := range clients {
		close(c.done)
	}
	h.recorder.SetReloadClients(0)
}
