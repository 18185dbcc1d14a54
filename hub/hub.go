package hub

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"codebattle-server/domain"
)

const DefaultGracePeriod = 15 * time.Second

// room is guarded by mu. A client id is either in clients or in grace, never
// both. Once closed is set the room is unreachable and must not be mutated.
type room struct {
	id       string
	clients  map[string]domain.Connection
	grace    map[string]*graceTimer
	problem  *domain.Problem
	winner   string
	complete bool
	judging  bool
	closed   bool
	mu       sync.Mutex
}

func newRoom(id string) *room {
	return &room{
		id:      id,
		clients: make(map[string]domain.Connection),
		grace:   make(map[string]*graceTimer),
	}
}

func (r *room) seats() int {
	return len(r.clients) + len(r.grace)
}

// Hub owns every room. Lock order is h.mu before room.mu; nothing takes h.mu
// while holding a room lock.
type Hub struct {
	rooms       map[string]*room
	mu          sync.RWMutex
	picker      domain.ProblemPicker
	gracePeriod time.Duration
	events      domain.EventSink
}

type Option func(*Hub)

func WithGracePeriod(d time.Duration) Option {
	return func(h *Hub) {
		if d > 0 {
			h.gracePeriod = d
		}
	}
}

func WithEvents(sink domain.EventSink) Option {
	return func(h *Hub) {
		if sink != nil {
			h.events = sink
		}
	}
}

func New(picker domain.ProblemPicker, opts ...Option) *Hub {
	h := &Hub{
		rooms:       make(map[string]*room),
		picker:      picker,
		gracePeriod: DefaultGracePeriod,
		events:      domain.NopSink{},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Admission describes the room right after a successful Connect.
type Admission struct {
	Count       int
	Reconnected bool
	State       domain.RoomState
}

// Connect registers conn in its room. The greeting (WAITING, PROBLEM_START or
// the reconnection status) is queued inside the same critical section so the
// clients of one room always observe the same order of events.
func (h *Hub) Connect(conn domain.Connection) (Admission, error) {
	for {
		r := h.getOrCreate(conn.Room())

		r.mu.Lock()
		if r.closed {
			r.mu.Unlock()
			h.removeRoom(r)
			continue
		}
		adm, err := h.admit(r, conn)
		r.mu.Unlock()

		if err != nil {
			slog.Info("client rejected", "room", conn.Room(), "clientId", conn.ID(), "error", err)
			return adm, err
		}
		slog.Info("client connected", "room", conn.Room(), "clientId", conn.ID(),
			"clients", adm.Count, "reconnected", adm.Reconnected)
		return adm, nil
	}
}

// admit runs with r.mu held.
func (h *Hub) admit(r *room, conn domain.Connection) (Admission, error) {
	id := conn.ID()
	old, connected := r.clients[id]
	_, reserved := r.grace[id]

	if !connected && !reserved && r.seats() >= domain.MaxClients {
		return Admission{Count: len(r.clients)}, domain.ErrRoomFull
	}

	if connected && old != conn {
		old.Close()
	}
	r.clients[id] = conn

	adm := Admission{Count: len(r.clients), Reconnected: reserved}
	if reserved {
		h.cancelGrace(r, id)
		r.broadcast(domain.Status{Msg: "Opponent reconnected!"})
		h.publish(domain.NewEvent(domain.EventPlayerReconnected, r.id, id))
	}

	switch {
	case r.problem == nil && len(r.clients) == domain.MaxClients:
		p, _ := r.assignIfAbsent(h.picker.Pick())
		r.broadcast(domain.ProblemStart{Problem: p.Public()})
		ev := domain.NewEvent(domain.EventMatchStarted, r.id, "")
		ev.Problem = p.Slug
		h.publish(ev)
	case r.problem != nil:
		send(conn, domain.ProblemStart{Problem: r.problem.Public()})
		if r.complete {
			send(conn, domain.GameOver{Winner: r.winner})
		}
	default:
		send(conn, domain.Waiting{})
	}

	adm.State = r.state()
	return adm, nil
}

// HandleDisconnect vacates conn's seat and starts its grace timer. A handle
// that was already replaced by a reconnect is ignored.
func (h *Hub) HandleDisconnect(conn domain.Connection) {
	r := h.lookup(conn.Room())
	if r == nil {
		return
	}

	id := conn.ID()
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed || r.clients[id] != conn {
		return
	}
	delete(r.clients, id)
	h.startGrace(r, id)
	r.broadcast(domain.Status{Msg: fmt.Sprintf("Opponent disconnected. Waiting %s...", h.gracePeriod)})
	h.publish(domain.NewEvent(domain.EventPlayerDisconnected, r.id, id))

	slog.Info("client disconnected", "room", r.id, "clientId", id,
		"clients", len(r.clients), "grace", h.gracePeriod)
}

func (h *Hub) PlayerCount(roomID string) int {
	r := h.lookup(roomID)
	if r == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return 0
	}
	return len(r.clients)
}

func (h *Hub) Stats() (rooms, clients int) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	rooms = len(h.rooms)
	for _, r := range h.rooms {
		r.mu.Lock()
		clients += len(r.clients)
		r.mu.Unlock()
	}
	return rooms, clients
}

func (h *Hub) RoomIDs() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]string, 0, len(h.rooms))
	for id := range h.rooms {
		ids = append(ids, id)
	}
	return ids
}

// Close stops every grace timer and closes every connection.
func (h *Hub) Close() {
	h.mu.Lock()
	rooms := h.rooms
	h.rooms = make(map[string]*room)
	h.mu.Unlock()

	for _, r := range rooms {
		r.mu.Lock()
		r.closed = true
		for id := range r.grace {
			h.cancelGrace(r, id)
		}
		conns := r.snapshot()
		r.mu.Unlock()

		for _, c := range conns {
			c.Close()
		}
	}
	slog.Info("hub closed", "rooms", len(rooms))
}

func (h *Hub) lookup(roomID string) *room {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.rooms[roomID]
}

func (h *Hub) getOrCreate(roomID string) *room {
	h.mu.Lock()
	defer h.mu.Unlock()

	r, exists := h.rooms[roomID]
	if !exists {
		r = newRoom(roomID)
		h.rooms[roomID] = r
		slog.Debug("room created", "room", roomID)
	}
	return r
}

// removeRoom drops r from the map unless a newer room already took its id.
func (h *Hub) removeRoom(r *room) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[r.id] == r {
		delete(h.rooms, r.id)
		slog.Info("room removed", "room", r.id)
	}
}

func (h *Hub) publish(ev domain.Event) {
	h.events.Publish(context.Background(), ev)
}
