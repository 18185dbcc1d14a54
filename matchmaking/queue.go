// Package matchmaking pairs clients that have no room into fresh rooms.
package matchmaking

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"codebattle-server/domain"
)

// seat is a queued connection bound to the room it was paired into. The same
// *seat is handed to the room handler for the whole session so the room can
// tell it apart from a later handle with the same client id.
type seat struct {
	domain.Connection
	room string
}

func (s *seat) Room() string { return s.room }

// Queue is a MessageHandler for connections that arrive without a room. The
// first client waits; the next one is paired with it into a new room and both
// are handed to the room handler. From then on their messages go to that
// handler unchanged.
type Queue struct {
	next    domain.MessageHandler
	newRoom func() string

	mu      sync.Mutex
	waiting domain.Connection
	seats   map[domain.Connection]*seat
}

type Option func(*Queue)

// WithRoomIDs replaces the generator for paired room ids.
func WithRoomIDs(gen func() string) Option {
	return func(q *Queue) {
		if gen != nil {
			q.newRoom = gen
		}
	}
}

func NewQueue(next domain.MessageHandler, opts ...Option) *Queue {
	q := &Queue{
		next:    next,
		newRoom: uuid.NewString,
		seats:   make(map[domain.Connection]*seat),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

func (q *Queue) Connect(conn domain.Connection) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.waiting == nil || q.waiting.ID() == conn.ID() {
		if q.waiting != nil && q.waiting != conn {
			q.waiting.Close()
		}
		q.waiting = conn
		reply(conn, domain.Waiting{})
		slog.Info("client queued", "clientId", conn.ID())
		return true
	}

	first := q.waiting
	q.waiting = nil
	room := q.newRoom()

	paired := domain.Paired{Room: room, Players: []string{first.ID(), conn.ID()}}
	reply(first, paired)
	reply(conn, paired)
	slog.Info("clients paired", "room", room, "players", paired.Players)

	for _, c := range []domain.Connection{first, conn} {
		s := &seat{Connection: c, room: room}
		q.seats[c] = s
		if !q.next.Connect(s) {
			delete(q.seats, c)
		}
	}
	return true
}

func (q *Queue) Handle(conn domain.Connection, data []byte) {
	q.mu.Lock()
	s, ok := q.seats[conn]
	q.mu.Unlock()

	if !ok {
		slog.Debug("message before pairing ignored", "clientId", conn.ID())
		return
	}
	q.next.Handle(s, data)
}

func (q *Queue) Disconnect(conn domain.Connection) {
	q.mu.Lock()
	if q.waiting == conn {
		q.waiting = nil
		q.mu.Unlock()
		slog.Info("client left queue", "clientId", conn.ID())
		return
	}
	s, ok := q.seats[conn]
	delete(q.seats, conn)
	q.mu.Unlock()

	if ok {
		q.next.Disconnect(s)
	}
}

// Waiting reports the id of the queued client, if any.
func (q *Queue) Waiting() (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.waiting == nil {
		return "", false
	}
	return q.waiting.ID(), true
}

func reply(conn domain.Connection, msg domain.ServerMessage) {
	data, err := domain.Encode(msg)
	if err != nil {
		slog.Error("encode message", "type", msg.Type(), "error", err)
		return
	}
	if err := conn.Send(data); err != nil {
		slog.Debug("queue reply failed", "clientId", conn.ID(), "error", err)
	}
}
