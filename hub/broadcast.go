package hub

import (
	"log/slog"

	"codebattle-server/domain"
)

// Broadcast delivers msg to every client connected to roomID at call time.
// Delivery is best-effort: a failed send is dropped and never reported. The
// hub's own paths hold the room lock and use room.broadcast; Broadcast is for
// callers outside the hub.
func (h *Hub) Broadcast(roomID string, msg domain.ServerMessage) {
	r := h.lookup(roomID)
	if r == nil {
		return
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	conns := r.snapshot()
	r.mu.Unlock()

	deliver(conns, msg)
}

// broadcast is Broadcast for callers already holding r.mu. It is safe because
// Connection.Send never blocks.
func (r *room) broadcast(msg domain.ServerMessage) {
	deliver(r.snapshot(), msg)
}

func (r *room) snapshot() []domain.Connection {
	conns := make([]domain.Connection, 0, len(r.clients))
	for _, c := range r.clients {
		conns = append(conns, c)
	}
	return conns
}

func deliver(conns []domain.Connection, msg domain.ServerMessage) {
	if len(conns) == 0 {
		return
	}
	data, err := domain.Encode(msg)
	if err != nil {
		slog.Error("encode message", "type", msg.Type(), "error", err)
		return
	}
	for _, c := range conns {
		if err := c.Send(data); err != nil {
			slog.Debug("broadcast send failed", "room", c.Room(), "clientId", c.ID(), "type", msg.Type(), "error", err)
		}
	}
}

func send(conn domain.Connection, msg domain.ServerMessage) {
	deliver([]domain.Connection{conn}, msg)
}
