package hub

import (
	"log/slog"
	"time"

	"codebattle-server/domain"
)

// graceTimer is the handle for one (room, client) grace period. Whether it
// still counts is decided by identity: expiry only acts while the room's grace
// map points at this exact handle.
type graceTimer struct {
	timer *time.Timer
}

// cancel is idempotent; stopping a fired or stopped timer is a no-op.
func (t *graceTimer) cancel() {
	t.timer.Stop()
}

// startGrace runs with r.mu held. The callback blocks on r.mu, so t.timer is
// always assigned before expire can inspect it.
func (h *Hub) startGrace(r *room, clientID string) {
	if prev, ok := r.grace[clientID]; ok {
		prev.cancel()
	}
	t := &graceTimer{}
	t.timer = time.AfterFunc(h.gracePeriod, func() {
		h.expire(r, clientID, t)
	})
	r.grace[clientID] = t
}

// cancelGrace runs with r.mu held.
func (h *Hub) cancelGrace(r *room, clientID string) {
	t, ok := r.grace[clientID]
	if !ok {
		return
	}
	delete(r.grace, clientID)
	t.cancel()
}

// ClientInGrace reports whether clientID holds a reserved seat in roomID.
func (h *Hub) ClientInGrace(roomID, clientID string) bool {
	r := h.lookup(roomID)
	if r == nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.grace[clientID]
	return ok && !r.closed
}

// expire tears the room down unless the client came back or the handle was
// superseded.
func (h *Hub) expire(r *room, clientID string, t *graceTimer) {
	r.mu.Lock()
	if r.closed || r.grace[clientID] != t {
		r.mu.Unlock()
		return
	}
	delete(r.grace, clientID)
	if _, back := r.clients[clientID]; back {
		r.mu.Unlock()
		return
	}

	r.closed = true
	for id := range r.grace {
		h.cancelGrace(r, id)
	}
	peers := r.snapshot()
	r.clients = make(map[string]domain.Connection)
	r.problem = nil
	r.mu.Unlock()

	deliver(peers, domain.OpponentLeft{})
	for _, c := range peers {
		c.Close()
	}
	h.removeRoom(r)
	h.publish(domain.NewEvent(domain.EventRoomClosed, r.id, clientID))

	slog.Info("grace period expired, room closed", "room", r.id, "clientId", clientID, "peers", len(peers))
}
