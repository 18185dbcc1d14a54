package hub

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"codebattle-server/domain"
)

func TestHub_Broadcast(t *testing.T) {
	tests := []struct {
		name         string
		setup        func(*Hub) []*mockConn
		wantReceived map[string]int
	}{
		{
			name: "broadcast to room members",
			setup: func(h *Hub) []*mockConn {
				c1, c2 := newConn("c1", "room1"), newConn("c2", "room1")
				h.Connect(c1)
				h.Connect(c2)
				return []*mockConn{c1, c2}
			},
			wantReceived: map[string]int{"c1": 1, "c2": 1},
		},
		{
			name: "no cross-room broadcast",
			setup: func(h *Hub) []*mockConn {
				c1, other := newConn("c1", "room1"), newConn("other", "room2")
				h.Connect(c1)
				h.Connect(other)
				return []*mockConn{c1, other}
			},
			wantReceived: map[string]int{"c1": 1, "other": 0},
		},
		{
			name: "failed send is swallowed",
			setup: func(h *Hub) []*mockConn {
				broken, ok := newConn("broken", "room1"), newConn("ok", "room1")
				h.Connect(broken)
				h.Connect(ok)
				broken.sendErr = errors.New("write: broken pipe")
				return []*mockConn{ok}
			},
			wantReceived: map[string]int{"ok": 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := newTestHub()
			conns := tt.setup(h)

			h.Broadcast("room1", domain.Status{Msg: "hello"})

			for _, c := range conns {
				assert.Equal(t, tt.wantReceived[c.ID()], c.count(t, domain.TypeStatus), "client %s", c.ID())
			}
		})
	}
}

func TestHub_BroadcastUnknownRoom(t *testing.T) {
	h, _ := newTestHub()
	assert.NotPanics(t, func() {
		h.Broadcast("missing", domain.OpponentLeft{})
	})
}

func TestHub_BroadcastSkipsVacatedSeat(t *testing.T) {
	h, _ := newTestHub(WithGracePeriod(time.Minute))
	c1, c2 := newConn("c1", "r1"), newConn("c2", "r1")
	h.Connect(c1)
	h.Connect(c2)
	h.HandleDisconnect(c2)
	before := c2.count(t, domain.TypeStatus)

	h.Broadcast("r1", domain.Status{Msg: "only c1"})

	assert.Equal(t, before, c2.count(t, domain.TypeStatus))
	assert.Equal(t, "only c1", c1.messages(t)[len(c1.messages(t))-1].Msg)
	h.Close()
}

func TestHub_LateJoinerNotPagedRetroactively(t *testing.T) {
	h, _ := newTestHub()
	c1 := newConn("c1", "r1")
	h.Connect(c1)

	h.Broadcast("r1", domain.Status{Msg: "before"})
	late := newConn("c2", "r1")
	h.Connect(late)

	assert.Zero(t, late.count(t, domain.TypeStatus))
	assert.Equal(t, 1, c1.count(t, domain.TypeStatus))
}
