package protocol

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"codebattle-server/domain"
	"codebattle-server/hub"
)

const (
	DefaultJudgeTimeout = 15 * time.Second
	DefaultWorkers      = 8
)

// Handler drives the room protocol for every connection: admission, inbound
// messages and disconnects.
type Handler struct {
	hub     *hub.Hub
	judge   domain.Judge
	events  domain.EventSink
	timeout time.Duration
	slots   chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
	closed bool
}

type Option func(*Handler)

func WithJudgeTimeout(d time.Duration) Option {
	return func(h *Handler) {
		if d > 0 {
			h.timeout = d
		}
	}
}

// WithWorkers caps concurrent judge calls across all rooms.
func WithWorkers(n int) Option {
	return func(h *Handler) {
		if n > 0 {
			h.slots = make(chan struct{}, n)
		}
	}
}

func WithEvents(sink domain.EventSink) Option {
	return func(h *Handler) {
		if sink != nil {
			h.events = sink
		}
	}
}

func NewHandler(coordinator *hub.Hub, judge domain.Judge, opts ...Option) *Handler {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Handler{
		hub:     coordinator,
		judge:   judge,
		events:  domain.NopSink{},
		timeout: DefaultJudgeTimeout,
		slots:   make(chan struct{}, DefaultWorkers),
		ctx:     ctx,
		cancel:  cancel,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) Connect(conn domain.Connection) bool {
	if _, err := h.hub.Connect(conn); err != nil {
		msg := "Unable to join room"
		if errors.Is(err, domain.ErrRoomFull) {
			msg = "Room is full"
		}
		reply(conn, domain.ErrorMessage{Msg: msg})
		conn.Close()
		return false
	}
	return true
}

func (h *Handler) Disconnect(conn domain.Connection) {
	h.hub.HandleDisconnect(conn)
}

func (h *Handler) Handle(conn domain.Connection, data []byte) {
	msg, err := domain.Decode(data)
	if err != nil {
		slog.Warn("invalid message", "room", conn.Room(), "clientId", conn.ID(), "error", err)
		return
	}

	switch m := msg.(type) {
	case domain.SubmitCode:
		h.Submit(conn, m.Code)
	}
}

// Close stops accepting submissions, cancels in-flight judge calls and waits
// for their results to be settled.
func (h *Handler) Close() {
	h.mu.Lock()
	h.closed = true
	h.mu.Unlock()

	h.cancel()
	h.wg.Wait()
}

func reply(conn domain.Connection, msg domain.ServerMessage) {
	data, err := domain.Encode(msg)
	if err != nil {
		slog.Error("encode message", "type", msg.Type(), "error", err)
		return
	}
	if err := conn.Send(data); err != nil {
		slog.Debug("reply failed", "room", conn.Room(), "clientId", conn.ID(), "error", err)
	}
}
