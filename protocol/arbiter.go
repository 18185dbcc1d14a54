package protocol

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"codebattle-server/domain"
	"codebattle-server/hub"
)

// Submit runs one code submission: the room is told a run started, the judge
// is called on the worker pool and the outcome is settled by the hub. A room
// has at most one submission in flight; extra ones are rejected.
func (h *Handler) Submit(conn domain.Connection, code string) {
	if strings.TrimSpace(code) == "" {
		reply(conn, domain.ErrorMessage{Msg: rejection(domain.ErrEmptyCode)})
		return
	}

	ticket, err := h.hub.BeginSubmission(conn.Room(), conn.ID())
	if err != nil {
		slog.Info("submission rejected", "room", conn.Room(), "clientId", conn.ID(), "error", err)
		reply(conn, domain.ErrorMessage{Msg: rejection(err)})
		return
	}

	if !h.dispatch(ticket, code) {
		h.settle(ticket, "", domain.ExecutionResult{Error: "Server is shutting down"})
	}
}

func (h *Handler) dispatch(t *hub.Ticket, code string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}

	id := uuid.NewString()
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()

		select {
		case h.slots <- struct{}{}:
		case <-h.ctx.Done():
			h.settle(t, id, domain.ExecutionResult{Error: "Server is shutting down"})
			return
		}
		defer func() { <-h.slots }()

		h.settle(t, id, h.run(t, id, code))
	}()
	return true
}

func (h *Handler) run(t *hub.Ticket, id, code string) domain.ExecutionResult {
	ctx, cancel := context.WithTimeout(h.ctx, h.timeout)
	defer cancel()

	start := time.Now()
	result, err := h.judge.Execute(ctx, code, t.Problem)
	if err != nil {
		slog.Warn("judge failed", "room", t.Room(), "clientId", t.ClientID, "submission", id, "error", err)
		return domain.ExecutionResult{Error: fmt.Sprintf("Connection Error: %v", err)}
	}

	slog.Info("submission judged", "room", t.Room(), "clientId", t.ClientID, "submission", id,
		"tests", len(result.Tests), "passed", result.AllPassed(), "duration", time.Since(start))
	return result
}

func (h *Handler) settle(t *hub.Ticket, id string, result domain.ExecutionResult) {
	won := h.hub.FinishSubmission(t, result)

	ev := domain.NewEvent(domain.EventSubmissionJudged, t.Room(), t.ClientID)
	ev.Problem = t.Problem.Slug
	ev.Total = len(result.Tests)
	for _, tc := range result.Tests {
		if tc.Passed {
			ev.Passed++
		}
	}
	h.events.Publish(context.Background(), ev)

	if won {
		slog.Info("game over", "room", t.Room(), "winner", t.ClientID, "submission", id)
		over := domain.NewEvent(domain.EventGameOver, t.Room(), t.ClientID)
		over.Problem = t.Problem.Slug
		h.events.Publish(context.Background(), over)
	}
}

func rejection(err error) string {
	switch {
	case errors.Is(err, domain.ErrEmptyCode):
		return "Submission is empty"
	case errors.Is(err, domain.ErrJudgeBusy):
		return "A submission is already being judged"
	case errors.Is(err, domain.ErrMatchNotStarted):
		return "Waiting for an opponent"
	case errors.Is(err, domain.ErrMatchFinished):
		return "Match is over"
	default:
		return "Room is closed"
	}
}
