package hub

import (
	"codebattle-server/domain"
)

// assignIfAbsent runs with r.mu held and returns the problem the room ends up
// with.
func (r *room) assignIfAbsent(p *domain.Problem) (*domain.Problem, bool) {
	if r.problem != nil || p == nil {
		return r.problem, false
	}
	r.problem = p
	return p, true
}

func (r *room) state() domain.RoomState {
	switch {
	case r.complete:
		return domain.StateComplete
	case r.problem != nil:
		return domain.StateActive
	case r.seats() > 0:
		return domain.StateWaiting
	default:
		return domain.StateEmpty
	}
}

// assignProblem sets the room's problem unless one is already assigned. It
// returns the assigned problem and whether this call set it. Admission calls
// room.assignIfAbsent directly since it already holds the lock.
func (h *Hub) assignProblem(roomID string, p *domain.Problem) (*domain.Problem, bool) {
	r := h.lookup(roomID)
	if r == nil {
		return nil, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, false
	}
	return r.assignIfAbsent(p)
}

func (h *Hub) Problem(roomID string) *domain.Problem {
	r := h.lookup(roomID)
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	return r.problem
}

// State is EMPTY for rooms that do not exist or were torn down.
func (h *Hub) State(roomID string) domain.RoomState {
	r := h.lookup(roomID)
	if r == nil {
		return domain.StateEmpty
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return domain.StateEmpty
	}
	return r.state()
}

// Ticket is the single in-flight submission of a room.
type Ticket struct {
	room     *room
	ClientID string
	Problem  *domain.Problem
}

func (t *Ticket) Room() string { return t.room.id }

// BeginSubmission claims the room's judge slot for clientID and tells the room
// a submission is running.
func (h *Hub) BeginSubmission(roomID, clientID string) (*Ticket, error) {
	r := h.lookup(roomID)
	if r == nil {
		return nil, domain.ErrRoomNotFound
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	switch {
	case r.closed:
		return nil, domain.ErrRoomNotFound
	case r.clients[clientID] == nil:
		return nil, domain.ErrNotConnected
	case r.complete:
		return nil, domain.ErrMatchFinished
	case r.problem == nil:
		return nil, domain.ErrMatchNotStarted
	case r.judging:
		return nil, domain.ErrJudgeBusy
	}

	r.judging = true
	r.broadcast(domain.Status{Msg: "Opponent is running code..."})
	return &Ticket{room: r, ClientID: clientID, Problem: r.problem}, nil
}

// FinishSubmission releases the judge slot, sends the result to the
// submitter and evaluates the win condition. It reports whether the
// submission won the match. Results for a room that was torn down meanwhile
// are dropped.
func (h *Hub) FinishSubmission(t *Ticket, result domain.ExecutionResult) bool {
	r := t.room
	r.mu.Lock()
	defer r.mu.Unlock()

	r.judging = false
	if r.closed {
		return false
	}

	if c, ok := r.clients[t.ClientID]; ok {
		send(c, domain.SubmissionResult{Result: result})
	}

	if r.complete || !result.AllPassed() {
		return false
	}
	r.complete = true
	r.winner = t.ClientID
	r.broadcast(domain.GameOver{Winner: t.ClientID})
	return true
}
