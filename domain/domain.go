package domain

import "context"

// MaxClients is the number of seats in a room.
const MaxClients = 2

type TestCase struct {
	ID       int    `json:"id"`
	Input    string `json:"input_text"`
	Expected string `json:"expected_text"`
}

// Signature names the function a submission must define on its Solution class.
type Signature struct {
	Function string `json:"fn"`
	Arity    int    `json:"args"`
}

// Problem is shared read-only by both clients of a room once assigned.
type Problem struct {
	Slug        string     `json:"slug"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	TestCases   []TestCase `json:"test_cases"`
	Signature   Signature  `json:"config"`
	StarterCode string     `json:"solution"`
}

// PublicProblem is what clients see in PROBLEM_START.
type PublicProblem struct {
	Slug        string     `json:"slug"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	TestCases   []TestCase `json:"test_cases"`
	StarterCode string     `json:"solution"`
}

func (p *Problem) Public() PublicProblem {
	return PublicProblem{
		Slug:        p.Slug,
		Title:       p.Title,
		Description: p.Description,
		TestCases:   p.TestCases,
		StarterCode: p.StarterCode,
	}
}

type TestOutcome struct {
	ID       int    `json:"id"`
	Passed   bool   `json:"passed"`
	Input    string `json:"input"`
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
}

// ExecutionResult holds either per-test outcomes or an error payload.
type ExecutionResult struct {
	Tests []TestOutcome `json:"tests,omitempty"`
	Error string        `json:"error,omitempty"`
	Raw   string        `json:"raw,omitempty"`
}

// AllPassed reports whether the result satisfies the win condition.
func (r ExecutionResult) AllPassed() bool {
	if r.Error != "" || len(r.Tests) == 0 {
		return false
	}
	for _, t := range r.Tests {
		if !t.Passed {
			return false
		}
	}
	return true
}

type RoomState string

const (
	StateEmpty    RoomState = "EMPTY"
	StateWaiting  RoomState = "WAITING"
	StateActive   RoomState = "ACTIVE"
	StateComplete RoomState = "COMPLETE"
)

type Connection interface {
	ID() string
	Room() string
	Send(data []byte) error
	Close() error
}

// MessageHandler drives one connection's lifecycle. Connect returns false when
// the connection was rejected and must not be read from.
type MessageHandler interface {
	Connect(conn Connection) bool
	Handle(conn Connection, data []byte)
	Disconnect(conn Connection)
}

type ProblemProvider interface {
	FetchProblem(ctx context.Context, slug string) (*Problem, error)
}

type Judge interface {
	Execute(ctx context.Context, code string, problem *Problem) (ExecutionResult, error)
}

// ProblemPicker chooses the problem for a room that just filled up.
type ProblemPicker interface {
	Pick() *Problem
}

type EventSink interface {
	Publish(ctx context.Context, event Event)
	Close() error
}
