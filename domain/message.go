package domain

import (
	"encoding/json"
	"fmt"
)

type MessageType string

const (
	TypeProblemStart     MessageType = "PROBLEM_START"
	TypeWaiting          MessageType = "WAITING"
	TypeStatus           MessageType = "STATUS"
	TypeSubmissionResult MessageType = "SUBMISSION_RESULT"
	TypeGameOver         MessageType = "GAME_OVER"
	TypeOpponentLeft     MessageType = "OPPONENT_LEFT"
	TypeError            MessageType = "ERROR"
	TypePaired           MessageType = "PAIRED"
)

// ServerMessage is the closed set of messages the server sends. Only the
// types in this file implement it.
type ServerMessage interface {
	Type() MessageType
	envelope() envelope
}

type envelope struct {
	Type    MessageType `json:"type"`
	Payload any         `json:"payload,omitempty"`
	Msg     string      `json:"msg,omitempty"`
	Winner  string      `json:"winner,omitempty"`
	Room    string      `json:"roomId,omitempty"`
	Players []string    `json:"players,omitempty"`
}

type ProblemStart struct{ Problem PublicProblem }

type Waiting struct{}

type Status struct{ Msg string }

type SubmissionResult struct{ Result ExecutionResult }

type GameOver struct{ Winner string }

type OpponentLeft struct{}

type ErrorMessage struct{ Msg string }

// Paired tells a queued client which room matchmaking put it in.
type Paired struct {
	Room    string
	Players []string
}

func (ProblemStart) Type() MessageType     { return TypeProblemStart }
func (Waiting) Type() MessageType          { return TypeWaiting }
func (Status) Type() MessageType           { return TypeStatus }
func (SubmissionResult) Type() MessageType { return TypeSubmissionResult }
func (GameOver) Type() MessageType         { return TypeGameOver }
func (OpponentLeft) Type() MessageType     { return TypeOpponentLeft }
func (ErrorMessage) Type() MessageType     { return TypeError }
func (Paired) Type() MessageType           { return TypePaired }

func (m ProblemStart) envelope() envelope { return envelope{Type: m.Type(), Payload: m.Problem} }
func (m Waiting) envelope() envelope      { return envelope{Type: m.Type()} }
func (m Status) envelope() envelope       { return envelope{Type: m.Type(), Msg: m.Msg} }
func (m SubmissionResult) envelope() envelope {
	return envelope{Type: m.Type(), Payload: m.Result}
}
func (m GameOver) envelope() envelope     { return envelope{Type: m.Type(), Winner: m.Winner} }
func (m OpponentLeft) envelope() envelope { return envelope{Type: m.Type()} }
func (m ErrorMessage) envelope() envelope { return envelope{Type: m.Type(), Msg: m.Msg} }
func (m Paired) envelope() envelope {
	return envelope{Type: m.Type(), Room: m.Room, Players: m.Players}
}

func Encode(m ServerMessage) ([]byte, error) {
	return json.Marshal(m.envelope())
}

type Action string

const ActionSubmitCode Action = "SUBMIT_CODE"

// ClientMessage is the closed set of messages a client may send.
type ClientMessage interface {
	Action() Action
	clientMessage()
}

type SubmitCode struct{ Code string }

func (SubmitCode) Action() Action { return ActionSubmitCode }
func (SubmitCode) clientMessage() {}

type inbound struct {
	Action Action `json:"action"`
	Code   string `json:"code"`
}

func Decode(data []byte) (ClientMessage, error) {
	var in inbound
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, fmt.Errorf("decode client message: %w", err)
	}
	switch in.Action {
	case ActionSubmitCode:
		return SubmitCode{Code: in.Code}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, in.Action)
	}
}
