package domain

import (
	"context"
	"time"
)

type EventKind string

const (
	EventMatchStarted       EventKind = "match_started"
	EventPlayerDisconnected EventKind = "player_disconnected"
	EventPlayerReconnected  EventKind = "player_reconnected"
	EventSubmissionJudged   EventKind = "submission_judged"
	EventGameOver           EventKind = "game_over"
	EventRoomClosed         EventKind = "room_closed"
)

// Event is a match lifecycle record handed to the configured sinks.
type Event struct {
	Kind      EventKind `json:"kind"`
	Room      string    `json:"room"`
	ClientID  string    `json:"clientId,omitempty"`
	Problem   string    `json:"problem,omitempty"`
	Passed    int       `json:"passed,omitempty"`
	Total     int       `json:"total,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func NewEvent(kind EventKind, room, clientID string) Event {
	return Event{Kind: kind, Room: room, ClientID: clientID, Timestamp: time.Now().UTC()}
}

// NopSink discards every event.
type NopSink struct{}

func (NopSink) Publish(context.Context, Event) {}
func (NopSink) Close() error                   { return nil }
