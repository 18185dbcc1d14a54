package domain

import "errors"

var (
	ErrRoomFull        = errors.New("room is full")
	ErrRoomNotFound    = errors.New("room not found")
	ErrNotConnected    = errors.New("client not connected")
	ErrMatchNotStarted = errors.New("match has not started")
	ErrMatchFinished   = errors.New("match is finished")
	ErrJudgeBusy       = errors.New("submission already in flight")
	ErrUnknownAction   = errors.New("unknown action")
	ErrEmptyCode       = errors.New("empty submission")
	ErrProblemNotFound = errors.New("problem not found")
	ErrConnClosed      = errors.New("connection closed")
	ErrSendBufferFull  = errors.New("send buffer full")
)
