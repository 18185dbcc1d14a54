package domain

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	tests := []struct {
		name string
		msg  ServerMessage
		want string
	}{
		{name: "waiting", msg: Waiting{}, want: `{"type":"WAITING"}`},
		{name: "status", msg: Status{Msg: "Opponent reconnected!"}, want: `{"type":"STATUS","msg":"Opponent reconnected!"}`},
		{name: "game over", msg: GameOver{Winner: "c1"}, want: `{"type":"GAME_OVER","winner":"c1"}`},
		{
			name: "paired",
			msg:  Paired{Room: "r-1", Players: []string{"alice", "bob"}},
			want: `{"type":"PAIRED","roomId":"r-1","players":["alice","bob"]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := Encode(tt.msg)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(data))
		})
	}
}

func TestDecode(t *testing.T) {
	msg, err := Decode([]byte(`{"action":"SUBMIT_CODE","code":"x = 1"}`))
	require.NoError(t, err)
	assert.Equal(t, SubmitCode{Code: "x = 1"}, msg)

	_, err = Decode([]byte(`{"action":"joinQueue"}`))
	assert.True(t, errors.Is(err, ErrUnknownAction))

	_, err = Decode([]byte(`{`))
	assert.Error(t, err)
}

func TestNopSink(t *testing.T) {
	var sink EventSink = NopSink{}
	assert.NotPanics(t, func() { sink.Publish(context.Background(), NewEvent(EventRoomClosed, "r1", "")) })
	assert.NoError(t, sink.Close())
}
