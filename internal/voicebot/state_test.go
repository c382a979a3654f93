package voicebot

import (
	"errors"
	"testing"
)

func TestConnectionStateString(t *testing.T) {
	tests := []struct {
		state ConnectionState
		want  string
	}{
		{StateIdle, "idle"},
		{StateConnecting, "connecting"},
		{StateReady, "ready"},
		{StateClosed, "closed"},
		{StateError, "error"},
		{ConnectionState(99), "unknown"},
	}
	for _, tc := range tests {
		if got := tc.state.String(); got != tc.want {
			t.Errorf("%d.String() = %q, want %q", tc.state, got, tc.want)
		}
	}
}

func TestTurnStateUserAndAIAreExclusive(t *testing.T) {
	var turn turnState

	if !turn.beginUserSpeech() {
		t.Fatal("user should take the floor when the AI is silent")
	}

	turn.beginAISpeech()
	if turn.userSpeaking {
		t.Error("AI speech must displace the user-speaking mark")
	}
	if turn.beginUserSpeech() {
		t.Error("user must not take the floor while the AI speaks")
	}

	turn.endAISpeech()
	if !turn.beginUserSpeech() {
		t.Error("user should take the floor once the AI finishes")
	}
}

func TestTurnStateEndAndResume(t *testing.T) {
	var turn turnState
	turn.beginUserSpeech()
	turn.endTurn()

	if turn.userSpeaking {
		t.Error("ending the turn must clear user speech")
	}
	if !turn.turnEnded {
		t.Error("ending the turn must set the ended mark")
	}

	turn.resumeTurn()
	if turn.turnEnded {
		t.Error("resuming must clear the ended mark")
	}
}

func TestFrameQueueDrainsInOrder(t *testing.T) {
	var q frameQueue
	q.push([]byte{1})
	q.push([]byte{2})
	q.push([]byte{3})

	if q.len() != 3 {
		t.Fatalf("queue length = %d, want 3", q.len())
	}

	var sent []byte
	if err := q.drain(func(frame []byte) error {
		sent = append(sent, frame[0])
		return nil
	}); err != nil {
		t.Fatalf("drain failed: %v", err)
	}
	if string(sent) != "\x01\x02\x03" {
		t.Errorf("drain order = %v, want [1 2 3]", sent)
	}
	if q.len() != 0 {
		t.Errorf("queue should be empty after drain, has %d", q.len())
	}
}

func TestFrameQueueDrainEmptiesOnError(t *testing.T) {
	var q frameQueue
	q.push([]byte{1})
	q.push([]byte{2})

	sendErr := errors.New("socket gone")
	err := q.drain(func(frame []byte) error {
		return sendErr
	})
	if !errors.Is(err, sendErr) {
		t.Fatalf("drain error = %v, want %v", err, sendErr)
	}
	// Frames lost to a dead socket are not retried out of order later.
	if q.len() != 0 {
		t.Errorf("queue should be empty even after a failed drain, has %d", q.len())
	}
}
