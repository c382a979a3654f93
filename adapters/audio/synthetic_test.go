package audio

import (
	"context"
	"testing"
	"time"
)

func TestScriptedSourceEmitsFramesInOrder(t *testing.T) {
	frames := [][]float32{
		ToneFrame(64, 0.5),
		SilenceFrame(64),
		ToneFrame(64, 0.1),
	}
	src := NewScriptedSource(frames, time.Millisecond)

	out, err := src.Start(context.Background())
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	var got [][]float32
	for frame := range out {
		got = append(got, frame)
	}
	if len(got) != len(frames) {
		t.Fatalf("received %d frames, want %d", len(got), len(frames))
	}
	for i := range frames {
		if got[i][0] != frames[i][0] {
			t.Errorf("frame %d: first sample = %v, want %v", i, got[i][0], frames[i][0])
		}
	}

	if err := src.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
}

func TestScriptedSourceStopClosesChannel(t *testing.T) {
	frames := make([][]float32, 100)
	for i := range frames {
		frames[i] = SilenceFrame(64)
	}
	src := NewScriptedSource(frames, 50*time.Millisecond)

	out, err := src.Start(context.Background())
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := src.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-out:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("channel not closed after Stop()")
		}
	}
}

func TestScriptedSourceRejectsDoubleStart(t *testing.T) {
	src := NewScriptedSource(nil, time.Millisecond)
	if _, err := src.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if _, err := src.Start(context.Background()); err == nil {
		t.Fatal("second Start() should fail while running")
	}
	if err := src.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
}

func TestToneFrameAmplitude(t *testing.T) {
	frame := ToneFrame(256, 0.5)
	var peak float32
	for _, s := range frame {
		if s > peak {
			peak = s
		}
	}
	if peak < 0.45 || peak > 0.5 {
		t.Errorf("peak = %v, want close to 0.5", peak)
	}
	for i, s := range SilenceFrame(64) {
		if s != 0 {
			t.Fatalf("silence frame sample %d = %v, want 0", i, s)
		}
	}
}

func TestBufferSinkRecordsAndRefusesAfterClose(t *testing.T) {
	sink := NewBufferSink()

	at := time.Now().Add(10 * time.Millisecond)
	if err := sink.PlayAt(make([]byte, 320), at); err != nil {
		t.Fatalf("PlayAt() error = %v", err)
	}

	played := sink.Played()
	if len(played) != 1 {
		t.Fatalf("recorded %d plays, want 1", len(played))
	}
	if played[0].Size != 320 || !played[0].At.Equal(at) {
		t.Errorf("recorded play = %+v, want size 320 at %v", played[0], at)
	}

	if err := sink.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := sink.PlayAt(make([]byte, 320), at); err == nil {
		t.Fatal("PlayAt() after Close() should fail")
	}
}
