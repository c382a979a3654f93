package voicebot

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"testing"
)

func TestDecodeServerMessage(t *testing.T) {
	audio := base64.StdEncoding.EncodeToString([]byte{0x01, 0x02, 0x03, 0x04})

	tests := []struct {
		name string
		raw  string
		want ServerEvent
	}{
		{
			name: "ready",
			raw:  `{"type":"ready","sessionId":"s-1"}`,
			want: ReadyEvent{SessionID: "s-1"},
		},
		{
			name: "session_initialized alias",
			raw:  `{"type":"session_initialized","sessionId":"s-2"}`,
			want: ReadyEvent{SessionID: "s-2"},
		},
		{
			name: "partial transcript",
			raw:  `{"type":"partial_transcript","text":"hello wor"}`,
			want: PartialTranscriptEvent{Text: "hello wor"},
		},
		{
			name: "realtime transcript alias with final flag",
			raw:  `{"type":"realtime_transcript","text":"hello world","is_final":true}`,
			want: PartialTranscriptEvent{Text: "hello world", IsFinal: true},
		},
		{
			name: "final transcript",
			raw:  `{"type":"final_transcript","text":"hello world"}`,
			want: FinalTranscriptEvent{Text: "hello world"},
		},
		{
			name: "ai response text",
			raw:  `{"type":"ai_response_text","text":"Hi there"}`,
			want: AIResponseTextEvent{Text: "Hi there"},
		},
		{
			name: "ai_response alias",
			raw:  `{"type":"ai_response","text":"Hi there"}`,
			want: AIResponseTextEvent{Text: "Hi there"},
		},
		{
			name: "audio chunk via frame",
			raw:  `{"type":"ai_response_audio_chunk","frame":"` + audio + `"}`,
			want: AIAudioChunkEvent{Audio: []byte{1, 2, 3, 4}, MimeType: "audio/pcm"},
		},
		{
			name: "audio chunk via audioData with mime",
			raw:  `{"type":"ai_audio","audioData":"` + audio + `","mimeType":"audio/mpeg"}`,
			want: AIAudioChunkEvent{Audio: []byte{1, 2, 3, 4}, MimeType: "audio/mpeg"},
		},
		{
			name: "audio end",
			raw:  `{"type":"ai_response_audio_end"}`,
			want: AIAudioEndEvent{},
		},
		{
			name: "server error",
			raw:  `{"type":"error","message":"transcriber overloaded"}`,
			want: ServerErrorEvent{Message: "transcriber overloaded"},
		},
		{
			name: "ai_error alias",
			raw:  `{"type":"ai_error","message":"model unavailable"}`,
			want: ServerErrorEvent{Message: "model unavailable"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := DecodeServerMessage([]byte(tc.raw))
			if err != nil {
				t.Fatalf("decode failed: %v", err)
			}
			switch want := tc.want.(type) {
			case AIAudioChunkEvent:
				chunk, ok := got.(AIAudioChunkEvent)
				if !ok {
					t.Fatalf("got %T, want AIAudioChunkEvent", got)
				}
				if chunk.MimeType != want.MimeType {
					t.Errorf("mime = %q, want %q", chunk.MimeType, want.MimeType)
				}
				if string(chunk.Audio) != string(want.Audio) {
					t.Errorf("audio = %v, want %v", chunk.Audio, want.Audio)
				}
			default:
				if got != tc.want {
					t.Errorf("got %#v, want %#v", got, tc.want)
				}
			}
		})
	}
}

func TestDecodeServerMessageErrors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want error
	}{
		{"not json", `{{{`, ErrMalformedMessage},
		{"unknown type", `{"type":"telemetry"}`, ErrUnknownMessageType},
		{"empty type", `{"text":"orphan"}`, ErrUnknownMessageType},
		{"audio chunk without payload", `{"type":"ai_response_audio_chunk"}`, ErrMalformedMessage},
		{"audio chunk bad base64", `{"type":"ai_audio","audioData":"!!!"}`, ErrMalformedMessage},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeServerMessage([]byte(tc.raw))
			if !errors.Is(err, tc.want) {
				t.Errorf("got error %v, want %v", err, tc.want)
			}
		})
	}
}

func TestInitMessageWireFormat(t *testing.T) {
	msg := NewInitMessage("s-1", "u-1", "tok", true, "tutor", "be kind")
	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var fields map[string]interface{}
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	// The backend expects camelCase keys.
	for _, key := range []string{"type", "sessionId", "userId", "authToken", "enableAI", "aiVoice", "systemPrompt"} {
		if _, ok := fields[key]; !ok {
			t.Errorf("init message missing key %q", key)
		}
	}
	if fields["type"] != "init" {
		t.Errorf("type = %v, want init", fields["type"])
	}
}

func TestStartMessageOmitsEmptyFields(t *testing.T) {
	msg := &StartMessage{Type: MessageTypeStart, SessionID: "s-1"}
	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var fields map[string]interface{}
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if _, ok := fields["resume"]; ok {
		t.Error("resume=false should be omitted")
	}
	if _, ok := fields["reason"]; ok {
		t.Error("empty reason should be omitted")
	}
}
