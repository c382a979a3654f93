// Command wsprobe exercises a voice endpoint without the full companion:
// it connects, runs the init/start handshake, streams a synthetic tone,
// and prints every message the server sends back.
package main

import (
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/studyhall/voxley/adapters/audio"
	"github.com/studyhall/voxley/internal/voicebot"
)

func main() {
	var (
		wsURL   = flag.String("url", "ws://localhost:8080/ws/voice", "voice websocket endpoint")
		token   = flag.String("token", os.Getenv("STUDYHALL_TOKEN"), "bearer token")
		userID  = flag.String("user", "probe-user", "user id to claim")
		voice   = flag.String("voice", "tutor", "synthesis voice")
		seconds = flag.Int("seconds", 3, "seconds of tone to stream")
	)
	flag.Parse()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	headers := http.Header{}
	if *token != "" {
		headers.Set("Authorization", "Bearer "+*token)
	}

	log.Printf("connecting to %s", *wsURL)
	conn, _, err := websocket.DefaultDialer.Dial(*wsURL, headers)
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer conn.Close()

	done := make(chan struct{})
	go readMessages(conn, done)

	sessionID := uuid.NewString()
	init := voicebot.NewInitMessage(sessionID, *userID, *token, true, *voice, "")
	if err := conn.WriteJSON(init); err != nil {
		log.Fatal("init:", err)
	}
	log.Printf("sent init, session %s", sessionID)

	if err := conn.WriteJSON(&voicebot.StartMessage{
		Type:      voicebot.MessageTypeStart,
		SessionID: sessionID,
	}); err != nil {
		log.Fatal("start:", err)
	}

	streamTone(conn, *seconds, interrupt)

	if err := conn.WriteJSON(&voicebot.TurnEndMessage{
		Type:      voicebot.MessageTypeTurnEnd,
		SessionID: sessionID,
		Reason:    voicebot.ReasonManualTrigger,
	}); err != nil {
		log.Fatal("turn_end:", err)
	}
	log.Println("sent turn_end, waiting for the reply")

	select {
	case <-done:
	case <-interrupt:
		log.Println("interrupt")
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		select {
		case <-done:
		case <-time.After(time.Second):
		}
	case <-time.After(30 * time.Second):
		log.Println("no reply within 30s")
	}
}

// streamTone sends tone frames paced like a real microphone.
func streamTone(conn *websocket.Conn, seconds int, interrupt <-chan os.Signal) {
	const (
		sampleRate = 16000
		frameSize  = 2048
	)

	frame := voicebot.EncodePCM16(audio.ToneFrame(frameSize, 0.4))
	frameDur := time.Duration(frameSize) * time.Second / sampleRate
	frames := seconds * sampleRate / frameSize

	ticker := time.NewTicker(frameDur)
	defer ticker.Stop()

	for i := 0; i < frames; i++ {
		if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
			log.Fatal("frame write:", err)
		}
		select {
		case <-ticker.C:
		case <-interrupt:
			return
		}
	}
	log.Printf("streamed %d frames (%ds of audio)", frames, seconds)
}

func readMessages(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			log.Println("read:", err)
			return
		}
		if messageType == websocket.BinaryMessage {
			log.Printf("<- binary chunk, %d bytes", len(data))
			continue
		}
		event, err := voicebot.DecodeServerMessage(data)
		if err != nil {
			log.Printf("<- undecodable: %s", data)
			continue
		}
		switch ev := event.(type) {
		case voicebot.ReadyEvent:
			log.Printf("<- ready (session %s)", ev.SessionID)
		case voicebot.PartialTranscriptEvent:
			log.Printf("<- partial: %q (final=%v)", ev.Text, ev.IsFinal)
		case voicebot.FinalTranscriptEvent:
			log.Printf("<- final: %q", ev.Text)
		case voicebot.AIResponseTextEvent:
			log.Printf("<- ai: %q", ev.Text)
		case voicebot.AIAudioChunkEvent:
			log.Printf("<- ai audio chunk, %d bytes (%s)", len(ev.Audio), ev.MimeType)
		case voicebot.AIAudioEndEvent:
			log.Println("<- ai audio end")
		case voicebot.ServerErrorEvent:
			log.Printf("<- error: %s", ev.Message)
		}
	}
}
