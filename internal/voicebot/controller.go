package voicebot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/studyhall/voxley/domain/repositories"
	"github.com/studyhall/voxley/internal/auth"
)

var (
	// ErrSessionActive is returned by Start while a session is running.
	ErrSessionActive = errors.New("voice session already active")
	// ErrNoActiveSession is returned by operations that need a session.
	ErrNoActiveSession = errors.New("no active voice session")
	// ErrCaptureUnavailable marks a terminal capture failure; the session
	// cannot start and there is no retry.
	ErrCaptureUnavailable = errors.New("audio capture unavailable")
)

// Config tunes one controller instance.
type Config struct {
	// WSURL is the voice WebSocket endpoint.
	WSURL string
	// Voice is the synthesis voice tag sent in init.
	Voice string
	// SystemPrompt is sent in init.
	SystemPrompt string
	// EnableAI toggles AI responses server-side.
	EnableAI bool

	Audio repositories.AudioConfig
	VAD   VADConfig

	// ReadyTimeout is how long to wait for the server's ready message
	// before force-sending start.
	ReadyTimeout time.Duration
	// SilenceWindow is how long amplitude must stay below threshold
	// before the turn ends.
	SilenceWindow time.Duration
	// ReconnectDelay is the fixed backoff before a single-shot redial
	// after an unexpected close.
	ReconnectDelay time.Duration
	// ResumeThrottle is the minimum spacing between start messages.
	ResumeThrottle time.Duration
	// StopFlushGrace is how long the stop message gets to flush before
	// the socket closes.
	StopFlushGrace time.Duration
}

// DefaultConfig returns the production timings for the given endpoint.
func DefaultConfig(wsURL string) Config {
	return Config{
		WSURL:          wsURL,
		Voice:          "tutor",
		EnableAI:       true,
		Audio:          repositories.DefaultAudioConfig(),
		VAD:            DefaultVADConfig(),
		ReadyTimeout:   3 * time.Second,
		SilenceWindow:  1500 * time.Millisecond,
		ReconnectDelay: 800 * time.Millisecond,
		ResumeThrottle: 200 * time.Millisecond,
		StopFlushGrace: 300 * time.Millisecond,
	}
}

// Controller orchestrates capture, transport, turn-taking, and playback
// for one voice conversation at a time. All session state is mutated by a
// single run loop; capture callbacks, socket messages, and timers are
// funneled into it as events, which keeps ordering hazards in one place.
type Controller struct {
	cfg    Config
	tokens *auth.TokenStore
	source repositories.AudioSource
	sched  *Scheduler
	logger *zap.Logger

	mu     sync.RWMutex
	status Status
	active bool
	events chan Event

	inbox chan loopEvent
	done  chan struct{}
}

// NewController wires a controller from its capability providers.
func NewController(
	cfg Config,
	tokens *auth.TokenStore,
	source repositories.AudioSource,
	sink repositories.AudioSink,
	logger *zap.Logger,
) *Controller {
	if cfg.ReadyTimeout == 0 {
		cfg = mergeDefaults(cfg)
	}
	return &Controller{
		cfg:    cfg,
		tokens: tokens,
		source: source,
		sched:  NewScheduler(sink, cfg.Audio),
		logger: logger,
		status: Status{Connection: StateIdle.String()},
		events: make(chan Event, 256),
	}
}

func mergeDefaults(cfg Config) Config {
	def := DefaultConfig(cfg.WSURL)
	def.Voice = cfg.Voice
	def.SystemPrompt = cfg.SystemPrompt
	def.EnableAI = cfg.EnableAI
	if cfg.Voice == "" {
		def.Voice = "tutor"
	}
	if cfg.Audio.SampleRate != 0 {
		def.Audio = cfg.Audio
	}
	if cfg.VAD.Threshold != 0 {
		def.VAD = cfg.VAD
	}
	return def
}

// Events returns the controller's event stream. Events are dropped when
// the consumer falls behind; Snapshot always has the current state.
func (c *Controller) Events() <-chan Event {
	return c.events
}

// Snapshot returns the current observable state.
func (c *Controller) Snapshot() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

// Start begins a new voice session: generates the session id, starts
// capture, and opens the voice socket. Fails if a session is active, the
// token is missing, or the capture capability cannot start.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.active {
		c.mu.Unlock()
		return ErrSessionActive
	}
	c.active = true
	c.mu.Unlock()

	token, err := c.tokens.Token()
	if err != nil {
		c.deactivate()
		return fmt.Errorf("cannot start voice session: %w", err)
	}
	userID, err := c.tokens.UserID()
	if err != nil {
		c.deactivate()
		return fmt.Errorf("cannot start voice session: %w", err)
	}

	captureCtx, captureCancel := context.WithCancel(context.Background())
	frames, err := c.source.Start(captureCtx)
	if err != nil {
		captureCancel()
		c.deactivate()
		c.setStatus(func(s *Status) {
			s.Connection = StateError.String()
			s.Error = err.Error()
		})
		return fmt.Errorf("%w: %v", ErrCaptureUnavailable, err)
	}

	ls := &loopState{
		sessionID:     uuid.NewString(),
		userID:        userID,
		token:         token,
		detector:      NewDetector(c.cfg.VAD),
		captureCancel: captureCancel,
	}

	c.inbox = make(chan loopEvent, 256)
	c.done = make(chan struct{})
	c.sched.Reset()

	c.setStatus(func(s *Status) {
		*s = Status{
			Connection: StateConnecting.String(),
			SessionID:  ls.sessionID,
			Recording:  true,
		}
	})

	go c.forwardFrames(frames)
	go c.run(ls)

	c.logger.Info("Voice session starting",
		zap.String("sessionID", ls.sessionID),
		zap.String("userID", userID))
	return nil
}

// Stop ends the session: capture stops, a stop message is sent if the
// socket is ready, and the socket closes after a short flush grace.
// This is the only path that suppresses auto-reconnect.
func (c *Controller) Stop() error {
	if err := c.post(stopCmd{}); err != nil {
		return err
	}
	select {
	case <-c.done:
	case <-time.After(2 * time.Second):
	}
	return nil
}

// ForceTurnEnd declares the current user utterance over without stopping
// capture or closing the connection.
func (c *Controller) ForceTurnEnd() error {
	return c.post(turnEndCmd{})
}

// Clear empties transcript accumulators. No effect on the network session.
// Works with or without an active session.
func (c *Controller) Clear() {
	if err := c.post(clearCmd{}); err != nil {
		// No loop running; notify observers directly.
		c.emit(Event{Kind: EventCleared, Status: c.Snapshot()})
	}
}

// Close releases the controller at application shutdown.
func (c *Controller) Close() {
	if err := c.Stop(); err != nil && !errors.Is(err, ErrNoActiveSession) {
		c.logger.Warn("Voice session close", zap.Error(err))
	}
}

func (c *Controller) deactivate() {
	c.mu.Lock()
	c.active = false
	c.mu.Unlock()
}

func (c *Controller) setStatus(mutate func(*Status)) {
	c.mu.Lock()
	mutate(&c.status)
	c.mu.Unlock()
}

func (c *Controller) emit(ev Event) {
	select {
	case c.events <- ev:
	default:
		// Slow consumer; state remains available via Snapshot.
	}
}

func (c *Controller) emitStatus() {
	c.emit(Event{Kind: EventStatusChanged, Status: c.Snapshot()})
}

// post delivers an event to the run loop without ever blocking past loop
// shutdown.
func (c *Controller) post(ev loopEvent) error {
	c.mu.RLock()
	inbox, done, active := c.inbox, c.done, c.active
	c.mu.RUnlock()
	if !active || inbox == nil {
		return ErrNoActiveSession
	}
	select {
	case inbox <- ev:
		return nil
	case <-done:
		return ErrNoActiveSession
	}
}

func (c *Controller) forwardFrames(frames <-chan []float32) {
	for frame := range frames {
		if err := c.post(frameEvt{frame: frame}); err != nil {
			return
		}
	}
	c.post(captureClosedEvt{})
}

// loopEvent is one unit of work for the run loop.
type loopEvent interface{}

type frameEvt struct{ frame []float32 }
type captureClosedEvt struct{}
type sockOpenedEvt struct {
	sock *socket
	gen  int
}
type sockFailedEvt struct {
	err error
	gen int
}
type sockMsgEvt struct {
	ev  ServerEvent
	gen int
}
type sockBinaryEvt struct {
	pcm []byte
	gen int
}
type sockClosedEvt struct {
	err error
	gen int
}
type readyTimeoutEvt struct{ gen int }
type silenceEvt struct{ gen int }
type reconnectEvt struct{ gen int }
type stopFlushEvt struct{}
type turnEndCmd struct{}
type clearCmd struct{}
type stopCmd struct{}

// loopState is everything the run loop owns. Nothing here is touched
// outside the loop goroutine.
type loopState struct {
	sessionID string
	userID    string
	token     string

	detector *Detector
	turn     turnState
	conn     ConnectionState
	sock     *socket
	pending  frameQueue

	// connGen guards against events from superseded sockets and timers.
	connGen    int
	silenceGen int
	readyGen   int

	pendingStart   bool
	resumeOnStart  bool
	lastStartAt    time.Time
	silenceTimer   *time.Timer
	silenceArmed   bool
	readyTimer     *time.Timer
	stopping       bool
	captureCancel  context.CancelFunc
	captureStopped bool
}

func (c *Controller) run(ls *loopState) {
	defer c.finish(ls)

	ls.conn = StateConnecting
	c.dial(ls)
	c.armReadyTimeout(ls)

	for ev := range c.inbox {
		switch ev := ev.(type) {
		case frameEvt:
			c.handleFrame(ls, ev.frame)
		case captureClosedEvt:
			if !ls.stopping {
				c.logger.Warn("Capture ended unexpectedly",
					zap.String("sessionID", ls.sessionID))
			}
		case sockOpenedEvt:
			c.handleSockOpened(ls, ev)
		case sockFailedEvt:
			c.handleSockFailed(ls, ev)
		case sockMsgEvt:
			if ev.gen == ls.connGen {
				c.handleServerEvent(ls, ev.ev)
			}
		case sockBinaryEvt:
			if ev.gen == ls.connGen {
				c.handleAudioChunk(ls, ev.pcm, "audio/pcm")
			}
		case sockClosedEvt:
			c.handleSockClosed(ls, ev)
		case readyTimeoutEvt:
			c.handleReadyTimeout(ls, ev.gen)
		case silenceEvt:
			c.handleSilence(ls, ev.gen)
		case reconnectEvt:
			if ev.gen == ls.connGen && !ls.stopping {
				ls.conn = StateConnecting
				c.setStatus(func(s *Status) { s.Connection = ls.conn.String() })
				c.emitStatus()
				c.dial(ls)
			}
		case stopFlushEvt:
			return
		case turnEndCmd:
			c.handleForceTurnEnd(ls)
		case clearCmd:
			c.emit(Event{Kind: EventCleared, Status: c.Snapshot()})
		case stopCmd:
			if c.beginStop(ls) {
				// stopFlushEvt arrives after the grace period.
				continue
			}
			return
		}
	}
}

// finish tears the session down when the loop exits.
func (c *Controller) finish(ls *loopState) {
	c.stopCapture(ls)
	if ls.silenceTimer != nil {
		ls.silenceTimer.Stop()
	}
	if ls.readyTimer != nil {
		ls.readyTimer.Stop()
	}
	if ls.sock != nil {
		if ls.stopping {
			ls.sock.closeNormal()
		} else {
			// Shutdown during a disconnect; release local resources only.
			ls.sock.close()
		}
		ls.sock = nil
	}

	c.mu.Lock()
	c.active = false
	c.status.Recording = false
	c.status.Connection = StateClosed.String()
	c.mu.Unlock()
	close(c.done)
	c.emitStatus()

	c.logger.Info("Voice session ended", zap.String("sessionID", ls.sessionID))
}

func (c *Controller) stopCapture(ls *loopState) {
	if ls.captureStopped {
		return
	}
	ls.captureStopped = true
	ls.captureCancel()
	if err := c.source.Stop(); err != nil {
		c.logger.Warn("Capture stop", zap.Error(err))
	}
}

// dial opens the socket asynchronously and posts the outcome.
func (c *Controller) dial(ls *loopState) {
	ls.connGen++
	gen := ls.connGen
	url, token := c.cfg.WSURL, ls.token
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), handshakeTimeout)
		defer cancel()
		sock, err := dialVoiceSocket(ctx, url, token)
		if err != nil {
			c.post(sockFailedEvt{err: err, gen: gen})
			return
		}
		c.post(sockOpenedEvt{sock: sock, gen: gen})
	}()
}

func (c *Controller) handleSockOpened(ls *loopState, ev sockOpenedEvt) {
	if ev.gen != ls.connGen || ls.stopping {
		ev.sock.close()
		return
	}
	ls.sock = ev.sock
	gen := ev.gen

	go func() {
		err := ev.sock.readLoop(func(messageType int, data []byte) {
			switch messageType {
			case websocket.TextMessage:
				decoded, err := DecodeServerMessage(data)
				if err != nil {
					// Garbled control messages are non-fatal; drop them.
					c.logger.Debug("Dropping server message", zap.Error(err))
					return
				}
				c.post(sockMsgEvt{ev: decoded, gen: gen})
			case websocket.BinaryMessage:
				c.post(sockBinaryEvt{pcm: data, gen: gen})
			}
		})
		c.post(sockClosedEvt{err: err, gen: gen})
	}()

	init := NewInitMessage(ls.sessionID, ls.userID, ls.token,
		c.cfg.EnableAI, c.cfg.Voice, c.cfg.SystemPrompt)
	if err := ls.sock.writeJSON(init); err != nil {
		c.logger.Error("Failed to send init", zap.Error(err))
	}
	ls.pendingStart = true
}

func (c *Controller) handleSockFailed(ls *loopState, ev sockFailedEvt) {
	if ev.gen != ls.connGen || ls.stopping {
		return
	}
	c.logger.Error("Voice websocket dial failed", zap.Error(ev.err))
	ls.conn = StateError
	c.setStatus(func(s *Status) {
		s.Connection = ls.conn.String()
		s.Error = ev.err.Error()
	})
	c.emitStatus()
	c.scheduleReconnect(ls)
}

func (c *Controller) handleSockClosed(ls *loopState, ev sockClosedEvt) {
	if ev.gen != ls.connGen {
		return
	}
	ls.sock = nil

	if ls.stopping {
		ls.conn = StateClosed
		c.setStatus(func(s *Status) { s.Connection = ls.conn.String() })
		return
	}

	c.logger.Warn("Voice websocket closed unexpectedly",
		zap.String("sessionID", ls.sessionID),
		zap.Error(ev.err))
	ls.conn = StateError
	c.setStatus(func(s *Status) {
		s.Connection = ls.conn.String()
		s.Error = closeCause(ev.err)
	})
	c.emitStatus()
	c.scheduleReconnect(ls)
}

func closeCause(err error) string {
	if err == nil {
		return "connection closed"
	}
	return err.Error()
}

// scheduleReconnect arms the single-shot fixed-delay retry. Every further
// closure repeats the same delay; there is deliberately no backoff series.
func (c *Controller) scheduleReconnect(ls *loopState) {
	gen := ls.connGen
	ls.resumeOnStart = true
	time.AfterFunc(c.cfg.ReconnectDelay, func() {
		c.post(reconnectEvt{gen: gen})
	})
}

func (c *Controller) armReadyTimeout(ls *loopState) {
	ls.readyGen++
	gen := ls.readyGen
	ls.readyTimer = time.AfterFunc(c.cfg.ReadyTimeout, func() {
		c.post(readyTimeoutEvt{gen: gen})
	})
}

// handleReadyTimeout force-sends start when the server never acknowledged
// init in time, trading a clean handshake for forward progress.
func (c *Controller) handleReadyTimeout(ls *loopState, gen int) {
	if gen != ls.readyGen || ls.stopping || ls.conn == StateReady {
		return
	}
	if ls.sock == nil || ls.sessionID == "" || !ls.pendingStart {
		return
	}
	c.logger.Warn("No ready within timeout, force-sending start",
		zap.String("sessionID", ls.sessionID))
	c.markReady(ls)
}

func (c *Controller) handleServerEvent(ls *loopState, ev ServerEvent) {
	switch ev := ev.(type) {
	case ReadyEvent:
		c.markReady(ls)

	case PartialTranscriptEvent:
		kind := EventPartialTranscript
		if ev.IsFinal {
			kind = EventFinalTranscript
		}
		c.emit(Event{Kind: kind, Text: ev.Text, Status: c.Snapshot()})

	case FinalTranscriptEvent:
		c.emit(Event{Kind: EventFinalTranscript, Text: ev.Text, Status: c.Snapshot()})

	case AIResponseTextEvent:
		c.emit(Event{Kind: EventAIResponse, Text: ev.Text, Status: c.Snapshot()})

	case AIAudioChunkEvent:
		c.handleAudioChunk(ls, ev.Audio, ev.MimeType)

	case AIAudioEndEvent:
		ls.turn.endAISpeech()
		c.setStatus(func(s *Status) { s.AISpeaking = false })
		c.emitStatus()

	case ServerErrorEvent:
		c.logger.Warn("Server reported error",
			zap.String("sessionID", ls.sessionID),
			zap.String("message", ev.Message))
		c.setStatus(func(s *Status) { s.Error = ev.Message })
		c.emit(Event{Kind: EventSessionError, Text: ev.Message, Status: c.Snapshot()})
	}
}

// markReady transitions to ready, flushes the pending frame queue in FIFO
// order, and sends the one pending start message.
func (c *Controller) markReady(ls *loopState) {
	if ls.conn == StateReady {
		return
	}
	ls.conn = StateReady
	if ls.readyTimer != nil {
		ls.readyTimer.Stop()
	}

	if err := ls.pending.drain(ls.sock.writeBinary); err != nil {
		c.logger.Warn("Pending frame flush interrupted", zap.Error(err))
	}

	if ls.pendingStart {
		ls.pendingStart = false
		c.sendStart(ls, ls.resumeOnStart, "")
		ls.resumeOnStart = false
	}

	c.setStatus(func(s *Status) {
		s.Connection = ls.conn.String()
		s.Error = ""
	})
	c.emitStatus()
}

func (c *Controller) sendStart(ls *loopState, resume bool, reason string) {
	if ls.sock == nil {
		return
	}
	msg := &StartMessage{
		Type:      MessageTypeStart,
		SessionID: ls.sessionID,
		Resume:    resume,
		Reason:    reason,
	}
	if err := ls.sock.writeJSON(msg); err != nil {
		c.logger.Error("Failed to send start", zap.Error(err))
		return
	}
	ls.lastStartAt = time.Now()
}

func (c *Controller) handleFrame(ls *loopState, frame []float32) {
	if ls.stopping {
		return
	}

	edge := ls.detector.Process(frame, ls.turn.aiSpeaking)
	switch edge {
	case EdgeStart:
		c.cancelSilenceTimer(ls)
		if ls.turn.beginUserSpeech() && ls.turn.turnEnded {
			ls.turn.resumeTurn()
			c.emit(Event{Kind: EventTurnResumed, Status: c.Snapshot()})
			if ls.conn == StateReady && ls.sessionID != "" &&
				time.Since(ls.lastStartAt) >= c.cfg.ResumeThrottle {
				c.sendStart(ls, true, "")
			}
		}
	case EdgeStop:
		ls.turn.endUserSpeech()
		if !ls.silenceArmed {
			c.armSilenceTimer(ls)
		}
	}

	// Capture never blocks on transport: frames go straight out when the
	// socket is ready, into the queue otherwise.
	pcm := EncodePCM16(frame)
	if ls.conn == StateReady && ls.sock != nil {
		if err := ls.sock.writeBinary(pcm); err != nil {
			c.logger.Debug("Frame write failed", zap.Error(err))
		}
	} else {
		ls.pending.push(pcm)
	}

	c.setStatus(func(s *Status) {
		s.Amplitude = ls.detector.Amplitude()
		s.UserSpeaking = ls.turn.userSpeaking
		s.AISpeaking = ls.turn.aiSpeaking
		s.TurnEnded = ls.turn.turnEnded
	})
}

func (c *Controller) armSilenceTimer(ls *loopState) {
	ls.silenceGen++
	ls.silenceArmed = true
	gen := ls.silenceGen
	ls.silenceTimer = time.AfterFunc(c.cfg.SilenceWindow, func() {
		c.post(silenceEvt{gen: gen})
	})
}

func (c *Controller) cancelSilenceTimer(ls *loopState) {
	ls.silenceGen++
	ls.silenceArmed = false
	if ls.silenceTimer != nil {
		ls.silenceTimer.Stop()
		ls.silenceTimer = nil
	}
}

func (c *Controller) handleSilence(ls *loopState, gen int) {
	if gen != ls.silenceGen || ls.stopping {
		return
	}
	ls.silenceArmed = false
	if ls.detector.Speaking() || ls.turn.aiSpeaking {
		return
	}

	ls.turn.endTurn()
	if ls.conn == StateReady && ls.sock != nil {
		msg := &TurnEndMessage{
			Type:      MessageTypeTurnEnd,
			SessionID: ls.sessionID,
			Reason:    ReasonSilenceDetected,
		}
		if err := ls.sock.writeJSON(msg); err != nil {
			c.logger.Error("Failed to send turn_end", zap.Error(err))
		}
	}
	c.setStatus(func(s *Status) {
		s.UserSpeaking = false
		s.TurnEnded = true
	})
	c.emit(Event{Kind: EventTurnEnded, Text: ReasonSilenceDetected, Status: c.Snapshot()})
	c.logger.Info("Turn ended by silence", zap.String("sessionID", ls.sessionID))
}

func (c *Controller) handleForceTurnEnd(ls *loopState) {
	if ls.stopping {
		return
	}
	c.cancelSilenceTimer(ls)
	ls.turn.endTurn()
	if ls.conn == StateReady && ls.sock != nil {
		msg := &TurnEndMessage{
			Type:      MessageTypeTurnEnd,
			SessionID: ls.sessionID,
			Reason:    ReasonManualTrigger,
		}
		if err := ls.sock.writeJSON(msg); err != nil {
			c.logger.Error("Failed to send turn_end", zap.Error(err))
		}
	}
	c.setStatus(func(s *Status) {
		s.UserSpeaking = false
		s.TurnEnded = true
	})
	c.emit(Event{Kind: EventTurnEnded, Text: ReasonManualTrigger, Status: c.Snapshot()})
}

func (c *Controller) handleAudioChunk(ls *loopState, audio []byte, mimeType string) {
	if !ls.turn.aiSpeaking {
		ls.turn.beginAISpeech()
		c.sched.Reset()
		c.setStatus(func(s *Status) {
			s.AISpeaking = true
			s.UserSpeaking = false
		})
		c.emitStatus()
	}

	var err error
	if mimeType == "" || mimeType == "audio/pcm" || mimeType == "audio/l16" {
		_, err = c.sched.Enqueue(audio)
	} else {
		_, err = c.sched.EnqueueEncoded(audio)
	}
	if err != nil {
		c.logger.Warn("Playback enqueue failed", zap.Error(err))
	}
}

// beginStop runs the user-initiated shutdown sequence. Returns true when
// the loop must keep running until the flush grace elapses.
func (c *Controller) beginStop(ls *loopState) bool {
	if ls.stopping {
		return false
	}
	ls.stopping = true
	ls.turn.userStopping = true
	c.cancelSilenceTimer(ls)
	if ls.readyTimer != nil {
		ls.readyTimer.Stop()
	}
	c.stopCapture(ls)

	if ls.conn == StateReady && ls.sock != nil {
		msg := &StopMessage{Type: MessageTypeStop, SessionID: ls.sessionID}
		if err := ls.sock.writeJSON(msg); err != nil {
			c.logger.Debug("Failed to send stop", zap.Error(err))
		}
		// Let the stop message flush before closing.
		time.AfterFunc(c.cfg.StopFlushGrace, func() {
			c.post(stopFlushEvt{})
		})
		return true
	}
	return false
}
