package usecase

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/studyhall/voxley/domain/entities"
	"github.com/studyhall/voxley/internal/auth"
	"github.com/studyhall/voxley/internal/voicebot"
)

// VoiceController is the controller surface the service drives.
type VoiceController interface {
	Start(ctx context.Context) error
	Stop() error
	ForceTurnEnd() error
	Clear()
	Events() <-chan voicebot.Event
	Snapshot() voicebot.Status
}

// ConversationService owns the voice conversation's accumulated state. It
// folds controller events into the session entity and fans them out to
// stream subscribers, so the HTTP layer only ever reads.
type ConversationService struct {
	controller   VoiceController
	tokens       *auth.TokenStore
	voice        entities.VoiceName
	systemPrompt string
	logger       *zap.Logger

	mu          sync.RWMutex
	session     *entities.VoiceSession
	subscribers map[int]chan voicebot.Event
	nextSub     int

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewConversationService creates the service and starts consuming the
// controller's event stream.
func NewConversationService(
	controller VoiceController,
	tokens *auth.TokenStore,
	voice entities.VoiceName,
	systemPrompt string,
	logger *zap.Logger,
) *ConversationService {
	s := &ConversationService{
		controller:   controller,
		tokens:       tokens,
		voice:        voice,
		systemPrompt: systemPrompt,
		logger:       logger,
		subscribers:  make(map[int]chan voicebot.Event),
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
	}
	go s.consume()
	return s
}

// StartVoice begins a voice conversation and returns the fresh session.
func (s *ConversationService) StartVoice(ctx context.Context) (*entities.VoiceSession, error) {
	userID, err := s.tokens.UserID()
	if err != nil {
		return nil, fmt.Errorf("cannot start conversation: %w", err)
	}

	if err := s.controller.Start(ctx); err != nil {
		return nil, err
	}

	session := entities.NewVoiceSession(userID, s.voice, s.systemPrompt, true)
	// Adopt the transport's session id so logs line up across layers.
	if id := s.controller.Snapshot().SessionID; id != "" {
		session.ID = id
	}

	s.mu.Lock()
	s.session = session
	s.mu.Unlock()

	s.logger.Info("Conversation started",
		zap.String("sessionID", session.ID),
		zap.String("userID", userID))
	return s.sessionCopy(), nil
}

// StopVoice ends the active conversation. The session entity remains
// readable afterwards so the UI can show the finished transcript.
func (s *ConversationService) StopVoice() error {
	return s.controller.Stop()
}

// EndTurn forces the current user turn to end.
func (s *ConversationService) EndTurn() error {
	return s.controller.ForceTurnEnd()
}

// ClearTranscripts empties the accumulated transcripts without touching
// the network session.
func (s *ConversationService) ClearTranscripts() {
	s.mu.Lock()
	if s.session != nil {
		s.session.Clear()
	}
	s.mu.Unlock()
	s.controller.Clear()
}

// Status returns the controller's live status snapshot.
func (s *ConversationService) Status() voicebot.Status {
	return s.controller.Snapshot()
}

// Session returns a copy of the current session state, or nil before the
// first conversation.
func (s *ConversationService) Session() *entities.VoiceSession {
	return s.sessionCopy()
}

func (s *ConversationService) sessionCopy() *entities.VoiceSession {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.session == nil {
		return nil
	}
	cp := *s.session
	cp.FinalTranscripts = append([]entities.TranscriptEntry(nil), s.session.FinalTranscripts...)
	cp.AIResponses = append([]entities.ResponseEntry(nil), s.session.AIResponses...)
	return &cp
}

// Subscribe registers an observer for session events. The returned cancel
// function must be called to release the subscription. Slow subscribers
// miss events rather than stalling the fan-out.
func (s *ConversationService) Subscribe() (<-chan voicebot.Event, func()) {
	ch := make(chan voicebot.Event, 64)

	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subscribers[id] = ch
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[id]; ok {
			delete(s.subscribers, id)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

// Close stops the event consumer. Called once at application shutdown.
func (s *ConversationService) Close() {
	s.stopOnce.Do(func() { close(s.stop) })
	<-s.done
}

func (s *ConversationService) consume() {
	defer close(s.done)
	events := s.controller.Events()
	for {
		select {
		case <-s.stop:
			return
		case ev := <-events:
			s.apply(ev)
			s.broadcast(ev)
		}
	}
}

// apply folds one controller event into the session entity.
func (s *ConversationService) apply(ev voicebot.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return
	}

	switch ev.Kind {
	case voicebot.EventPartialTranscript:
		s.session.SetPartial(ev.Text)
	case voicebot.EventFinalTranscript:
		s.session.AppendFinal(ev.Text)
	case voicebot.EventAIResponse:
		s.session.AppendResponse(ev.Text)
	case voicebot.EventTurnResumed:
		// A new utterance after an ended turn discards the stale
		// hypothesis.
		s.session.ClearPartial()
	case voicebot.EventCleared:
		s.session.Clear()
	case voicebot.EventSessionError:
		s.logger.Warn("Session error",
			zap.String("sessionID", s.session.ID),
			zap.String("message", ev.Text))
	}
}

func (s *ConversationService) broadcast(ev voicebot.Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.subscribers {
		select {
		case ch <- ev:
		default:
		}
	}
}
