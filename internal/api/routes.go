package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/studyhall/voxley/adapters/backend"
	"github.com/studyhall/voxley/domain/repositories"
	"github.com/studyhall/voxley/internal/auth"
	"github.com/studyhall/voxley/internal/voicebot"
	"github.com/studyhall/voxley/usecase"
)

// Backend aggregates the platform services the control API proxies.
type Backend interface {
	repositories.AuthService
	repositories.TutorService
	repositories.StudyService
	repositories.TranscriptionService
	repositories.DashboardService
	repositories.PaymentService
	repositories.CalendarService
}

// Server holds the handlers' dependencies. The control API is bound to
// loopback; the desktop UI is its only client.
type Server struct {
	conversation *usecase.ConversationService
	backend      Backend
	tokens       *auth.TokenStore
	hub          *StreamHub
	logger       *zap.Logger
}

// NewServer wires the control API.
func NewServer(
	conversation *usecase.ConversationService,
	platform Backend,
	tokens *auth.TokenStore,
	hub *StreamHub,
	logger *zap.Logger,
) *Server {
	return &Server{
		conversation: conversation,
		backend:      platform,
		tokens:       tokens,
		hub:          hub,
		logger:       logger,
	}
}

// InitRoutes initializes all API routes
func InitRoutes(e *echo.Echo, s *Server) {
	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"service": "voxley",
		})
	})

	// API v1 routes
	v1 := e.Group("/api/v1")

	// Account APIs
	v1.POST("/auth/login", s.login)
	v1.POST("/auth/register", s.register)
	v1.POST("/auth/logout", s.logout)

	// Voice session APIs
	v1.POST("/voice/start", s.voiceStart)
	v1.POST("/voice/stop", s.voiceStop)
	v1.POST("/voice/turn-end", s.voiceTurnEnd)
	v1.POST("/voice/clear", s.voiceClear)
	v1.GET("/voice/status", s.voiceStatus)

	// Platform proxy APIs
	v1.POST("/chat", s.chat)
	v1.POST("/flashcards", s.flashcards)
	v1.POST("/quiz", s.quiz)
	v1.POST("/quiz/:id/submit", s.quizSubmit)
	v1.POST("/transcribe", s.transcribe)
	v1.GET("/dashboard", s.dashboard)
	v1.POST("/payments/confirm", s.paymentConfirm)
	v1.GET("/calendar/auth", s.calendarAuth)
	v1.POST("/calendar/exchange", s.calendarExchange)

	// Event stream for the UI
	e.GET("/ws/events", s.hub.ServeWS)
}

// fail maps an error to the response the UI expects.
func (s *Server) fail(c echo.Context, err error) error {
	var apiErr *backend.APIError
	switch {
	case errors.As(err, &apiErr):
		return c.JSON(apiErr.StatusCode, ErrorResponse{
			Error:   apiErr.Code,
			Message: apiErr.Message,
		})
	case errors.Is(err, auth.ErrNoToken), errors.Is(err, auth.ErrTokenExpired):
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "not_authenticated",
			Message: err.Error(),
		})
	case errors.Is(err, voicebot.ErrSessionActive):
		return c.JSON(http.StatusConflict, ErrorResponse{
			Error:   "session_active",
			Message: "a voice session is already running",
		})
	case errors.Is(err, voicebot.ErrNoActiveSession):
		return c.JSON(http.StatusConflict, ErrorResponse{
			Error:   "no_active_session",
			Message: "no voice session is running",
		})
	case errors.Is(err, voicebot.ErrCaptureUnavailable):
		return c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error:   "capture_unavailable",
			Message: err.Error(),
		})
	default:
		s.logger.Error("Request failed", zap.Error(err))
		return c.JSON(http.StatusBadGateway, ErrorResponse{
			Error:   "backend_error",
			Message: err.Error(),
		})
	}
}

func (s *Server) login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}
	if req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "missing_fields",
			Message: "Email and password are required",
		})
	}

	session, err := s.backend.Login(c.Request().Context(), repositories.Credentials{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return s.fail(c, err)
	}

	s.logger.Info("User logged in", zap.String("userID", session.User.ID))
	return c.JSON(http.StatusOK, session)
}

func (s *Server) register(c echo.Context) error {
	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}
	if req.Name == "" || req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "missing_fields",
			Message: "Name, email, and password are required",
		})
	}

	session, err := s.backend.Register(c.Request().Context(), req.Name, repositories.Credentials{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, session)
}

func (s *Server) logout(c echo.Context) error {
	s.tokens.Clear()
	return c.JSON(http.StatusOK, map[string]string{"status": "logged_out"})
}

func (s *Server) voiceStart(c echo.Context) error {
	session, err := s.conversation.StartVoice(c.Request().Context())
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, VoiceStatusResponse{
		Status:  s.conversation.Status(),
		Session: session,
	})
}

func (s *Server) voiceStop(c echo.Context) error {
	if err := s.conversation.StopVoice(); err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, VoiceStatusResponse{
		Status:  s.conversation.Status(),
		Session: s.conversation.Session(),
	})
}

func (s *Server) voiceTurnEnd(c echo.Context) error {
	if err := s.conversation.EndTurn(); err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, s.conversation.Status())
}

func (s *Server) voiceClear(c echo.Context) error {
	s.conversation.ClearTranscripts()
	return c.JSON(http.StatusOK, VoiceStatusResponse{
		Status:  s.conversation.Status(),
		Session: s.conversation.Session(),
	})
}

func (s *Server) voiceStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, VoiceStatusResponse{
		Status:  s.conversation.Status(),
		Session: s.conversation.Session(),
	})
}

func (s *Server) chat(c echo.Context) error {
	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}
	if req.Message == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "missing_fields",
			Message: "Message is required",
		})
	}

	reply, err := s.backend.SendChat(c.Request().Context(), req.History, req.Message)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, reply)
}

func (s *Server) flashcards(c echo.Context) error {
	var req GenerateRequest
	if err := c.Bind(&req); err != nil || req.Topic == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Topic is required",
		})
	}

	cards, err := s.backend.GenerateFlashcards(c.Request().Context(), req.Topic, req.Count)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, cards)
}

func (s *Server) quiz(c echo.Context) error {
	var req GenerateRequest
	if err := c.Bind(&req); err != nil || req.Topic == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Topic is required",
		})
	}

	questions, err := s.backend.GenerateQuiz(c.Request().Context(), req.Topic, req.Count)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, questions)
}

func (s *Server) quizSubmit(c echo.Context) error {
	var req QuizSubmitRequest
	if err := c.Bind(&req); err != nil || len(req.Answers) == 0 {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Answers are required",
		})
	}

	result, err := s.backend.SubmitQuiz(c.Request().Context(), c.Param("id"), req.Answers)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

func (s *Server) transcribe(c echo.Context) error {
	file, err := c.FormFile("audio")
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "missing_file",
			Message: "An audio file is required",
		})
	}

	src, err := file.Open()
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_file",
			Message: err.Error(),
		})
	}
	defer src.Close()

	result, err := s.backend.Transcribe(c.Request().Context(), file.Filename, src)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

func (s *Server) dashboard(c echo.Context) error {
	summary, err := s.backend.GetDashboard(c.Request().Context())
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, summary)
}

func (s *Server) paymentConfirm(c echo.Context) error {
	var req PaymentConfirmRequest
	if err := c.Bind(&req); err != nil || req.CheckoutSessionID == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Checkout session id is required",
		})
	}

	confirmation, err := s.backend.ConfirmPayment(c.Request().Context(), req.CheckoutSessionID)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, confirmation)
}

func (s *Server) calendarAuth(c echo.Context) error {
	authState, err := s.backend.CalendarAuthURL(c.Request().Context())
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, authState)
}

func (s *Server) calendarExchange(c echo.Context) error {
	var req CalendarExchangeRequest
	if err := c.Bind(&req); err != nil || req.Code == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "OAuth code is required",
		})
	}

	authState, err := s.backend.CalendarExchange(c.Request().Context(), req.Code)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, authState)
}
