package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"bataille/internal/app"
	"bataille/internal/domain"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
)

// Gateway is the game surface the HTTP layer exposes.
type Gateway interface {
	CreateGame(ctx context.Context, mode domain.Mode, creatorID, opponentID string) (*domain.Match, error)
	LockCard(ctx context.Context, gameID, userID string) (*domain.Match, error)
	UseSpecial(ctx context.Context, gameID, userID string, kind domain.Special) (*domain.Match, error)
	Surrender(ctx context.Context, gameID, userID string) (*domain.Match, error)
	Snapshot(ctx context.Context, gameID, userID string) (*domain.Match, error)
	Subscribe(ctx context.Context, gameID, userID string) (<-chan []byte, func(), error)
}

type createGameRequest struct {
	Mode       string `json:"mode" validate:"required,oneof=classic rapid daily"`
	OpponentID string `json:"opponentId" validate:"omitempty,max=128"`
}

type intentRequest struct {
	GameID string `json:"gameId" validate:"required,max=128"`
}

type specialRequest struct {
	GameID      string `json:"gameId" validate:"required,max=128"`
	SpecialType string `json:"specialType" validate:"required,oneof=none attack defense"`
}

type gameResponse struct {
	GameID string        `json:"gameId"`
	State  *domain.Match `json:"state"`
}

// intentResponse carries the state after the intent. Error is set when the intent
// was applied but still failed, as when the match clock ran out during a lock.
type intentResponse struct {
	Success bool           `json:"success"`
	State   *domain.Match  `json:"state,omitempty"`
	Error   *errorResponse `json:"error,omitempty"`
}

type Server struct {
	games    Gateway
	auth     *Authenticator
	validate *validator.Validate
	log      logrus.FieldLogger
}

func NewServer(games Gateway, auth *Authenticator, log logrus.FieldLogger) *Server {
	return &Server{
		games:    games,
		auth:     auth,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		log:      log,
	}
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(s.auth.Middleware)
		r.Post("/rpc/create_game", s.createGame)
		r.Post("/rpc/lock_card", s.lockCard)
		r.Post("/rpc/use_special", s.useSpecial)
		r.Post("/rpc/surrender", s.surrender)
		r.Get("/games/{gameID}", s.getGame)
		r.Get("/games/{gameID}/feed", s.feed)
	})
	return r
}

func (s *Server) createGame(w http.ResponseWriter, r *http.Request) {
	var req createGameRequest
	if !s.decode(w, r, &req) {
		return
	}
	m, err := s.games.CreateGame(r.Context(), domain.Mode(req.Mode), userFrom(r.Context()), req.OpponentID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, gameResponse{GameID: m.ID, State: m})
}

func (s *Server) lockCard(w http.ResponseWriter, r *http.Request) {
	var req intentRequest
	if !s.decode(w, r, &req) {
		return
	}
	m, err := s.games.LockCard(r.Context(), req.GameID, userFrom(r.Context()))
	s.reply(w, r, m, err)
}

func (s *Server) useSpecial(w http.ResponseWriter, r *http.Request) {
	var req specialRequest
	if !s.decode(w, r, &req) {
		return
	}
	m, err := s.games.UseSpecial(r.Context(), req.GameID, userFrom(r.Context()), domain.Special(req.SpecialType))
	s.reply(w, r, m, err)
}

func (s *Server) surrender(w http.ResponseWriter, r *http.Request) {
	var req intentRequest
	if !s.decode(w, r, &req) {
		return
	}
	m, err := s.games.Surrender(r.Context(), req.GameID, userFrom(r.Context()))
	s.reply(w, r, m, err)
}

func (s *Server) getGame(w http.ResponseWriter, r *http.Request) {
	gameID := chi.URLParam(r, "gameID")
	m, err := s.games.Snapshot(r.Context(), gameID, userFrom(r.Context()))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, gameResponse{GameID: m.ID, State: m})
}

func (s *Server) reply(w http.ResponseWriter, r *http.Request, m *domain.Match, err error) {
	if err == nil {
		writeJSON(w, http.StatusOK, intentResponse{Success: true, State: m})
		return
	}
	if m == nil {
		s.fail(w, r, err)
		return
	}
	// The intent was committed and still failed, as a lock on an expired clock: report both.
	kind := app.KindOf(err)
	writeJSON(w, statusOf(kind), intentResponse{
		State: m,
		Error: &errorResponse{Error: kind.String(), Message: err.Error()},
	})
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	entry := s.log.WithFields(logrus.Fields{
		"path":       r.URL.Path,
		"user_id":    userFrom(r.Context()),
		"request_id": middleware.GetReqID(r.Context()),
	})
	if app.KindOf(err) == app.KindInternal {
		entry.WithError(err).Error("request failed")
	} else {
		entry.WithError(err).Debug("request rejected")
	}
	writeError(w, err)
}

// decode reads and validates a JSON body, answering 400 itself on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: app.KindInvalidArgument.String(), Message: "malformed request body"})
		return false
	}
	if err := s.validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		msg := err.Error()
		if errors.As(err, &verrs) && len(verrs) > 0 {
			msg = fmt.Sprintf("%s failed on %s", verrs[0].Field(), verrs[0].Tag())
		}
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: app.KindInvalidArgument.String(), Message: msg})
		return false
	}
	return true
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.WithFields(logrus.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"duration":   time.Since(start),
			"request_id": middleware.GetReqID(r.Context()),
		}).Info("request")
	})
}
