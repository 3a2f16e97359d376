package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/minesweeper-replay/internal/models"
	"github.com/minesweeper-replay/internal/service"
	"github.com/minesweeper-replay/internal/storage"
	"github.com/minesweeper-replay/pkg/logger"
)

// Handler holds all HTTP handlers
type Handler struct {
	gameService *service.GameService
	logger      *logger.Logger
}

// NewHandler creates a new handler
func NewHandler(gameService *service.GameService, logger *logger.Logger) *Handler {
	return &Handler{
		gameService: gameService,
		logger:      logger,
	}
}

// Routes sets up all routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	// Health check
	r.Get("/health", h.Health)

	r.Route("/games", func(r chi.Router) {
		r.Post("/", h.StartGame)
		r.Get("/", h.ListGames)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetGame)
			r.Delete("/", h.DeleteGame)
			r.Post("/resume", h.ResumeGame)
			r.Post("/save", h.SaveGame)
			r.Post("/moves", h.Play)
			r.Get("/moves", h.ListMoves)
			r.Get("/replay", h.Replay)
		})
	})

	return r
}

// Health handles health check requests
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// StartGame handles game start requests
func (h *Handler) StartGame(w http.ResponseWriter, r *http.Request) {
	var req models.StartGameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	log := h.requestLogger(r)
	log.Info("Starting game", logger.F("player", req.PlayerName))

	session, err := h.gameService.StartGame(r.Context(), req)
	if err != nil {
		h.fail(w, log, "failed to start game", err)
		return
	}

	h.respondJSON(w, http.StatusCreated, gameResponse(session))
}

// ListGames handles game listing; ?active=true keeps unfinished games only
func (h *Handler) ListGames(w http.ResponseWriter, r *http.Request) {
	activeOnly := false
	if raw := r.URL.Query().Get("active"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			h.respondError(w, http.StatusBadRequest, "invalid active parameter", err.Error())
			return
		}
		activeOnly = parsed
	}

	games, err := h.gameService.ListGames(r.Context(), activeOnly)
	if err != nil {
		h.fail(w, h.requestLogger(r), "failed to list games", err)
		return
	}

	h.respondJSON(w, http.StatusOK, summaries(games))
}

// GetGame returns the current view of a game
func (h *Handler) GetGame(w http.ResponseWriter, r *http.Request) {
	session, err := h.gameService.GetGame(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, h.requestLogger(r), "failed to get game", err)
		return
	}

	h.respondJSON(w, http.StatusOK, gameResponse(session))
}

// ResumeGame loads an unfinished game for play
func (h *Handler) ResumeGame(w http.ResponseWriter, r *http.Request) {
	gameID := chi.URLParam(r, "id")
	log := h.requestLogger(r).With(logger.F("game_id", gameID))
	log.Info("Resuming game")

	session, err := h.gameService.ResumeGame(r.Context(), gameID)
	if err != nil {
		h.fail(w, log, "failed to resume game", err)
		return
	}

	h.respondJSON(w, http.StatusOK, gameResponse(session))
}

// SaveGame re-persists the game snapshot
func (h *Handler) SaveGame(w http.ResponseWriter, r *http.Request) {
	session, err := h.gameService.Save(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, h.requestLogger(r), "failed to save game", err)
		return
	}

	h.respondJSON(w, http.StatusOK, gameResponse(session))
}

// Play applies an open or flag action
func (h *Handler) Play(w http.ResponseWriter, r *http.Request) {
	var req models.MoveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	gameID := chi.URLParam(r, "id")
	log := h.requestLogger(r).With(logger.F("game_id", gameID))

	result, err := h.gameService.Play(r.Context(), gameID, req)
	if err != nil {
		h.fail(w, log, "failed to play move", err)
		return
	}

	h.respondJSON(w, http.StatusOK, models.MoveResponse{
		Applied:  result.Applied,
		Recorded: result.Recorded,
		Move:     result.Move,
		Game:     gameResponse(result.Session),
	})
}

// ListMoves returns the move log of a game
func (h *Handler) ListMoves(w http.ResponseWriter, r *http.Request) {
	moves, err := h.gameService.ListMoves(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, h.requestLogger(r), "failed to list moves", err)
		return
	}

	h.respondJSON(w, http.StatusOK, moves)
}

// Replay returns the move log with the final board and the board at ?step=n
func (h *Handler) Replay(w http.ResponseWriter, r *http.Request) {
	step := -1
	if raw := r.URL.Query().Get("step"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			h.respondError(w, http.StatusBadRequest, "invalid step parameter", raw)
			return
		}
		step = parsed
	}

	replay, err := h.gameService.Replay(r.Context(), chi.URLParam(r, "id"), step)
	if err != nil {
		h.fail(w, h.requestLogger(r), "failed to replay game", err)
		return
	}

	h.respondJSON(w, http.StatusOK, models.ReplayResponse{
		Game:       replay.Game.Summary(),
		Moves:      replay.Moves,
		FinalBoard: renderBoard(replay.Final),
		Step:       replay.Step,
		StepBoard:  renderBoard(replay.StepBoard),
	})
}

// DeleteGame removes a game and its moves
func (h *Handler) DeleteGame(w http.ResponseWriter, r *http.Request) {
	gameID := chi.URLParam(r, "id")
	log := h.requestLogger(r).With(logger.F("game_id", gameID))
	log.Info("Deleting game")

	if err := h.gameService.DeleteGame(r.Context(), gameID); err != nil {
		h.fail(w, log, "failed to delete game", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) requestLogger(r *http.Request) *logger.Logger {
	return h.logger.With(logger.F("request_id", GetRequestID(r.Context())))
}

// fail logs err and answers with the status it maps to
func (h *Handler) fail(w http.ResponseWriter, log *logger.Logger, errorMsg string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Error(errorMsg, logger.Err(err))
	} else {
		log.Debug(errorMsg, logger.Err(err))
	}
	h.respondError(w, status, errorMsg, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, storage.ErrGameNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrGameFinished),
		errors.Is(err, storage.ErrGameExists),
		errors.Is(err, storage.ErrMoveExists):
		return http.StatusConflict
	case errors.Is(err, service.ErrInvalidPlayerName),
		errors.Is(err, service.ErrInvalidParameters),
		errors.Is(err, service.ErrInvalidAction),
		errors.Is(err, service.ErrInvalidStep):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// respondJSON sends a JSON response
func (h *Handler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Warn("Failed to encode response", logger.Err(err))
	}
}

// respondError sends an error response
func (h *Handler) respondError(w http.ResponseWriter, status int, errorMsg, message string) {
	h.respondJSON(w, status, models.ErrorResponse{
		Error:   errorMsg,
		Message: message,
	})
}
