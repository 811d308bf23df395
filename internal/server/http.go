// Package server exposes the match lifecycle over HTTP: create a match,
// poll its snapshot, and submit one action at a time. Clients poll for
// state; there is no push channel.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/crynxmartinez/dueler/internal/game"
	"github.com/crynxmartinez/dueler/internal/game/events"
	"github.com/crynxmartinez/dueler/internal/game/state"
	"github.com/crynxmartinez/dueler/internal/repository"
)

// MatchStore is the persistence surface the handlers need for matches.
type MatchStore interface {
	CreateMatch(ctx context.Context, rec *repository.MatchRecord) error
	GetMatch(ctx context.Context, id string) (*repository.MatchRecord, error)
	SaveState(ctx context.Context, id string, st *state.GameState) error
}

// ContentStore loads the designer-authored rules and cards of a game.
type ContentStore interface {
	ListRules(ctx context.Context, gameID string) ([]game.RuleCard, error)
	ListCards(ctx context.Context, gameID string) ([]game.CardDefinition, error)
}

// Server handles the HTTP API. Actions against one match are serialized
// with a per-match mutex; the engine itself holds no locks.
type Server struct {
	matches  MatchStore
	content  ContentStore
	settings state.GameSettings
	bus      *events.Bus
	logger   *zap.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewServer builds the HTTP handler set.
func NewServer(matches MatchStore, content ContentStore, settings state.GameSettings, bus *events.Bus, logger *zap.Logger) *Server {
	return &Server{
		matches:  matches,
		content:  content,
		settings: settings,
		bus:      bus,
		logger:   logger,
		locks:    make(map[string]*sync.Mutex),
	}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/matches", s.handleCreateMatch)
	mux.HandleFunc("GET /api/matches/{id}", s.handleGetMatch)
	mux.HandleFunc("POST /api/matches/{id}/actions", s.handleAction)
	return mux
}

func (s *Server) matchLock(id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[id] = lock
	}
	return lock
}

type createMatchRequest struct {
	GameID           string                `json:"gameId"`
	Player1ID        string                `json:"player1Id"`
	Player1Name      string                `json:"player1Name"`
	Player2ID        string                `json:"player2Id"`
	Player2Name      string                `json:"player2Name"`
	Player1DeckCards []state.CardPoolEntry `json:"player1DeckCards"`
	Player2DeckCards []state.CardPoolEntry `json:"player2DeckCards"`
	BoardZones       []state.BoardZone     `json:"boardZones"`
	Settings         *state.GameSettings   `json:"settings,omitempty"`
}

func (s *Server) handleCreateMatch(w http.ResponseWriter, r *http.Request) {
	var req createMatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.GameID == "" || req.Player1ID == "" || req.Player2ID == "" {
		writeError(w, http.StatusBadRequest, "gameId, player1Id and player2Id are required")
		return
	}

	matchID := uuid.New().String()
	st := state.NewMatchState(state.MatchParams{
		MatchID:          matchID,
		GameID:           req.GameID,
		Player1ID:        req.Player1ID,
		Player1Name:      req.Player1Name,
		Player2ID:        req.Player2ID,
		Player2Name:      req.Player2Name,
		Player1DeckCards: req.Player1DeckCards,
		Player2DeckCards: req.Player2DeckCards,
		BoardZones:       req.BoardZones,
		Settings:         s.matchSettings(req.Settings),
	})

	rec := &repository.MatchRecord{
		ID:        matchID,
		GameID:    req.GameID,
		Player1ID: req.Player1ID,
		Player2ID: req.Player2ID,
		Status:    st.Status,
		State:     st,
	}
	if err := s.matches.CreateMatch(r.Context(), rec); err != nil {
		s.logger.Error("create match failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to create match")
		return
	}

	writeJSON(w, http.StatusCreated, st)
}

func (s *Server) handleGetMatch(w http.ResponseWriter, r *http.Request) {
	rec, err := s.matches.GetMatch(r.Context(), r.PathValue("id"))
	if errors.Is(err, repository.ErrMatchNotFound) {
		writeError(w, http.StatusNotFound, "match not found")
		return
	}
	if err != nil {
		s.logger.Error("load match failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load match")
		return
	}
	writeJSON(w, http.StatusOK, rec.State)
}

type actionRequest struct {
	Action             string             `json:"action"`
	Player             state.PlayerNumber `json:"player,omitempty"`
	CardInstanceID     string             `json:"cardInstanceId,omitempty"`
	TargetInstanceIDs  []string           `json:"targetInstanceIds,omitempty"`
	Position           *int               `json:"position,omitempty"`
	AttackerInstanceID string             `json:"attackerInstanceId,omitempty"`
	DefenderInstanceID string             `json:"defenderInstanceId,omitempty"`
}

func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	matchID := r.PathValue("id")

	var req actionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	lock := s.matchLock(matchID)
	lock.Lock()
	defer lock.Unlock()

	rec, err := s.matches.GetMatch(r.Context(), matchID)
	if errors.Is(err, repository.ErrMatchNotFound) {
		writeError(w, http.StatusNotFound, "match not found")
		return
	}
	if err != nil {
		s.logger.Error("load match failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load match")
		return
	}

	rules, err := s.content.ListRules(r.Context(), rec.GameID)
	if err != nil {
		s.logger.Error("load rules failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load rules")
		return
	}
	cards, err := s.content.ListCards(r.Context(), rec.GameID)
	if err != nil {
		s.logger.Error("load cards failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load cards")
		return
	}

	settings := s.settings
	engine := game.NewEngine(rec.State, rules, cards, &settings,
		game.WithEventBus(s.bus), game.WithLogger(s.logger))

	next, err := s.dispatch(engine, req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.matches.SaveState(r.Context(), matchID, next); err != nil {
		s.logger.Error("save match state failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to save match state")
		return
	}

	writeJSON(w, http.StatusOK, next)
}

func (s *Server) dispatch(engine *game.Engine, req actionRequest) (*state.GameState, error) {
	switch req.Action {
	case "startMatch":
		return engine.StartMatch(), nil
	case "playCard":
		position := -1
		if req.Position != nil {
			position = *req.Position
		}
		return engine.PlayCard(req.Player, req.CardInstanceID, req.TargetInstanceIDs, position)
	case "attack":
		return engine.Attack(req.Player, req.AttackerInstanceID, req.DefenderInstanceID)
	case "endTurn":
		return engine.EndTurn(), nil
	case "concede":
		return engine.Concede(req.Player), nil
	default:
		return nil, errors.New("unknown action: " + req.Action)
	}
}

// matchSettings applies a per-match override on top of the server's
// configured defaults.
func (s *Server) matchSettings(override *state.GameSettings) *state.GameSettings {
	if override != nil {
		return override
	}
	settings := s.settings
	return &settings
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
