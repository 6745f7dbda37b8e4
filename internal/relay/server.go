package relay

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"turnsync/internal/domain"
	"turnsync/internal/ports"
	"turnsync/internal/protocol"
)

// Server exposes the relay HTTP surface:
//
//	POST /matches/{matchID}/moves     append a move to the durable log
//	GET  /matches/{matchID}/moves     list moves, ?after=<seq>
//	GET  /ws/{matchID}                websocket room attachment
//	GET  /healthz                     liveness
//
// Every route requires a bearer token (websocket clients may pass it as a
// ?token query parameter, browsers cannot set headers on upgrade).
type Server struct {
	hub      *Hub
	log      ports.MoveLog
	identity ports.IdentityPort
	logger   zerolog.Logger
	upgrader websocket.Upgrader
}

// NewServer wires the relay routes.
func NewServer(moveLog ports.MoveLog, identity ports.IdentityPort, logger zerolog.Logger) *Server {
	return &Server{
		hub:      NewHub(logger),
		log:      moveLog,
		identity: identity,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// Router builds the chi handler.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Route("/matches/{matchID}/moves", func(r chi.Router) {
		r.Post("/", s.handleSubmitMove)
		r.Get("/", s.handleListMoves)
	})
	r.Get("/ws/{matchID}", s.handleWS)
	return r
}

// playerID authenticates the request, from the Authorization header or the
// token query parameter.
func (s *Server) playerID(r *http.Request) (string, error) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	}
	return s.identity.PlayerID(r.Context(), token)
}

func (s *Server) handleSubmitMove(w http.ResponseWriter, r *http.Request) {
	player, err := s.playerID(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var mv domain.Move
	if err := json.NewDecoder(r.Body).Decode(&mv); err != nil {
		http.Error(w, "malformed move", http.StatusBadRequest)
		return
	}
	matchID := chi.URLParam(r, "matchID")
	if mv.MatchID != matchID {
		http.Error(w, "move match mismatch", http.StatusBadRequest)
		return
	}
	// A watchdog timeout report is the one move legitimately submitted on
	// another player's behalf. Everything else, resignation included, must
	// come first-hand.
	if mv.Player != player && mv.Synthetic() != domain.SyntheticTimeout {
		http.Error(w, "cannot submit for another player", http.StatusForbidden)
		return
	}

	switch err := s.log.SubmitMove(r.Context(), mv); {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, ports.ErrMoveConflict):
		http.Error(w, "sequence conflict", http.StatusConflict)
	default:
		s.logger.Error().Err(err).Str("match", matchID).Msg("submit move failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func (s *Server) handleListMoves(w http.ResponseWriter, r *http.Request) {
	if _, err := s.playerID(r); err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var after uint64
	if q := r.URL.Query().Get("after"); q != "" {
		v, err := strconv.ParseUint(q, 10, 64)
		if err != nil {
			http.Error(w, "bad after cursor", http.StatusBadRequest)
			return
		}
		after = v
	}

	moves, err := s.log.Moves(r.Context(), chi.URLParam(r, "matchID"), after)
	if err != nil {
		s.logger.Error().Err(err).Msg("list moves failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if moves == nil {
		moves = []domain.Move{}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(moves)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	player, err := s.playerID(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	matchID := chi.URLParam(r, "matchID")

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug().Err(err).Msg("upgrade failed")
		return
	}

	c := s.hub.Join(matchID, player, conn)
	defer func() {
		s.hub.Leave(matchID, c)
		conn.Close()
	}()

	for {
		var env protocol.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			return
		}
		// The authenticated identity overrides whatever the sender claims.
		env.From = player
		if env.MatchID != matchID {
			continue
		}
		s.hub.Forward(matchID, env)
	}
}
