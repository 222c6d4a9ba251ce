package internal

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

type Server struct {
	Service *PortfolioService
	Router  *mux.Router
	log     zerolog.Logger
}

func NewServer(service *PortfolioService, log zerolog.Logger) *Server {
	s := &Server{
		Service: service,
		Router:  mux.NewRouter(),
		log:     log.With().Str("component", "http").Logger(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.Router.HandleFunc("/portfolio/{id}", s.handleGetPortfolio).Methods("GET")
	s.Router.HandleFunc("/portfolio/{id}/performance", s.handleGetPerformance).Methods("GET")
	s.Router.HandleFunc("/portfolio/{id}/risk", s.handleGetRisk).Methods("GET")
	s.Router.HandleFunc("/healthz", s.handleHealth).Methods("GET")
}

func (s *Server) handleGetPortfolio(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	p, err := s.Service.GetPortfolio(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleGetPerformance(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	m, err := s.Service.CalculatePerformance(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleGetRisk(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	ra, err := s.Service.CalculateRisk(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ra)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"cached": s.Service.CachedCount(),
	})
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusBadGateway
	switch {
	case errors.Is(err, ErrEmptyPortfolioID):
		status = http.StatusBadRequest
	case errors.Is(err, ErrPortfolioNotFound):
		status = http.StatusNotFound
	default:
		s.log.Error().Err(err).Msg("portfolio request failed")
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Router.ServeHTTP(w, r)
}
