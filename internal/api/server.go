package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"filehost-backend/internal/config"
	"filehost-backend/internal/repository"
	"filehost-backend/internal/websocket"
)

type Server struct {
	config *config.Config
	repo   *repository.Repository
	hub    *websocket.Hub
	log    *slog.Logger
}

func NewServer(cfg *config.Config, repo *repository.Repository, hub *websocket.Hub, logger *slog.Logger) *Server {
	return &Server{
		config: cfg,
		repo:   repo,
		hub:    hub,
		log:    logger,
	}
}

func (s *Server) HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
