// Package server - HTTP интерфейс чата для фронтенда оператора.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/ilkoid/apichat/pkg/chat"
	"github.com/ilkoid/apichat/pkg/config"
	"github.com/ilkoid/apichat/pkg/utils"
)

// SessionHeader - заголовок с id сессии в запросе и ответе.
const SessionHeader = "X-Session-ID"

// Server - HTTP сервер чата: маршруты и middleware.
type Server struct {
	orchestrator *chat.Orchestrator
	sessions     *chat.SessionStore
	cfg          config.ServerConfig
	router       *http.ServeMux
	server       *http.Server
}

// New создаёт сервер. Сетевые операции начинаются в Start.
func New(orchestrator *chat.Orchestrator, sessions *chat.SessionStore, cfg config.ServerConfig) *Server {
	s := &Server{
		orchestrator: orchestrator,
		sessions:     sessions,
		cfg:          cfg.GetDefaults(),
	}

	s.router = s.setupRoutes()
	s.server = &http.Server{
		Addr:         s.cfg.Listen,
		Handler:      s.withMiddleware(s.router),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // сообщение может включать несколько раундов вызовов
		IdleTimeout:  120 * time.Second,
	}

	return s
}

// Start запускает сервер и блокируется до Shutdown.
func (s *Server) Start() error {
	utils.Info("HTTP server starting", "address", s.server.Addr)

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Shutdown дожидается активных запросов в пределах ctx.
func (s *Server) Shutdown(ctx context.Context) error {
	utils.Info("Shutting down HTTP server")

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	utils.Info("HTTP server stopped")
	return nil
}

// Handler возвращает обработчик с middleware (для тестов).
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}
