// Package web HTTP API студии: управление камерой, живое превью и слайдер сравнения.
package web

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"photo-studio/internal/application"
	"photo-studio/internal/config"
	"photo-studio/internal/infrastructure/render"
)

// Deps зависимости сервера
type Deps struct {
	Capture    CaptureService
	Status     StatusPublisher // может быть nil
	Preview    http.Handler    // может быть nil, тогда /ws/preview не регистрируется
	Compositor *render.Compositor
	Logger     application.Logger
	ErrorLog   *log.Logger // ошибки net/http; nil означает стандартный log
}

// Server HTTP-сервер студии
type Server struct {
	config     *config.Config
	router     *chi.Mux
	httpServer *http.Server
	logger     application.Logger

	capture *CaptureHandler
	compare *CompareHandler
	preview http.Handler
}

// NewServer создает сервер и настраивает маршруты
func NewServer(cfg *config.Config, deps Deps) *Server {
	r := chi.NewRouter()

	s := &Server{
		config:  cfg,
		router:  r,
		logger:  deps.Logger,
		capture: NewCaptureHandler(deps.Capture, deps.Status, deps.Logger),
		preview: deps.Preview,
	}
	s.compare = NewCompareHandler(cfg, deps.Compositor, s.capture, deps.Logger)

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(requestLogger(deps.Logger))
	r.Use(chiMiddleware.Recoverer)

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:        cfg.Server.Addr(),
		Handler:     r,
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 60 * time.Second,
		ErrorLog:    deps.ErrorLog,
	}

	return s
}

// Start блокируется до остановки сервера
func (s *Server) Start() error {
	s.logger.Info("Запуск веб-сервера на %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown корректно останавливает сервер
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Остановка веб-сервера...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}

// Router возвращает роутер для тестов
func (s *Server) Router() *chi.Mux {
	return s.router
}
