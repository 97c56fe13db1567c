package web

import (
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

func (s *Server) setupRoutes() {
	s.router.Get("/", serveIndex)
	s.router.Get("/api/health", HealthCheck)

	if s.preview != nil {
		// Вне группы с таймаутом: соединение живет сколько угодно
		s.router.Handle("/ws/preview", s.preview)
	}

	s.router.Route("/api", func(r chi.Router) {
		r.Use(chiMiddleware.Timeout(30 * time.Second))

		r.Get("/devices", s.capture.Devices)

		r.Route("/capture", func(r chi.Router) {
			r.Get("/status", s.capture.Status)
			r.Post("/start", s.capture.Start)
			r.Post("/switch", s.capture.Switch)
			r.Post("/retry", s.capture.Retry)
			r.Post("/stop", s.capture.Stop)
			r.Post("/snapshot", s.capture.Snapshot)
			r.Get("/last", s.capture.Last)
		})

		r.Route("/compare", func(r chi.Router) {
			r.Post("/", s.compare.Create)
			r.Get("/", s.compare.Get)
			r.Delete("/", s.compare.Delete)
			r.Put("/bounds", s.compare.SetBounds)
			r.Post("/pointer", s.compare.Pointer)
			r.Post("/nudge", s.compare.Nudge)
			r.Post("/reset", s.compare.Reset)
			r.Post("/zoom", s.compare.Zoom)
			r.Get("/render", s.compare.Render)
		})
	})
}
