package server

import (
	"github.com/go-chi/chi/v5"
)

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	r := s.router

	// Health stays open so load balancers can probe without credentials.
	r.Get("/health", s.getHealth)

	r.Group(func(r chi.Router) {
		r.Use(s.requireAPIKey)

		// Device routes
		r.Route("/device", func(r chi.Router) {
			r.Get("/", s.listDevices)
			r.Post("/", s.createDevice)

			r.Route("/{deviceID}", func(r chi.Router) {
				r.Get("/", s.getDevice)
				r.Delete("/", s.deleteDevice)

				// Session operations
				r.Post("/connect", s.connectDevice)
				r.Post("/disconnect", s.disconnectDevice)
				r.Post("/restart", s.restartDevice)
				r.Get("/qr", s.getQR)

				// Webhook configuration
				r.Put("/webhook", s.setWebhook)

				// Messages
				r.Post("/message", s.sendMessage)
				r.Get("/message", s.listMessages)
				r.Get("/chats", s.listChats)

				// Bookkeeping
				r.Get("/stats", s.getStats)
				r.Get("/logs", s.getLogs)
			})
		})

		// Event streaming (SSE)
		r.Get("/event", s.streamEvents)
	})
}
