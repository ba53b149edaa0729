package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/micro-nova/upm6720d/internal/auth"
)

// NewRouter creates and returns the main HTTP router. authSvc may be nil,
// leaving the control routes open.
func NewRouter(dev Device, authSvc *auth.Service, bus EventBus) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(corsMiddleware)
	r.Use(middleware.CleanPath)

	h := &Handlers{dev: dev, events: bus}

	// Telemetry
	r.Get("/api/info", h.getInfo)
	r.Get("/api/status", h.getStatus)
	r.Get("/api/flags", h.getFlags)
	r.Get("/api/adc", h.getADC)
	r.Get("/api/adc/{channel}", h.getADCChannel)
	r.Get("/api/mode", h.getMode)
	r.Get("/api/present", h.getPresent)
	r.Get("/api/charge", h.getCharge)
	r.Get("/api/registers", h.getRegisters)
	r.Get("/api/subscribe", h.sseEvents)

	// Control
	r.Group(func(r chi.Router) {
		if authSvc != nil {
			r.Use(authSvc.Middleware)
		}
		r.Put("/api/present", h.setPresent)
		r.Put("/api/charge", h.setCharge)
	})

	return r
}

// corsMiddleware adds permissive CORS headers for local network access.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-API-Key")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
