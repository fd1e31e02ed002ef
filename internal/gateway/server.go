package gateway

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/flemzord/chaingate/internal/tool"
)

// buildRouter constructs the chi mux with all routes wired.
func (g *Gateway) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(g.observe)
	r.Use(g.recoverer)

	// Public, no auth required.
	r.Get("/health", g.handleHealth())
	if g.telemetry != nil {
		r.Handle("/metrics", g.telemetry.Handler())
	}

	// Tool and agent surface. Public unless auth.protect_tools is set.
	r.Group(func(r chi.Router) {
		if g.config.Auth.ProtectTools {
			r.Use(authMiddleware(g.config.Auth, g.audit))
		}
		r.Post("/mcp", g.handleCall())
		r.Get("/mcp/tools", g.handleListTools())
		r.Post("/mcp/batch", g.handleBatch())
		if g.config.mcpStream() {
			r.Handle("/mcp/stream", g.mcpHandler())
		}
		r.Get("/agents", g.handleListAgents())
		r.Get("/agents/{id}", g.handleGetAgent())
		r.Get("/agents/{id}/memory", g.handleAgentMemory())
		if g.events != nil {
			r.Get("/ws/events", g.handleEvents())
		}
	})

	// Admin endpoints, auth required. Not mounted if no auth configured.
	if g.config.Auth.IsConfigured() {
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware(g.config.Auth, g.audit))
			r.Get("/status", g.handleStatus())
			r.Delete("/agents/{id}", g.handleDeleteAgent())
			r.Get("/api/modules", g.handleGetAllModules())
		})
	}

	return r
}

// recoverer turns a handler panic into a 500 error envelope. The panic
// value is logged, never returned to the client.
func (g *Gateway) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			g.logger.Error("panic in handler",
				"panic", rec,
				"path", r.URL.Path,
				"request_id", middleware.GetReqID(r.Context()),
			)
			g.metrics.RecordError()
			writeError(w, tool.Errorf(tool.CodeInternal, "internal error"))
		}()
		next.ServeHTTP(w, r)
	})
}

// observe counts every request by route pattern and status.
func (g *Gateway) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		g.metrics.RecordRequest()
		if g.telemetry != nil {
			g.telemetry.ObserveRequest(route, status)
		}
		g.logger.Debug("request",
			"method", r.Method,
			"route", route,
			"status", status,
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
