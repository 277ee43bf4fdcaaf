package router

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	httpmiddleware "github.com/wolfman30/ai-chat-assistant/internal/http/middleware"
	"github.com/wolfman30/ai-chat-assistant/internal/webchat"
	"github.com/wolfman30/ai-chat-assistant/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	WebChat            *webchat.Handler
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Get("/health", healthCheck)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	if cfg.WebChat == nil {
		return r
	}

	// The websocket route stays outside Compress: the upgrade hijacks the
	// connection and frames must not be buffered.
	r.Get("/chat/ws", cfg.WebChat.HandleWebSocket)

	r.Group(func(page chi.Router) {
		page.Use(middleware.Compress(5))
		page.Get("/", cfg.WebChat.HandleIndex)
		page.Get("/chat/app.js", cfg.WebChat.HandleAppJS)
		page.Get("/chat/history", cfg.WebChat.HandleHistory)
		page.Route("/api", func(api chi.Router) {
			api.Get("/modes", cfg.WebChat.HandleModes)
			api.Get("/status", cfg.WebChat.HandleStatus)
			api.Post("/complete", cfg.WebChat.HandleComplete)
		})
	})

	return r
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
