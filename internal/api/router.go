package api

import (
	"net/http"

	"cronchat/internal/chat"
	"cronchat/internal/messaging"
	"cronchat/internal/middleware"
	"cronchat/internal/tasks"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

type Deps struct {
	Service        *messaging.Service
	Hub            *chat.Hub
	Bot            *tasks.BotScheduler
	AuthKey        []byte
	AllowedOrigins []string
	AppEnv         string
	Health         HealthDeps
}

// NewRouter creates and configures the HTTP router.
func NewRouter(logger zerolog.Logger, d Deps) *chi.Mux {
	r := chi.NewRouter()

	// Metrics first so every request is counted
	r.Use(middleware.Metrics)

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(chimw.Recoverer)

	origins := d.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.NotFound(notFound)

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/health", HealthHandler(d.Health))

	r.Route("/api", func(r chi.Router) {
		r.Post("/cron", StartCronHandler(d.Bot, logger))
		r.Get("/cron", CronStatusHandler(d.Bot))
		r.Post("/send-message", SendMessageHandler(d.Service, logger))
		r.Get("/message", LatestMessageHandler(d.Service, logger))
		r.Get("/history", HistoryHandler(d.Service, logger))
		r.Get("/online", OnlineHandler(d.Hub))
		r.Get("/socket", SocketInfoHandler)
		r.Get("/socket/io", ServeWS(d.Hub, d.Service, d.AllowedOrigins, logger))

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAdmin(d.AuthKey, logger))
			r.Delete("/cron", StopCronHandler(d.Bot))
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAdmin(d.AuthKey, logger))
		r.Get("/test-env", TestEnvHandler(d.AppEnv))
	})

	return r
}

func notFound(w http.ResponseWriter, r *http.Request) {
	Error(w, http.StatusNotFound, "Not found")
}
