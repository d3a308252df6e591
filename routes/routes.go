package routes

import (
	"net/http"

	"github.com/Dosada05/pong-tournament/handlers"
	"github.com/Dosada05/pong-tournament/metrics"
	"github.com/Dosada05/pong-tournament/middleware"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware" // Alias to avoid conflict
	"github.com/go-chi/cors"
)

type Options struct {
	JWTSecret      string
	AllowedOrigins []string
}

func SetupRoutes(
	router *chi.Mux,
	opts Options,
	authHandler *handlers.AuthHandler,
	tournamentHandler *handlers.TournamentHandler,
	matchHandler *handlers.MatchHandler,
	webSocketHandler *handlers.WebSocketHandler,
) {
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	router.Use(metrics.Middleware)

	authenticate := middleware.Authenticate(opts.JWTSecret)

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.Method(http.MethodGet, "/metrics", metrics.Handler())

	router.Post("/auth/signin", authHandler.Login)

	router.Route("/tournaments", func(r chi.Router) {
		// Публичные маршруты: просмотр и участие гостей
		r.Get("/", tournamentHandler.ListHandler)
		r.Get("/{tournamentID}", tournamentHandler.GetByIDHandler)
		r.Get("/{tournamentID}/matches", tournamentHandler.ListMatchesHandler)
		r.Post("/{tournamentID}/players", tournamentHandler.JoinHandler)
		r.Delete("/{tournamentID}/players/{alias}", tournamentHandler.LeaveHandler)

		// Защищенные маршруты
		r.Group(func(r chi.Router) {
			r.Use(authenticate)

			r.Post("/", tournamentHandler.CreateHandler)
			r.Post("/{tournamentID}/start", tournamentHandler.StartHandler)
			r.Post("/{tournamentID}/champion", tournamentHandler.DeclareChampionHandler)
		})
	})

	router.Route("/matches", func(r chi.Router) {
		r.Get("/{matchID}", matchHandler.GetHandler)
		r.With(middleware.OptionalAuthenticate(opts.JWTSecret)).Post("/{matchID}/result", matchHandler.SubmitResultHandler)
	})

	router.Get("/ws/tournaments/{tournamentID}", webSocketHandler.ServeWs)
}
