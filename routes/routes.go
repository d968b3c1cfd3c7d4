package routes

import (
	"net/http"

	"github.com/courtside/tournament-engine/handlers"
	"github.com/courtside/tournament-engine/middleware"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type Handlers struct {
	Tournaments *handlers.TournamentHandler
	Brackets    *handlers.BracketHandler
	GroupStages *handlers.GroupStageHandler
	WebSocket   *handlers.WebSocketHandler
}

type Options struct {
	JWTSecretKey   string
	AllowedOrigins []string
}

func SetupRoutes(router chi.Router, h Handlers, opts Options) {
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// Публичная подписка на обновления сетки
	router.Get("/ws/tournaments/{tournamentID}", h.WebSocket.ServeWs)

	router.Route("/api", func(r chi.Router) {
		r.Use(middleware.Authenticate(opts.JWTSecretKey))

		r.Route("/tournaments", func(r chi.Router) {
			r.Post("/", h.Tournaments.CreateHandler)
			r.Get("/", h.Tournaments.ListHandler)

			r.Route("/{tournamentID}", func(r chi.Router) {
				r.Get("/", h.Tournaments.GetByIDHandler)
				r.Get("/overview", h.Tournaments.OverviewHandler)
				r.Patch("/status", h.Tournaments.UpdateStatusHandler)
				r.Post("/categories", h.Tournaments.AddCategoryHandler)
				r.Post("/matches/{matchID}/result", h.Brackets.RecordResultHandler)

				r.Route("/categories/{categoryID}", func(r chi.Router) {
					r.Put("/", h.Tournaments.UpdateCategoryHandler)
					r.Post("/participants", h.Brackets.EnrollHandler)
					r.Delete("/participants/{userID}", h.Tournaments.RemoveParticipantHandler)

					r.Post("/bracket", h.Brackets.GenerateHandler)
					r.Get("/bracket", h.Brackets.GetHandler)
					r.Delete("/bracket", h.Brackets.DeleteHandler)
					r.Post("/knockout", h.Brackets.AdvanceToKnockoutHandler)

					r.Route("/groups", func(r chi.Router) {
						r.Post("/", h.GroupStages.GenerateHandler)
						r.Get("/", h.GroupStages.GetHandler)
						r.Delete("/", h.GroupStages.DeleteHandler)
						r.Post("/move", h.GroupStages.MoveHandler)
						r.Post("/swap", h.GroupStages.SwapHandler)
						r.Post("/lock", h.GroupStages.LockHandler)
						r.Post("/matches/{matchID}/result", h.GroupStages.RecordResultHandler)
					})
				})
			})
		})
	})
}
