package httpapi

import (
	stdhttp "net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"server/internal/http/handlers"
	"server/internal/middleware"
)

// NewRouter assembles the full API surface. lookup may be nil when no
// GeoIP database is configured.
func NewRouter(app *handlers.App, lookup middleware.CountryLookup) stdhttp.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(app.Logger))
	r.Use(chimw.Recoverer)
	r.Use(middleware.CORS(app.Cfg.AllowedOrigins))
	r.Use(middleware.Geo(lookup))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", app.Health)
		r.Post("/auth/google", app.AuthGoogle)
		r.Post("/payments/webhook", app.PaymentWebhook)
		r.Get("/certifications/public/{id}", app.CertificationPublic)

		// Authenticated surface.
		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthJWT(app.Cfg.JWTSecret))

			r.Get("/auth/me", app.Me)
			r.Patch("/auth/me/leaderboard", app.MeLeaderboardVisibility)
			r.Get("/tasks/{id}", app.TaskStatus)

			// Submission routes share a per-IP budget; everything they
			// trigger costs an LLM call.
			limitSubmissions := middleware.RateLimit(app.Cfg.RateLimitPerMin, time.Minute)

			r.With(limitSubmissions).Post("/analyses", app.AnalyzeSubmit)
			r.Get("/analyses", app.AnalysesList)
			r.Delete("/analyses/{id}", app.AnalysisDelete)

			// Certification and counseling are part of the paid tier.
			r.Group(func(r chi.Router) {
				r.Use(app.RequirePremium)

				r.Route("/certifications", func(r chi.Router) {
					r.Get("/", app.CertificationsHistory)
					r.Post("/", app.CertificationStart)
					r.Get("/cooldown", app.CertificationCooldown)
					r.Get("/{id}", app.CertificationGet)
					r.With(limitSubmissions).Post("/{id}/photos", app.CertificationPhotoUpload)
					r.Delete("/{id}/photos/{slot}", app.CertificationPhotoDelete)
					r.With(limitSubmissions).Post("/{id}/diagnose", app.CertificationDiagnose)
					r.Get("/{id}/export", app.CertificationExport)
				})

				r.Route("/counseling/sessions", func(r chi.Router) {
					r.Get("/", app.CounselingSessionsList)
					r.Post("/", app.CounselingSessionCreate)
					r.Get("/{id}", app.CounselingSessionGet)
					r.Delete("/{id}", app.CounselingSessionDelete)
					r.With(limitSubmissions).Post("/{id}/messages", app.CounselingMessageCreate)
				})
			})

			r.Route("/forum", func(r chi.Router) {
				r.Get("/threads", app.ForumThreadsList)
				r.Post("/threads", app.ForumThreadCreate)
				r.Get("/threads/{id}", app.ForumThreadGet)
				r.Post("/threads/{id}/replies", app.ForumReplyCreate)
				r.Get("/replies/{id}", app.ForumReplyStatus)
			})

			r.Route("/leaderboard", func(r chi.Router) {
				r.Use(app.RequirePremium)
				r.Get("/best", app.LeaderboardBest)
				r.Get("/worst", app.LeaderboardWorst)
				r.Get("/insecurity", app.LeaderboardInsecurity)
			})

			r.Route("/scores", func(r chi.Router) {
				r.Post("/", app.ScoreSubmit)
				r.Get("/best", app.ScoreBest)
				r.Get("/leaderboard", app.ScoresLeaderboard)
			})

			r.Post("/payments/checkout", app.PaymentCheckout)
			r.Get("/payments", app.PaymentsList)

			r.Get("/stats", app.StatsSummary)
		})
	})

	// Stored images and certificates.
	fileServer := stdhttp.StripPrefix("/static/", stdhttp.FileServer(stdhttp.Dir(app.Store.BasePath())))
	r.Get("/static/*", func(w stdhttp.ResponseWriter, req *stdhttp.Request) {
		fileServer.ServeHTTP(w, req)
	})

	return r
}
