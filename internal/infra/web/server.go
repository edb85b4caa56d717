package web

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"story-ai-billing/internal/usecase"
)

type Server struct {
	checkoutUC  usecase.CheckoutUseCase
	callbackUC  usecase.CallbackUseCase
	chapterUC   usecase.ChapterUseCase
	userUC      usecase.UserUseCase
	recurringUC usecase.RecurringUseCase
	auth        *AuthManager

	// freedompaySecret signs outbound callback answers; verification of the
	// inbound request happens inside the callback usecase.
	freedompaySecret string

	log *zerolog.Logger
}

func NewServer(
	checkoutUC usecase.CheckoutUseCase,
	callbackUC usecase.CallbackUseCase,
	chapterUC usecase.ChapterUseCase,
	userUC usecase.UserUseCase,
	recurringUC usecase.RecurringUseCase,
	auth *AuthManager,
	freedompaySecret string,
	logger *zerolog.Logger,
) *Server {
	return &Server{
		checkoutUC:       checkoutUC,
		callbackUC:       callbackUC,
		chapterUC:        chapterUC,
		userUC:           userUC,
		recurringUC:      recurringUC,
		auth:             auth,
		freedompaySecret: freedompaySecret,
		log:              logger,
	}
}

// Router assembles all routes. Gateway callbacks are unauthenticated by
// design: their trust comes from request signatures, not bearer tokens.
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/users", s.handleRegister)

		r.Route("/payments", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(s.requireAuth)
				r.Post("/init", s.handleInitPayment)
				r.Get("/status", s.handlePaymentStatus)
				r.Post("/recurring", s.handleChargeRecurring)
			})
			// Signed gateway callbacks.
			r.Post("/freedompay/check", s.handleFreedomPayCallback)
			r.Post("/freedompay/result", s.handleFreedomPayCallback)
			r.Post("/stripe/webhook", s.handleStripeWebhook)
		})

		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth)
			r.Post("/chapters", s.handleGenerateChapter)
			r.Get("/me", s.handleMe)
			r.Delete("/recurring/{profileID}", s.handleCancelRecurring)
		})
	})

	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("http request")
	})
}
