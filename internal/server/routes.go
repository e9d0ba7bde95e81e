package server

import (
	"net/http"
	"time"

	"savium-invest-go/internal/auth"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// Routes builds the router with all endpoints.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.cfg.RequestTimeout))

	origins := s.cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "Stripe-Signature"},
		MaxAge:         300,
	}))

	r.Get("/", s.handleHealth)
	r.Post("/api/payments/webhook", s.handleWebhook)

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(s.tokens))

		r.Post("/api/users", s.handleCreateUser)
		r.Get("/api/users/me", s.handleGetProfile)
		r.Get("/api/portfolio", s.handleGetPortfolio)
		r.Get("/api/investments", s.handleListInvestments)
		r.Post("/api/investments", s.handleCreateInvestment)
		r.Post("/api/withdrawals", s.handleRequestWithdrawal)
		r.Post("/api/deposit", s.handleCreateDeposit)
		r.Post("/api/payments/create-intent", s.handleCreatePaymentIntent)
		r.Get("/api/transactions", s.handleListTransactions)
	})

	return r
}

// requestLogger logs one line per request with the global zap logger.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			zap.L().Info("HTTP request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.String("remote_addr", r.RemoteAddr))
		}()
		next.ServeHTTP(ww, r)
	})
}
