package server

import (
	"io"
	"net/http"

	"savium-invest-go/internal/auth"
	"savium-invest-go/internal/models"
	"savium-invest-go/internal/webhook"

	"go.uber.org/zap"
)

const maxWebhookBytes = 65536

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.app.HealthCheck(r.Context()); err != nil {
		zap.L().Warn("Health check failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "version": Version})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "Savium API is operational", "version": Version})
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid payload")
		return
	}

	res := s.webhook.Handle(r.Context(), raw, r.Header.Get("Stripe-Signature"))
	if res.Status == webhook.StatusRejected {
		writeDetail(w, res.HTTPStatus, res.Message)
		return
	}
	writeJSON(w, res.HTTPStatus, res.Response())
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())

	// The body is optional, the token already carries email and name.
	var req models.CreateUserRequest
	if r.ContentLength != 0 {
		if err := decodeBody(w, r, &req); err != nil {
			writeError(w, r, err)
			return
		}
	}
	if req.Email == "" {
		req.Email = id.Email
	}
	if req.Name == "" {
		req.Name = id.Name
	}

	user, err := s.app.CreateUser(r.Context(), id.UserId, req.Email, req.Name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := s.app.GetProfile(r.Context(), auth.UserIDFromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (s *Server) handleGetPortfolio(w http.ResponseWriter, r *http.Request) {
	p, err := s.app.GetPortfolio(r.Context(), auth.UserIDFromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleListInvestments(w http.ResponseWriter, r *http.Request) {
	views, err := s.app.ListInvestments(r.Context(), auth.UserIDFromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleCreateInvestment(w http.ResponseWriter, r *http.Request) {
	var req models.CreateInvestmentRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	resp, err := s.app.CreateInvestment(r.Context(), auth.UserIDFromContext(r.Context()), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRequestWithdrawal(w http.ResponseWriter, r *http.Request) {
	var req models.WithdrawalRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	resp, err := s.app.RequestWithdrawal(r.Context(), auth.UserIDFromContext(r.Context()), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCreateDeposit(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())

	var req models.DepositRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	resp, err := s.app.CreateDeposit(r.Context(), id.UserId, id.Email, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCreatePaymentIntent(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())

	var req models.PaymentIntentRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	resp, err := s.app.CreatePaymentIntent(r.Context(), id.UserId, id.Email, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	entries, err := s.app.ListTransactions(r.Context(), auth.UserIDFromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"transactions": entries})
}
