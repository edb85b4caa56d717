package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"story-ai-billing/internal/domain"
	"story-ai-billing/internal/domain/ports/adapter"
	"story-ai-billing/internal/infra/gateway/freedompay"
	"story-ai-billing/internal/infra/metrics"
	"story-ai-billing/internal/usecase"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type registerRequest struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Language string `json:"language"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	user, err := s.userUC.Register(r.Context(), req.ID, req.Email, req.Language)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, "Failed to register user", http.StatusInternalServerError)
		return
	}
	token, err := s.auth.Mint(user.ID)
	if err != nil {
		http.Error(w, "Failed to issue token", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, struct {
		ID      string `json:"id"`
		Email   string `json:"email"`
		Credits int64  `json:"credits"`
		Token   string `json:"token"`
	}{user.ID, user.Email, user.Credits, token})
}

type initPaymentRequest struct {
	ProductType string `json:"product_type"`
	Currency    string `json:"currency"`
	Language    string `json:"language"`
}

func (s *Server) handleInitPayment(w http.ResponseWriter, r *http.Request) {
	var req initPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	p, redirectURL, err := s.checkoutUC.Initiate(r.Context(), userID(r.Context()), req.ProductType, req.Currency, req.Language)
	if err != nil {
		metrics.IncPayment("unknown", "init_failed")
		var gw *domain.GatewayError
		switch {
		case errors.Is(err, domain.ErrUnknownProduct), errors.Is(err, domain.ErrInvalidArgument):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.As(err, &gw):
			s.log.Warn().Str("code", gw.Code).Str("provider", gw.Provider).Msg("gateway rejected initiation")
			http.Error(w, gw.Message, http.StatusBadGateway)
		default:
			http.Error(w, "Failed to initiate payment", http.StatusInternalServerError)
		}
		return
	}

	metrics.IncPayment(p.Provider, "initiated")
	writeJSON(w, http.StatusCreated, struct {
		PaymentID   string `json:"payment_id"`
		OrderID     string `json:"order_id"`
		RedirectURL string `json:"redirect_url"`
		Amount      int64  `json:"amount"`
		Currency    string `json:"currency"`
	}{p.ID, p.OrderID, redirectURL, p.Amount, p.Currency})
}

// handlePaymentStatus lets the success-page poll for the callback outcome.
func (s *Server) handlePaymentStatus(w http.ResponseWriter, r *http.Request) {
	orderID := r.URL.Query().Get("order_id")
	if orderID == "" {
		http.Error(w, "Missing order_id", http.StatusBadRequest)
		return
	}
	p, err := s.checkoutUC.Status(r.Context(), userID(r.Context()), orderID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			http.Error(w, "Unknown order", http.StatusNotFound)
			return
		}
		http.Error(w, "Status lookup failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		OrderID      string `json:"order_id"`
		Status       string `json:"status"`
		ProductType  string `json:"product_type"`
		CreditsAdded int64  `json:"credits_added"`
	}{p.OrderID, string(p.Status), p.ProductType, p.CreditsAdded})
}

// handleChargeRecurring runs one due-profile billing sweep on demand. The
// scheduler covers steady state; this exists for ops-triggered catch-up.
func (s *Server) handleChargeRecurring(w http.ResponseWriter, r *http.Request) {
	n, err := s.recurringUC.ChargeDue(r.Context(), 100)
	if err != nil {
		http.Error(w, "Recurring charge failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Charged int `json:"charged"`
	}{n})
}

// handleFreedomPayCallback serves both the check and result phases. The
// business outcome travels in the signed XML body; the HTTP status is always
// 200 so the gateway never retries on a rejection.
func (s *Server) handleFreedomPayCallback(w http.ResponseWriter, r *http.Request) {
	params := freedompay.ParseRequest(r)
	scriptName := freedompay.ScriptNameFromPath(r.URL.Path)

	var answer usecase.CallbackAnswer
	switch scriptName {
	case "check":
		answer = s.callbackUC.HandleCheck(r.Context(), scriptName, params)
	default:
		answer = s.callbackUC.HandleResult(r.Context(), scriptName, params)
	}

	metrics.IncCallback("freedompay", scriptName, answer.Status)
	if answer.SignatureFailure {
		metrics.IncSignatureFailure("freedompay")
	}

	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, freedompay.BuildResponseXML(scriptName, answer.Status, answer.Description, s.freedompaySecret))
}

func (s *Server) handleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(w, "Failed to read body", http.StatusBadRequest)
		return
	}

	err = s.callbackUC.HandleStripeEvent(r.Context(), payload, r.Header.Get("Stripe-Signature"))
	switch {
	case err == nil:
		metrics.IncCallback("stripe", "webhook", "ok")
		w.WriteHeader(http.StatusOK)
	case errors.Is(err, domain.ErrSignatureInvalid):
		metrics.IncCallback("stripe", "webhook", "rejected")
		metrics.IncSignatureFailure("stripe")
		http.Error(w, "Invalid signature", http.StatusBadRequest)
	case errors.Is(err, domain.ErrInvalidArgument):
		metrics.IncCallback("stripe", "webhook", "rejected")
		http.Error(w, "Malformed event", http.StatusBadRequest)
	default:
		// 5xx makes the provider redeliver; processing is idempotent.
		metrics.IncCallback("stripe", "webhook", "error")
		http.Error(w, "Processing failed", http.StatusInternalServerError)
	}
}

type chapterRequest struct {
	Language string `json:"language"`
	Facts    string `json:"facts"`
	Continue string `json:"continue"`
}

func (s *Server) handleGenerateChapter(w http.ResponseWriter, r *http.Request) {
	var req chapterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	text, err := s.chapterUC.Generate(r.Context(), userID(r.Context()), adapter.ChapterRequest{
		Language: req.Language,
		Facts:    req.Facts,
		Continue: req.Continue,
	})
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientCredits) {
			metrics.IncChapterGeneration("insufficient_credits")
			http.Error(w, "Insufficient credits", http.StatusPaymentRequired)
			return
		}
		metrics.IncChapterGeneration("error")
		http.Error(w, "Generation failed", http.StatusInternalServerError)
		return
	}
	metrics.IncChapterGeneration("ok")
	writeJSON(w, http.StatusOK, struct {
		Chapter string `json:"chapter"`
	}{text})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	user, err := s.userUC.Get(r.Context(), userID(r.Context()))
	if err != nil {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		ID       string `json:"id"`
		Email    string `json:"email"`
		Language string `json:"language"`
		Credits  int64  `json:"credits"`
	}{user.ID, user.Email, user.Language, user.Credits})
}

func (s *Server) handleCancelRecurring(w http.ResponseWriter, r *http.Request) {
	profileID := chi.URLParam(r, "profileID")
	if profileID == "" {
		http.Error(w, "Missing profile id", http.StatusBadRequest)
		return
	}
	if err := s.recurringUC.Cancel(r.Context(), profileID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			http.Error(w, "Unknown profile", http.StatusNotFound)
			return
		}
		http.Error(w, "Cancel failed", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
