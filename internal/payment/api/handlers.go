// Package api exposes payment sessions over HTTP to the rider app.
package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"

	"ridepay/internal/common/api"
	"ridepay/internal/common/middleware"
	"ridepay/internal/common/money"
	"ridepay/internal/payment"
	"ridepay/internal/payment/session"
	"ridepay/internal/payment/stepup"
	"ridepay/internal/payment/vault"
)

// Handler handles payment session HTTP requests
type Handler struct {
	sessions *session.Manager
	vault    vault.Vault
	logger   *slog.Logger
}

// NewHandler creates a new payment handler
func NewHandler(sessions *session.Manager, v vault.Vault, logger *slog.Logger) *Handler {
	return &Handler{sessions: sessions, vault: v, logger: logger}
}

// Routes returns the payment routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Route("/bookings/{bookingID}/payment", func(r chi.Router) {
		r.Post("/", h.Submit)
		r.Get("/", h.GetSession)
		r.Delete("/", h.Release)
		r.Get("/step-up", h.StepUpDocument)
		r.Post("/navigation", h.Navigate)
		r.Post("/cancel", h.Cancel)
	})

	r.Get("/cards", h.ListCards)

	return r
}

// SubmitRequest is the API request for paying a booking
type SubmitRequest struct {
	Amount        money.Money          `json:"amount"`
	NewCard       *payment.NewCard     `json:"new_card,omitempty"`
	VaultedCard   *payment.VaultedCard `json:"vaulted_card,omitempty"`
	CustomerEmail string               `json:"customer_email"`
}

// NavigationRequest reports a URL the step-up web view navigated to
type NavigationRequest struct {
	URL string `json:"url" validate:"max=4096"`
}

// NavigationResponse is the classification plus the resulting session view
type NavigationResponse struct {
	Classification stepup.Classification `json:"classification"`
	Session        session.Snapshot      `json:"session"`
}

func owner(r *http.Request, email string) string {
	if rider := middleware.GetRiderID(r.Context()); rider != "" {
		return rider
	}
	return email
}

// Submit handles POST /bookings/{bookingID}/payment
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	bookingID := chi.URLParam(r, "bookingID")

	var body SubmitRequest
	if err := api.Decode(r, &body); err != nil {
		api.BadRequest(w, "invalid request body")
		return
	}

	req := payment.Request{
		BookingID:     bookingID,
		Amount:        body.Amount,
		NewCard:       body.NewCard,
		VaultedCard:   body.VaultedCard,
		CustomerEmail: body.CustomerEmail,
	}
	cardOwner := owner(r, body.CustomerEmail)

	if req.VaultedCard != nil && req.VaultedCard.CardID != "" {
		card, err := vault.Find(r.Context(), h.vault, cardOwner, req.VaultedCard.CardID)
		if err != nil {
			if errors.Is(err, vault.ErrNotFound) {
				api.WriteErrorWithDetails(w, http.StatusUnprocessableEntity, api.ErrCodeValidation, "Validation failed",
					map[string]string{"vaulted_card.card_id": "Saved card not found"})
				return
			}
			h.logger.Error("loading saved card", "error", err, "booking_id", bookingID)
			api.InternalError(w, "failed to load saved card")
			return
		}
		req.VaultedCard.RegistrationID = card.RegistrationID
	}

	s := h.sessions.Begin(bookingID, cardOwner)
	if err := s.Submit(r.Context(), req); err != nil {
		api.Conflict(w, err.Error())
		return
	}

	api.WriteData(w, http.StatusCreated, s.Snapshot())
}

// session looks up the booking's session, hiding sessions owned by another rider.
func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	s, err := h.sessions.Get(chi.URLParam(r, "bookingID"))
	if err != nil {
		api.NotFound(w, "payment session not found")
		return nil, false
	}
	if rider := middleware.GetRiderID(r.Context()); rider != "" && s.Owner() != rider {
		api.NotFound(w, "payment session not found")
		return nil, false
	}
	return s, true
}

// GetSession handles GET /bookings/{bookingID}/payment
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	api.WriteData(w, http.StatusOK, s.Snapshot())
}

// StepUpDocument handles GET /bookings/{bookingID}/payment/step-up
func (h *Handler) StepUpDocument(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	doc, ok := s.StepUpDocument()
	if !ok {
		api.Conflict(w, "no card verification in progress")
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	templ.Handler(doc).ServeHTTP(w, r)
}

// Navigate handles POST /bookings/{bookingID}/payment/navigation
func (h *Handler) Navigate(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	var req NavigationRequest
	if err := api.DecodeAndValidate(r, &req); err != nil {
		api.ValidationError(w, err)
		return
	}

	cls := s.Navigate(req.URL)
	api.WriteData(w, http.StatusOK, NavigationResponse{
		Classification: cls,
		Session:        s.Snapshot(),
	})
}

// Cancel handles POST /bookings/{bookingID}/payment/cancel
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if !s.Cancel() {
		api.Conflict(w, "payment session already finished")
		return
	}
	api.WriteData(w, http.StatusOK, s.Snapshot())
}

// Release handles DELETE /bookings/{bookingID}/payment
func (h *Handler) Release(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.session(w, r); !ok {
		return
	}
	snap, err := h.sessions.Release(chi.URLParam(r, "bookingID"))
	if err != nil {
		api.NotFound(w, "payment session not found")
		return
	}
	api.WriteData(w, http.StatusOK, snap)
}

// ListCards handles GET /cards
func (h *Handler) ListCards(w http.ResponseWriter, r *http.Request) {
	cardOwner := owner(r, r.URL.Query().Get("customer_email"))
	if cardOwner == "" {
		api.BadRequest(w, "customer_email required")
		return
	}
	cards, err := h.vault.Cards(r.Context(), cardOwner)
	if err != nil {
		h.logger.Error("listing saved cards", "error", err)
		api.InternalError(w, "failed to list saved cards")
		return
	}
	if cards == nil {
		cards = []payment.SavedCard{}
	}
	api.WriteData(w, http.StatusOK, cards)
}
