package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/mridulmalani2/wandernest/internal/http/response"
	"github.com/mridulmalani2/wandernest/internal/matching"
	"github.com/mridulmalani2/wandernest/pkg/logger"
)

type MatchingHandler struct {
	dispatcher *matching.Dispatcher
	resolver   *matching.Resolver
	validate   *validator.Validate
}

func NewMatchingHandler(dispatcher *matching.Dispatcher, resolver *matching.Resolver) *MatchingHandler {
	return &MatchingHandler{
		dispatcher: dispatcher,
		resolver:   resolver,
		validate:   validator.New(),
	}
}

func (h *MatchingHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/bookings/{id}/match", h.Dispatch)
	r.Get("/respond", h.Respond)
	return r
}

type dispatchRequest struct {
	// Limit optionally overrides the configured invitation cap for one round.
	Limit int `json:"limit" validate:"omitempty,min=1,max=10"`
}

func (h *MatchingHandler) Dispatch(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(w, "invalid booking id")
		return
	}

	var in dispatchRequest
	if r.Body != nil && r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			response.BadRequest(w, "invalid json")
			return
		}
		if err := h.validate.Struct(&in); err != nil {
			response.BadRequest(w, err.Error())
			return
		}
	}

	result, err := h.dispatcher.Dispatch(r.Context(), id, in.Limit)
	if err != nil {
		switch {
		case errors.Is(err, matching.ErrBookingNotFound):
			response.NotFound(w, "booking not found")
		case errors.Is(err, matching.ErrBookingNotOpen):
			response.Conflict(w, "booking is not open for matching")
		default:
			logger.ErrorContext(r.Context(), "Dispatch failed", "error", err, "booking_id", id)
			response.InternalError(w, "failed to dispatch invitations")
		}
		return
	}

	response.WriteJSON(w, http.StatusOK, result)
}

type respondResponse struct {
	Outcome string          `json:"outcome"`
	Message string          `json:"message"`
	Contact *contactDetails `json:"contact,omitempty"`
}

type contactDetails struct {
	TravelerName  string `json:"traveler_name"`
	TravelerEmail string `json:"traveler_email"`
	TravelerPhone string `json:"traveler_phone"`
}

func (h *MatchingHandler) Respond(w http.ResponseWriter, r *http.Request) {
	tok := r.URL.Query().Get("token")
	if tok == "" {
		response.BadRequest(w, "token is required")
		return
	}

	res, err := h.resolver.Resolve(r.Context(), tok)
	if err != nil {
		logger.ErrorContext(r.Context(), "Resolve failed", "error", err)
		response.InternalError(w, "failed to process response, please try the link again")
		return
	}

	out := respondResponse{Outcome: string(res.Outcome), Message: res.Message}
	if res.Outcome == matching.OutcomeAccepted && res.Booking != nil {
		out.Contact = &contactDetails{
			TravelerName:  res.Booking.TravelerName,
			TravelerEmail: res.Booking.TravelerEmail,
			TravelerPhone: res.Booking.TravelerPhone,
		}
	}

	response.WriteJSON(w, statusFor(res.Outcome), out)
}

// statusFor maps resolution outcomes to HTTP statuses. Race losers get 200:
// already_* is a correct result of a fair race, not a client or server error.
func statusFor(o matching.Outcome) int {
	switch o {
	case matching.OutcomeAccepted, matching.OutcomeDeclined,
		matching.OutcomeAlreadyMatched, matching.OutcomeAlreadyProcessed:
		return http.StatusOK
	case matching.OutcomeInvalidToken, matching.OutcomeTokenMismatch:
		return http.StatusUnauthorized
	case matching.OutcomeInvitationNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
