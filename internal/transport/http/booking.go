package http

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/cimillas/seat-inventory/internal/app"
	"github.com/cimillas/seat-inventory/internal/domain"
)

// SeatBooker is the minimal interface needed by the booking endpoints.
type SeatBooker interface {
	BookSeats(ctx context.Context, in app.BookSeatsInput) (app.BookingResult, error)
	ReleaseSeats(ctx context.Context, in app.ReleaseSeatsInput) (app.BookingResult, error)
}

type seatsRequest struct {
	Seats *int `json:"seats"`
}

type bookResponse struct {
	Success     bool   `json:"success"`
	EventID     string `json:"eventId"`
	SeatsBooked int    `json:"seatsBooked"`
}

type releaseResponse struct {
	EventID       string `json:"eventId"`
	SeatsReleased int    `json:"seatsReleased"`
}

func handleBook(svc SeatBooker, w http.ResponseWriter, r *http.Request, eventID string) {
	seats, ok := readSeats(w, r)
	if !ok {
		return
	}
	res, err := svc.BookSeats(r.Context(), app.BookSeatsInput{EventID: eventID, Seats: seats})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bookResponse{
		Success:     true,
		EventID:     res.EventID,
		SeatsBooked: res.Seats,
	})
}

func handleRelease(svc SeatBooker, w http.ResponseWriter, r *http.Request, eventID string) {
	seats, ok := readSeats(w, r)
	if !ok {
		return
	}
	res, err := svc.ReleaseSeats(r.Context(), app.ReleaseSeatsInput{EventID: eventID, Seats: seats})
	if err != nil {
		// Release answers 200 or 400 only; an unknown event is a bad request here.
		if errors.Is(err, domain.ErrEventNotFound) || errors.Is(err, domain.ErrInvalidID) {
			writeError(w, http.StatusBadRequest, codeReleaseUnknownEvent, "event might not exist")
			return
		}
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, releaseResponse{
		EventID:       res.EventID,
		SeatsReleased: res.Seats,
	})
}

func readSeats(w http.ResponseWriter, r *http.Request) (int, bool) {
	var req seatsRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
		return 0, false
	}
	if req.Seats == nil {
		writeError(w, http.StatusBadRequest, codeMissingRequiredField, "seats is required")
		return 0, false
	}
	return *req.Seats, true
}

// parseEventPath splits /events/{id}[/action]. Both "available" and empty ids
// are handled by the caller.
func parseEventPath(path string) (eventID, action string, ok bool) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) < 2 || len(parts) > 3 || parts[0] != "events" || parts[1] == "" {
		return "", "", false
	}
	if len(parts) == 3 {
		if parts[2] != "book" && parts[2] != "release" {
			return "", "", false
		}
		return parts[1], parts[2], true
	}
	return parts[1], "", true
}
