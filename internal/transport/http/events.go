package http

import (
	"context"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cimillas/seat-inventory/internal/app"
	"github.com/cimillas/seat-inventory/internal/domain"
)

// EventRegistry is the minimal interface needed for event endpoints.
type EventRegistry interface {
	RegisterEvent(ctx context.Context, in app.RegisterEventInput) (domain.EventWithInventory, error)
	GetEvent(ctx context.Context, eventID string) (domain.EventWithInventory, error)
	ListEvents(ctx context.Context) ([]domain.EventWithInventory, error)
	ListAvailableEvents(ctx context.Context) ([]domain.EventWithInventory, error)
	UpdateEvent(ctx context.Context, eventID string, in app.UpdateEventInput) (domain.EventWithInventory, error)
	DeleteEvent(ctx context.Context, eventID string) error
}

// HandleEvents serves GET and POST on /events.
func HandleEvents(svc EventRegistry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			events, err := svc.ListEvents(r.Context())
			if err != nil {
				writeDomainError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, toEventResponses(events))
		case http.MethodPost:
			var req registerEventRequest
			if err := decodeBody(r, &req); err != nil {
				writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
				return
			}

			startsAt, ok := parseStartsAt(w, req.StartsAt)
			if !ok {
				return
			}

			event, err := svc.RegisterEvent(r.Context(), app.RegisterEventInput{
				Name:          req.Name,
				Description:   req.Description,
				Location:      req.Location,
				Category:      req.Category,
				StartsAt:      startsAt,
				TotalCapacity: req.TotalCapacity,
				TicketPrice:   req.TicketPrice,
			})
			if err != nil {
				writeDomainError(w, err)
				return
			}
			writeJSON(w, http.StatusCreated, toEventResponse(event))
		default:
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
		}
	}
}

// HandleEventRoutes serves everything under /events/: the available listing,
// single-event lookup, update and delete, and the book/release actions.
func HandleEventRoutes(events EventRegistry, booker SeatBooker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		eventID, action, ok := parseEventPath(r.URL.Path)
		if !ok {
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
			return
		}

		if action != "" {
			if r.Method != http.MethodPost {
				writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
				return
			}
			if action == "book" {
				handleBook(booker, w, r, eventID)
			} else {
				handleRelease(booker, w, r, eventID)
			}
			return
		}

		switch r.Method {
		case http.MethodGet:
			handleGetEvent(events, w, r, eventID)
		case http.MethodPut:
			handleUpdateEvent(events, w, r, eventID)
		case http.MethodDelete:
			if err := events.DeleteEvent(r.Context(), eventID); err != nil {
				writeDomainError(w, err)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		default:
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
		}
	}
}

func handleGetEvent(svc EventRegistry, w http.ResponseWriter, r *http.Request, eventID string) {
	if eventID == "available" {
		list, err := svc.ListAvailableEvents(r.Context())
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toEventResponses(list))
		return
	}

	event, err := svc.GetEvent(r.Context(), eventID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEventResponse(event))
}

func handleUpdateEvent(svc EventRegistry, w http.ResponseWriter, r *http.Request, eventID string) {
	var req updateEventRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
		return
	}
	startsAt, ok := parseStartsAt(w, req.StartsAt)
	if !ok {
		return
	}

	event, err := svc.UpdateEvent(r.Context(), eventID, app.UpdateEventInput{
		Name:        req.Name,
		Description: req.Description,
		Location:    req.Location,
		Category:    req.Category,
		StartsAt:    startsAt,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEventResponse(event))
}

// parseStartsAt returns nil for an empty value and leaves the missing-field
// decision to the service.
func parseStartsAt(w http.ResponseWriter, raw string) (*time.Time, bool) {
	if raw == "" {
		return nil, true
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidStartsAt, "invalid startsAt format")
		return nil, false
	}
	return &parsed, true
}

// updateEventRequest has no capacity or price; sending either is rejected as
// an unknown field.
type updateEventRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Location    string `json:"location"`
	Category    string `json:"category,omitempty"`
	StartsAt    string `json:"startsAt"`
}

type registerEventRequest struct {
	Name          string          `json:"name"`
	Description   string          `json:"description,omitempty"`
	Location      string          `json:"location"`
	Category      string          `json:"category,omitempty"`
	StartsAt      string          `json:"startsAt"`
	TotalCapacity int             `json:"totalCapacity"`
	TicketPrice   decimal.Decimal `json:"ticketPrice"`
}

type eventResponse struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Description    string          `json:"description,omitempty"`
	Location       string          `json:"location"`
	Category       string          `json:"category,omitempty"`
	StartsAt       time.Time       `json:"startsAt"`
	TotalCapacity  int             `json:"totalCapacity"`
	BookedSeats    int             `json:"bookedSeats"`
	AvailableSeats int             `json:"availableSeats"`
	TicketPrice    decimal.Decimal `json:"ticketPrice"`
	Version        int64           `json:"version"`
}

func toEventResponse(e domain.EventWithInventory) eventResponse {
	return eventResponse{
		ID:             e.ID,
		Name:           e.Name,
		Description:    e.Description,
		Location:       e.Location,
		Category:       e.Category,
		StartsAt:       e.StartsAt,
		TotalCapacity:  e.Inventory.TotalCapacity,
		BookedSeats:    e.Inventory.BookedSeats,
		AvailableSeats: max(0, e.Inventory.AvailableSeats()),
		TicketPrice:    e.TicketPrice,
		Version:        e.Inventory.Version,
	}
}

func toEventResponses(events []domain.EventWithInventory) []eventResponse {
	resp := make([]eventResponse, 0, len(events))
	for _, e := range events {
		resp = append(resp, toEventResponse(e))
	}
	return resp
}
