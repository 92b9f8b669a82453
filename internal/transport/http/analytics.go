package http

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cimillas/seat-inventory/internal/domain"
)

const defaultMinOccupancyRate = 80.0

// AnalyticsAPI is the minimal interface needed for analytics endpoints.
type AnalyticsAPI interface {
	Upsert(ctx context.Context, meta domain.EventMetadata) (domain.AnalyticsRecord, error)
	ApplyMetrics(ctx context.Context, eventID string, m domain.Metrics) (domain.AnalyticsRecord, error)
	Get(ctx context.Context, eventID string) (domain.AnalyticsRecord, error)
	List(ctx context.Context) ([]domain.AnalyticsRecord, error)
	SearchByName(ctx context.Context, name string) ([]domain.AnalyticsRecord, error)
	SearchByLocation(ctx context.Context, location string) ([]domain.AnalyticsRecord, error)
	ByCategory(ctx context.Context, category string) ([]domain.AnalyticsRecord, error)
	HighOccupancy(ctx context.Context, minRate float64) ([]domain.AnalyticsRecord, error)
	Between(ctx context.Context, start, end time.Time) ([]domain.AnalyticsRecord, error)
}

// HandleAnalyticsUpsert serves POST /analytics/events.
func HandleAnalyticsUpsert(svc AnalyticsAPI) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		var req upsertAnalyticsRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}
		var eventDate time.Time
		if req.EventDate != "" {
			parsed, err := time.Parse(time.RFC3339, req.EventDate)
			if err != nil {
				writeError(w, http.StatusBadRequest, codeInvalidStartsAt, "invalid eventDate format")
				return
			}
			eventDate = parsed.UTC()
		}

		rec, err := svc.Upsert(r.Context(), domain.EventMetadata{
			EventID:   req.EventID,
			Name:      req.EventName,
			Capacity:  req.TotalCapacity,
			EventDate: eventDate,
			Location:  req.Location,
			Category:  req.Category,
		})
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAnalyticsResponse(rec))
	}
}

// HandleAnalyticsEvent serves GET /analytics/events/{id} and
// POST /analytics/events/{id}/update.
func HandleAnalyticsEvent(svc AnalyticsAPI) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		eventID, update, ok := parseAnalyticsEventPath(r.URL.Path)
		if !ok {
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
			return
		}

		if !update {
			if r.Method != http.MethodGet {
				writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
				return
			}
			rec, err := svc.Get(r.Context(), eventID)
			if err != nil {
				writeDomainError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, toAnalyticsResponse(rec))
			return
		}

		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}
		var req applyMetricsRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}
		rec, err := svc.ApplyMetrics(r.Context(), eventID, domain.Metrics{
			BookedSeats:  req.BookedSeats,
			Revenue:      req.Revenue,
			Reservations: req.Reservations,
		})
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAnalyticsResponse(rec))
	}
}

// HandleAnalyticsSearch serves GET /analytics/search. The first filter
// present wins, in the order name, location, category, from/to; with no
// filter every record is returned.
func HandleAnalyticsSearch(svc AnalyticsAPI) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		q := r.URL.Query()
		var (
			records []domain.AnalyticsRecord
			err     error
		)
		switch {
		case q.Has("name"):
			records, err = svc.SearchByName(r.Context(), q.Get("name"))
		case q.Has("location"):
			records, err = svc.SearchByLocation(r.Context(), q.Get("location"))
		case q.Has("category"):
			records, err = svc.ByCategory(r.Context(), q.Get("category"))
		case q.Get("from") != "" || q.Get("to") != "":
			from, ferr := time.Parse(time.RFC3339, q.Get("from"))
			to, terr := time.Parse(time.RFC3339, q.Get("to"))
			if ferr != nil || terr != nil {
				writeError(w, http.StatusBadRequest, codeInvalidQuery, "from and to must both be RFC3339 timestamps")
				return
			}
			records, err = svc.Between(r.Context(), from, to)
		default:
			records, err = svc.List(r.Context())
		}
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAnalyticsResponses(records))
	}
}

// HandleHighOccupancy serves GET /analytics/high-occupancy?minRate=.
func HandleHighOccupancy(svc AnalyticsAPI) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		minRate := defaultMinOccupancyRate
		if raw := r.URL.Query().Get("minRate"); raw != "" {
			parsed, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				writeError(w, http.StatusBadRequest, codeInvalidQuery, "minRate must be a number")
				return
			}
			minRate = parsed
		}

		records, err := svc.HighOccupancy(r.Context(), minRate)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAnalyticsResponses(records))
	}
}

type upsertAnalyticsRequest struct {
	EventID       string `json:"eventId"`
	EventName     string `json:"eventName"`
	TotalCapacity int    `json:"totalCapacity"`
	EventDate     string `json:"eventDate,omitempty"`
	Location      string `json:"location,omitempty"`
	Category      string `json:"category,omitempty"`
}

type applyMetricsRequest struct {
	BookedSeats  int             `json:"bookedSeats"`
	Revenue      decimal.Decimal `json:"revenue"`
	Reservations int             `json:"reservations"`
}

type analyticsResponse struct {
	EventID           string          `json:"eventId"`
	EventName         string          `json:"eventName"`
	Category          string          `json:"category"`
	Location          string          `json:"location"`
	EventDate         time.Time       `json:"eventDate"`
	TotalCapacity     int             `json:"totalCapacity"`
	BookedSeats       int             `json:"bookedSeats"`
	OccupancyRate     float64         `json:"occupancyRate"`
	TotalRevenue      decimal.Decimal `json:"totalRevenue"`
	TotalReservations int             `json:"totalReservations"`
	LastUpdated       time.Time       `json:"lastUpdated"`
}

func toAnalyticsResponse(rec domain.AnalyticsRecord) analyticsResponse {
	return analyticsResponse{
		EventID:           rec.EventID,
		EventName:         rec.EventName,
		Category:          rec.Category,
		Location:          rec.Location,
		EventDate:         rec.EventDate,
		TotalCapacity:     rec.TotalCapacity,
		BookedSeats:       rec.BookedSeats,
		OccupancyRate:     rec.OccupancyRate,
		TotalRevenue:      rec.TotalRevenue,
		TotalReservations: rec.TotalReservations,
		LastUpdated:       rec.LastUpdated,
	}
}

func toAnalyticsResponses(records []domain.AnalyticsRecord) []analyticsResponse {
	resp := make([]analyticsResponse, 0, len(records))
	for _, rec := range records {
		resp = append(resp, toAnalyticsResponse(rec))
	}
	return resp
}

func parseAnalyticsEventPath(path string) (eventID string, update bool, ok bool) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) < 3 || len(parts) > 4 {
		return "", false, false
	}
	if parts[0] != "analytics" || parts[1] != "events" || parts[2] == "" {
		return "", false, false
	}
	if len(parts) == 4 {
		if parts[3] != "update" {
			return "", false, false
		}
		return parts[2], true, true
	}
	return parts[2], false, true
}
