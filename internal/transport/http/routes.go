package http

import (
	"net/http"

	"go.uber.org/zap"
)

// Services bundles what the router dispatches to.
type Services struct {
	Events       EventRegistry
	Booking      SeatBooker
	Analytics    AnalyticsAPI
	Reconciler   Reconciler
	HealthChecks map[string]HealthCheck
	Logger       *zap.Logger
}

// NewMux registers every route on a fresh ServeMux.
func NewMux(svc Services) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/health", HandleHealth(svc.HealthChecks, svc.Logger))
	mux.Handle("/events", HandleEvents(svc.Events))
	mux.Handle("/events/", HandleEventRoutes(svc.Events, svc.Booking))
	mux.Handle("/analytics/events", HandleAnalyticsUpsert(svc.Analytics))
	mux.Handle("/analytics/events/", HandleAnalyticsEvent(svc.Analytics))
	mux.Handle("/analytics/search", HandleAnalyticsSearch(svc.Analytics))
	mux.Handle("/analytics/high-occupancy", HandleHighOccupancy(svc.Analytics))
	if svc.Reconciler != nil {
		mux.Handle("/admin/reconcile", HandleAdminReconcile(svc.Reconciler))
	}
	mux.Handle("/", NotFoundHandler())
	return mux
}

// NotFoundHandler answers every unmatched path with a JSON 404.
func NotFoundHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, codeNotFound, "no route for "+r.URL.Path)
	})
}
