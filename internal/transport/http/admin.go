package http

import (
	"context"
	"net/http"
)

// Reconciler is the minimal interface needed to drive the consistency sweep.
type Reconciler interface {
	Reconcile(ctx context.Context) (int, error)
	Pending() int
}

type reconcileResponse struct {
	Reconciled int `json:"reconciled"`
	Pending    int `json:"pending"`
}

// HandleAdminReconcile serves GET (backlog size) and POST (run one sweep now)
// on /admin/reconcile.
func HandleAdminReconcile(svc Reconciler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, http.StatusOK, reconcileResponse{Pending: svc.Pending()})
		case http.MethodPost:
			n, err := svc.Reconcile(r.Context())
			if err != nil {
				writeError(w, http.StatusServiceUnavailable, codeInternalError, "reconciliation failed")
				return
			}
			writeJSON(w, http.StatusOK, reconcileResponse{Reconciled: n, Pending: svc.Pending()})
		default:
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
		}
	}
}
