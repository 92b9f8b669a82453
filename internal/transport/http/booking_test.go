package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cimillas/seat-inventory/internal/app"
	"github.com/cimillas/seat-inventory/internal/domain"
)

type stubBooker struct {
	err      error
	lastBook app.BookSeatsInput
	lastRel  app.ReleaseSeatsInput
}

func (s *stubBooker) BookSeats(_ context.Context, in app.BookSeatsInput) (app.BookingResult, error) {
	s.lastBook = in
	if s.err != nil {
		return app.BookingResult{}, s.err
	}
	return app.BookingResult{EventID: in.EventID, Seats: in.Seats, BookedSeats: in.Seats, Version: 1}, nil
}

func (s *stubBooker) ReleaseSeats(_ context.Context, in app.ReleaseSeatsInput) (app.BookingResult, error) {
	s.lastRel = in
	if s.err != nil {
		return app.BookingResult{}, s.err
	}
	return app.BookingResult{EventID: in.EventID, Seats: in.Seats, Version: 2}, nil
}

func TestHandleBook(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		path           string
		method         string
		body           string
		serviceErr     error
		expectedStatus int
		expectedCode   string
	}{
		{
			name:           "success",
			path:           "/events/evt-1/book",
			body:           `{"seats":3}`,
			expectedStatus: http.StatusOK,
		},
		{
			name:           "invalid json",
			path:           "/events/evt-1/book",
			body:           `{"seats":`,
			expectedStatus: http.StatusBadRequest,
			expectedCode:   codeInvalidRequestBody,
		},
		{
			name:           "missing seats",
			path:           "/events/evt-1/book",
			body:           `{}`,
			expectedStatus: http.StatusBadRequest,
			expectedCode:   codeMissingRequiredField,
		},
		{
			name:           "invalid seats",
			path:           "/events/evt-1/book",
			body:           `{"seats":0}`,
			serviceErr:     domain.ErrInvalidSeats,
			expectedStatus: http.StatusBadRequest,
			expectedCode:   codeInvalidSeats,
		},
		{
			name:           "capacity exhausted",
			path:           "/events/evt-1/book",
			body:           `{"seats":2}`,
			serviceErr:     domain.ErrInsufficientCapacity,
			expectedStatus: http.StatusBadRequest,
			expectedCode:   codeInsufficientCapacity,
		},
		{
			name:           "event not found",
			path:           "/events/evt-1/book",
			body:           `{"seats":2}`,
			serviceErr:     domain.ErrEventNotFound,
			expectedStatus: http.StatusNotFound,
			expectedCode:   codeEventNotFound,
		},
		{
			name:           "conflict past retries",
			path:           "/events/evt-1/book",
			body:           `{"seats":2}`,
			serviceErr:     domain.ErrConcurrentUpdate,
			expectedStatus: http.StatusConflict,
			expectedCode:   codeConcurrentUpdate,
		},
		{
			name:           "unexpected error",
			path:           "/events/evt-1/book",
			body:           `{"seats":2}`,
			serviceErr:     errors.New("boom"),
			expectedStatus: http.StatusInternalServerError,
			expectedCode:   codeInternalError,
		},
		{
			name:           "wrong method",
			path:           "/events/evt-1/book",
			method:         http.MethodGet,
			expectedStatus: http.StatusMethodNotAllowed,
			expectedCode:   codeMethodNotAllowed,
		},
		{
			name:           "unknown action",
			path:           "/events/evt-1/cancel",
			body:           `{"seats":2}`,
			expectedStatus: http.StatusNotFound,
			expectedCode:   codeNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			method := tt.method
			if method == "" {
				method = http.MethodPost
			}
			booker := &stubBooker{err: tt.serviceErr}
			handler := HandleEventRoutes(&stubEvents{}, booker)

			req := httptest.NewRequest(method, tt.path, bytes.NewBufferString(tt.body))
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.expectedStatus {
				t.Fatalf("expected status %d, got %d (%s)", tt.expectedStatus, rec.Code, rec.Body.String())
			}
			if tt.expectedCode != "" {
				var resp errorResponse
				if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
					t.Fatalf("decode error: %v", err)
				}
				if resp.Code != tt.expectedCode {
					t.Fatalf("expected code %s, got %s", tt.expectedCode, resp.Code)
				}
				return
			}

			var resp bookResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("decode response: %v", err)
			}
			if !resp.Success || resp.EventID != "evt-1" || resp.SeatsBooked != 3 {
				t.Fatalf("unexpected response: %+v", resp)
			}
			if booker.lastBook.EventID != "evt-1" || booker.lastBook.Seats != 3 {
				t.Fatalf("unexpected service input: %+v", booker.lastBook)
			}
		})
	}
}

func TestHandleRelease(t *testing.T) {
	t.Parallel()

	booker := &stubBooker{}
	handler := HandleEventRoutes(&stubEvents{}, booker)

	req := httptest.NewRequest(http.MethodPost, "/events/evt-9/release", strings.NewReader(`{"seats":10}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `"eventId":"evt-9"`) || !strings.Contains(body, `"seatsReleased":10`) {
		t.Fatalf("unexpected body: %s", body)
	}
	if booker.lastRel.Seats != 10 {
		t.Fatalf("unexpected service input: %+v", booker.lastRel)
	}
}

func TestHandleRelease_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		body           string
		serviceErr     error
		expectedStatus int
		expectedCode   string
	}{
		{
			name:           "unknown event",
			body:           `{"seats":2}`,
			serviceErr:     domain.ErrEventNotFound,
			expectedStatus: http.StatusBadRequest,
			expectedCode:   codeReleaseUnknownEvent,
		},
		{
			name:           "malformed id",
			body:           `{"seats":2}`,
			serviceErr:     domain.ErrInvalidID,
			expectedStatus: http.StatusBadRequest,
			expectedCode:   codeReleaseUnknownEvent,
		},
		{
			name:           "zero seats",
			body:           `{"seats":0}`,
			serviceErr:     domain.ErrInvalidSeats,
			expectedStatus: http.StatusBadRequest,
			expectedCode:   codeInvalidSeats,
		},
		{
			name:           "missing seats",
			body:           `{}`,
			expectedStatus: http.StatusBadRequest,
			expectedCode:   codeMissingRequiredField,
		},
		{
			name:           "store failure",
			body:           `{"seats":2}`,
			serviceErr:     errors.New("boom"),
			expectedStatus: http.StatusInternalServerError,
			expectedCode:   codeInternalError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			handler := HandleEventRoutes(&stubEvents{}, &stubBooker{err: tt.serviceErr})
			req := httptest.NewRequest(http.MethodPost, "/events/does-not-exist/release", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.expectedStatus {
				t.Fatalf("expected status %d, got %d (%s)", tt.expectedStatus, rec.Code, rec.Body.String())
			}
			var resp errorResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("decode error: %v", err)
			}
			if resp.Code != tt.expectedCode {
				t.Fatalf("expected code %s, got %s", tt.expectedCode, resp.Code)
			}
		})
	}
}

func TestParseEventPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path       string
		wantID     string
		wantAction string
		wantOK     bool
	}{
		{path: "/events/abc", wantID: "abc", wantOK: true},
		{path: "/events/abc/", wantID: "abc", wantOK: true},
		{path: "/events/abc/book", wantID: "abc", wantAction: "book", wantOK: true},
		{path: "/events/abc/release", wantID: "abc", wantAction: "release", wantOK: true},
		{path: "/events/", wantOK: false},
		{path: "/events/abc/book/extra", wantOK: false},
		{path: "/holds/abc", wantOK: false},
	}

	for _, tt := range tests {
		id, action, ok := parseEventPath(tt.path)
		if ok != tt.wantOK || id != tt.wantID || action != tt.wantAction {
			t.Fatalf("parseEventPath(%q) = %q, %q, %v", tt.path, id, action, ok)
		}
	}
}
