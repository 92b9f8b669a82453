package domain

import "errors"

var (
	ErrInvalidSeats         = errors.New("invalid number of seats")
	ErrMissingField         = errors.New("missing required field")
	ErrInvalidCapacity      = errors.New("total capacity must be at least 1")
	ErrInvalidPrice         = errors.New("ticket price cannot be negative")
	ErrInsufficientCapacity = errors.New("not enough seats available")
	ErrConcurrentUpdate     = errors.New("concurrent update, retry later")
	ErrVersionConflict      = errors.New("inventory version changed")
	ErrEventNotFound        = errors.New("event not found")
	ErrEventAlreadyExists   = errors.New("event already exists")
	ErrEventHasBookings     = errors.New("event still has booked seats")
	ErrAnalyticsNotFound    = errors.New("event analytics not found")
	ErrInvalidMetrics       = errors.New("metrics cannot be negative")
	ErrInvalidID            = errors.New("invalid id")
)
