package models

import (
	"errors"
	"fmt"
	"time"
)

type ReservationStatus string

const (
	ReservationPending   ReservationStatus = "PENDING"
	ReservationApproved  ReservationStatus = "APPROVED"
	ReservationConfirmed ReservationStatus = "CONFIRMED"
	ReservationCancelled ReservationStatus = "CANCELLED"
)

var ErrIllegalTransition = errors.New("illegal reservation status transition")

// Transition returns the status reached by moving from s to next, or
// ErrIllegalTransition. CANCELLED is terminal.
func (s ReservationStatus) Transition(next ReservationStatus) (ReservationStatus, error) {
	switch s {
	case ReservationPending:
		switch next {
		case ReservationApproved, ReservationConfirmed, ReservationCancelled:
			return next, nil
		}
	case ReservationApproved:
		switch next {
		case ReservationConfirmed, ReservationCancelled:
			return next, nil
		}
	case ReservationConfirmed:
		if next == ReservationCancelled {
			return next, nil
		}
	case ReservationCancelled:
	default:
		return s, fmt.Errorf("%w: unknown status %q", ErrIllegalTransition, s)
	}
	return s, fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, s, next)
}

func (s ReservationStatus) Valid() bool {
	switch s {
	case ReservationPending, ReservationApproved, ReservationConfirmed, ReservationCancelled:
		return true
	}
	return false
}

func (s ReservationStatus) Terminal() bool {
	return s == ReservationCancelled
}

type Reservation struct {
	ID         string            `json:"id"`
	BranchID   string            `json:"branchId"`
	TableID    *string           `json:"tableId"`
	GuestName  string            `json:"guestName"`
	GuestPhone string            `json:"guestPhone,omitempty"`
	GuestEmail string            `json:"guestEmail,omitempty"`
	GuestCount int               `json:"guestCount"`
	StartTime  time.Time         `json:"startTime"`
	Status     ReservationStatus `json:"status"`
	Note       string            `json:"note,omitempty"`
}

// Window returns the time span the reservation occupies its table.
func (r Reservation) Window(length time.Duration) (time.Time, time.Time) {
	return r.StartTime, r.StartTime.Add(length)
}
