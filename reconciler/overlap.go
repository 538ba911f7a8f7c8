package reconciler

import (
	"errors"
	"fmt"
	"time"

	"github.com/yeremiapane/restaurant-floor/models"
)

const DefaultReservationWindow = 2 * time.Hour

var ErrReservationOverlap = errors.New("reservation overlaps a confirmed reservation on this table")

// CheckOverlap is a best-effort guard run before assigning candidate to
// tableID. Only confirmed reservations of the same table count. The
// backend remains the authority.
func CheckOverlap(existing []models.Reservation, candidate models.Reservation, tableID string, window time.Duration) error {
	if window <= 0 {
		window = DefaultReservationWindow
	}
	start, end := candidate.Window(window)
	for _, r := range existing {
		if r.ID == candidate.ID || r.Status != models.ReservationConfirmed {
			continue
		}
		if r.TableID == nil || *r.TableID != tableID {
			continue
		}
		otherStart, otherEnd := r.Window(window)
		if start.Before(otherEnd) && otherStart.Before(end) {
			return fmt.Errorf("%w (%s at %s)", ErrReservationOverlap, r.GuestName, r.StartTime.Format("15:04"))
		}
	}
	return nil
}
