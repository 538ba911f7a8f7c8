package reconciler

import (
	"fmt"
	"strings"

	"github.com/yeremiapane/restaurant-floor/models"
)

// DisplayStatus is the vocabulary the floor display shows.
type DisplayStatus string

const (
	DisplayAvailable    DisplayStatus = "available"
	DisplayOccupied     DisplayStatus = "occupied"
	DisplayOutOfService DisplayStatus = "out_of_service"
)

// NormalizeStatus maps a raw table status to its display value. Unknown
// values show as available.
func NormalizeStatus(raw models.TableStatus) DisplayStatus {
	switch strings.ToUpper(strings.TrimSpace(string(raw))) {
	case "FREE", "AVAILABLE":
		return DisplayAvailable
	case "OCCUPIED", "RESERVED", "SEATED":
		return DisplayOccupied
	case "INACTIVE", "OUT_OF_SERVICE", "DIRTY", "CLEANING":
		return DisplayOutOfService
	}
	return DisplayAvailable
}

// DenormalizeStatus maps a display value back to the raw vocabulary.
func DenormalizeStatus(display DisplayStatus) (models.TableStatus, bool) {
	switch display {
	case DisplayAvailable:
		return models.TableStatusFree, true
	case DisplayOccupied:
		return models.TableStatusOccupied, true
	case DisplayOutOfService:
		return models.TableStatusInactive, true
	}
	return "", false
}

// ParseStatus accepts either a raw status or a display value.
func ParseStatus(s string) (models.TableStatus, error) {
	switch raw := models.TableStatus(strings.ToUpper(strings.TrimSpace(s))); raw {
	case models.TableStatusFree, models.TableStatusOccupied, models.TableStatusInactive:
		return raw, nil
	}
	if raw, ok := DenormalizeStatus(DisplayStatus(strings.ToLower(strings.TrimSpace(s)))); ok {
		return raw, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStatus, s)
}
