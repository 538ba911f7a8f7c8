package models

import (
	"encoding/json"
	"errors"
	"fmt"
)

// AccountKind tags which shape of account the session holds.
type AccountKind string

const (
	// AccountKindGeneral is an owner or any account not scoped to a branch.
	AccountKindGeneral AccountKind = "general"
	// AccountKindStaff is a branch-scoped staff account (manager, waiter, receptionist).
	AccountKindStaff AccountKind = "staff"
)

var ErrInvalidAccount = errors.New("invalid account record")

// Account is the authenticated principal. Kind is decided once by
// DecodeAccount and is never re-inferred from the other fields.
type Account struct {
	Kind         AccountKind `json:"kind"`
	ID           string      `json:"id"`
	Name         string      `json:"name"`
	Email        string      `json:"email"`
	Role         string      `json:"role"`
	RestaurantID string      `json:"restaurantId,omitempty"`
	BranchID     string      `json:"branchId,omitempty"`
}

func (a Account) IsStaff() bool {
	return a.Kind == AccountKindStaff
}

// DecodeAccount decodes an account record coming from the backend or from
// durable storage. A record that already carries a kind keeps it; a record
// from the wire is staff exactly when it has a branchId.
func DecodeAccount(raw []byte) (Account, error) {
	var acc Account
	if err := json.Unmarshal(raw, &acc); err != nil {
		return Account{}, fmt.Errorf("%w: %v", ErrInvalidAccount, err)
	}
	if acc.ID == "" {
		return Account{}, fmt.Errorf("%w: missing id", ErrInvalidAccount)
	}

	switch acc.Kind {
	case "":
		if acc.BranchID != "" {
			acc.Kind = AccountKindStaff
		} else {
			acc.Kind = AccountKindGeneral
		}
	case AccountKindGeneral:
	case AccountKindStaff:
		if acc.BranchID == "" {
			return Account{}, fmt.Errorf("%w: staff account without branch", ErrInvalidAccount)
		}
	default:
		return Account{}, fmt.Errorf("%w: unknown kind %q", ErrInvalidAccount, acc.Kind)
	}
	return acc, nil
}
