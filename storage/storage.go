// Package storage holds the console's client-side key/value storage: a
// durable store that survives restarts and a session-scoped store that
// lives as long as the process.
package storage

import (
	"context"
	"errors"
)

// Durable keys.
const (
	KeyUser         = "user"
	KeyAccessToken  = "accessToken"
	KeyRestaurantID = "restaurantId"
	KeyBranchID     = "branchId"
)

// Session-scoped keys. They hold navigation context only.
const (
	KeySelectedRestaurant  = "selected_restaurant"
	KeyOwnerSelectedBranch = "owner_selected_branch_id"
)

var ErrNotFound = errors.New("storage: key not found")

type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, keys ...string) error
}
