package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/yeremiapane/restaurant-floor/apiclient"
	"github.com/yeremiapane/restaurant-floor/models"
)

type Reservations struct {
	client *apiclient.Client
}

func NewReservations(client *apiclient.Client) *Reservations {
	return &Reservations{client: client}
}

func (r *Reservations) ListTableReservations(ctx context.Context, tableID string) ([]models.Reservation, error) {
	var out []models.Reservation
	err := r.client.Do(ctx, http.MethodGet, "/tables/"+url.PathEscape(tableID)+"/reservations", nil, &out)
	return out, err
}

// ListBranchReservations lists a branch's reservations, optionally
// filtered by status.
func (r *Reservations) ListBranchReservations(ctx context.Context, branchID string, status models.ReservationStatus) ([]models.Reservation, error) {
	query := url.Values{}
	if status != "" {
		query.Set("status", string(status))
	}
	var out []models.Reservation
	path := apiclient.QueryPath("/branches/"+url.PathEscape(branchID)+"/reservations", query)
	err := r.client.Do(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

func (r *Reservations) AssignTable(ctx context.Context, reservationID, tableID string) (models.Reservation, error) {
	var out models.Reservation
	body := map[string]string{"tableId": tableID}
	err := r.client.Do(ctx, http.MethodPatch, "/reservations/"+url.PathEscape(reservationID)+"/assign-table", body, &out)
	return out, err
}

func (r *Reservations) UpdateReservationStatus(ctx context.Context, reservationID string, status models.ReservationStatus) (models.Reservation, error) {
	var out models.Reservation
	body := map[string]models.ReservationStatus{"status": status}
	err := r.client.Do(ctx, http.MethodPatch, "/reservations/"+url.PathEscape(reservationID)+"/status", body, &out)
	return out, err
}

func (r *Reservations) CreateReservation(ctx context.Context, res models.Reservation) (models.Reservation, error) {
	var out models.Reservation
	err := r.client.Do(ctx, http.MethodPost, "/branches/"+url.PathEscape(res.BranchID)+"/reservations", res, &out)
	return out, err
}
