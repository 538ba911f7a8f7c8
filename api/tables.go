package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/yeremiapane/restaurant-floor/apiclient"
	"github.com/yeremiapane/restaurant-floor/models"
)

type Tables struct {
	client *apiclient.Client
}

func NewTables(client *apiclient.Client) *Tables {
	return &Tables{client: client}
}

func (t *Tables) ListTables(ctx context.Context, branchID string, page, limit int) (models.TablePage, error) {
	query := url.Values{}
	query.Set("page", strconv.Itoa(page))
	query.Set("limit", strconv.Itoa(limit))

	var out models.TablePage
	path := apiclient.QueryPath("/branches/"+url.PathEscape(branchID)+"/tables", query)
	if err := t.client.Do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return models.TablePage{}, err
	}
	return out, nil
}

func (t *Tables) GetTable(ctx context.Context, tableID string) (models.Table, error) {
	var out models.Table
	err := t.client.Do(ctx, http.MethodGet, "/tables/"+url.PathEscape(tableID), nil, &out)
	return out, err
}

func (t *Tables) UpdateTable(ctx context.Context, tableID string, capacity int) (models.Table, error) {
	var out models.Table
	body := map[string]int{"capacity": capacity}
	err := t.client.Do(ctx, http.MethodPatch, "/tables/"+url.PathEscape(tableID), body, &out)
	return out, err
}

func (t *Tables) UpdateTableStatus(ctx context.Context, tableID string, status models.TableStatus) (models.Table, error) {
	var out models.Table
	body := map[string]models.TableStatus{"status": status}
	err := t.client.Do(ctx, http.MethodPatch, "/tables/"+url.PathEscape(tableID)+"/status", body, &out)
	return out, err
}

// UpdateTableArea moves a table; a nil areaID unassigns it.
func (t *Tables) UpdateTableArea(ctx context.Context, tableID string, areaID *string) (models.Table, error) {
	var out models.Table
	body := map[string]*string{"areaId": areaID}
	err := t.client.Do(ctx, http.MethodPatch, "/tables/"+url.PathEscape(tableID)+"/area", body, &out)
	return out, err
}

func (t *Tables) ListAreas(ctx context.Context, branchID string) ([]models.Area, error) {
	var out []models.Area
	err := t.client.Do(ctx, http.MethodGet, "/branches/"+url.PathEscape(branchID)+"/areas", nil, &out)
	return out, err
}

func (t *Tables) DeleteArea(ctx context.Context, areaID string) error {
	return t.client.Do(ctx, http.MethodDelete, "/areas/"+url.PathEscape(areaID), nil, nil)
}
