package controllers_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeremiapane/restaurant-floor/models"
	"github.com/yeremiapane/restaurant-floor/reconciler"
	"github.com/yeremiapane/restaurant-floor/session"
)

func TestFloorRequiresSession(t *testing.T) {
	c := newConsole(t, 5)
	w := c.do(t, http.MethodGet, "/floor", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Not logged in", decode[any](t, w).Message)
}

func TestGetFloorGroupsTables(t *testing.T) {
	c := newConsole(t, 5)
	c.login(t, "host@example.com", nil)

	w := c.do(t, http.MethodGet, "/floor", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	view := decode[reconciler.FloorView](t, w).Data

	require.Len(t, view.Areas, 2)
	assert.Equal(t, "Indoor", view.Areas[0].AreaName)
	patio := view.Areas[1]
	assert.Equal(t, "Patio", patio.AreaName)
	require.Len(t, patio.Tables, 2)
	assert.Equal(t, "Table 2", patio.Tables[0].Tag)
	assert.Equal(t, "Table 10", patio.Tables[1].Tag)
	assert.Equal(t, reconciler.DisplayOccupied, patio.Tables[0].Display)
	assert.Equal(t, 2, view.Counts[reconciler.DisplayAvailable])
}

func TestUpdateTable(t *testing.T) {
	c := newConsole(t, 5)
	c.login(t, "host@example.com", nil)

	w := c.do(t, http.MethodPatch, "/floor/tables/t1", map[string]interface{}{"status": "out_of_service", "capacity": 8})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	tv := decode[reconciler.TableView](t, w).Data
	assert.Equal(t, reconciler.DisplayOutOfService, tv.Display)
	assert.Equal(t, 8, tv.Capacity)

	c.floor.Wait()
	backend, _ := c.srv.Table("t1")
	assert.Equal(t, models.TableStatusInactive, backend.Status)

	w = c.do(t, http.MethodPatch, "/floor/tables/t1", map[string]interface{}{"capacity": 0})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = c.do(t, http.MethodPatch, "/floor/tables/t1", map[string]interface{}{"status": "broken"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = c.do(t, http.MethodPatch, "/floor/tables/t1", map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = c.do(t, http.MethodPatch, "/floor/tables/missing", map[string]interface{}{"capacity": 2})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Table not found", decode[any](t, w).Message)
}

func TestDeleteAreaFlow(t *testing.T) {
	c := newConsole(t, 5)
	c.login(t, "owner@example.com", map[string]string{"branchId": testBranch})

	w := c.do(t, http.MethodGet, "/floor/areas/patio/impact", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), decode[map[string]interface{}](t, w).Data["tables"])

	w = c.do(t, http.MethodDelete, "/floor/areas/patio", nil)
	require.Equal(t, http.StatusConflict, w.Code, w.Body.String())
	assert.Equal(t, float64(2), decode[map[string]interface{}](t, w).Data["tables"])

	w = c.do(t, http.MethodDelete, "/floor/areas/patio?confirm=true", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	c.floor.Wait()

	view := decode[reconciler.FloorView](t, c.do(t, http.MethodGet, "/floor", nil)).Data
	last := view.Areas[len(view.Areas)-1]
	assert.Equal(t, reconciler.UnassignedAreaID, last.AreaID)
	assert.Len(t, last.Tables, 2)
	assert.Equal(t, 3, c.srv.TableCount())
}

func TestDeleteAreaNeedsManagerRole(t *testing.T) {
	c := newConsole(t, 5)
	c.login(t, "host@example.com", nil)

	w := c.do(t, http.MethodDelete, "/floor/areas/patio?confirm=true", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	n, err := c.floor.AreaDeletionImpact(context.Background(), "patio")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestAssignReservation(t *testing.T) {
	c := newConsole(t, 5)
	start := time.Date(2026, 6, 1, 19, 0, 0, 0, time.UTC)
	c.srv.AddReservation(models.Reservation{ID: "held", BranchID: testBranch, TableID: strPtr("t1"), StartTime: start, GuestCount: 2, Status: models.ReservationConfirmed})
	c.srv.AddReservation(models.Reservation{ID: "walkin", BranchID: testBranch, StartTime: start.Add(30 * time.Minute), GuestCount: 2, Status: models.ReservationPending})
	c.login(t, "host@example.com", nil)

	pending := decode[[]models.Reservation](t, c.do(t, http.MethodGet, "/floor/pending", nil)).Data
	require.Len(t, pending, 1)

	w := c.do(t, http.MethodPost, "/floor/reservations/walkin/assign", map[string]string{"tableId": "t1"})
	assert.Equal(t, http.StatusConflict, w.Code, w.Body.String())

	w = c.do(t, http.MethodPost, "/floor/reservations/walkin/assign", map[string]string{"tableId": "t3"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, models.ReservationConfirmed, decode[models.Reservation](t, w).Data.Status)
	c.floor.Wait()

	list := decode[[]models.Reservation](t, c.do(t, http.MethodGet, "/floor/tables/t3/reservations", nil)).Data
	require.Len(t, list, 1)
	assert.Equal(t, "walkin", list[0].ID)
}

func TestExpiredTokenIsRefreshedTransparently(t *testing.T) {
	c := newConsole(t, 5)
	c.login(t, "host@example.com", nil)
	before := c.manager.Token()

	c.srv.ExpireTokens()
	w := c.do(t, http.MethodGet, "/floor?refresh=true", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 1, c.srv.RefreshCalls())
	assert.NotEqual(t, before, c.manager.Token())
	assert.True(t, c.manager.IsAuthenticated())
}

func TestFailedRefreshForcesLogout(t *testing.T) {
	c := newConsole(t, 5)
	c.login(t, "host@example.com", nil)

	c.srv.ExpireTokens()
	c.srv.DisableRefresh(true)
	w := c.do(t, http.MethodGet, "/floor?refresh=true", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Your session has expired. Please log in again.", decode[any](t, w).Message)

	assert.Equal(t, 1, c.srv.RefreshCalls())
	assert.Equal(t, []string{session.LoginRoute}, c.forcedRoutes())
	assert.False(t, c.manager.IsAuthenticated())
	assert.Equal(t, http.StatusUnauthorized, c.do(t, http.MethodGet, "/floor", nil).Code)
}
