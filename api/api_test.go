package api

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeremiapane/restaurant-floor/apiclient"
	"github.com/yeremiapane/restaurant-floor/models"
	"github.com/yeremiapane/restaurant-floor/testutil/fakeapi"
	"github.com/yeremiapane/restaurant-floor/utils"
)

func init() {
	utils.InitLogger()
	utils.SilenceLoggers()
}

type memSession struct {
	mu    sync.Mutex
	token string
}

func (s *memSession) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

func (s *memSession) UpdateToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

func (s *memSession) ForceLogout(context.Context) { s.UpdateToken("") }

func strPtr(s string) *string { return &s }

func setup(t *testing.T) (*fakeapi.Server, *apiclient.Client, *memSession) {
	t.Helper()
	srv := fakeapi.New()
	t.Cleanup(srv.Close)
	srv.AddUser(models.Account{ID: "s1", Name: "Sari", Email: "staff@example.com", Role: "MANAGER", RestaurantID: "r1", BranchID: "b1"}, "pw")
	srv.AddUser(models.Account{ID: "o1", Name: "Omar", Email: "owner@example.com", Role: "OWNER", RestaurantID: "r1"}, "pw")
	sess := &memSession{}
	return srv, apiclient.New(apiclient.Options{BaseURL: srv.URL}, sess), sess
}

func TestLoginDecodesAccountKind(t *testing.T) {
	_, client, _ := setup(t)
	auth := NewAuth(client)
	ctx := context.Background()

	staff, err := auth.Login(ctx, Credentials{Email: "staff@example.com", Password: "pw"})
	require.NoError(t, err)
	assert.NotEmpty(t, staff.AccessToken)
	assert.Equal(t, models.AccountKindStaff, staff.Account.Kind)
	assert.Equal(t, "b1", staff.Account.BranchID)

	owner, err := auth.Login(ctx, Credentials{Email: "owner@example.com", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, models.AccountKindGeneral, owner.Account.Kind)

	_, err = auth.Login(ctx, Credentials{Email: "owner@example.com", Password: "bad"})
	assert.Equal(t, http.StatusUnauthorized, apiclient.StatusOf(err))
}

func TestRefreshAndLogoutUseCookie(t *testing.T) {
	srv, client, _ := setup(t)
	auth := NewAuth(client)
	ctx := context.Background()

	_, err := auth.Refresh(ctx)
	require.Error(t, err)

	_, err = auth.Login(ctx, Credentials{Email: "staff@example.com", Password: "pw"})
	require.NoError(t, err)
	token, err := auth.Refresh(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	require.NoError(t, auth.Logout(ctx))
	assert.Equal(t, 1, srv.LogoutCalls())
	_, err = auth.Refresh(ctx)
	assert.Error(t, err)
}

func TestTablesEndpoints(t *testing.T) {
	srv, client, sess := setup(t)
	srv.AddArea(models.Area{ID: "a1", Name: "Patio", BranchID: "b1"})
	srv.AddTable(models.Table{ID: "t1", Tag: "Table 1", Capacity: 2, Status: models.TableStatusFree, AreaID: strPtr("a1"), BranchID: "b1"})
	srv.AddTable(models.Table{ID: "t2", Tag: "Table 2", Capacity: 4, Status: models.TableStatusFree, BranchID: "b1"})
	srv.AddTable(models.Table{ID: "t3", Tag: "Table 3", Capacity: 4, Status: models.TableStatusFree, BranchID: "b2"})
	sess.UpdateToken(srv.IssueToken("staff@example.com"))

	tables := NewTables(client)
	ctx := context.Background()

	page, err := tables.ListTables(ctx, "b1", 1, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Patio", page.Items[0].AreaName)

	got, err := tables.UpdateTable(ctx, "t2", 6)
	require.NoError(t, err)
	assert.Equal(t, 6, got.Capacity)

	got, err = tables.UpdateTableStatus(ctx, "t2", models.TableStatusOccupied)
	require.NoError(t, err)
	assert.Equal(t, models.TableStatusOccupied, got.Status)

	got, err = tables.UpdateTableArea(ctx, "t2", strPtr("a1"))
	require.NoError(t, err)
	assert.True(t, got.InArea("a1"))

	got, err = tables.UpdateTableArea(ctx, "t1", nil)
	require.NoError(t, err)
	assert.Nil(t, got.AreaID)

	areas, err := tables.ListAreas(ctx, "b1")
	require.NoError(t, err)
	require.Len(t, areas, 1)

	require.NoError(t, tables.DeleteArea(ctx, "a1"))
	t2, _ := srv.Table("t2")
	assert.Nil(t, t2.AreaID)

	err = tables.DeleteArea(ctx, "a1")
	assert.Equal(t, http.StatusNotFound, apiclient.StatusOf(err))
	assert.Equal(t, "Area not found", apiclient.MessageOf(err))
}

func TestReservationEndpoints(t *testing.T) {
	srv, client, sess := setup(t)
	srv.AddTable(models.Table{ID: "t1", Tag: "Table 1", Capacity: 4, Status: models.TableStatusFree, BranchID: "b1"})
	sess.UpdateToken(srv.IssueToken("staff@example.com"))

	reservations := NewReservations(client)
	ctx := context.Background()

	created, err := reservations.CreateReservation(ctx, models.Reservation{
		BranchID:   "b1",
		GuestName:  "Lia",
		GuestCount: 2,
		StartTime:  time.Now().Add(time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, models.ReservationPending, created.Status)

	pending, err := reservations.ListBranchReservations(ctx, "b1", models.ReservationPending)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	assigned, err := reservations.AssignTable(ctx, created.ID, "t1")
	require.NoError(t, err)
	assert.Equal(t, models.ReservationConfirmed, assigned.Status)

	list, err := reservations.ListTableReservations(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, list, 1)

	cancelled, err := reservations.UpdateReservationStatus(ctx, created.ID, models.ReservationCancelled)
	require.NoError(t, err)
	assert.Equal(t, models.ReservationCancelled, cancelled.Status)

	_, err = reservations.UpdateReservationStatus(ctx, created.ID, models.ReservationConfirmed)
	assert.Equal(t, http.StatusConflict, apiclient.StatusOf(err))
}
