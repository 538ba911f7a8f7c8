package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeremiapane/restaurant-floor/api"
	"github.com/yeremiapane/restaurant-floor/apiclient"
	"github.com/yeremiapane/restaurant-floor/config"
	"github.com/yeremiapane/restaurant-floor/events"
	"github.com/yeremiapane/restaurant-floor/models"
	"github.com/yeremiapane/restaurant-floor/reconciler"
	"github.com/yeremiapane/restaurant-floor/session"
	"github.com/yeremiapane/restaurant-floor/storage"
	"github.com/yeremiapane/restaurant-floor/testutil/fakeapi"
	"github.com/yeremiapane/restaurant-floor/utils"
)

func TestMain(m *testing.M) {
	utils.InitLogger()
	utils.SilenceLoggers()
	os.Exit(m.Run())
}

func TestOpenStore(t *testing.T) {
	ctx := context.Background()

	mem, closeMem, err := openStore(config.Config{StorageDriver: "memory"})
	require.NoError(t, err)
	defer closeMem()
	require.NoError(t, mem.Set(ctx, storage.KeyBranchID, "b1"))

	dsn := filepath.Join(t.TempDir(), "console.db")
	db, closeDB, err := openStore(config.Config{StorageDriver: "sqlite", StorageDSN: dsn})
	require.NoError(t, err)
	require.NoError(t, db.Set(ctx, storage.KeyUser, `{"id":"u1"}`))
	closeDB()

	reopened, closeAgain, err := openStore(config.Config{StorageDriver: "sqlite", StorageDSN: dsn})
	require.NoError(t, err)
	defer closeAgain()
	v, err := reopened.Get(ctx, storage.KeyUser)
	require.NoError(t, err)
	assert.Equal(t, `{"id":"u1"}`, v)

	_, _, err = openStore(config.Config{StorageDriver: "postgres"})
	assert.Error(t, err)
}

// A console restarted with a cached user and no token refreshes once and
// then follows the branch's live stream.
func TestBootstrapAndLiveStream(t *testing.T) {
	srv := fakeapi.New()
	defer srv.Close()
	account := models.Account{ID: "u1", Email: "host@example.com", Role: "WAITER", RestaurantID: "r1", BranchID: "b1"}
	srv.AddUser(account, "secret")
	srv.AddTable(models.Table{ID: "t1", Tag: "Table 1", Capacity: 2, Status: models.TableStatusFree, BranchID: "b1"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	durable := storage.NewMemoryStore()
	manager := session.NewManager(durable, storage.NewMemoryStore())
	client := apiclient.New(apiclient.Options{BaseURL: srv.URL}, manager)
	auth := api.NewAuth(client)
	manager.SetBackend(auth)

	// obtain the refresh cookie the way a previous run would have
	_, err := auth.Login(ctx, api.Credentials{Email: account.Email, Password: "secret"})
	require.NoError(t, err)
	require.NoError(t, durable.Set(ctx, storage.KeyUser, `{"kind":"staff","id":"u1","email":"host@example.com","role":"WAITER","restaurantId":"r1","branchId":"b1"}`))

	require.NoError(t, manager.Initialize(ctx))
	assert.Equal(t, 1, srv.RefreshCalls())
	require.True(t, manager.IsAuthenticated())

	floor := reconciler.New(api.NewTables(client), api.NewReservations(client), reconciler.Options{})
	floor.SetBranch(manager.ActiveBranch(ctx))
	require.NoError(t, floor.Refresh(ctx))
	assert.Len(t, floor.Tables(), 1)

	go superviseStream(ctx, events.WebSocketURL(srv.URL), manager, floor)
	require.True(t, srv.WaitForSubscribers("b1", 1, 3*time.Second))

	res := models.Reservation{ID: "r1", GuestName: "Dewi", GuestCount: 3, Status: models.ReservationPending}
	require.NoError(t, srv.Publish("b1", models.EventReservationCreated, res))
	require.NoError(t, srv.Publish("b1", models.EventReservationCreated, res))

	assert.Eventually(t, func() bool { return len(floor.Pending()) == 1 }, 3*time.Second, 20*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Len(t, floor.Pending(), 1)
}
