package controllers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/yeremiapane/restaurant-floor/api"
	"github.com/yeremiapane/restaurant-floor/apiclient"
	"github.com/yeremiapane/restaurant-floor/events"
	"github.com/yeremiapane/restaurant-floor/models"
	"github.com/yeremiapane/restaurant-floor/reconciler"
	"github.com/yeremiapane/restaurant-floor/router"
	"github.com/yeremiapane/restaurant-floor/session"
	"github.com/yeremiapane/restaurant-floor/storage"
	"github.com/yeremiapane/restaurant-floor/testutil/fakeapi"
	"github.com/yeremiapane/restaurant-floor/utils"
)

const testBranch = "b1"

type noSleep struct{}

func (noSleep) Sleep(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}

type console struct {
	srv     *fakeapi.Server
	router  *gin.Engine
	manager *session.Manager
	durable *storage.MemoryStore
	floor   *reconciler.Reconciler

	mu     sync.Mutex
	routes []string
}

func (c *console) forcedRoutes() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.routes...)
}

func strPtr(s string) *string { return &s }

func TestMain(m *testing.M) {
	utils.InitLogger()
	utils.SilenceLoggers()
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func newConsole(t *testing.T, loginBurst int) *console {
	t.Helper()

	srv := fakeapi.New()
	t.Cleanup(srv.Close)
	srv.AddUser(models.Account{ID: "u1", Name: "Hana", Email: "host@example.com", Role: "WAITER", RestaurantID: "r1", BranchID: testBranch}, "secret")
	srv.AddUser(models.Account{ID: "u2", Name: "Omar", Email: "owner@example.com", Role: "OWNER", RestaurantID: "r1"}, "secret")
	srv.AddArea(models.Area{ID: "patio", Name: "Patio", BranchID: testBranch})
	srv.AddArea(models.Area{ID: "indoor", Name: "Indoor", BranchID: testBranch})
	srv.AddTable(models.Table{ID: "t1", Tag: "Table 10", Capacity: 4, Status: models.TableStatusFree, AreaID: strPtr("patio"), BranchID: testBranch})
	srv.AddTable(models.Table{ID: "t2", Tag: "Table 2", Capacity: 2, Status: models.TableStatusOccupied, AreaID: strPtr("patio"), BranchID: testBranch})
	srv.AddTable(models.Table{ID: "t3", Tag: "Table 1", Capacity: 6, Status: models.TableStatusFree, AreaID: strPtr("indoor"), BranchID: testBranch})

	c := &console{srv: srv, durable: storage.NewMemoryStore()}
	c.manager = session.NewManager(c.durable, storage.NewMemoryStore())
	client := apiclient.New(apiclient.Options{BaseURL: srv.URL, Clock: noSleep{}}, c.manager)
	auth := api.NewAuth(client)
	c.manager.SetBackend(auth)
	c.floor = reconciler.New(api.NewTables(client), api.NewReservations(client), reconciler.Options{})
	c.manager.OnForcedLogout(func(route string) {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.routes = append(c.routes, route)
	})

	c.router = router.SetupRouter(router.Dependencies{
		Manager:    c.manager,
		Auth:       auth,
		Floor:      c.floor,
		Hub:        events.NewHub(),
		LoginBurst: loginBurst,
		LoginEvery: time.Hour,
	})
	t.Cleanup(c.floor.Wait)
	return c
}

func (c *console) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	c.router.ServeHTTP(w, req)
	return w
}

func (c *console) login(t *testing.T, email string, extra map[string]string) {
	t.Helper()
	body := map[string]string{"email": email, "password": "secret"}
	for k, v := range extra {
		body[k] = v
	}
	w := c.do(t, http.MethodPost, "/session/login", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	c.floor.Wait()
}

type envelope[T any] struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) envelope[T] {
	t.Helper()
	var env envelope[T]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}
