// Package fakeapi is an in-process stand-in for the restaurant REST backend
// used by tests. It keeps its state in memory and speaks the same envelope,
// auth and stream conventions as the real backend.
package fakeapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/crypto/bcrypt"

	"github.com/yeremiapane/restaurant-floor/models"
	"github.com/yeremiapane/restaurant-floor/utils"
)

const refreshCookie = "refresh_token"

type userRecord struct {
	account models.Account
	hash    []byte
}

type failure struct {
	status  int
	message string
	times   int
}

type Server struct {
	URL string

	mu            sync.Mutex
	secret        []byte
	users         map[string]userRecord
	refreshTokens map[string]string
	revoked       map[string]bool
	issued        []string
	tables        map[string]*models.Table
	areas         map[string]*models.Area
	reservations  map[string]*models.Reservation
	failures      map[string]*failure
	subscribers   map[*websocket.Conn]string

	refreshCalls    int
	logoutCalls     int
	refreshDisabled bool

	httpServer *httptest.Server
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// New starts a fake backend. Call Close when done.
func New() *Server {
	gin.SetMode(gin.TestMode)
	s := &Server{
		secret:        []byte("fake-backend-secret"),
		users:         make(map[string]userRecord),
		refreshTokens: make(map[string]string),
		revoked:       make(map[string]bool),
		tables:        make(map[string]*models.Table),
		areas:         make(map[string]*models.Area),
		reservations:  make(map[string]*models.Reservation),
		failures:      make(map[string]*failure),
		subscribers:   make(map[*websocket.Conn]string),
	}
	s.httpServer = httptest.NewServer(s.router())
	s.URL = s.httpServer.URL
	return s
}

func (s *Server) Close() {
	s.mu.Lock()
	for conn := range s.subscribers {
		conn.Close()
	}
	s.subscribers = make(map[*websocket.Conn]string)
	s.mu.Unlock()
	s.httpServer.Close()
}

func (s *Server) router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.injectFailures())

	r.POST("/auth/token", s.login)
	r.POST("/auth/refresh", s.refresh)
	r.POST("/auth/logout", s.logout)
	r.POST("/signup", s.signup)
	r.GET("/ws/branches/:branch_id", s.stream)

	auth := r.Group("/")
	auth.Use(s.requireBearer())
	auth.GET("/branches/:branch_id/tables", s.listTables)
	auth.GET("/branches/:branch_id/areas", s.listAreas)
	auth.GET("/branches/:branch_id/reservations", s.listBranchReservations)
	auth.POST("/branches/:branch_id/reservations", s.createReservation)
	auth.GET("/tables/:table_id", s.getTable)
	auth.PATCH("/tables/:table_id", s.updateTable)
	auth.PATCH("/tables/:table_id/status", s.updateTableStatus)
	auth.PATCH("/tables/:table_id/area", s.updateTableArea)
	auth.GET("/tables/:table_id/reservations", s.listTableReservations)
	auth.DELETE("/areas/:area_id", s.deleteArea)
	auth.PATCH("/reservations/:reservation_id/assign-table", s.assignTable)
	auth.PATCH("/reservations/:reservation_id/status", s.updateReservationStatus)
	return r
}

func respond(c *gin.Context, code int, result any) {
	c.JSON(code, gin.H{"result": result})
}

func respondError(c *gin.Context, code int, message string) {
	c.AbortWithStatusJSON(code, gin.H{"message": message})
}

// ---------------------------------------------------------------------
// test controls
// ---------------------------------------------------------------------

// AddUser seeds an account that can log in with password.
func (s *Server) AddUser(account models.Account, password string) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[account.Email] = userRecord{account: account, hash: hash}
}

func (s *Server) AddArea(area models.Area) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := area
	s.areas[a.ID] = &a
}

func (s *Server) AddTable(table models.Table) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := table
	s.tables[t.ID] = &t
}

func (s *Server) AddReservation(res models.Reservation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := res
	s.reservations[r.ID] = &r
}

func (s *Server) Table(id string) (models.Table, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[id]
	if !ok {
		return models.Table{}, false
	}
	return *t, true
}

func (s *Server) TableCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tables)
}

// IssueToken mints a valid access token for the seeded account with email.
func (s *Server) IssueToken(email string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.users[email]
	if !ok {
		panic("fakeapi: unknown user " + email)
	}
	token, err := s.mintLocked(rec.account)
	if err != nil {
		panic(err)
	}
	return token
}

// ExpireTokens makes every access token issued so far answer 401.
func (s *Server) ExpireTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.issued {
		s.revoked[id] = true
	}
	s.issued = nil
}

// DisableRefresh makes the refresh endpoint answer 401.
func (s *Server) DisableRefresh(disabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshDisabled = disabled
}

// FailNext makes the next times requests to method+path fail with status.
func (s *Server) FailNext(method, path string, status int, message string, times int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[method+" "+path] = &failure{status: status, message: message, times: times}
}

func (s *Server) RefreshCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshCalls
}

func (s *Server) LogoutCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.logoutCalls
}

// Publish pushes an event to every stream subscriber of branchID.
func (s *Server) Publish(branchID, event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	msg, err := json.Marshal(models.Event{Event: event, BranchID: branchID, Data: payload})
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for conn, branch := range s.subscribers {
		if branch != branchID {
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			utils.ErrorLogger.Printf("fakeapi: publish failed: %v", err)
		}
	}
	return nil
}

// WaitForSubscribers blocks until n stream clients of branchID are
// connected or the timeout passes.
func (s *Server) WaitForSubscribers(branchID string, n int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if s.subscriberCount(branchID) >= n {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}

func (s *Server) subscriberCount(branchID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, branch := range s.subscribers {
		if branch == branchID {
			count++
		}
	}
	return count
}

// ---------------------------------------------------------------------
// auth
// ---------------------------------------------------------------------

func (s *Server) mintLocked(account models.Account) (string, error) {
	now := time.Now()
	id := uuid.NewString()
	s.issued = append(s.issued, id)
	return utils.SignAccessToken(s.secret, utils.AccessClaims{
		UserID:   account.ID,
		Role:     account.Role,
		BranchID: account.BranchID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(15 * time.Minute)),
		},
	})
}

func (s *Server) validate(tokenString string) error {
	claims := &utils.AccessClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return errors.New("invalid or expired token")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.revoked[claims.ID] {
		return errors.New("token revoked")
	}
	return nil
}

func (s *Server) requireBearer() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			respondError(c, http.StatusUnauthorized, "Unauthorized")
			return
		}
		if err := s.validate(strings.TrimPrefix(header, "Bearer ")); err != nil {
			respondError(c, http.StatusUnauthorized, "Unauthorized")
			return
		}
		c.Next()
	}
}

func (s *Server) injectFailures() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.Request.Method + " " + c.Request.URL.Path
		s.mu.Lock()
		f, ok := s.failures[key]
		if ok {
			f.times--
			if f.times <= 0 {
				delete(s.failures, key)
			}
		}
		s.mu.Unlock()
		if ok {
			respondError(c, f.status, f.message)
			return
		}
		c.Next()
	}
}

func (s *Server) login(c *gin.Context) {
	var input struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.users[input.Email]
	if !ok || bcrypt.CompareHashAndPassword(rec.hash, []byte(input.Password)) != nil {
		respondError(c, http.StatusUnauthorized, "invalid credentials")
		return
	}
	token, err := s.mintLocked(rec.account)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}
	refresh := uuid.NewString()
	s.refreshTokens[refresh] = rec.account.Email
	c.SetCookie(refreshCookie, refresh, 3600, "/", "", false, true)

	// the wire record has no kind; clients infer it once from branchId
	user := gin.H{
		"id":           rec.account.ID,
		"name":         rec.account.Name,
		"email":        rec.account.Email,
		"role":         rec.account.Role,
		"restaurantId": rec.account.RestaurantID,
	}
	if rec.account.BranchID != "" {
		user["branchId"] = rec.account.BranchID
	}
	respond(c, http.StatusOK, gin.H{"accessToken": token, "user": user})
}

func (s *Server) refresh(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshCalls++

	if s.refreshDisabled {
		respondError(c, http.StatusUnauthorized, "refresh token expired")
		return
	}
	cookie, err := c.Cookie(refreshCookie)
	if err != nil {
		respondError(c, http.StatusUnauthorized, "missing refresh token")
		return
	}
	email, ok := s.refreshTokens[cookie]
	if !ok {
		respondError(c, http.StatusUnauthorized, "unknown refresh token")
		return
	}
	token, err := s.mintLocked(s.users[email].account)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}
	respond(c, http.StatusOK, gin.H{"accessToken": token})
}

func (s *Server) logout(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logoutCalls++
	if cookie, err := c.Cookie(refreshCookie); err == nil {
		delete(s.refreshTokens, cookie)
	}
	c.SetCookie(refreshCookie, "", -1, "/", "", false, true)
	respond(c, http.StatusOK, nil)
}

func (s *Server) signup(c *gin.Context) {
	var input struct {
		Name     string `json:"name" binding:"required"`
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	account := models.Account{ID: uuid.NewString(), Name: input.Name, Email: input.Email, Role: "OWNER"}
	s.AddUser(account, input.Password)
	c.JSON(http.StatusCreated, gin.H{"id": account.ID, "name": account.Name, "email": account.Email, "role": account.Role})
}

func (s *Server) stream(c *gin.Context) {
	if err := s.validate(c.Query("token")); err != nil {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	branchID := c.Param("branch_id")

	s.mu.Lock()
	s.subscribers[ws] = branchID
	s.mu.Unlock()

	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			break
		}
	}

	s.mu.Lock()
	delete(s.subscribers, ws)
	s.mu.Unlock()
	ws.Close()
}

// ---------------------------------------------------------------------
// tables and areas
// ---------------------------------------------------------------------

func (s *Server) listTables(c *gin.Context) {
	branchID := c.Param("branch_id")
	page := queryInt(c, "page", 1)
	limit := queryInt(c, "limit", 50)

	s.mu.Lock()
	defer s.mu.Unlock()
	var all []models.Table
	for _, t := range s.tables {
		if t.BranchID == branchID {
			all = append(all, s.withAreaNameLocked(*t))
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })

	start := (page - 1) * limit
	if start > len(all) {
		start = len(all)
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	items := append([]models.Table{}, all[start:end]...)
	respond(c, http.StatusOK, models.TablePage{Items: items, Page: page, Limit: limit, Total: len(all)})
}

func (s *Server) withAreaNameLocked(t models.Table) models.Table {
	t.AreaName = ""
	if t.AreaID != nil {
		if a, ok := s.areas[*t.AreaID]; ok {
			t.AreaName = a.Name
		}
	}
	return t
}

func (s *Server) tableLocked(c *gin.Context) (*models.Table, bool) {
	t, ok := s.tables[c.Param("table_id")]
	if !ok {
		respondError(c, http.StatusNotFound, "Table not found")
		return nil, false
	}
	return t, true
}

func (s *Server) getTable(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tableLocked(c)
	if !ok {
		return
	}
	respond(c, http.StatusOK, s.withAreaNameLocked(*t))
}

func (s *Server) updateTable(c *gin.Context) {
	var body struct {
		Capacity int `json:"capacity"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	if body.Capacity <= 0 {
		respondError(c, http.StatusBadRequest, "Capacity must be a positive integer")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tableLocked(c)
	if !ok {
		return
	}
	t.Capacity = body.Capacity
	respond(c, http.StatusOK, s.withAreaNameLocked(*t))
}

func (s *Server) updateTableStatus(c *gin.Context) {
	var body struct {
		Status models.TableStatus `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	switch body.Status {
	case models.TableStatusFree, models.TableStatusOccupied, models.TableStatusInactive:
	default:
		respondError(c, http.StatusBadRequest, fmt.Sprintf("Unknown table status %s", body.Status))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tableLocked(c)
	if !ok {
		return
	}
	t.Status = body.Status
	respond(c, http.StatusOK, s.withAreaNameLocked(*t))
}

func (s *Server) updateTableArea(c *gin.Context) {
	var body struct {
		AreaID *string `json:"areaId"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tableLocked(c)
	if !ok {
		return
	}
	if body.AreaID != nil {
		if _, exists := s.areas[*body.AreaID]; !exists {
			respondError(c, http.StatusNotFound, "Area not found")
			return
		}
		id := *body.AreaID
		t.AreaID = &id
	} else {
		t.AreaID = nil
	}
	respond(c, http.StatusOK, s.withAreaNameLocked(*t))
}

func (s *Server) listAreas(c *gin.Context) {
	branchID := c.Param("branch_id")
	s.mu.Lock()
	defer s.mu.Unlock()
	areas := []models.Area{}
	for _, a := range s.areas {
		if a.BranchID == branchID {
			areas = append(areas, *a)
		}
	}
	sort.Slice(areas, func(i, j int) bool { return areas[i].ID < areas[j].ID })
	respond(c, http.StatusOK, areas)
}

// deleteArea removes the area and leaves its tables unassigned.
func (s *Server) deleteArea(c *gin.Context) {
	areaID := c.Param("area_id")
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.areas[areaID]; !ok {
		respondError(c, http.StatusNotFound, "Area not found")
		return
	}
	delete(s.areas, areaID)
	for _, t := range s.tables {
		if t.InArea(areaID) {
			t.AreaID = nil
		}
	}
	respond(c, http.StatusOK, gin.H{"id": areaID})
}

// ---------------------------------------------------------------------
// reservations
// ---------------------------------------------------------------------

func (s *Server) listTableReservations(c *gin.Context) {
	tableID := c.Param("table_id")
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Reservation{}
	for _, r := range s.reservations {
		if r.TableID != nil && *r.TableID == tableID {
			out = append(out, *r)
		}
	}
	sortReservations(out)
	respond(c, http.StatusOK, out)
}

func (s *Server) listBranchReservations(c *gin.Context) {
	branchID := c.Param("branch_id")
	status := models.ReservationStatus(c.Query("status"))
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Reservation{}
	for _, r := range s.reservations {
		if r.BranchID != branchID {
			continue
		}
		if status != "" && r.Status != status {
			continue
		}
		out = append(out, *r)
	}
	sortReservations(out)
	respond(c, http.StatusOK, out)
}

func (s *Server) createReservation(c *gin.Context) {
	var res models.Reservation
	if err := c.ShouldBindJSON(&res); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	if res.GuestCount <= 0 {
		respondError(c, http.StatusBadRequest, "Guest count must be positive")
		return
	}
	res.ID = uuid.NewString()
	res.BranchID = c.Param("branch_id")
	res.Status = models.ReservationPending
	if res.TableID != nil {
		res.Status = models.ReservationConfirmed
	}
	s.AddReservation(res)
	respond(c, http.StatusCreated, res)
}

func (s *Server) assignTable(c *gin.Context) {
	var body struct {
		TableID string `json:"tableId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reservations[c.Param("reservation_id")]
	if !ok {
		respondError(c, http.StatusNotFound, "Reservation not found")
		return
	}
	if _, ok := s.tables[body.TableID]; !ok {
		respondError(c, http.StatusNotFound, "Table not found")
		return
	}
	next, err := r.Status.Transition(models.ReservationConfirmed)
	if err != nil {
		respondError(c, http.StatusConflict, err.Error())
		return
	}
	tableID := body.TableID
	r.TableID = &tableID
	r.Status = next
	respond(c, http.StatusOK, *r)
}

func (s *Server) updateReservationStatus(c *gin.Context) {
	var body struct {
		Status models.ReservationStatus `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reservations[c.Param("reservation_id")]
	if !ok {
		respondError(c, http.StatusNotFound, "Reservation not found")
		return
	}
	next, err := r.Status.Transition(body.Status)
	if err != nil {
		respondError(c, http.StatusConflict, err.Error())
		return
	}
	r.Status = next
	respond(c, http.StatusOK, *r)
}

func sortReservations(rs []models.Reservation) {
	sort.Slice(rs, func(i, j int) bool {
		if rs[i].StartTime.Equal(rs[j].StartTime) {
			return rs[i].ID < rs[j].ID
		}
		return rs[i].StartTime.Before(rs[j].StartTime)
	})
}

func queryInt(c *gin.Context, key string, fallback int) int {
	var n int
	if _, err := fmt.Sscanf(c.Query(key), "%d", &n); err != nil || n <= 0 {
		return fallback
	}
	return n
}
