// Package session keeps the authenticated principal of the console and the
// bearer token used for outgoing requests.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/yeremiapane/restaurant-floor/models"
	"github.com/yeremiapane/restaurant-floor/storage"
	"github.com/yeremiapane/restaurant-floor/utils"
)

// LoginRoute is where a forced logout sends the operator.
const LoginRoute = "/login"

// Backend is the part of the REST API the manager talks to. Both calls are
// made without a bearer header.
type Backend interface {
	Refresh(ctx context.Context) (string, error)
	Logout(ctx context.Context) error
}

// Scope carries the optional multi-tenant scoping ids.
type Scope struct {
	RestaurantID string
	BranchID     string
}

// Snapshot is a copy of the session state safe to hand out.
type Snapshot struct {
	User          *models.Account `json:"user"`
	Authenticated bool            `json:"isAuthenticated"`
	Loading       bool            `json:"isLoading"`
	RestaurantID  string          `json:"restaurantId,omitempty"`
	BranchID      string          `json:"branchId,omitempty"`
	ExpiresAt     *time.Time      `json:"expiresAt,omitempty"`
}

type Option func(*Manager)

func WithBackend(b Backend) Option {
	return func(m *Manager) { m.backend = b }
}

// WithLogoutHook registers fn to run after every forced logout with the
// route the operator is sent to.
func WithLogoutHook(fn func(route string)) Option {
	return func(m *Manager) { m.hooks = append(m.hooks, fn) }
}

type Manager struct {
	mu            sync.RWMutex
	token         string
	user          *models.Account
	authenticated bool
	loading       bool
	restaurantID  string
	branchID      string
	expiresAt     *time.Time

	durable storage.Store
	scoped  storage.Store
	backend Backend
	hooks   []func(route string)
}

// NewManager builds a manager over a durable store and a session-scoped
// store. The backend may be attached later with SetBackend.
func NewManager(durable, scoped storage.Store, opts ...Option) *Manager {
	m := &Manager{durable: durable, scoped: scoped}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) SetBackend(b Backend) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.backend = b
}

func (m *Manager) OnForcedLogout(fn func(route string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks = append(m.hooks, fn)
}

// Initialize restores the session at startup. A token already held in
// memory is used as is. Otherwise a cached user record triggers one silent
// refresh; if that fails the cached user is dropped. The call always leaves
// Loading false. It returns an error only when durable storage cannot be
// read.
func (m *Manager) Initialize(ctx context.Context) error {
	m.mu.Lock()
	if m.token != "" {
		m.authenticated = m.user != nil
		m.loading = false
		m.mu.Unlock()
		return nil
	}
	m.loading = true
	backend := m.backend
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.loading = false
		m.mu.Unlock()
	}()

	raw, err := m.durable.Get(ctx, storage.KeyUser)
	if errors.Is(err, storage.ErrNotFound) {
		m.reset()
		return nil
	}
	if err != nil {
		m.reset()
		return fmt.Errorf("read cached user: %w", err)
	}

	user, err := models.DecodeAccount([]byte(raw))
	if err != nil {
		utils.ErrorLogger.Printf("Dropping unreadable cached user: %v", err)
		m.dropCachedUser(ctx)
		return nil
	}

	scope := Scope{
		RestaurantID: m.readOptional(ctx, storage.KeyRestaurantID),
		BranchID:     m.readOptional(ctx, storage.KeyBranchID),
	}

	if cached := m.readOptional(ctx, storage.KeyAccessToken); cached != "" {
		m.adopt(user, cached, scope)
		utils.InfoLogger.Printf("Session restored from cached token for %s", user.ID)
		return nil
	}

	if backend == nil {
		utils.ErrorLogger.Println("No backend attached, cannot refresh session")
		m.dropCachedUser(ctx)
		return nil
	}

	token, err := backend.Refresh(ctx)
	if err != nil || token == "" {
		utils.InfoLogger.Printf("Silent refresh failed, session cleared: %v", err)
		m.dropCachedUser(ctx)
		return nil
	}

	m.adopt(user, token, scope)
	utils.InfoLogger.Printf("Session restored by refresh for %s", user.ID)
	return nil
}

// SetSession records a fresh login. Memory state is updated first; a
// durable write failure is returned but leaves the session usable.
func (m *Manager) SetSession(ctx context.Context, user models.Account, token string, scope Scope) error {
	if user.IsStaff() && scope.BranchID == "" {
		scope.BranchID = user.BranchID
	}
	if scope.RestaurantID == "" {
		scope.RestaurantID = user.RestaurantID
	}
	m.adopt(user, token, scope)

	raw, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}
	if err := m.durable.Set(ctx, storage.KeyUser, string(raw)); err != nil {
		return fmt.Errorf("persist user: %w", err)
	}
	if scope.RestaurantID != "" {
		if err := m.durable.Set(ctx, storage.KeyRestaurantID, scope.RestaurantID); err != nil {
			return fmt.Errorf("persist restaurant: %w", err)
		}
	}
	if scope.BranchID != "" {
		if err := m.durable.Set(ctx, storage.KeyBranchID, scope.BranchID); err != nil {
			return fmt.Errorf("persist branch: %w", err)
		}
	}
	utils.InfoLogger.Printf("Session started for %s (kind=%s)", user.ID, user.Kind)
	return nil
}

// ClearSession logs out. The logout call is best effort; local state is
// always torn down.
func (m *Manager) ClearSession(ctx context.Context) {
	m.mu.RLock()
	backend := m.backend
	m.mu.RUnlock()

	if backend != nil {
		if err := backend.Logout(ctx); err != nil {
			utils.ErrorLogger.Printf("Logout request failed: %v", err)
		}
	}

	m.reset()
	if err := m.durable.Delete(ctx, storage.KeyUser, storage.KeyAccessToken, storage.KeyRestaurantID, storage.KeyBranchID); err != nil {
		utils.ErrorLogger.Printf("Failed to clear durable storage: %v", err)
	}
	if err := m.scoped.Delete(ctx, storage.KeySelectedRestaurant, storage.KeyOwnerSelectedBranch); err != nil {
		utils.ErrorLogger.Printf("Failed to clear session storage: %v", err)
	}
}

// ForceLogout ends the session after refresh is exhausted and notifies the
// logout hooks with LoginRoute.
func (m *Manager) ForceLogout(ctx context.Context) {
	m.ClearSession(context.WithoutCancel(ctx))

	m.mu.RLock()
	hooks := append([]func(string){}, m.hooks...)
	m.mu.RUnlock()

	utils.InfoLogger.Printf("Session expired, redirecting to %s", LoginRoute)
	for _, fn := range hooks {
		fn(LoginRoute)
	}
}

func (m *Manager) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token
}

// UpdateToken swaps in a refreshed token.
func (m *Manager) UpdateToken(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
	m.expiresAt = expiry(token)
	if m.user != nil {
		m.authenticated = true
	}
}

func (m *Manager) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snap := Snapshot{
		Authenticated: m.authenticated,
		Loading:       m.loading,
		RestaurantID:  m.restaurantID,
		BranchID:      m.branchID,
	}
	if m.user != nil {
		u := *m.user
		snap.User = &u
	}
	if m.expiresAt != nil {
		t := *m.expiresAt
		snap.ExpiresAt = &t
	}
	return snap
}

func (m *Manager) IsAuthenticated() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.authenticated
}

// SelectBranch stores the owner's navigation choice in session storage.
func (m *Manager) SelectBranch(ctx context.Context, restaurantID, branchID string) error {
	if err := m.scoped.Set(ctx, storage.KeySelectedRestaurant, restaurantID); err != nil {
		return err
	}
	return m.scoped.Set(ctx, storage.KeyOwnerSelectedBranch, branchID)
}

// ActiveBranch resolves the branch the floor view works on: the owner's
// selection first, then the scoping id, then the staff account's branch.
func (m *Manager) ActiveBranch(ctx context.Context) string {
	if selected, err := m.scoped.Get(ctx, storage.KeyOwnerSelectedBranch); err == nil && selected != "" {
		return selected
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.branchID != "" {
		return m.branchID
	}
	if m.user != nil && m.user.IsStaff() {
		return m.user.BranchID
	}
	return ""
}

func (m *Manager) adopt(user models.Account, token string, scope Scope) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.user = &user
	m.token = token
	m.expiresAt = expiry(token)
	m.restaurantID = scope.RestaurantID
	m.branchID = scope.BranchID
	m.authenticated = true
}

func (m *Manager) reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.user = nil
	m.token = ""
	m.expiresAt = nil
	m.restaurantID = ""
	m.branchID = ""
	m.authenticated = false
}

func (m *Manager) dropCachedUser(ctx context.Context) {
	m.reset()
	if err := m.durable.Delete(ctx, storage.KeyUser, storage.KeyAccessToken); err != nil {
		utils.ErrorLogger.Printf("Failed to drop cached user: %v", err)
	}
}

func (m *Manager) readOptional(ctx context.Context, key string) string {
	val, err := m.durable.Get(ctx, key)
	if err != nil {
		return ""
	}
	return val
}

func expiry(token string) *time.Time {
	if exp, ok := utils.TokenExpiry(token); ok {
		return &exp
	}
	return nil
}
