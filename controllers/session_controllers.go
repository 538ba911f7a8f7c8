package controllers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yeremiapane/restaurant-floor/api"
	"github.com/yeremiapane/restaurant-floor/reconciler"
	"github.com/yeremiapane/restaurant-floor/session"
	"github.com/yeremiapane/restaurant-floor/utils"
)

type SessionController struct {
	Manager *session.Manager
	Auth    *api.Auth
	Floor   *reconciler.Reconciler
}

func NewSessionController(manager *session.Manager, auth *api.Auth, floor *reconciler.Reconciler) *SessionController {
	return &SessionController{Manager: manager, Auth: auth, Floor: floor}
}

// Login signs the operator in against the backend and loads their floor.
func (sc *SessionController) Login(c *gin.Context) {
	var input struct {
		Email        string `json:"email" binding:"required,email"`
		Password     string `json:"password" binding:"required"`
		RestaurantID string `json:"restaurantId"`
		BranchID     string `json:"branchId"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	ctx := c.Request.Context()
	result, err := sc.Auth.Login(ctx, api.Credentials{Email: input.Email, Password: input.Password})
	if err != nil {
		respondFailure(c, err)
		return
	}
	scope := session.Scope{RestaurantID: input.RestaurantID, BranchID: input.BranchID}
	if err := sc.Manager.SetSession(ctx, result.Account, result.AccessToken, scope); err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	sc.loadFloor(ctx)
	utils.InfoLogger.Printf("Operator %s logged in (%s)", result.Account.Email, result.Account.Kind)
	utils.RespondJSON(c, http.StatusOK, "Login successful", sc.Manager.Snapshot())
}

// Logout revokes the refresh cookie and clears the local session.
func (sc *SessionController) Logout(c *gin.Context) {
	sc.Manager.ClearSession(c.Request.Context())
	sc.Floor.SetBranch("")
	utils.RespondJSON(c, http.StatusOK, "Logged out", nil)
}

func (sc *SessionController) GetSession(c *gin.Context) {
	utils.RespondJSON(c, http.StatusOK, "Current session", sc.Manager.Snapshot())
}

// Signup registers a new owner account on the backend.
func (sc *SessionController) Signup(c *gin.Context) {
	var input api.SignupRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	if input.Name == "" || input.Email == "" || input.Password == "" {
		utils.RespondMessage(c, http.StatusBadRequest, "name, email and password are required")
		return
	}
	account, err := sc.Auth.Signup(c.Request.Context(), input)
	if err != nil {
		respondFailure(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusCreated, "Account created", account)
}

// SelectBranch switches an owner's floor to another branch.
func (sc *SessionController) SelectBranch(c *gin.Context) {
	var input struct {
		RestaurantID string `json:"restaurantId"`
		BranchID     string `json:"branchId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	ctx := c.Request.Context()
	if err := sc.Manager.SelectBranch(ctx, input.RestaurantID, input.BranchID); err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	sc.loadFloor(ctx)
	utils.RespondJSON(c, http.StatusOK, "Branch selected", gin.H{"branchId": sc.Floor.Branch()})
}

func (sc *SessionController) loadFloor(ctx context.Context) {
	branchID := sc.Manager.ActiveBranch(ctx)
	sc.Floor.SetBranch(branchID)
	if branchID == "" {
		return
	}
	if err := sc.Floor.Refresh(ctx); err != nil {
		utils.ErrorLogger.Printf("Initial floor load for branch %s failed: %v", branchID, err)
	}
}
