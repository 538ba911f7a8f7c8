package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yeremiapane/restaurant-floor/api"
	"github.com/yeremiapane/restaurant-floor/controllers"
	"github.com/yeremiapane/restaurant-floor/events"
	"github.com/yeremiapane/restaurant-floor/middlewares"
	"github.com/yeremiapane/restaurant-floor/reconciler"
	"github.com/yeremiapane/restaurant-floor/session"
)

type Dependencies struct {
	Manager *session.Manager
	Auth    *api.Auth
	Floor   *reconciler.Reconciler
	Hub     *events.Hub

	CORSOrigin        string
	LoginBurst        int
	LoginEvery        time.Duration
	RequestsPerMinute int
}

func SetupRouter(deps Dependencies) *gin.Engine {
	if deps.LoginBurst <= 0 {
		deps.LoginBurst = 5
	}
	if deps.LoginEvery <= 0 {
		deps.LoginEvery = time.Minute
	}
	if deps.RequestsPerMinute <= 0 {
		deps.RequestsPerMinute = 600
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middlewares.LoggerMiddleware())
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddlewares(deps.CORSOrigin))
	r.Use(middlewares.NewRateLimiter(deps.RequestsPerMinute, time.Minute).RateLimit())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	sessionController := controllers.NewSessionController(deps.Manager, deps.Auth, deps.Floor)
	floorController := controllers.NewFloorController(deps.Floor)

	sessionRoutes := r.Group("/session")
	{
		sessionRoutes.POST("/login", middlewares.NewStrictRateLimiter(deps.LoginEvery, deps.LoginBurst), sessionController.Login)
		sessionRoutes.POST("/signup", middlewares.NewStrictRateLimiter(deps.LoginEvery, deps.LoginBurst), sessionController.Signup)
		sessionRoutes.GET("", sessionController.GetSession)
		sessionRoutes.POST("/logout", middlewares.RequireSession(deps.Manager), sessionController.Logout)
		sessionRoutes.POST("/branch", middlewares.RequireSession(deps.Manager), sessionController.SelectBranch)
	}

	floor := r.Group("/floor")
	floor.Use(middlewares.RequireSession(deps.Manager))
	{
		floor.GET("", floorController.GetFloor)
		floor.GET("/pending", floorController.GetPending)
		floor.PATCH("/tables/:table_id", floorController.UpdateTable)
		floor.GET("/tables/:table_id/reservations", floorController.GetTableReservations)
		floor.GET("/areas/:area_id/impact", floorController.GetAreaImpact)
		floor.DELETE("/areas/:area_id", middlewares.RoleCheck("owner", "manager", "admin"), floorController.DeleteArea)
		floor.POST("/reservations/:reservation_id/assign", floorController.AssignReservation)
	}

	r.GET("/ws", middlewares.RequireSession(deps.Manager), controllers.DisplayHandler(deps.Hub, deps.Floor))

	return r
}
