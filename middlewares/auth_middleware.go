package middlewares

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yeremiapane/restaurant-floor/session"
	"github.com/yeremiapane/restaurant-floor/utils"
)

// SessionSource is the read side of the session manager.
type SessionSource interface {
	Snapshot() session.Snapshot
}

// RequireSession rejects requests while the console has no authenticated
// session and puts the signed-in account on the context.
func RequireSession(src SessionSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		snap := src.Snapshot()
		if snap.Loading {
			utils.RespondMessage(c, http.StatusServiceUnavailable, "Session is still loading")
			c.Abort()
			return
		}
		if !snap.Authenticated || snap.User == nil {
			utils.RespondMessage(c, http.StatusUnauthorized, "Not logged in")
			c.Abort()
			return
		}

		c.Set("user", *snap.User)
		c.Set("user_id", snap.User.ID)
		c.Set("role", snap.User.Role)
		c.Next()
	}
}
