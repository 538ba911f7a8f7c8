package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/yeremiapane/restaurant-floor/events"
	"github.com/yeremiapane/restaurant-floor/models"
	"github.com/yeremiapane/restaurant-floor/reconciler"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// DisplayHandler upgrades a floor display and keeps it registered with hub
// until it disconnects. The current floor is sent on connect.
func DisplayHandler(hub *events.Hub, floor *reconciler.Reconciler) gin.HandlerFunc {
	return func(c *gin.Context) {
		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}

		if err := ws.WriteJSON(events.Message{Event: models.EventFloorUpdate, Data: floor.Floor()}); err != nil {
			ws.Close()
			return
		}
		role, _ := c.Get("role")
		name, _ := role.(string)
		hub.Register(ws, name)

		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				break
			}
		}

		hub.Unregister(ws)
	}
}
