package events

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/yeremiapane/restaurant-floor/models"
	"github.com/yeremiapane/restaurant-floor/utils"
)

type Message struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

type client struct {
	id   string
	role string
}

// Hub holds the display clients connected to the console and fans floor
// updates out to them.
type Hub struct {
	clients map[*websocket.Conn]client
	mutex   sync.Mutex
}

func NewHub() *Hub {
	return &Hub{clients: make(map[*websocket.Conn]client)}
}

// Register adds conn and returns the id assigned to it.
func (h *Hub) Register(conn *websocket.Conn, role string) string {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	id := uuid.NewString()
	h.clients[conn] = client{id: id, role: role}
	utils.InfoLogger.Infof("Display client %s connected (%s)", id, role)
	return id
}

// Unregister drops conn and closes it.
func (h *Hub) Unregister(conn *websocket.Conn) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if c, ok := h.clients[conn]; ok {
		utils.InfoLogger.Infof("Display client %s disconnected", c.id)
	}
	delete(h.clients, conn)
	conn.Close()
}

func (h *Hub) Count() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return len(h.clients)
}

func (h *Hub) BroadcastFloor(view interface{}) {
	h.Broadcast(Message{Event: models.EventFloorUpdate, Data: view})
}

func (h *Hub) BroadcastTableUpdate(table models.Table) {
	h.Broadcast(Message{Event: models.EventTableUpdate, Data: table})
}

// BroadcastSessionEnded tells displays to go to route.
func (h *Hub) BroadcastSessionEnded(route string) {
	h.Broadcast(Message{Event: models.EventSessionEnded, Data: map[string]string{"redirect": route}})
}

func (h *Hub) Broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		utils.ErrorLogger.Errorf("Error marshaling message: %v", err)
		return
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()
	utils.InfoLogger.Debugf("Broadcasting %s to %d clients", msg.Event, len(h.clients))
	for conn, c := range h.clients {
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			utils.ErrorLogger.Errorf("Error sending message to client %s: %v", c.id, err)
		}
	}
}
