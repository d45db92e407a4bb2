package handlers

import (
	"encoding/json"

	"github.com/gorilla/websocket"

	"github.com/stark-secure/starkmole-integrity/models"
)

// Connection represents a WebSocket connection bound to one session.
type Connection struct {
	ws        *websocket.Conn
	send      chan []byte
	sessionID string
	userID    string
}

// Hub maintains the set of active connections and broadcasts messages to the
// connections. Moderation dashboards subscribe here to watch integrity
// reports arrive in real time.
type Hub struct {
	// Registered connections.
	connections map[*Connection]bool

	broadcast chan []byte

	register chan *Connection

	unregister chan *Connection
}

func NewHub() *Hub {
	h := &Hub{
		broadcast:   make(chan []byte),
		register:    make(chan *Connection),
		unregister:  make(chan *Connection),
		connections: make(map[*Connection]bool),
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	for {
		select {
		case connection := <-h.register:
			h.connections[connection] = true
		case connection := <-h.unregister:
			if _, ok := h.connections[connection]; ok {
				delete(h.connections, connection)
				close(connection.send)
			}
		case message := <-h.broadcast:
			for connection := range h.connections {
				select {
				case connection.send <- message:
				default:
					close(connection.send)
					delete(h.connections, connection)
				}
			}
		}
	}
}

// BroadcastReport pushes a finished session's integrity report to every
// connected subscriber.
func (h *Hub) BroadcastReport(report *models.SessionIntegrityReport) {
	message, err := json.Marshal(map[string]interface{}{
		"type": "integrityReport",
		"data": report,
	})
	if err != nil {
		return
	}
	h.broadcast <- message
}
