package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/stark-secure/starkmole-integrity/models"
	"github.com/stark-secure/starkmole-integrity/responses"
	"github.com/stark-secure/starkmole-integrity/session"
	"github.com/stark-secure/starkmole-integrity/utils"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// WsHandler upgrades a connection for realtime action ingest. The path token
// is the signed session handle issued by StartSession; it names the one
// session this connection may record into.
func (h *Handler) WsHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	tokenStr := vars["token"]

	claims, err := session.ParseSessionToken(h.secret, tokenStr)
	if err != nil {
		h.logger.Warn("rejected ws connection", "error", err)
		utils.HandleError(w, responses.UnauthorizedError{Msg: "Error validating session token."})
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("ws upgrade failed", "error", err)
		return
	}

	connection := &Connection{
		ws:        conn,
		send:      make(chan []byte, 256),
		sessionID: claims.SessionID,
		userID:    claims.UserID,
	}
	h.hub.register <- connection
	h.logger.Info("ws connected", "sessionId", claims.SessionID, "userId", claims.UserID)

	go connection.writePump()
	h.readPump(connection)
}

func (h *Handler) readPump(c *Connection) {
	defer func() {
		h.hub.unregister <- c
		c.ws.Close()
		h.logger.Info("ws disconnected", "sessionId", c.sessionID)
	}()

	for {
		_, message, err := c.ws.ReadMessage()
		if err != nil {
			break
		}
		h.processMessage(c, message)
	}
}

func (c *Connection) writePump() {
	defer c.ws.Close()

	for message := range c.send {
		if err := c.ws.WriteMessage(websocket.TextMessage, message); err != nil {
			break
		}
	}
}

// processMessage records one action message into the connection's session
// and answers with an ack or the structured rejection.
func (h *Handler) processMessage(c *Connection, rawMessage []byte) {
	var input session.ActionInput
	if err := json.Unmarshal(rawMessage, &input); err != nil {
		c.reply(models.ErrorResponse("Invalid action message."))
		return
	}

	action, err := h.manager.RecordAction(context.Background(), c.sessionID, input)
	if err != nil {
		c.reply(models.ErrorResponse(err.Error()))
		return
	}
	c.reply(models.SuccessResponse(action))
}

func (c *Connection) reply(response models.ApiResponse) {
	message, err := json.Marshal(response)
	if err != nil {
		return
	}
	select {
	case c.send <- message:
	default:
	}
}
