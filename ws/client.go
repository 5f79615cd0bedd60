package ws

import (
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/techagentng/converse/models"
	"github.com/techagentng/converse/services"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	maxMessageSize = 4096
)

// Client is one authenticated live connection. The verified user id is bound
// at handshake time and never re-read from the wire.
type Client struct {
	hub        *Hub
	conn       *websocket.Conn
	send       chan []byte
	userID     string
	messageSvc services.MessageService
}

func (c *Client) readPump() {
	defer func() {
		c.hub.UnregisterClient(c)
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { _ = c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("ws: read error: %v", err)
			}
			break
		}

		var env struct {
			Type           string `json:"type"`
			ConversationID string `json:"conversation_id"`
			ReceiverID     string `json:"receiver_id"`
			Content        string `json:"content"`
		}
		if err := json.Unmarshal(raw, &env); err != nil {
			c.sendError("invalid_json")
			continue
		}

		switch env.Type {
		case "sendMessage":
			c.handleSendMessage(env.ReceiverID, env.ConversationID, env.Content)
		case "joinConversation":
			if env.ConversationID == "" {
				c.sendError("missing_conversation_id")
				continue
			}
			c.hub.JoinRoom(c, env.ConversationID)
		case "leaveConversation":
			if env.ConversationID == "" {
				c.sendError("missing_conversation_id")
				continue
			}
			c.hub.LeaveRoom(c, env.ConversationID)
		default:
			c.sendError("unsupported_type")
		}
	}
}

// handleSendMessage delegates to the messaging service. The newMessage echo
// and mention notifications come back through the hub via the service's
// notifier; a failed send simply produces no echo.
func (c *Client) handleSendMessage(receiverID, conversationID, content string) {
	req := models.CreateMessageRequest{
		ReceiverID:     receiverID,
		ConversationID: conversationID,
		Content:        content,
	}
	if err := models.ValidateStruct(&req); err != nil {
		c.sendError("invalid_payload")
		return
	}

	senderID, err := uuid.Parse(c.userID)
	if err != nil {
		c.sendError("invalid_session")
		return
	}
	receiver, err := uuid.Parse(receiverID)
	if err != nil {
		c.sendError("invalid_receiver_id")
		return
	}

	if conversationID != "" {
		convID, err := uuid.Parse(conversationID)
		if err != nil {
			c.sendError("invalid_conversation_id")
			return
		}
		if _, err := c.messageSvc.CreateInConversation(convID, senderID, receiver, content); err != nil {
			log.Printf("ws: sendMessage failed for user %s: %v", c.userID, err)
			c.sendError("send_failed")
		}
		return
	}

	if _, err := c.messageSvc.Send(senderID, receiver, content); err != nil {
		log.Printf("ws: sendMessage failed for user %s: %v", c.userID, err)
		c.sendError("send_failed")
	}
}

func (c *Client) sendError(code string) {
	payload, _ := json.Marshal(Event{Type: "error", Data: code})
	select {
	case c.send <- payload:
	default:
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker((pongWait * 9) / 10)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// hub closed the channel
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
