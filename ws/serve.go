package ws

import (
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	apiError "github.com/techagentng/converse/errors"
	"github.com/techagentng/converse/services"
	jwtPackage "github.com/techagentng/converse/services/jwt"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ServeWS authenticates the handshake, upgrades the connection, and starts
// the client pumps. Browsers cannot set headers on a WebSocket handshake, so
// the token is accepted from the "token" query parameter as well as the
// Authorization header. An unverifiable token ends the connection before the
// upgrade; no channel exists yet to deliver a structured error.
func ServeWS(h *Hub, messageSvc services.MessageService, jwtSecret string, c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		auth := c.GetHeader("Authorization")
		parts := strings.SplitN(auth, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			token = parts[1]
		}
	}
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": apiError.ErrUnauthenticated.Message})
		return
	}

	claims, err := jwtPackage.ValidateAndGetClaims(token, jwtSecret)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": apiError.ErrUnauthenticated.Message})
		return
	}
	userID, err := jwtPackage.UserIDFromClaims(claims)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": apiError.ErrUnauthenticated.Message})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("ws: upgrade failed: %v", err)
		return
	}

	client := &Client{
		hub:        h,
		conn:       conn,
		send:       make(chan []byte, 256),
		userID:     userID,
		messageSvc: messageSvc,
	}
	h.RegisterClient(client)

	go client.writePump()
	go client.readPump()
}
