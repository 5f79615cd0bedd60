package server

import (
	"fmt"
	"net/http"
	"os"
	"time"

	ratelimit "github.com/JGLTechnologies/gin-rate-limit"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	errs "github.com/techagentng/converse/errors"
	"github.com/techagentng/converse/server/response"
	"github.com/techagentng/converse/ws"
)

func (s *Server) setupRouter() *gin.Engine {
	ginMode := os.Getenv("GIN_MODE")
	if ginMode == "test" {
		r := gin.New()
		s.defineRoutes(r)
		return r
	}

	r := gin.New()
	r.Use(gin.LoggerWithFormatter(func(param gin.LogFormatterParams) string {
		return fmt.Sprintf("%s - [%s] \"%s %s %s %d %s \"%s\" %s\"\n",
			param.ClientIP,
			param.TimeStamp.Format(time.RFC1123),
			param.Method,
			param.Path,
			param.Request.Proto,
			param.StatusCode,
			param.Latency,
			param.Request.UserAgent(),
			param.ErrorMessage,
		)
	}))
	r.Use(gin.Recovery())

	r.Use(cors.New(cors.Config{
		AllowAllOrigins:  true,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE"},
		AllowHeaders:     []string{"Origin", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	s.defineRoutes(r)

	return r
}

func (s *Server) defineRoutes(router *gin.Engine) {
	limitSends := limitRateForMessageSend(ratelimit.InMemoryStore(&ratelimit.InMemoryOptions{
		Rate:  time.Second,
		Limit: 5,
	}))

	apirouter := router.Group("/api/v1")
	apirouter.GET("/ws", func(c *gin.Context) {
		ws.ServeWS(s.Hub, s.MessageService, s.Config.JWTSecret, c)
	})

	authorized := apirouter.Group("/")
	authorized.Use(s.Authorize())
	authorized.POST("/messages", limitSends, s.handleSendMessage())
	authorized.GET("/messages", s.handleGetMessages())
	authorized.GET("/messages/unread-count", s.handleGetUnreadCount())
	authorized.GET("/messages/conversations", s.handleGetConversations())
	authorized.GET("/messages/conversations/:conversationId", s.handleGetConversationMessages())
	authorized.PATCH("/messages/conversations/:conversationId/read", s.handleMarkConversationRead())
	authorized.POST("/messages/conversations/:conversationId/users/:userId", s.handleAddParticipant())
	authorized.DELETE("/messages/conversations/:conversationId/users/:userId", s.handleRemoveParticipant())
	authorized.GET("/messages/with/:receiverId", s.handleGetMessagesWith())
	authorized.POST("/messages/with/:receiverId/reply", limitSends, s.handleReplyToLast())
	authorized.POST("/messages/notes", limitSends, s.handleCreateNote())
	authorized.GET("/messages/notes", s.handleGetNotes())
	authorized.POST("/messages/:messageId/reply", limitSends, s.handleReplyToMessage())
	authorized.PATCH("/messages/:messageId/read", s.handleMarkMessageRead())
	authorized.DELETE("/messages/:messageId", s.handleDeleteMessage())
}

// limitRateForMessageSend keys send throttling on the authenticated user,
// falling back to the client ip for the handshake edge cases.
func limitRateForMessageSend(store ratelimit.Store) gin.HandlerFunc {
	return ratelimit.RateLimiter(store, &ratelimit.Options{
		ErrorHandler: func(c *gin.Context, info ratelimit.Info) {
			response.JSON(c, "", http.StatusTooManyRequests,
				nil, errs.New("too many messages, slow down", http.StatusTooManyRequests))
			c.Abort()
		},
		KeyFunc: func(c *gin.Context) string {
			if userID, ok := currentUserID(c); ok {
				return userID.String()
			}
			return c.ClientIP()
		},
	})
}
