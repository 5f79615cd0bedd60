package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	errs "github.com/techagentng/converse/errors"
	"github.com/techagentng/converse/models"
	"github.com/techagentng/converse/server/response"
)

// handleSendMessage creates a message. With a conversation_id it goes into
// that conversation; without one the direct conversation with the receiver
// is found or created. Sending to yourself creates a self-note.
func (s *Server) handleSendMessage() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			response.JSON(c, "", http.StatusUnauthorized, nil, errs.ErrUnauthenticated)
			return
		}

		var req models.CreateMessageRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.JSON(c, "", http.StatusBadRequest, nil, errs.New(err.Error(), http.StatusBadRequest))
			return
		}
		receiverID, err := uuid.Parse(req.ReceiverID)
		if err != nil {
			response.JSON(c, "", http.StatusBadRequest, nil, errs.New("invalid receiver_id", http.StatusBadRequest))
			return
		}

		var message *models.Message
		if req.ConversationID != "" {
			conversationID, err := uuid.Parse(req.ConversationID)
			if err != nil {
				response.JSON(c, "", http.StatusBadRequest, nil, errs.New("invalid conversation_id", http.StatusBadRequest))
				return
			}
			message, err = s.MessageService.CreateInConversation(conversationID, userID, receiverID, req.Content)
			if err != nil {
				response.HandleErrors(c, err)
				return
			}
		} else {
			message, err = s.MessageService.Send(userID, receiverID, req.Content)
			if err != nil {
				response.HandleErrors(c, err)
				return
			}
		}

		response.JSON(c, "Message sent successfully", http.StatusCreated, message, nil)
	}
}

func (s *Server) handleGetMessages() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			response.JSON(c, "", http.StatusUnauthorized, nil, errs.ErrUnauthenticated)
			return
		}

		messages, err := s.MessageService.MessagesForUser(userID)
		if err != nil {
			response.HandleErrors(c, err)
			return
		}
		response.JSON(c, "Messages retrieved successfully", http.StatusOK, messages, nil)
	}
}

func (s *Server) handleGetUnreadCount() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			response.JSON(c, "", http.StatusUnauthorized, nil, errs.ErrUnauthenticated)
			return
		}

		count, err := s.MessageService.UnreadCount(userID)
		if err != nil {
			response.HandleErrors(c, err)
			return
		}
		response.JSON(c, "Unread count retrieved successfully", http.StatusOK, gin.H{"unread_count": count}, nil)
	}
}

// handleGetMessagesWith returns the history with one other user, creating
// the direct conversation on first contact.
func (s *Server) handleGetMessagesWith() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			response.JSON(c, "", http.StatusUnauthorized, nil, errs.ErrUnauthenticated)
			return
		}
		receiverID, err := uuid.Parse(c.Param("receiverId"))
		if err != nil {
			response.JSON(c, "", http.StatusBadRequest, nil, errs.New("invalid receiver id", http.StatusBadRequest))
			return
		}

		thread, err := s.MessageService.MessagesWith(userID, receiverID)
		if err != nil {
			response.HandleErrors(c, err)
			return
		}
		response.JSON(c, "Messages retrieved successfully", http.StatusOK, thread, nil)
	}
}

// handleReplyToLast threads a reply off the most recent message exchanged
// with the given user.
func (s *Server) handleReplyToLast() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			response.JSON(c, "", http.StatusUnauthorized, nil, errs.ErrUnauthenticated)
			return
		}
		receiverID, err := uuid.Parse(c.Param("receiverId"))
		if err != nil {
			response.JSON(c, "", http.StatusBadRequest, nil, errs.New("invalid receiver id", http.StatusBadRequest))
			return
		}

		var req models.ReplyMessageRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.JSON(c, "", http.StatusBadRequest, nil, errs.New(err.Error(), http.StatusBadRequest))
			return
		}

		message, err := s.MessageService.ReplyToLastInConversation(receiverID, userID, req.Content)
		if err != nil {
			response.HandleErrors(c, err)
			return
		}
		response.JSON(c, "Reply created successfully", http.StatusCreated, message, nil)
	}
}

func (s *Server) handleReplyToMessage() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			response.JSON(c, "", http.StatusUnauthorized, nil, errs.ErrUnauthenticated)
			return
		}
		messageID, err := uuid.Parse(c.Param("messageId"))
		if err != nil {
			response.JSON(c, "", http.StatusNotFound, nil, errs.ErrNotFound)
			return
		}

		var req models.ReplyMessageRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.JSON(c, "", http.StatusBadRequest, nil, errs.New(err.Error(), http.StatusBadRequest))
			return
		}

		message, err := s.MessageService.ReplyTo(messageID, userID, req.Content)
		if err != nil {
			response.HandleErrors(c, err)
			return
		}
		response.JSON(c, "Reply created successfully", http.StatusCreated, message, nil)
	}
}

// handleCreateNote stores a personal note: a message to yourself, read at
// creation.
func (s *Server) handleCreateNote() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			response.JSON(c, "", http.StatusUnauthorized, nil, errs.ErrUnauthenticated)
			return
		}

		var req models.ReplyMessageRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.JSON(c, "", http.StatusBadRequest, nil, errs.New(err.Error(), http.StatusBadRequest))
			return
		}

		message, err := s.MessageService.Send(userID, userID, req.Content)
		if err != nil {
			response.HandleErrors(c, err)
			return
		}
		response.JSON(c, "Note created successfully", http.StatusCreated, message, nil)
	}
}

func (s *Server) handleGetNotes() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			response.JSON(c, "", http.StatusUnauthorized, nil, errs.ErrUnauthenticated)
			return
		}

		notes, err := s.ConversationService.ListForUser(userID, true)
		if err != nil {
			response.HandleErrors(c, err)
			return
		}
		response.JSON(c, "Notes retrieved successfully", http.StatusOK, notes, nil)
	}
}

func (s *Server) handleMarkMessageRead() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			response.JSON(c, "", http.StatusUnauthorized, nil, errs.ErrUnauthenticated)
			return
		}
		messageID, err := uuid.Parse(c.Param("messageId"))
		if err != nil {
			response.JSON(c, "", http.StatusNotFound, nil, errs.ErrNotFound)
			return
		}

		message, err := s.MessageService.MarkRead(messageID, userID)
		if err != nil {
			response.HandleErrors(c, err)
			return
		}
		response.JSON(c, "Message marked as read", http.StatusOK, message, nil)
	}
}

func (s *Server) handleDeleteMessage() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			response.JSON(c, "", http.StatusUnauthorized, nil, errs.ErrUnauthenticated)
			return
		}
		messageID, err := uuid.Parse(c.Param("messageId"))
		if err != nil {
			response.JSON(c, "", http.StatusNotFound, nil, errs.ErrNotFound)
			return
		}

		if err := s.MessageService.DeleteMessage(messageID, userID); err != nil {
			response.HandleErrors(c, err)
			return
		}
		response.JSON(c, "Message deleted successfully", http.StatusOK, nil, nil)
	}
}
