package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	errs "github.com/techagentng/converse/errors"
	"github.com/techagentng/converse/server/response"
)

func (s *Server) handleGetConversations() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			response.JSON(c, "", http.StatusUnauthorized, nil, errs.ErrUnauthenticated)
			return
		}

		conversations, err := s.ConversationService.ListForUser(userID, false)
		if err != nil {
			response.HandleErrors(c, err)
			return
		}
		response.JSON(c, "Conversations retrieved successfully", http.StatusOK, conversations, nil)
	}
}

func (s *Server) handleGetConversationMessages() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			response.JSON(c, "", http.StatusUnauthorized, nil, errs.ErrUnauthenticated)
			return
		}
		conversationID, err := uuid.Parse(c.Param("conversationId"))
		if err != nil {
			response.JSON(c, "", http.StatusNotFound, nil, errs.ErrNotFound)
			return
		}

		messages, err := s.ConversationService.ConversationMessages(conversationID, userID)
		if err != nil {
			response.HandleErrors(c, err)
			return
		}
		response.JSON(c, "Messages retrieved successfully", http.StatusOK, messages, nil)
	}
}

func (s *Server) handleMarkConversationRead() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			response.JSON(c, "", http.StatusUnauthorized, nil, errs.ErrUnauthenticated)
			return
		}
		conversationID, err := uuid.Parse(c.Param("conversationId"))
		if err != nil {
			response.JSON(c, "", http.StatusNotFound, nil, errs.ErrNotFound)
			return
		}

		count, err := s.MessageService.MarkConversationRead(conversationID, userID)
		if err != nil {
			response.HandleErrors(c, err)
			return
		}
		response.JSON(c, "Messages marked as read", http.StatusOK, gin.H{"updated_count": count}, nil)
	}
}

func (s *Server) handleAddParticipant() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			response.JSON(c, "", http.StatusUnauthorized, nil, errs.ErrUnauthenticated)
			return
		}
		conversationID, err := uuid.Parse(c.Param("conversationId"))
		if err != nil {
			response.JSON(c, "", http.StatusNotFound, nil, errs.ErrNotFound)
			return
		}
		newUserID, err := uuid.Parse(c.Param("userId"))
		if err != nil {
			response.JSON(c, "", http.StatusBadRequest, nil, errs.New("invalid user id", http.StatusBadRequest))
			return
		}

		conversation, err := s.ConversationService.AddParticipant(conversationID, userID, newUserID)
		if err != nil {
			response.HandleErrors(c, err)
			return
		}
		response.JSON(c, "User added to conversation successfully", http.StatusOK, conversation, nil)
	}
}

func (s *Server) handleRemoveParticipant() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			response.JSON(c, "", http.StatusUnauthorized, nil, errs.ErrUnauthenticated)
			return
		}
		conversationID, err := uuid.Parse(c.Param("conversationId"))
		if err != nil {
			response.JSON(c, "", http.StatusNotFound, nil, errs.ErrNotFound)
			return
		}
		targetID, err := uuid.Parse(c.Param("userId"))
		if err != nil {
			response.JSON(c, "", http.StatusBadRequest, nil, errs.New("invalid user id", http.StatusBadRequest))
			return
		}

		conversation, err := s.ConversationService.RemoveParticipant(conversationID, userID, targetID)
		if err != nil {
			response.HandleErrors(c, err)
			return
		}
		response.JSON(c, "User removed from conversation successfully", http.StatusOK, conversation, nil)
	}
}
