package services

import (
	"errors"
	"log"
	"sort"

	"github.com/google/uuid"
	"github.com/techagentng/converse/config"
	"github.com/techagentng/converse/db"
	apiError "github.com/techagentng/converse/errors"
	"github.com/techagentng/converse/models"
	"gorm.io/gorm"
)

// ConversationService enforces conversation invariants: idempotent
// find-or-create per participant pair, membership checks, and the
// minimum-participant rule on removal.
type ConversationService interface {
	FindOrCreateDirect(userA, userB uuid.UUID) (*models.Conversation, error)
	FindOrCreateSelfNote(userID uuid.UUID) (*models.Conversation, error)
	CheckMembership(conversationID, userID uuid.UUID) (bool, error)
	AddParticipant(conversationID, requesterID, newUserID uuid.UUID) (*models.Conversation, error)
	RemoveParticipant(conversationID, requesterID, targetID uuid.UUID) (*models.Conversation, error)
	ListForUser(userID uuid.UUID, notesOnly bool) ([]models.ConversationSummary, error)
	ConversationMessages(conversationID, userID uuid.UUID) ([]models.MessageResponse, error)
}

type conversationService struct {
	Config           *config.Config
	conversationRepo db.ConversationRepository
	messageRepo      db.MessageRepository
	userRepo         db.UserRepository
}

// NewConversationService instantiate a conversationService
func NewConversationService(conversationRepo db.ConversationRepository, messageRepo db.MessageRepository, userRepo db.UserRepository, conf *config.Config) ConversationService {
	return &conversationService{
		Config:           conf,
		conversationRepo: conversationRepo,
		messageRepo:      messageRepo,
		userRepo:         userRepo,
	}
}

// FindOrCreateDirect returns the one direct conversation for the unordered
// pair, creating it when absent. The pair-key unique index resolves the
// find-then-create race: the loser of a concurrent insert re-reads the
// winner's row.
func (s *conversationService) FindOrCreateDirect(userA, userB uuid.UUID) (*models.Conversation, error) {
	if userA == userB {
		return s.FindOrCreateSelfNote(userA)
	}
	key := models.DirectPairKey(userA, userB)
	return s.findOrCreate(key, false, []uuid.UUID{userA, userB})
}

// FindOrCreateSelfNote returns the user's single-participant notes
// conversation, creating it when absent.
func (s *conversationService) FindOrCreateSelfNote(userID uuid.UUID) (*models.Conversation, error) {
	key := models.SelfNoteKey(userID)
	return s.findOrCreate(key, true, []uuid.UUID{userID})
}

func (s *conversationService) findOrCreate(pairKey string, selfNote bool, participantIDs []uuid.UUID) (*models.Conversation, error) {
	conversation, err := s.conversationRepo.FindByPairKey(pairKey)
	if err == nil {
		return conversation, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	created, createErr := s.conversationRepo.CreateWithParticipants(&models.Conversation{
		IsSelfNote: selfNote,
		PairKey:    &pairKey,
	}, participantIDs)
	if createErr == nil {
		return created, nil
	}

	// A concurrent caller may have created the conversation between our
	// lookup and insert; the unique index on pair_key rejects the second
	// insert, so re-read before giving up.
	conversation, err = s.conversationRepo.FindByPairKey(pairKey)
	if err == nil {
		return conversation, nil
	}
	log.Printf("findOrCreate conversation error: %v", createErr)
	return nil, createErr
}

func (s *conversationService) CheckMembership(conversationID, userID uuid.UUID) (bool, error) {
	return s.conversationRepo.IsParticipant(conversationID, userID)
}

// AddParticipant appends a member and emits a system "user joined" message
// from the requester to the new member, giving them an initial unread signal.
func (s *conversationService) AddParticipant(conversationID, requesterID, newUserID uuid.UUID) (*models.Conversation, error) {
	isMember, err := s.conversationRepo.IsParticipant(conversationID, requesterID)
	if err != nil {
		return nil, err
	}
	if !isMember {
		return nil, apiError.ErrNotAuthorized
	}

	if err := s.conversationRepo.AddParticipant(conversationID, newUserID); err != nil {
		return nil, err
	}

	if err := s.emitSystemMessage(conversationID, requesterID, newUserID, "A new user has joined the conversation"); err != nil {
		log.Printf("AddParticipant: failed to emit join message: %v", err)
	}

	return s.conversationRepo.FindConversationByID(conversationID)
}

// RemoveParticipant drops a member and emits a system "user left" message.
// Removal is rejected when it would leave fewer than 2 participants.
func (s *conversationService) RemoveParticipant(conversationID, requesterID, targetID uuid.UUID) (*models.Conversation, error) {
	isMember, err := s.conversationRepo.IsParticipant(conversationID, requesterID)
	if err != nil {
		return nil, err
	}
	if !isMember {
		return nil, apiError.ErrNotAuthorized
	}

	if err := s.conversationRepo.RemoveParticipant(conversationID, targetID); err != nil {
		return nil, err
	}

	if err := s.emitSystemMessage(conversationID, requesterID, targetID, "A user has left the conversation"); err != nil {
		log.Printf("RemoveParticipant: failed to emit leave message: %v", err)
	}

	return s.conversationRepo.FindConversationByID(conversationID)
}

func (s *conversationService) emitSystemMessage(conversationID, senderID, receiverID uuid.UUID, content string) error {
	message, err := s.messageRepo.CreateMessage(&models.Message{
		ConversationID: conversationID,
		SenderID:       senderID,
		ReceiverID:     receiverID,
		Content:        content,
		IsSystem:       true,
	})
	if err != nil {
		return err
	}
	return s.conversationRepo.AppendLedger(conversationID, message.ID, message.CreatedAt)
}

// ListForUser builds one summary per conversation the user belongs to,
// ordered by most recent activity. Unread counts are scoped to messages
// addressed to the viewer.
func (s *conversationService) ListForUser(userID uuid.UUID, notesOnly bool) ([]models.ConversationSummary, error) {
	conversations, err := s.conversationRepo.ListForUser(userID)
	if err != nil {
		return nil, err
	}

	summaries := make([]models.ConversationSummary, 0, len(conversations))
	for i := range conversations {
		conversation := conversations[i]
		if notesOnly && !conversation.IsSelfNote {
			continue
		}
		summary, err := s.buildSummary(&conversation, userID)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, *summary)
	}

	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].LastActivity.After(summaries[j].LastActivity)
	})
	return summaries, nil
}

func (s *conversationService) buildSummary(conversation *models.Conversation, viewerID uuid.UUID) (*models.ConversationSummary, error) {
	participantIDs, err := s.conversationRepo.ParticipantIDs(conversation.ID)
	if err != nil {
		return nil, err
	}
	participants, err := s.userRepo.FindUsersByIDs(participantIDs)
	if err != nil {
		return nil, err
	}

	participantSummaries := make([]models.UserSummary, 0, len(participants))
	var other *models.User
	for i := range participants {
		participantSummaries = append(participantSummaries, participants[i].Summary())
		if participants[i].ID != viewerID {
			other = &participants[i]
		}
	}

	isGroup := len(participantIDs) > 2
	chatTitle := ""
	if conversation.IsSelfNote {
		chatTitle = "Notes"
	} else if !isGroup && other != nil {
		chatTitle = other.DisplayName()
	}

	lastActivity := conversation.UpdatedAt
	var lastMessage *models.LastMessageSummary
	last, err := s.messageRepo.LastInConversation(conversation.ID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if last != nil {
		sender := models.UserSummary{ID: last.SenderID.String()}
		if senderUser, err := s.userRepo.FindUserByID(last.SenderID); err == nil {
			sender = senderUser.Summary()
		}
		lastMessage = &models.LastMessageSummary{
			ID:         last.ID.String(),
			Content:    last.Content,
			Sender:     sender,
			CreatedAt:  last.CreatedAt,
			IsOutgoing: last.SenderID == viewerID,
		}
		lastActivity = last.CreatedAt
	}

	unread, err := s.messageRepo.UnreadCountInConversation(conversation.ID, viewerID)
	if err != nil {
		return nil, err
	}

	return &models.ConversationSummary{
		ID:           conversation.ID.String(),
		ChatTitle:    chatTitle,
		IsGroup:      isGroup,
		IsSelfNote:   conversation.IsSelfNote,
		Participants: participantSummaries,
		LastMessage:  lastMessage,
		UnreadCount:  unread,
		LastActivity: lastActivity,
		CreatedAt:    conversation.CreatedAt,
		UpdatedAt:    conversation.UpdatedAt,
	}, nil
}

// ConversationMessages returns the conversation history for a member.
// Non-members get NotFound rather than NotAuthorized so they cannot tell
// whether the conversation exists.
func (s *conversationService) ConversationMessages(conversationID, userID uuid.UUID) ([]models.MessageResponse, error) {
	isMember, err := s.conversationRepo.IsParticipant(conversationID, userID)
	if err != nil {
		return nil, err
	}
	if !isMember {
		return nil, apiError.ErrNotFound
	}

	messages, err := s.messageRepo.ListByConversation(conversationID)
	if err != nil {
		return nil, err
	}
	return s.projectMessages(messages)
}

// projectMessages resolves referenced user and parent-message ids into
// display summaries. Entities stay reference-only in storage; this is the
// explicit read-side join.
func (s *conversationService) projectMessages(messages []models.Message) ([]models.MessageResponse, error) {
	userIDs := make(map[uuid.UUID]struct{})
	for i := range messages {
		userIDs[messages[i].SenderID] = struct{}{}
		userIDs[messages[i].ReceiverID] = struct{}{}
	}
	ids := make([]uuid.UUID, 0, len(userIDs))
	for id := range userIDs {
		ids = append(ids, id)
	}
	users, err := s.userRepo.FindUsersByIDs(ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]models.UserSummary, len(users))
	for i := range users {
		byID[users[i].ID] = users[i].Summary()
	}
	lookup := func(id uuid.UUID) models.UserSummary {
		if summary, ok := byID[id]; ok {
			return summary
		}
		return models.UserSummary{ID: id.String()}
	}

	responses := make([]models.MessageResponse, 0, len(messages))
	for i := range messages {
		message := messages[i]
		response := models.MessageResponse{
			ID:             message.ID.String(),
			Content:        message.Content,
			Sender:         lookup(message.SenderID),
			Receiver:       lookup(message.ReceiverID),
			ConversationID: message.ConversationID.String(),
			Read:           message.Read,
			ReadAt:         message.ReadAt,
			IsReply:        message.IsReply,
			IsSystem:       message.IsSystem,
			CreatedAt:      message.CreatedAt,
			UpdatedAt:      message.UpdatedAt,
		}
		for _, mention := range message.Mentions {
			response.Mentions = append(response.Mentions, mention.UserID.String())
		}
		if message.ParentMessageID != nil {
			parent, err := s.messageRepo.FindMessageByID(*message.ParentMessageID)
			if err == nil {
				response.ParentMessage = &models.ParentMessageSummary{
					ID:      parent.ID.String(),
					Content: parent.Content,
					Sender:  lookup(parent.SenderID),
				}
			}
		}
		responses = append(responses, response)
	}
	return responses, nil
}
