package services

import (
	"errors"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/techagentng/converse/config"
	"github.com/techagentng/converse/db"
	apiError "github.com/techagentng/converse/errors"
	"github.com/techagentng/converse/models"
	"gorm.io/gorm"
)

// MessageNotifier receives fan-out events after a message is stored. The
// real-time gateway implements it; a nil notifier disables fan-out.
type MessageNotifier interface {
	MessageCreated(message *models.Message)
	MentionNotification(userID uuid.UUID, message *models.Message)
}

// MessageService orchestrates message creation, reply threading, read-state
// transitions and unread counting.
type MessageService interface {
	Send(senderID, receiverID uuid.UUID, content string) (*models.Message, error)
	CreateInConversation(conversationID, senderID, receiverID uuid.UUID, content string) (*models.Message, error)
	ReplyTo(parentMessageID, senderID uuid.UUID, content string) (*models.Message, error)
	ReplyToLastInConversation(receiverID, senderID uuid.UUID, content string) (*models.Message, error)
	MarkRead(messageID, userID uuid.UUID) (*models.Message, error)
	MarkConversationRead(conversationID, userID uuid.UUID) (int64, error)
	UnreadCount(userID uuid.UUID) (int64, error)
	DeleteMessage(messageID, requesterID uuid.UUID) error
	MessagesForUser(userID uuid.UUID) ([]models.Message, error)
	MessagesWith(userID, otherID uuid.UUID) (*models.ConversationThread, error)
}

type messageService struct {
	Config              *config.Config
	conversationService ConversationService
	mentionService      MentionService
	conversationRepo    db.ConversationRepository
	messageRepo         db.MessageRepository
	notifier            MessageNotifier
}

// NewMessageService instantiate a messageService
func NewMessageService(conversationService ConversationService, mentionService MentionService, conversationRepo db.ConversationRepository, messageRepo db.MessageRepository, notifier MessageNotifier, conf *config.Config) MessageService {
	return &messageService{
		Config:              conf,
		conversationService: conversationService,
		mentionService:      mentionService,
		conversationRepo:    conversationRepo,
		messageRepo:         messageRepo,
		notifier:            notifier,
	}
}

// Send stores a message in the direct conversation between sender and
// receiver, creating the conversation on first contact. Sending to yourself
// produces a self-note, which is read at creation.
func (s *messageService) Send(senderID, receiverID uuid.UUID, content string) (*models.Message, error) {
	if strings.TrimSpace(content) == "" {
		return nil, apiError.ErrEmptyContent
	}

	conversation, err := s.conversationService.FindOrCreateDirect(senderID, receiverID)
	if err != nil {
		return nil, err
	}
	return s.persist(&models.Message{
		ConversationID: conversation.ID,
		SenderID:       senderID,
		ReceiverID:     receiverID,
		Content:        content,
	}, conversation.IsSelfNote)
}

// CreateInConversation stores a message inside an existing conversation.
// Both parties must already be members; a missing conversation and a missing
// membership are reported identically as NotFound.
func (s *messageService) CreateInConversation(conversationID, senderID, receiverID uuid.UUID, content string) (*models.Message, error) {
	if strings.TrimSpace(content) == "" {
		return nil, apiError.ErrEmptyContent
	}

	for _, userID := range []uuid.UUID{senderID, receiverID} {
		isMember, err := s.conversationService.CheckMembership(conversationID, userID)
		if err != nil {
			return nil, err
		}
		if !isMember {
			return nil, apiError.ErrNotFound
		}
	}

	conversation, err := s.conversationRepo.FindConversationByID(conversationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apiError.ErrNotFound
		}
		return nil, err
	}
	return s.persist(&models.Message{
		ConversationID: conversation.ID,
		SenderID:       senderID,
		ReceiverID:     receiverID,
		Content:        content,
	}, conversation.IsSelfNote)
}

// ReplyTo threads a reply off a specific parent message. Only a party to the
// parent may reply; the reply goes to the other side.
func (s *messageService) ReplyTo(parentMessageID, senderID uuid.UUID, content string) (*models.Message, error) {
	if strings.TrimSpace(content) == "" {
		return nil, apiError.ErrEmptyContent
	}

	parent, err := s.messageRepo.FindMessageByID(parentMessageID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apiError.ErrNotFound
		}
		return nil, err
	}
	if senderID != parent.SenderID && senderID != parent.ReceiverID {
		return nil, apiError.ErrNotAuthorized
	}

	receiverID := parent.SenderID
	if senderID == parent.SenderID {
		receiverID = parent.ReceiverID
	}

	conversation, err := s.conversationRepo.FindConversationByID(parent.ConversationID)
	if err != nil {
		return nil, err
	}
	parentID := parent.ID
	return s.persist(&models.Message{
		ConversationID:  parent.ConversationID,
		SenderID:        senderID,
		ReceiverID:      receiverID,
		Content:         content,
		ParentMessageID: &parentID,
		IsReply:         true,
	}, conversation.IsSelfNote)
}

// ReplyToLastInConversation threads a reply off the most recent message
// exchanged between the two users.
func (s *messageService) ReplyToLastInConversation(receiverID, senderID uuid.UUID, content string) (*models.Message, error) {
	if strings.TrimSpace(content) == "" {
		return nil, apiError.ErrEmptyContent
	}

	last, err := s.messageRepo.LastBetween(senderID, receiverID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apiError.ErrNoPriorMessage
		}
		return nil, err
	}

	conversation, err := s.conversationRepo.FindConversationByID(last.ConversationID)
	if err != nil {
		return nil, err
	}
	parentID := last.ID
	return s.persist(&models.Message{
		ConversationID:  last.ConversationID,
		SenderID:        senderID,
		ReceiverID:      receiverID,
		Content:         content,
		ParentMessageID: &parentID,
		IsReply:         true,
	}, conversation.IsSelfNote)
}

// persist is the shared tail of every create path: store the message, append
// the ledger entry and bump conversation activity, attach mentions, then fan
// out. A failed ledger append leaves the message queryable by conversation
// id; the ledger is an index, not the membership record.
func (s *messageService) persist(message *models.Message, selfNote bool) (*models.Message, error) {
	if selfNote {
		now := time.Now()
		message.Read = true
		message.ReadAt = &now
	}

	stored, err := s.messageRepo.CreateMessage(message)
	if err != nil {
		return nil, err
	}

	if err := s.conversationRepo.AppendLedger(stored.ConversationID, stored.ID, stored.CreatedAt); err != nil {
		log.Printf("persist: ledger append failed for message %s: %v", stored.ID, err)
	}

	candidates := s.mentionService.Detect(stored.Content)
	if len(candidates) > 0 {
		resolved, err := s.mentionService.Resolve(candidates)
		if err != nil {
			log.Printf("persist: mention resolution failed for message %s: %v", stored.ID, err)
		} else if len(resolved) > 0 {
			if err := s.mentionService.AttachNotifications(stored.ID, resolved); err != nil {
				log.Printf("persist: failed to attach mention notifications: %v", err)
			} else if refreshed, err := s.messageRepo.FindMessageByID(stored.ID); err == nil {
				stored = refreshed
			}
		}
	}

	if s.notifier != nil {
		s.notifier.MessageCreated(stored)
		for _, userID := range stored.MentionedUserIDs() {
			s.notifier.MentionNotification(userID, stored)
		}
	}
	return stored, nil
}

// MarkRead transitions one message to read. Only the receiver may trigger
// the transition; marking an already-read message is a no-op.
func (s *messageService) MarkRead(messageID, userID uuid.UUID) (*models.Message, error) {
	message, err := s.messageRepo.FindMessageByID(messageID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apiError.ErrNotFound
		}
		return nil, err
	}
	if userID != message.SenderID && userID != message.ReceiverID {
		return nil, apiError.ErrNotFound
	}
	if userID != message.ReceiverID {
		return nil, apiError.ErrNotAuthorized
	}

	if message.Read {
		return message, nil
	}
	if _, err := s.messageRepo.MarkRead(messageID, time.Now()); err != nil {
		return nil, err
	}
	return s.messageRepo.FindMessageByID(messageID)
}

// MarkConversationRead bulk-transitions the viewer's unread messages in a
// conversation and stamps the conversation's last-read time.
func (s *messageService) MarkConversationRead(conversationID, userID uuid.UUID) (int64, error) {
	isMember, err := s.conversationService.CheckMembership(conversationID, userID)
	if err != nil {
		return 0, err
	}
	if !isMember {
		return 0, apiError.ErrNotFound
	}

	now := time.Now()
	count, err := s.messageRepo.MarkConversationRead(conversationID, userID, now)
	if err != nil {
		return 0, err
	}
	if err := s.conversationRepo.StampLastRead(conversationID, now); err != nil {
		log.Printf("MarkConversationRead: failed to stamp last read: %v", err)
	}
	return count, nil
}

func (s *messageService) UnreadCount(userID uuid.UUID) (int64, error) {
	return s.messageRepo.UnreadCount(userID)
}

// DeleteMessage removes a message for its sender or receiver. The
// conversation ledger keeps the dangling id; cleanup is not worth a scan.
func (s *messageService) DeleteMessage(messageID, requesterID uuid.UUID) error {
	message, err := s.messageRepo.FindMessageByID(messageID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apiError.ErrNotFound
		}
		return err
	}
	if requesterID != message.SenderID && requesterID != message.ReceiverID {
		return apiError.ErrNotAuthorized
	}
	return s.messageRepo.DeleteMessage(messageID)
}

func (s *messageService) MessagesForUser(userID uuid.UUID) ([]models.Message, error) {
	return s.messageRepo.ListForUser(userID)
}

// MessagesWith returns the direct conversation with another user plus its
// history, creating the conversation on first contact.
func (s *messageService) MessagesWith(userID, otherID uuid.UUID) (*models.ConversationThread, error) {
	existing := true
	key := models.DirectPairKey(userID, otherID)
	if userID == otherID {
		key = models.SelfNoteKey(userID)
	}
	if _, err := s.conversationRepo.FindByPairKey(key); errors.Is(err, gorm.ErrRecordNotFound) {
		existing = false
	}

	conversation, err := s.conversationService.FindOrCreateDirect(userID, otherID)
	if err != nil {
		return nil, err
	}
	messages, err := s.conversationService.ConversationMessages(conversation.ID, userID)
	if err != nil {
		return nil, err
	}
	return &models.ConversationThread{
		ConversationID:    conversation.ID.String(),
		IsNewConversation: !existing,
		Messages:          messages,
	}, nil
}
