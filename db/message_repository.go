package db

import (
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/techagentng/converse/models"
	"gorm.io/gorm"
)

// MessageRepository owns message records and their mention/notification rows.
type MessageRepository interface {
	CreateMessage(message *models.Message) (*models.Message, error)
	FindMessageByID(id uuid.UUID) (*models.Message, error)
	ListByConversation(conversationID uuid.UUID) ([]models.Message, error)
	ListForUser(userID uuid.UUID) ([]models.Message, error)
	ListBetween(userA, userB uuid.UUID) ([]models.Message, error)
	LastBetween(userA, userB uuid.UUID) (*models.Message, error)
	LastInConversation(conversationID uuid.UUID) (*models.Message, error)
	MarkRead(messageID uuid.UUID, at time.Time) (bool, error)
	MarkConversationRead(conversationID, userID uuid.UUID, at time.Time) (int64, error)
	UnreadCount(userID uuid.UUID) (int64, error)
	UnreadCountInConversation(conversationID, userID uuid.UUID) (int64, error)
	DeleteMessage(id uuid.UUID) error
	SetMentions(messageID uuid.UUID, userIDs []uuid.UUID) error
	LedgerEntries(conversationID uuid.UUID) ([]models.ConversationLedger, error)
}

type messageRepo struct {
	DB *gorm.DB
}

// NewMessageRepo creates a new instance of MessageRepository
func NewMessageRepo(db *GormDB) MessageRepository {
	return &messageRepo{db.DB}
}

func (r *messageRepo) CreateMessage(message *models.Message) (*models.Message, error) {
	if err := r.DB.Create(message).Error; err != nil {
		return nil, errors.Wrap(err, "failed to create message")
	}
	return message, nil
}

func (r *messageRepo) FindMessageByID(id uuid.UUID) (*models.Message, error) {
	var message models.Message
	err := r.DB.
		Preload("Mentions").
		Preload("Notifications").
		Where("id = ?", id).
		First(&message).Error
	if err != nil {
		return nil, err
	}
	return &message, nil
}

func (r *messageRepo) ListByConversation(conversationID uuid.UUID) ([]models.Message, error) {
	var messages []models.Message
	err := r.DB.
		Preload("Mentions").
		Where("conversation_id = ?", conversationID).
		Order("created_at asc").
		Find(&messages).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list conversation messages")
	}
	return messages, nil
}

func (r *messageRepo) ListForUser(userID uuid.UUID) ([]models.Message, error) {
	var messages []models.Message
	err := r.DB.
		Where("sender_id = ? OR receiver_id = ?", userID, userID).
		Order("created_at asc").
		Find(&messages).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list user messages")
	}
	return messages, nil
}

func (r *messageRepo) ListBetween(userA, userB uuid.UUID) ([]models.Message, error) {
	var messages []models.Message
	err := r.DB.
		Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)",
			userA, userB, userB, userA).
		Order("created_at asc").
		Find(&messages).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list messages between users")
	}
	return messages, nil
}

func (r *messageRepo) LastBetween(userA, userB uuid.UUID) (*models.Message, error) {
	var message models.Message
	err := r.DB.
		Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)",
			userA, userB, userB, userA).
		Order("created_at desc").
		First(&message).Error
	if err != nil {
		return nil, err
	}
	return &message, nil
}

func (r *messageRepo) LastInConversation(conversationID uuid.UUID) (*models.Message, error) {
	var message models.Message
	err := r.DB.
		Where("conversation_id = ?", conversationID).
		Order("created_at desc").
		First(&message).Error
	if err != nil {
		return nil, err
	}
	return &message, nil
}

// MarkRead flips a message to read. The read = false guard makes the update
// idempotent under concurrent calls: only one caller observes the flip.
func (r *messageRepo) MarkRead(messageID uuid.UUID, at time.Time) (bool, error) {
	result := r.DB.Model(&models.Message{}).
		Where("id = ? AND read = ?", messageID, false).
		Updates(map[string]interface{}{
			"read":    true,
			"read_at": at,
		})
	if result.Error != nil {
		return false, errors.Wrap(result.Error, "failed to mark message read")
	}
	return result.RowsAffected > 0, nil
}

// MarkConversationRead bulk-transitions the unread messages addressed to the
// given user and reports how many it flipped.
func (r *messageRepo) MarkConversationRead(conversationID, userID uuid.UUID, at time.Time) (int64, error) {
	result := r.DB.Model(&models.Message{}).
		Where("conversation_id = ? AND receiver_id = ? AND sender_id <> ? AND read = ?",
			conversationID, userID, userID, false).
		Updates(map[string]interface{}{
			"read":    true,
			"read_at": at,
		})
	if result.Error != nil {
		return 0, errors.Wrap(result.Error, "failed to mark conversation read")
	}
	return result.RowsAffected, nil
}

func (r *messageRepo) UnreadCount(userID uuid.UUID) (int64, error) {
	var count int64
	err := r.DB.Model(&models.Message{}).
		Where("receiver_id = ? AND read = ?", userID, false).
		Count(&count).Error
	if err != nil {
		return 0, errors.Wrap(err, "failed to count unread messages")
	}
	return count, nil
}

func (r *messageRepo) UnreadCountInConversation(conversationID, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.DB.Model(&models.Message{}).
		Where("conversation_id = ? AND receiver_id = ? AND read = ?", conversationID, userID, false).
		Count(&count).Error
	if err != nil {
		return 0, errors.Wrap(err, "failed to count unread conversation messages")
	}
	return count, nil
}

// DeleteMessage removes the message and its mention rows. The conversation
// ledger keeps its entry; the ledger is an index, not the source of truth.
func (r *messageRepo) DeleteMessage(id uuid.UUID) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("message_id = ?", id).Delete(&models.MessageMention{}).Error; err != nil {
			return err
		}
		if err := tx.Where("message_id = ?", id).Delete(&models.MentionNotification{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&models.Message{}).Error
	})
}

// SetMentions replaces the message's mention set and appends one unread
// notification row per mentioned user.
func (r *messageRepo) SetMentions(messageID uuid.UUID, userIDs []uuid.UUID) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("message_id = ?", messageID).Delete(&models.MessageMention{}).Error; err != nil {
			return err
		}
		if err := tx.Where("message_id = ?", messageID).Delete(&models.MentionNotification{}).Error; err != nil {
			return err
		}
		for _, userID := range userIDs {
			mention := models.MessageMention{MessageID: messageID, UserID: userID}
			if err := tx.Create(&mention).Error; err != nil {
				return err
			}
			notification := models.MentionNotification{MessageID: messageID, UserID: userID, Read: false}
			if err := tx.Create(&notification).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *messageRepo) LedgerEntries(conversationID uuid.UUID) ([]models.ConversationLedger, error) {
	var entries []models.ConversationLedger
	err := r.DB.
		Where("conversation_id = ?", conversationID).
		Order("seq asc").
		Find(&entries).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list ledger entries")
	}
	return entries, nil
}
