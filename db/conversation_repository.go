package db

import (
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	apiError "github.com/techagentng/converse/errors"
	"github.com/techagentng/converse/models"
	"gorm.io/gorm"
)

// ConversationRepository owns conversation records: the participant set, the
// append-only message-id ledger, and the activity timestamps.
type ConversationRepository interface {
	CreateWithParticipants(conversation *models.Conversation, participantIDs []uuid.UUID) (*models.Conversation, error)
	FindByPairKey(key string) (*models.Conversation, error)
	FindConversationByID(id uuid.UUID) (*models.Conversation, error)
	IsParticipant(conversationID, userID uuid.UUID) (bool, error)
	ParticipantIDs(conversationID uuid.UUID) ([]uuid.UUID, error)
	AddParticipant(conversationID, userID uuid.UUID) error
	RemoveParticipant(conversationID, userID uuid.UUID) error
	ListForUser(userID uuid.UUID) ([]models.Conversation, error)
	AppendLedger(conversationID, messageID uuid.UUID, at time.Time) error
	StampLastRead(conversationID uuid.UUID, at time.Time) error
}

type conversationRepo struct {
	DB *gorm.DB
}

// NewConversationRepo creates a new instance of ConversationRepository
func NewConversationRepo(db *GormDB) ConversationRepository {
	return &conversationRepo{db.DB}
}

func (r *conversationRepo) CreateWithParticipants(conversation *models.Conversation, participantIDs []uuid.UUID) (*models.Conversation, error) {
	err := r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(conversation).Error; err != nil {
			return err
		}
		for _, userID := range participantIDs {
			participant := models.ConversationParticipant{
				ConversationID: conversation.ID,
				UserID:         userID,
			}
			if err := tx.Create(&participant).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return conversation, nil
}

func (r *conversationRepo) FindByPairKey(key string) (*models.Conversation, error) {
	var conversation models.Conversation
	if err := r.DB.Where("pair_key = ?", key).First(&conversation).Error; err != nil {
		return nil, err
	}
	return &conversation, nil
}

func (r *conversationRepo) FindConversationByID(id uuid.UUID) (*models.Conversation, error) {
	var conversation models.Conversation
	if err := r.DB.Where("id = ?", id).First(&conversation).Error; err != nil {
		return nil, err
	}
	return &conversation, nil
}

func (r *conversationRepo) IsParticipant(conversationID, userID uuid.UUID) (bool, error) {
	var count int64
	err := r.DB.Model(&models.ConversationParticipant{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Count(&count).Error
	if err != nil {
		return false, errors.Wrap(err, "failed to check conversation membership")
	}
	return count > 0, nil
}

func (r *conversationRepo) ParticipantIDs(conversationID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.DB.Model(&models.ConversationParticipant{}).
		Where("conversation_id = ?", conversationID).
		Order("created_at asc").
		Pluck("user_id", &ids).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list conversation participants")
	}
	return ids, nil
}

// AddParticipant appends a membership row, clears the direct pair key (the
// conversation no longer stands for a single pair), and bumps updated_at.
func (r *conversationRepo) AddParticipant(conversationID, userID uuid.UUID) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.ConversationParticipant{}).
			Where("conversation_id = ? AND user_id = ?", conversationID, userID).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return apiError.ErrAlreadyMember
		}

		participant := models.ConversationParticipant{
			ConversationID: conversationID,
			UserID:         userID,
		}
		if err := tx.Create(&participant).Error; err != nil {
			return err
		}

		return tx.Model(&models.Conversation{}).
			Where("id = ?", conversationID).
			Updates(map[string]interface{}{
				"pair_key":   nil,
				"updated_at": time.Now(),
			}).Error
	})
}

// RemoveParticipant removes a membership row inside a transaction so two
// concurrent removals cannot drop a conversation below two participants.
func (r *conversationRepo) RemoveParticipant(conversationID, userID uuid.UUID) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.ConversationParticipant{}).
			Where("conversation_id = ? AND user_id = ?", conversationID, userID).
			Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return apiError.ErrNotMember
		}

		var total int64
		if err := tx.Model(&models.ConversationParticipant{}).
			Where("conversation_id = ?", conversationID).
			Count(&total).Error; err != nil {
			return err
		}
		if total-1 < 2 {
			return apiError.ErrMinimumParticipants
		}

		if err := tx.
			Where("conversation_id = ? AND user_id = ?", conversationID, userID).
			Delete(&models.ConversationParticipant{}).Error; err != nil {
			return err
		}

		return tx.Model(&models.Conversation{}).
			Where("id = ?", conversationID).
			Update("updated_at", time.Now()).Error
	})
}

func (r *conversationRepo) ListForUser(userID uuid.UUID) ([]models.Conversation, error) {
	var conversations []models.Conversation
	err := r.DB.
		Joins("JOIN conversation_participants ON conversation_participants.conversation_id = conversations.id").
		Where("conversation_participants.user_id = ?", userID).
		Order("conversations.updated_at desc").
		Find(&conversations).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list conversations for user")
	}
	return conversations, nil
}

// AppendLedger records a message id on the conversation's ledger and bumps
// last_message_at/updated_at in the same transaction, so a ledger append is
// atomic with the activity bump.
func (r *conversationRepo) AppendLedger(conversationID, messageID uuid.UUID, at time.Time) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		entry := models.ConversationLedger{
			ConversationID: conversationID,
			MessageID:      messageID,
			CreatedAt:      at,
		}
		if err := tx.Create(&entry).Error; err != nil {
			return err
		}
		return tx.Model(&models.Conversation{}).
			Where("id = ?", conversationID).
			Updates(map[string]interface{}{
				"last_message_at": at,
				"updated_at":      at,
			}).Error
	})
}

func (r *conversationRepo) StampLastRead(conversationID uuid.UUID, at time.Time) error {
	return r.DB.Model(&models.Conversation{}).
		Where("id = ?", conversationID).
		Update("last_read_at", at).Error
}
