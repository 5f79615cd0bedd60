package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Message is a single message inside a conversation. The model is pairwise:
// every message carries one sender and one receiver even when the owning
// conversation has more participants (system join/leave notices target the
// affected user).
type Message struct {
	Model
	ConversationID  uuid.UUID  `gorm:"type:uuid;index;not null" json:"conversation_id"`
	SenderID        uuid.UUID  `gorm:"type:uuid;index;not null" json:"sender_id"`
	ReceiverID      uuid.UUID  `gorm:"type:uuid;index;not null" json:"receiver_id"`
	Content         string     `gorm:"type:text;not null" json:"content"`
	Read            bool       `gorm:"default:false" json:"read"`
	ReadAt          *time.Time `json:"read_at,omitempty"`
	ParentMessageID *uuid.UUID `gorm:"type:uuid" json:"parent_message_id,omitempty"`
	IsReply         bool       `gorm:"default:false" json:"is_reply"`
	IsSystem        bool       `gorm:"default:false" json:"is_system"`

	Mentions      []MessageMention      `gorm:"foreignKey:MessageID" json:"mentions,omitempty"`
	Notifications []MentionNotification `gorm:"foreignKey:MessageID" json:"notifications,omitempty"`
}

// MessageMention is one resolved @handle on a message.
type MessageMention struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	MessageID uuid.UUID `gorm:"type:uuid;index;not null" json:"message_id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

func (m *MessageMention) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// MentionNotification is the unread marker a mention produces for the
// mentioned user.
type MentionNotification struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	MessageID uuid.UUID `gorm:"type:uuid;index;not null" json:"message_id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null" json:"user_id"`
	Read      bool      `gorm:"default:false" json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

func (n *MentionNotification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return nil
}

// MentionedUserIDs returns the ids carried by the message's mention rows.
func (m *Message) MentionedUserIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(m.Mentions))
	for _, mention := range m.Mentions {
		ids = append(ids, mention.UserID)
	}
	return ids
}

// CreateMessageRequest is the body of POST /messages. When conversation_id is
// present the message is created inside that conversation; otherwise the
// direct conversation with the receiver is found or created.
type CreateMessageRequest struct {
	ReceiverID     string `json:"receiver_id" binding:"required,uuid"`
	ConversationID string `json:"conversation_id" binding:"omitempty,uuid"`
	Content        string `json:"content" binding:"required"`
}

// ReplyMessageRequest is the body of the reply and note endpoints.
type ReplyMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

// ParentMessageSummary is the single-level reply back-reference projection.
type ParentMessageSummary struct {
	ID      string      `json:"id"`
	Content string      `json:"content"`
	Sender  UserSummary `json:"sender"`
}

// MessageResponse is the display projection of a message. Referenced ids are
// resolved into user summaries by the service read side, not stored.
type MessageResponse struct {
	ID             string                `json:"id"`
	Content        string                `json:"content"`
	Sender         UserSummary           `json:"sender"`
	Receiver       UserSummary           `json:"receiver"`
	ConversationID string                `json:"conversation_id"`
	Read           bool                  `json:"read"`
	ReadAt         *time.Time            `json:"read_at,omitempty"`
	IsReply        bool                  `json:"is_reply"`
	IsSystem       bool                  `json:"is_system"`
	ParentMessage  *ParentMessageSummary `json:"parent_message,omitempty"`
	Mentions       []string              `json:"mentions,omitempty"`
	CreatedAt      time.Time             `json:"created_at"`
	UpdatedAt      time.Time             `json:"updated_at"`
}

// ConversationThread is the response of GET /messages/with/:receiverId — the
// direct conversation with that user plus its message history.
type ConversationThread struct {
	ConversationID    string            `json:"conversation_id"`
	IsNewConversation bool              `json:"is_new_conversation"`
	Messages          []MessageResponse `json:"messages"`
}
