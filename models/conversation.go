package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Conversation groups a set of participants and the messages exchanged
// between them. Participants live in conversation_participants rows and the
// message ledger in conversation_ledger rows; neither is embedded here so the
// stored record stays reference-only.
type Conversation struct {
	Model
	IsSelfNote bool `gorm:"default:false" json:"is_self_note"`
	// PairKey is the normalized participant-pair key. Its unique index is
	// what makes find-or-create race-safe: two concurrent first-contact
	// sends between the same pair cannot both insert. It is cleared when a
	// third participant joins, since the conversation then no longer stands
	// for the pair.
	PairKey       *string    `gorm:"uniqueIndex" json:"-"`
	LastMessageAt *time.Time `json:"last_message_at,omitempty"`
	LastReadAt    *time.Time `json:"last_read_at,omitempty"`
}

// ConversationParticipant is one membership row.
type ConversationParticipant struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ConversationID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_conversation_user" json:"conversation_id"`
	UserID         uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_conversation_user" json:"user_id"`
	CreatedAt      time.Time `json:"created_at"`
}

func (p *ConversationParticipant) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// ConversationLedger is the append-only index of message ids per
// conversation. Seq breaks createdAt ties. The messages table remains the
// source of truth; a ledger row may outlive its message after a delete.
type ConversationLedger struct {
	Seq            int64     `gorm:"primaryKey;autoIncrement" json:"seq"`
	ConversationID uuid.UUID `gorm:"type:uuid;index;not null" json:"conversation_id"`
	MessageID      uuid.UUID `gorm:"type:uuid;not null" json:"message_id"`
	CreatedAt      time.Time `json:"created_at"`
}

// DirectPairKey returns the normalized key for a direct conversation between
// two distinct users. The lower uuid sorts first so (a,b) and (b,a) collide.
func DirectPairKey(a, b uuid.UUID) string {
	if b.String() < a.String() {
		a, b = b, a
	}
	return fmt.Sprintf("%s:%s", a, b)
}

// SelfNoteKey returns the pair key for a user's personal notes conversation.
func SelfNoteKey(userID uuid.UUID) string {
	return fmt.Sprintf("self:%s", userID)
}

// LastMessageSummary is the most recent message projected onto a
// conversation summary.
type LastMessageSummary struct {
	ID         string      `json:"id"`
	Content    string      `json:"content"`
	Sender     UserSummary `json:"sender"`
	CreatedAt  time.Time   `json:"created_at"`
	IsOutgoing bool        `json:"is_outgoing"`
}

// ConversationSummary is one entry of the conversation list for a viewer.
type ConversationSummary struct {
	ID           string              `json:"id"`
	ChatTitle    string              `json:"chat_title"`
	IsGroup      bool                `json:"is_group"`
	IsSelfNote   bool                `json:"is_self_note"`
	Participants []UserSummary       `json:"participants"`
	LastMessage  *LastMessageSummary `json:"last_message"`
	UnreadCount  int64               `json:"unread_count"`
	LastActivity time.Time           `json:"last_activity"`
	CreatedAt    time.Time           `json:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at"`
}
