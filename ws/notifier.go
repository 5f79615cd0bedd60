package ws

import (
	"log"

	"github.com/google/uuid"
	"github.com/techagentng/converse/db"
	"github.com/techagentng/converse/mailingservices"
	"github.com/techagentng/converse/models"
)

// Notifier fans stored messages out to live connections: newMessage into the
// conversation room, mentionNotification into each mentioned user's personal
// room. When mail is configured, mentions also produce a best-effort email.
type Notifier struct {
	Hub      *Hub
	Mail     *mailingservices.Mailgun
	UserRepo db.UserRepository
}

func NewNotifier(hub *Hub, mail *mailingservices.Mailgun, userRepo db.UserRepository) *Notifier {
	return &Notifier{
		Hub:      hub,
		Mail:     mail,
		UserRepo: userRepo,
	}
}

func (n *Notifier) MessageCreated(message *models.Message) {
	n.Hub.BroadcastToRoom(message.ConversationID.String(), Event{
		Type: EventNewMessage,
		Data: message,
	})
}

func (n *Notifier) MentionNotification(userID uuid.UUID, message *models.Message) {
	n.Hub.BroadcastToRoom(userID.String(), Event{
		Type: EventMentionNotification,
		Data: map[string]interface{}{
			"messageId":      message.ID.String(),
			"senderId":       message.SenderID.String(),
			"content":        message.Content,
			"conversationId": message.ConversationID.String(),
		},
	})

	if n.Mail == nil || !n.Mail.Enabled() {
		return
	}
	user, err := n.UserRepo.FindUserByID(userID)
	if err != nil {
		log.Printf("ws: mention email skipped, user %s lookup failed: %v", userID, err)
		return
	}
	sender := message.SenderID.String()
	if senderUser, err := n.UserRepo.FindUserByID(message.SenderID); err == nil {
		sender = senderUser.DisplayName()
	}
	go func() {
		if err := n.Mail.SendMentionNotification(user.Email, sender, message.Content); err != nil {
			log.Printf("ws: mention email to %s failed: %v", user.Email, err)
		}
	}()
}
