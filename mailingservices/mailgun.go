package mailingservices

import (
	"context"
	"fmt"
	"time"

	"github.com/mailgun/mailgun-go/v4"
	"github.com/techagentng/converse/config"
)

// Mailgun sends transactional mail. Mention notification emails are a
// best-effort courtesy; the service runs fine with mail unconfigured.
type Mailgun struct {
	Client *mailgun.MailgunImpl
	From   string
}

func (m *Mailgun) Init(c *config.Config) {
	if c.MgDomain == "" || c.MailgunApiKey == "" {
		return
	}
	m.Client = mailgun.NewMailgun(c.MgDomain, c.MailgunApiKey)
	m.From = c.MgEmailFrom
}

func (m *Mailgun) Enabled() bool {
	return m != nil && m.Client != nil
}

// SendMentionNotification emails a mentioned user about the message that
// named them.
func (m *Mailgun) SendMentionNotification(recipient, senderName, content string) error {
	if !m.Enabled() {
		return nil
	}
	subject := fmt.Sprintf("%s mentioned you", senderName)
	body := fmt.Sprintf("%s mentioned you in a message:\n\n%s", senderName, content)
	message := m.Client.NewMessage(m.From, subject, body, recipient)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, _, err := m.Client.Send(ctx, message)
	return err
}
