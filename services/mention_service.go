package services

import (
	"errors"
	"regexp"

	"github.com/google/uuid"
	"github.com/techagentng/converse/db"
	apiError "github.com/techagentng/converse/errors"
	"gorm.io/gorm"
)

var mentionPattern = regexp.MustCompile(`@(\w+)`)

// MentionService extracts @handle tokens from message content and turns the
// ones that name a known user into unread notifications. Unresolved tokens
// are dropped silently: mentions are a convenience, not a correctness path.
type MentionService interface {
	Detect(content string) []string
	Resolve(candidates []string) ([]uuid.UUID, error)
	AttachNotifications(messageID uuid.UUID, userIDs []uuid.UUID) error
}

type mentionService struct {
	userRepo    db.UserRepository
	messageRepo db.MessageRepository
}

// NewMentionService instantiate a mentionService
func NewMentionService(userRepo db.UserRepository, messageRepo db.MessageRepository) MentionService {
	return &mentionService{
		userRepo:    userRepo,
		messageRepo: messageRepo,
	}
}

// Detect scans for "@" followed by word characters and returns the
// deduplicated candidate tokens.
func (s *mentionService) Detect(content string) []string {
	matches := mentionPattern.FindAllStringSubmatch(content, -1)
	seen := make(map[string]struct{}, len(matches))
	candidates := make([]string, 0, len(matches))
	for _, match := range matches {
		token := match[1]
		if _, ok := seen[token]; ok {
			continue
		}
		seen[token] = struct{}{}
		candidates = append(candidates, token)
	}
	return candidates
}

// Resolve matches candidates against known users by handle or first name.
func (s *mentionService) Resolve(candidates []string) ([]uuid.UUID, error) {
	if len(candidates) == 0 {
		return nil, nil
	}
	users, err := s.userRepo.FindUsersByHandles(candidates)
	if err != nil {
		return nil, err
	}
	seen := make(map[uuid.UUID]struct{}, len(users))
	ids := make([]uuid.UUID, 0, len(users))
	for i := range users {
		if _, ok := seen[users[i].ID]; ok {
			continue
		}
		seen[users[i].ID] = struct{}{}
		ids = append(ids, users[i].ID)
	}
	return ids, nil
}

// AttachNotifications stores the resolved mentions on the message and one
// unread notification per mentioned user.
func (s *mentionService) AttachNotifications(messageID uuid.UUID, userIDs []uuid.UUID) error {
	if _, err := s.messageRepo.FindMessageByID(messageID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apiError.ErrNotFound
		}
		return err
	}
	return s.messageRepo.SetMentions(messageID, userIDs)
}
