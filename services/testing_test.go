package services

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/techagentng/converse/config"
	"github.com/techagentng/converse/db"
	"github.com/techagentng/converse/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// testEnv wires the real repositories against an in-memory sqlite database.
type testEnv struct {
	db               *db.GormDB
	userRepo         db.UserRepository
	conversationRepo db.ConversationRepository
	messageRepo      db.MessageRepository
	conversations    ConversationService
	mentions         MentionService
}

func setupTestDB(t *testing.T) *db.GormDB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	gormDB, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// A single connection serializes writers; sqlite has no row locks.
	sqlDB, err := gormDB.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.Migrate(gormDB))
	return &db.GormDB{DB: gormDB}
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gormDB := setupTestDB(t)
	conf := &config.Config{}
	userRepo := db.NewUserRepo(gormDB)
	conversationRepo := db.NewConversationRepo(gormDB)
	messageRepo := db.NewMessageRepo(gormDB)
	return &testEnv{
		db:               gormDB,
		userRepo:         userRepo,
		conversationRepo: conversationRepo,
		messageRepo:      messageRepo,
		conversations:    NewConversationService(conversationRepo, messageRepo, userRepo, conf),
		mentions:         NewMentionService(userRepo, messageRepo),
	}
}

// messageService builds a MessageService on top of the env, optionally with a
// notifier.
func (e *testEnv) messageService(notifier MessageNotifier) MessageService {
	return NewMessageService(e.conversations, e.mentions, e.conversationRepo, e.messageRepo, notifier, &config.Config{})
}

func (e *testEnv) createUser(t *testing.T, firstName, lastName, handle string) *models.User {
	t.Helper()
	user := &models.User{
		FirstName: firstName,
		LastName:  lastName,
		Email:     fmt.Sprintf("%s.%s@example.com", handle, uuid.NewString()[:8]),
		Handle:    handle,
	}
	require.NoError(t, e.db.DB.Create(user).Error)
	return user
}
