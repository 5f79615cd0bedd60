package services

import (
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apiError "github.com/techagentng/converse/errors"
	"github.com/techagentng/converse/models"
	"gorm.io/gorm"
)

// recordingNotifier captures fan-out calls for assertions.
type recordingNotifier struct {
	mu       sync.Mutex
	created  []*models.Message
	mentions map[uuid.UUID][]uuid.UUID
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{mentions: make(map[uuid.UUID][]uuid.UUID)}
}

func (n *recordingNotifier) MessageCreated(message *models.Message) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.created = append(n.created, message)
}

func (n *recordingNotifier) MentionNotification(userID uuid.UUID, message *models.Message) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.mentions[userID] = append(n.mentions[userID], message.ID)
}

func TestSendCreatesConversationAndLedger(t *testing.T) {
	env := setupTestEnv(t)
	svc := env.messageService(nil)
	alice := env.createUser(t, "Alice", "Smith", "alice")
	bob := env.createUser(t, "Bob", "Jones", "bob")

	first, err := svc.Send(alice.ID, bob.ID, "hello")
	require.NoError(t, err)
	assert.False(t, first.Read)
	assert.Nil(t, first.ReadAt)

	// The reply lands in the same conversation regardless of direction.
	second, err := svc.Send(bob.ID, alice.ID, "hi back")
	require.NoError(t, err)
	assert.Equal(t, first.ConversationID, second.ConversationID)

	entries, err := env.messageRepo.LedgerEntries(first.ConversationID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, first.ID, entries[0].MessageID)
	assert.Equal(t, second.ID, entries[1].MessageID)
	assert.Less(t, entries[0].Seq, entries[1].Seq)

	conversation, err := env.conversationRepo.FindConversationByID(first.ConversationID)
	require.NoError(t, err)
	require.NotNil(t, conversation.LastMessageAt)
}

func TestSendRejectsEmptyContent(t *testing.T) {
	env := setupTestEnv(t)
	svc := env.messageService(nil)
	alice := env.createUser(t, "Alice", "Smith", "alice")
	bob := env.createUser(t, "Bob", "Jones", "bob")

	_, err := svc.Send(alice.ID, bob.ID, "")
	assert.True(t, errors.Is(err, apiError.ErrEmptyContent))
	_, err = svc.Send(alice.ID, bob.ID, "   ")
	assert.True(t, errors.Is(err, apiError.ErrEmptyContent))
}

func TestSendToSelfIsAReadNote(t *testing.T) {
	env := setupTestEnv(t)
	svc := env.messageService(nil)
	alice := env.createUser(t, "Alice", "Smith", "alice")

	note, err := svc.Send(alice.ID, alice.ID, "remember the milk")
	require.NoError(t, err)
	assert.True(t, note.Read)
	require.NotNil(t, note.ReadAt)
	assert.Equal(t, note.SenderID, note.ReceiverID)

	conversation, err := env.conversationRepo.FindConversationByID(note.ConversationID)
	require.NoError(t, err)
	assert.True(t, conversation.IsSelfNote)

	count, err := svc.UnreadCount(alice.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 0, count)
}

func TestCreateInConversationRequiresMembership(t *testing.T) {
	env := setupTestEnv(t)
	svc := env.messageService(nil)
	alice := env.createUser(t, "Alice", "Smith", "alice")
	bob := env.createUser(t, "Bob", "Jones", "bob")
	eve := env.createUser(t, "Eve", "Black", "eve")

	seed, err := svc.Send(alice.ID, bob.ID, "hello")
	require.NoError(t, err)

	message, err := svc.CreateInConversation(seed.ConversationID, bob.ID, alice.ID, "in thread")
	require.NoError(t, err)
	assert.Equal(t, seed.ConversationID, message.ConversationID)

	// Outsiders get the same answer as a missing conversation.
	_, err = svc.CreateInConversation(seed.ConversationID, eve.ID, alice.ID, "intrusion")
	assert.True(t, errors.Is(err, apiError.ErrNotFound))
	_, err = svc.CreateInConversation(uuid.New(), alice.ID, bob.ID, "nowhere")
	assert.True(t, errors.Is(err, apiError.ErrNotFound))
}

func TestMarkRead(t *testing.T) {
	env := setupTestEnv(t)
	svc := env.messageService(nil)
	alice := env.createUser(t, "Alice", "Smith", "alice")
	bob := env.createUser(t, "Bob", "Jones", "bob")
	eve := env.createUser(t, "Eve", "Black", "eve")

	message, err := svc.Send(alice.ID, bob.ID, "read me")
	require.NoError(t, err)

	// Only the receiver can flip the flag; strangers cannot even learn the
	// message exists.
	_, err = svc.MarkRead(message.ID, eve.ID)
	assert.True(t, errors.Is(err, apiError.ErrNotFound))
	_, err = svc.MarkRead(message.ID, alice.ID)
	assert.True(t, errors.Is(err, apiError.ErrNotAuthorized))

	read, err := svc.MarkRead(message.ID, bob.ID)
	require.NoError(t, err)
	assert.True(t, read.Read)
	require.NotNil(t, read.ReadAt)

	// Idempotent: a second call changes nothing.
	again, err := svc.MarkRead(message.ID, bob.ID)
	require.NoError(t, err)
	assert.True(t, again.Read)
	assert.Equal(t, read.ReadAt.Unix(), again.ReadAt.Unix())

	_, err = svc.MarkRead(uuid.New(), bob.ID)
	assert.True(t, errors.Is(err, apiError.ErrNotFound))
}

func TestMarkConversationRead(t *testing.T) {
	env := setupTestEnv(t)
	svc := env.messageService(nil)
	alice := env.createUser(t, "Alice", "Smith", "alice")
	bob := env.createUser(t, "Bob", "Jones", "bob")
	eve := env.createUser(t, "Eve", "Black", "eve")

	var conversationID uuid.UUID
	for _, content := range []string{"one", "two", "three"} {
		message, err := svc.Send(alice.ID, bob.ID, content)
		require.NoError(t, err)
		conversationID = message.ConversationID
	}
	// Bob's own message must not be counted or flipped.
	_, err := svc.Send(bob.ID, alice.ID, "four")
	require.NoError(t, err)

	_, err = svc.MarkConversationRead(conversationID, eve.ID)
	assert.True(t, errors.Is(err, apiError.ErrNotFound))

	count, err := svc.MarkConversationRead(conversationID, bob.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 3, count)

	count, err = svc.MarkConversationRead(conversationID, bob.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 0, count)

	unread, err := svc.UnreadCount(bob.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 0, unread)

	// Alice still has bob's unread reply.
	unread, err = svc.UnreadCount(alice.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, unread)

	conversation, err := env.conversationRepo.FindConversationByID(conversationID)
	require.NoError(t, err)
	assert.NotNil(t, conversation.LastReadAt)
}

func TestReplyTo(t *testing.T) {
	env := setupTestEnv(t)
	svc := env.messageService(nil)
	alice := env.createUser(t, "Alice", "Smith", "alice")
	bob := env.createUser(t, "Bob", "Jones", "bob")
	eve := env.createUser(t, "Eve", "Black", "eve")

	parent, err := svc.Send(alice.ID, bob.ID, "question")
	require.NoError(t, err)

	_, err = svc.ReplyTo(parent.ID, eve.ID, "not my thread")
	assert.True(t, errors.Is(err, apiError.ErrNotAuthorized))

	reply, err := svc.ReplyTo(parent.ID, bob.ID, "answer")
	require.NoError(t, err)
	assert.True(t, reply.IsReply)
	require.NotNil(t, reply.ParentMessageID)
	assert.Equal(t, parent.ID, *reply.ParentMessageID)
	assert.Equal(t, alice.ID, reply.ReceiverID)
	assert.Equal(t, parent.ConversationID, reply.ConversationID)

	// The original sender replying to their own message targets the receiver.
	followUp, err := svc.ReplyTo(parent.ID, alice.ID, "any update?")
	require.NoError(t, err)
	assert.Equal(t, bob.ID, followUp.ReceiverID)

	_, err = svc.ReplyTo(uuid.New(), alice.ID, "ghost")
	assert.True(t, errors.Is(err, apiError.ErrNotFound))
}

func TestReplyToLastInConversation(t *testing.T) {
	env := setupTestEnv(t)
	svc := env.messageService(nil)
	alice := env.createUser(t, "Alice", "Smith", "alice")
	bob := env.createUser(t, "Bob", "Jones", "bob")

	_, err := svc.ReplyToLastInConversation(bob.ID, alice.ID, "nothing yet")
	assert.True(t, errors.Is(err, apiError.ErrNoPriorMessage))

	_, err = svc.Send(alice.ID, bob.ID, "first")
	require.NoError(t, err)
	last, err := svc.Send(bob.ID, alice.ID, "second")
	require.NoError(t, err)

	reply, err := svc.ReplyToLastInConversation(bob.ID, alice.ID, "third")
	require.NoError(t, err)
	assert.True(t, reply.IsReply)
	require.NotNil(t, reply.ParentMessageID)
	assert.Equal(t, last.ID, *reply.ParentMessageID)
	assert.Equal(t, last.ConversationID, reply.ConversationID)
}

func TestDeleteMessageLeavesLedgerEntry(t *testing.T) {
	env := setupTestEnv(t)
	svc := env.messageService(nil)
	alice := env.createUser(t, "Alice", "Smith", "alice")
	bob := env.createUser(t, "Bob", "Jones", "bob")
	eve := env.createUser(t, "Eve", "Black", "eve")

	message, err := svc.Send(alice.ID, bob.ID, "short lived")
	require.NoError(t, err)

	err = svc.DeleteMessage(message.ID, eve.ID)
	assert.True(t, errors.Is(err, apiError.ErrNotAuthorized))

	require.NoError(t, svc.DeleteMessage(message.ID, bob.ID))

	_, err = env.messageRepo.FindMessageByID(message.ID)
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))

	// The ledger keeps the dangling id; it indexes, it does not own.
	entries, err := env.messageRepo.LedgerEntries(message.ConversationID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, message.ID, entries[0].MessageID)

	err = svc.DeleteMessage(message.ID, bob.ID)
	assert.True(t, errors.Is(err, apiError.ErrNotFound))
}

func TestMessagesWith(t *testing.T) {
	env := setupTestEnv(t)
	svc := env.messageService(nil)
	alice := env.createUser(t, "Alice", "Smith", "alice")
	bob := env.createUser(t, "Bob", "Jones", "bob")

	thread, err := svc.MessagesWith(alice.ID, bob.ID)
	require.NoError(t, err)
	assert.True(t, thread.IsNewConversation)
	assert.Empty(t, thread.Messages)

	_, err = svc.Send(alice.ID, bob.ID, "hello")
	require.NoError(t, err)

	thread, err = svc.MessagesWith(alice.ID, bob.ID)
	require.NoError(t, err)
	assert.False(t, thread.IsNewConversation)
	require.Len(t, thread.Messages, 1)
	assert.Equal(t, "hello", thread.Messages[0].Content)
}

func TestSendDetectsMentionsAndNotifies(t *testing.T) {
	env := setupTestEnv(t)
	notifier := newRecordingNotifier()
	svc := env.messageService(notifier)
	alice := env.createUser(t, "Alice", "Smith", "alice")
	bob := env.createUser(t, "Bob", "Jones", "bob")
	jane := env.createUser(t, "Jane", "Doe", "jane")

	message, err := svc.Send(alice.ID, bob.ID, "ping @jane and @nobody about this")
	require.NoError(t, err)

	require.Len(t, message.Mentions, 1)
	assert.Equal(t, jane.ID, message.Mentions[0].UserID)
	require.Len(t, message.Notifications, 1)
	assert.Equal(t, jane.ID, message.Notifications[0].UserID)
	assert.False(t, message.Notifications[0].Read)

	require.Len(t, notifier.created, 1)
	assert.Equal(t, message.ID, notifier.created[0].ID)
	require.Contains(t, notifier.mentions, jane.ID)
	assert.Equal(t, []uuid.UUID{message.ID}, notifier.mentions[jane.ID])
}

func TestSendWithoutMentionsSkipsNotifications(t *testing.T) {
	env := setupTestEnv(t)
	notifier := newRecordingNotifier()
	svc := env.messageService(notifier)
	alice := env.createUser(t, "Alice", "Smith", "alice")
	bob := env.createUser(t, "Bob", "Jones", "bob")

	message, err := svc.Send(alice.ID, bob.ID, "plain text, no handles")
	require.NoError(t, err)

	assert.Empty(t, message.Mentions)
	assert.Empty(t, notifier.mentions)
	require.Len(t, notifier.created, 1)
	assert.Equal(t, message.ID, notifier.created[0].ID)
}
