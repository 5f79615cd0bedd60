package services

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apiError "github.com/techagentng/converse/errors"
)

func TestDetect(t *testing.T) {
	env := setupTestEnv(t)

	tests := []struct {
		name    string
		content string
		want    []string
	}{
		{"no mentions", "hello there", nil},
		{"single mention", "hey @jane, got a minute?", []string{"jane"}},
		{"multiple mentions", "@jane meet @bob", []string{"jane", "bob"}},
		{"duplicates collapse", "@jane @jane @jane", []string{"jane"}},
		{"punctuation terminates", "thanks @jane! and @bob.", []string{"jane", "bob"}},
		{"bare at sign", "meet @ noon", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := env.mentions.Detect(tt.content)
			if tt.want == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveDropsUnknownCandidates(t *testing.T) {
	env := setupTestEnv(t)
	jane := env.createUser(t, "Jane", "Doe", "jane")
	bob := env.createUser(t, "Bob", "Jones", "bobby")

	ids, err := env.mentions.Resolve([]string{"jane", "ghost", "bobby"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{jane.ID, bob.ID}, ids)

	ids, err = env.mentions.Resolve([]string{"ghost"})
	require.NoError(t, err)
	assert.Empty(t, ids)

	ids, err = env.mentions.Resolve(nil)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestResolveMatchesFirstName(t *testing.T) {
	env := setupTestEnv(t)
	// No handle set; the first name is the fallback match.
	jane := env.createUser(t, "jane", "Doe", "")

	ids, err := env.mentions.Resolve([]string{"jane"})
	require.NoError(t, err)
	require.Len(t, ids, 1)
	assert.Equal(t, jane.ID, ids[0])
}

func TestAttachNotificationsUnknownMessage(t *testing.T) {
	env := setupTestEnv(t)
	jane := env.createUser(t, "Jane", "Doe", "jane")

	err := env.mentions.AttachNotifications(uuid.New(), []uuid.UUID{jane.ID})
	assert.True(t, errors.Is(err, apiError.ErrNotFound))
}
