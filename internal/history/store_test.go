package history

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pageassist/internal/chat/ports"
	"pageassist/internal/storage"
)

func TestSaveOnSuccessCreatesSessionWithTitle(t *testing.T) {
	store := NewStore(storage.NewMemKV())

	id, err := store.SaveOnSuccess(context.Background(), ports.TurnResult{
		Model:    "llama3",
		Prompt:   "what is the capital of France",
		Response: "Paris",
	})
	require.NoError(t, err)

	session, err := store.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "what is the capital of France", session.Title)
	assert.Equal(t, "llama3", session.Model)
	require.Len(t, session.Messages, 2)
	assert.Equal(t, "user", session.Messages[0].Role)
	assert.Equal(t, "assistant", session.Messages[1].Role)
}

func TestSaveOnSuccessAppendsToExistingSession(t *testing.T) {
	store := NewStore(storage.NewMemKV())
	ctx := context.Background()

	id, err := store.SaveOnSuccess(ctx, ports.TurnResult{Prompt: "one", Response: "1"})
	require.NoError(t, err)
	id2, err := store.SaveOnSuccess(ctx, ports.TurnResult{SessionID: id, Prompt: "two", Response: "2"})
	require.NoError(t, err)
	assert.Equal(t, id, id2)

	session, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Len(t, session.Messages, 4)
	assert.Equal(t, "one", session.Title, "title comes from the first message only")
}

func TestTitleTruncation(t *testing.T) {
	store := NewStore(storage.NewMemKV())

	long := strings.Repeat("word ", 30)
	id, err := store.SaveOnSuccess(context.Background(), ports.TurnResult{Prompt: long, Response: "ok"})
	require.NoError(t, err)

	session, err := store.Get(context.Background(), id)
	require.NoError(t, err)
	assert.LessOrEqual(t, len([]rune(session.Title)), maxTitleLength+3)
	assert.True(t, strings.HasSuffix(session.Title, "..."))
}

func TestSaveOnErrorKeepsPartialOnly(t *testing.T) {
	store := NewStore(storage.NewMemKV())
	ctx := context.Background()

	// No content produced: nothing is written.
	_, handled, err := store.SaveOnError(ctx, ports.TurnResult{Prompt: "q", Response: "   "})
	require.NoError(t, err)
	assert.False(t, handled)
	sessions, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, sessions)

	// Partial content survives alongside the prompt.
	id, handled, err := store.SaveOnError(ctx, ports.TurnResult{Prompt: "q", Response: "partial", Err: "boom"})
	require.NoError(t, err)
	assert.True(t, handled)

	session, err := store.Get(ctx, id)
	require.NoError(t, err)
	require.Len(t, session.Messages, 2)
	assert.Equal(t, "partial", session.Messages[1].Content)
}

func TestRegenerateReplacesLastAssistantMessage(t *testing.T) {
	store := NewStore(storage.NewMemKV())
	ctx := context.Background()

	id, err := store.SaveOnSuccess(ctx, ports.TurnResult{Prompt: "q", Response: "first try"})
	require.NoError(t, err)

	_, err = store.SaveOnSuccess(ctx, ports.TurnResult{
		SessionID:  id,
		Prompt:     "q",
		Response:   "second try",
		Regenerate: true,
	})
	require.NoError(t, err)

	session, err := store.Get(ctx, id)
	require.NoError(t, err)
	require.Len(t, session.Messages, 2)
	assert.Equal(t, "second try", session.Messages[1].Content)
}

func TestTruncateAt(t *testing.T) {
	store := NewStore(storage.NewMemKV())
	ctx := context.Background()

	id, err := store.SaveOnSuccess(ctx, ports.TurnResult{Prompt: "a", Response: "1"})
	require.NoError(t, err)
	_, err = store.SaveOnSuccess(ctx, ports.TurnResult{SessionID: id, Prompt: "b", Response: "2"})
	require.NoError(t, err)

	require.NoError(t, store.TruncateAt(ctx, id, 2))
	session, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Len(t, session.Messages, 2)

	assert.Error(t, store.TruncateAt(ctx, id, 5))
}

func TestUpdateMessageAt(t *testing.T) {
	store := NewStore(storage.NewMemKV())
	ctx := context.Background()

	id, err := store.SaveOnSuccess(ctx, ports.TurnResult{Prompt: "orig", Response: "ans"})
	require.NoError(t, err)

	require.NoError(t, store.UpdateMessageAt(ctx, id, 0, "edited"))
	session, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "edited", session.Messages[0].Content)

	assert.Error(t, store.UpdateMessageAt(ctx, id, 9, "x"))
}

func TestForkCopiesPrefixAndLeavesSourceIntact(t *testing.T) {
	store := NewStore(storage.NewMemKV())
	ctx := context.Background()

	id, err := store.SaveOnSuccess(ctx, ports.TurnResult{Prompt: "a", Response: "1"})
	require.NoError(t, err)
	_, err = store.SaveOnSuccess(ctx, ports.TurnResult{SessionID: id, Prompt: "b", Response: "2"})
	require.NoError(t, err)

	branchID, err := store.Fork(ctx, id, 1)
	require.NoError(t, err)
	require.NotEqual(t, id, branchID)

	branch, err := store.Get(ctx, branchID)
	require.NoError(t, err)
	assert.Len(t, branch.Messages, 2)

	source, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Len(t, source.Messages, 4)
}

func TestEntriesForMissingSession(t *testing.T) {
	store := NewStore(storage.NewMemKV())
	entries, err := store.Entries(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, entries)
}
