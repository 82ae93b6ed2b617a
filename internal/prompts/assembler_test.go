package prompts

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pageassist/internal/chat/ports"
	pkgerrors "pageassist/internal/errors"
	"pageassist/internal/storage"
)

func newTestAssembler(t *testing.T) (*Assembler, *Store) {
	t.Helper()
	store := NewStore(storage.NewMemKV())
	assembler, err := NewAssembler(store)
	require.NoError(t, err)
	return assembler, store
}

func TestAssembleDefaultSystem(t *testing.T) {
	assembler, _ := newTestAssembler(t)

	messages, err := assembler.Assemble(Request{
		DefaultSystem: "be helpful",
		HumanMessage:  "hi",
	})
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0].Role)
	assert.Equal(t, "be helpful", messages[0].Content)
	assert.Equal(t, "user", messages[1].Role)
	assert.Equal(t, "hi", messages[1].Content)
}

func TestAssembleOverrideBeatsStoredPrompt(t *testing.T) {
	assembler, store := newTestAssembler(t)
	saved, err := store.Save(Prompt{Title: "pirate", Content: "talk like a pirate", IsSystem: true})
	require.NoError(t, err)

	messages, err := assembler.Assemble(Request{
		SystemOverride: "temporary override",
		PromptID:       saved.ID,
		DefaultSystem:  "default",
		HumanMessage:   "hi",
	})
	require.NoError(t, err)
	assert.Equal(t, "temporary override", messages[0].Content)
}

func TestAssembleStoredSystemPrompt(t *testing.T) {
	assembler, store := newTestAssembler(t)
	saved, err := store.Save(Prompt{Title: "pirate", Content: "talk like a pirate", IsSystem: true})
	require.NoError(t, err)

	messages, err := assembler.Assemble(Request{
		PromptID:      saved.ID,
		DefaultSystem: "default",
		HumanMessage:  "hi",
	})
	require.NoError(t, err)
	assert.Equal(t, "talk like a pirate", messages[0].Content)
}

func TestAssembleQuickPromptRewritesHumanText(t *testing.T) {
	assembler, store := newTestAssembler(t)
	saved, err := store.Save(Prompt{Title: "summarize", Content: "Summarize this: {text}"})
	require.NoError(t, err)

	messages, err := assembler.Assemble(Request{
		PromptID:     saved.ID,
		HumanMessage: "a long article",
	})
	require.NoError(t, err)
	// A quick prompt produces no system message.
	require.Len(t, messages, 1)
	assert.Equal(t, "user", messages[0].Role)
	assert.Equal(t, "Summarize this: a long article", messages[0].Content)
}

func TestAssembleDanglingPromptID(t *testing.T) {
	assembler, _ := newTestAssembler(t)

	_, err := assembler.Assemble(Request{PromptID: "missing", HumanMessage: "hi"})
	require.Error(t, err)

	var cfgErr *pkgerrors.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, pkgerrors.ReasonPromptNotFound, cfgErr.Reason)
}

func TestAssembleImagesRideOnHumanMessage(t *testing.T) {
	assembler, _ := newTestAssembler(t)

	messages, err := assembler.Assemble(Request{
		HumanMessage: "what is this",
		Images:       []string{"data:image/png;base64,AAAA"},
	})
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, []string{"data:image/png;base64,AAAA"}, messages[0].Images)
}

func TestAssembleTruncatesOldestHistoryFirst(t *testing.T) {
	assembler, _ := newTestAssembler(t)

	long := strings.Repeat("lorem ipsum dolor sit amet ", 40)
	history := []ports.HistoryEntry{
		{Role: "user", Content: long},
		{Role: "assistant", Content: long},
		{Role: "user", Content: "recent question"},
		{Role: "assistant", Content: "recent answer"},
	}

	messages, err := assembler.Assemble(Request{
		History:            history,
		HumanMessage:       "follow-up",
		HistoryTokenBudget: 50,
	})
	require.NoError(t, err)

	// The oldest entries are gone; the newest survive in order.
	require.Len(t, messages, 3)
	assert.Equal(t, "recent question", messages[0].Content)
	assert.Equal(t, "recent answer", messages[1].Content)
	assert.Equal(t, "follow-up", messages[2].Content)
}

func TestRenderTemplate(t *testing.T) {
	got := RenderTemplate("Q: {question} C: {context} U: {unknown}", map[string]string{
		"question": "why",
		"context":  "because",
	})
	assert.Equal(t, "Q: why C: because U: {unknown}", got)
}

func TestStoreRejectsEmptyContent(t *testing.T) {
	store := NewStore(storage.NewMemKV())
	_, err := store.Save(Prompt{Title: "empty"})
	require.Error(t, err)
}
