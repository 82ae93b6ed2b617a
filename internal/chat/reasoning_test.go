package chat

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSegmenterFieldTaggedReasoning(t *testing.T) {
	s := NewSegmenter()
	text := ""
	text = s.Append(text, "", "let me think")
	text = s.Append(text, "", " about it")
	text = s.Append(text, "the answer", "")
	text = s.Append(text, " is 42", "")
	text = s.Finish(text)

	assert.Equal(t, "<think>let me think about it</think>the answer is 42", text)
}

func TestSegmenterClosesTagExactlyOnce(t *testing.T) {
	s := NewSegmenter()
	text := ""
	text = s.Append(text, "", "r1")
	text = s.Append(text, "a1", "")
	text = s.Append(text, "a2", "")
	text = s.Finish(text)

	assert.Equal(t, 1, strings.Count(text, "</think>"))
}

func TestSegmenterInlineTags(t *testing.T) {
	s := NewSegmenter()
	text := ""
	text = s.Append(text, "<think>step one", "")
	text = s.Append(text, " step two</think>", "")
	text = s.Append(text, "done", "")
	text = s.Finish(text)

	assert.Equal(t, "<think>step one step two</think>done", text)
}

func TestSegmenterUnterminatedBlockClosedOnFinish(t *testing.T) {
	s := NewSegmenter()
	text := s.Append("", "", "half a thought")
	text = s.Finish(text)
	assert.Equal(t, "<think>half a thought</think>", text)
}

func TestSegmenterPlainStreamUntouched(t *testing.T) {
	s := NewSegmenter()
	text := ""
	text = s.Append(text, "plain ", "")
	text = s.Append(text, "answer", "")
	text = s.Finish(text)

	assert.Equal(t, "plain answer", text)
	assert.Zero(t, s.ReasoningTimeMs())
}

func TestSegmenterReasoningDuration(t *testing.T) {
	s := NewSegmenter()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	clock := base
	s.now = func() time.Time { return clock }

	text := s.Append("", "", "thinking")
	clock = base.Add(1500 * time.Millisecond)
	text = s.Append(text, "answer", "")
	_ = s.Finish(text)

	assert.Equal(t, int64(1500), s.ReasoningTimeMs())
}

func TestRemoveReasoning(t *testing.T) {
	assert.Equal(t, "answer", RemoveReasoning("<think>hmm</think>answer"))
	assert.Equal(t, "plain", RemoveReasoning("plain"))
	assert.Equal(t, "", RemoveReasoning("<think>never closed"))
	assert.Equal(t, "a b", RemoveReasoning("a <think>x</think>b"))
}

func TestExtractReasoning(t *testing.T) {
	assert.Equal(t, "hmm", ExtractReasoning("<think>hmm</think>answer"))
	assert.Equal(t, "open ended", ExtractReasoning("<think>open ended"))
	assert.Equal(t, "", ExtractReasoning("no block"))
}
