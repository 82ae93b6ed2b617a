package chat

import (
	"strings"
	"time"
)

const (
	thinkOpenTag  = "<think>"
	thinkCloseTag = "</think>"
)

// IsReasoningStarted reports whether text has an opened reasoning block.
func IsReasoningStarted(text string) bool {
	return strings.Contains(text, thinkOpenTag)
}

// IsReasoningEnded reports whether text has a closed reasoning block.
func IsReasoningEnded(text string) bool {
	return strings.Contains(text, thinkCloseTag)
}

// RemoveReasoning strips reasoning blocks, leaving only the answer text.
// An unterminated block is removed to the end of the text.
func RemoveReasoning(text string) string {
	for {
		open := strings.Index(text, thinkOpenTag)
		if open < 0 {
			break
		}
		close := strings.Index(text[open:], thinkCloseTag)
		if close < 0 {
			text = text[:open]
			break
		}
		text = text[:open] + text[open+close+len(thinkCloseTag):]
	}
	return strings.TrimSpace(text)
}

// ExtractReasoning returns the content of the first reasoning block,
// terminated or not.
func ExtractReasoning(text string) string {
	open := strings.Index(text, thinkOpenTag)
	if open < 0 {
		return ""
	}
	rest := text[open+len(thinkOpenTag):]
	if close := strings.Index(rest, thinkCloseTag); close >= 0 {
		rest = rest[:close]
	}
	return strings.TrimSpace(rest)
}

// Segmenter folds a delta stream into a single text where reasoning lives
// inside one tagged block. Backends expose reasoning two ways: a dedicated
// reasoning field on each delta, or inline tags in the content itself. The
// segmenter normalizes both and times the reasoning phase.
type Segmenter struct {
	started      bool
	ended        bool
	apiReasoning bool
	startedAt    time.Time
	durationMs   int64

	now func() time.Time
}

// NewSegmenter builds a segmenter for one turn.
func NewSegmenter() *Segmenter {
	return &Segmenter{now: time.Now}
}

// Append merges one delta into the accumulated text and returns the
// result.
func (s *Segmenter) Append(current, delta, reasoning string) string {
	if reasoning != "" {
		if !s.started {
			current += thinkOpenTag
			s.markStarted()
			s.apiReasoning = true
		}
		current += reasoning
	}
	if delta != "" {
		// Field-tagged reasoning ends at the first answer token; the
		// close tag is appended exactly once.
		if s.apiReasoning && !s.ended {
			current += thinkCloseTag
			s.markEnded()
		}
		current += delta
		if !s.started && IsReasoningStarted(current) {
			s.markStarted()
		}
		if s.started && !s.ended && IsReasoningEnded(current) {
			s.markEnded()
		}
	}
	return current
}

// Finish closes a reasoning block the stream never terminated and returns
// the final text.
func (s *Segmenter) Finish(current string) string {
	if s.apiReasoning && !s.ended {
		current += thinkCloseTag
		s.markEnded()
	}
	return current
}

// ReasoningTimeMs returns how long the reasoning phase lasted. Zero when
// the turn produced no reasoning or the block never closed.
func (s *Segmenter) ReasoningTimeMs() int64 {
	return s.durationMs
}

func (s *Segmenter) markStarted() {
	s.started = true
	s.startedAt = s.now()
}

func (s *Segmenter) markEnded() {
	s.ended = true
	if !s.startedAt.IsZero() {
		s.durationMs = s.now().Sub(s.startedAt).Milliseconds()
	}
}
