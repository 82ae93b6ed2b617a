// Package rag indexes page and document text into a local vector store and
// retrieves the passages most similar to a query.
package rag

import (
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

// ChunkerConfig holds chunking configuration.
type ChunkerConfig struct {
	ChunkSize    int // tokens per chunk (default: 512)
	ChunkOverlap int // token overlap between chunks (default: 50)
}

// Chunk is a passage of source text ready for embedding.
type Chunk struct {
	Text     string
	Metadata map[string]string
}

// Chunker splits extracted page text into passages.
type Chunker interface {
	ChunkText(text string, metadata map[string]string) ([]Chunk, error)
	CountTokens(text string) (int, error)
}

// paragraphChunker packs whole paragraphs into token-bounded chunks. Page
// text has no meaningful line structure, so paragraphs are the split unit
// and oversized paragraphs fall back to character splits.
type paragraphChunker struct {
	config   ChunkerConfig
	encoding *tiktoken.Tiktoken
}

// NewChunker creates a chunker.
func NewChunker(config ChunkerConfig) (Chunker, error) {
	if config.ChunkSize == 0 {
		config.ChunkSize = 512
	}
	if config.ChunkOverlap == 0 {
		config.ChunkOverlap = 50
	}

	encoding, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, fmt.Errorf("get encoding: %w", err)
	}

	return &paragraphChunker{
		config:   config,
		encoding: encoding,
	}, nil
}

// ChunkText splits text into passages.
func (c *paragraphChunker) ChunkText(text string, metadata map[string]string) ([]Chunk, error) {
	if metadata == nil {
		metadata = make(map[string]string)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}

	paragraphs := splitParagraphs(text)

	var chunks []Chunk
	var current strings.Builder
	currentTokens := 0
	var lastParagraph string

	flush := func() {
		if current.Len() == 0 {
			return
		}
		chunks = append(chunks, Chunk{
			Text:     strings.TrimSpace(current.String()),
			Metadata: cloneMetadata(metadata),
		})
		current.Reset()
		currentTokens = 0
	}

	for _, para := range paragraphs {
		paraTokens, err := c.CountTokens(para)
		if err != nil {
			return nil, err
		}

		if paraTokens > c.config.ChunkSize {
			flush()
			chunks = append(chunks, c.splitLongParagraph(para, metadata)...)
			lastParagraph = ""
			continue
		}

		if currentTokens+paraTokens > c.config.ChunkSize && current.Len() > 0 {
			flush()
			// Carry the previous paragraph forward when it fits the
			// overlap budget so adjacent chunks share context.
			if lastParagraph != "" {
				overlapTokens, _ := c.CountTokens(lastParagraph)
				if overlapTokens <= c.config.ChunkOverlap {
					current.WriteString(lastParagraph)
					current.WriteString("\n\n")
					currentTokens = overlapTokens
				}
			}
		}

		current.WriteString(para)
		current.WriteString("\n\n")
		currentTokens += paraTokens
		lastParagraph = para
	}
	flush()

	return chunks, nil
}

// splitLongParagraph splits an oversized paragraph by characters.
func (c *paragraphChunker) splitLongParagraph(para string, metadata map[string]string) []Chunk {
	var chunks []Chunk

	// Roughly 4 characters per token.
	charsPerChunk := c.config.ChunkSize * 4
	runes := []rune(para)

	for start := 0; start < len(runes); start += charsPerChunk {
		end := start + charsPerChunk
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, Chunk{
			Text:     strings.TrimSpace(string(runes[start:end])),
			Metadata: cloneMetadata(metadata),
		})
	}

	return chunks
}

// CountTokens returns the token count for text.
func (c *paragraphChunker) CountTokens(text string) (int, error) {
	tokens := c.encoding.Encode(text, nil, nil)
	return len(tokens), nil
}

func splitParagraphs(text string) []string {
	raw := strings.Split(text, "\n\n")
	result := make([]string, 0, len(raw))
	for _, para := range raw {
		para = strings.TrimSpace(para)
		if para != "" {
			result = append(result, para)
		}
	}
	return result
}

func cloneMetadata(src map[string]string) map[string]string {
	if len(src) == 0 {
		return map[string]string{}
	}
	out := make(map[string]string, len(src))
	for key, value := range src {
		out[key] = value
	}
	return out
}
