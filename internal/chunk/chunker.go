// Package chunk splits file content into bounded-size pieces with stable,
// content-derived identifiers. Chunking is deterministic: identical content
// always yields identical boundaries and hashes, so re-sending an unchanged
// file never churns the embedding store.
package chunk

import (
	"errors"
	"strings"

	"github.com/mirrorlab/codesync/internal/merkle"
)

// DefaultMaxBytes is the per-chunk content budget.
const DefaultMaxBytes = 4096

// ErrChunkTooLarge tags chunks whose single indivisible unit (one line)
// exceeds the budget. Such chunks are emitted oversized rather than
// truncated; truncation would corrupt semantic meaning.
var ErrChunkTooLarge = errors.New("chunk: single line exceeds size budget")

// Chunk is one bounded slice of a file at a given content version.
type Chunk struct {
	SourcePath string `json:"sourcePath"`
	Index      int    `json:"chunkIndex"`
	StartLine  int    `json:"startLine"` // 1-based, inclusive
	EndLine    int    `json:"endLine"`   // 1-based, inclusive
	Content    string `json:"-"`
	Hash       string `json:"contentHash"`
	Oversized  bool   `json:"oversized,omitempty"`
}

// Chunker splits content line-aware within a byte budget.
type Chunker struct {
	maxBytes int
}

func New(maxBytes int) *Chunker {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Chunker{maxBytes: maxBytes}
}

// Split chunks the content of path. Lines are packed greedily into chunks up
// to the byte budget; a single line over budget becomes its own oversized
// chunk, flagged but complete. The chunk hash binds the source path and the
// chunk content, so equal content at different paths stays distinct in the
// index.
func (c *Chunker) Split(path, content string) []Chunk {
	if content == "" {
		return nil
	}

	lines := strings.SplitAfter(content, "\n")
	// SplitAfter leaves a trailing "" when content ends with \n
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}

	var chunks []Chunk
	var buf strings.Builder
	startLine := 1

	flush := func(endLine int, oversized bool) {
		if buf.Len() == 0 {
			return
		}
		chunks = append(chunks, Chunk{
			SourcePath: path,
			Index:      len(chunks),
			StartLine:  startLine,
			EndLine:    endLine,
			Content:    buf.String(),
			Hash:       hashChunk(path, buf.String()),
			Oversized:  oversized,
		})
		buf.Reset()
		startLine = endLine + 1
	}

	for i, line := range lines {
		lineNo := i + 1

		if len(line) > c.maxBytes {
			// close anything pending, then emit the long line on its own
			flush(lineNo-1, false)
			buf.WriteString(line)
			flush(lineNo, true)
			continue
		}

		if buf.Len() > 0 && buf.Len()+len(line) > c.maxBytes {
			flush(lineNo-1, false)
		}
		buf.WriteString(line)
	}
	flush(len(lines), false)

	return chunks
}

// hashChunk derives the chunk identifier from the source path and content.
func hashChunk(path, content string) string {
	return merkle.HashBytes([]byte(path + "\x00" + content))
}
