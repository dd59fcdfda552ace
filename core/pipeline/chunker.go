package pipeline

import (
	"fmt"
	"strings"
)

// DefaultWindowSize and DefaultWindowOverlap are the character window
// parameters used for ingestion when no custom chunker is configured.
const (
	DefaultWindowSize    = 1000
	DefaultWindowOverlap = 150
)

// WindowChunker creates a chunker that splits text into fixed-size character
// windows with overlap between consecutive windows. Window boundaries are
// pulled back to the nearest whitespace where possible so words stay intact.
func WindowChunker(windowSize int, overlap int) ChunkFunc {
	return func(text string) ([]TextChunk, error) {
		if windowSize <= 0 {
			return nil, fmt.Errorf("window size must be positive")
		}
		if overlap < 0 || overlap >= windowSize {
			return nil, fmt.Errorf("overlap must be non-negative and smaller than window size")
		}

		// Handle empty or whitespace-only text
		if strings.TrimSpace(text) == "" {
			return []TextChunk{}, nil
		}

		runes := []rune(text)
		var contents []string
		pos := 0
		for pos < len(runes) {
			end := pos + windowSize
			if end > len(runes) {
				end = len(runes)
			} else {
				// Pull the boundary back to the last whitespace in the window
				// so words are not split mid-way.
				boundary := end
				for boundary > pos+windowSize/2 && !isSpace(runes[boundary-1]) {
					boundary--
				}
				if boundary > pos+windowSize/2 {
					end = boundary
				}
			}

			content := strings.TrimSpace(string(runes[pos:end]))
			if content != "" {
				contents = append(contents, content)
			}

			if end == len(runes) {
				break
			}
			// The whitespace pull-back can move end close enough to pos that
			// end-overlap would not advance; force forward progress.
			next := end - overlap
			if next <= pos {
				next = pos + 1
			}
			pos = next
		}

		chunks := make([]TextChunk, 0, len(contents))
		for i, content := range contents {
			chunks = append(chunks, TextChunk{
				Content: content,
				Index:   i,
				Count:   len(contents),
				Metadata: map[string]interface{}{
					"chunking_method": "window",
				},
			})
		}

		return chunks, nil
	}
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\n' || r == '\t' || r == '\r'
}

// SentenceChunker creates a chunker that splits by sentences
func SentenceChunker(maxSentencesPerChunk int) ChunkFunc {
	return func(text string) ([]TextChunk, error) {
		if maxSentencesPerChunk <= 0 {
			return nil, fmt.Errorf("max sentences per chunk must be positive")
		}

		// Handle empty or whitespace-only text
		if strings.TrimSpace(text) == "" {
			return []TextChunk{}, nil
		}

		text = strings.ReplaceAll(text, "! ", "!|")
		text = strings.ReplaceAll(text, "? ", "?|")
		text = strings.ReplaceAll(text, ". ", ".|")

		sentences := strings.Split(text, "|")

		var contents []string
		var currentChunk []string
		for _, sentence := range sentences {
			sentence = strings.TrimSpace(sentence)
			if sentence == "" {
				continue
			}
			currentChunk = append(currentChunk, sentence)

			if len(currentChunk) >= maxSentencesPerChunk {
				contents = append(contents, strings.Join(currentChunk, " "))
				currentChunk = nil
			}
		}

		// Add remaining sentences
		if len(currentChunk) > 0 {
			contents = append(contents, strings.Join(currentChunk, " "))
		}

		chunks := make([]TextChunk, 0, len(contents))
		for i, content := range contents {
			chunks = append(chunks, TextChunk{
				Content: content,
				Index:   i,
				Count:   len(contents),
				Metadata: map[string]interface{}{
					"chunking_method": "sentence",
				},
			})
		}

		return chunks, nil
	}
}

// ParagraphChunker creates a chunker that splits by paragraphs
func ParagraphChunker() ChunkFunc {
	return func(text string) ([]TextChunk, error) {
		paragraphs := strings.Split(text, "\n\n")

		var contents []string
		for _, para := range paragraphs {
			para = strings.TrimSpace(para)
			if para == "" {
				continue
			}
			contents = append(contents, para)
		}

		chunks := make([]TextChunk, 0, len(contents))
		for i, content := range contents {
			chunks = append(chunks, TextChunk{
				Content: content,
				Index:   i,
				Count:   len(contents),
				Metadata: map[string]interface{}{
					"chunking_method": "paragraph",
				},
			})
		}

		return chunks, nil
	}
}

// DefaultChunker is the chunker used for ingestion when none is configured.
// It windows text into overlapping character ranges, which keeps chunk sizes
// predictable for the context budget regardless of document structure.
func DefaultChunker() ChunkFunc {
	return WindowChunker(DefaultWindowSize, DefaultWindowOverlap)
}
