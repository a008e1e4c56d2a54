// Package textproc is the default Processor: it reads a file as UTF-8 text
// and splits it into fixed-size, word-boundary-aligned chunks. Real format
// parsing (PDF/DOCX/OCR) is an external collaborator wired in its place
// where that support is available; this is the dependency-free fallback
// used when none is configured.
package textproc

import (
	"bufio"
	"context"
	"os"
	"strings"
	"unicode/utf8"

	apperrors "github.com/docuindex/engine/internal/app/errors"
	"github.com/docuindex/engine/internal/app/services/indexer"
)

const defaultChunkSize = 1000

// Processor implements indexer.Processor over plain-text files.
type Processor struct {
	ChunkSize int
}

// New builds a text Processor chunking at chunkSize runes (0 uses the
// default).
func New(chunkSize int) *Processor {
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}
	return &Processor{ChunkSize: chunkSize}
}

var _ indexer.Processor = (*Processor)(nil)

// Process reads sourceURI as a local file path and chunks its contents.
// ocrMode is accepted for interface compatibility but unused: plain-text
// input has nothing to OCR.
func (p *Processor) Process(_ context.Context, sourceURI string, _ string) (indexer.ProcessedDocument, error) {
	f, err := os.Open(sourceURI)
	if err != nil {
		return indexer.ProcessedDocument{}, apperrors.Wrap(apperrors.DocumentProcessingFailed, "open source file", err)
	}
	defer f.Close()

	var sb strings.Builder
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	for scanner.Scan() {
		sb.WriteString(scanner.Text())
		sb.WriteByte('\n')
	}
	if err := scanner.Err(); err != nil {
		return indexer.ProcessedDocument{}, apperrors.Wrap(apperrors.DocumentProcessingFailed, "read source file", err)
	}

	if !utf8.ValidString(sb.String()) {
		return indexer.ProcessedDocument{}, apperrors.New(apperrors.UnsupportedFormat, "file is not valid UTF-8 text")
	}

	return indexer.ProcessedDocument{
		ChunkTexts: chunk(sb.String(), p.ChunkSize),
		Metadata:   map[string]interface{}{"file_type": "text"},
	}, nil
}

// chunk splits text into runs of at most size runes, breaking on the
// nearest preceding whitespace so words aren't split mid-token.
func chunk(text string, size int) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	var chunks []string
	start := 0
	for start < len(runes) {
		end := start + size
		if end >= len(runes) {
			end = len(runes)
		} else {
			for i := end; i > start; i-- {
				if runes[i] == ' ' || runes[i] == '\n' {
					end = i
					break
				}
			}
		}
		piece := strings.TrimSpace(string(runes[start:end]))
		if piece != "" {
			chunks = append(chunks, piece)
		}
		start = end
	}
	return chunks
}
