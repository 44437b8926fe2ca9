// Package ingest turns externally chunked documents into validated
// passages. Chunking itself is out of scope: the input is the chunk
// file an extraction pipeline produced, one JSON record per line.
package ingest

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	sifterrors "github.com/docsift/docsift/internal/errors"
	"github.com/docsift/docsift/internal/store"
)

// maxLineBytes bounds a single JSONL record (chunks are sentence
// windows, far below this).
const maxLineBytes = 4 * 1024 * 1024

// idTextPrefixLen is how much of the chunk text participates in ID
// derivation.
const idTextPrefixLen = 64

// Source produces validated passages for indexing.
type Source interface {
	// Read returns all passages from the source. Field validation
	// happens here, at the boundary; downstream stages trust the
	// records.
	Read(ctx context.Context) ([]*store.Passage, error)
}

// record is one line of a chunks JSONL file.
type record struct {
	ID       string `json:"id"`
	Text     string `json:"text"`
	Metadata struct {
		SourcePath string `json:"source_path"`
		PageStart  int    `json:"page_start"`
	} `json:"metadata"`
}

// JSONLFile reads passages from a chunks.jsonl file on disk.
type JSONLFile struct {
	Path string
}

// Verify interface implementation at compile time
var _ Source = (*JSONLFile)(nil)

// Read opens the file and decodes it with ReadJSONL.
func (f *JSONLFile) Read(ctx context.Context) ([]*store.Passage, error) {
	file, err := os.Open(f.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, sifterrors.New(sifterrors.ErrCodeFileNotFound,
				fmt.Sprintf("chunk file not found: %s", f.Path), err)
		}
		return nil, sifterrors.Wrap(sifterrors.ErrCodeFilePermission, err)
	}
	defer func() { _ = file.Close() }()

	return ReadJSONL(ctx, file)
}

// ReadJSONL decodes one passage per line. Records are validated at
// this boundary: text and source are required, page must not be
// negative. A record without an id gets one derived from its content
// and position, matching the extraction pipeline's scheme, so
// re-reading identical input yields identical ids.
func ReadJSONL(ctx context.Context, r io.Reader) ([]*store.Passage, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	var passages []*store.Passage
	positions := make(map[string]int) // (source, page) -> next chunk position

	line := 0
	for scanner.Scan() {
		line++
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}

		var rec record
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, sifterrors.New(sifterrors.ErrCodeInvalidPassage,
				fmt.Sprintf("line %d: malformed JSON", line), err)
		}

		p, err := rec.toPassage(line, positions)
		if err != nil {
			return nil, err
		}
		passages = append(passages, p)
	}
	if err := scanner.Err(); err != nil {
		return nil, sifterrors.Wrap(sifterrors.ErrCodeInvalidPassage, err)
	}

	return passages, nil
}

// toPassage validates a record and fills derived fields.
func (rec *record) toPassage(line int, positions map[string]int) (*store.Passage, error) {
	if strings.TrimSpace(rec.Text) == "" {
		return nil, sifterrors.New(sifterrors.ErrCodeInvalidPassage,
			fmt.Sprintf("line %d: record has no text", line), nil)
	}
	if strings.TrimSpace(rec.Metadata.SourcePath) == "" {
		return nil, sifterrors.New(sifterrors.ErrCodeInvalidPassage,
			fmt.Sprintf("line %d: record has no metadata.source_path", line), nil)
	}
	if rec.Metadata.PageStart < 0 {
		return nil, sifterrors.New(sifterrors.ErrCodeInvalidPassage,
			fmt.Sprintf("line %d: negative page_start %d", line, rec.Metadata.PageStart), nil)
	}

	id := rec.ID
	if id == "" {
		posKey := rec.Metadata.SourcePath + "\x00" + strconv.Itoa(rec.Metadata.PageStart)
		id = DeriveID(rec.Metadata.SourcePath, rec.Metadata.PageStart, positions[posKey], rec.Text)
		positions[posKey]++
	}

	return &store.Passage{
		ID:        id,
		Text:      rec.Text,
		Source:    rec.Metadata.SourcePath,
		Page:      rec.Metadata.PageStart,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// DeriveID computes a stable passage id from source, page, chunk
// position and a text prefix. Identical content at the identical
// position always derives the identical id, which is what makes
// re-ingestion idempotent.
func DeriveID(source string, page, position int, text string) string {
	h := sha256.New()
	for _, part := range []string{source, strconv.Itoa(page), strconv.Itoa(position), prefix(text, idTextPrefixLen)} {
		h.Write([]byte(part))
		h.Write([]byte("|"))
	}
	return hex.EncodeToString(h.Sum(nil))[:32]
}

func prefix(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
