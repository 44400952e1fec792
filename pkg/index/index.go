// Package index chunks source trees into embeddable passages. It feeds the
// embeddings and vectorstore packages; it knows nothing about agents.
package index

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// DefaultMaxChunkWords bounds a chunk's size unless overridden.
const DefaultMaxChunkWords = 1500

var defaultIgnorePatterns = []string{
	"node_modules", ".git", "dist", "build", "__pycache__", ".env", "vendor",
}

var languageByExt = map[string]string{
	".go":   "go",
	".ts":   "typescript",
	".tsx":  "typescript",
	".js":   "javascript",
	".jsx":  "javascript",
	".py":   "python",
	".md":   "markdown",
	".json": "json",
	".yaml": "yaml",
	".yml":  "yaml",
}

// Chunk is one embeddable passage cut from a file.
type Chunk struct {
	ID         string `json:"id"`
	Filename   string `json:"filename"`
	Text       string `json:"text"`
	Repository string `json:"repository"`
	Language   string `json:"language"`
	ChunkIndex int    `json:"chunk_index"`
}

// Indexer walks a directory tree and cuts indexable files into chunks.
type Indexer struct {
	maxChunkWords  int
	ignorePatterns []string
}

// Option configures an Indexer.
type Option func(*Indexer)

// WithMaxChunkWords overrides the per-chunk word budget.
func WithMaxChunkWords(n int) Option {
	return func(ix *Indexer) {
		if n > 0 {
			ix.maxChunkWords = n
		}
	}
}

// WithIgnorePatterns replaces the default path ignore list.
func WithIgnorePatterns(patterns []string) Option {
	return func(ix *Indexer) { ix.ignorePatterns = patterns }
}

// New creates an Indexer.
func New(opts ...Option) *Indexer {
	ix := &Indexer{
		maxChunkWords:  DefaultMaxChunkWords,
		ignorePatterns: defaultIgnorePatterns,
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// ShouldIndex reports whether a file path is worth indexing, based on its
// extension and the ignore list.
func (ix *Indexer) ShouldIndex(path string) bool {
	for _, pattern := range ix.ignorePatterns {
		if strings.Contains(path, pattern) {
			return false
		}
	}
	_, ok := languageByExt[filepath.Ext(path)]
	return ok
}

// Language detects a file's language from its extension.
func Language(path string) string {
	if lang, ok := languageByExt[filepath.Ext(path)]; ok {
		return lang
	}
	return "unknown"
}

// ChunkText splits content into word-budgeted chunks along line boundaries.
// A single oversized line still becomes its own chunk; content is never
// dropped.
func (ix *Indexer) ChunkText(content string) []string {
	lines := strings.Split(content, "\n")

	var chunks []string
	var current []string
	size := 0
	for _, line := range lines {
		words := len(strings.Fields(line))
		if size+words > ix.maxChunkWords && len(current) > 0 {
			chunks = append(chunks, strings.Join(current, "\n"))
			current = current[:0]
			size = 0
		}
		current = append(current, line)
		size += words
	}
	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, "\n"))
	}
	return chunks
}

// IndexDirectory walks root and returns chunks for every indexable file.
// Unreadable files are skipped with an error note so a single bad file
// cannot abort a corpus build.
func (ix *Indexer) IndexDirectory(root, repository string) ([]Chunk, error) {
	var out []Chunk

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !ix.ShouldIndex(path) {
			return nil
		}

		content, err := os.ReadFile(path)
		if err != nil {
			// Keep walking; one unreadable file is not fatal.
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			rel = path
		}
		lang := Language(path)

		for i, text := range ix.ChunkText(string(content)) {
			if strings.TrimSpace(text) == "" {
				continue
			}
			out = append(out, Chunk{
				ID:         uuid.NewString(),
				Filename:   rel,
				Text:       text,
				Repository: repository,
				Language:   lang,
				ChunkIndex: i,
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	return out, nil
}
