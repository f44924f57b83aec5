// Package loader reads the document corpus, splits it into chunks and embeds
// the chunks into an index.
package loader

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/perbu/ragstream/pkg/minirag"
)

// LoadDocuments reads every supported file under root and returns the
// extracted text keyed by path relative to root. Paths matching any of the
// exclude patterns are skipped. A missing root yields no documents.
func LoadDocuments(fsys fs.FS, root string, exclude []string) (map[string]string, error) {
	docs := make(map[string]string)

	err := fs.WalkDir(fsys, root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == root && errors.Is(err, fs.ErrNotExist) {
				return fs.SkipAll
			}
			return err
		}

		relPath := relative(root, p)
		if excluded(relPath, exclude) {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		if d.IsDir() || !Supported(p) {
			return nil
		}

		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return fmt.Errorf("reading %s: %w", p, err)
		}

		text, err := extractText(p, data)
		if err != nil {
			return fmt.Errorf("extracting %s: %w", p, err)
		}

		docs[relPath] = text
		return nil
	})

	return docs, err
}

func relative(root, p string) string {
	if root == "." || root == "" {
		return p
	}
	rel := strings.TrimPrefix(p, strings.TrimSuffix(root, "/")+"/")
	if rel == p && p == root {
		return "."
	}
	return rel
}

func excluded(relPath string, patterns []string) bool {
	if relPath == "." {
		return false
	}
	for _, pattern := range patterns {
		if matched, _ := doublestar.Match(pattern, relPath); matched {
			return true
		}
		if matched, _ := doublestar.Match(pattern, path.Base(relPath)); matched {
			return true
		}
	}
	return false
}

// ChunkDocument splits a document into chunks of at most maxChars characters.
// Markdown documents are first split on headings; everything else starts as
// one section. Sections that are too long are cut at paragraph, line,
// sentence or word boundaries, in that order of preference.
func ChunkDocument(docPath, content string, maxChars int) []minirag.Chunk {
	if maxChars <= 0 || maxChars > minirag.MaxChunkChars {
		maxChars = minirag.MaxChunkChars
	}

	var chunks []minirag.Chunk
	for _, sec := range sections(docPath, content) {
		for _, sp := range splitText(sec.body, maxChars) {
			trimmed := strings.TrimLeftFunc(sp.text, unicode.IsSpace)
			lead := len(sp.text) - len(trimmed)
			trimmed = strings.TrimRightFunc(trimmed, unicode.IsSpace)
			if trimmed == "" {
				continue
			}
			chunks = append(chunks, minirag.Chunk{
				Path:    docPath,
				Content: trimmed,
				Heading: sec.heading,
				Offset:  sec.offset + sp.offset + lead,
			})
		}
	}
	return chunks
}

type section struct {
	heading string
	body    string
	offset  int // byte offset of body in the document
}

func sections(docPath, content string) []section {
	if strings.ToLower(path.Ext(docPath)) != ".md" {
		return []section{{body: content}}
	}

	var out []section
	scanner := bufio.NewScanner(strings.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), len(content)+1)

	var current section
	var body strings.Builder
	lineOffset := 0

	flush := func() {
		if strings.TrimSpace(body.String()) != "" {
			current.body = body.String()
			out = append(out, current)
		}
		body.Reset()
	}

	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "#") {
			flush()
			current = section{
				heading: strings.TrimSpace(strings.TrimLeft(line, "#")),
				offset:  lineOffset + len(line) + 1,
			}
		} else {
			if body.Len() == 0 {
				current.offset = lineOffset
			} else {
				body.WriteString("\n")
			}
			body.WriteString(line)
		}
		lineOffset += len(line) + 1
	}
	flush()

	return out
}

type span struct {
	text   string
	offset int
}

var breakpoints = []string{"\n\n", "\n", ". ", " "}

// splitText cuts text into spans of at most maxChars runes.
func splitText(text string, maxChars int) []span {
	var out []span
	pos := 0
	for pos < len(text) {
		rest := text[pos:]
		if utf8.RuneCountInString(rest) <= maxChars {
			out = append(out, span{text: rest, offset: pos})
			break
		}

		cut := runeOffset(rest, maxChars)
		end := cut
		window := rest[:cut]
		for _, bp := range breakpoints {
			if i := strings.LastIndex(window, bp); i >= 0 && i+len(bp) > cut/2 {
				end = i + len(bp)
				break
			}
		}

		out = append(out, span{text: rest[:end], offset: pos})
		pos += end
	}
	return out
}

// runeOffset returns the byte offset just past the first n runes of s.
func runeOffset(s string, n int) int {
	count := 0
	for i := range s {
		if count == n {
			return i
		}
		count++
	}
	return len(s)
}

// LoadAndChunkAll loads all documents and chunks them. Chunks are ordered by
// document path, then by position within the document.
func LoadAndChunkAll(fsys fs.FS, root string, exclude []string, maxChars int) ([]minirag.Chunk, int, error) {
	docs, err := LoadDocuments(fsys, root, exclude)
	if err != nil {
		return nil, 0, err
	}

	paths := make([]string, 0, len(docs))
	for p := range docs {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var allChunks []minirag.Chunk
	for _, p := range paths {
		allChunks = append(allChunks, ChunkDocument(p, docs[p], maxChars)...)
	}

	return allChunks, len(docs), nil
}
