package chunkers

import (
	"context"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/custodia-labs/raglab-cli/internal/core/domain"
)

var (
	headerRe   = regexp.MustCompile(`^(#{1,6})\s+(.+)$`)
	listItemRe = regexp.MustCompile(`^\s*(?:[-*]|\d+[.)）])\s+`)
)

// Sentence terminators for the hierarchical strategy. ASCII '.' is
// deliberately absent so numbered-list markers ("3." ) and date-like
// numeric sequences ("2024.05.01") never become sentence boundaries.
const sentenceTerminators = "。！？；"

// Sentence is the hierarchical strategy: documents are split into
// header-delimited parent blocks, each parent is further split into
// sentence-like child units, and every child carries a parent_id
// back-reference plus positional metadata. Children get embedded; parents
// go to the side store and come back during auto-merge.
type Sentence struct{}

// NewSentence creates the hierarchical sentence chunker. Chunk sizes are
// not configurable here; headers decide the parents and sentence
// boundaries decide the children.
func NewSentence() *Sentence { return &Sentence{} }

// Name returns the strategy name.
func (s *Sentence) Name() string { return domain.StrategySentence }

// Chunk emits one parent node per header-delimited block and one child
// node per sentence inside it. Every child's parent_id resolves to a
// parent in the same result.
func (s *Sentence) Chunk(_ context.Context, docs []domain.Document) (*Result, error) {
	res := &Result{}

	for _, doc := range docs {
		text := normalizeNewlines(doc.Text)
		for _, block := range splitHeaderBlocks(text) {
			if strings.TrimSpace(block.text) == "" {
				continue
			}

			parentID := uuid.New().String()
			parentMD := baseMetadata(doc)
			parentMD[domain.MetaNodeType] = domain.NodeTypeParent
			parentMD[domain.MetaHeaderPath] = block.headerPath

			res.Parents = append(res.Parents, domain.Node{
				ID:       parentID,
				Text:     block.text,
				Metadata: parentMD,
			})

			for i, sent := range SplitSentences(block.text) {
				childMD := baseMetadata(doc)
				childMD[domain.MetaNodeType] = domain.NodeTypeChild
				childMD[domain.MetaHeaderPath] = block.headerPath
				childMD[domain.MetaSentenceIndex] = i
				childMD[domain.MetaParentID] = parentID

				res.Children = append(res.Children, domain.Node{
					ID:       uuid.New().String(),
					Text:     sent,
					ParentID: parentID,
					Metadata: childMD,
				})
			}
		}
	}

	return res, nil
}

type headerBlock struct {
	headerPath string
	text       string
}

// splitHeaderBlocks cuts a markdown document at every header line. The
// header path records the stack of enclosing headers, "/" separated.
func splitHeaderBlocks(text string) []headerBlock {
	lines := strings.Split(text, "\n")

	var blocks []headerBlock
	var stack []string // header titles by level, index = level-1
	var current []string
	currentPath := ""

	flush := func() {
		body := strings.TrimSpace(strings.Join(current, "\n"))
		if body != "" {
			blocks = append(blocks, headerBlock{headerPath: currentPath, text: body})
		}
		current = current[:0]
	}

	for _, line := range lines {
		m := headerRe.FindStringSubmatch(line)
		if m == nil {
			current = append(current, line)
			continue
		}

		flush()
		level := len(m[1])
		title := strings.TrimSpace(m[2])
		if level <= len(stack) {
			stack = stack[:level-1]
		}
		for len(stack) < level-1 {
			stack = append(stack, "")
		}
		stack = append(stack, title)
		currentPath = "/" + strings.Join(stack, "/")
		current = append(current, line)
	}
	flush()

	return blocks
}

// SplitSentences splits a block into sentence-like units. Header lines and
// list items are kept whole; other lines break at full-width terminal
// punctuation. A trailing fragment without a terminator is kept as its own
// unit so no text is lost.
func SplitSentences(text string) []string {
	var sentences []string

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		if headerRe.MatchString(trimmed) || listItemRe.MatchString(line) {
			sentences = append(sentences, trimmed)
			continue
		}

		var current strings.Builder
		for _, r := range trimmed {
			current.WriteRune(r)
			if strings.ContainsRune(sentenceTerminators, r) {
				if s := strings.TrimSpace(current.String()); s != "" {
					sentences = append(sentences, s)
				}
				current.Reset()
			}
		}
		if s := strings.TrimSpace(current.String()); s != "" {
			sentences = append(sentences, s)
		}
	}

	return sentences
}

func normalizeNewlines(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.ReplaceAll(text, "\r", "")
}
