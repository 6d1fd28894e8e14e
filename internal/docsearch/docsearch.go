// Package docsearch indexes the built-in help articles and ranks their
// sections against free-text questions with Okapi BM25.
package docsearch

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

//go:embed content/*.md
var builtin embed.FS

// Section is one heading of a help article and the text beneath it.
type Section struct {
	ID      string `json:"id"`
	Article string `json:"article"`
	Title   string `json:"title"`
	Body    string `json:"body"`
}

// Result is a ranked section.
type Result struct {
	Section
	Score float64 `json:"score"`
}

// Index is immutable after construction and safe for concurrent use.
type Index struct {
	sections []Section
	scorer   *bm25
}

// NewBuiltin indexes the articles embedded in the binary.
func NewBuiltin() (*Index, error) {
	return NewFromFS(builtin, "content")
}

// NewFromFS indexes every .md file under dir.
func NewFromFS(fsys fs.FS, dir string) (*Index, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read docs: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".md") {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	md := goldmark.New()
	var sections []Section
	for _, name := range names {
		source, err := fs.ReadFile(fsys, path.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		sections = append(sections, splitSections(md, strings.TrimSuffix(name, ".md"), source)...)
	}
	return New(sections), nil
}

// New indexes prepared sections.
func New(sections []Section) *Index {
	docs := make([][]weightedField, len(sections))
	for i, s := range sections {
		docs[i] = []weightedField{{text: s.Title, weight: 3}, {text: s.Body, weight: 1}}
	}
	return &Index{sections: sections, scorer: newBM25(docs)}
}

// Len returns the number of indexed sections.
func (idx *Index) Len() int { return len(idx.sections) }

// Search returns at most limit sections with a positive score, best first.
func (idx *Index) Search(query string, limit int) []Result {
	hits := idx.scorer.search(query, limit)
	out := make([]Result, 0, len(hits))
	for _, h := range hits {
		out = append(out, Result{Section: idx.sections[h.doc], Score: h.score})
	}
	return out
}

// splitSections starts a new section at every heading. Text before the first
// heading is attached to a section titled after the article.
func splitSections(md goldmark.Markdown, article string, source []byte) []Section {
	doc := md.Parser().Parse(text.NewReader(source))

	var sections []Section
	current := Section{Article: article, Title: article}
	var body strings.Builder
	flush := func() {
		current.Body = strings.TrimSpace(body.String())
		if current.Body != "" {
			current.ID = fmt.Sprintf("%s#%d", article, len(sections)+1)
			sections = append(sections, current)
		}
		body.Reset()
	}

	for node := doc.FirstChild(); node != nil; node = node.NextSibling() {
		if heading, ok := node.(*ast.Heading); ok {
			flush()
			current = Section{Article: article, Title: strings.TrimSpace(inlineText(heading, source))}
			continue
		}
		body.WriteString(inlineText(node, source))
		body.WriteString("\n")
	}
	flush()
	return sections
}

func inlineText(n ast.Node, source []byte) string {
	var b strings.Builder
	_ = ast.Walk(n, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch v := node.(type) {
		case *ast.Text:
			b.Write(v.Segment.Value(source))
			if v.SoftLineBreak() || v.HardLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(v.Value)
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			lines := node.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				b.Write(seg.Value(source))
			}
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return b.String()
}
