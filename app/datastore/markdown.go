package datastore

import (
	"bytes"
	"fmt"
	"regexp"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

// DescriptionConverter renders dataset descriptions. Mentions of the form
// @dataset_id become links to that dataset when it exists.
type DescriptionConverter struct {
	known    map[string]bool
	goldmark goldmark.Markdown
}

func NewDescriptionConverter(datasetIDs []string) *DescriptionConverter {
	dc := &DescriptionConverter{known: make(map[string]bool, len(datasetIDs))}
	for _, id := range datasetIDs {
		dc.known[id] = true
	}
	dc.goldmark = goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithParserOptions(
			parser.WithASTTransformers(util.Prioritized(&mentionTransformer{dc: dc}, 100)),
		),
	)
	return dc
}

func (dc *DescriptionConverter) ConvertToHTML(src string) (string, error) {
	var buf bytes.Buffer
	if err := dc.goldmark.Convert([]byte(src), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

type mentionTransformer struct {
	dc *DescriptionConverter
}

var mentionRegex = regexp.MustCompile(`@([a-zA-Z0-9_-]+)`)

func (t *mentionTransformer) Transform(node *ast.Document, reader text.Reader, pc parser.Context) {
	var texts []*ast.Text
	_ = ast.Walk(node, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n.Kind() {
		case ast.KindLink, ast.KindAutoLink, ast.KindCodeSpan:
			return ast.WalkSkipChildren, nil
		case ast.KindText:
			texts = append(texts, n.(*ast.Text))
		}
		return ast.WalkContinue, nil
	})

	// Replacing nodes during the walk would invalidate it.
	for _, txt := range texts {
		content := string(txt.Segment.Value(reader.Source()))
		matches := mentionRegex.FindAllStringSubmatchIndex(content, -1)
		if len(matches) == 0 {
			continue
		}

		var newNodes []ast.Node
		lastIndex := 0
		for _, match := range matches {
			id := content[match[2]:match[3]]
			if !t.dc.known[id] {
				continue
			}
			start, end := match[0], match[1]
			if start > lastIndex {
				newNodes = append(newNodes, ast.NewString([]byte(content[lastIndex:start])))
			}
			link := ast.NewLink()
			link.Destination = []byte(fmt.Sprintf("/api/datasets/%s", id))
			link.AppendChild(link, ast.NewString([]byte("@"+id)))
			newNodes = append(newNodes, link)
			lastIndex = end
		}
		if len(newNodes) == 0 {
			continue
		}
		if lastIndex < len(content) {
			newNodes = append(newNodes, ast.NewString([]byte(content[lastIndex:])))
		}

		parent := txt.Parent()
		for _, n := range newNodes {
			parent.InsertBefore(parent, txt, n)
		}
		parent.RemoveChild(parent, txt)
	}
}
