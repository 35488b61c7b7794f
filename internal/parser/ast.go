package parser

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// fencedBlock is a fenced code block found in markdown.
type fencedBlock struct {
	Lang    string
	Content string
}

// firstPayloadBlock walks the markdown AST and returns the first fenced code
// block tagged json, yaml or yml.
func firstPayloadBlock(source []byte) (fencedBlock, bool) {
	var found fencedBlock
	ok := false

	root := goldmark.DefaultParser().Parse(text.NewReader(source))
	walker := func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		fenced, isFenced := node.(*ast.FencedCodeBlock)
		if !isFenced {
			return ast.WalkContinue, nil
		}

		lang := strings.ToLower(string(fenced.Language(source)))
		if lang != "json" && lang != "yaml" && lang != "yml" {
			return ast.WalkSkipChildren, nil
		}

		var content bytes.Buffer
		lines := fenced.Lines()
		for i := 0; i < lines.Len(); i++ {
			line := lines.At(i)
			content.Write(line.Value(source))
		}
		found = fencedBlock{Lang: lang, Content: content.String()}
		ok = true
		return ast.WalkStop, nil
	}

	if err := ast.Walk(root, walker); err != nil {
		return fencedBlock{}, false
	}
	return found, ok
}
