package document

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gomarkdown/markdown/ast"
	"github.com/gomarkdown/markdown/parser"
)

// MarkdownParser Markdown文档解析器
// 标题、段落、列表项、代码块各自成为一个段落
type MarkdownParser struct{}

// NewMarkdownParser 创建新的Markdown解析器
func NewMarkdownParser() Parser {
	return &MarkdownParser{}
}

// Parse 解析Markdown文件
func (p *MarkdownParser) Parse(filePath string) (*SourceDocument, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open markdown file: %w", err)
	}

	doc := p.parseBytes(content)
	doc.Source = filePath
	return doc, nil
}

// ParseReader 从ReaderAt解析Markdown内容
func (p *MarkdownParser) ParseReader(r io.ReaderAt, size int64) (*SourceDocument, error) {
	content, err := io.ReadAll(io.NewSectionReader(r, 0, size))
	if err != nil {
		return nil, fmt.Errorf("failed to read markdown content: %w", err)
	}

	return p.parseBytes(content), nil
}

// parseBytes 解析Markdown并按文档顺序收集块级文本
func (p *MarkdownParser) parseBytes(content []byte) *SourceDocument {
	extensions := parser.CommonExtensions | parser.AutoHeadingIDs
	mdParser := parser.NewWithExtensions(extensions)
	root := mdParser.Parse(content)

	var texts []string
	ast.WalkFunc(root, func(node ast.Node, entering bool) ast.WalkStatus {
		if !entering {
			return ast.GoToNext
		}

		switch n := node.(type) {
		case *ast.Heading:
			texts = append(texts, inlineText(n))
			return ast.SkipChildren
		case *ast.Paragraph:
			text := inlineText(n)
			if _, inList := n.GetParent().(*ast.ListItem); inList {
				text = "- " + text
			}
			texts = append(texts, text)
			return ast.SkipChildren
		case *ast.CodeBlock:
			texts = append(texts, strings.TrimSuffix(string(n.Literal), "\n"))
			return ast.SkipChildren
		case *ast.HTMLBlock, *ast.Table:
			return ast.SkipChildren
		}

		return ast.GoToNext
	})

	return newSourceDocument(Markdown, "", texts)
}

// inlineText 拼接块级节点内的行内文本
func inlineText(node ast.Node) string {
	var sb strings.Builder
	ast.WalkFunc(node, func(n ast.Node, entering bool) ast.WalkStatus {
		if !entering {
			return ast.GoToNext
		}
		switch v := n.(type) {
		case *ast.Text:
			sb.WriteString(strings.ReplaceAll(string(v.Literal), "\n", " "))
		case *ast.Code:
			sb.Write(v.Literal)
		case *ast.Softbreak:
			sb.WriteString(" ")
		case *ast.Hardbreak:
			sb.WriteString("\n")
		}
		return ast.GoToNext
	})
	return strings.TrimSpace(sb.String())
}
