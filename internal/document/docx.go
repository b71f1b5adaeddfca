package document

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fumiama/go-docx"
)

// DocxParser Word(.docx)文档解析器
type DocxParser struct{}

// NewDocxParser 创建一个新的DOCX解析器
func NewDocxParser() Parser {
	return &DocxParser{}
}

// Parse 解析DOCX文件，并尽量读取core.xml中的元数据
func (p *DocxParser) Parse(filePath string) (*SourceDocument, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open docx file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat docx file: %w", err)
	}

	doc, err := p.parseBody(file, info.Size())
	if err != nil {
		return nil, err
	}
	doc.Source = filePath
	doc.Meta = ReadMetadata(filePath)

	return doc, nil
}

// ParseReader 从ReaderAt解析DOCX内容
func (p *DocxParser) ParseReader(r io.ReaderAt, size int64) (*SourceDocument, error) {
	doc, err := p.parseBody(r, size)
	if err != nil {
		return nil, err
	}

	// 元数据是可选的，落盘失败时忽略
	_ = spoolTemp(r, size, "doc2pdf-*.docx", func(path string) error {
		doc.Meta = ReadMetadata(path)
		return nil
	})

	return doc, nil
}

// parseBody 只取正文顶层的段落，表格和图片不参与输出
func (p *DocxParser) parseBody(r io.ReaderAt, size int64) (*SourceDocument, error) {
	doc, err := docx.Parse(r, size)
	if err != nil {
		return nil, fmt.Errorf("failed to parse docx: %w", err)
	}

	var texts []string
	for _, item := range doc.Document.Body.Items {
		if para, ok := item.(*docx.Paragraph); ok {
			texts = append(texts, paragraphText(para))
		}
	}

	return newSourceDocument(Docx, "", texts), nil
}

// paragraphText 提取段落的纯文本
// 超链接只保留显示文本，图片跳过
func paragraphText(para *docx.Paragraph) string {
	var sb strings.Builder
	for _, child := range para.Children {
		switch c := child.(type) {
		case *docx.Run:
			writeRunText(&sb, c)
		case *docx.Hyperlink:
			// go-docx自己写出的链接把文本放在instrText里
			if !writeRunText(&sb, &c.Run) {
				sb.WriteString(c.Run.InstrText)
			}
		}
	}
	return sb.String()
}

// writeRunText 写入run中的文本、制表符和换行，返回是否写入了文本
func writeRunText(sb *strings.Builder, run *docx.Run) bool {
	wrote := false
	for _, child := range run.Children {
		switch c := child.(type) {
		case *docx.Text:
			sb.WriteString(c.Text)
			wrote = true
		case *docx.Tab:
			sb.WriteByte('\t')
		case *docx.BarterRabbet:
			sb.WriteByte('\n')
		}
	}
	return wrote
}
