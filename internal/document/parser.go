package document

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// ErrUnsupportedFormat 不支持的源文档格式
var ErrUnsupportedFormat = errors.New("unsupported document type")

// Parser 源文档解析器接口
// 负责把不同格式的文档读成按顺序排列的段落
type Parser interface {
	// Parse 解析指定路径的文档
	Parse(filePath string) (*SourceDocument, error)

	// ParseReader 从ReaderAt解析文档，size为内容总长度
	ParseReader(r io.ReaderAt, size int64) (*SourceDocument, error)
}

// Format 表示源文档的格式
type Format string

const (
	// Docx Word文档
	Docx Format = "docx"
	// Odt OpenDocument文本
	Odt Format = "odt"
	// Markdown 文档类型
	Markdown Format = "markdown"
	// PlainText 纯文本类型
	PlainText Format = "plaintext"
	// Unknown 未知类型
	Unknown Format = "unknown"
)

// Paragraph 文档中的一个段落
// 只保留纯文本，样式、图片、表格不做建模
type Paragraph struct {
	Index int    // 段落在文档中的位置，从0开始
	Text  string // 段落文本
}

// Metadata 文档元数据（可选）
type Metadata struct {
	Title    string   `json:"title,omitempty"`
	Author   string   `json:"author,omitempty"`
	Subject  string   `json:"subject,omitempty"`
	Keywords []string `json:"keywords,omitempty"`
}

// SourceDocument 解析后的源文档
type SourceDocument struct {
	Format     Format      // 文档格式
	Source     string      // 源文件信息
	Paragraphs []Paragraph // 按文档顺序排列的段落
	Meta       Metadata    // 元数据
}

// Texts 返回所有段落的文本
func (d *SourceDocument) Texts() []string {
	texts := make([]string, len(d.Paragraphs))
	for i, p := range d.Paragraphs {
		texts[i] = p.Text
	}
	return texts
}

// newSourceDocument 根据段落文本构建源文档，保证索引连续
func newSourceDocument(format Format, source string, texts []string) *SourceDocument {
	doc := &SourceDocument{
		Format:     format,
		Source:     source,
		Paragraphs: make([]Paragraph, 0, len(texts)),
	}
	for _, text := range texts {
		doc.Paragraphs = append(doc.Paragraphs, Paragraph{
			Index: len(doc.Paragraphs),
			Text:  text,
		})
	}
	return doc
}

// ParserFactory 解析器工厂函数，根据文件扩展名创建对应的解析器
func ParserFactory(filePath string) (Parser, error) {
	return ParserFor(DetectFormat(filePath))
}

// ParserFor 根据格式创建解析器
func ParserFor(format Format) (Parser, error) {
	switch format {
	case Docx:
		return NewDocxParser(), nil
	case Odt:
		return NewOdtParser(), nil
	case Markdown:
		return NewMarkdownParser(), nil
	case PlainText:
		return NewPlainTextParser(), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

// DetectFormat 根据文件扩展名检测文档格式
func DetectFormat(filePath string) Format {
	ext := strings.ToLower(filepath.Ext(filePath))

	switch ext {
	case ".docx":
		return Docx
	case ".odt":
		return Odt
	case ".md", ".markdown":
		return Markdown
	case ".txt":
		return PlainText
	default:
		return Unknown
	}
}

// IsSupported 判断文件名是否为支持的源文档类型
func IsSupported(filename string) bool {
	return DetectFormat(filename) != Unknown
}

// splitLines 把文本按行拆成段落
// 去掉末尾的一个换行，避免多出一个空段落
func splitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.TrimSuffix(text, "\n")
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}
