package document

import (
	"fmt"
	"io"
	"os"
)

// PlainTextParser 纯文本解析器
// 每一行作为一个段落
type PlainTextParser struct{}

// NewPlainTextParser 创建一个新的纯文本解析器
func NewPlainTextParser() Parser {
	return &PlainTextParser{}
}

// Parse 解析纯文本文件
func (p *PlainTextParser) Parse(filePath string) (*SourceDocument, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read text file: %w", err)
	}

	return newSourceDocument(PlainText, filePath, splitLines(string(content))), nil
}

// ParseReader 从ReaderAt解析纯文本
func (p *PlainTextParser) ParseReader(r io.ReaderAt, size int64) (*SourceDocument, error) {
	content, err := io.ReadAll(io.NewSectionReader(r, 0, size))
	if err != nil {
		return nil, fmt.Errorf("failed to read text content: %w", err)
	}

	return newSourceDocument(PlainText, "", splitLines(string(content))), nil
}
