package document

import (
	"fmt"
	"io"
	"os"

	tdocx "github.com/tsawler/tabula/docx"
	"github.com/tsawler/tabula/model"
	"github.com/tsawler/tabula/odt"
)

// ReadMetadata 读取文档属性（标题、作者、主题、关键字）
// 元数据是可选的，读取失败时返回空值
func ReadMetadata(filePath string) Metadata {
	var meta model.Metadata

	switch DetectFormat(filePath) {
	case Docx:
		r, err := tdocx.Open(filePath)
		if err != nil {
			return Metadata{}
		}
		defer r.Close()
		meta = r.Metadata()
	case Odt:
		r, err := odt.Open(filePath)
		if err != nil {
			return Metadata{}
		}
		defer r.Close()
		meta = r.Metadata()
	default:
		return Metadata{}
	}

	return Metadata{
		Title:    meta.Title,
		Author:   meta.Author,
		Subject:  meta.Subject,
		Keywords: meta.Keywords,
	}
}

// spoolTemp 把内容写到临时文件后交给fn处理，tabula的读取器只接受文件路径
func spoolTemp(r io.ReaderAt, size int64, pattern string, fn func(path string) error) error {
	tmpFile, err := os.CreateTemp("", pattern)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmpFile.Name())

	if _, err := io.Copy(tmpFile, io.NewSectionReader(r, 0, size)); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to buffer document content: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to buffer document content: %w", err)
	}

	return fn(tmpFile.Name())
}
