package document

import (
	"fmt"
	"io"

	"github.com/tsawler/tabula/model"
	"github.com/tsawler/tabula/odt"
)

// OdtParser OpenDocument文本(.odt)解析器
type OdtParser struct{}

// NewOdtParser 创建一个新的ODT解析器
func NewOdtParser() Parser {
	return &OdtParser{}
}

// Parse 解析ODT文件
// 标题、正文段落和列表项按文档顺序输出，表格不参与输出，与DOCX保持一致
func (p *OdtParser) Parse(filePath string) (*SourceDocument, error) {
	r, err := odt.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open odt file: %w", err)
	}
	defer r.Close()

	content, err := r.Document()
	if err != nil {
		return nil, fmt.Errorf("failed to extract odt text: %w", err)
	}

	var texts []string
	for _, page := range content.Pages {
		for _, elem := range page.Elements {
			switch e := elem.(type) {
			case *model.Heading:
				texts = append(texts, e.Text)
			case *model.Paragraph:
				texts = append(texts, e.Text)
			case *model.List:
				for _, item := range e.Items {
					texts = append(texts, item.Text)
				}
			}
		}
	}

	doc := newSourceDocument(Odt, filePath, texts)
	meta := r.Metadata()
	doc.Meta = Metadata{
		Title:    meta.Title,
		Author:   meta.Author,
		Subject:  meta.Subject,
		Keywords: meta.Keywords,
	}

	return doc, nil
}

// ParseReader 从ReaderAt解析ODT内容
func (p *OdtParser) ParseReader(r io.ReaderAt, size int64) (*SourceDocument, error) {
	var doc *SourceDocument
	err := spoolTemp(r, size, "doc2pdf-*.odt", func(path string) error {
		var err error
		doc, err = p.Parse(path)
		return err
	})
	if err != nil {
		return nil, err
	}
	doc.Source = ""
	return doc, nil
}
