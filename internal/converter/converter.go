// Package converter 把文字处理文档转换为分页的PDF
package converter

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/fyerfyer/doc2pdf/internal/document"
	"github.com/fyerfyer/doc2pdf/internal/pdf"
	"github.com/sirupsen/logrus"
)

var (
	// ErrSourceUnreadable 源文档不存在、无权限或格式损坏
	ErrSourceUnreadable = errors.New("source document unreadable")

	// ErrDestinationUnwritable 目标路径无效或无法写入
	ErrDestinationUnwritable = errors.New("destination unwritable")
)

// Result 一次转换的结果
type Result struct {
	Paragraphs   int               `json:"paragraphs"`    // 写入的段落数
	Pages        int               `json:"pages"`         // 输出页数
	Bytes        int64             `json:"bytes"`         // 输出大小(字节)
	SourceSHA256 string            `json:"source_sha256"` // 源文档内容哈希
	Metadata     document.Metadata `json:"metadata"`      // 源文档元数据
}

// Converter 文档到PDF的转换器
// 单次转换是同步、单线程的；不同转换之间互不影响
type Converter struct {
	pdfConfig pdf.Config
	logger    *logrus.Logger
}

// Option 转换器配置选项
type Option func(*Converter)

// WithPDFConfig 设置PDF版式
func WithPDFConfig(cfg pdf.Config) Option {
	return func(c *Converter) {
		c.pdfConfig = cfg
	}
}

// WithLogger 设置日志记录器
func WithLogger(logger *logrus.Logger) Option {
	return func(c *Converter) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New 创建转换器
func New(opts ...Option) *Converter {
	c := &Converter{
		pdfConfig: pdf.DefaultConfig(),
		logger:    logrus.New(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Convert 读取sourcePath的段落并写成destPath处的PDF
// 源文档完全解析成功之前不会创建目标文件；目标文件通过临时文件+重命名写入
func (c *Converter) Convert(sourcePath, destPath string) (*Result, error) {
	if sourcePath == "" {
		return nil, fmt.Errorf("%w: empty source path", ErrSourceUnreadable)
	}
	if destPath == "" {
		return nil, fmt.Errorf("%w: empty destination path", ErrDestinationUnwritable)
	}

	info, err := os.Stat(sourcePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSourceUnreadable, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrSourceUnreadable, sourcePath)
	}

	// 只读取一次源文件，哈希和解析使用同一份内容
	data, err := os.ReadFile(sourcePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSourceUnreadable, err)
	}

	// 创建时间取源文件的修改时间，相同输入得到相同的输出
	var buf bytes.Buffer
	result, err := c.ConvertReader(bytes.NewReader(data), int64(len(data)), document.DetectFormat(sourcePath), &buf, info.ModTime())
	if err != nil {
		return nil, err
	}

	if err := writeFileAtomic(destPath, buf.Bytes()); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDestinationUnwritable, err)
	}

	c.logger.WithFields(logrus.Fields{
		"source":     sourcePath,
		"dest":       destPath,
		"paragraphs": result.Paragraphs,
		"pages":      result.Pages,
		"bytes":      result.Bytes,
	}).Info("Document converted")

	return result, nil
}

// ConvertReader 从ReaderAt读取源文档，把PDF写入w
// createdAt为零值时由gofpdf使用当前时间
func (c *Converter) ConvertReader(r io.ReaderAt, size int64, format document.Format, w io.Writer, createdAt time.Time) (*Result, error) {
	parser, err := document.ParserFor(format)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSourceUnreadable, err)
	}

	h := sha256.New()
	if _, err := io.Copy(h, io.NewSectionReader(r, 0, size)); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSourceUnreadable, err)
	}

	src, err := parser.ParseReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSourceUnreadable, err)
	}

	result, err := c.render(src, w, createdAt)
	if err != nil {
		return nil, err
	}
	result.SourceSHA256 = hex.EncodeToString(h.Sum(nil))

	c.logger.WithFields(logrus.Fields{
		"format":     format,
		"paragraphs": result.Paragraphs,
		"pages":      result.Pages,
		"bytes":      result.Bytes,
	}).Debug("Document stream converted")

	return result, nil
}

// render 按文档顺序写入所有段落
func (c *Converter) render(src *document.SourceDocument, w io.Writer, createdAt time.Time) (*Result, error) {
	doc, err := pdf.New(c.pdfConfig,
		pdf.WithCreationDate(createdAt),
		pdf.WithMetadata(src.Meta.Title, src.Meta.Author, src.Meta.Subject),
	)
	if err != nil {
		return nil, err
	}

	for _, p := range src.Paragraphs {
		if err := doc.AddParagraph(p.Text); err != nil {
			return nil, err
		}
	}

	cw := &countingWriter{w: w}
	if err := doc.Output(cw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDestinationUnwritable, err)
	}

	return &Result{
		Paragraphs: doc.Paragraphs(),
		Pages:      doc.PageCount(),
		Bytes:      cw.n,
		Metadata:   src.Meta,
	}, nil
}

// writeFileAtomic 先写入同目录下的临时文件，刷盘后重命名为目标文件
func writeFileAtomic(destPath string, data []byte) (err error) {
	dir := filepath.Dir(destPath)
	tmp, err := os.CreateTemp(dir, ".doc2pdf-*.tmp")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Chmod(0644); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), destPath)
}

// countingWriter 统计写入的字节数
type countingWriter struct {
	w io.Writer
	n int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += int64(n)
	return n, err
}
