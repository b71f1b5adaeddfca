package pdf

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
	"golang.org/x/text/encoding/charmap"
)

// ErrUnsupportedCharacter 段落中含有当前字体无法表示的字符
// 核心字体只覆盖cp1252，需要配置FontFile才能输出其他文字
var ErrUnsupportedCharacter = errors.New("character not supported by font")

// Config PDF版式配置
type Config struct {
	Orientation string  `mapstructure:"orientation" validate:"oneof=P L"`                     // 页面方向：P 或 L
	Unit        string  `mapstructure:"unit" validate:"oneof=pt mm cm in"`                    // 度量单位
	PageSize    string  `mapstructure:"page_size" validate:"oneof=A3 A4 A5 Letter Legal"`     // 纸张大小
	FontFamily  string  `mapstructure:"font_family" validate:"required"`                      // 字体名称
	FontStyle   string  `mapstructure:"font_style" validate:"omitempty,oneof=B I BI IB U"`    // 字体样式
	FontSize    float64 `mapstructure:"font_size" validate:"gt=0"`                            // 字号（磅）
	LineHeight  float64 `mapstructure:"line_height" validate:"gt=0"`                          // 行高（Unit单位）
	Margin      float64 `mapstructure:"margin" validate:"gte=0"`                              // 左、上、右边距，0表示使用默认值
	FontFile    string  `mapstructure:"font_file"`                                            // UTF-8 TrueType字体文件（可选）
	Compress    bool    `mapstructure:"compress"`                                             // 是否压缩页面内容流
}

// DefaultConfig 返回默认版式：A4、毫米、Arial 12号、行高10
func DefaultConfig() Config {
	return Config{
		Orientation: "P",
		Unit:        "mm",
		PageSize:    "A4",
		FontFamily:  "Arial",
		FontSize:    12,
		LineHeight:  10,
		Compress:    true,
	}
}

// withDefaults 用默认值补全未设置的字段
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Orientation == "" {
		c.Orientation = def.Orientation
	}
	if c.Unit == "" {
		c.Unit = def.Unit
	}
	if c.PageSize == "" {
		c.PageSize = def.PageSize
	}
	if c.FontFamily == "" {
		c.FontFamily = def.FontFamily
	}
	if c.FontSize <= 0 {
		c.FontSize = def.FontSize
	}
	if c.LineHeight <= 0 {
		c.LineHeight = def.LineHeight
	}
	return c
}

// Document 只追加的PDF页面缓冲
// 每个段落写成一个占满页宽的自动换行文本块，分页由gofpdf自动完成
type Document struct {
	fpdf       *gofpdf.Fpdf
	cfg        Config
	translate  func(string) string
	paragraphs int
	closed     bool
}

// Option PDF文档选项
type Option func(*Document)

// WithCreationDate 固定文档的创建和修改时间，用于得到可复现的输出
func WithCreationDate(t time.Time) Option {
	return func(d *Document) {
		if !t.IsZero() {
			d.fpdf.SetCreationDate(t)
			d.fpdf.SetModificationDate(t)
		}
	}
}

// WithMetadata 设置文档信息字典
func WithMetadata(title, author, subject string) Option {
	return func(d *Document) {
		if title != "" {
			d.fpdf.SetTitle(title, true)
		}
		if author != "" {
			d.fpdf.SetAuthor(author, true)
		}
		if subject != "" {
			d.fpdf.SetSubject(subject, true)
		}
	}
}

// New 创建一个带起始页的PDF文档
func New(cfg Config, opts ...Option) (*Document, error) {
	cfg = cfg.withDefaults()

	f := gofpdf.New(cfg.Orientation, cfg.Unit, cfg.PageSize, "")
	f.SetCompression(cfg.Compress)
	f.SetCatalogSort(true)
	f.SetCreator("doc2pdf", false)

	if cfg.Margin > 0 {
		f.SetMargins(cfg.Margin, cfg.Margin, cfg.Margin)
		f.SetAutoPageBreak(true, cfg.Margin*2)
	}

	d := &Document{
		fpdf:      f,
		cfg:       cfg,
		translate: func(s string) string { return s },
	}

	// 核心字体只支持cp1252，需要转换；UTF-8字体直接写入
	if cfg.FontFile != "" {
		f.AddUTF8Font(cfg.FontFamily, cfg.FontStyle, cfg.FontFile)
	} else {
		d.translate = f.UnicodeTranslatorFromDescriptor("")
	}

	for _, opt := range opts {
		opt(d)
	}

	f.AddPage()
	f.SetFont(cfg.FontFamily, cfg.FontStyle, cfg.FontSize)
	if f.Err() {
		return nil, fmt.Errorf("failed to initialize pdf: %w", f.Error())
	}

	return d, nil
}

// AddParagraph 追加一个段落
// 空段落输出一个空行
func (d *Document) AddParagraph(text string) error {
	if d.closed {
		return errors.New("pdf document already written")
	}

	if d.cfg.FontFile == "" {
		if r, ok := firstNonCP1252(text); ok {
			return fmt.Errorf("%w: paragraph %d contains %q", ErrUnsupportedCharacter, d.paragraphs, r)
		}
	}

	text = strings.ReplaceAll(text, "\t", "    ")
	d.fpdf.MultiCell(0, d.cfg.LineHeight, d.translate(text), "", "", false)
	if d.fpdf.Err() {
		return fmt.Errorf("failed to add paragraph %d: %w", d.paragraphs, d.fpdf.Error())
	}

	d.paragraphs++
	return nil
}

// firstNonCP1252 返回第一个无法用cp1252编码的字符
func firstNonCP1252(text string) (rune, bool) {
	for _, r := range text {
		if r < 0x80 {
			continue
		}
		if _, ok := charmap.Windows1252.EncodeRune(r); !ok {
			return r, true
		}
	}
	return 0, false
}

// Paragraphs 已写入的段落数
func (d *Document) Paragraphs() int {
	return d.paragraphs
}

// Err 返回gofpdf记录的第一个错误
func (d *Document) Err() error {
	if d.fpdf.Err() {
		return d.fpdf.Error()
	}
	return nil
}

// PageCount 当前页数
func (d *Document) PageCount() int {
	return d.fpdf.PageNo()
}

// Output 把文档写到w，之后不能再追加内容
func (d *Document) Output(w io.Writer) error {
	if d.closed {
		return errors.New("pdf document already written")
	}
	d.closed = true

	if err := d.fpdf.Output(w); err != nil {
		return fmt.Errorf("failed to write pdf: %w", err)
	}
	return nil
}
