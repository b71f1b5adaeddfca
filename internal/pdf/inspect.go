package pdf

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"golang.org/x/text/encoding/charmap"
)

// Info PDF文件的基本信息
type Info struct {
	Pages   int    // 页数
	Size    int64  // 文件大小(字节)
	Title   string // 信息字典中的标题
	Author  string // 信息字典中的作者
	Subject string // 信息字典中的主题
}

// PageText 一页中按顺序出现的文本行
type PageText struct {
	Number int
	Lines  []string
}

// Inspect 校验PDF，统计页数并读取信息字典
func Inspect(rs io.ReadSeeker) (*Info, error) {
	conf := model.NewDefaultConfiguration()

	size, err := rs.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, fmt.Errorf("failed to determine pdf size: %w", err)
	}
	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to rewind pdf: %w", err)
	}

	if err := api.Validate(rs, conf); err != nil {
		return nil, fmt.Errorf("invalid pdf: %w", err)
	}

	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to rewind pdf: %w", err)
	}
	info, err := api.PDFInfo(rs, "", nil, false, conf)
	if err != nil {
		return nil, fmt.Errorf("failed to read pdf info: %w", err)
	}

	return &Info{
		Pages:   info.PageCount,
		Size:    size,
		Title:   info.Title,
		Author:  info.Author,
		Subject: info.Subject,
	}, nil
}

// InspectFile 校验PDF文件并统计页数
func InspectFile(filePath string) (*Info, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open pdf: %w", err)
	}
	defer f.Close()

	return Inspect(f)
}

var pageFilePattern = regexp.MustCompile(`(\d+)\.txt$`)

// ExtractText 从PDF内容流中读取文本行，按页返回
// 只识别字面量字符串的Tj操作，足够读回本项目生成的PDF
func ExtractText(filePath string) ([]PageText, error) {
	// 创建临时目录用于存放提取的内容流
	tmpDir, err := os.MkdirTemp("", "pdfcpu_extract_")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	conf := model.NewDefaultConfiguration()
	if err := api.ExtractContentFile(filePath, tmpDir, nil, conf); err != nil {
		return nil, fmt.Errorf("failed to extract content from pdf: %w", err)
	}

	entries, err := os.ReadDir(tmpDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read extracted content dir: %w", err)
	}

	var pages []PageText
	for _, e := range entries {
		m := pageFilePattern.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		number, _ := strconv.Atoi(m[1])

		data, err := os.ReadFile(filepath.Join(tmpDir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read page content: %w", err)
		}
		pages = append(pages, PageText{
			Number: number,
			Lines:  showTextOperands(data),
		})
	}

	// 文件名按字典序排列，页码需要按数值排序
	sort.Slice(pages, func(i, j int) bool {
		return pages[i].Number < pages[j].Number
	})

	return pages, nil
}

// Lines 把所有页的文本行按顺序展开
func Lines(pages []PageText) []string {
	var lines []string
	for _, p := range pages {
		lines = append(lines, p.Lines...)
	}
	return lines
}

// showTextOperands 扫描内容流，返回每个 (string) Tj 的解码文本
func showTextOperands(content []byte) []string {
	var lines []string
	decoder := charmap.Windows1252.NewDecoder()

	for i := 0; i < len(content); i++ {
		if content[i] != '(' {
			continue
		}
		raw, next := readLiteral(content, i)
		i = next - 1

		rest := strings.TrimLeft(string(content[next:min(len(content), next+8)]), " \t\r\n")
		if !strings.HasPrefix(rest, "Tj") {
			continue
		}

		text, err := decoder.Bytes(raw)
		if err != nil {
			text = raw
		}
		lines = append(lines, string(text))
	}

	return lines
}

// readLiteral 读取从start处'('开始的字面量字符串，返回解转义后的字节和结束位置
func readLiteral(content []byte, start int) ([]byte, int) {
	var out []byte
	depth := 0

	for i := start; i < len(content); i++ {
		c := content[i]
		switch {
		case c == '\\' && i+1 < len(content):
			i++
			switch e := content[i]; e {
			case 'n':
				out = append(out, '\n')
			case 'r':
				out = append(out, '\r')
			case 't':
				out = append(out, '\t')
			case 'b':
				out = append(out, '\b')
			case 'f':
				out = append(out, '\f')
			case '\r', '\n':
				// 续行
			default:
				if e >= '0' && e <= '7' {
					v := int(e - '0')
					for k := 0; k < 2 && i+1 < len(content) && content[i+1] >= '0' && content[i+1] <= '7'; k++ {
						i++
						v = v*8 + int(content[i]-'0')
					}
					out = append(out, byte(v))
				} else {
					out = append(out, e)
				}
			}
		case c == '(':
			if depth > 0 {
				out = append(out, c)
			}
			depth++
		case c == ')':
			depth--
			if depth == 0 {
				return out, i + 1
			}
			out = append(out, c)
		default:
			out = append(out, c)
		}
	}

	return out, len(content)
}
