package pdf

import (
	"bytes"
	"go/build"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempPDF(t *testing.T, cfg Config, paragraphs ...string) (string, *Document) {
	doc, err := New(cfg, WithCreationDate(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)))
	require.NoError(t, err)

	for _, p := range paragraphs {
		require.NoError(t, doc.AddParagraph(p))
	}

	path := filepath.Join(t.TempDir(), "out.pdf")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, doc.Output(f))
	require.NoError(t, f.Close())

	return path, doc
}

func TestDocumentWritesParagraphsInOrder(t *testing.T) {
	path, doc := writeTempPDF(t, DefaultConfig(), "Hello world", "Second paragraph.")

	assert.Equal(t, 2, doc.Paragraphs())
	assert.Equal(t, 1, doc.PageCount())
	assert.NoError(t, doc.Err())

	pages, err := ExtractText(path)
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, 1, pages[0].Number)
	assert.Equal(t, []string{"Hello world", "Second paragraph."}, pages[0].Lines)
}

func TestDocumentEmptyParagraph(t *testing.T) {
	path, doc := writeTempPDF(t, DefaultConfig(), "Above", "", "Below")
	assert.Equal(t, 3, doc.Paragraphs())

	// 空段落只占位，不产生文本
	pages, err := ExtractText(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Above", "Below"}, Lines(pages))
}

func TestDocumentEmpty(t *testing.T) {
	path, doc := writeTempPDF(t, DefaultConfig())

	assert.Equal(t, 0, doc.Paragraphs())
	assert.Equal(t, 1, doc.PageCount())

	info, err := InspectFile(path)
	require.NoError(t, err)
	assert.Equal(t, 1, info.Pages)
	assert.Greater(t, info.Size, int64(0))
}

func TestDocumentPageOverflow(t *testing.T) {
	// A4一页约26行，1200个单词需要多页
	words := make([]string, 1200)
	for i := range words {
		words[i] = "word" + strings.Repeat("x", i%5)
	}
	long := strings.Join(words, " ")

	path, doc := writeTempPDF(t, DefaultConfig(), "Intro", long, "Outro")
	assert.Greater(t, doc.PageCount(), 1)

	pages, err := ExtractText(path)
	require.NoError(t, err)
	assert.Len(t, pages, doc.PageCount())

	lines := Lines(pages)
	require.GreaterOrEqual(t, len(lines), 3)
	assert.Equal(t, "Intro", lines[0])
	assert.Equal(t, "Outro", lines[len(lines)-1])
	// 自动换行只在空格处断开，拼回去应与原段落一致
	assert.Equal(t, long, strings.Join(lines[1:len(lines)-1], " "))
}

func TestDocumentTranslatesToCodePage(t *testing.T) {
	path, _ := writeTempPDF(t, DefaultConfig(), "Café (draft) \\ 100€")

	pages, err := ExtractText(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Café (draft) \\ 100€"}, Lines(pages))
}

func TestDocumentRejectsCharactersOutsideCodePage(t *testing.T) {
	doc, err := New(DefaultConfig())
	require.NoError(t, err)

	require.NoError(t, doc.AddParagraph("Plain"))
	err = doc.AddParagraph("日本語 text")
	assert.ErrorIs(t, err, ErrUnsupportedCharacter)
	assert.Contains(t, err.Error(), "paragraph 1")
	assert.Equal(t, 1, doc.Paragraphs())
}

// gofpdfFont 返回gofpdf模块自带的字体文件，找不到时跳过测试
func gofpdfFont(t *testing.T, name string) string {
	modCache := os.Getenv("GOMODCACHE")
	if modCache == "" {
		modCache = filepath.Join(build.Default.GOPATH, "pkg", "mod")
	}
	path := filepath.Join(modCache, "github.com", "jung-kurt", "gofpdf@v1.16.2", "font", name)
	if _, err := os.Stat(path); err != nil {
		t.Skipf("font %s not available: %v", name, err)
	}
	return path
}

func TestDocumentUTF8FontFile(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FontFamily = "DejaVu"
	cfg.FontFile = gofpdfFont(t, "DejaVuSansCondensed.ttf")

	path, doc := writeTempPDF(t, cfg, "Привет, мир", "Ελληνικά", "Plain text")
	assert.Equal(t, 3, doc.Paragraphs())

	info, err := InspectFile(path)
	require.NoError(t, err)
	assert.Equal(t, 1, info.Pages)
}

func TestDocumentMetadata(t *testing.T) {
	doc, err := New(DefaultConfig(), WithMetadata("Quarterly Report", "Jane Doe", "Finance"))
	require.NoError(t, err)
	require.NoError(t, doc.AddParagraph("Body"))

	var buf bytes.Buffer
	require.NoError(t, doc.Output(&buf))

	info, err := Inspect(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, "Quarterly Report", info.Title)
	assert.Equal(t, "Jane Doe", info.Author)
	assert.Equal(t, "Finance", info.Subject)
}

func TestDocumentOutputOnce(t *testing.T) {
	doc, err := New(DefaultConfig())
	require.NoError(t, err)

	require.NoError(t, doc.Output(&bytes.Buffer{}))
	assert.Error(t, doc.Output(&bytes.Buffer{}))
	assert.Error(t, doc.AddParagraph("late"))
}

func TestDocumentDeterministicOutput(t *testing.T) {
	render := func() []byte {
		doc, err := New(DefaultConfig(),
			WithCreationDate(time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)),
			WithMetadata("Title", "Author", ""),
		)
		require.NoError(t, err)
		require.NoError(t, doc.AddParagraph("Same content"))
		var buf bytes.Buffer
		require.NoError(t, doc.Output(&buf))
		return buf.Bytes()
	}

	assert.Equal(t, render(), render())
}

func TestDocumentMissingFontFile(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FontFamily = "Body"
	cfg.FontFile = filepath.Join(t.TempDir(), "missing.ttf")

	_, err := New(cfg)
	assert.Error(t, err)
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	assert.Equal(t, DefaultConfig().PageSize, cfg.PageSize)
	assert.Equal(t, 12.0, cfg.FontSize)
	assert.Equal(t, 10.0, cfg.LineHeight)
}

func TestInspectRejectsGarbage(t *testing.T) {
	_, err := Inspect(bytes.NewReader([]byte("not a pdf")))
	assert.Error(t, err)
}
