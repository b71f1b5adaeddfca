package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/fumiama/go-docx"
	"github.com/fyerfyer/doc2pdf/internal/converter"
	"github.com/fyerfyer/doc2pdf/internal/pdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeDocx(t *testing.T, dir string, paragraphs ...string) string {
	w := docx.New().WithDefaultTheme()
	for _, p := range paragraphs {
		w.AddParagraph().AddText(p)
	}
	path := filepath.Join(dir, "input.docx")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	_, err = w.WriteTo(f)
	require.NoError(t, err)
	return path
}

// runCLI 执行命令，使用不存在的配置文件以得到默认配置
func runCLI(t *testing.T, args ...string) (string, error) {
	cmd := newRootCmd()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs(append([]string{"--config", filepath.Join(t.TempDir(), "none.yaml"), "--log-level", "error"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestConvertCommand(t *testing.T) {
	dir := t.TempDir()
	src := writeDocx(t, dir, "Hello world", "Second paragraph")
	dst := filepath.Join(dir, "out.pdf")

	out, err := runCLI(t, "convert", src, dst)
	require.NoError(t, err)
	assert.Contains(t, out, "2 paragraphs, 1 pages")

	info, err := pdf.InspectFile(dst)
	require.NoError(t, err)
	assert.Equal(t, 1, info.Pages)

	pages, err := pdf.ExtractText(dst)
	require.NoError(t, err)
	assert.Equal(t, []string{"Hello world", "Second paragraph"}, pdf.Lines(pages))
}

func TestConvertCommandLayoutFlags(t *testing.T) {
	dir := t.TempDir()
	src := writeDocx(t, dir, "Landscape")
	dst := filepath.Join(dir, "wide.pdf")

	_, err := runCLI(t, "convert", "--page-size", "Letter", "--orientation", "L", "--font-size", "10", src, dst)
	require.NoError(t, err)

	pages, err := pdf.ExtractText(dst)
	require.NoError(t, err)
	assert.Equal(t, []string{"Landscape"}, pdf.Lines(pages))
}

func TestConvertCommandErrors(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing source", func(t *testing.T) {
		dst := filepath.Join(dir, "missing.pdf")
		_, err := runCLI(t, "convert", filepath.Join(dir, "nope.docx"), dst)
		assert.ErrorIs(t, err, converter.ErrSourceUnreadable)
		assert.NoFileExists(t, dst)
	})

	t.Run("invalid page size", func(t *testing.T) {
		src := writeDocx(t, dir, "x")
		_, err := runCLI(t, "convert", "--page-size", "B9", src, filepath.Join(dir, "bad.pdf"))
		assert.Error(t, err)
	})

	t.Run("wrong argument count", func(t *testing.T) {
		_, err := runCLI(t, "convert", "only-one.docx")
		assert.Error(t, err)
	})
}
