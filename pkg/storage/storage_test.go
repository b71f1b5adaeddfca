package storage

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readAll(t *testing.T, r io.ReadCloser) string {
	defer r.Close()
	b, err := io.ReadAll(r)
	require.NoError(t, err)
	return string(b)
}

// exerciseStorage 对任意Storage实现执行相同的读写检查
func exerciseStorage(t *testing.T, s Storage) {
	ctx := context.Background()
	id := uuid.New().String()
	key := SourceKey(id, "Report.DOCX")
	content := "这是测试文件内容"

	t.Run("Put", func(t *testing.T) {
		info, err := s.Put(ctx, key, strings.NewReader(content), int64(len(content)))
		require.NoError(t, err)
		assert.Equal(t, key, info.Key)
		assert.Equal(t, int64(len(content)), info.Size)
		assert.Equal(t, "application/vnd.openxmlformats-officedocument.wordprocessingml.document", info.MimeType)
	})

	t.Run("Get", func(t *testing.T) {
		r, err := s.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, content, readAll(t, r))

		_, err = s.Get(ctx, "sources/missing.docx")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("Stat", func(t *testing.T) {
		info, err := s.Stat(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, int64(len(content)), info.Size)
	})

	t.Run("Overwrite", func(t *testing.T) {
		_, err := s.Put(ctx, key, strings.NewReader("v2"), -1)
		require.NoError(t, err)

		r, err := s.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, "v2", readAll(t, r))
	})

	t.Run("List", func(t *testing.T) {
		pdfKey := ResultKey(id)
		_, err := s.Put(ctx, pdfKey, bytes.NewReader([]byte("%PDF-1.3")), 8)
		require.NoError(t, err)

		sources, err := s.List(ctx, SourcePrefix)
		require.NoError(t, err)
		assert.Contains(t, keysOf(sources), key)
		assert.NotContains(t, keysOf(sources), pdfKey)

		results, err := s.List(ctx, ResultPrefix)
		require.NoError(t, err)
		assert.Contains(t, keysOf(results), pdfKey)
	})

	t.Run("Exists", func(t *testing.T) {
		exists, err := s.Exists(ctx, key)
		require.NoError(t, err)
		assert.True(t, exists)

		exists, err = s.Exists(ctx, "sources/non-existent.docx")
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, s.Delete(ctx, key))
		require.NoError(t, s.Delete(ctx, ResultKey(id)))

		exists, err := s.Exists(ctx, key)
		require.NoError(t, err)
		assert.False(t, exists)

		// 删除不存在的对象不报错
		assert.NoError(t, s.Delete(ctx, key))
	})
}

func keysOf(files []FileInfo) []string {
	keys := make([]string, len(files))
	for i, f := range files {
		keys[i] = f.Key
	}
	return keys
}

// TestLocalStorage 测试本地存储实现
func TestLocalStorage(t *testing.T) {
	s, err := NewLocalStorage(LocalConfig{Path: t.TempDir()})
	require.NoError(t, err)

	exerciseStorage(t, s)
}

func TestLocalStorageRejectsEscapingKeys(t *testing.T) {
	dir := t.TempDir()
	s, err := NewLocalStorage(LocalConfig{Path: filepath.Join(dir, "objects")})
	require.NoError(t, err)

	ctx := context.Background()
	for _, key := range []string{"", "../outside.txt", "sources/../../outside.txt"} {
		_, err := s.Put(ctx, key, strings.NewReader("x"), 1)
		assert.Error(t, err, key)
	}

	_, err = os.Stat(filepath.Join(dir, "outside.txt"))
	assert.True(t, os.IsNotExist(err))
}

func TestLocalStorageListEmptyPrefix(t *testing.T) {
	s, err := NewLocalStorage(LocalConfig{Path: t.TempDir()})
	require.NoError(t, err)

	files, err := s.List(context.Background(), ResultPrefix)
	require.NoError(t, err)
	assert.Empty(t, files)
}

// TestMinioStorage 需要可用的MinIO服务，通过MINIO_ENDPOINT指定
func TestMinioStorage(t *testing.T) {
	endpoint := os.Getenv("MINIO_ENDPOINT")
	if endpoint == "" {
		t.Skip("MINIO_ENDPOINT not set, skipping MinIO tests")
	}

	s, err := NewMinioStorage(context.Background(), MinioConfig{
		Endpoint:  endpoint,
		AccessKey: "minioadmin",
		SecretKey: "minioadmin",
		UseSSL:    false,
		Bucket:    "doc2pdf-test",
	})
	require.NoError(t, err)

	exerciseStorage(t, s)
}

func TestStorageFactory(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Local.Path = filepath.Join(t.TempDir(), "objects")

	s, err := New(context.Background(), cfg)
	require.NoError(t, err)
	assert.IsType(t, &LocalStorage{}, s)
	assert.DirExists(t, cfg.Local.Path)

	cfg.Type = "s3"
	_, err = New(context.Background(), cfg)
	assert.Error(t, err)
}

func TestObjectKeys(t *testing.T) {
	assert.Equal(t, "sources/abc.docx", SourceKey("abc", "My Report.DOCX"))
	assert.Equal(t, "sources/abc.md", SourceKey("abc", "notes.md"))
	assert.Equal(t, "results/abc.pdf", ResultKey("abc"))
}
