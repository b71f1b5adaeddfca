package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const tempPrefix = ".upload-"

// LocalStorage 本地文件存储实现
// 对象键直接映射为基础路径下的相对路径
type LocalStorage struct {
	basePath string // 基础存储路径
}

// LocalConfig 本地存储配置
type LocalConfig struct {
	Path string `mapstructure:"path"` // 本地存储路径
}

// NewLocalStorage 创建本地存储实例
func NewLocalStorage(cfg LocalConfig) (*LocalStorage, error) {
	// 确保路径是绝对路径
	absPath, err := filepath.Abs(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path: %w", err)
	}

	// 确保目录存在
	if err := os.MkdirAll(absPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	return &LocalStorage{
		basePath: absPath,
	}, nil
}

// resolve 把对象键转成本地路径
func (s *LocalStorage) resolve(key string) (string, string, error) {
	cleaned, err := cleanKey(key)
	if err != nil {
		return "", "", err
	}
	return cleaned, filepath.Join(s.basePath, filepath.FromSlash(cleaned)), nil
}

// Put 写入对象，先写临时文件再重命名，读者不会看到写了一半的对象
func (s *LocalStorage) Put(_ context.Context, key string, reader io.Reader, _ int64) (FileInfo, error) {
	cleaned, filePath, err := s.resolve(key)
	if err != nil {
		return FileInfo{}, err
	}

	dirPath := filepath.Dir(filePath)
	if err := os.MkdirAll(dirPath, 0755); err != nil {
		return FileInfo{}, fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dirPath, tempPrefix+"*")
	if err != nil {
		return FileInfo{}, fmt.Errorf("failed to create file: %w", err)
	}
	defer os.Remove(tmp.Name())

	size, err := io.Copy(tmp, reader)
	if err != nil {
		tmp.Close()
		return FileInfo{}, fmt.Errorf("failed to write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return FileInfo{}, fmt.Errorf("failed to write file: %w", err)
	}
	if err := os.Rename(tmp.Name(), filePath); err != nil {
		return FileInfo{}, fmt.Errorf("failed to move file into place: %w", err)
	}

	return FileInfo{
		Key:      cleaned,
		Size:     size,
		MimeType: getMimeType(cleaned),
		Path:     filePath,
	}, nil
}

// Get 获取对象内容
func (s *LocalStorage) Get(_ context.Context, key string) (io.ReadCloser, error) {
	_, filePath, err := s.resolve(key)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	return file, nil
}

// Stat 获取对象元数据
func (s *LocalStorage) Stat(_ context.Context, key string) (FileInfo, error) {
	cleaned, filePath, err := s.resolve(key)
	if err != nil {
		return FileInfo{}, err
	}

	info, err := os.Stat(filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return FileInfo{}, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return FileInfo{}, fmt.Errorf("failed to stat file: %w", err)
	}
	if info.IsDir() {
		return FileInfo{}, fmt.Errorf("%w: %s", ErrNotFound, key)
	}

	return FileInfo{
		Key:      cleaned,
		Size:     info.Size(),
		MimeType: getMimeType(cleaned),
		Path:     filePath,
	}, nil
}

// Delete 删除对象
func (s *LocalStorage) Delete(_ context.Context, key string) error {
	_, filePath, err := s.resolve(key)
	if err != nil {
		return err
	}

	if err := os.Remove(filePath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete file: %w", err)
	}

	return nil
}

// List 列出前缀下的所有对象，按键排序
func (s *LocalStorage) List(_ context.Context, prefix string) ([]FileInfo, error) {
	root := s.basePath
	if prefix != "" {
		_, p, err := s.resolve(prefix)
		if err != nil {
			return nil, err
		}
		root = p
	}

	var files []FileInfo
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && p == root {
				return filepath.SkipDir
			}
			return err
		}

		// 跳过目录和写入中的临时文件
		if d.IsDir() || strings.HasPrefix(d.Name(), tempPrefix) {
			return nil
		}

		relPath, err := filepath.Rel(s.basePath, p)
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}

		key := filepath.ToSlash(relPath)
		files = append(files, FileInfo{
			Key:      key,
			Size:     info.Size(),
			MimeType: getMimeType(key),
			Path:     p,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Key < files[j].Key })
	return files, nil
}

// Exists 检查对象是否存在
func (s *LocalStorage) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.Stat(ctx, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
