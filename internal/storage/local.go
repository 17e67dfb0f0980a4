package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// LocalStorage 基于本地磁盘的对象存储，用于开发与测试环境
type LocalStorage struct {
	baseDir string
	baseURL string
}

// NewLocalStorage 创建本地存储
func NewLocalStorage(baseDir, baseURL string) *LocalStorage {
	return &LocalStorage{
		baseDir: baseDir,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Upload 写入文件并返回访问路径
func (s *LocalStorage) Upload(_ context.Context, data []byte, name, folder, _ string) (*UploadResult, error) {
	rel := filepath.Join(folder, fmt.Sprintf("%d-%s", time.Now().UnixMilli(), filepath.Base(name)))
	full := filepath.Join(s.baseDir, rel)

	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return nil, err
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return nil, err
	}

	return &UploadResult{
		PublicURL: s.baseURL + "/" + filepath.ToSlash(rel),
		Path:      rel,
	}, nil
}

// Delete 删除文件
func (s *LocalStorage) Delete(_ context.Context, path string) error {
	return os.Remove(filepath.Join(s.baseDir, path))
}

// SignedURL 本地存储没有签名机制，直接返回公开地址
func (s *LocalStorage) SignedURL(_ context.Context, path string, _ time.Duration) (string, error) {
	return s.baseURL + "/" + filepath.ToSlash(path), nil
}
