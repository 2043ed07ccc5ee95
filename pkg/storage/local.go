package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// LocalSource 本地目录语料来源实现
// 直接读取一个平铺的文档目录，不递归子目录
type LocalSource struct {
	basePath string          // 语料目录路径
	filter   ExtensionFilter // 允许摄取的扩展名
}

// LocalConfig 本地语料来源配置
type LocalConfig struct {
	Path       string   // 语料目录路径
	Extensions []string // 允许摄取的扩展名，为空时使用默认集合
}

// NewLocalSource 创建本地语料来源实例
func NewLocalSource(cfg LocalConfig) (*LocalSource, error) {
	absPath, err := filepath.Abs(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path: %v", err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to access corpus directory: %v", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("corpus path is not a directory: %s", absPath)
	}

	return &LocalSource{
		basePath: absPath,
		filter:   NewExtensionFilter(cfg.Extensions),
	}, nil
}

// List 列出语料目录中的所有支持文件
func (s *LocalSource) List(ctx context.Context) ([]FileInfo, error) {
	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to list corpus directory: %v", err)
	}

	var files []FileInfo
	for _, entry := range entries {
		if entry.IsDir() || !s.filter.Allows(entry.Name()) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			return nil, fmt.Errorf("failed to stat corpus file: %v", err)
		}

		files = append(files, FileInfo{
			Name:     entry.Name(),
			Size:     info.Size(),
			MimeType: getMimeType(entry.Name()),
		})
	}

	return files, nil
}

// Open 打开语料文件的内容
func (s *LocalSource) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	file, err := os.Open(s.filePath(name))
	if err != nil {
		return nil, fmt.Errorf("failed to open corpus file: %v", err)
	}
	return file, nil
}

// Fetch 获取文件的本地路径
// 本地来源无需下载，直接返回目录下的路径
func (s *LocalSource) Fetch(ctx context.Context, name string) (string, error) {
	path := s.filePath(name)
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("corpus file not found: %s", name)
	}
	return path, nil
}

// Exists 检查语料文件是否存在
func (s *LocalSource) Exists(ctx context.Context, name string) (bool, error) {
	_, err := os.Stat(s.filePath(name))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// filePath 构造文件的完整路径
// 只取文件名部分，防止路径穿越出语料目录
func (s *LocalSource) filePath(name string) string {
	return filepath.Join(s.basePath, filepath.Base(name))
}
